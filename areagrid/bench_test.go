package areagrid

import (
	"fmt"
	"testing"
)

func benchGrid(b *testing.B, n int) (*Grid[*testEntity], []*testEntity) {
	g, err := New[*testEntity](4096, 4096, 64)
	if err != nil {
		b.Fatal(err)
	}

	entities := make([]*testEntity, n)
	for i := range entities {
		entities[i] = newTestEntity(fmt.Sprint(i), (i*97)%4000, (i*131)%4000, 1+i%90, 1+i%70)
		if err := g.Put(entities[i]); err != nil {
			b.Fatal(err)
		}
	}
	return g, entities
}

func BenchmarkGridPutRemove(b *testing.B) {
	g, _ := benchGrid(b, 1000)
	e := newTestEntity("bench", 1000, 1000, 100, 100)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := g.Put(e); err != nil {
			b.Fatal(err)
		}
		if err := g.Remove(e); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGridAt(b *testing.B) {
	g, _ := benchGrid(b, 10000)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.At((i*17)%4096, (i*29)%4096)
	}
}

func BenchmarkGridQuery(b *testing.B) {
	for _, size := range []int{16, 128, 512} {
		b.Run(fmt.Sprint(size), func(b *testing.B) {
			g, _ := benchGrid(b, 10000)
			q := Rect(1000, 1000, size, size)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := g.Query(q, 32); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkGridParallelQuery(b *testing.B) {
	g, _ := benchGrid(b, 10000)

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			q := Rect((i*61)%4000, (i*67)%4000, 64, 64)
			if _, err := g.Query(q, 16); err != nil {
				b.Error(err)
				return
			}
			i++
		}
	})
}
