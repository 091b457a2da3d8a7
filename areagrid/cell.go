package areagrid

import "sync"

const cellInitialCapacity = 8

// cell is a grid bucket. Once created it lives as long as its grid.
type cell[T Entity] struct {
	mutex    sync.Mutex
	entities []T
}

func newCell[T Entity]() *cell[T] {
	return &cell[T]{
		entities: make([]T, 0, cellInitialCapacity),
	}
}

func (c *cell[T]) add(e T) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entities = append(c.entities, e)
}

func (c *cell[T]) remove(e T) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for i, v := range c.entities {
		if v != e {
			continue
		}

		last := len(c.entities) - 1
		c.entities[i] = c.entities[last]

		var zero T
		c.entities[last] = zero
		c.entities = c.entities[:last]
		return true
	}
	return false
}

// appendMatching appends the entities that satisfy match to dst. match runs
// with the cell locked.
func (c *cell[T]) appendMatching(dst []T, match func(T) bool) []T {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, e := range c.entities {
		if match(e) {
			dst = append(dst, e)
		}
	}
	return dst
}

func (c *cell[T]) len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.entities)
}

func (c *cell[T]) capacity() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return cap(c.entities)
}
