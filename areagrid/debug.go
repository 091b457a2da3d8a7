package areagrid

import (
	"sort"
	"unsafe"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DebugInfo is a snapshot of the grid geometry and of the number of references
// held by each cell.
type DebugInfo struct {
	Width      int   `json:"width"`
	Height     int   `json:"height"`
	CellLength int   `json:"cell_length"`
	Bits       int   `json:"bits"`
	Cols       int   `json:"cols"`
	Rows       int   `json:"rows"`
	Cells      int   `json:"cells"`
	References int   `json:"references"`
	Occupancy  []int `json:"occupancy"` // Row major: Occupancy[row*Cols+col].
}

// OccupancyStats summarizes the occupancy of all the cells of a grid, absent
// cells included.
type OccupancyStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	P95    float64 `json:"p95"`
	Max    float64 `json:"max"`
	Empty  int     `json:"empty"`
}

// DebugInfo returns the grid debug info. Cells are read one at a time.
func (g *Grid[T]) DebugInfo() DebugInfo {
	info := DebugInfo{
		Width:      g.width,
		Height:     g.height,
		CellLength: g.cellLength,
		Bits:       int(g.bits),
		Cols:       g.cols,
		Rows:       g.rows,
		Occupancy:  make([]int, g.cols*g.rows),
	}

	for col := 0; col < g.cols; col++ {
		for row := 0; row < g.rows; row++ {
			c := g.cell(col, row)
			if c == nil {
				continue
			}

			n := c.len()
			info.Cells++
			info.References += n
			info.Occupancy[row*g.cols+col] = n
		}
	}
	return info
}

// Stats computes the occupancy statistics.
func (d DebugInfo) Stats() OccupancyStats {
	if len(d.Occupancy) == 0 {
		return OccupancyStats{}
	}

	values := make([]float64, len(d.Occupancy))
	var stats OccupancyStats
	for i, n := range d.Occupancy {
		values[i] = float64(n)
		if n == 0 {
			stats.Empty++
		}
	}
	sort.Float64s(values)

	stats.Mean, stats.StdDev = stat.MeanStdDev(values, nil)
	stats.P95 = stat.Quantile(0.95, stat.Empirical, values, nil)
	stats.Max = floats.Max(values)
	return stats
}

// MemSize returns an approximation of the memory used by the grid, in bytes.
// The entities themselves are not counted.
func (g *Grid[T]) MemSize() int {
	var zero T
	entrySize := int(unsafe.Sizeof(zero))
	slotSize := int(unsafe.Sizeof(g.cells[0]))
	cellSize := int(unsafe.Sizeof(cell[T]{}))

	size := int(unsafe.Sizeof(*g)) + len(g.cells)*slotSize
	for i := range g.cells {
		c := g.cells[i].Load()
		if c == nil {
			continue
		}
		size += cellSize + c.capacity()*entrySize
	}
	return size
}
