package areagrid

import (
	"math"
	"sync/atomic"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Entity is the constraint for the values stored in a Grid. Entities are
// compared with == when removed and deduplicated in query results, so pointer
// types are the usual choice.
type Entity interface {
	comparable
	Region
}

// MaxSizeHint is the largest size hint a query preallocates for. Larger hints
// are lowered to it.
const MaxSizeHint = 4096

// Grid is a 2D bucket index over the first two axes of the stored regions.
//
// The geometry is fixed at creation. Cells are created on first insertion
// and are never released.
type Grid[T Entity] struct {
	width      int
	height     int
	cellLength int
	bits       uint
	cols       int
	rows       int

	// Indexed by col*rows + row. A nil pointer is a cell that was never used.
	cells []atomic.Pointer[cell[T]]
}

// New creates a grid covering width x height. cellLength is the side of a
// cell and must be a power of two.
func New[T Entity](width, height, cellLength int) (*Grid[T], error) {
	if cellLength <= 0 || cellLength&(cellLength-1) != 0 {
		return nil, errors.New("cell length is not a power of two").
			WithType(ErrTypeInvalidArgument).
			WithTag("cell_length", cellLength)
	}

	if width <= 0 || height <= 0 {
		return nil, errors.New("grid size must be positive").
			WithType(ErrTypeInvalidArgument).
			WithTag("width", width).
			WithTag("height", height)
	}

	var bits uint
	for l := cellLength; l > 1; l >>= 1 {
		bits++
	}

	cols := (width + cellLength - 1) / cellLength
	rows := (height + cellLength - 1) / cellLength

	return &Grid[T]{
		width:      width,
		height:     height,
		cellLength: cellLength,
		bits:       bits,
		cols:       cols,
		rows:       rows,
		cells:      make([]atomic.Pointer[cell[T]], cols*rows),
	}, nil
}

// Width returns the width of the covered world.
func (g *Grid[T]) Width() int {
	return g.width
}

// Height returns the height of the covered world.
func (g *Grid[T]) Height() int {
	return g.height
}

// CellLength returns the side of a cell.
func (g *Grid[T]) CellLength() int {
	return g.cellLength
}

// Cols returns the number of cell columns.
func (g *Grid[T]) Cols() int {
	return g.cols
}

// Rows returns the number of cell rows.
func (g *Grid[T]) Rows() int {
	return g.rows
}

// Validate checks that r can be stored in or used to query the grid: it must
// have at least two dimensions and non-negative minimums and extents on its
// first two axes.
func (g *Grid[T]) Validate(r Region) error {
	_, err := boundsOf(r)
	return err
}

// Put adds e to every cell covered by its region. The region is validated
// before any cell is modified. Parts of the region that lie outside of the
// grid are ignored.
func (g *Grid[T]) Put(e T) error {
	b, err := boundsOf(e)
	if err != nil {
		return err
	}

	s, ok := g.span(b)
	if !ok {
		return nil
	}

	for x := s.x0; x <= s.x1; x++ {
		for y := s.y0; y <= s.y1; y++ {
			g.materialize(x, y).add(e)
		}
	}
	return nil
}

// Remove removes e from every cell covered by its current region. Removing an
// entity that is not stored is a no-op.
func (g *Grid[T]) Remove(e T) error {
	b, err := boundsOf(e)
	if err != nil {
		return err
	}

	s, ok := g.span(b)
	if !ok {
		return nil
	}

	for x := s.x0; x <= s.x1; x++ {
		for y := s.y0; y <= s.y1; y++ {
			if c := g.cell(x, y); c != nil {
				c.remove(e)
			}
		}
	}
	return nil
}

// At returns the entities whose region contains the point (x, y). The
// returned slice is a copy and is empty when the point is outside the grid.
func (g *Grid[T]) At(x, y int) []T {
	if x < 0 || y < 0 {
		return nil
	}

	col := x >> g.bits
	row := y >> g.bits
	if col >= g.cols || row >= g.rows {
		return nil
	}

	c := g.cell(col, row)
	if c == nil {
		return nil
	}

	return c.appendMatching(nil, func(e T) bool {
		return Contains(e, x, y)
	})
}

// Query returns the entities whose region overlaps q on the first two axes.
// sizeHint is the expected number of results, capped at MaxSizeHint.
func (g *Grid[T]) Query(q Region, sizeHint int) ([]T, error) {
	return g.QueryFunc(q, sizeHint, nil)
}

// QueryFunc is like Query but only returns the entities for which keep returns
// true. keep is called without any cell locked. A nil keep keeps everything.
func (g *Grid[T]) QueryFunc(q Region, sizeHint int, keep func(T) bool) ([]T, error) {
	b, err := boundsOf(q)
	if err != nil {
		return nil, err
	}

	sizeHint = max(0, min(sizeHint, MaxSizeHint))

	s, ok := g.span(b)
	if !ok {
		return nil, nil
	}

	seen := make(map[T]struct{}, sizeHint)
	results := make([]T, 0, sizeHint)
	var candidates []T

	for x := s.x0; x <= s.x1; x++ {
		for y := s.y0; y <= s.y1; y++ {
			c := g.cell(x, y)
			if c == nil {
				continue
			}

			candidates = c.appendMatching(candidates[:0], func(e T) bool {
				return b.overlaps(e)
			})

			for _, e := range candidates {
				if _, ok := seen[e]; ok {
					continue
				}
				seen[e] = struct{}{}

				if keep == nil || keep(e) {
					results = append(results, e)
				}
			}
		}
	}
	return results, nil
}

// CellOccupancy returns the number of references held by the cell at the given
// column and row.
func (g *Grid[T]) CellOccupancy(col, row int) (int, error) {
	if col < 0 || col >= g.cols || row < 0 || row >= g.rows {
		return 0, errors.New("cell is outside of the grid").
			WithType(ErrTypeOutOfRange).
			WithTag("col", col).
			WithTag("row", row)
	}

	c := g.cell(col, row)
	if c == nil {
		return 0, nil
	}
	return c.len(), nil
}

func (g *Grid[T]) cell(col, row int) *cell[T] {
	return g.cells[col*g.rows+row].Load()
}

// materialize returns the cell at col, row and creates it when it does not
// exist yet. Concurrent creations of the same cell resolve to a single cell.
func (g *Grid[T]) materialize(col, row int) *cell[T] {
	slot := &g.cells[col*g.rows+row]
	if c := slot.Load(); c != nil {
		return c
	}

	c := newCell[T]()
	if slot.CompareAndSwap(nil, c) {
		return c
	}
	return slot.Load()
}

// span is an inclusive range of cells.
type span struct {
	x0, y0 int
	x1, y1 int
}

// span returns the cells covered by b, clamped to the grid. It returns false
// when b lies entirely outside of the grid.
func (g *Grid[T]) span(b bounds) (span, bool) {
	s := span{
		x0: b.minX >> g.bits,
		y0: b.minY >> g.bits,
		x1: b.maxX >> g.bits,
		y1: b.maxY >> g.bits,
	}

	if s.x0 >= g.cols || s.y0 >= g.rows {
		return span{}, false
	}

	if s.x1 >= g.cols {
		s.x1 = g.cols - 1
	}
	if s.y1 >= g.rows {
		s.y1 = g.rows - 1
	}
	return s, true
}

// bounds is a validated snapshot of the first two axes of a region.
type bounds struct {
	minX, minY int
	maxX, maxY int
}

func boundsOf(r Region) (bounds, error) {
	if n := r.Dimensions(); n < 2 {
		return bounds{}, errors.New("region must have at least two dimensions").
			WithType(ErrTypeInvalidArgument).
			WithTag("dimensions", n)
	}

	var b bounds
	for axis := 0; axis < 2; axis++ {
		lo := r.Min(axis)
		ext := r.Extent(axis)

		if lo < 0 {
			return bounds{}, errors.New("region minimum is negative").
				WithType(ErrTypeInvalidArgument).
				WithTag("axis", axis).
				WithTag("min", lo)
		}

		if ext < 0 {
			return bounds{}, errors.New("region extent is negative").
				WithType(ErrTypeInvalidArgument).
				WithTag("axis", axis).
				WithTag("extent", ext)
		}

		if ext > math.MaxInt-lo {
			return bounds{}, errors.New("region upper bound overflows").
				WithType(ErrTypeInvalidArgument).
				WithTag("axis", axis).
				WithTag("min", lo).
				WithTag("extent", ext)
		}

		if axis == 0 {
			b.minX, b.maxX = lo, lo+ext
		} else {
			b.minY, b.maxY = lo, lo+ext
		}
	}
	return b, nil
}

// overlaps applies the inclusive overlap rule between b and the first two axes
// of r.
func (b bounds) overlaps(r Region) bool {
	return upper(r, 0) >= b.minX && r.Min(0) <= b.maxX &&
		upper(r, 1) >= b.minY && r.Min(1) <= b.maxY
}
