package areagrid

import (
	"fmt"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Region is an axis aligned bounding region (MBR). Axis must be in
// [0, Dimensions()); implementations are free to panic otherwise.
type Region interface {
	// Returns the minimum coordinate on the given axis.
	Min(axis int) int

	// Returns the length of the region on the given axis.
	Extent(axis int) int

	// Returns the number of axes.
	Dimensions() int
}

// Cube is a Region backed by its own coordinate and extent slices.
type Cube struct {
	min    []int
	extent []int
}

// NewCube creates a cube from the given minimum coordinates and extents. The
// slices are copied.
func NewCube(min, extent []int) (*Cube, error) {
	if len(min) != len(extent) {
		return nil, errors.New("cube coordinates and extents have different lengths").
			WithType(ErrTypeInvalidArgument).
			WithTag("coords", len(min)).
			WithTag("extents", len(extent))
	}

	c := &Cube{
		min:    make([]int, len(min)),
		extent: make([]int, len(extent)),
	}
	copy(c.min, min)
	copy(c.extent, extent)
	return c, nil
}

// Rect returns a 2D cube.
func Rect(x, y, width, height int) *Cube {
	return &Cube{
		min:    []int{x, y},
		extent: []int{width, height},
	}
}

// CubeOf returns a copy of the given region as a cube.
func CubeOf(r Region) *Cube {
	n := r.Dimensions()
	c := &Cube{
		min:    make([]int, n),
		extent: make([]int, n),
	}
	for i := 0; i < n; i++ {
		c.min[i] = r.Min(i)
		c.extent[i] = r.Extent(i)
	}
	return c
}

func (c *Cube) Min(axis int) int {
	return c.min[axis]
}

func (c *Cube) Extent(axis int) int {
	return c.extent[axis]
}

func (c *Cube) Dimensions() int {
	return len(c.extent)
}

// Mins returns a copy of the minimum coordinates.
func (c *Cube) Mins() []int {
	return append([]int(nil), c.min...)
}

// Extents returns a copy of the extents.
func (c *Cube) Extents() []int {
	return append([]int(nil), c.extent...)
}

func (c *Cube) String() string {
	var b strings.Builder
	b.WriteString("Cube:")
	for i := range c.min {
		fmt.Fprintf(&b, " (%d..%d)", c.min[i], c.extent[i])
	}
	return b.String()
}

func upper(r Region, axis int) int {
	return r.Min(axis) + r.Extent(axis)
}
