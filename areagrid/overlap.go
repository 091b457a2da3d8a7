package areagrid

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Overlaps reports whether a and b overlap on every axis. Regions that only
// touch on a boundary overlap.
func Overlaps(a, b Region) (bool, error) {
	if err := checkDimensions(a, b); err != nil {
		return false, err
	}
	return overlapsOn(a, b, a.Dimensions()), nil
}

// Intersection returns the region shared by a and b. It fails when a and b do
// not overlap. Touching regions give a region with a zero extent on the
// touching axis.
func Intersection(a, b Region) (*Cube, error) {
	ok, err := Overlaps(a, b)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("regions do not overlap").
			WithType(ErrTypeInvalidArgument).
			WithTag("a", CubeOf(a).String()).
			WithTag("b", CubeOf(b).String())
	}

	n := a.Dimensions()
	c := &Cube{
		min:    make([]int, n),
		extent: make([]int, n),
	}
	for axis := 0; axis < n; axis++ {
		lo := a.Min(axis)
		if m := b.Min(axis); m > lo {
			lo = m
		}

		hi := upper(a, axis)
		if m := upper(b, axis); m < hi {
			hi = m
		}

		c.min[axis] = lo
		c.extent[axis] = hi - lo
	}
	return c, nil
}

// Contains reports whether the point (x, y) lies inside the first two axes of
// r, using half-open bounds.
func Contains(r Region, x, y int) bool {
	return r.Min(0) <= x && x < upper(r, 0) &&
		r.Min(1) <= y && y < upper(r, 1)
}

// overlapsOn applies the inclusive overlap rule on the first n axes.
func overlapsOn(a, b Region, n int) bool {
	for axis := 0; axis < n; axis++ {
		if upper(a, axis) < b.Min(axis) || upper(b, axis) < a.Min(axis) {
			return false
		}
	}
	return true
}

func checkDimensions(a, b Region) error {
	if a.Dimensions() != b.Dimensions() {
		return errors.New("regions have different dimensions").
			WithType(ErrTypeInvalidArgument).
			WithTag("a", a.Dimensions()).
			WithTag("b", b.Dimensions())
	}
	return nil
}
