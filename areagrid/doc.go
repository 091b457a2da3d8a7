// Package areagrid implements a bucketed spatial overlap index over axis
// aligned bounding regions.
//
// A Grid covers a fixed width x height world split in square cells whose side
// is a power of two, so that world coordinates map to cells with a single
// right shift. An entity is referenced by every cell its region covers and
// queries gather candidates from the covered cells before filtering them with
// the overlap rules below.
//
// Overlap rules:
//
//   - Region against region is inclusive: regions that only touch on an edge
//     or a corner overlap. Overlaps and Grid.Query use the same rule.
//   - Point containment is half-open: min <= p < min+extent.
//
// Concurrency:
//
// Every cell has its own mutex and operations lock one cell at a time. An
// operation that spans several cells is not atomic as a whole: results are a
// logically recent, not linearizable, view across the cells touched by the
// query. Callers must remove an entity before changing its region and put it
// back afterwards.
package areagrid
