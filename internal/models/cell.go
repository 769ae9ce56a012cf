// Package models defines the value types shared across the pipeline
// stages: bin assignments from the digitizer and the per-bin aggregate
// records the reconstruction step produces.
package models

// BinAssignment maps a cell to its shape-mode bin.
// Bin indices are contiguous integers starting at 1.
type BinAssignment struct {
	// CellID is the cell identifier
	CellID string

	// Bin is the assigned bin index (1..NBins)
	Bin int

	// Value is the z-scored shape-mode value that produced the
	// assignment
	Value float64
}

// Contour is an ordered sequence of 3D points lying on one mesh,
// restricted to a coordinate plane and sorted clockwise in the 2D
// projection. One Contour exists per (bin, projection) combination.
type Contour struct {
	// Points are xyz coordinates in clockwise projection order
	Points [][3]float64
}

// EntityResult holds the reconstruction output for one tracked
// entity (e.g. "mem" or "dna") within a bin.
type EntityResult struct {
	// Entity is the entity name
	Entity string

	// MeshPath is where the reconstructed mesh was persisted
	MeshPath string

	// ContourPath is where the projection contours were persisted
	ContourPath string

	// Bounds is the axis-aligned bounding box of the mesh as
	// [xmin, xmax, ymin, ymax, zmin, zmax]
	Bounds [6]float64
}

// BinAggregate is the durable per-bin output unit: one representative
// artifact set per bin, written exactly once per run.
type BinAggregate struct {
	// Bin is the bin index (1..NBins)
	Bin int

	// Center is the bin center on the standardized [-2, 2] axis
	Center float64

	// NSamples is the number of cells that fell into this bin
	NSamples int

	// Entities holds one result per tracked entity
	Entities []EntityResult

	// NestedOffset is the averaged nested-entity centroid expressed
	// in the outer entity's aligned frame (zero when the fix is
	// disabled)
	NestedOffset [3]float64
}
