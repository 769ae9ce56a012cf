package mesh

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrDegeneratePlane indicates the slicing plane cannot be positioned
// because every mesh point coordinate along the orthogonal axis is
// zero. Recoverable: callers skip and flag the offending bin.
var ErrDegeneratePlane = errors.New("degenerate plane")

// Projection selects one of the three coordinate-plane pairs used to
// project a mesh into 2D.
type Projection int

const (
	XY Projection = iota
	XZ
	YZ
)

// String returns the axis-pair label used in artifact names.
func (p Projection) String() string {
	switch p {
	case XY:
		return "xy"
	case XZ:
		return "xz"
	default:
		return "yz"
	}
}

// Axes returns the two in-plane coordinate axes of the projection.
func (p Projection) Axes() [2]int {
	switch p {
	case XY:
		return [2]int{0, 1}
	case XZ:
		return [2]int{0, 2}
	default:
		return [2]int{1, 2}
	}
}

// Orthogonal returns the axis perpendicular to the projection plane.
func (p Projection) Orthogonal() int {
	switch p {
	case XY:
		return 2
	case XZ:
		return 1
	default:
		return 0
	}
}

// Projections lists all three coordinate-plane pairs in the order the
// aggregation pipeline processes them.
var Projections = []Projection{XY, XZ, YZ}

// planeOffset shifts the slicing plane slightly off the mesh centroid
// along the orthogonal axis. Without it the intersection is undefined
// whenever a mesh edge lies exactly in the projection plane.
const planeOffset = 0.75

// boundsMarginFraction expands the plane extents beyond the mesh
// bounding box by this fraction of the largest extent.
const boundsMarginFraction = 0.1

// PlaneIntersection computes the 2D contour of the mesh sliced by the
// axis-aligned plane of the given projection. The plane sits at the
// mesh's mean coordinate along the orthogonal axis plus a small fixed
// offset, bounded by the mesh extents expanded by 10% of the largest
// extent. The resulting boundary points are sorted clockwise around
// their centroid in the 2D projection, forming a closed polyline.
// The mesh's axis-aligned bounding box is returned alongside for
// downstream scaling.
func PlaneIntersection(m *TriMesh, proj Projection) ([][3]float64, [6]float64, error) {
	bounds := m.Bounds()
	ax := proj.Orthogonal()

	// The plane cannot be positioned when the orthogonal axis is
	// identically zero across the mesh
	sum := 0.0
	for _, p := range m.Points {
		sum += math.Abs(p[ax])
	}
	if sum == 0 {
		return nil, bounds, fmt.Errorf("%w: only zeros found along axis %d", ErrDegeneratePlane, ax)
	}

	mid := 0.0
	for _, p := range m.Points {
		mid += p[ax]
	}
	mid /= float64(len(m.Points))
	mid += planeOffset

	margin := boundsMarginFraction * m.largestExtent()
	axes := proj.Axes()

	inPlaneBounds := func(p [3]float64) bool {
		for _, a := range axes {
			if p[a] < bounds[2*a]-margin || p[a] > bounds[2*a+1]+margin {
				return false
			}
		}
		return true
	}

	// Walk every unique mesh edge once and collect the points where
	// an edge crosses the plane. Adjacent triangles share edges, so
	// deduplicating by vertex pair keeps the point count stable.
	type edgeKey struct{ a, b int }
	seen := make(map[edgeKey]bool)
	var points [][3]float64

	for _, tri := range m.Triangles {
		for e := 0; e < 3; e++ {
			i, j := tri[e], tri[(e+1)%3]
			if i > j {
				i, j = j, i
			}
			key := edgeKey{i, j}
			if seen[key] {
				continue
			}
			seen[key] = true

			a, b := m.Points[i], m.Points[j]
			da, db := a[ax]-mid, b[ax]-mid
			if da == 0 && db == 0 {
				continue
			}
			if (da > 0 && db > 0) || (da < 0 && db < 0) {
				continue
			}

			t := da / (da - db)
			var p [3]float64
			for k := 0; k < 3; k++ {
				p[k] = a[k] + t*(b[k]-a[k])
			}
			p[ax] = mid
			if inPlaneBounds(p) {
				points = append(points, p)
			}
		}
	}

	if len(points) == 0 {
		return nil, bounds, fmt.Errorf("%w: plane at %.3f misses the mesh along axis %d", ErrDegeneratePlane, mid, ax)
	}

	sortClockwise(points, axes)
	return points, bounds, nil
}

// sortClockwise orders points clockwise around their centroid in the
// 2D projection given by axes, using the atan2 angle with a -135
// degree phase and the 360 degree wrap. The sort is stable so that
// ties keep their collection order.
func sortClockwise(points [][3]float64, axes [2]int) {
	var cx, cy float64
	for _, p := range points {
		cx += p[axes[0]]
		cy += p[axes[1]]
	}
	cx /= float64(len(points))
	cy /= float64(len(points))

	angle := func(p [3]float64) float64 {
		deg := math.Atan2(p[axes[1]]-cy, p[axes[0]]-cx) * 180 / math.Pi
		a := math.Mod(-135-deg, 360)
		if a < 0 {
			a += 360
		}
		return a
	}

	sort.SliceStable(points, func(i, j int) bool {
		return angle(points[i]) < angle(points[j])
	})
}
