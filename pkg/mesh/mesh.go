// Package mesh provides the triangle mesh type produced by the
// spherical-harmonics reconstruction, its STL persistence, and the
// plane-mesh intersection that yields 2D shape contours.
package mesh

import (
	"math"
)

// TriMesh is a closed triangle mesh. Points are xyz coordinates and
// Triangles index into Points counter-clockwise when viewed from
// outside the surface.
type TriMesh struct {
	Points    [][3]float64
	Triangles [][3]int
}

// Bounds returns the axis-aligned bounding box as
// [xmin, xmax, ymin, ymax, zmin, zmax].
func (m *TriMesh) Bounds() [6]float64 {
	var b [6]float64
	if len(m.Points) == 0 {
		return b
	}
	for ax := 0; ax < 3; ax++ {
		b[2*ax] = m.Points[0][ax]
		b[2*ax+1] = m.Points[0][ax]
	}
	for _, p := range m.Points {
		for ax := 0; ax < 3; ax++ {
			if p[ax] < b[2*ax] {
				b[2*ax] = p[ax]
			}
			if p[ax] > b[2*ax+1] {
				b[2*ax+1] = p[ax]
			}
		}
	}
	return b
}

// Centroid returns the mean of all mesh points.
func (m *TriMesh) Centroid() [3]float64 {
	var c [3]float64
	if len(m.Points) == 0 {
		return c
	}
	for _, p := range m.Points {
		for ax := 0; ax < 3; ax++ {
			c[ax] += p[ax]
		}
	}
	for ax := 0; ax < 3; ax++ {
		c[ax] /= float64(len(m.Points))
	}
	return c
}

// Translate shifts every mesh point by the given offset in place.
func (m *TriMesh) Translate(offset [3]float64) {
	for i := range m.Points {
		for ax := 0; ax < 3; ax++ {
			m.Points[i][ax] += offset[ax]
		}
	}
}

// largestExtent returns the biggest peak-to-peak range over the three
// coordinate axes.
func (m *TriMesh) largestExtent() float64 {
	b := m.Bounds()
	largest := 0.0
	for ax := 0; ax < 3; ax++ {
		if ext := b[2*ax+1] - b[2*ax]; ext > largest {
			largest = ext
		}
	}
	return largest
}

// ToTriangles converts the mesh into flat STL triangles with outward
// unit normals computed from the vertex winding.
func (m *TriMesh) ToTriangles() []Triangle {
	triangles := make([]Triangle, 0, len(m.Triangles))
	for _, t := range m.Triangles {
		p1 := m.Points[t[0]]
		p2 := m.Points[t[1]]
		p3 := m.Points[t[2]]

		// Normal from the cross product of two triangle edges
		ux, uy, uz := p2[0]-p1[0], p2[1]-p1[1], p2[2]-p1[2]
		vx, vy, vz := p3[0]-p1[0], p3[1]-p1[1], p3[2]-p1[2]
		nx := uy*vz - uz*vy
		ny := uz*vx - ux*vz
		nz := ux*vy - uy*vx
		mag := math.Sqrt(nx*nx + ny*ny + nz*nz)
		if mag > 0 {
			nx /= mag
			ny /= mag
			nz /= mag
		}

		triangles = append(triangles, Triangle{
			Normal:  [3]float32{float32(nx), float32(ny), float32(nz)},
			Vertex1: [3]float32{float32(p1[0]), float32(p1[1]), float32(p1[2])},
			Vertex2: [3]float32{float32(p2[0]), float32(p2[1]), float32(p2[2])},
			Vertex3: [3]float32{float32(p3[0]), float32(p3[1]), float32(p3[2])},
		})
	}
	return triangles
}
