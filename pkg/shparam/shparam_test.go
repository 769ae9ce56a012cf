package shparam

import (
	"math"
	"testing"

	"cellshape3d/pkg/mesh"
	"cellshape3d/pkg/shapespace"
)

// sphereCoeffs builds a coefficient matrix with only the (l=0, m=0)
// cosine term set, which expands to a sphere of that radius under the
// 4-pi normalized basis
func sphereCoeffs(lmax int, radius float64) *shapespace.CoefficientMatrix {
	coeffs := shapespace.NewCoefficientMatrix(lmax)
	coeffs.Values[0][0][0] = radius
	return coeffs
}

// TestReconstructSphere verifies that an l=0-only expansion produces
// a sphere with every vertex at the expected radius
func TestReconstructSphere(t *testing.T) {
	const radius = 5.0
	m, err := Reconstruct(sphereCoeffs(8, radius), 17, 32)
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}

	// 15 interior rings of 32 vertices plus two pole vertices
	wantPoints := 15*32 + 2
	if len(m.Points) != wantPoints {
		t.Errorf("Expected %d vertices, got %d", wantPoints, len(m.Points))
	}

	for i, p := range m.Points {
		r := math.Sqrt(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])
		if math.Abs(r-radius) > 1e-9 {
			t.Errorf("Vertex %d at radius %v, expected %v", i, r, radius)
		}
	}
}

// TestReconstructClosedTopology verifies the mesh is closed: every
// edge is shared by exactly two triangles
func TestReconstructClosedTopology(t *testing.T) {
	m, err := Reconstruct(sphereCoeffs(4, 1), 9, 16)
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}

	type edge struct{ a, b int }
	counts := make(map[edge]int)
	for _, tri := range m.Triangles {
		for e := 0; e < 3; e++ {
			i, j := tri[e], tri[(e+1)%3]
			if i > j {
				i, j = j, i
			}
			counts[edge{i, j}]++
		}
	}
	for e, n := range counts {
		if n != 2 {
			t.Errorf("Edge %v shared by %d triangles, expected 2", e, n)
		}
	}

	// Euler characteristic of a closed genus-0 surface
	euler := len(m.Points) - len(counts) + len(m.Triangles)
	if euler != 2 {
		t.Errorf("Euler characteristic %d, expected 2", euler)
	}
}

// TestReconstructDeterministic verifies identical coefficients yield
// identical meshes
func TestReconstructDeterministic(t *testing.T) {
	coeffs := sphereCoeffs(8, 3)
	coeffs.Values[0][2][1] = 0.4
	coeffs.Values[1][3][2] = -0.2

	first, err := Reconstruct(coeffs, 17, 32)
	if err != nil {
		t.Fatalf("First reconstruct failed: %v", err)
	}
	second, err := Reconstruct(coeffs, 17, 32)
	if err != nil {
		t.Fatalf("Second reconstruct failed: %v", err)
	}

	if len(first.Points) != len(second.Points) || len(first.Triangles) != len(second.Triangles) {
		t.Fatalf("Mesh sizes differ between identical calls")
	}
	for i := range first.Points {
		if first.Points[i] != second.Points[i] {
			t.Errorf("Vertex %d differs: %v vs %v", i, first.Points[i], second.Points[i])
		}
	}
	for i := range first.Triangles {
		if first.Triangles[i] != second.Triangles[i] {
			t.Errorf("Triangle %d differs: %v vs %v", i, first.Triangles[i], second.Triangles[i])
		}
	}
}

// TestSphereContoursConsistent verifies that slicing the sphere with
// each of the three projections yields a circular contour of
// consistent radius, within the tolerance implied by the plane
// offset off the centroid
func TestSphereContoursConsistent(t *testing.T) {
	const radius = 10.0
	m, err := Reconstruct(sphereCoeffs(8, radius), 33, 64)
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}

	// The slicing plane sits 0.75 off the centroid, so the circle
	// of intersection is slightly smaller than the sphere radius
	wantCircle := math.Sqrt(radius*radius - 0.75*0.75)

	var radii []float64
	for _, proj := range mesh.Projections {
		points, _, err := mesh.PlaneIntersection(m, proj)
		if err != nil {
			t.Fatalf("PlaneIntersection(%v) failed: %v", proj, err)
		}
		if len(points) < 8 {
			t.Fatalf("Projection %v: only %d contour points", proj, len(points))
		}

		axes := proj.Axes()
		var cx, cy float64
		for _, p := range points {
			cx += p[axes[0]]
			cy += p[axes[1]]
		}
		cx /= float64(len(points))
		cy /= float64(len(points))

		mean := 0.0
		for _, p := range points {
			dx, dy := p[axes[0]]-cx, p[axes[1]]-cy
			r := math.Sqrt(dx*dx + dy*dy)
			if math.Abs(r-wantCircle) > 0.15*wantCircle {
				t.Errorf("Projection %v: contour point at radius %v, expected about %v", proj, r, wantCircle)
			}
			mean += r
		}
		radii = append(radii, mean/float64(len(points)))
	}

	// Radii agree across the three projections within meshing tolerance
	for i := 1; i < len(radii); i++ {
		if math.Abs(radii[i]-radii[0]) > 0.05*radii[0] {
			t.Errorf("Contour radius differs across projections: %v", radii)
		}
	}
}

// TestEvaluateGridPoleConsistency verifies the radius at each pole is
// independent of phi, which the welded pole vertices rely on
func TestEvaluateGridPoleConsistency(t *testing.T) {
	coeffs := sphereCoeffs(6, 2)
	coeffs.Values[0][3][1] = 0.8 // m>0 terms vanish at the poles

	grid := EvaluateGrid(coeffs, 9, 16)
	for j := 1; j < 16; j++ {
		if math.Abs(grid[0][j]-grid[0][0]) > 1e-9 {
			t.Errorf("North pole radius varies with phi: %v vs %v", grid[0][j], grid[0][0])
		}
		if math.Abs(grid[8][j]-grid[8][0]) > 1e-9 {
			t.Errorf("South pole radius varies with phi: %v vs %v", grid[8][j], grid[8][0])
		}
	}
}

// TestReconstructRejectsBadInput verifies validation of resolution
// and empty coefficients
func TestReconstructRejectsBadInput(t *testing.T) {
	if _, err := Reconstruct(sphereCoeffs(4, 1), 2, 16); err == nil {
		t.Error("Expected error for theta resolution below 3")
	}
	if _, err := Reconstruct(shapespace.NewCoefficientMatrix(4), 9, 16); err == nil {
		t.Error("Expected error for all-zero coefficients")
	}
}
