// Package shparam reconstructs closed 3D triangle meshes from
// spherical-harmonics expansion coefficients. The surface is the
// radial expansion r(theta, phi) over a fixed latitude-longitude grid,
// so identical coefficients always produce the same topology and the
// same point coordinates.
package shparam

import (
	"fmt"
	"math"

	"cellshape3d/pkg/mesh"
	"cellshape3d/pkg/shapespace"
)

// legendre evaluates the 4-pi normalized associated Legendre functions
// Plm(x) for all degrees l < lmax and orders m <= l, using the
// standard stable column-wise recurrences. The returned slice is
// indexed [l][m].
func legendre(lmax int, x float64) [][]float64 {
	p := make([][]float64, lmax)
	for l := range p {
		p[l] = make([]float64, l+1)
	}
	if lmax == 0 {
		return p
	}

	sx := math.Sqrt(1 - x*x)

	// Diagonal terms Pmm
	p[0][0] = 1
	for m := 1; m < lmax; m++ {
		p[m][m] = math.Sqrt(float64(2*m+1)/float64(2*m)) * sx * p[m-1][m-1]
	}

	// First off-diagonal terms P(m+1)m
	for m := 0; m+1 < lmax; m++ {
		p[m+1][m] = math.Sqrt(float64(2*m+3)) * x * p[m][m]
	}

	// Remaining terms by upward recurrence in l
	for m := 0; m < lmax; m++ {
		for l := m + 2; l < lmax; l++ {
			fl, fm := float64(l), float64(m)
			a := math.Sqrt((4*fl*fl - 1) / (fl*fl - fm*fm))
			b := math.Sqrt(((2*fl + 1) * ((fl-1)*(fl-1) - fm*fm)) / ((2*fl - 3) * (fl*fl - fm*fm)))
			p[l][m] = a*x*p[l-1][m] - b*p[l-2][m]
		}
	}

	return p
}

// EvaluateGrid expands the coefficients into a radius grid of
// thetaRes rows (theta from 0 to pi, poles included) by phiRes
// columns (phi from 0 to 2*pi, exclusive).
func EvaluateGrid(coeffs *shapespace.CoefficientMatrix, thetaRes, phiRes int) [][]float64 {
	grid := make([][]float64, thetaRes)
	for i := range grid {
		grid[i] = make([]float64, phiRes)
		theta := math.Pi * float64(i) / float64(thetaRes-1)
		p := legendre(coeffs.LMax, math.Cos(theta))
		for j := 0; j < phiRes; j++ {
			phi := 2 * math.Pi * float64(j) / float64(phiRes)
			r := 0.0
			for l := 0; l < coeffs.LMax; l++ {
				for m := 0; m <= l; m++ {
					c := coeffs.Values[0][l][m]
					s := coeffs.Values[1][l][m]
					if c == 0 && s == 0 {
						continue
					}
					mphi := float64(m) * phi
					r += p[l][m] * (c*math.Cos(mphi) + s*math.Sin(mphi))
				}
			}
			grid[i][j] = r
		}
	}
	return grid
}

// Reconstruct converts SHE coefficients into a closed triangle mesh
// by sampling the radial expansion on a latitude-longitude grid and
// triangulating it with welded pole vertices. Vertex count and
// topology are fixed by the grid resolution, not by the coefficients.
func Reconstruct(coeffs *shapespace.CoefficientMatrix, thetaRes, phiRes int) (*mesh.TriMesh, error) {
	if thetaRes < 3 || phiRes < 3 {
		return nil, fmt.Errorf("grid resolution %dx%d too small, need at least 3x3", thetaRes, phiRes)
	}
	if coeffs.IsZero() {
		return nil, fmt.Errorf("%w: cannot reconstruct from all-zero matrix", shapespace.ErrNoCoefficients)
	}

	grid := EvaluateGrid(coeffs, thetaRes, phiRes)
	m := &mesh.TriMesh{}

	// Single welded vertex per pole; only m=0 terms contribute at
	// the poles so the radius is independent of phi there.
	north := len(m.Points)
	m.Points = append(m.Points, [3]float64{0, 0, grid[0][0]})

	// Interior rings
	ringStart := make([]int, thetaRes)
	for i := 1; i < thetaRes-1; i++ {
		ringStart[i] = len(m.Points)
		theta := math.Pi * float64(i) / float64(thetaRes-1)
		for j := 0; j < phiRes; j++ {
			phi := 2 * math.Pi * float64(j) / float64(phiRes)
			r := grid[i][j]
			m.Points = append(m.Points, [3]float64{
				r * math.Sin(theta) * math.Cos(phi),
				r * math.Sin(theta) * math.Sin(phi),
				r * math.Cos(theta),
			})
		}
	}

	south := len(m.Points)
	m.Points = append(m.Points, [3]float64{0, 0, -grid[thetaRes-1][0]})

	// North cap fan
	for j := 0; j < phiRes; j++ {
		jn := (j + 1) % phiRes
		m.Triangles = append(m.Triangles, [3]int{north, ringStart[1] + j, ringStart[1] + jn})
	}

	// Quad strips between consecutive rings, two triangles each
	for i := 1; i < thetaRes-2; i++ {
		for j := 0; j < phiRes; j++ {
			jn := (j + 1) % phiRes
			a := ringStart[i] + j
			b := ringStart[i] + jn
			c := ringStart[i+1] + jn
			d := ringStart[i+1] + j
			m.Triangles = append(m.Triangles, [3]int{a, d, c})
			m.Triangles = append(m.Triangles, [3]int{a, c, b})
		}
	}

	// South cap fan
	last := thetaRes - 2
	for j := 0; j < phiRes; j++ {
		jn := (j + 1) % phiRes
		m.Triangles = append(m.Triangles, [3]int{ringStart[last] + j, south, ringStart[last] + jn})
	}

	return m, nil
}
