package shapespace

import (
	"fmt"
	"regexp"
	"strconv"

	"cellshape3d/pkg/dataset"
)

// CoefficientMatrix stores spherical-harmonics expansion coefficients
// as a 2 x lmax x lmax array: [0][l][m] is the cosine coefficient and
// [1][l][m] the sine coefficient for degree l and order m.
type CoefficientMatrix struct {
	// LMax is the maximum degree of the expansion
	LMax int

	// Values is indexed [component][degree][order] with component 0
	// for cosine and 1 for sine terms
	Values [2][][]float64
}

// NewCoefficientMatrix returns a zeroed matrix for the given degree.
func NewCoefficientMatrix(lmax int) *CoefficientMatrix {
	m := &CoefficientMatrix{LMax: lmax}
	for c := 0; c < 2; c++ {
		m.Values[c] = make([][]float64, lmax)
		for l := 0; l < lmax; l++ {
			m.Values[c][l] = make([]float64, lmax)
		}
	}
	return m
}

// IsZero reports whether every entry of the matrix is zero.
func (m *CoefficientMatrix) IsZero() bool {
	for c := 0; c < 2; c++ {
		for l := 0; l < m.LMax; l++ {
			for mm := 0; mm < m.LMax; mm++ {
				if m.Values[c][l][mm] != 0 {
					return false
				}
			}
		}
	}
	return true
}

// coeffKey identifies one (degree, order, component) coefficient.
type coeffKey struct {
	l, m      int
	component int // 0 cosine, 1 sine
}

// CoefficientSchema is a typed mapping from (degree, order, component)
// to the column carrying that coefficient. It is built once per table
// schema so that per-row access is a lookup, with a lookup miss
// preserving the "missing means zero" convention.
type CoefficientSchema struct {
	// Prefix is the column prefix the schema was built from
	Prefix string

	columns map[coeffKey]string
}

// columnPattern matches coefficient column names of the form
// {prefix}{l}M{m}{C|S}, optionally followed by a suffix such as _lcc.
func columnPattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(prefix) + `(\d+)M(\d+)(C|S)`)
}

// NewCoefficientSchema scans the table's numeric columns for names
// matching the {prefix}{l}M{m}{C|S} convention and indexes them by
// (degree, order, component). Fails with ErrNoCoefficients when the
// prefix matches no columns at all, which signals a wrong prefix
// rather than legitimately empty data.
func NewCoefficientSchema(table *dataset.Table, prefix string) (*CoefficientSchema, error) {
	pattern := columnPattern(prefix)
	schema := &CoefficientSchema{
		Prefix:  prefix,
		columns: make(map[coeffKey]string),
	}

	for _, col := range table.NumericColumns() {
		groups := pattern.FindStringSubmatch(col)
		if groups == nil {
			continue
		}
		l, err := strconv.Atoi(groups[1])
		if err != nil {
			continue
		}
		m, err := strconv.Atoi(groups[2])
		if err != nil {
			continue
		}
		component := 0
		if groups[3] == "S" {
			component = 1
		}
		schema.columns[coeffKey{l: l, m: m, component: component}] = col
	}

	if len(schema.columns) == 0 {
		return nil, fmt.Errorf("%w: please check prefix %q", ErrNoCoefficients, prefix)
	}

	return schema, nil
}

// Column returns the column name carrying the coefficient for
// (degree, order, component), or false when the pair is absent from
// the source data.
func (s *CoefficientSchema) Column(l, m, component int) (string, bool) {
	col, ok := s.columns[coeffKey{l: l, m: m, component: component}]
	return col, ok
}

// BuildCoefficientMatrix reshapes the named SHE coefficients of one
// record into a 2 x lmax x lmax matrix. Coefficient pairs absent from
// the schema default to zero. Fails with ErrNoCoefficients when the
// resulting matrix is entirely zero.
func BuildCoefficientMatrix(row dataset.Row, schema *CoefficientSchema, lmax int) (*CoefficientMatrix, error) {
	matrix := NewCoefficientMatrix(lmax)

	for l := 0; l < lmax; l++ {
		for m := 0; m <= l; m++ {
			for component := 0; component < 2; component++ {
				col, ok := schema.Column(l, m, component)
				if !ok {
					// Missing (l,m) pairs are assumed zero
					continue
				}
				v, err := row.Value(col)
				if err != nil {
					return nil, err
				}
				matrix.Values[component][l][m] = v
			}
		}
	}

	if matrix.IsZero() {
		return nil, fmt.Errorf("%w: please check prefix %q", ErrNoCoefficients, schema.Prefix)
	}

	return matrix, nil
}
