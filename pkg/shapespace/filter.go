package shapespace

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"cellshape3d/pkg/dataset"
)

// FilterExtremes excludes data points that fall in the percentile
// range [0, pct] or [100-pct, 100] of at least one of the features
// provided. Cutoffs are computed per feature over the original input,
// and a record is dropped when ANY listed feature lies outside its
// cutoffs. The input table is not mutated; retained records are
// returned in a new table.
func FilterExtremes(table *dataset.Table, features []string, pct float64) (*dataset.Table, error) {
	if pct < 0 || pct >= 50 {
		return nil, fmt.Errorf("%w: percentile %.2f outside [0, 50)", ErrInvalidParameter, pct)
	}

	keep := make([]bool, table.Len())
	for i := range keep {
		keep[i] = true
	}

	for _, feature := range features {
		values, err := table.Column(feature)
		if err != nil {
			return nil, fmt.Errorf("%w: filter feature %s", ErrInvalidParameter, feature)
		}

		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)

		// Lower and upper cutoffs for the current feature
		finf := stat.Quantile(pct/100, stat.LinInterp, sorted, nil)
		fsup := stat.Quantile((100-pct)/100, stat.LinInterp, sorted, nil)

		// Points in either the low or high extreme are flagged
		for i, v := range values {
			if v < finf || v > fsup {
				keep[i] = false
			}
		}
	}

	return table.Select(keep), nil
}
