package shapespace

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"cellshape3d/internal/models"
	"cellshape3d/pkg/dataset"
)

// Standardized interval covered by the bin grid: values beyond two
// standard deviations saturate into the first/last bin.
const (
	binRangeInf = -2.0
	binRangeSup = 2.0
)

// DigitizeResult holds the output of one digitization pass. All
// fields are read-only after the pass completes.
type DigitizeResult struct {
	// Table is the filtered input with one row per retained cell
	Table *dataset.Table

	// Assignments maps every retained cell to its bin, in table
	// row order
	Assignments []models.BinAssignment

	// BinMembers lists the cell identifiers per bin, keyed by the
	// 1-based bin index
	BinMembers map[int][]string

	// BinCenters are the feature values at the center of each bin
	// on the standardized [-2, 2] axis
	BinCenters []float64

	// Std is the standard deviation used to z-score the feature
	Std float64
}

// Digitize discretizes a shape-mode feature into nbins equally spaced
// bins. The feature is first z-scored and the interval from -2 std to
// 2 std is divided into nbins bins; values outside that interval fall
// into the first or last bin. Extreme data points are removed up
// front by FilterExtremes using the filterOn columns (the feature
// itself when filterOn is empty).
func Digitize(table *dataset.Table, feature string, nbins int, filterOn []string, pct float64) (*DigitizeResult, error) {
	if nbins < 2 {
		return nil, fmt.Errorf("%w: nbins must be >= 2, got %d", ErrInvalidParameter, nbins)
	}
	if !table.HasColumn(feature) {
		return nil, fmt.Errorf("%w: %s", dataset.ErrFeatureNotFound, feature)
	}

	// Exclude extremities
	if len(filterOn) == 0 {
		filterOn = []string{feature}
	}
	filtered, err := FilterExtremes(table, filterOn, pct)
	if err != nil {
		return nil, err
	}

	values, err := filtered.Column(feature)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no records left after filtering", ErrInvalidParameter)
	}

	// Should be centered already, but enforce it here
	mean := stat.Mean(values, nil)
	for i := range values {
		values[i] -= mean
	}

	// Z-score with the population standard deviation
	std := popStdDev(values)
	if std > 0 {
		for i := range values {
			values[i] /= std
		}
	}

	// Bin half width based on the std interval and nbins
	binw := (binRangeSup - binRangeInf) / (2 * float64(nbins-1))

	centers := make([]float64, nbins)
	for i := range centers {
		centers[i] = binRangeInf + float64(i)*2*binw
	}

	// Edges are {center +/- binw}, deduplicated and sorted; the
	// outermost edges become -Inf/+Inf so samples below/above the
	// two-std interval fall into the first/last bin.
	edges := make([]float64, nbins+1)
	edges[0] = math.Inf(-1)
	for i := 1; i < nbins; i++ {
		edges[i] = (centers[i-1] + centers[i]) / 2
	}
	edges[nbins] = math.Inf(1)

	result := &DigitizeResult{
		Table:      filtered,
		BinMembers: make(map[int][]string, nbins),
		BinCenters: centers,
		Std:        std,
	}

	for i, v := range values {
		bin := digitizeValue(v, edges)
		cellID := filtered.CellIDs[i]
		result.Assignments = append(result.Assignments, models.BinAssignment{
			CellID: cellID,
			Bin:    bin,
			Value:  v,
		})
		result.BinMembers[bin] = append(result.BinMembers[bin], cellID)
	}

	return result, nil
}

// digitizeValue returns the 1-based index of the left-closed interval
// [edges[i-1], edges[i]) containing v.
func digitizeValue(v float64, edges []float64) int {
	return sort.Search(len(edges), func(i int) bool { return edges[i] > v })
}

// popStdDev returns the population standard deviation (dividing by n,
// not n-1), matching the z-scoring convention of the upstream
// shape-mode fit.
func popStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := stat.Mean(values, nil)
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)))
}

// BinFrequencies reports the number of retained cells per bin, keyed
// by the 1-based bin index. Bins with no members are absent.
func (r *DigitizeResult) BinFrequencies() map[int]int {
	freqs := make(map[int]int, len(r.BinMembers))
	for bin, members := range r.BinMembers {
		freqs[bin] = len(members)
	}
	return freqs
}

// FrequenciesByStructure stratifies the per-bin counts by the given
// categorical string column (e.g. structure_name). The outer key is
// the structure label, the inner key the bin index.
func (r *DigitizeResult) FrequenciesByStructure(column string) map[string]map[int]int {
	out := make(map[string]map[int]int)
	if !r.Table.HasStringColumn(column) {
		return out
	}
	for i, a := range r.Assignments {
		label := r.Table.StringValue(i, column)
		if out[label] == nil {
			out[label] = make(map[int]int)
		}
		out[label][a.Bin]++
	}
	return out
}
