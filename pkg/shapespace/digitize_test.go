package shapespace

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"cellshape3d/pkg/dataset"
)

// TestDigitizeFullPartition verifies that input spanning the full
// two-sigma range covers exactly bins 1..nbins and that every record
// maps to exactly one bin
func TestDigitizeFullPartition(t *testing.T) {
	for _, nbins := range []int{2, 3, 5, 9} {
		// Normal draws comfortably span more than two sigma, so
		// every bin including the saturating extremes gets members
		rng := rand.New(rand.NewSource(11))
		values := make([]float64, 400)
		for i := range values {
			values[i] = rng.NormFloat64()
		}
		table := makeTable(t, "mode", values)

		result, err := Digitize(table, "mode", nbins, nil, 0)
		if err != nil {
			t.Fatalf("Digitize(nbins=%d) failed: %v", nbins, err)
		}

		if len(result.Assignments) != result.Table.Len() {
			t.Errorf("nbins=%d: %d assignments for %d records",
				nbins, len(result.Assignments), result.Table.Len())
		}

		seen := make(map[int]bool)
		for _, a := range result.Assignments {
			if a.Bin < 1 || a.Bin > nbins {
				t.Errorf("nbins=%d: bin %d out of range [1, %d]", nbins, a.Bin, nbins)
			}
			seen[a.Bin] = true
		}
		for b := 1; b <= nbins; b++ {
			if !seen[b] {
				t.Errorf("nbins=%d: bin %d has no members for full-range input", nbins, b)
			}
		}

		// Member lists partition the records
		total := 0
		for _, members := range result.BinMembers {
			total += len(members)
		}
		if total != result.Table.Len() {
			t.Errorf("nbins=%d: member lists cover %d records, expected %d",
				nbins, total, result.Table.Len())
		}
	}
}

// TestDigitizeBinCenters verifies the centers span [-2, 2] evenly
func TestDigitizeBinCenters(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i)
	}
	table := makeTable(t, "mode", values)

	result, err := Digitize(table, "mode", 9, nil, 0)
	if err != nil {
		t.Fatalf("Digitize failed: %v", err)
	}

	if len(result.BinCenters) != 9 {
		t.Fatalf("Expected 9 centers, got %d", len(result.BinCenters))
	}
	if result.BinCenters[0] != -2 || result.BinCenters[8] != 2 {
		t.Errorf("Expected centers from -2 to 2, got %v to %v",
			result.BinCenters[0], result.BinCenters[8])
	}
	for i := 1; i < len(result.BinCenters); i++ {
		if result.BinCenters[i] <= result.BinCenters[i-1] {
			t.Errorf("Centers not monotonically increasing at %d: %v", i, result.BinCenters)
		}
	}
}

// TestDigitizeSaturation verifies that values beyond two sigma
// collapse into the extreme bins rather than failing
func TestDigitizeSaturation(t *testing.T) {
	// Mostly tight values plus two far outliers
	values := []float64{-50, -1, -0.5, -0.2, 0, 0, 0.2, 0.5, 1, 50}
	table := makeTable(t, "mode", values)

	result, err := Digitize(table, "mode", 5, nil, 0)
	if err != nil {
		t.Fatalf("Digitize failed: %v", err)
	}

	if result.Assignments[0].Bin != 1 {
		t.Errorf("Expected far-low value in bin 1, got %d", result.Assignments[0].Bin)
	}
	last := result.Assignments[len(result.Assignments)-1]
	if last.Bin != 5 {
		t.Errorf("Expected far-high value in bin 5, got %d", last.Bin)
	}
}

// TestDigitizeIdempotent verifies that digitizing twice with identical
// parameters yields identical assignments, centers and sigma
func TestDigitizeIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	values := make([]float64, 500)
	for i := range values {
		values[i] = rng.NormFloat64()
	}
	table := makeTable(t, "mode", values)

	first, err := Digitize(table, "mode", 9, nil, 1)
	if err != nil {
		t.Fatalf("First digitize failed: %v", err)
	}
	second, err := Digitize(table, "mode", 9, nil, 1)
	if err != nil {
		t.Fatalf("Second digitize failed: %v", err)
	}

	if first.Std != second.Std {
		t.Errorf("Sigma differs between runs: %v vs %v", first.Std, second.Std)
	}
	for i := range first.BinCenters {
		if first.BinCenters[i] != second.BinCenters[i] {
			t.Errorf("Center %d differs: %v vs %v", i, first.BinCenters[i], second.BinCenters[i])
		}
	}
	if len(first.Assignments) != len(second.Assignments) {
		t.Fatalf("Assignment counts differ: %d vs %d", len(first.Assignments), len(second.Assignments))
	}
	for i := range first.Assignments {
		if first.Assignments[i] != second.Assignments[i] {
			t.Errorf("Assignment %d differs: %+v vs %+v", i, first.Assignments[i], second.Assignments[i])
		}
	}
}

// TestDigitizeSyntheticPopulation runs the end-to-end scenario: 1000
// cells drawn from a standard normal, nbins=9, pct=1. The filter
// drops roughly 2% of cells, the rest partition into 9 bins with the
// central bin holding the plurality
func TestDigitizeSyntheticPopulation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	values := make([]float64, 1000)
	for i := range values {
		values[i] = rng.NormFloat64()
	}
	table := makeTable(t, "DNA_MEM_PC1", values)

	result, err := Digitize(table, "DNA_MEM_PC1", 9, nil, 1)
	if err != nil {
		t.Fatalf("Digitize failed: %v", err)
	}

	dropped := table.Len() - result.Table.Len()
	if dropped < 10 || dropped > 40 {
		t.Errorf("Expected roughly 20 dropped cells at pct=1, got %d", dropped)
	}

	freqs := result.BinFrequencies()
	for b := 1; b <= 9; b++ {
		if freqs[b] == 0 {
			t.Errorf("Bin %d is empty for a standard normal population", b)
		}
	}

	// The central bin holds the plurality of samples
	for b, n := range freqs {
		if b != 5 && n >= freqs[5] {
			t.Errorf("Bin %d (%d samples) outnumbers central bin 5 (%d samples)", b, n, freqs[5])
		}
	}
}

// TestDigitizeErrors verifies the error taxonomy
func TestDigitizeErrors(t *testing.T) {
	table := makeTable(t, "mode", []float64{1, 2, 3, 4})

	if _, err := Digitize(table, "absent", 9, nil, 1); !errors.Is(err, dataset.ErrFeatureNotFound) {
		t.Errorf("Expected ErrFeatureNotFound for absent feature, got %v", err)
	}
	if _, err := Digitize(table, "mode", 1, nil, 1); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter for nbins=1, got %v", err)
	}
	if _, err := Digitize(table, "mode", 9, nil, 99); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter for pct=99, got %v", err)
	}
}

// TestFrequenciesByStructure verifies the stratified frequency table
func TestFrequenciesByStructure(t *testing.T) {
	table := dataset.NewTable([]string{"mode"}, []string{"structure_name"})
	for i := 0; i < 40; i++ {
		structure := "TUBA1B"
		if i%2 == 0 {
			structure = "LMNB1"
		}
		v := -3 + 6*float64(i)/39
		if err := table.AppendRow(fmt.Sprintf("c%d", i), []float64{v}, []string{structure}); err != nil {
			t.Fatalf("Failed to append row: %v", err)
		}
	}

	result, err := Digitize(table, "mode", 3, nil, 0)
	if err != nil {
		t.Fatalf("Digitize failed: %v", err)
	}

	strat := result.FrequenciesByStructure("structure_name")
	if len(strat) != 2 {
		t.Fatalf("Expected 2 structure labels, got %d", len(strat))
	}
	total := 0
	for _, bins := range strat {
		for _, n := range bins {
			total += n
		}
	}
	if total != result.Table.Len() {
		t.Errorf("Stratified counts cover %d records, expected %d", total, result.Table.Len())
	}
}
