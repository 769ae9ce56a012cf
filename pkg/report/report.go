// Package report renders the diagnostic per-bin frequency report:
// how many cells fell into each shape-mode bin, optionally stratified
// by a secondary categorical field such as structure_name.
package report

import (
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"cellshape3d/pkg/shapespace"
)

// BinFrequencies renders the per-bin sample counts of a digitization
// pass as a text table.
func BinFrequencies(feature string, result *shapespace.DigitizeResult) string {
	freqs := result.BinFrequencies()

	bins := make([]int, 0, len(freqs))
	for b := range freqs {
		bins = append(bins, b)
	}
	sort.Ints(bins)

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{fmt.Sprintf("%s_bin", feature), "samples"})
	for _, b := range bins {
		tw.AppendRow(table.Row{b, freqs[b]})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

// BinFrequenciesByStructure renders the per-bin counts stratified by
// the given categorical column: one row per structure label, one
// column per bin.
func BinFrequenciesByStructure(feature, column string, result *shapespace.DigitizeResult) string {
	strat := result.FrequenciesByStructure(column)

	labels := make([]string, 0, len(strat))
	for label := range strat {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	nbins := len(result.BinCenters)
	header := table.Row{column}
	for b := 1; b <= nbins; b++ {
		header = append(header, fmt.Sprintf("bin %d", b))
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(header)
	for _, label := range labels {
		row := table.Row{label}
		for b := 1; b <= nbins; b++ {
			row = append(row, strat[label][b])
		}
		tw.AppendRow(row)
	}
	return tw.Render()
}

// Save writes a rendered report next to the aggregation outputs.
func Save(path, rendered string) error {
	if err := os.WriteFile(path, []byte(rendered+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
