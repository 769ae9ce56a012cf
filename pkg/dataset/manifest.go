package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
)

// ErrMissingManifest indicates a required manifest file is absent on
// disk. Fatal to the run: the pipeline cannot proceed without its
// input schema.
var ErrMissingManifest = errors.New("missing manifest")

// LoadManifest reads a per-cell CSV manifest into a Table. The column
// named by idColumn becomes the row key; every remaining column whose
// values all parse as floats becomes a numeric column, the rest become
// string columns. Empty numeric cells are treated as zero, matching
// the "missing means zero" convention of the coefficient tables.
func LoadManifest(path, idColumn string) (*Table, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrMissingManifest, path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("manifest %s is empty", path)
	}

	header := records[0]
	idIdx := -1
	for i, name := range header {
		if name == idColumn {
			idIdx = i
		}
	}
	if idIdx < 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrFeatureNotFound, idColumn, path)
	}

	rows := records[1:]

	// Classify each column: numeric when every non-empty cell parses
	// as a float, string otherwise.
	numericCol := make([]bool, len(header))
	for c := range header {
		if c == idIdx {
			continue
		}
		numericCol[c] = true
		for _, rec := range rows {
			if c >= len(rec) || rec[c] == "" {
				continue
			}
			if _, err := strconv.ParseFloat(rec[c], 64); err != nil {
				numericCol[c] = false
				break
			}
		}
	}

	var numericCols, stringCols []string
	for c, name := range header {
		if c == idIdx {
			continue
		}
		if numericCol[c] {
			numericCols = append(numericCols, name)
		} else {
			stringCols = append(stringCols, name)
		}
	}

	table := NewTable(numericCols, stringCols)
	for _, rec := range rows {
		numeric := make([]float64, 0, len(numericCols))
		strs := make([]string, 0, len(stringCols))
		for c := range header {
			if c == idIdx {
				continue
			}
			cell := ""
			if c < len(rec) {
				cell = rec[c]
			}
			if numericCol[c] {
				v := 0.0
				if cell != "" {
					v, _ = strconv.ParseFloat(cell, 64)
				}
				numeric = append(numeric, v)
			} else {
				strs = append(strs, cell)
			}
		}
		if err := table.AppendRow(rec[idIdx], numeric, strs); err != nil {
			return nil, fmt.Errorf("manifest %s: %w", path, err)
		}
	}

	return table, nil
}
