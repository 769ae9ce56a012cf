package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeCSV drops a manifest file into a temp dir and returns its path
func writeCSV(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.csv")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("Failed to write manifest: %v", err)
	}
	return path
}

// TestLoadManifest verifies column classification: numeric columns are
// parsed, everything else is kept as strings keyed by the id column
func TestLoadManifest(t *testing.T) {
	path := writeCSV(t, "CellId,DNA_MEM_PC1,structure_name,PathToRepresentationFile\n"+
		"cell_a,1.5,TUBA1B,/data/a.tif\n"+
		"cell_b,-0.25,LMNB1,/data/b.tif\n")

	table, err := LoadManifest(path, "CellId")
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}

	if table.Len() != 2 {
		t.Fatalf("Expected 2 records, got %d", table.Len())
	}
	if table.CellIDs[0] != "cell_a" || table.CellIDs[1] != "cell_b" {
		t.Errorf("Unexpected row keys: %v", table.CellIDs)
	}

	if !table.HasColumn("DNA_MEM_PC1") {
		t.Error("Expected DNA_MEM_PC1 to classify as numeric")
	}
	v, err := table.Value(1, "DNA_MEM_PC1")
	if err != nil || v != -0.25 {
		t.Errorf("Expected DNA_MEM_PC1 = -0.25 for cell_b, got %v (err=%v)", v, err)
	}

	if !table.HasStringColumn("structure_name") || !table.HasStringColumn("PathToRepresentationFile") {
		t.Error("Expected structure_name and PathToRepresentationFile to classify as strings")
	}
	if got := table.StringValue(0, "structure_name"); got != "TUBA1B" {
		t.Errorf("Expected structure TUBA1B, got %q", got)
	}
}

// TestLoadManifestEmptyNumericCells verifies empty cells in a numeric
// column load as zero rather than demoting the column to strings
func TestLoadManifestEmptyNumericCells(t *testing.T) {
	path := writeCSV(t, "CellId,mem_shcoeffs_L0M0C_lcc\ncell_a,2.5\ncell_b,\n")

	table, err := LoadManifest(path, "CellId")
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if !table.HasColumn("mem_shcoeffs_L0M0C_lcc") {
		t.Fatal("Expected column to stay numeric with empty cells present")
	}
	v, _ := table.Value(1, "mem_shcoeffs_L0M0C_lcc")
	if v != 0 {
		t.Errorf("Expected empty cell to load as 0, got %v", v)
	}
}

// TestLoadManifestMissingFile verifies the absent-file error identity
func TestLoadManifestMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.csv")
	if _, err := LoadManifest(path, "CellId"); !errors.Is(err, ErrMissingManifest) {
		t.Errorf("Expected ErrMissingManifest, got %v", err)
	}
}

// TestLoadManifestMissingIDColumn verifies the id column is required
func TestLoadManifestMissingIDColumn(t *testing.T) {
	path := writeCSV(t, "NotTheId,value\nx,1\n")
	if _, err := LoadManifest(path, "CellId"); !errors.Is(err, ErrFeatureNotFound) {
		t.Errorf("Expected ErrFeatureNotFound for absent id column, got %v", err)
	}
}
