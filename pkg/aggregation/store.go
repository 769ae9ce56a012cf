package aggregation

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current manifest schema version. Bump this
// when the schema changes; stale databases are rejected.
const schemaVersion = 1

// Row status values.
const (
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// ManifestRow is one tabular manifest record: the durable output of
// one (bin, entity) reconstruction.
type ManifestRow struct {
	Feature     string
	Bin         int
	Entity      string
	RunID       string
	Center      float64
	NSamples    int
	MeshPath    string
	ContourPath string
	Offset      [3]float64
	Status      string
	Error       string
}

// Store manages the per-bin output manifest backed by SQLite. Rows
// are keyed by (feature, bin, entity), so concurrent workers can
// append safely as long as no two workers process the same bin.
type Store struct {
	db   *sql.DB
	path string
}

// OpenStore initializes or connects to the manifest database under
// the given output directory.
func OpenStore(outputDir string) (*Store, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("ensure output directory: %w", err)
	}

	dbPath := filepath.Join(outputDir, "manifest.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the manifest database file.
func (s *Store) Path() string { return s.path }

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("manifest schema version mismatch: database has %d, expected %d (delete %s to reset)",
			version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Upsert writes or replaces one manifest row. Each (feature, bin,
// entity) key has exactly one writer per run, so a replace is always
// a whole-row overwrite rather than a merge.
func (s *Store) Upsert(ctx context.Context, row ManifestRow) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO bin_manifest (
            feature, bin, entity, run_id, center, nsamples,
            mesh_path, contour_path, offset_x, offset_y, offset_z,
            status, error, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (feature, bin, entity) DO UPDATE SET
            run_id = excluded.run_id,
            center = excluded.center,
            nsamples = excluded.nsamples,
            mesh_path = excluded.mesh_path,
            contour_path = excluded.contour_path,
            offset_x = excluded.offset_x,
            offset_y = excluded.offset_y,
            offset_z = excluded.offset_z,
            status = excluded.status,
            error = excluded.error,
            created_at = excluded.created_at`,
		row.Feature,
		row.Bin,
		row.Entity,
		row.RunID,
		row.Center,
		row.NSamples,
		row.MeshPath,
		row.ContourPath,
		row.Offset[0],
		row.Offset[1],
		row.Offset[2],
		row.Status,
		nullableString(row.Error),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert manifest row (%s bin %d %s): %w", row.Feature, row.Bin, row.Entity, err)
	}
	return nil
}

// BinComplete reports whether a bin already has a complete row for
// every one of the expected entities. Used to enforce the overwrite
// policy: complete bins are skipped unless overwrite is requested.
func (s *Store) BinComplete(ctx context.Context, feature string, bin, entityCount int) (bool, error) {
	var complete int
	err := s.db.QueryRowContext(
		ctx,
		"SELECT COUNT(1) FROM bin_manifest WHERE feature = ? AND bin = ? AND status = ?",
		feature, bin, StatusComplete,
	).Scan(&complete)
	if err != nil {
		return false, fmt.Errorf("query bin completeness: %w", err)
	}
	return complete >= entityCount, nil
}

// Rows returns all manifest rows for a feature ordered by bin and
// entity.
func (s *Store) Rows(ctx context.Context, feature string) ([]ManifestRow, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT feature, bin, entity, run_id, center, nsamples,
                mesh_path, contour_path, offset_x, offset_y, offset_z,
                status, error
         FROM bin_manifest WHERE feature = ? ORDER BY bin, entity`,
		feature,
	)
	if err != nil {
		return nil, fmt.Errorf("query manifest rows: %w", err)
	}
	defer rows.Close()

	var out []ManifestRow
	for rows.Next() {
		var r ManifestRow
		var meshPath, contourPath, errMsg sql.NullString
		if err := rows.Scan(
			&r.Feature, &r.Bin, &r.Entity, &r.RunID, &r.Center, &r.NSamples,
			&meshPath, &contourPath, &r.Offset[0], &r.Offset[1], &r.Offset[2],
			&r.Status, &errMsg,
		); err != nil {
			return nil, fmt.Errorf("scan manifest row: %w", err)
		}
		r.MeshPath = meshPath.String
		r.ContourPath = contourPath.String
		r.Error = errMsg.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
