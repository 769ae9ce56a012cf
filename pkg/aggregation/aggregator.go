// Package aggregation orchestrates the per-bin reconstruction
// pipeline: select representative coefficients for every shape-mode
// bin, rebuild the 3D meshes of each tracked entity, compute their 2D
// projection contours, and persist one artifact set per bin together
// with a manifest row. Bins are independent units of work, so the
// same pipeline runs sequentially or fanned out over a worker pool
// with identical outputs.
package aggregation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"cellshape3d/internal/models"
	"cellshape3d/pkg/config"
	"cellshape3d/pkg/dataset"
	"cellshape3d/pkg/mesh"
	"cellshape3d/pkg/report"
	"cellshape3d/pkg/shapespace"
	"cellshape3d/pkg/shparam"
)

// Options are the recognized run options of the aggregation step.
type Options struct {
	// Distribute routes per-bin work to the worker pool instead of
	// the local sequential loop. Outputs are identical either way.
	Distribute bool

	// Overwrite recomputes bins whose manifest rows are already
	// complete; without it such bins are skipped.
	Overwrite bool
}

// Summary reports the outcome of one aggregation run.
type Summary struct {
	// RunID identifies the run on every manifest row it wrote
	RunID string

	// Processed, Skipped and Failed count bins
	Processed int
	Skipped   int
	Failed    int

	// FailedBins lists the bin indices that could not be
	// reconstructed
	FailedBins []int

	// Aggregates holds the per-bin outputs in bin order,
	// successfully processed bins only
	Aggregates []models.BinAggregate
}

// Aggregator drives the per-bin reconstruction for one digitized
// shape mode. All state is owned by the instance; nothing is shared
// across runs.
type Aggregator struct {
	cfg    *config.Config
	result *shapespace.DigitizeResult
	model  shapespace.Model
	store  *Store
	logger *slog.Logger
}

// NewAggregator creates an aggregator for one digitization result.
// The model may be nil unless map-point mode is configured.
func NewAggregator(cfg *config.Config, result *shapespace.DigitizeResult, model shapespace.Model, store *Store) *Aggregator {
	return &Aggregator{
		cfg:    cfg,
		result: result,
		model:  model,
		store:  store,
		logger: slog.Default(),
	}
}

// binOutcome carries one bin's result back from a worker.
type binOutcome struct {
	bin int
	agg *models.BinAggregate
	err error
}

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// modeIndex derives the zero-based principal-component index from a
// shape-mode feature name such as "DNA_MEM_PC1".
func modeIndex(feature string) (int, error) {
	m := trailingDigits.FindStringSubmatch(feature)
	if m == nil {
		return 0, fmt.Errorf("%w: cannot derive component index from feature %q",
			shapespace.ErrInvalidParameter, feature)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: bad component index in feature %q",
			shapespace.ErrInvalidParameter, feature)
	}
	return n - 1, nil
}

func positionColumn(entity, axis string) string {
	return fmt.Sprintf("%s_position_%s_centroid_lcc", entity, axis)
}

func angleColumn(entity string) string {
	return fmt.Sprintf("%s_shcoeffs_transform_angle_lcc", entity)
}

// Run executes the aggregation. Schema and configuration errors abort
// the whole run; per-bin geometric failures are isolated, flagged in
// the manifest, and reported in the summary.
func (a *Aggregator) Run(ctx context.Context, opts Options) (*Summary, error) {
	spaceCfg := a.cfg.ShapeSpace
	recCfg := a.cfg.Reconstruction
	entities := recCfg.Entities
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: no entities configured", shapespace.ErrInvalidParameter)
	}
	if spaceCfg.MapPointMode && a.model == nil {
		return nil, fmt.Errorf("%w: map-point mode requires a fitted shape-space model",
			shapespace.ErrInvalidParameter)
	}

	outDir := a.cfg.Aggregation.OutputDir
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	// Representative coefficient source: either the exact map-point
	// rows from the inverse shape-space transform, or the raw table
	// whose member rows are averaged per bin.
	coeffSource := a.result.Table
	if spaceCfg.MapPointMode {
		pc, err := modeIndex(spaceCfg.Feature)
		if err != nil {
			return nil, err
		}
		coords := make([]float64, len(a.result.BinCenters))
		for i, c := range a.result.BinCenters {
			// Bin centers live on the standardized axis; scale by
			// the mode's standard deviation to get PC coordinates
			coords[i] = c * a.result.Std
		}
		coeffSource, err = shapespace.InverseTransformMode(a.model, coords, pc)
		if err != nil {
			return nil, err
		}
	}

	// A wrong prefix fails here, before any bin work starts
	schemas := make(map[string]*shapespace.CoefficientSchema, len(entities))
	for _, entity := range entities {
		schema, err := shapespace.NewCoefficientSchema(coeffSource, entity.Prefix)
		if err != nil {
			return nil, err
		}
		schemas[entity.Name] = schema
	}

	// Validate the frame-correction columns up front: a missing
	// position schema is a configuration error, not a bin failure
	if recCfg.FixNestedPosition && len(entities) >= 2 {
		outer, nested := entities[0].Name, entities[1].Name
		required := []string{angleColumn(outer)}
		for _, axis := range []string{"x", "y", "z"} {
			required = append(required, positionColumn(outer, axis), positionColumn(nested, axis))
		}
		for _, col := range required {
			if !a.result.Table.HasColumn(col) {
				return nil, fmt.Errorf("%w: %s (required for nested position fix)",
					dataset.ErrFeatureNotFound, col)
			}
		}
	}

	summary := &Summary{RunID: uuid.NewString()}

	// Decide which bins to process, honoring the overwrite policy
	var bins []int
	for bin := 1; bin <= spaceCfg.NBins; bin++ {
		if !spaceCfg.MapPointMode && len(a.result.BinMembers[bin]) == 0 {
			// Nothing to average for an empty bin
			summary.Skipped++
			continue
		}
		if !opts.Overwrite {
			complete, err := a.store.BinComplete(ctx, spaceCfg.Feature, bin, len(entities))
			if err != nil {
				return nil, err
			}
			if complete {
				summary.Skipped++
				continue
			}
		}
		bins = append(bins, bin)
	}

	outcomes := make(map[int]binOutcome, len(bins))
	if opts.Distribute {
		a.runDistributed(ctx, bins, coeffSource, schemas, summary.RunID, outcomes)
	} else {
		for _, bin := range bins {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			agg, err := a.processBin(ctx, bin, coeffSource, schemas, summary.RunID)
			outcomes[bin] = binOutcome{bin: bin, agg: agg, err: err}
		}
	}

	// Collect in bin order so both execution modes report
	// identically
	for _, bin := range bins {
		res := outcomes[bin]
		if res.err != nil {
			summary.Failed++
			summary.FailedBins = append(summary.FailedBins, bin)
			a.logger.Warn("bin reconstruction failed",
				"feature", spaceCfg.Feature, "bin", bin, "error", res.err)
			continue
		}
		summary.Processed++
		summary.Aggregates = append(summary.Aggregates, *res.agg)
	}
	sort.Ints(summary.FailedBins)

	if err := a.writeReports(outDir); err != nil {
		return nil, err
	}

	return summary, nil
}

// runDistributed fans the bins out to the worker pool and waits for
// every outcome. Each bin is an independent unit of work; the only
// shared state is the manifest store, which is keyed by bin.
func (a *Aggregator) runDistributed(ctx context.Context, bins []int, coeffSource *dataset.Table, schemas map[string]*shapespace.CoefficientSchema, runID string, outcomes map[int]binOutcome) {
	workers := a.cfg.Aggregation.NumWorkers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	resultChan := make(chan binOutcome)

	for w := 0; w < workers; w++ {
		go func() {
			for bin := range jobs {
				if err := ctx.Err(); err != nil {
					resultChan <- binOutcome{bin: bin, err: err}
					continue
				}
				agg, err := a.processBin(ctx, bin, coeffSource, schemas, runID)
				resultChan <- binOutcome{bin: bin, agg: agg, err: err}
			}
		}()
	}

	go func() {
		for _, bin := range bins {
			jobs <- bin
		}
		close(jobs)
	}()

	completed := 0
	for completed < len(bins) {
		res := <-resultChan
		completed++
		outcomes[res.bin] = res

		progress := float64(completed) / float64(len(bins)) * 100
		fmt.Printf("\rProcessing bins: %.1f%% complete", progress)
	}
	if len(bins) > 0 {
		fmt.Println()
	}
}

// processBin runs the full pipeline for one bin: representative row,
// coefficient matrices, mesh reconstruction, projection contours,
// and persistence. Identical inputs always produce identical outputs,
// so a failed bin can be retried without side effects on others.
func (a *Aggregator) processBin(ctx context.Context, bin int, coeffSource *dataset.Table, schemas map[string]*shapespace.CoefficientSchema, runID string) (*models.BinAggregate, error) {
	spaceCfg := a.cfg.ShapeSpace
	recCfg := a.cfg.Reconstruction
	entities := recCfg.Entities

	members := a.result.BinMembers[bin]
	memberRows := a.result.Table.RowsByID(members)

	var repRow dataset.Row
	if spaceCfg.MapPointMode {
		repRow = coeffSource.Row(bin - 1)
	} else {
		var err error
		repRow, err = a.result.Table.MeanRow(memberRows)
		if err != nil {
			return nil, fmt.Errorf("bin %d: %v", bin, err)
		}
	}

	// Nested-entity centroid expressed in the outer entity's aligned
	// frame, averaged over the bin's cells
	var offset [3]float64
	if recCfg.FixNestedPosition && len(entities) >= 2 && len(memberRows) > 0 {
		var err error
		offset, err = a.nestedOffset(entities[0].Name, entities[1].Name, memberRows)
		if err != nil {
			return nil, fmt.Errorf("bin %d: %v", bin, err)
		}
	}

	agg := &models.BinAggregate{
		Bin:          bin,
		Center:       a.result.BinCenters[bin-1],
		NSamples:     len(memberRows),
		NestedOffset: offset,
	}

	for i, entity := range entities {
		entResult, err := a.processEntity(ctx, bin, entity, i > 0, repRow, schemas[entity.Name], agg, runID)
		if err != nil {
			// Flag the bin in the manifest before giving up on it
			failed := ManifestRow{
				Feature:  spaceCfg.Feature,
				Bin:      bin,
				Entity:   entity.Name,
				RunID:    runID,
				Center:   agg.Center,
				NSamples: agg.NSamples,
				Offset:   offset,
				Status:   StatusFailed,
				Error:    err.Error(),
			}
			if storeErr := a.store.Upsert(ctx, failed); storeErr != nil {
				return nil, storeErr
			}
			return nil, err
		}
		agg.Entities = append(agg.Entities, *entResult)
	}

	return agg, nil
}

// contourArtifact is the persisted JSON form of one entity's three
// projection contours.
type contourArtifact struct {
	Entity      string                    `json:"entity"`
	Bin         int                       `json:"bin"`
	Bounds      [6]float64                `json:"bounds"`
	Projections map[string]models.Contour `json:"projections"`
}

func (a *Aggregator) processEntity(ctx context.Context, bin int, entity config.Entity, nested bool, repRow dataset.Row, schema *shapespace.CoefficientSchema, agg *models.BinAggregate, runID string) (*models.EntityResult, error) {
	spaceCfg := a.cfg.ShapeSpace
	recCfg := a.cfg.Reconstruction

	matrix, err := shapespace.BuildCoefficientMatrix(repRow, schema, recCfg.LMax)
	if err != nil {
		return nil, err
	}

	surface, err := shparam.Reconstruct(matrix, recCfg.ThetaResolution, recCfg.PhiResolution)
	if err != nil {
		return nil, err
	}

	// Meshes are centered at the origin when reconstructed; shift
	// the nested entity by the bin's averaged frame-corrected offset
	if nested {
		surface.Translate(agg.NestedOffset)
	}

	artifact := contourArtifact{
		Entity:      entity.Name,
		Bin:         bin,
		Projections: make(map[string]models.Contour, len(mesh.Projections)),
	}
	var bounds [6]float64
	for _, proj := range mesh.Projections {
		points, b, err := mesh.PlaneIntersection(surface, proj)
		if err != nil {
			return nil, err
		}
		bounds = b
		artifact.Projections[proj.String()] = models.Contour{Points: points}
	}
	artifact.Bounds = bounds

	base := fmt.Sprintf("%s_%s_%02d", strings.ToUpper(entity.Name), spaceCfg.Feature, bin)
	meshPath := filepath.Join(a.cfg.Aggregation.OutputDir, base+".stl")
	contourPath := filepath.Join(a.cfg.Aggregation.OutputDir, base+"_contours.json")

	if err := mesh.SaveToSTL(meshPath, surface.ToTriangles()); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode contours: %w", err)
	}
	if err := os.WriteFile(contourPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write contours: %w", err)
	}

	row := ManifestRow{
		Feature:     spaceCfg.Feature,
		Bin:         bin,
		Entity:      entity.Name,
		RunID:       runID,
		Center:      agg.Center,
		NSamples:    agg.NSamples,
		MeshPath:    meshPath,
		ContourPath: contourPath,
		Offset:      agg.NestedOffset,
		Status:      StatusComplete,
	}
	if err := a.store.Upsert(ctx, row); err != nil {
		return nil, err
	}

	return &models.EntityResult{
		Entity:      entity.Name,
		MeshPath:    meshPath,
		ContourPath: contourPath,
		Bounds:      bounds,
	}, nil
}

// nestedOffset averages, over the given rows, the nested entity's
// centroid re-expressed in the outer entity's rotated and aligned
// frame: translate by the outer centroid, then rotate in-plane by the
// per-cell alignment angle.
func (a *Aggregator) nestedOffset(outer, nested string, rows []int) ([3]float64, error) {
	t := a.result.Table
	var sum [3]float64
	for _, r := range rows {
		var pos, cm [3]float64
		for ax, axis := range []string{"x", "y", "z"} {
			v, err := t.Value(r, positionColumn(nested, axis))
			if err != nil {
				return sum, err
			}
			pos[ax] = v
			c, err := t.Value(r, positionColumn(outer, axis))
			if err != nil {
				return sum, err
			}
			cm[ax] = c
		}
		angle, err := t.Value(r, angleColumn(outer))
		if err != nil {
			return sum, err
		}
		fixed := alignedFrame(pos, angle, cm)
		for ax := 0; ax < 3; ax++ {
			sum[ax] += fixed[ax]
		}
	}
	for ax := 0; ax < 3; ax++ {
		sum[ax] /= float64(len(rows))
	}
	return sum, nil
}

// alignedFrame converts an xyz coordinate into the coordinate system
// of the aligned outer entity, defined by the alignment angle in
// degrees and the outer centroid cm: 2D in-plane rotation after
// translation, z passes through unchanged.
func alignedFrame(pos [3]float64, angleDeg float64, cm [3]float64) [3]float64 {
	angle := math.Pi * angleDeg / 180.0
	dx := pos[0] - cm[0]
	dy := pos[1] - cm[1]
	dz := pos[2] - cm[2]
	return [3]float64{
		math.Cos(angle)*dx + math.Sin(angle)*dy,
		-math.Sin(angle)*dx + math.Cos(angle)*dy,
		dz,
	}
}

// writeReports persists the diagnostic frequency tables next to the
// bin artifacts.
func (a *Aggregator) writeReports(outDir string) error {
	feature := a.cfg.ShapeSpace.Feature
	path := filepath.Join(outDir, fmt.Sprintf("%s_freqs.txt", feature))
	if err := report.Save(path, report.BinFrequencies(feature, a.result)); err != nil {
		return err
	}
	if a.result.Table.HasStringColumn("structure_name") {
		path = filepath.Join(outDir, fmt.Sprintf("%s_freqs_by_structure.txt", feature))
		rendered := report.BinFrequenciesByStructure(feature, "structure_name", a.result)
		if err := report.Save(path, rendered); err != nil {
			return err
		}
	}
	return nil
}
