package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cellshape3d/pkg/aggregation"
	"cellshape3d/pkg/config"
	"cellshape3d/pkg/dataset"
	"cellshape3d/pkg/shapespace"
)

func newRunCommand(configFlag *string) *cobra.Command {
	var distribute bool
	var overwrite bool
	var workers int
	var modelPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Digitize the configured shape mode and reconstruct one mesh set per bin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configFlag)
			if err != nil {
				return err
			}
			if workers > 0 {
				cfg.Aggregation.NumWorkers = workers
			}
			return runAggregation(cfg, modelPath, aggregation.Options{
				Distribute: distribute,
				Overwrite:  overwrite,
			})
		},
	}

	cmd.Flags().BoolVar(&distribute, "distribute", false, "Process bins on the worker pool instead of sequentially")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Recompute bins whose artifacts already exist")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of workers in distributed mode (default: configured value)")
	cmd.Flags().StringVar(&modelPath, "model", "", "Fitted shape-space model JSON (required for map-point mode)")

	return cmd
}

func runAggregation(cfg *config.Config, modelPath string, opts aggregation.Options) error {
	fmt.Println("================================")
	fmt.Println("CELL SHAPE-SPACE AGGREGATION")
	fmt.Println("================================")

	startTime := time.Now()

	// Step 1: Load the two per-cell manifests and join them
	fmt.Println("Step 1: Loading input manifests...")
	shapeTable, err := dataset.LoadManifest(cfg.Manifests.ShapeModePath, "CellId")
	if err != nil {
		return err
	}
	paramTable, err := dataset.LoadManifest(cfg.Manifests.ParameterizationPath, "CellId")
	if err != nil {
		return err
	}
	table, err := shapeTable.InnerJoin(paramTable, []string{"PathToRepresentationFile"})
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d cells (%d after join)\n", shapeTable.Len(), table.Len())

	// Step 2: Filter extremes and digitize the shape mode
	fmt.Printf("Step 2: Digitizing %s into %d bins...\n", cfg.ShapeSpace.Feature, cfg.ShapeSpace.NBins)
	result, err := shapespace.Digitize(
		table,
		cfg.ShapeSpace.Feature,
		cfg.ShapeSpace.NBins,
		cfg.ShapeSpace.FilterFeatures,
		cfg.ShapeSpace.FilterPercentile,
	)
	if err != nil {
		return err
	}
	fmt.Printf("Retained %d cells, sigma=%.4f\n", result.Table.Len(), result.Std)

	// Step 3: Optional fitted model for map-point mode
	var model shapespace.Model
	if modelPath != "" {
		fmt.Println("Step 3: Loading fitted shape-space model...")
		pca, err := shapespace.LoadPCAModel(modelPath)
		if err != nil {
			return err
		}
		model = pca
	}

	// Step 4: Aggregate per bin
	fmt.Println("Step 4: Reconstructing representative meshes per bin...")
	store, err := aggregation.OpenStore(cfg.Aggregation.OutputDir)
	if err != nil {
		return err
	}
	defer store.Close()

	agg := aggregation.NewAggregator(cfg, result, model, store)
	summary, err := agg.Run(context.Background(), opts)
	if err != nil {
		return err
	}

	fmt.Printf("\nAggregation completed in %.2f seconds\n", time.Since(startTime).Seconds())
	fmt.Printf("Run ID: %s\n", summary.RunID)
	fmt.Printf("Bins processed: %d, skipped: %d, failed: %d\n",
		summary.Processed, summary.Skipped, summary.Failed)
	if len(summary.FailedBins) > 0 {
		fmt.Printf("Failed bins: %v\n", summary.FailedBins)
	}
	fmt.Printf("Manifest: %s\n", store.Path())

	return nil
}
