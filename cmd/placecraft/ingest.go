package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"placecraft/internal/ingest"
)

var ingestFull bool

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Synchronise the database with placement documents",
		RunE:  runIngest,
	}
	cmd.Flags().BoolVar(&ingestFull, "full", false, "Force full re-ingestion (ignore incremental hashes)")
	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	proj, err := loadProject()
	if err != nil {
		return err
	}

	db, err := openDB(ctx, proj.cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	result, err := ingest.Run(ctx, proj.cfg, proj.catalog, db, ingest.Options{Full: ingestFull})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Placements upserted: %d\n", result.PlacementsUpserted)
	fmt.Fprintf(os.Stdout, "Placements removed: %d\n", result.PlacementsRemoved)
	fmt.Fprintf(os.Stdout, "Files skipped: %d\n", result.FilesSkipped)
	if len(result.Errors) > 0 {
		fmt.Fprintf(os.Stdout, "Errors: %d\n", len(result.Errors))
		for _, err := range result.Errors {
			fmt.Fprintf(os.Stdout, "  - %v\n", err)
		}
		return fmt.Errorf("ingestion completed with errors")
	}
	return nil
}
