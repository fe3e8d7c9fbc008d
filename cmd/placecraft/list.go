package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	var layer string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ingested placements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(layer)
		},
	}
	cmd.Flags().StringVar(&layer, "layer", "", "Layer to filter")
	return cmd
}

func runList(layer string) error {
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

	placements, err := db.ListPlacements(ctx, layer)
	if err != nil {
		return err
	}
	if len(placements) == 0 {
		fmt.Fprintln(os.Stdout, "No placements found.")
		return nil
	}
	for _, p := range placements {
		fmt.Fprintf(os.Stdout, "%s [%s]: %s\n", p.Name, p.Layer, strings.Join(p.Items, ", "))
	}
	return nil
}

func searchCmd() *cobra.Command {
	var layer string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over placement names, items and descriptions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(strings.Join(args, " "), layer)
		},
	}
	cmd.Flags().StringVar(&layer, "layer", "", "Layer to filter")
	return cmd
}

func runSearch(query, layer string) error {
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

	results, err := db.Search(ctx, query, layer)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(os.Stdout, "No results found.")
		return nil
	}
	for _, r := range results {
		fmt.Fprintf(os.Stdout, "%s [%s] (score %.2f)\n", r.Name, r.Layer, r.Score)
		if r.Snippet != "" {
			fmt.Fprintf(os.Stdout, "  %s\n", r.Snippet)
		}
	}
	return nil
}
