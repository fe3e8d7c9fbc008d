package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"placecraft/internal/placement"
	"placecraft/internal/store"
)

func stateCmd() *cobra.Command {
	var events int
	cmd := &cobra.Command{
		Use:   "state <placement>",
		Short: "Show the persisted state and visit history of a placement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runState(args[0], events)
		},
	}
	cmd.Flags().IntVar(&events, "events", store.DefaultEventLimit, "Number of visit events to show")
	return cmd
}

func runState(name string, events int) error {
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

	prof := proj.loadProfile(os.Stderr)
	if p, ok := prof.Get(name); ok {
		name = p.Name()
	}

	st, err := db.LoadState(ctx, name)
	if err != nil {
		return err
	}
	if st == nil {
		fmt.Fprintf(os.Stdout, "No state recorded for %q.\n", name)
		return nil
	}

	fmt.Fprintf(os.Stdout, "%s\n", st.Placement)
	fmt.Fprintf(os.Stdout, "  Visit: %s\n", st.Visit)
	if len(st.Obtained) > 0 {
		fmt.Fprintf(os.Stdout, "  Obtained: %s\n", strings.Join(st.Obtained, ", "))
	}
	for _, rec := range st.Tags {
		fmt.Fprintf(os.Stdout, "  Tag: %s %s\n", rec.Type, rec.Data)
	}
	for loc, recs := range st.Locations {
		for _, rec := range recs {
			fmt.Fprintf(os.Stdout, "  Tag @ %s: %s %s\n", loc, rec.Type, rec.Data)
		}
	}

	history, err := db.ListVisitEvents(ctx, st.Placement, events)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return nil
	}
	fmt.Fprintln(os.Stdout, "Events:")
	for _, e := range history {
		fmt.Fprintf(os.Stdout, "  [%s] +%s (was %s)\n",
			e.At.Format(time.RFC3339),
			placement.VisitState(e.Added),
			placement.VisitState(e.Previous))
	}
	return nil
}
