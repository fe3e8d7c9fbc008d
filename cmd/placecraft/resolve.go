package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"placecraft/internal/container"
	"placecraft/internal/placement"
	"placecraft/internal/resolver"
)

func resolveCmd() *cobra.Command {
	var location string
	var realize bool
	cmd := &cobra.Command{
		Use:   "resolve <placement>",
		Short: "Explain which container a placement resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(args[0], location, realize)
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "Location name (defaults to every location)")
	cmd.Flags().BoolVar(&realize, "realize", false, "Also check that the container can be created or modified")
	return cmd
}

func runResolve(name, location string, realize bool) error {
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

	prof, err := proj.loadSession(ctx, os.Stderr, db)
	if err != nil {
		return err
	}
	p, err := prof.Lookup(name)
	if err != nil {
		return err
	}

	var locs []placement.Location
	switch {
	case location != "":
		loc, ok := p.Location(location)
		if !ok {
			return fmt.Errorf("placement %s has no location %s", p.Name(), location)
		}
		locs = []placement.Location{loc}
	case len(p.Locations()) == 0:
		locs = []placement.Location{nil}
	default:
		locs = p.Locations()
	}

	res := resolver.New(proj.registry)
	for _, loc := range locs {
		d := res.Decide(p, loc)
		info := res.Info(p, loc, d.Container)
		where := p.Name()
		if info.Location != "" {
			where = fmt.Sprintf("%s @ %s", p.Name(), info.Location)
		}
		fmt.Fprintf(os.Stdout, "%s\n", where)
		fmt.Fprintf(os.Stdout, "  Container: %s\n", d.Container)
		fmt.Fprintf(os.Stdout, "  Step: %s\n", d.Step)
		if names := proj.catalog.Names(container.Capability(d.Requested)); len(names) > 0 {
			fmt.Fprintf(os.Stdout, "  Requested: %s\n", strings.Join(names, ", "))
		}
		fmt.Fprintf(os.Stdout, "  Items: %s\n", strings.Join(info.Items, ", "))
		fmt.Fprintf(os.Stdout, "  Fling: %s\n", info.Fling)
		if info.Cost != "" {
			fmt.Fprintf(os.Stdout, "  Cost: %s\n", info.Cost)
		}
		for _, w := range d.Warnings {
			fmt.Fprintf(os.Stdout, "  Warning: %s\n", w)
		}
		if realize {
			if _, err := res.Realize(ctx, p, loc); err != nil {
				fmt.Fprintf(os.Stdout, "  Realize: %v\n", err)
			} else {
				fmt.Fprintln(os.Stdout, "  Realize: ok")
			}
		}
	}
	return nil
}
