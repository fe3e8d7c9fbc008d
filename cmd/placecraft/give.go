package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"placecraft/internal/give"
	"placecraft/internal/placement"
	"placecraft/internal/resolver"
	"placecraft/internal/store"
)

func giveCmd() *cobra.Command {
	var location string
	cmd := &cobra.Command{
		Use:   "give <placement>",
		Short: "Give every unobtained item of a placement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGive(args[0], location)
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "Location whose container delivers the items")
	return cmd
}

func runGive(name, location string) error {
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
	loc, err := pickLocation(p, location)
	if err != nil {
		return err
	}

	stop := store.RecordVisits(ctx, db, nil)
	defer stop()

	res := resolver.New(proj.registry)
	d := res.Decide(p, loc)
	info := res.Info(p, loc, d.Container)

	chain := p.GiveAll(give.Info{Container: d.Container, Fling: info.Fling}, nil)
	given := chain.Dispatched()
	if given == 0 {
		fmt.Fprintf(os.Stdout, "%s has nothing left to give.\n", p.Name())
		return nil
	}

	if err := store.Persist(ctx, db, p); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Gave %d item(s) from %s via %s.\n", given, p.Name(), d.Container)
	fmt.Fprintf(os.Stdout, "Visit: %s\n", p.Visit())
	return nil
}

func visitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "visit <placement> <flag>...",
		Short: "Add visit flags to a placement",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVisit(args[0], args[1:])
		},
	}
}

func runVisit(name string, flags []string) error {
	ctx := context.Background()

	mask, err := placement.ParseVisitFlags(flags)
	if err != nil {
		return err
	}

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

	stop := store.RecordVisits(ctx, db, nil)
	defer stop()

	before := p.Visit()
	p.AddVisitFlag(mask)
	if p.Visit() == before {
		fmt.Fprintf(os.Stdout, "%s already has %s.\n", p.Name(), mask)
		return nil
	}
	if err := store.Persist(ctx, db, p); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Visit: %s\n", p.Visit())
	return nil
}

func pickLocation(p *placement.Placement, name string) (placement.Location, error) {
	if name != "" {
		loc, ok := p.Location(name)
		if !ok {
			return nil, fmt.Errorf("placement %s has no location %s", p.Name(), name)
		}
		return loc, nil
	}
	if locs := p.Locations(); len(locs) > 0 {
		return locs[0], nil
	}
	return nil, nil
}
