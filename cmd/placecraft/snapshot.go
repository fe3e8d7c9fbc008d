package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"placecraft/internal/profile"
	"placecraft/internal/store"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import persisted placement state",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "export <file>",
		Short: "Write every placement's state to a compressed snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotExport(args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Restore placement state from a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotImport(args[0])
		},
	})
	return cmd
}

func runSnapshotExport(path string) error {
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
	snap, err := prof.Snapshot(proj.cfg.Project)
	if err != nil {
		return err
	}
	if err := profile.WriteSnapshot(path, snap); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Exported %d placement state(s) to %s\n", len(snap.States), path)
	return nil
}

func runSnapshotImport(path string) error {
	ctx := context.Background()

	header, err := profile.ReadHeader(path)
	if err != nil {
		return err
	}

	proj, err := loadProject()
	if err != nil {
		return err
	}
	if header.Project != "" && header.Project != proj.cfg.Project {
		return fmt.Errorf("snapshot belongs to project %q, not %q", header.Project, proj.cfg.Project)
	}

	snap, err := profile.ReadSnapshot(path)
	if err != nil {
		return err
	}

	db, err := openDB(ctx, proj.cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	prof := proj.loadProfile(os.Stderr)
	if err := prof.Restore(snap); err != nil {
		return err
	}
	for _, st := range snap.States {
		p, _ := prof.Get(st.Placement)
		if err := store.Persist(ctx, db, p); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stdout, "Imported %d placement state(s) from %s (created %s)\n",
		len(snap.States), path, header.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}
