package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"placecraft/internal/ingest"
	"placecraft/internal/validate"
)

func validateCmd() *cobra.Command {
	var showResolutions bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check placements against the container catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(showResolutions)
		},
	}
	cmd.Flags().BoolVar(&showResolutions, "resolutions", false, "Print the resolved container for every location")
	return cmd
}

func runValidate(showResolutions bool) error {
	ctx := context.Background()

	proj, err := loadProject()
	if err != nil {
		return err
	}

	prof, loadErrs := ingest.Load(proj.cfg, proj.catalog)
	report, err := validate.Run(ctx, prof, proj.registry, loadErrs)
	if err != nil {
		return err
	}

	if showResolutions {
		fmt.Fprintf(os.Stdout, "Resolutions (%d):\n", len(report.Resolutions))
		for _, r := range report.Resolutions {
			where := r.Placement
			if r.Location != "" {
				where = fmt.Sprintf("%s @ %s", r.Placement, r.Location)
			}
			fmt.Fprintf(os.Stdout, "  - %s -> %s (%s)\n", where, r.Container, r.Step)
		}
		fmt.Fprintln(os.Stdout, "")
	}

	var errorIssues []validate.Issue
	var warnIssues []validate.Issue
	for _, issue := range report.Issues {
		switch issue.Severity {
		case validate.SeverityError:
			errorIssues = append(errorIssues, issue)
		case validate.SeverityWarn:
			warnIssues = append(warnIssues, issue)
		}
	}

	if len(errorIssues) == 0 && len(warnIssues) == 0 {
		fmt.Fprintln(os.Stdout, "No issues found.")
		return nil
	}

	if len(errorIssues) > 0 {
		fmt.Fprintf(os.Stdout, "Errors (%d):\n", len(errorIssues))
		printIssues(os.Stdout, errorIssues)
	}
	if len(warnIssues) > 0 {
		if len(errorIssues) > 0 {
			fmt.Fprintln(os.Stdout, "")
		}
		fmt.Fprintf(os.Stdout, "Warnings (%d):\n", len(warnIssues))
		printIssues(os.Stdout, warnIssues)
	}

	if report.HasErrors() {
		return fmt.Errorf("validation found errors")
	}
	return nil
}

func printIssues(out io.Writer, issues []validate.Issue) {
	for _, issue := range issues {
		where := issue.Placement
		if issue.Location != "" {
			where = fmt.Sprintf("%s @ %s", issue.Placement, issue.Location)
		}
		if where == "" {
			fmt.Fprintf(out, "  - %s (%s)\n", issue.Message, issue.Code)
			continue
		}
		fmt.Fprintf(out, "  - %s: %s (%s)\n", where, issue.Message, issue.Code)
	}
}
