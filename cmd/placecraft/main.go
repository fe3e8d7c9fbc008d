package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:          "placecraft",
		Short:        "Item placement and container selection toolkit",
		SilenceUsage: true,
	}
	root.Version = buildVersion()
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&configPath, "config", "placecraft.yaml", "Project config file")
	root.AddCommand(initCmd())
	root.AddCommand(ingestCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(resolveCmd())
	root.AddCommand(listCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(stateCmd())
	root.AddCommand(giveCmd())
	root.AddCommand(visitCmd())
	root.AddCommand(snapshotCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
