package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	var projectName string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new placecraft project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(projectName) == "" {
				return fmt.Errorf("--name is required")
			}
			return runInit(cmd, projectName)
		},
	}
	cmd.Flags().StringVar(&projectName, "name", "", "Project name")
	return cmd
}

const catalogTemplate = `version: 1
capabilities:
  - { name: glow, bit: 1 }
containers:
  - name: Default
    instantiate: true
    capabilities: [all]
  - name: DefaultMulti
    instantiate: true
    capabilities: [all]
  - name: Chest
    instantiate: true
    modify_in_place: true
defaults:
  single: Default
  multi: DefaultMulti
`

const placementTemplate = `---
title: Example Chest
type: placement
items:
  - name: rusty key
    container: Chest
locations:
  - name: cellar
---

A chest in the cellar.
`

func runInit(cmd *cobra.Command, projectName string) error {
	dir := filepath.Dir(configPath)
	catalogPath := filepath.Join(dir, "catalog.yaml")
	examplePath := filepath.Join(dir, "placements", "example.md")
	for _, path := range []string{configPath, catalogPath} {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	configContents := fmt.Sprintf("project: %s\nversion: 1\n\ndatabase:\n  dsn: sqlite://placecraft.db\n\ncatalog: catalog.yaml\n\nlayers:\n  - name: world\n    paths:\n      - ./placements/\n    canonical: true\n\nexclude:\n  - \"*.draft.md\"\n\ntracker:\n  addr: 127.0.0.1:7071\n\nlog:\n  level: info\n  format: text\n", projectName)
	if err := os.WriteFile(configPath, []byte(configContents), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}
	if err := os.WriteFile(catalogPath, []byte(catalogTemplate), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", catalogPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(examplePath), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(examplePath), err)
	}
	if _, err := os.Stat(examplePath); os.IsNotExist(err) {
		if err := os.WriteFile(examplePath, []byte(placementTemplate), 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", examplePath, err)
		}
	}

	cmd.Printf("Initialised %s in %s\n", projectName, configPath)
	return nil
}
