package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/querysync/internal/config"
	"github.com/vango-dev/querysync/internal/errors"
)

func initCmd() *cobra.Command {
	var (
		useYAML bool
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a starter querysync config",
		Long: `Create querysync.json (or querysync.yaml with --yaml) declaring a
sample schema to edit.

Examples:
  querysync init
  querysync init ./web --yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(dir, useYAML, force)
		},
	}

	cmd.Flags().BoolVar(&useYAML, "yaml", false, "Write querysync.yaml instead of querysync.json")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")

	return cmd
}

func runInit(dir string, useYAML, force bool) error {
	name := config.ConfigFileName
	if useYAML {
		name = "querysync.yaml"
	}
	path := filepath.Join(dir, name)

	if _, err := os.Stat(path); err == nil && !force {
		return errors.New("Q040").
			WithDetail(path + " already exists").
			WithSuggestion("Pass --force to overwrite it")
	}

	cfg := starterConfig()
	if err := cfg.SaveTo(path); err != nil {
		return err
	}

	success("Created %s", path)
	info("Declare your query keys under \"fields\", then run 'querysync read /?page=2'")
	return nil
}

func starterConfig() *config.Config {
	one := 1.0
	cfg := config.New()
	cfg.SortKeys = true
	cfg.Fields = []config.FieldConfig{
		{Key: "page", Type: "number", Default: 1, Min: &one},
		{Key: "q", Type: "string"},
		{Key: "sort", Type: "string", Default: "new", OneOf: []string{"new", "top"}},
		{Key: "tags", Type: "string-list"},
	}
	return cfg
}
