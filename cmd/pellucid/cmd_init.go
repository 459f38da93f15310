package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pellucidb/pellucid/internal/cli"
)

const defaultConfigYAML = `# Pellucid configuration
schema_dir: ./schema
project_root: .
default_module: default
`

const exampleSchemaYAML = `# Example schema document. Objects without a module prefix land in
# the default module.
module: default

ddl:
  - create:
      kind: type
      name: User
      set:
        abstract: false
      commands:
        - create:
            kind: property
            name: email
            set:
              target: std::str
              required: true
        - create:
            kind: index
            name: email_idx
            set:
              expr: this.email
              unique: true
`

// initCmd initializes the project structure.
func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize project structure (schema/, pellucid.yaml)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if err := os.MkdirAll(cfg.SchemaDir, 0o755); err != nil {
				return fmt.Errorf("failed to create schema directory: %w", err)
			}

			created := cli.NewList()
			created.AddCreate(cfg.SchemaDir + "/")

			if _, err := os.Stat(configFile); os.IsNotExist(err) {
				if err := os.WriteFile(configFile, []byte(defaultConfigYAML), 0o644); err != nil {
					return fmt.Errorf("failed to write config file: %w", err)
				}
				created.AddCreate(configFile)
			}

			example := filepath.Join(cfg.SchemaDir, "default.yaml")
			if _, err := os.Stat(example); os.IsNotExist(err) {
				if err := os.WriteFile(example, []byte(exampleSchemaYAML), 0o644); err != nil {
					return fmt.Errorf("failed to write example schema: %w", err)
				}
				created.AddCreate(example)
			}

			fmt.Println("Initialized pellucid project:")
			fmt.Print(created.String())
			fmt.Println()
			fmt.Print(cli.FormatHelp("edit the schema documents, then run `pellucid plan`"))
			return nil
		},
	}
}
