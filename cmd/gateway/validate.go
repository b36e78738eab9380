package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dot-do/gateway/internal/config"
	"github.com/dot-do/gateway/internal/schema"
)

// newValidateCmd checks a config file without serving: options, schema DSL,
// and relation resolution.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config.yml>",
		Short: "Validate a config file and its schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			def, err := cfg.SchemaDefinition()
			if err != nil {
				return err
			}
			s, err := schema.Parse(def)
			if err != nil {
				return fmt.Errorf("parsing schema: %w", err)
			}

			for _, m := range s.Models {
				cmd.Printf("%s: /%s (%d fields, pk %s)\n", m.Name, m.Plural, len(m.Fields), m.PrimaryKey)
			}
			cmd.Printf("OK: %d models\n", len(s.Models))
			return nil
		},
	}
}
