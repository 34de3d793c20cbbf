package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pennon-io/pennon/pkg/config"
	"github.com/pennon-io/pennon/pkg/logger"
	"github.com/pennon-io/pennon/pkg/schema"
)

var validateURI string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a flag configuration file against the schema and the parser",
	RunE: func(cmd *cobra.Command, _ []string) error {
		raw, err := os.ReadFile(validateURI)
		if err != nil {
			return fmt.Errorf("reading %s: %w", validateURI, err)
		}

		validator, err := schema.NewValidator()
		if err != nil {
			return err
		}

		issues := validator.Validate(raw)
		for _, issue := range issues {
			fmt.Fprintln(cmd.OutOrStdout(), "schema:", issue.String())
		}

		if _, err := config.Parse(logger.NewLogger(nil), string(raw)); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), "parse:", err.Error())
			return errors.New("configuration is invalid")
		}
		if len(issues) > 0 {
			return errors.New("configuration does not conform to the schema")
		}

		fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateURI, "uri", "f", "", "path of the flag configuration file")
	_ = validateCmd.MarkFlagRequired("uri")
	rootCmd.AddCommand(validateCmd)
}
