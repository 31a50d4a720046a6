package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-strata"
	"github.com/goliatone/go-strata/schema/openapi"
)

func newSchemaCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "schema [type...]",
		Short: "Render the schema of entity types",
		RunE: func(cmd *cobra.Command, args []string) error {
			var generator strata.SchemaGenerator
			switch strata.SchemaFormat(format) {
			case strata.SchemaFormatDescriptors:
				generator = strata.DefaultSchemaGenerator()
			case strata.SchemaFormatOpenAPI:
				generator = openapi.NewGenerator(openapi.WithInfo("Catalog Schema", version))
			default:
				return fmt.Errorf("unknown schema format %q", format)
			}
			doc, err := a.catalog.Schema(generator, args...)
			if err != nil {
				return err
			}
			if doc.Format == strata.SchemaFormatOpenAPI {
				return writeJSON(cmd.OutOrStdout(), doc.Document)
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"fields": doc.Document,
				"layers": doc.Scopes,
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(strata.SchemaFormatDescriptors), "descriptors or openapi")
	return cmd
}
