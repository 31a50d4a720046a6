package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-strata"
	"github.com/goliatone/go-strata/pkg/state"
)

func newSetCmd(a *app) *cobra.Command {
	var (
		layer   string
		ifMatch string
	)
	cmd := &cobra.Command{
		Use:   "set <id> <property> <json-value>",
		Short: "Write a value into a layer, persisting it when a store is configured",
		Long:  `Writes one property value into a layer. The value is JSON; null clears the layer's value. With a store the write goes through the store and --if-match guards against concurrent edits.`,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, property := args[0], args[1]
			var value any
			if err := json.Unmarshal([]byte(args[2]), &value); err != nil {
				return fmt.Errorf("value must be JSON: %w", err)
			}
			entity, err := a.entity(id)
			if err != nil {
				return err
			}

			meta := state.Meta{}
			if a.store != nil {
				loader := state.Loader{Store: a.store, Catalog: a.catalog}
				meta, err = loader.Mutate(cmd.Context(), state.Ref{EntityID: id, Layer: layer}, state.Meta{ETag: ifMatch}, func(values map[string]any) error {
					if value == nil {
						delete(values, property)
					} else {
						values[property] = value
					}
					return nil
				})
			} else {
				err = entity.SetValue(layer, property, value)
			}
			if err != nil {
				return err
			}

			resolved, err := entity.Resolve(property)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"id":       id,
				"property": property,
				"layer":    layer,
				"value":    resolved,
				"etag":     meta.ETag,
			})
		},
	}
	cmd.Flags().StringVarP(&layer, "layer", "l", strata.LayerUserEdit, "layer to write")
	cmd.Flags().StringVar(&ifMatch, "if-match", "", "expected etag of the stored layer")
	return cmd
}
