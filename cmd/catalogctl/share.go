package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-strata/pkg/share"
	"github.com/goliatone/go-strata/pkg/state"
)

func newShareCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Encode or apply share payloads",
	}

	var layers []string
	encode := &cobra.Command{
		Use:   "encode",
		Short: "Print a share payload for the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := share.Encode(a.catalog, share.WithLayers(layers...))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), payload)
			return err
		},
	}
	encode.Flags().StringSliceVarP(&layers, "layer", "l", nil, "only share these layers (repeatable)")

	var persist bool
	decode := &cobra.Command{
		Use:   "decode <payload>",
		Short: "Apply a share payload and print the resulting catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			touched, err := share.Decode(strings.TrimSpace(args[0]), a.catalog)
			if err != nil {
				return err
			}
			if persist {
				if a.store == nil {
					return fmt.Errorf("--persist needs a store")
				}
				loader := state.Loader{Store: a.store, Catalog: a.catalog}
				for _, layer := range a.cfg.Store.Layers {
					live := make([]string, 0, len(touched))
					for _, id := range touched {
						if _, ok := a.catalog.Get(id); ok {
							live = append(live, id)
						}
					}
					if len(live) == 0 {
						continue
					}
					if _, err := loader.Persist(cmd.Context(), layer, live...); err != nil {
						return err
					}
				}
			}
			raw, err := a.catalog.MarshalJSON()
			if err != nil {
				return err
			}
			return writeRawJSON(cmd.OutOrStdout(), raw)
		},
	}
	decode.Flags().BoolVar(&persist, "persist", false, "save the configured store layers of touched entities")

	cmd.AddCommand(encode, decode)
	return cmd
}
