package main

import (
	"github.com/spf13/cobra"
)

func newTraceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "trace <id> <property>",
		Short: "Explain which layers contributed to a resolved value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := a.entity(args[0])
			if err != nil {
				return err
			}
			_, trace, err := entity.ResolveWithTrace(args[1])
			if err != nil {
				return err
			}
			raw, err := trace.ToJSON()
			if err != nil {
				return err
			}
			return writeRawJSON(cmd.OutOrStdout(), raw)
		},
	}
}
