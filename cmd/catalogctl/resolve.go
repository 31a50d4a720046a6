package main

import (
	"github.com/spf13/cobra"
)

func newResolveCmd(a *app) *cobra.Command {
	var (
		query  string
		expand bool
	)
	cmd := &cobra.Command{
		Use:   "resolve <id> [property...]",
		Short: "Print resolved property values of an entity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := a.entity(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if query != "" {
				results, err := entity.Query(query)
				if err != nil {
					return err
				}
				return writeJSON(out, results)
			}
			if len(args) == 1 {
				snapshot, err := entity.Snapshot()
				if err != nil {
					return err
				}
				return writeJSON(out, snapshot)
			}

			values := make(map[string]any, len(args)-1)
			for _, property := range args[1:] {
				if expand {
					members, err := entity.ResolveReferences(property)
					if err != nil {
						return err
					}
					values[property] = members
					continue
				}
				value, err := entity.Resolve(property)
				if err != nil {
					return err
				}
				values[property] = value
			}
			return writeJSON(out, values)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "JSONPath evaluated over the resolved properties")
	cmd.Flags().BoolVar(&expand, "expand", false, "print reference lists as resolved members")
	return cmd
}
