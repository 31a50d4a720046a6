package main

import (
	"context"
	"fmt"
	"io"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-strata/pkg/definition"
)

func newCheckCmd(a *app) *cobra.Command {
	var (
		match  []string
		strict bool
		watch  bool
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Resolve every entity and report diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			found, err := a.check(out, match)
			if err != nil {
				return err
			}
			if !watch {
				if strict && found > 0 {
					return fmt.Errorf("%d diagnostics", found)
				}
				return nil
			}
			return a.watch(cmd.Context(), out, match)
		},
	}
	cmd.Flags().StringSliceVarP(&match, "match", "m", nil, "only check entity ids matching these globs")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any diagnostic is reported")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-apply definitions and check again when they change")
	return cmd
}

// check resolves the selected entities and prints one line per diagnostic.
func (a *app) check(out io.Writer, patterns []string) (int, error) {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return 0, fmt.Errorf("invalid match pattern %q", pattern)
		}
	}
	if _, err := a.catalog.ResolveAll(); err != nil {
		return 0, err
	}

	checked, found := 0, 0
	for _, entity := range a.catalog.Entities() {
		if !matches(patterns, entity.ID()) {
			continue
		}
		checked++
		for _, diag := range entity.Diagnostics() {
			found++
			if _, err := fmt.Fprintln(out, diag.String()); err != nil {
				return found, err
			}
		}
	}
	_, err := fmt.Fprintf(out, "checked %d entities, %d diagnostics\n", checked, found)
	return found, err
}

func (a *app) watch(ctx context.Context, out io.Writer, patterns []string) error {
	if len(a.doc.Sources) == 0 {
		return fmt.Errorf("--watch needs at least one definition file")
	}
	w, err := definition.NewWatcher(definition.WatchConfig{
		Files:       a.doc.Sources,
		DebounceDur: a.cfg.Watch.Debounce,
	})
	if err != nil {
		return err
	}
	defer w.Stop()

	changes, err := w.Start()
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.Errors():
			a.logger.Warn("watch error", "error", err)
		case <-changes:
			if err := a.applyDefinitions(); err != nil {
				a.logger.Warn("reload failed", "error", err)
				continue
			}
			if _, err := a.check(out, patterns); err != nil {
				return err
			}
		}
	}
}

func matches(patterns []string, id string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, id); ok {
			return true
		}
	}
	return false
}

