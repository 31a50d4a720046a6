package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goliatone/go-strata"
	"github.com/goliatone/go-strata/internal/config"
	"github.com/goliatone/go-strata/pkg/definition"
	"github.com/goliatone/go-strata/pkg/state"
	"github.com/goliatone/go-strata/pkg/traits"
)

var version = "dev"

// app holds what every subcommand needs once flags and config are parsed.
type app struct {
	cfgFile string
	v       *viper.Viper
	cfg     config.Config
	logger  *slog.Logger

	catalog *strata.Catalog
	store   *state.SQLiteStore
	doc     *definition.Document
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Inspect layered catalog entities",
		Long:          `catalogctl loads definition files and persisted layers into a catalog and resolves entity properties across layers.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default: ./.strata.yaml)")
	flags.StringSliceP("definition", "d", nil, "definition file applied to the definition layer (repeatable)")
	flags.String("store", "", "sqlite database holding persisted layers")
	flags.String("evaluator", "", "derived default engine: expr, cel or js")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	_ = a.v.BindPFlag("definitions", flags.Lookup("definition"))
	_ = a.v.BindPFlag("store.path", flags.Lookup("store"))
	_ = a.v.BindPFlag("evaluator", flags.Lookup("evaluator"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))

	root.AddCommand(
		newResolveCmd(a),
		newTraceCmd(a),
		newSchemaCmd(a),
		newShareCmd(a),
		newCheckCmd(a),
		newSetCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger, err = newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return err
	}
	return a.build(cmd.Context())
}

// build assembles the catalog: built-in types and layers, configured layers,
// definitions and finally the persisted layers.
func (a *app) build(ctx context.Context) error {
	evaluator, err := newEvaluator(a.cfg.Evaluator)
	if err != nil {
		return err
	}
	catalog, err := traits.NewCatalog(
		strata.WithLogger(strata.NewSlogLogger(a.logger)),
		strata.WithEvaluator(evaluator),
	)
	if err != nil {
		return err
	}
	for _, scope := range a.cfg.Scopes() {
		if err := catalog.Ordering().Register(scope); err != nil {
			return fmt.Errorf("register layer %q: %w", scope.Name, err)
		}
	}
	a.catalog = catalog

	if err := a.applyDefinitions(); err != nil {
		return err
	}

	if a.cfg.Store.Path == "" {
		return nil
	}
	store, err := state.OpenSQLite(a.cfg.Store.Path)
	if err != nil {
		return err
	}
	a.store = store
	loader := state.Loader{Store: store, Catalog: catalog}
	for _, layer := range a.cfg.Store.Layers {
		n, err := loader.Hydrate(ctx, layer)
		if err != nil {
			return err
		}
		a.logger.Debug("hydrated layer", "layer", layer, "entities", n)
	}
	return nil
}

func (a *app) applyDefinitions() error {
	a.doc = &definition.Document{}
	for _, path := range a.cfg.Definitions {
		doc, err := definition.Load(path)
		if err != nil {
			return err
		}
		a.doc.Entities = append(a.doc.Entities, doc.Entities...)
		a.doc.Sources = append(a.doc.Sources, doc.Sources...)
	}
	result, err := definition.Apply(a.catalog, a.doc, a.cfg.DefinitionLayer)
	if err != nil {
		return err
	}
	a.logger.Debug("applied definitions",
		"layer", a.cfg.DefinitionLayer,
		"added", len(result.Added),
		"updated", len(result.Updated),
		"cleared", len(result.Cleared),
	)
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func (a *app) entity(id string) (*strata.Entity, error) {
	entity, state := a.catalog.Lookup(id)
	if state == strata.StateAbsent {
		return nil, fmt.Errorf("%w: %q", strata.ErrEntityNotFound, id)
	}
	return entity, nil
}

func newEvaluator(name string) (strata.Evaluator, error) {
	cache := strata.NewMemoryProgramCache(0)
	functions := strata.NewCatalogFunctions()
	switch name {
	case config.EvaluatorExpr, "":
		return strata.NewExprEvaluator(strata.ExprWithProgramCache(cache), strata.ExprWithFunctionRegistry(functions)), nil
	case config.EvaluatorCEL:
		return strata.NewCELEvaluator(strata.CELWithProgramCache(cache), strata.CELWithFunctionRegistry(functions)), nil
	case config.EvaluatorJS:
		if !strata.JSEvaluatorAvailable() {
			return nil, fmt.Errorf("the js evaluator needs a build with -tags js_eval")
		}
		return strata.NewJSEvaluator(strata.JSWithProgramCache(cache), strata.JSWithFunctionRegistry(functions)), nil
	default:
		return nil, fmt.Errorf("unknown evaluator %q", name)
	}
}

func newLogger(w io.Writer, cfg config.Config) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
