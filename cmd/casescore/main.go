package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smartdispute/case-engine/internal/config"
	"github.com/smartdispute/case-engine/internal/enrich"
	"github.com/smartdispute/case-engine/internal/logging"
	"github.com/smartdispute/case-engine/internal/pipeline"
	"github.com/smartdispute/case-engine/internal/taxonomy"
)

// #region main

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	if err := execute(ctx, a, a.rootCmd()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// execute runs root and flushes the logger whether or not the command
// failed.
func execute(ctx context.Context, a *app, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return err
}

// #endregion main

// #region root

// app carries what PersistentPreRunE builds for the subcommands. A logger
// set before execution is kept.
type app struct {
	cfgPath string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "casescore",
		Short: "Rule-based legal case analysis",
		Long: `casescore analyses case evidence: it scores legal categories, detects
sub-issues, rates case merit and ranks remedies from a fixed catalogue.

Evidence is JSON: {"caseType": "...", "jurisdiction": "ON",
"documents": [{"text": "...", "weight": 1.0}], "entities": {...}}.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "casescore.yaml", "path to the YAML config (missing file uses defaults)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.scoreCmd(),
		a.batchCmd(),
		a.replayCmd(),
		a.extractCmd(),
		a.taxonomyCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	a.cfg = cfg
	if a.logger != nil {
		return nil
	}
	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// #endregion root

// #region wiring

// loadTaxonomy reads the catalogue from the SQLite store, a YAML file or
// the embedded defaults, in that order of preference.
func (a *app) loadTaxonomy() (*taxonomy.Taxonomy, error) {
	switch {
	case a.cfg.Taxonomy.DBPath != "":
		store, err := taxonomy.NewStore(a.cfg.Taxonomy.DBPath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		tax, rev, err := store.Load()
		if errors.Is(err, taxonomy.ErrNoRevision) {
			return nil, fmt.Errorf("%s holds no taxonomy; run `casescore taxonomy seed` first: %w", a.cfg.Taxonomy.DBPath, err)
		}
		if err != nil {
			return nil, err
		}
		a.logger.Debug("taxonomy loaded from store", zap.String("revision", rev.ID), zap.String("source", rev.Source))
		return tax, nil
	case a.cfg.Taxonomy.Path != "":
		return taxonomy.LoadFile(a.cfg.Taxonomy.Path)
	default:
		return taxonomy.Default()
	}
}

// newEnricher builds the configured enricher. The returned closer is
// never nil.
func (a *app) newEnricher(ctx context.Context) (enrich.Enricher, func() error, error) {
	noop := func() error { return nil }
	ec := a.cfg.Enrichment
	switch ec.Provider {
	case config.ProviderGemini:
		g, err := enrich.NewGenAI(ctx, ec.APIKey, ec.Model)
		if err != nil {
			return nil, noop, err
		}
		return g, noop, nil
	case config.ProviderGRPC:
		g, err := enrich.NewGRPC(ec.Address)
		if err != nil {
			return nil, noop, err
		}
		return g, g.Close, nil
	default:
		return nil, noop, nil
	}
}

// newEngine wires taxonomy, config, logger and enricher into an engine.
func (a *app) newEngine(ctx context.Context) (*pipeline.Engine, func() error, error) {
	tax, err := a.loadTaxonomy()
	if err != nil {
		return nil, nil, err
	}
	en, closer, err := a.newEnricher(ctx)
	if err != nil {
		return nil, nil, err
	}
	opts := []pipeline.Option{pipeline.WithLogger(a.logger)}
	if en != nil {
		opts = append(opts, pipeline.WithEnricher(en))
		a.logger.Info("enrichment enabled", zap.String("provider", a.cfg.Enrichment.Provider))
	}
	return pipeline.New(tax, a.cfg.PipelineConfig(), opts...), closer, nil
}

// #endregion wiring

// #region io

// openInput opens the named file, or stdin for "" and "-".
func openInput(cmd *cobra.Command, args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion io
