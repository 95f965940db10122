package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/smartdispute/case-engine/internal/taxonomy"
)

// #region taxonomy

func (a *app) taxonomyCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Inspect, export and store the category and remedy catalogue",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite store path (default taxonomy.db_path)")

	// --db overrides the configured store once setup has loaded the config.
	useDB := func(cmd *cobra.Command, args []string) {
		if dbPath != "" {
			a.cfg.Taxonomy.DBPath = dbPath
		}
	}
	for _, sub := range []*cobra.Command{a.taxonomySeedCmd(), a.taxonomyDumpCmd(), a.taxonomyCheckCmd()} {
		sub.PreRun = useDB
		cmd.AddCommand(sub)
	}
	return cmd
}

func (a *app) taxonomySeedCmd() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Store a catalogue as a new revision in the SQLite store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath := a.cfg.Taxonomy.DBPath
			if dbPath == "" {
				return fmt.Errorf("no store given: pass --db or set taxonomy.db_path")
			}

			var (
				tax    *taxonomy.Taxonomy
				source string
				err    error
			)
			switch {
			case from != "":
				tax, err = taxonomy.LoadFile(from)
				source = from
			case a.cfg.Taxonomy.Path != "":
				tax, err = taxonomy.LoadFile(a.cfg.Taxonomy.Path)
				source = a.cfg.Taxonomy.Path
			default:
				tax, err = taxonomy.Default()
				source = "embedded defaults"
			}
			if err != nil {
				return err
			}

			store, err := taxonomy.NewStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			rev, err := store.Seed(tax, source)
			if err != nil {
				return err
			}
			a.logger.Info("taxonomy seeded", zap.String("db", dbPath), zap.String("revision", rev.ID), zap.String("source", source))
			fmt.Fprintln(cmd.OutOrStdout(), rev.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "YAML catalogue to store (default taxonomy.path, then the embedded catalogue)")
	return cmd
}

func (a *app) taxonomyDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the active catalogue as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tax, err := a.loadTaxonomy()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(tax); err != nil {
				return fmt.Errorf("encode taxonomy: %w", err)
			}
			return enc.Close()
		},
	}
}

func (a *app) taxonomyCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the active catalogue and print its size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tax, err := a.loadTaxonomy()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			issueTypes := 0
			for _, cs := range tax.Categories() {
				issueTypes += len(cs.IssueTypes)
			}
			fmt.Fprintf(out, "categories:  %d\n", len(tax.Categories()))
			fmt.Fprintf(out, "issue types: %d\n", issueTypes)
			fmt.Fprintf(out, "remedies:    %d\n", len(tax.Remedies()))

			if a.cfg.Taxonomy.DBPath == "" {
				return nil
			}
			store, err := taxonomy.NewStore(a.cfg.Taxonomy.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()
			revs, err := store.Revisions()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "revisions:   %d\n", len(revs))
			for _, r := range revs {
				fmt.Fprintf(out, "  %s  %s  %s\n", r.ID, r.CreatedAt.Format("2006-01-02T15:04:05Z"), r.Source)
			}
			return nil
		},
	}
}

// #endregion taxonomy
