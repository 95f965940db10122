package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smartdispute/case-engine/internal/eval"
	"github.com/smartdispute/case-engine/internal/replay"
)

// #region replay

func (a *app) replayCmd() *cobra.Command {
	var fixturePath, recordPath string
	cmd := &cobra.Command{
		Use:   "replay --fixture cases.json",
		Short: "Re-run recorded cases offline and compare with their expectations",
		Long: `replay analyses every case of a fixture with the current taxonomy and
configuration. Recorded enrichment replies stand in for the live service.
With --record the fixture is written back with expectations pinned to the
current results.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := replay.LoadFixture(fixturePath)
			if err != nil {
				return err
			}
			tax, err := a.loadTaxonomy()
			if err != nil {
				return err
			}

			base := replay.ReplayConfig{Pipeline: a.cfg.PipelineConfig(), EvalConfig: eval.DefaultEvalConfig()}
			results := replay.Replay(tax, f.ToCases(), f.Config.ApplyTo(base))

			if recordPath != "" {
				for i, r := range results {
					insight := f.Cases[i].Insight
					f.Cases[i] = replay.FromBundle(r.CaseID, f.Cases[i].Evidence, r.Bundle)
					f.Cases[i].Insight = insight
				}
				if err := replay.SaveFixture(recordPath, f); err != nil {
					return err
				}
				a.logger.Info("fixture recorded", zap.String("path", recordPath), zap.Int("cases", len(f.Cases)))
				return nil
			}

			s := printComparison(cmd.OutOrStdout(), results)
			if !s.OK() {
				return fmt.Errorf("replay: %d of %d cases failed", s.TotalCases-s.Passed, s.TotalCases)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "path to the fixture JSON")
	cmd.Flags().StringVar(&recordPath, "record", "", "write the fixture with expectations pinned to the current results")
	_ = cmd.MarkFlagRequired("fixture")
	return cmd
}

// #endregion replay

// #region output

// printComparison writes one row per case and a summary line.
func printComparison(w io.Writer, results []replay.ReplayResult) replay.ReplaySummary {
	fmt.Fprintf(w, "%-32s| %-10s| %-8s| %s\n", "Case", "Action", "Merit", "Detail")
	fmt.Fprintf(w, "%-32s+%-10s+%-8s+%s\n",
		strings.Repeat("-", 32), strings.Repeat("-", 11), strings.Repeat("-", 9), "--------")

	for _, r := range results {
		detail := "OK"
		if r.Action != replay.ActionPass {
			detail = r.Reason
		}
		fmt.Fprintf(w, "%-32s| %-10s| %-8.4f| %s\n", r.CaseID, r.Action, r.Bundle.Merit.Score, detail)
	}

	s := replay.Summarize(results)
	fmt.Fprintf(w, "\nSummary: %d total, %d pass, %d eval_fail, %d mismatch\n",
		s.TotalCases, s.Passed, s.EvalFailures, s.Mismatches)
	return s
}

// #endregion output
