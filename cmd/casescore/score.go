package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smartdispute/case-engine/internal/eval"
	"github.com/smartdispute/case-engine/internal/evidence"
	"github.com/smartdispute/case-engine/internal/extract"
	"github.com/smartdispute/case-engine/internal/pipeline"
)

// #region score

// checkedBundle is the score output with --check.
type checkedBundle struct {
	Bundle pipeline.Bundle `json:"bundle"`
	Eval   eval.EvalResult `json:"eval"`
}

func (a *app) scoreCmd() *cobra.Command {
	var check, extractEntities bool
	cmd := &cobra.Command{
		Use:   "score [file|-]",
		Short: "Analyse one case and print the result bundle",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer in.Close()

			var ev evidence.CaseEvidence
			if err := json.NewDecoder(in).Decode(&ev); err != nil {
				return fmt.Errorf("decode evidence: %w", err)
			}
			if extractEntities {
				fillEntities(&ev)
			}

			engine, closeEnricher, err := a.newEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeEnricher()

			b := engine.Score(cmd.Context(), &ev)
			if !check {
				return writeJSON(cmd.OutOrStdout(), b)
			}

			res := eval.NewEvalHarness(eval.DefaultEvalConfig()).Run(b)
			if err := writeJSON(cmd.OutOrStdout(), checkedBundle{Bundle: b, Eval: res}); err != nil {
				return err
			}
			if !res.Passed {
				return fmt.Errorf("bundle check: %s", res.Reason)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "validate the bundle and fail on any broken guarantee")
	cmd.Flags().BoolVar(&extractEntities, "extract-entities", false, "extract entities from the documents when none are supplied")
	return cmd
}

// fillEntities extracts entities from the documents when the evidence
// carries none.
func fillEntities(ev *evidence.CaseEvidence) {
	if ev.Entities.IsEmpty() {
		ev.Entities = extract.FromDocuments(ev.Documents)
	}
}

// #endregion score

// #region batch

// maxLine bounds one JSONL record.
const maxLine = 64 << 20

func (a *app) batchCmd() *cobra.Command {
	var extractEntities bool
	cmd := &cobra.Command{
		Use:   "batch [file.jsonl|-]",
		Short: "Analyse one case per input line and print one result per line",
		Long: `Each input line is either a case evidence object or
{"id": "...", "evidence": {...}}. Cases without an ID get a UUID.
Lines that cannot be decoded produce an empty analysis.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer in.Close()

			items, err := a.readBatch(in)
			if err != nil {
				return err
			}
			if extractEntities {
				for _, it := range items {
					if it.Evidence != nil {
						fillEntities(it.Evidence)
					}
				}
			}

			engine, closeEnricher, err := a.newEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeEnricher()

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, r := range engine.ScoreBatch(cmd.Context(), items) {
				if err := enc.Encode(r); err != nil {
					return fmt.Errorf("write result: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&extractEntities, "extract-entities", false, "extract entities from the documents when none are supplied")
	return cmd
}

func (a *app) readBatch(r io.Reader) ([]pipeline.BatchItem, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), maxLine)

	var items []pipeline.BatchItem
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		item, err := decodeBatchLine([]byte(text))
		if err != nil {
			a.logger.Warn("undecodable batch line", zap.Int("line", line), zap.Error(err))
			item = pipeline.BatchItem{ID: fmt.Sprintf("line-%d", line)}
		}
		items = append(items, item)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	return items, nil
}

func decodeBatchLine(data []byte) (pipeline.BatchItem, error) {
	var item pipeline.BatchItem
	if err := json.Unmarshal(data, &item); err != nil {
		return pipeline.BatchItem{}, err
	}
	if item.Evidence != nil {
		return item, nil
	}
	var ev evidence.CaseEvidence
	if err := json.Unmarshal(data, &ev); err != nil {
		return pipeline.BatchItem{}, err
	}
	item.Evidence = &ev
	return item, nil
}

// #endregion batch

// #region extract

func (a *app) extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract [file|-]",
		Short: "Print the entities found in raw text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer in.Close()

			data, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read text: %w", err)
			}
			ents := extract.FromDocuments([]evidence.Document{{Text: string(data)}})
			return writeJSON(cmd.OutOrStdout(), ents)
		},
	}
}

// #endregion extract
