package pipeline

import (
	"context"
	"runtime"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// #region batch

// ScoreBatch analyses items concurrently with at most Config.Workers in
// flight. Results keep the input order. Cases not yet started when ctx
// ends are marked skipped instead of analysed.
func (e *Engine) ScoreBatch(ctx context.Context, items []BatchItem) []BatchResult {
	results := make([]BatchResult, len(items))

	var g errgroup.Group
	g.SetLimit(e.workers())
	for i, item := range items {
		results[i].ID = item.ID
		if results[i].ID == "" {
			results[i].ID = uuid.NewString()
		}
		if err := ctx.Err(); err != nil {
			results[i].Skipped = true
			results[i].Reason = err.Error()
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Skipped = true
				results[i].Reason = err.Error()
				return nil
			}
			b := e.Score(ctx, item.Evidence)
			results[i].Bundle = &b
			return nil
		})
	}
	_ = g.Wait()

	skipped := 0
	for _, r := range results {
		if r.Skipped {
			skipped++
		}
	}
	e.logger.Info("batch scored", zap.Int("cases", len(items)), zap.Int("skipped", skipped))
	return results
}

func (e *Engine) workers() int {
	if e.config.Workers > 0 {
		return e.config.Workers
	}
	return runtime.NumCPU()
}

// #endregion
