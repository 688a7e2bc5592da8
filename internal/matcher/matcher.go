// Package matcher implements the receipt item → inventory catalog matching
// pipeline: candidate shortlisting, LLM-assisted disambiguation, response
// validation and idempotent persistence of accepted matches.
package matcher

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/receipt-matcher/internal/config"
	"github.com/sells-group/receipt-matcher/internal/model"
	"github.com/sells-group/receipt-matcher/internal/store"
	"github.com/sells-group/receipt-matcher/pkg/anthropic"
)

// Matcher drives the matching pipeline for one document at a time.
type Matcher struct {
	cfg     *config.Config
	store   store.Store
	ai      anthropic.Client
	limiter *rate.Limiter
}

// New creates a Matcher. All tunables come from cfg; nothing is read from
// ambient process state.
func New(cfg *config.Config, st store.Store, ai anthropic.Client) *Matcher {
	m := &Matcher{cfg: cfg, store: st, ai: ai}
	if cfg.Matching.OracleRPS > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(cfg.Matching.OracleRPS), 1)
	}
	return m
}

// Run processes every unmatched receipt item of the given document through
// retrieve → arbitrate → validate and returns one decision per item, in
// input order. With persist set, accepted decisions are saved in one final
// pass; a save failure is returned alongside the already-computed decisions.
//
// Concurrent runs over the same vendor item are not coordinated; disjoint
// items are safe because persistence is an idempotent keyed upsert.
func (m *Matcher) Run(ctx context.Context, documentID string, persist bool) ([]model.MatchDecision, error) {
	zap.L().Info("starting match run",
		zap.String("docupanda_id", documentID),
		zap.Bool("persist", persist),
	)

	items, err := m.store.FindUnmatchedItems(ctx, documentID)
	if err != nil {
		return nil, eris.Wrapf(err, "matcher: load unmatched items for %s", documentID)
	}
	if len(items) == 0 {
		zap.L().Info("no unmatched receipt items", zap.String("docupanda_id", documentID))
		return []model.MatchDecision{}, nil
	}
	zap.L().Info("loaded unmatched items",
		zap.String("docupanda_id", documentID),
		zap.Int("count", len(items)),
	)

	// Run bookkeeping is best-effort; the pipeline proceeds without it.
	run, err := m.store.CreateMatchRun(ctx, documentID)
	if err != nil {
		zap.L().Warn("match run bookkeeping unavailable", zap.Error(err))
		run = nil
	}

	decisions := make([]model.MatchDecision, len(items))
	var usage anthropic.TokenUsage
	if m.workers() > 1 {
		usage = m.processParallel(ctx, items, decisions)
	} else {
		usage = m.processSequential(ctx, items, decisions)
	}

	summary := model.Summarize(decisions)

	var saveErr error
	if persist {
		saved, err := m.Save(ctx, decisions)
		summary.Saved = saved
		if err != nil {
			saveErr = err
			zap.L().Error("failed to save match results",
				zap.String("docupanda_id", documentID),
				zap.Int("saved_before_failure", saved),
				zap.Error(err),
			)
		} else {
			zap.L().Info("saved match results", zap.Int("saved", saved))
		}
	}

	usage.LogCost(m.cfg.Anthropic.Model, "arbitrate")

	status := model.RunStatusComplete
	if saveErr != nil {
		status = model.RunStatusFailed
	}
	if run != nil {
		if err := m.store.CompleteMatchRun(ctx, run.ID, status, summary); err != nil {
			zap.L().Warn("complete match run", zap.String("run_id", run.ID), zap.Error(err))
		}
	}

	zap.L().Info("match run finished",
		zap.String("docupanda_id", documentID),
		zap.Int("total", summary.Total),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Total-summary.Successful),
		zap.Int("matched", summary.Matched),
		zap.Int("saved", summary.Saved),
	)

	if saveErr != nil {
		return decisions, saveErr
	}
	return decisions, nil
}

// Lookup runs a single free-text description through the pipeline without
// touching the mapping table. Used for dry runs and spot checks.
func (m *Matcher) Lookup(ctx context.Context, description, upc string) model.MatchDecision {
	d, usage := m.matchDescription(ctx, description, upc)
	usage.LogCost(m.cfg.Anthropic.Model, "lookup")
	return d
}

func (m *Matcher) workers() int {
	if m.cfg.Matching.Workers > 1 {
		return m.cfg.Matching.Workers
	}
	return 1
}

func (m *Matcher) progressInterval() int {
	if m.cfg.Matching.ProgressInterval > 0 {
		return m.cfg.Matching.ProgressInterval
	}
	return 10
}

func (m *Matcher) processSequential(ctx context.Context, items []model.ReceiptItem, decisions []model.MatchDecision) anthropic.TokenUsage {
	var usage anthropic.TokenUsage
	interval := m.progressInterval()
	successful := 0

	for i, item := range items {
		d, u := m.processItem(ctx, item)
		decisions[i] = d
		usage.Add(u)
		if d.Success {
			successful++
		}

		if (i+1)%interval == 0 || i+1 == len(items) {
			zap.L().Info("match progress",
				zap.Int("processed", i+1),
				zap.Int("total", len(items)),
				zap.Int("successful", successful),
				zap.Int("failed", i+1-successful),
			)
		}
	}
	return usage
}

// processParallel fans items out over a bounded worker pool. Decisions land
// at their item's index, so output order matches input order regardless of
// completion order. Per-item failures are already folded into decisions;
// workers never abort the group.
func (m *Matcher) processParallel(ctx context.Context, items []model.ReceiptItem, decisions []model.MatchDecision) anthropic.TokenUsage {
	var (
		mu         sync.Mutex
		usage      anthropic.TokenUsage
		done       int
		successful int
	)
	interval := m.progressInterval()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers())
	for i, item := range items {
		g.Go(func() error {
			d, u := m.processItem(gctx, item)
			decisions[i] = d

			mu.Lock()
			usage.Add(u)
			done++
			if d.Success {
				successful++
			}
			n, ok := done, successful
			mu.Unlock()

			if n%interval == 0 || n == len(items) {
				zap.L().Info("match progress",
					zap.Int("processed", n),
					zap.Int("total", len(items)),
					zap.Int("successful", ok),
					zap.Int("failed", n-ok),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return usage
}

func (m *Matcher) processItem(ctx context.Context, item model.ReceiptItem) (model.MatchDecision, anthropic.TokenUsage) {
	zap.L().Debug("processing receipt item",
		zap.String("receipt_item", item.ReceiptItemName),
		zap.String("receipt_upc", item.ReceiptUPC),
	)

	d, usage := m.matchDescription(ctx, item.ReceiptItemName, item.ReceiptUPC)
	d.VendorItemID = item.VendorItemID
	d.VendorName = item.VendorName
	return d, usage
}

// matchDescription runs retrieve → arbitrate → validate for one description.
func (m *Matcher) matchDescription(ctx context.Context, description, upc string) (model.MatchDecision, anthropic.TokenUsage) {
	var usage anthropic.TokenUsage

	candidates, err := m.retrieve(ctx, description)
	if err != nil {
		zap.L().Warn("candidate retrieval failed",
			zap.String("receipt_item", description),
			zap.Error(err),
		)
		return failedDecision(description, upc, "Candidate retrieval failed", err), usage
	}
	if len(candidates) == 0 {
		zap.L().Warn("no candidates found", zap.String("receipt_item", description))
		return noCandidatesDecision(description, upc), usage
	}

	d, u := m.arbitrate(ctx, description, candidates)
	usage.Add(u)

	d = m.validate(ctx, d)
	d.ReceiptUPC = upc
	return d, usage
}

func failedDecision(description, upc, reasoning string, err error) model.MatchDecision {
	return model.MatchDecision{
		ReceiptItem: description,
		ReceiptUPC:  upc,
		Confidence:  0,
		Reasoning:   reasoning,
		Error:       err.Error(),
		Success:     false,
	}
}

func noCandidatesDecision(description, upc string) model.MatchDecision {
	return model.MatchDecision{
		ReceiptItem: description,
		ReceiptUPC:  upc,
		Confidence:  0,
		Reasoning:   "No similar inventory items found",
		Error:       "no candidates found for receipt item: " + description,
		Success:     false,
	}
}
