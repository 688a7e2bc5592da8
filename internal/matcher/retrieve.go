package matcher

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/receipt-matcher/internal/model"
)

// retrieve returns the similarity-ranked candidate shortlist for one
// description. Ranking happens store-side; an empty shortlist is a valid
// outcome and short-circuits arbitration upstream.
func (m *Matcher) retrieve(ctx context.Context, description string) ([]model.Candidate, error) {
	limit := m.cfg.Matching.MaxCandidates
	if limit <= 0 {
		limit = 10
	}

	candidates, err := m.store.FindCandidatesBySimilarity(ctx, description, limit)
	if err != nil {
		return nil, eris.Wrap(err, "matcher: retrieve candidates")
	}

	zap.L().Debug("retrieved candidates",
		zap.String("receipt_item", description),
		zap.Int("count", len(candidates)),
	)
	return candidates, nil
}
