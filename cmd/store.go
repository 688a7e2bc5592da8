package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/receipt-matcher/internal/matcher"
	"github.com/sells-group/receipt-matcher/internal/store"
	"github.com/sells-group/receipt-matcher/pkg/anthropic"
)

func initStore(ctx context.Context) (store.Store, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("database URL is required (MATCHER_STORE_DATABASE_URL)")
	}
	return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
}

// initMatcher wires the store and the Anthropic client into a Matcher.
// The caller owns the returned store and must Close it.
func initMatcher(ctx context.Context) (*matcher.Matcher, store.Store, error) {
	if cfg.Anthropic.Key == "" {
		return nil, nil, eris.New("anthropic API key is required (MATCHER_ANTHROPIC_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Ping(ctx); err != nil {
		st.Close()
		return nil, nil, eris.Wrap(err, "ping store")
	}

	ai := anthropic.NewClient(cfg.Anthropic.Key)
	return matcher.New(cfg, st, ai), st, nil
}
