package matcher

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/receipt-matcher/internal/config"
	"github.com/sells-group/receipt-matcher/internal/model"
	"github.com/sells-group/receipt-matcher/pkg/anthropic"
)

// mockStore implements store.Store for pipeline tests.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindUnmatchedItems(ctx context.Context, documentID string) ([]model.ReceiptItem, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ReceiptItem), args.Error(1)
}

func (m *mockStore) FindCandidatesBySimilarity(ctx context.Context, description string, limit int) ([]model.Candidate, error) {
	args := m.Called(ctx, description, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Candidate), args.Error(1)
}

func (m *mockStore) InventoryItemExists(ctx context.Context, inventoryID string) (bool, error) {
	args := m.Called(ctx, inventoryID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) GetMapping(ctx context.Context, vendorItemID, inventoryItemID string) (*model.Mapping, error) {
	args := m.Called(ctx, vendorItemID, inventoryItemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Mapping), args.Error(1)
}

func (m *mockStore) UpsertMapping(ctx context.Context, vendorItemID, inventoryItemID, receiptUPC string) error {
	args := m.Called(ctx, vendorItemID, inventoryItemID, receiptUPC)
	return args.Error(0)
}

func (m *mockStore) CreateMatchRun(ctx context.Context, documentID string) (*model.MatchRun, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MatchRun), args.Error(1)
}

func (m *mockStore) CompleteMatchRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary) error {
	args := m.Called(ctx, runID, status, summary)
	return args.Error(0)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// mockAI implements anthropic.Client.
type mockAI struct {
	mock.Mock
}

func (m *mockAI) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{
		Anthropic: config.AnthropicConfig{
			Model:     "claude-haiku-4-5-20251001",
			MaxTokens: 1024,
		},
		Matching: config.MatchingConfig{
			MaxCandidates:    10,
			AcceptConfidence: 70,
			ProgressInterval: 10,
			Workers:          1,
		},
	}
}

func newTestMatcher(st *mockStore, ai *mockAI) *Matcher {
	return New(testConfig(), st, ai)
}

// textResponse wraps a reply body in a single text content block.
func textResponse(body string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:         "msg_test",
		Model:      "claude-haiku-4-5-20251001",
		Content:    []anthropic.ContentBlock{{Type: "text", Text: body}},
		StopReason: "end_turn",
		Usage:      anthropic.TokenUsage{InputTokens: 500, OutputTokens: 40},
	}
}
