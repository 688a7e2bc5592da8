package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/receipt-matcher/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_FindUnmatchedItems(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM store_data\.vendor_items vi`).
		WithArgs("doc-123").
		WillReturnRows(pgxmock.NewRows([]string{"id", "vendor_name", "receipt_item_name", "receipt_upc"}).
			AddRow("v1", "Core-Mark", "ZYN 6MGS SMOOTH 5 ROLL", "012345678905").
			AddRow("v2", "Core-Mark", "GATORADE FT PNCH 24/20OZ", ""))

	items, err := s.FindUnmatchedItems(context.Background(), "doc-123")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "v1", items[0].VendorItemID)
	assert.Equal(t, "ZYN 6MGS SMOOTH 5 ROLL", items[0].ReceiptItemName)
	assert.Equal(t, "012345678905", items[0].ReceiptUPC)
	assert.Equal(t, "GATORADE FT PNCH 24/20OZ", items[1].ReceiptItemName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindUnmatchedItems_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM store_data\.vendor_items vi`).
		WithArgs("doc-empty").
		WillReturnRows(pgxmock.NewRows([]string{"id", "vendor_name", "receipt_item_name", "receipt_upc"}))

	items, err := s.FindUnmatchedItems(context.Background(), "doc-empty")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindUnmatchedItems_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM store_data\.vendor_items vi`).
		WithArgs("doc-123").
		WillReturnError(assert.AnError)

	_, err := s.FindUnmatchedItems(context.Background(), "doc-123")
	require.Error(t, err)
	assert.True(t, IsStoreError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindCandidatesBySimilarity(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`ORDER BY trigram_score DESC`).
		WithArgs("ZYN 6MGS SMOOTH 5 ROLL", 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).
			AddRow("A1", "ZYN SMOOTH 5 ROLL").
			AddRow("A2", "ZYN WINTERGREEN 5 ROLL"))

	candidates, err := s.FindCandidatesBySimilarity(context.Background(), "ZYN 6MGS SMOOTH 5 ROLL", 10)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, model.Candidate{ID: "A1", Name: "ZYN SMOOTH 5 ROLL"}, candidates[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindCandidatesBySimilarity_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`ORDER BY trigram_score DESC`).
		WithArgs("UNKNOWN SKU 999", 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}))

	candidates, err := s.FindCandidatesBySimilarity(context.Background(), "UNKNOWN SKU 999", 10)
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InventoryItemExists(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("A1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("Z9").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := s.InventoryItemExists(context.Background(), "A1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.InventoryItemExists(context.Background(), "Z9")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMapping_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM store_data\.item_mapping`).
		WithArgs("v1", "A1").
		WillReturnRows(pgxmock.NewRows([]string{"vendor_item_id", "receipt_upc", "inventory_item_id", "match_type", "mapped_at"}))

	m, err := s.GetMapping(context.Background(), "v1", "A1")
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertMapping_InsertsWhenAbsent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM store_data\.item_mapping`).
		WithArgs("v1", "A1").
		WillReturnRows(pgxmock.NewRows([]string{"vendor_item_id", "receipt_upc", "inventory_item_id", "match_type", "mapped_at"}))
	mock.ExpectExec(`INSERT INTO store_data\.item_mapping`).
		WithArgs("v1", "012345678905", "A1", "AI_MATCH").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertMapping(context.Background(), "v1", "A1", "012345678905")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertMapping_UpdatesWhenPresent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM store_data\.item_mapping`).
		WithArgs("v1", "A1").
		WillReturnRows(pgxmock.NewRows([]string{"vendor_item_id", "receipt_upc", "inventory_item_id", "match_type", "mapped_at"}).
			AddRow("v1", "012345678905", "A1", "AI_MATCH", time.Now().UTC()))
	mock.ExpectExec(`UPDATE store_data\.item_mapping`).
		WithArgs("AI_MATCH", "v1", "A1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpsertMapping(context.Background(), "v1", "A1", "012345678905")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Re-saving the same pair must refresh the existing row, never add a second one.
func TestPostgresStore_UpsertMapping_Idempotent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	emptyRows := func() *pgxmock.Rows {
		return pgxmock.NewRows([]string{"vendor_item_id", "receipt_upc", "inventory_item_id", "match_type", "mapped_at"})
	}

	// First save: no existing row, insert.
	mock.ExpectQuery(`FROM store_data\.item_mapping`).
		WithArgs("v1", "A1").
		WillReturnRows(emptyRows())
	mock.ExpectExec(`INSERT INTO store_data\.item_mapping`).
		WithArgs("v1", "", "A1", "AI_MATCH").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	// Second save: row exists, update path.
	mock.ExpectQuery(`FROM store_data\.item_mapping`).
		WithArgs("v1", "A1").
		WillReturnRows(emptyRows().AddRow("v1", "", "A1", "AI_MATCH", time.Now().UTC()))
	mock.ExpectExec(`UPDATE store_data\.item_mapping`).
		WithArgs("AI_MATCH", "v1", "A1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpsertMapping(context.Background(), "v1", "A1", ""))
	require.NoError(t, s.UpsertMapping(context.Background(), "v1", "A1", ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateMatchRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO store_data\.match_runs`).
		WithArgs(pgxmock.AnyArg(), "doc-123", "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateMatchRun(context.Background(), "doc-123")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "doc-123", run.DocumentID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteMatchRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE store_data\.match_runs`).
		WithArgs("complete", 5, 3, 2, pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	summary := model.RunSummary{Total: 5, Matched: 3, Saved: 2}
	err := s.CompleteMatchRun(context.Background(), "run-1", model.RunStatusComplete, summary)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteMatchRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE store_data\.match_runs`).
		WithArgs("failed", 0, 0, 0, pgxmock.AnyArg(), "run-missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteMatchRun(context.Background(), "run-missing", model.RunStatusFailed, model.RunSummary{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS store_data`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
