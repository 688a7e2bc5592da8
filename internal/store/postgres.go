package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/receipt-matcher/internal/db"
	"github.com/sells-group/receipt-matcher/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	// Unmatched items are defined relationally: vendor items with no
	// mapping row, restricted to the purchase document being processed.
	sqlFindUnmatchedItems = `
		SELECT
			vi.id,
			COALESCE(vd.vendor_name, ''),
			vi.receipt_item_name,
			COALESCE(vi.receipt_upc, '')
		FROM store_data.vendor_items vi
		LEFT JOIN store_data.vendor_details vd ON vi.vendor_id = vd.id
		LEFT JOIN store_data.item_mapping im ON vi.id = im.vendor_item_id
		LEFT JOIN store_data.vendor_purchases_line_items vpli ON vpli.upc = vi.receipt_upc
		WHERE im.vendor_item_id IS NULL
		  AND vpli.docupanda_id = $1`

	// Ranking is delegated entirely to store_data.get_similarity_scores;
	// both the primary and alternate names compete in one ordered list.
	sqlFindCandidates = `
		SELECT id, name
		FROM (
			SELECT
				ii.id,
				ii.name,
				(store_data.get_similarity_scores($1, ii.name)).trigram_score AS trigram_score
			FROM store_data.inventory_items ii
			WHERE ii.name IS NOT NULL AND TRIM(ii.name) <> ''
			UNION ALL
			SELECT
				ii.id,
				ii.alternate_name AS name,
				(store_data.get_similarity_scores($1, ii.alternate_name)).trigram_score AS trigram_score
			FROM store_data.inventory_items ii
			WHERE ii.alternate_name IS NOT NULL AND TRIM(ii.alternate_name) <> ''
		) AS similarity_scores
		ORDER BY trigram_score DESC
		LIMIT $2`

	sqlInventoryExists = `SELECT EXISTS(SELECT 1 FROM store_data.inventory_items WHERE id = $1)`

	sqlGetMapping = `
		SELECT vendor_item_id, COALESCE(receipt_upc, ''), inventory_item_id, match_type, mapped_at
		FROM store_data.item_mapping
		WHERE vendor_item_id = $1 AND inventory_item_id = $2`

	sqlUpdateMapping = `
		UPDATE store_data.item_mapping
		SET match_type = $1, mapped_at = now()
		WHERE vendor_item_id = $2 AND inventory_item_id = $3`

	sqlInsertMapping = `
		INSERT INTO store_data.item_mapping (vendor_item_id, receipt_upc, inventory_item_id, match_type, mapped_at)
		VALUES ($1, $2, $3, $4, now())`

	sqlInsertMatchRun = `
		INSERT INTO store_data.match_runs (id, docupanda_id, status, started_at)
		VALUES ($1, $2, $3, $4)`

	sqlCompleteMatchRun = `
		UPDATE store_data.match_runs
		SET status = $1, item_count = $2, matched_count = $3, saved_count = $4, finished_at = $5
		WHERE id = $6`
)

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot per-item store operations.
var preparedStatements = map[string]string{
	"inventory_exists": sqlInventoryExists,
	"get_mapping":      sqlGetMapping,
	"update_mapping":   sqlUpdateMapping,
	"insert_mapping":   sqlInsertMapping,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare the hot per-item statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE SCHEMA IF NOT EXISTS store_data;

-- inventory_items, vendor_items, vendor_details and
-- vendor_purchases_line_items are owned by the upstream extraction
-- service; only the tables this service writes are created here.

CREATE TABLE IF NOT EXISTS store_data.item_mapping (
	vendor_item_id    TEXT NOT NULL,
	receipt_upc       TEXT,
	inventory_item_id TEXT NOT NULL,
	match_type        TEXT NOT NULL,
	mapped_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- Uniqueness on (vendor_item_id, inventory_item_id) is logical, enforced
-- read-before-write by UpsertMapping rather than by a constraint.
CREATE INDEX IF NOT EXISTS idx_item_mapping_pair
	ON store_data.item_mapping(vendor_item_id, inventory_item_id);

CREATE TABLE IF NOT EXISTS store_data.match_runs (
	id            TEXT PRIMARY KEY,
	docupanda_id  TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'running',
	item_count    INTEGER NOT NULL DEFAULT 0,
	matched_count INTEGER NOT NULL DEFAULT 0,
	saved_count   INTEGER NOT NULL DEFAULT 0,
	started_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_match_runs_docupanda ON store_data.match_runs(docupanda_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// storeErr wraps a query failure so callers can classify it as transient.
func storeErr(op string, err error) error {
	return eris.Wrap(&StoreError{Op: op, Err: err}, "postgres: "+op)
}

func (s *PostgresStore) FindUnmatchedItems(ctx context.Context, documentID string) ([]model.ReceiptItem, error) {
	rows, err := s.pool.Query(ctx, sqlFindUnmatchedItems, documentID)
	if err != nil {
		return nil, storeErr("find unmatched items", err)
	}
	defer rows.Close()

	var items []model.ReceiptItem
	for rows.Next() {
		var it model.ReceiptItem
		if err := rows.Scan(&it.VendorItemID, &it.VendorName, &it.ReceiptItemName, &it.ReceiptUPC); err != nil {
			return nil, storeErr("scan unmatched item", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("find unmatched items", err)
	}
	return items, nil
}

func (s *PostgresStore) FindCandidatesBySimilarity(ctx context.Context, description string, limit int) ([]model.Candidate, error) {
	rows, err := s.pool.Query(ctx, sqlFindCandidates, description, limit)
	if err != nil {
		return nil, storeErr("find candidates", err)
	}
	defer rows.Close()

	var candidates []model.Candidate
	for rows.Next() {
		var c model.Candidate
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, storeErr("scan candidate", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("find candidates", err)
	}
	return candidates, nil
}

func (s *PostgresStore) InventoryItemExists(ctx context.Context, inventoryID string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, sqlInventoryExists, inventoryID).Scan(&exists); err != nil {
		return false, storeErr("inventory exists", err)
	}
	return exists, nil
}

func (s *PostgresStore) GetMapping(ctx context.Context, vendorItemID, inventoryItemID string) (*model.Mapping, error) {
	var (
		m         model.Mapping
		matchType string
	)
	err := s.pool.QueryRow(ctx, sqlGetMapping, vendorItemID, inventoryItemID).
		Scan(&m.VendorItemID, &m.ReceiptUPC, &m.InventoryItemID, &matchType, &m.MappedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get mapping", err)
	}
	m.MatchType = model.MatchType(matchType)
	return &m, nil
}

// UpsertMapping persists one accepted match idempotently: an existing
// (vendor item, inventory item) row gets its tag and timestamp refreshed,
// otherwise a new row is inserted. Each call is its own write boundary.
func (s *PostgresStore) UpsertMapping(ctx context.Context, vendorItemID, inventoryItemID, receiptUPC string) error {
	existing, err := s.GetMapping(ctx, vendorItemID, inventoryItemID)
	if err != nil {
		return err
	}

	if existing != nil {
		if _, err := s.pool.Exec(ctx, sqlUpdateMapping, string(model.MatchTypeAI), vendorItemID, inventoryItemID); err != nil {
			return storeErr("update mapping", err)
		}
		return nil
	}

	if _, err := s.pool.Exec(ctx, sqlInsertMapping, vendorItemID, receiptUPC, inventoryItemID, string(model.MatchTypeAI)); err != nil {
		return storeErr("insert mapping", err)
	}
	return nil
}

func (s *PostgresStore) CreateMatchRun(ctx context.Context, documentID string) (*model.MatchRun, error) {
	run := &model.MatchRun{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Status:     model.RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}

	if _, err := s.pool.Exec(ctx, sqlInsertMatchRun, run.ID, run.DocumentID, string(run.Status), run.StartedAt); err != nil {
		return nil, storeErr("create match run", err)
	}
	return run, nil
}

func (s *PostgresStore) CompleteMatchRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, sqlCompleteMatchRun,
		string(status), summary.Total, summary.Matched, summary.Saved, now, runID,
	)
	if err != nil {
		return storeErr("complete match run", err)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("match run not found: %s", runID)
	}
	return nil
}
