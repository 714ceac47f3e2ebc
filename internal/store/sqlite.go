package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"kucoin-trader/internal/errors"
	"kucoin-trader/internal/models"
)

// SQLiteStore implements Store using SQLite. Documents are stored as JSON
// with indexed key columns, so lookups by id and range queries by timestamp
// never depend on filename conventions.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Portfolio documents, one row per portfolio
	CREATE TABLE IF NOT EXISTS portfolios (
		id TEXT PRIMARY KEY,
		doc TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Order results keyed by (order_id, date)
	CREATE TABLE IF NOT EXISTS orders (
		order_id TEXT NOT NULL,
		date TEXT NOT NULL,
		doc TEXT NOT NULL,
		created_at DATETIME,
		PRIMARY KEY (order_id, date)
	);

	-- Cancellation records
	CREATE TABLE IF NOT EXISTS cancellations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT,
		symbol TEXT,
		doc TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);
	CREATE INDEX IF NOT EXISTS idx_cancellations_order_id ON cancellations(order_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SavePortfolio writes the full portfolio document.
func (s *SQLiteStore) SavePortfolio(ctx context.Context, id string, state *models.PortfolioState) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return errors.NewPersistenceError("portfolios", id, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO portfolios (id, doc, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		id, string(doc), time.Now().UTC())
	if err != nil {
		return errors.NewPersistenceError("portfolios", id, err)
	}
	return nil
}

// LoadPortfolio reads one portfolio document.
func (s *SQLiteStore) LoadPortfolio(ctx context.Context, id string) (*models.PortfolioState, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM portfolios WHERE id = ?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrDataNotFound, "portfolio %s", id)
	}
	if err != nil {
		return nil, errors.NewPersistenceError("portfolios", id, err)
	}
	var state models.PortfolioState
	if err := json.Unmarshal([]byte(doc), &state); err != nil {
		return nil, errors.NewPersistenceError("portfolios", id, err)
	}
	if state.Holdings == nil {
		state.Holdings = make(map[string]*models.Holding)
	}
	return &state, nil
}

// SaveOrderResult writes one terminal submission result, keyed by order id
// and date.
func (s *SQLiteStore) SaveOrderResult(ctx context.Context, result *models.OrderResult) error {
	doc, err := json.Marshal(result)
	if err != nil {
		return errors.NewPersistenceError("orders", result.OrderID, err)
	}
	var createdAt interface{}
	date := time.Now().UTC().Format("2006-01-02")
	if !result.Timestamp.IsZero() {
		createdAt = result.Timestamp.UTC()
		date = result.Timestamp.UTC().Format("2006-01-02")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (order_id, date, doc, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(order_id, date) DO UPDATE SET doc = excluded.doc, created_at = excluded.created_at`,
		result.OrderID, date, string(doc), createdAt)
	if err != nil {
		return errors.NewPersistenceError("orders", result.OrderID, err)
	}
	return nil
}

// GetOrderResult returns the most recent result for an order id.
func (s *SQLiteStore) GetOrderResult(ctx context.Context, orderID string) (*models.OrderResult, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM orders WHERE order_id = ? ORDER BY date DESC LIMIT 1`,
		orderID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrOrderNotFound, "order %s", orderID)
	}
	if err != nil {
		return nil, errors.NewPersistenceError("orders", orderID, err)
	}
	var result models.OrderResult
	if err := json.Unmarshal([]byte(doc), &result); err != nil {
		return nil, errors.NewPersistenceError("orders", orderID, err)
	}
	return &result, nil
}

// GetOrderHistory returns results since the given time, newest first.
// Results without a parsable timestamp are included rather than dropped.
func (s *SQLiteStore) GetOrderHistory(ctx context.Context, since time.Time) ([]models.OrderResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM orders
		WHERE created_at IS NULL OR created_at >= ?
		ORDER BY created_at DESC`,
		since.UTC())
	if err != nil {
		return nil, errors.NewPersistenceError("orders", "history", err)
	}
	defer rows.Close()

	var results []models.OrderResult
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, errors.NewPersistenceError("orders", "history", err)
		}
		var result models.OrderResult
		if err := json.Unmarshal([]byte(doc), &result); err != nil {
			return nil, errors.NewPersistenceError("orders", "history", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// SaveCancellation writes one cancellation record.
func (s *SQLiteStore) SaveCancellation(ctx context.Context, record *models.CancellationRecord) error {
	key := record.OrderID
	if key == "" {
		key = record.Symbol
	}
	doc, err := json.Marshal(record)
	if err != nil {
		return errors.NewPersistenceError("cancellations", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cancellations (order_id, symbol, doc, created_at) VALUES (?, ?, ?, ?)`,
		record.OrderID, record.Symbol, string(doc), record.Timestamp.UTC())
	if err != nil {
		return errors.NewPersistenceError("cancellations", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
