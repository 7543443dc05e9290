// Package store persists portfolios and holdings in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/folioiq/folioiq/pkg/models"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrNotFound is returned when a portfolio or holding does not exist.
var ErrNotFound = errors.New("store: not found")

// Store wraps the database connection.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a store backed by the SQLite database at dbPath. The
// schema is created when missing and a "Default" portfolio is seeded
// into an empty database. Use ":memory:" for an in-memory store.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// WAL mode for better concurrency.
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	s := &Store{conn: conn, path: dbPath}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.seed(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS portfolios (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS holdings (
		id           TEXT PRIMARY KEY,
		portfolio_id TEXT NOT NULL REFERENCES portfolios(id) ON DELETE CASCADE,
		symbol       TEXT NOT NULL,
		quantity     TEXT NOT NULL,
		avg_cost     TEXT NOT NULL,
		thesis       TEXT,
		updated_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_holdings_portfolio ON holdings(portfolio_id);
	`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// seed inserts the Default portfolio when the database is empty.
func (s *Store) seed() error {
	var count int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM portfolios`).Scan(&count); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if count > 0 {
		return nil
	}
	_, err := s.conn.Exec(
		`INSERT INTO portfolios (id, name, created_at) VALUES (?, ?, ?)`,
		uuid.New().String(), "Default", time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	return nil
}

// ListPortfolios returns all portfolios with their holdings.
func (s *Store) ListPortfolios(ctx context.Context) ([]models.Portfolio, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, name, created_at FROM portfolios ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list portfolios: %w", err)
	}
	defer rows.Close()

	portfolios := []models.Portfolio{}
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, err
		}
		portfolios = append(portfolios, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list portfolios: %w", err)
	}

	for i := range portfolios {
		holdings, err := s.holdingsFor(ctx, portfolios[i].ID)
		if err != nil {
			return nil, err
		}
		portfolios[i].Holdings = holdings
	}
	return portfolios, nil
}

// GetPortfolio returns one portfolio with its holdings.
func (s *Store) GetPortfolio(ctx context.Context, id uuid.UUID) (*models.Portfolio, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM portfolios WHERE id = ?`, id.String())

	p, err := scanPortfolio(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: portfolio %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	holdings, err := s.holdingsFor(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Holdings = holdings
	return p, nil
}

// CreatePortfolio creates a new empty portfolio.
func (s *Store) CreatePortfolio(ctx context.Context, name string) (*models.Portfolio, error) {
	if name == "" {
		return nil, fmt.Errorf("portfolio name is required")
	}
	p := &models.Portfolio{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Holdings:  []models.Holding{},
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO portfolios (id, name, created_at) VALUES (?, ?, ?)`,
		p.ID.String(), p.Name, p.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("create portfolio: %w", err)
	}
	return p, nil
}

// AddHolding adds a position to a portfolio. The symbol is normalized
// and the holding validated before the write.
func (s *Store) AddHolding(ctx context.Context, portfolioID uuid.UUID, symbol string, quantity, avgCost decimal.Decimal, thesis *string) (*models.Holding, error) {
	symbol = models.NormalizeSymbol(symbol)
	if err := models.ValidateHolding(symbol, quantity, avgCost, thesis); err != nil {
		return nil, err
	}

	if _, err := s.GetPortfolio(ctx, portfolioID); err != nil {
		return nil, err
	}

	h := &models.Holding{
		ID:        uuid.New(),
		Symbol:    symbol,
		Quantity:  quantity,
		AvgCost:   avgCost,
		Thesis:    thesis,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO holdings (id, portfolio_id, symbol, quantity, avg_cost, thesis, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.ID.String(), portfolioID.String(), h.Symbol,
		h.Quantity.String(), h.AvgCost.String(), h.Thesis,
		h.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("add holding: %w", err)
	}
	return h, nil
}

// DeleteHolding removes a position from a portfolio.
func (s *Store) DeleteHolding(ctx context.Context, portfolioID, holdingID uuid.UUID) error {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM holdings WHERE id = ? AND portfolio_id = ?`,
		holdingID.String(), portfolioID.String())
	if err != nil {
		return fmt.Errorf("delete holding: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete holding: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: holding %s", ErrNotFound, holdingID)
	}
	return nil
}

// --- row scanning ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPortfolio(row rowScanner) (*models.Portfolio, error) {
	var (
		id, name, createdAt string
	)
	if err := row.Scan(&id, &name, &createdAt); err != nil {
		return nil, err
	}
	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse portfolio id: %w", err)
	}
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse portfolio created_at: %w", err)
	}
	return &models.Portfolio{ID: pid, Name: name, CreatedAt: created, Holdings: []models.Holding{}}, nil
}

func (s *Store) holdingsFor(ctx context.Context, portfolioID uuid.UUID) ([]models.Holding, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, symbol, quantity, avg_cost, thesis, updated_at
		 FROM holdings WHERE portfolio_id = ? ORDER BY rowid`,
		portfolioID.String())
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	defer rows.Close()

	holdings := []models.Holding{}
	for rows.Next() {
		var (
			id, symbol, quantity, avgCost, updatedAt string
			thesis                                   sql.NullString
		)
		if err := rows.Scan(&id, &symbol, &quantity, &avgCost, &thesis, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}

		hid, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse holding id: %w", err)
		}
		qty, err := decimal.NewFromString(quantity)
		if err != nil {
			return nil, fmt.Errorf("parse quantity: %w", err)
		}
		cost, err := decimal.NewFromString(avgCost)
		if err != nil {
			return nil, fmt.Errorf("parse avg_cost: %w", err)
		}
		updated, err := time.Parse(time.RFC3339Nano, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse holding updated_at: %w", err)
		}

		h := models.Holding{
			ID:        hid,
			Symbol:    symbol,
			Quantity:  qty,
			AvgCost:   cost,
			UpdatedAt: updated,
		}
		if thesis.Valid {
			h.Thesis = &thesis.String
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	return holdings, nil
}
