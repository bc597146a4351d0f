package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"coinbt/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ ResultStore = (*SQLiteStore)(nil)
var _ SignalStore = (*SQLiteStore)(nil)

// SQLiteStore implements ResultStore and SignalStore backed by a SQLite
// database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS backtest_results (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	strategy              TEXT    NOT NULL,
	market                TEXT    NOT NULL,
	count                 INTEGER NOT NULL,
	investment_fraction   REAL    NOT NULL,
	cumulative_return_pct REAL    NOT NULL,
	win_rate_pct          REAL    NOT NULL,
	max_drawdown_pct      REAL    NOT NULL,
	trades                INTEGER NOT NULL,
	params                TEXT    NOT NULL DEFAULT '{}',
	created_at            INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_strategy ON backtest_results (strategy, created_at);

CREATE TABLE IF NOT EXISTS picks (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol                TEXT    NOT NULL,
	strategy              TEXT    NOT NULL,
	cumulative_return_pct REAL    NOT NULL,
	ranked_at             INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_picks_ranked_at ON picks (ranked_at);

CREATE TABLE IF NOT EXISTS signals (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	strategy_id TEXT    NOT NULL,
	symbol      TEXT    NOT NULL,
	type        TEXT    NOT NULL,
	price       REAL    NOT NULL,
	bar_time    INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signals_strategy ON signals (strategy_id, created_at);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single writer avoids SQLITE_BUSY from concurrent batch goroutines.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// ResultStore implementation
// ---------------------------------------------------------------------------

// SaveResults inserts results in one transaction.
func (s *SQLiteStore) SaveResults(ctx context.Context, results []domain.BacktestResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO backtest_results
		(strategy, market, count, investment_fraction, cumulative_return_pct,
		 win_rate_pct, max_drawdown_pct, trades, params, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range results {
		params, err := json.Marshal(r.Params)
		if err != nil {
			return fmt.Errorf("encoding params: %w", err)
		}
		created := r.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			r.Strategy, r.Market, r.Count, r.InvestmentFraction, r.CumulativeReturnPct,
			r.WinRatePct, r.MaxDrawdownPct, r.Trades, string(params), created.UnixMilli(),
		); err != nil {
			return fmt.Errorf("inserting result %s/%s: %w", r.Strategy, r.Market, err)
		}
	}
	return tx.Commit()
}

// ListResults returns the newest results first.
func (s *SQLiteStore) ListResults(ctx context.Context, strategy string, limit int) ([]domain.BacktestResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT strategy, market, count, investment_fraction,
		cumulative_return_pct, win_rate_pct, max_drawdown_pct, trades, params, created_at
		FROM backtest_results
		WHERE (? = '' OR strategy = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, strategy, strategy, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BacktestResult
	for rows.Next() {
		var (
			r       domain.BacktestResult
			params  string
			created int64
		)
		if err := rows.Scan(&r.Strategy, &r.Market, &r.Count, &r.InvestmentFraction,
			&r.CumulativeReturnPct, &r.WinRatePct, &r.MaxDrawdownPct, &r.Trades,
			&params, &created); err != nil {
			return nil, err
		}
		if params != "" && params != "null" {
			if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
				return nil, fmt.Errorf("decoding params: %w", err)
			}
		}
		r.CreatedAt = time.UnixMilli(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SavePicks inserts one ranking run. Picks without RankedAt are stamped now.
func (s *SQLiteStore) SavePicks(ctx context.Context, picks []domain.Pick) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now()
	for _, p := range picks {
		ranked := p.RankedAt
		if ranked.IsZero() {
			ranked = now
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO picks (symbol, strategy, cumulative_return_pct, ranked_at) VALUES (?, ?, ?, ?)`,
			p.Symbol, p.Strategy, p.CumulativeReturnPct, ranked.UnixMilli(),
		); err != nil {
			return fmt.Errorf("inserting pick %s: %w", p.Symbol, err)
		}
	}
	return tx.Commit()
}

// LatestPicks returns the picks sharing the newest ranked_at stamp.
func (s *SQLiteStore) LatestPicks(ctx context.Context) ([]domain.Pick, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, strategy, cumulative_return_pct, ranked_at
		FROM picks
		WHERE ranked_at = (SELECT MAX(ranked_at) FROM picks)
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Pick
	for rows.Next() {
		var (
			p      domain.Pick
			ranked int64
		)
		if err := rows.Scan(&p.Symbol, &p.Strategy, &p.CumulativeReturnPct, &ranked); err != nil {
			return nil, err
		}
		p.RankedAt = time.UnixMilli(ranked)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// SignalStore implementation
// ---------------------------------------------------------------------------

// SaveSignal inserts a new signal into the database.
func (s *SQLiteStore) SaveSignal(ctx context.Context, sig *domain.LiveSignal) error {
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO signals (strategy_id, symbol, type, price, bar_time, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sig.StrategyID, sig.Symbol, string(sig.Type), sig.Price, sig.BarTime.UnixMilli(), sig.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting signal: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	sig.ID = id
	return nil
}

// ListSignals returns the most recent signals for a strategy, up to limit.
func (s *SQLiteStore) ListSignals(ctx context.Context, strategyID string, limit int) ([]domain.LiveSignal, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, strategy_id, symbol, type, price, bar_time, created_at
		FROM signals
		WHERE (? = '' OR strategy_id = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, strategyID, strategyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LiveSignal
	for rows.Next() {
		var (
			sig          domain.LiveSignal
			typ          string
			bar, created int64
		)
		if err := rows.Scan(&sig.ID, &sig.StrategyID, &sig.Symbol, &typ, &sig.Price, &bar, &created); err != nil {
			return nil, err
		}
		sig.Type = domain.SignalType(typ)
		sig.BarTime = time.UnixMilli(bar)
		sig.CreatedAt = time.UnixMilli(created)
		out = append(out, sig)
	}
	return out, rows.Err()
}
