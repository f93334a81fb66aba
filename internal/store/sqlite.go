package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/models"
)

// SQLiteStore implements TradeStore using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultDBPath returns the default database location.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "trades.db"
	}
	return filepath.Join(home, ".local", "share", "delta-spread", "trades.db")
}

// NewSQLiteStore opens (creating if needed) the trade database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Saved trades, one row per strategy
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		underlier_symbol TEXT NOT NULL,
		underlier_spot REAL NOT NULL,
		underlier_multiplier INTEGER NOT NULL,
		underlier_currency TEXT NOT NULL,
		same_expiry INTEGER DEFAULT 0,
		max_short_qty INTEGER DEFAULT 0,
		tags TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		notes TEXT
	);

	-- Legs, ordered by position within their trade
	CREATE TABLE IF NOT EXISTS trade_legs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trade_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		expiry TEXT NOT NULL,
		strike REAL NOT NULL,
		option_type TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		entry_price REAL,
		notes TEXT,
		FOREIGN KEY (trade_id) REFERENCES trades(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(underlier_symbol);
	CREATE INDEX IF NOT EXISTS idx_trade_legs_trade ON trade_legs(trade_id, position);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save stores a strategy under name and returns the new trade ID.
func (s *SQLiteStore) Save(ctx context.Context, st models.Strategy, name, notes string) (string, error) {
	id := uuid.New().String()
	now := s.now()
	tags, _ := json.Marshal(st.Tags)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trades (id, name, underlier_symbol, underlier_spot, underlier_multiplier, underlier_currency, same_expiry, max_short_qty, tags, created_at, updated_at, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, name, st.Underlier.Symbol, st.Underlier.Spot, st.Underlier.Multiplier, st.Underlier.Currency,
		boolToInt(st.Constraints.SameExpiry), st.Constraints.MaxTotalShortQty, string(tags), now, now, nullString(notes))
	if err != nil {
		if isUniqueViolation(err) {
			return "", apperrors.Wrapf(apperrors.ErrDuplicateTradeName, "%q", name)
		}
		return "", apperrors.NewDataError("trade", name, "failed to insert trade", errors.Join(apperrors.ErrDatabaseError, err))
	}

	if err := insertLegs(ctx, tx, id, st.Legs); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}

// Update replaces the legs, underlier and notes of an existing trade.
func (s *SQLiteStore) Update(ctx context.Context, id string, st models.Strategy, notes string) error {
	tags, _ := json.Marshal(st.Tags)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE trades
		SET underlier_symbol = ?, underlier_spot = ?, underlier_multiplier = ?, underlier_currency = ?,
		    same_expiry = ?, max_short_qty = ?, tags = ?, updated_at = ?, notes = ?
		WHERE id = ?
	`, st.Underlier.Symbol, st.Underlier.Spot, st.Underlier.Multiplier, st.Underlier.Currency,
		boolToInt(st.Constraints.SameExpiry), st.Constraints.MaxTotalShortQty, string(tags), s.now(), nullString(notes), id)
	if err != nil {
		return apperrors.NewDataError("trade", id, "failed to update trade", errors.Join(apperrors.ErrDatabaseError, err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.Wrapf(apperrors.ErrTradeNotFound, "id %s", id)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM trade_legs WHERE trade_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear legs: %w", err)
	}
	if err := insertLegs(ctx, tx, id, st.Legs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete removes a trade and its legs.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trades WHERE id = ?`, id)
	if err != nil {
		return apperrors.NewDataError("trade", id, "failed to delete trade", errors.Join(apperrors.ErrDatabaseError, err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.Wrapf(apperrors.ErrTradeNotFound, "id %s", id)
	}
	return nil
}

// GetByID loads a trade by ID.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*SavedTrade, error) {
	return s.getOne(ctx, "id = ?", id)
}

// GetByName loads a trade by its unique name.
func (s *SQLiteStore) GetByName(ctx context.Context, name string) (*SavedTrade, error) {
	return s.getOne(ctx, "name = ?", name)
}

func (s *SQLiteStore) getOne(ctx context.Context, where string, arg interface{}) (*SavedTrade, error) {
	var (
		t          SavedTrade
		u          models.Underlier
		sameExpiry int
		maxShort   int
		tags       sql.NullString
		notes      sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, underlier_symbol, underlier_spot, underlier_multiplier, underlier_currency,
		       same_expiry, max_short_qty, tags, created_at, updated_at, notes
		FROM trades WHERE `+where, arg).
		Scan(&t.ID, &t.Name, &u.Symbol, &u.Spot, &u.Multiplier, &u.Currency,
			&sameExpiry, &maxShort, &tags, &t.CreatedAt, &t.UpdatedAt, &notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Wrapf(apperrors.ErrTradeNotFound, "%v", arg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	t.Notes = notes.String

	legs, err := s.getLegs(ctx, t.ID, u.Symbol)
	if err != nil {
		return nil, err
	}

	t.Strategy = models.Strategy{
		Name:      t.Name,
		Underlier: u,
		Legs:      legs,
		CreatedAt: t.CreatedAt,
		Constraints: models.StrategyConstraints{
			SameExpiry:       sameExpiry == 1,
			MaxTotalShortQty: maxShort,
		},
	}
	if tags.Valid && tags.String != "" && tags.String != "null" {
		if err := json.Unmarshal([]byte(tags.String), &t.Strategy.Tags); err != nil {
			return nil, apperrors.NewDataError("trade", t.ID, "corrupt tags", err)
		}
	}
	return &t, nil
}

func (s *SQLiteStore) getLegs(ctx context.Context, tradeID, symbol string) ([]models.OptionLeg, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT expiry, strike, option_type, side, quantity, entry_price, notes
		FROM trade_legs WHERE trade_id = ?
		ORDER BY position ASC
	`, tradeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query legs: %w", err)
	}
	defer rows.Close()

	var legs []models.OptionLeg
	for rows.Next() {
		var (
			leg    models.OptionLeg
			expiry string
			kind   string
			side   string
			entry  sql.NullFloat64
			notes  sql.NullString
		)
		if err := rows.Scan(&expiry, &leg.Contract.Strike, &kind, &side, &leg.Quantity, &entry, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan leg: %w", err)
		}
		exp, err := time.Parse(models.DateLayout, expiry)
		if err != nil {
			return nil, apperrors.NewDataError("trade_leg", tradeID, "corrupt expiry "+expiry, err)
		}
		leg.Contract.Symbol = symbol
		leg.Contract.Expiry = exp
		leg.Contract.Kind = models.OptionKind(kind)
		leg.Side = models.OrderSide(side)
		if entry.Valid {
			leg.EntryPrice = models.Float(entry.Float64)
		}
		leg.Notes = notes.String
		legs = append(legs, leg)
	}
	return legs, rows.Err()
}

// List returns summaries of all trades, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context) ([]TradeSummary, error) {
	return s.listWhere(ctx, "", nil)
}

// ListBySymbol returns summaries of trades on symbol.
func (s *SQLiteStore) ListBySymbol(ctx context.Context, symbol string) ([]TradeSummary, error) {
	return s.listWhere(ctx, "WHERE t.underlier_symbol = ?", []interface{}{strings.ToUpper(symbol)})
}

func (s *SQLiteStore) listWhere(ctx context.Context, where string, args []interface{}) ([]TradeSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.underlier_symbol,
		       (SELECT COUNT(1) FROM trade_legs l WHERE l.trade_id = t.id),
		       t.created_at, t.updated_at, t.notes
		FROM trades t
		`+where+`
		ORDER BY t.updated_at DESC, t.name ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var out []TradeSummary
	for rows.Next() {
		var ts TradeSummary
		var notes sql.NullString
		if err := rows.Scan(&ts.ID, &ts.Name, &ts.Symbol, &ts.LegCount, &ts.CreatedAt, &ts.UpdatedAt, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan trade summary: %w", err)
		}
		ts.Notes = notes.String
		out = append(out, ts)
	}
	return out, rows.Err()
}

// NameExists reports whether a trade already uses name.
func (s *SQLiteStore) NameExists(ctx context.Context, name string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM trades WHERE name = ?`, name).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check trade name: %w", err)
	}
	return n > 0, nil
}

func insertLegs(ctx context.Context, tx *sql.Tx, tradeID string, legs []models.OptionLeg) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trade_legs (trade_id, position, expiry, strike, option_type, side, quantity, entry_price, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, leg := range legs {
		var entry interface{}
		if leg.EntryPrice != nil {
			entry = *leg.EntryPrice
		}
		_, err := stmt.ExecContext(ctx, tradeID, i, leg.Contract.Expiry.Format(models.DateLayout), leg.Contract.Strike,
			string(leg.Contract.Kind), string(leg.Side), leg.Quantity, entry, nullString(leg.Notes))
		if err != nil {
			return fmt.Errorf("failed to insert leg %d: %w", i, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
