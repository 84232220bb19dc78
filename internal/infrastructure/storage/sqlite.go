package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"bingx-market-analyzer/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS assets (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL UNIQUE,
			active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS indicators (
			asset_id TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			mm1 REAL NOT NULL,
			center REAL NOT NULL,
			rsi REAL NOT NULL,
			volume_sma REAL NOT NULL,
			candles_analyzed INTEGER NOT NULL,
			duration_seconds REAL NOT NULL,
			PRIMARY KEY (asset_id, timeframe, timestamp)
		);`,
		`CREATE TABLE IF NOT EXISTS signals (
			id TEXT PRIMARY KEY,
			asset_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			signal_type TEXT NOT NULL,
			confidence REAL NOT NULL,
			rules TEXT NOT NULL,
			snapshot TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_signals_created_at ON signals(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_indicators_asset ON indicators(asset_id, timeframe);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AssetRepository implementation

func (s *SQLiteStore) GetBySymbol(ctx context.Context, symbol string) (*domain.Asset, error) {
	query := `SELECT id, symbol, active, created_at FROM assets WHERE symbol = ?`
	row := s.db.QueryRowContext(ctx, query, symbol)

	var a domain.Asset
	if err := row.Scan(&a.ID, &a.Symbol, &a.Active, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLiteStore) GetOrCreate(ctx context.Context, symbol string) (*domain.Asset, error) {
	asset, err := s.GetBySymbol(ctx, symbol)
	if err == nil {
		return asset, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	a := &domain.Asset{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	query := `INSERT INTO assets (id, symbol, active, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, a.ID, a.Symbol, a.Active, a.CreatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *SQLiteStore) ListActive(ctx context.Context, limit int) ([]*domain.Asset, error) {
	query := `SELECT id, symbol, active, created_at FROM assets WHERE active = 1 ORDER BY symbol LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*domain.Asset
	for rows.Next() {
		var a domain.Asset
		if err := rows.Scan(&a.ID, &a.Symbol, &a.Active, &a.CreatedAt); err != nil {
			return nil, err
		}
		assets = append(assets, &a)
	}
	return assets, rows.Err()
}

// IndicatorRepository implementation

func (s *SQLiteStore) Upsert(ctx context.Context, snap *domain.IndicatorSnapshot) error {
	query := `INSERT INTO indicators (asset_id, timeframe, timestamp, mm1, center, rsi, volume_sma, candles_analyzed, duration_seconds)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(asset_id, timeframe, timestamp) DO UPDATE SET
			  mm1=excluded.mm1,
			  center=excluded.center,
			  rsi=excluded.rsi,
			  volume_sma=excluded.volume_sma,
			  candles_analyzed=excluded.candles_analyzed,
			  duration_seconds=excluded.duration_seconds`
	_, err := s.db.ExecContext(ctx, query,
		snap.AssetID, snap.Timeframe, snap.Timestamp, snap.MM1, snap.Center,
		snap.RSI, snap.VolumeSMA, snap.CandlesAnalyzed, snap.DurationSeconds)
	return err
}

// SignalRepository implementation

func (s *SQLiteStore) Create(ctx context.Context, rec *domain.SignalRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rules, err := json.Marshal(rec.Rules)
	if err != nil {
		return err
	}
	query := `INSERT INTO signals (id, asset_id, symbol, signal_type, confidence, rules, snapshot, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.AssetID, rec.Symbol, string(rec.Type), rec.Confidence,
		string(rules), string(rec.Snapshot), rec.CreatedAt)
	return err
}

func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]*domain.SignalRecord, error) {
	query := `SELECT id, asset_id, symbol, signal_type, confidence, rules, snapshot, created_at
			  FROM signals ORDER BY created_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.SignalRecord
	for rows.Next() {
		var r domain.SignalRecord
		var rules, snapshot string
		if err := rows.Scan(&r.ID, &r.AssetID, &r.Symbol, &r.Type, &r.Confidence, &rules, &snapshot, &r.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(rules), &r.Rules); err != nil {
			return nil, err
		}
		r.Snapshot = json.RawMessage(snapshot)
		records = append(records, &r)
	}
	return records, rows.Err()
}
