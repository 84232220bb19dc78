package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"bingx-market-analyzer/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAssets_GetOrCreate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a1, err := store.GetOrCreate(ctx, "BTC/USDT")
	if err != nil {
		t.Fatal(err)
	}
	if a1.ID == "" || !a1.Active {
		t.Fatalf("unexpected asset %+v", a1)
	}

	// Second call returns the same row.
	a2, err := store.GetOrCreate(ctx, "BTC/USDT")
	if err != nil {
		t.Fatal(err)
	}
	if a2.ID != a1.ID {
		t.Fatalf("expected same asset id, got %s and %s", a1.ID, a2.ID)
	}
}

func TestAssets_ListActiveTruncates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, sym := range []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"} {
		if _, err := store.GetOrCreate(ctx, sym); err != nil {
			t.Fatal(err)
		}
	}

	assets, err := store.ListActive(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(assets))
	}
}

func TestIndicators_UpsertIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	asset, err := store.GetOrCreate(ctx, "BTC/USDT")
	if err != nil {
		t.Fatal(err)
	}

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	snap := &domain.IndicatorSnapshot{
		AssetID:         asset.ID,
		Timeframe:       "2h",
		Timestamp:       ts,
		MM1:             101.5,
		Center:          100.2,
		RSI:             55.0,
		VolumeSMA:       1200,
		CandlesAnalyzed: 50,
		DurationSeconds: 0.8,
	}
	if err := store.Upsert(ctx, snap); err != nil {
		t.Fatal(err)
	}

	// Same key with new values must update, not duplicate.
	snap.RSI = 61.0
	if err := store.Upsert(ctx, snap); err != nil {
		t.Fatal(err)
	}

	var count int
	var rsi float64
	row := store.db.QueryRow(`SELECT COUNT(*), MAX(rsi) FROM indicators WHERE asset_id = ?`, asset.ID)
	if err := row.Scan(&count, &rsi); err != nil {
		t.Fatal(err)
	}
	if count != 1 || rsi != 61.0 {
		t.Fatalf("expected 1 row with rsi 61, got %d rows rsi %f", count, rsi)
	}
}

func TestSignals_CreateAndListRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	asset, err := store.GetOrCreate(ctx, "BTC/USDT")
	if err != nil {
		t.Fatal(err)
	}

	snapshot, _ := json.Marshal(map[string]float64{"rsi": 62.5})
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := &domain.SignalRecord{
			AssetID:    asset.ID,
			Symbol:     asset.Symbol,
			Type:       domain.SignalBuy,
			Confidence: 0.65,
			Rules:      []string{"ma_crossover", "volume_spike"},
			Snapshot:   snapshot,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Create(ctx, rec); err != nil {
			t.Fatal(err)
		}
		if rec.ID == "" {
			t.Fatal("expected generated signal id")
		}
	}

	records, err := store.ListRecent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	// Newest first.
	if !records[0].CreatedAt.After(records[1].CreatedAt) {
		t.Fatalf("expected newest first, got %v then %v", records[0].CreatedAt, records[1].CreatedAt)
	}
	if len(records[0].Rules) != 2 || records[0].Rules[0] != "ma_crossover" {
		t.Fatalf("rules did not round-trip: %v", records[0].Rules)
	}
}
