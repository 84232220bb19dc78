package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Exchange is the resilient client surface the analysis pipeline consumes.
// Symbols are BASE/QUOTE (e.g. BTC/USDT); wire-format conversion is the
// implementation's concern.
type Exchange interface {
	Initialize(ctx context.Context) error
	FetchMarkets(ctx context.Context) ([]Market, error)
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
	FetchOrderBook(ctx context.Context, symbol string, limit int) (*OrderBook, error)
	FetchBalance(ctx context.Context) (map[string]Balance, error)
	CreateMarketOrder(ctx context.Context, symbol string, side OrderSide, amount decimal.Decimal) (*Order, error)
	CreateLimitOrder(ctx context.Context, symbol string, side OrderSide, amount, price decimal.Decimal) (*Order, error)
	CreateStopOrder(ctx context.Context, symbol string, side OrderSide, amount, stopPrice decimal.Decimal) (*Order, error)
	CancelOrder(ctx context.Context, orderID, symbol string) error
	FetchOrder(ctx context.Context, orderID, symbol string) (*Order, error)
	FetchOpenOrders(ctx context.Context, symbol string) ([]Order, error)
}

// CoordinatorStats is a read-only snapshot of the shared API budget.
type CoordinatorStats struct {
	Workers        map[string]string `json:"workers"` // id -> kind
	WindowRequests int               `json:"window_requests"`
	Budget         int               `json:"budget"`
	KindUsage      map[string]int    `json:"kind_usage"`
}

// Coordinator arbitrates the shared exchange API budget across workers.
// RequestPermission blocks until the caller may issue one request, or
// returns the context error on cancellation.
type Coordinator interface {
	RegisterWorker(id, kind string) error
	UnregisterWorker(id string)
	RequestPermission(ctx context.Context, id, category string) error
	Stats() CoordinatorStats
}

type AssetRepository interface {
	GetBySymbol(ctx context.Context, symbol string) (*Asset, error)
	GetOrCreate(ctx context.Context, symbol string) (*Asset, error)
	ListActive(ctx context.Context, limit int) ([]*Asset, error)
}

type IndicatorRepository interface {
	Upsert(ctx context.Context, snap *IndicatorSnapshot) error
}

type SignalRepository interface {
	Create(ctx context.Context, rec *SignalRecord) error
	ListRecent(ctx context.Context, limit int) ([]*SignalRecord, error)
}

// Broadcaster publishes a stored signal to live subscribers. Fire and
// forget; delivery failure never blocks the analysis pipeline.
type Broadcaster interface {
	BroadcastSignal(rec *SignalRecord)
}
