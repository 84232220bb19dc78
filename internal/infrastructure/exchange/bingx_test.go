package exchange

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bingx-market-analyzer/internal/domain"
)

type fakeTransport struct {
	calls   int
	lastURL string
	handler func(method, path string, params url.Values, private bool) ([]byte, error)
}

func (f *fakeTransport) request(ctx context.Context, method, path, endpoint string, params url.Values, private bool) ([]byte, error) {
	f.calls++
	f.lastURL = path
	return f.handler(method, path, params, private)
}

func newTestClient(ft *fakeTransport) *BingXClient {
	logger := zap.NewNop()
	breaker, _ := newTestBreaker()
	retry := NewRetryExecutor(breaker, logger)
	retry.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	limiter := NewRateLimiter()
	limiter.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return &BingXClient{
		transport:   ft,
		limiter:     limiter,
		retry:       retry,
		breaker:     breaker,
		logger:      logger,
		sandbox:     true,
		initialized: true,
	}
}

const contractsBody = `{"code":0,"msg":"","data":[
	{"symbol":"BTC-USDT","asset":"BTC","currency":"USDT","pricePrecision":2,
	 "quantityPrecision":4,"tradeMinQuantity":"0.0001","makerFeeRate":"0.0002",
	 "takerFeeRate":"0.0005","status":1}]}`

func TestSymbolRoundTrip(t *testing.T) {
	wire := ToWireSymbol("BTC/USDT")
	assert.Equal(t, "BTC-USDT", wire)
	assert.Equal(t, "BTC/USDT", FromWireSymbol(wire))
}

func TestInitialize_ProbesMarkets(t *testing.T) {
	ft := &fakeTransport{handler: func(method, path string, params url.Values, private bool) ([]byte, error) {
		return []byte(contractsBody), nil
	}}
	c := newTestClient(ft)
	c.initialized = false

	require.NoError(t, c.Initialize(context.Background()))
	assert.Equal(t, 1, ft.calls)

	// Idempotent: a second call does not probe again.
	require.NoError(t, c.Initialize(context.Background()))
	assert.Equal(t, 1, ft.calls)
}

func TestInitialize_FailsOnEmptyMarkets(t *testing.T) {
	ft := &fakeTransport{handler: func(method, path string, params url.Values, private bool) ([]byte, error) {
		return []byte(`{"code":0,"msg":"","data":[]}`), nil
	}}
	c := newTestClient(ft)
	c.initialized = false

	require.Error(t, c.Initialize(context.Background()))
	if _, failures := c.breaker.Snapshot(); failures != 0 {
		t.Fatalf("a successful but empty probe must not feed the breaker, got %d", failures)
	}
}

func TestOperationsRequireInitialization(t *testing.T) {
	ft := &fakeTransport{handler: func(method, path string, params url.Values, private bool) ([]byte, error) {
		t.Fatal("no request expected")
		return nil, nil
	}}
	c := newTestClient(ft)
	c.initialized = false

	_, err := c.FetchTicker(context.Background(), "BTC/USDT")
	require.Error(t, err)
	assert.Equal(t, 0, ft.calls)
}

func TestFetchTicker_NormalizesDecimals(t *testing.T) {
	body := `{"code":0,"msg":"","data":{
		"symbol":"BTC-USDT","lastPrice":"0.123456789","bidPrice":"0.123456788",
		"askPrice":"0.123456790","openPrice":"0.12","highPrice":"0.13","lowPrice":"0.11",
		"volume":"1000.5","quoteVolume":"123.45","priceChange":"0.003",
		"priceChangePercent":"2.50%","closeTime":1700000000000}}`
	ft := &fakeTransport{handler: func(method, path string, params url.Values, private bool) ([]byte, error) {
		assert.Equal(t, "BTC-USDT", params.Get("symbol"))
		assert.False(t, private)
		return []byte(body), nil
	}}
	c := newTestClient(ft)

	ticker, err := c.FetchTicker(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, "BTC/USDT", ticker.Symbol)
	// Exact precision survives normalization.
	assert.Equal(t, "0.123456789", ticker.Last.String())
	assert.Equal(t, "2.5", ticker.Percentage.String())
	assert.Equal(t, int64(1700000000000), ticker.Timestamp)
}

func TestFetchTicker_ValidationNeverHitsNetwork(t *testing.T) {
	ft := &fakeTransport{handler: func(method, path string, params url.Values, private bool) ([]byte, error) {
		t.Fatal("no request expected")
		return nil, nil
	}}
	c := newTestClient(ft)

	_, err := c.FetchTicker(context.Background(), "BTCUSDT")
	var valErr *domain.ValidationError
	require.True(t, errors.As(err, &valErr), "expected ValidationError, got %v", err)
	assert.Equal(t, 0, ft.calls)
}

func TestFetchCandles_SortsOldestFirst(t *testing.T) {
	body := `{"code":0,"msg":"","data":[
		{"open":"2","high":"3","low":"1","close":"2.5","volume":"20","time":2000},
		{"open":"1","high":"2","low":"0.5","close":"1.5","volume":"10","time":1000}]}`
	ft := &fakeTransport{handler: func(method, path string, params url.Values, private bool) ([]byte, error) {
		return []byte(body), nil
	}}
	c := newTestClient(ft)

	candles, err := c.FetchCandles(context.Background(), "BTC/USDT", "2h", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1000), candles[0].Timestamp)
	assert.Equal(t, int64(2000), candles[1].Timestamp)
	assert.Equal(t, "1.5", candles[0].Close.String())
}

func TestFetchCandles_RejectsBadArguments(t *testing.T) {
	ft := &fakeTransport{handler: func(method, path string, params url.Values, private bool) ([]byte, error) {
		t.Fatal("no request expected")
		return nil, nil
	}}
	c := newTestClient(ft)
	ctx := context.Background()

	var valErr *domain.ValidationError
	_, err := c.FetchCandles(ctx, "BTC/USDT", "7m", 10)
	require.True(t, errors.As(err, &valErr))
	_, err = c.FetchCandles(ctx, "BTC/USDT", "2h", 0)
	require.True(t, errors.As(err, &valErr))
}

func TestPermanentExchangeErrorAttemptedOnce(t *testing.T) {
	ft := &fakeTransport{handler: func(method, path string, params url.Values, private bool) ([]byte, error) {
		return nil, &domain.ExchangeError{Endpoint: "fetch_ticker", Code: 80012, Msg: "invalid symbol"}
	}}
	c := newTestClient(ft)

	_, err := c.FetchTicker(context.Background(), "NOPE/USDT")
	require.Error(t, err)
	assert.Equal(t, 1, ft.calls)

	var mdErr *domain.MarketDataError
	require.True(t, errors.As(err, &mdErr), "expected MarketDataError wrapper, got %v", err)
	var exchErr *domain.ExchangeError
	assert.True(t, errors.As(err, &exchErr), "cause must stay reachable via errors.As")
}

func TestBreakerOpensAfterRepeatedRateLimits(t *testing.T) {
	ft := &fakeTransport{handler: func(method, path string, params url.Values, private bool) ([]byte, error) {
		return nil, &domain.RateLimitedError{Endpoint: "fetch_ticker"}
	}}
	c := newTestClient(ft)
	// One attempt per call so each call records exactly one failure.
	c.retry.maxRetries = 1

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := c.FetchTicker(ctx, "BTC/USDT")
		require.Error(t, err)
	}
	assert.Equal(t, 3, ft.calls)

	// Fourth call inside the recovery window: rejected with no attempt.
	_, err := c.FetchTicker(ctx, "BTC/USDT")
	var open *domain.CircuitOpenError
	require.True(t, errors.As(err, &open), "expected CircuitOpenError, got %v", err)
	assert.Greater(t, open.RetryIn, time.Duration(0))
	assert.Equal(t, 3, ft.calls)
}

func TestCreateOrder_Validation(t *testing.T) {
	ft := &fakeTransport{handler: func(method, path string, params url.Values, private bool) ([]byte, error) {
		t.Fatal("no request expected")
		return nil, nil
	}}
	c := newTestClient(ft)
	ctx := context.Background()

	var valErr *domain.ValidationError
	_, err := c.CreateMarketOrder(ctx, "BTC/USDT", "hold", decimal.NewFromInt(1))
	require.True(t, errors.As(err, &valErr))
	_, err = c.CreateMarketOrder(ctx, "BTC/USDT", domain.SideBuy, decimal.Zero)
	require.True(t, errors.As(err, &valErr))
	_, err = c.CreateLimitOrder(ctx, "BTC/USDT", domain.SideBuy, decimal.NewFromInt(1), decimal.NewFromInt(-5))
	require.True(t, errors.As(err, &valErr))
	_, err = c.CreateStopOrder(ctx, "BTC/USDT", domain.SideSell, decimal.NewFromInt(1), decimal.Zero)
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, 0, ft.calls)
}

func TestCreateLimitOrder_WireFormat(t *testing.T) {
	ft := &fakeTransport{handler: func(method, path string, params url.Values, private bool) ([]byte, error) {
		assert.True(t, private)
		assert.Equal(t, "BTC-USDT", params.Get("symbol"))
		assert.Equal(t, "BUY", params.Get("side"))
		assert.Equal(t, "LIMIT", params.Get("type"))
		assert.Equal(t, "0.5", params.Get("quantity"))
		assert.Equal(t, "30000.25", params.Get("price"))
		return []byte(`{"code":0,"msg":"","data":{"order":{"orderId":123456}}}`), nil
	}}
	c := newTestClient(ft)

	amount := decimal.RequireFromString("0.5")
	price := decimal.RequireFromString("30000.25")
	order, err := c.CreateLimitOrder(context.Background(), "BTC/USDT", domain.SideBuy, amount, price)
	require.NoError(t, err)
	assert.Equal(t, "123456", order.ID)
	assert.Equal(t, "BTC/USDT", order.Symbol)
	assert.Equal(t, domain.OrderLimit, order.Type)
	assert.True(t, order.Amount.Equal(amount))
	assert.True(t, order.Price.Equal(price))
}

func TestFetchOrder_NormalizesWireOrder(t *testing.T) {
	body := `{"code":0,"msg":"","data":{"order":{
		"orderId":987,"symbol":"ETH-USDT","side":"SELL","type":"LIMIT",
		"origQty":"2","price":"2000","stopPrice":"0","avgPrice":"1999.5",
		"executedQty":"1.5","cumQuote":"2999.25","status":"PARTIALLY_FILLED",
		"time":1700000000000}}}`
	ft := &fakeTransport{handler: func(method, path string, params url.Values, private bool) ([]byte, error) {
		return []byte(body), nil
	}}
	c := newTestClient(ft)

	order, err := c.FetchOrder(context.Background(), "987", "ETH/USDT")
	require.NoError(t, err)
	assert.Equal(t, "ETH/USDT", order.Symbol)
	assert.Equal(t, domain.SideSell, order.Side)
	assert.Equal(t, "open", order.Status)
	assert.Equal(t, "0.5", order.Remaining.String())
	assert.Equal(t, "2999.25", order.Cost.String())
}

func TestFetchOpenOrders_OptionalSymbol(t *testing.T) {
	ft := &fakeTransport{handler: func(method, path string, params url.Values, private bool) ([]byte, error) {
		assert.Empty(t, params.Get("symbol"))
		return []byte(`{"code":0,"msg":"","data":{"orders":[]}}`), nil
	}}
	c := newTestClient(ft)

	orders, err := c.FetchOpenOrders(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCancelOrder_RequiresID(t *testing.T) {
	ft := &fakeTransport{handler: func(method, path string, params url.Values, private bool) ([]byte, error) {
		t.Fatal("no request expected")
		return nil, nil
	}}
	c := newTestClient(ft)

	err := c.CancelOrder(context.Background(), "", "BTC/USDT")
	var valErr *domain.ValidationError
	require.True(t, errors.As(err, &valErr))
}

func TestFetchBalance_Normalizes(t *testing.T) {
	body := `{"code":0,"msg":"","data":{"balance":{
		"asset":"USDT","balance":"1000.123456789","availableMargin":"900.5","usedMargin":"99.623456789"}}}`
	ft := &fakeTransport{handler: func(method, path string, params url.Values, private bool) ([]byte, error) {
		assert.True(t, private)
		return []byte(body), nil
	}}
	c := newTestClient(ft)

	balances, err := c.FetchBalance(context.Background())
	require.NoError(t, err)
	require.Contains(t, balances, "USDT")
	assert.Equal(t, "1000.123456789", balances["USDT"].Total.String())
	assert.Equal(t, "900.5", balances["USDT"].Free.String())
}
