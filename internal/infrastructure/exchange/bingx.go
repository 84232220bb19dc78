package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bingx-market-analyzer/internal/domain"
)

const (
	contractsPath  = "/openApi/swap/v2/quote/contracts"
	tickerPath     = "/openApi/swap/v2/quote/ticker"
	klinesPath     = "/openApi/swap/v3/quote/klines"
	depthPath      = "/openApi/swap/v2/quote/depth"
	balancePath    = "/openApi/swap/v2/user/balance"
	orderPath      = "/openApi/swap/v2/trade/order"
	openOrdersPath = "/openApi/swap/v2/trade/openOrders"
)

var validTimeframes = map[string]bool{
	"1m": true, "3m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "2h": true, "4h": true, "6h": true, "8h": true,
	"12h": true, "1d": true,
}

// BingXClient is the typed, resilient client over the BingX perpetual
// swap REST API. Every operation admits through the rate limiter and
// runs under the retry executor; responses are normalized to decimal
// records before anything else sees them.
type BingXClient struct {
	transport transport
	limiter   *RateLimiter
	retry     *RetryExecutor
	breaker   *CircuitBreaker
	logger    *zap.Logger
	sandbox   bool

	mu          sync.Mutex
	initialized bool
}

func NewBingXClient(apiKey, apiSecret, baseURL string, sandbox bool, timeout time.Duration, logger *zap.Logger) *BingXClient {
	if baseURL == "" {
		baseURL = BingXBaseURL
		if sandbox {
			baseURL = BingXSandboxURL
		}
	}
	breaker := NewCircuitBreaker(logger)
	return &BingXClient{
		transport: newBingXTransport(apiKey, apiSecret, baseURL, timeout),
		limiter:   NewRateLimiter(),
		retry:     NewRetryExecutor(breaker, logger),
		breaker:   breaker,
		logger:    logger,
		sandbox:   sandbox,
	}
}

// ToWireSymbol converts BTC/USDT to the BTC-USDT wire form.
func ToWireSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "-")
}

// FromWireSymbol converts BTC-USDT back to BTC/USDT.
func FromWireSymbol(wire string) string {
	return strings.ReplaceAll(wire, "-", "/")
}

func validateSymbol(symbol string) error {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return domain.NewValidationError("symbol must be BASE/QUOTE, got %q", symbol)
	}
	return nil
}

func validateSide(side domain.OrderSide) error {
	if side != domain.SideBuy && side != domain.SideSell {
		return domain.NewValidationError("side must be buy or sell, got %q", side)
	}
	return nil
}

func validatePositive(name string, v decimal.Decimal) error {
	if v.Sign() <= 0 {
		return domain.NewValidationError("%s must be positive, got %s", name, v)
	}
	return nil
}

// Initialize probes public connectivity (markets must be non-empty) and,
// outside sandbox mode, attempts one private balance call whose failure
// is logged but not fatal. Safe to call more than once.
func (c *BingXClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	markets, err := c.fetchMarkets(ctx)
	if err != nil {
		return fmt.Errorf("connectivity probe: %w", err)
	}
	if len(markets) == 0 {
		return errors.New("connectivity probe returned no markets")
	}

	if !c.sandbox {
		if _, err := c.fetchBalance(ctx); err != nil {
			c.logger.Warn("private API probe failed, trading operations may not work", zap.Error(err))
		}
	}

	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()

	c.logger.Info("exchange client initialized", zap.Int("markets", len(markets)))
	return nil
}

func (c *BingXClient) ensureInitialized() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return errors.New("exchange client not initialized")
	}
	return nil
}

// BreakerState reports whether the breaker is open and the current
// failure count.
func (c *BingXClient) BreakerState() (open bool, failures int) {
	return c.breaker.Snapshot()
}

// --- market data ---

func (c *BingXClient) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	return c.fetchMarkets(ctx)
}

func (c *BingXClient) fetchMarkets(ctx context.Context) ([]domain.Market, error) {
	const endpoint = "fetch_markets"
	if err := c.limiter.Admit(ctx, endpoint); err != nil {
		return nil, err
	}

	var markets []domain.Market
	err := c.retry.Execute(ctx, endpoint, func() error {
		raw, err := c.transport.request(ctx, http.MethodGet, contractsPath, endpoint, nil, false)
		if err != nil {
			return err
		}
		markets, err = parseMarkets(endpoint, raw)
		return err
	})
	return markets, wrapMarketData(endpoint, err)
}

func (c *BingXClient) FetchTicker(ctx context.Context, symbol string) (*domain.Ticker, error) {
	const endpoint = "fetch_ticker"
	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	if err := c.limiter.Admit(ctx, endpoint); err != nil {
		return nil, err
	}
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbol", ToWireSymbol(symbol))

	var ticker *domain.Ticker
	err := c.retry.Execute(ctx, endpoint, func() error {
		raw, err := c.transport.request(ctx, http.MethodGet, tickerPath, endpoint, params, false)
		if err != nil {
			return err
		}
		ticker, err = parseTicker(endpoint, raw)
		return err
	})
	if err != nil {
		return nil, wrapMarketData(endpoint, err)
	}
	return ticker, nil
}

func (c *BingXClient) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	const endpoint = "fetch_ohlcv"
	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	if err := c.limiter.Admit(ctx, endpoint); err != nil {
		return nil, err
	}
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}
	if !validTimeframes[timeframe] {
		return nil, domain.NewValidationError("unsupported timeframe %q", timeframe)
	}
	if limit <= 0 {
		return nil, domain.NewValidationError("candle limit must be positive, got %d", limit)
	}

	params := url.Values{}
	params.Set("symbol", ToWireSymbol(symbol))
	params.Set("interval", timeframe)
	params.Set("limit", strconv.Itoa(limit))

	var candles []domain.Candle
	err := c.retry.Execute(ctx, endpoint, func() error {
		raw, err := c.transport.request(ctx, http.MethodGet, klinesPath, endpoint, params, false)
		if err != nil {
			return err
		}
		candles, err = parseCandles(endpoint, raw)
		return err
	})
	if err != nil {
		return nil, wrapMarketData(endpoint, err)
	}
	return candles, nil
}

func (c *BingXClient) FetchOrderBook(ctx context.Context, symbol string, limit int) (*domain.OrderBook, error) {
	const endpoint = "fetch_orderbook"
	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	if err := c.limiter.Admit(ctx, endpoint); err != nil {
		return nil, err
	}
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("symbol", ToWireSymbol(symbol))
	params.Set("limit", strconv.Itoa(limit))

	var book *domain.OrderBook
	err := c.retry.Execute(ctx, endpoint, func() error {
		raw, err := c.transport.request(ctx, http.MethodGet, depthPath, endpoint, params, false)
		if err != nil {
			return err
		}
		book, err = parseOrderBook(endpoint, symbol, raw)
		return err
	})
	if err != nil {
		return nil, wrapMarketData(endpoint, err)
	}
	return book, nil
}

// --- account ---

func (c *BingXClient) FetchBalance(ctx context.Context) (map[string]domain.Balance, error) {
	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	return c.fetchBalance(ctx)
}

func (c *BingXClient) fetchBalance(ctx context.Context) (map[string]domain.Balance, error) {
	const endpoint = "fetch_balance"
	if err := c.limiter.Admit(ctx, endpoint); err != nil {
		return nil, err
	}

	var balances map[string]domain.Balance
	err := c.retry.Execute(ctx, endpoint, func() error {
		raw, err := c.transport.request(ctx, http.MethodGet, balancePath, endpoint, nil, true)
		if err != nil {
			return err
		}
		balances, err = parseBalances(endpoint, raw)
		return err
	})
	if err != nil {
		return nil, wrapTrading(endpoint, err)
	}
	return balances, nil
}

// --- orders ---

func (c *BingXClient) CreateMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, amount decimal.Decimal) (*domain.Order, error) {
	return c.createOrder(ctx, symbol, side, domain.OrderMarket, amount, decimal.Zero, decimal.Zero)
}

func (c *BingXClient) CreateLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, amount, price decimal.Decimal) (*domain.Order, error) {
	return c.createOrder(ctx, symbol, side, domain.OrderLimit, amount, price, decimal.Zero)
}

func (c *BingXClient) CreateStopOrder(ctx context.Context, symbol string, side domain.OrderSide, amount, stopPrice decimal.Decimal) (*domain.Order, error) {
	return c.createOrder(ctx, symbol, side, domain.OrderStop, amount, decimal.Zero, stopPrice)
}

func (c *BingXClient) createOrder(ctx context.Context, symbol string, side domain.OrderSide, orderType domain.OrderType, amount, price, stopPrice decimal.Decimal) (*domain.Order, error) {
	const endpoint = "create_order"
	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	if err := c.limiter.Admit(ctx, endpoint); err != nil {
		return nil, err
	}
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}
	if err := validateSide(side); err != nil {
		return nil, err
	}
	if err := validatePositive("amount", amount); err != nil {
		return nil, err
	}
	if orderType == domain.OrderLimit {
		if err := validatePositive("price", price); err != nil {
			return nil, err
		}
	}
	if orderType == domain.OrderStop {
		if err := validatePositive("stop price", stopPrice); err != nil {
			return nil, err
		}
	}

	params := url.Values{}
	params.Set("symbol", ToWireSymbol(symbol))
	params.Set("side", strings.ToUpper(string(side)))
	params.Set("positionSide", "BOTH")
	params.Set("type", wireOrderType(orderType))
	params.Set("quantity", amount.String())
	if orderType == domain.OrderLimit {
		params.Set("price", price.String())
	}
	if orderType == domain.OrderStop {
		params.Set("stopPrice", stopPrice.String())
	}

	var order *domain.Order
	err := c.retry.Execute(ctx, endpoint, func() error {
		raw, err := c.transport.request(ctx, http.MethodPost, orderPath, endpoint, params, true)
		if err != nil {
			return err
		}
		order, err = parseCreatedOrder(endpoint, raw, symbol, side, orderType, amount, price, stopPrice)
		return err
	})
	if err != nil {
		return nil, wrapTrading(endpoint, err)
	}
	c.logger.Info("order created",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.String("type", string(orderType)),
		zap.String("amount", amount.String()),
		zap.String("order_id", order.ID))
	return order, nil
}

func (c *BingXClient) CancelOrder(ctx context.Context, orderID, symbol string) error {
	const endpoint = "cancel_order"
	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if err := c.limiter.Admit(ctx, endpoint); err != nil {
		return err
	}
	if err := validateSymbol(symbol); err != nil {
		return err
	}
	if orderID == "" {
		return domain.NewValidationError("order id is required")
	}

	params := url.Values{}
	params.Set("symbol", ToWireSymbol(symbol))
	params.Set("orderId", orderID)

	err := c.retry.Execute(ctx, endpoint, func() error {
		_, err := c.transport.request(ctx, http.MethodDelete, orderPath, endpoint, params, true)
		return err
	})
	return wrapTrading(endpoint, err)
}

func (c *BingXClient) FetchOrder(ctx context.Context, orderID, symbol string) (*domain.Order, error) {
	const endpoint = "fetch_order_status"
	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	if err := c.limiter.Admit(ctx, endpoint); err != nil {
		return nil, err
	}
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}
	if orderID == "" {
		return nil, domain.NewValidationError("order id is required")
	}

	params := url.Values{}
	params.Set("symbol", ToWireSymbol(symbol))
	params.Set("orderId", orderID)

	var order *domain.Order
	err := c.retry.Execute(ctx, endpoint, func() error {
		raw, err := c.transport.request(ctx, http.MethodGet, orderPath, endpoint, params, true)
		if err != nil {
			return err
		}
		order, err = parseFetchedOrder(endpoint, raw)
		return err
	})
	if err != nil {
		return nil, wrapTrading(endpoint, err)
	}
	return order, nil
}

func (c *BingXClient) FetchOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	const endpoint = "fetch_open_orders"
	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	if err := c.limiter.Admit(ctx, endpoint); err != nil {
		return nil, err
	}

	params := url.Values{}
	if symbol != "" {
		if err := validateSymbol(symbol); err != nil {
			return nil, err
		}
		params.Set("symbol", ToWireSymbol(symbol))
	}

	var orders []domain.Order
	err := c.retry.Execute(ctx, endpoint, func() error {
		raw, err := c.transport.request(ctx, http.MethodGet, openOrdersPath, endpoint, params, true)
		if err != nil {
			return err
		}
		orders, err = parseOpenOrders(endpoint, raw)
		return err
	})
	if err != nil {
		return nil, wrapTrading(endpoint, err)
	}
	return orders, nil
}

// --- error wrapping ---

// Validation and breaker-open failures pass through untouched; anything
// residual is wrapped with the endpoint it happened on.
func passThrough(err error) bool {
	var open *domain.CircuitOpenError
	var val *domain.ValidationError
	return errors.As(err, &open) || errors.As(err, &val) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func wrapMarketData(endpoint string, err error) error {
	if err == nil || passThrough(err) {
		return err
	}
	return &domain.MarketDataError{Endpoint: endpoint, Err: err}
}

func wrapTrading(endpoint string, err error) error {
	if err == nil || passThrough(err) {
		return err
	}
	return &domain.TradingAPIError{Endpoint: endpoint, Err: err}
}

func wireOrderType(t domain.OrderType) string {
	switch t {
	case domain.OrderLimit:
		return "LIMIT"
	case domain.OrderStop:
		return "STOP_MARKET"
	default:
		return "MARKET"
	}
}

func normalizeStatus(wire string) string {
	switch wire {
	case "NEW", "PENDING", "PARTIALLY_FILLED":
		return "open"
	case "FILLED":
		return "closed"
	case "CANCELED", "CANCELLED":
		return "canceled"
	case "":
		return "open"
	default:
		return strings.ToLower(wire)
	}
}

// --- wire parsing ---

// decParser collects the first decimal parse failure so call sites stay
// flat. A failed parse means the exchange sent something unexpected.
type decParser struct {
	err error
}

func (p *decParser) dec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil && p.err == nil {
		p.err = err
	}
	return d
}

func malformed(endpoint string, err error) error {
	return &domain.NetworkError{Endpoint: endpoint, Err: fmt.Errorf("malformed response: %w", err)}
}

func parseMarkets(endpoint string, raw []byte) ([]domain.Market, error) {
	var result struct {
		Data []struct {
			Symbol            string      `json:"symbol"`
			Asset             string      `json:"asset"`
			Currency          string      `json:"currency"`
			PricePrecision    int         `json:"pricePrecision"`
			QuantityPrecision int         `json:"quantityPrecision"`
			TradeMinQuantity  json.Number `json:"tradeMinQuantity"`
			MakerFeeRate      json.Number `json:"makerFeeRate"`
			TakerFeeRate      json.Number `json:"takerFeeRate"`
			Status            int         `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, malformed(endpoint, err)
	}

	p := &decParser{}
	markets := make([]domain.Market, 0, len(result.Data))
	for _, m := range result.Data {
		markets = append(markets, domain.Market{
			Symbol:          FromWireSymbol(m.Symbol),
			Base:            m.Asset,
			Quote:           m.Currency,
			Active:          m.Status == 1,
			PricePrecision:  m.PricePrecision,
			AmountPrecision: m.QuantityPrecision,
			MinAmount:       p.dec(m.TradeMinQuantity.String()),
			MakerFee:        p.dec(m.MakerFeeRate.String()),
			TakerFee:        p.dec(m.TakerFeeRate.String()),
		})
	}
	if p.err != nil {
		return nil, malformed(endpoint, p.err)
	}
	return markets, nil
}

func parseTicker(endpoint string, raw []byte) (*domain.Ticker, error) {
	var result struct {
		Data struct {
			Symbol             string `json:"symbol"`
			LastPrice          string `json:"lastPrice"`
			BidPrice           string `json:"bidPrice"`
			AskPrice           string `json:"askPrice"`
			OpenPrice          string `json:"openPrice"`
			HighPrice          string `json:"highPrice"`
			LowPrice           string `json:"lowPrice"`
			Volume             string `json:"volume"`
			QuoteVolume        string `json:"quoteVolume"`
			PriceChange        string `json:"priceChange"`
			PriceChangePercent string `json:"priceChangePercent"`
			CloseTime          int64  `json:"closeTime"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, malformed(endpoint, err)
	}

	d := result.Data
	p := &decParser{}
	ticker := &domain.Ticker{
		Symbol:      FromWireSymbol(d.Symbol),
		Timestamp:   d.CloseTime,
		Last:        p.dec(d.LastPrice),
		Bid:         p.dec(d.BidPrice),
		Ask:         p.dec(d.AskPrice),
		Open:        p.dec(d.OpenPrice),
		High:        p.dec(d.HighPrice),
		Low:         p.dec(d.LowPrice),
		Volume:      p.dec(d.Volume),
		QuoteVolume: p.dec(d.QuoteVolume),
		Change:      p.dec(d.PriceChange),
		Percentage:  p.dec(strings.TrimSuffix(d.PriceChangePercent, "%")),
	}
	if p.err != nil {
		return nil, malformed(endpoint, p.err)
	}
	return ticker, nil
}

func parseCandles(endpoint string, raw []byte) ([]domain.Candle, error) {
	var result struct {
		Data []struct {
			Open   string `json:"open"`
			High   string `json:"high"`
			Low    string `json:"low"`
			Close  string `json:"close"`
			Volume string `json:"volume"`
			Time   int64  `json:"time"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, malformed(endpoint, err)
	}

	p := &decParser{}
	candles := make([]domain.Candle, 0, len(result.Data))
	for _, c := range result.Data {
		candles = append(candles, domain.Candle{
			Timestamp: c.Time,
			Open:      p.dec(c.Open),
			High:      p.dec(c.High),
			Low:       p.dec(c.Low),
			Close:     p.dec(c.Close),
			Volume:    p.dec(c.Volume),
		})
	}
	if p.err != nil {
		return nil, malformed(endpoint, p.err)
	}

	// The exchange returns newest first; indicator math wants oldest first.
	if len(candles) > 1 && candles[0].Timestamp > candles[len(candles)-1].Timestamp {
		for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
			candles[i], candles[j] = candles[j], candles[i]
		}
	}
	return candles, nil
}

func parseOrderBook(endpoint, symbol string, raw []byte) (*domain.OrderBook, error) {
	var result struct {
		Data struct {
			Bids [][]string `json:"bids"`
			Asks [][]string `json:"asks"`
			T    int64      `json:"T"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, malformed(endpoint, err)
	}

	p := &decParser{}
	parseSide := func(levels [][]string) []domain.BookLevel {
		out := make([]domain.BookLevel, 0, len(levels))
		for _, lv := range levels {
			if len(lv) < 2 {
				continue
			}
			out = append(out, domain.BookLevel{Price: p.dec(lv[0]), Size: p.dec(lv[1])})
		}
		return out
	}

	book := &domain.OrderBook{
		Symbol:    symbol,
		Timestamp: result.Data.T,
		Bids:      parseSide(result.Data.Bids),
		Asks:      parseSide(result.Data.Asks),
	}
	if p.err != nil {
		return nil, malformed(endpoint, p.err)
	}
	return book, nil
}

func parseBalances(endpoint string, raw []byte) (map[string]domain.Balance, error) {
	var result struct {
		Data struct {
			Balance struct {
				Asset           string `json:"asset"`
				Balance         string `json:"balance"`
				AvailableMargin string `json:"availableMargin"`
				UsedMargin      string `json:"usedMargin"`
			} `json:"balance"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, malformed(endpoint, err)
	}

	b := result.Data.Balance
	if b.Asset == "" {
		return map[string]domain.Balance{}, nil
	}

	p := &decParser{}
	balances := map[string]domain.Balance{
		b.Asset: {
			Free:  p.dec(b.AvailableMargin),
			Used:  p.dec(b.UsedMargin),
			Total: p.dec(b.Balance),
		},
	}
	if p.err != nil {
		return nil, malformed(endpoint, p.err)
	}
	return balances, nil
}

type wireOrder struct {
	OrderID     json.Number `json:"orderId"`
	Symbol      string      `json:"symbol"`
	Side        string      `json:"side"`
	Type        string      `json:"type"`
	OrigQty     string      `json:"origQty"`
	Price       string      `json:"price"`
	StopPrice   string      `json:"stopPrice"`
	AvgPrice    string      `json:"avgPrice"`
	ExecutedQty string      `json:"executedQty"`
	CumQuote    string      `json:"cumQuote"`
	Status      string      `json:"status"`
	Time        int64       `json:"time"`
}

func (w *wireOrder) normalize(p *decParser) domain.Order {
	amount := p.dec(w.OrigQty)
	filled := p.dec(w.ExecutedQty)
	return domain.Order{
		ID:        w.OrderID.String(),
		Symbol:    FromWireSymbol(w.Symbol),
		Side:      domain.OrderSide(strings.ToLower(w.Side)),
		Type:      normalizeOrderType(w.Type),
		Amount:    amount,
		Price:     p.dec(w.Price),
		StopPrice: p.dec(w.StopPrice),
		Average:   p.dec(w.AvgPrice),
		Filled:    filled,
		Remaining: amount.Sub(filled),
		Cost:      p.dec(w.CumQuote),
		Status:    normalizeStatus(w.Status),
		Timestamp: w.Time,
	}
}

func normalizeOrderType(wire string) domain.OrderType {
	switch wire {
	case "LIMIT":
		return domain.OrderLimit
	case "STOP_MARKET", "TRIGGER_MARKET", "STOP":
		return domain.OrderStop
	default:
		return domain.OrderMarket
	}
}

// parseCreatedOrder fills gaps in the acknowledgement from the request
// itself: the create response echoes little beyond the order id.
func parseCreatedOrder(endpoint string, raw []byte, symbol string, side domain.OrderSide, orderType domain.OrderType, amount, price, stopPrice decimal.Decimal) (*domain.Order, error) {
	var result struct {
		Data struct {
			Order wireOrder `json:"order"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, malformed(endpoint, err)
	}

	p := &decParser{}
	order := result.Data.Order.normalize(p)
	if p.err != nil {
		return nil, malformed(endpoint, p.err)
	}

	order.Symbol = symbol
	order.Side = side
	order.Type = orderType
	if order.Amount.IsZero() {
		order.Amount = amount
		order.Remaining = amount
	}
	if order.Price.IsZero() {
		order.Price = price
	}
	if order.StopPrice.IsZero() {
		order.StopPrice = stopPrice
	}
	return &order, nil
}

func parseFetchedOrder(endpoint string, raw []byte) (*domain.Order, error) {
	var result struct {
		Data struct {
			Order wireOrder `json:"order"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, malformed(endpoint, err)
	}

	p := &decParser{}
	order := result.Data.Order.normalize(p)
	if p.err != nil {
		return nil, malformed(endpoint, p.err)
	}
	return &order, nil
}

func parseOpenOrders(endpoint string, raw []byte) ([]domain.Order, error) {
	var result struct {
		Data struct {
			Orders []wireOrder `json:"orders"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, malformed(endpoint, err)
	}

	p := &decParser{}
	orders := make([]domain.Order, 0, len(result.Data.Orders))
	for i := range result.Data.Orders {
		orders = append(orders, result.Data.Orders[i].normalize(p))
	}
	if p.err != nil {
		return nil, malformed(endpoint, p.err)
	}
	return orders, nil
}
