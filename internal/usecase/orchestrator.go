package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bingx-market-analyzer/internal/config"
	"bingx-market-analyzer/internal/domain"
)

const (
	StateStopped  = "stopped"
	StateStarting = "starting"
	StateRunning  = "running"
	StateStopping = "stopping"
)

// Candle depth requested per timeframe role. The spot timeframe feeds
// the volume analyzer; mid and long feed the indicator rules.
var candleLimits = map[string]int{
	"spot": 50,
	"mid":  100,
	"long": 100,
}

const statsSmoothing = 0.1

// AnalysisOrchestrator drives the periodic market scan: fetch eligible
// assets, fan out one analysis per asset, fan in, persist sequentially,
// then sleep out the rest of the configured interval. One asset failing
// never takes down the cycle, and one cycle failing never takes down
// the process.
type AnalysisOrchestrator struct {
	exchange    domain.Exchange
	coordinator domain.Coordinator
	assets      domain.AssetRepository
	indicators  domain.IndicatorRepository
	signals     domain.SignalRepository
	broadcaster domain.Broadcaster
	cfg         config.AnalysisConfig
	logger      *zap.Logger

	workerID string
	sem      chan struct{} // bounds concurrent per-asset analyses

	mu        sync.Mutex
	state     string
	stats     domain.WorkerStatistics
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	timeNow func() time.Time                           // for testing
	sleep   func(context.Context, time.Duration) error // for testing
}

func NewAnalysisOrchestrator(
	exchange domain.Exchange,
	coordinator domain.Coordinator,
	assets domain.AssetRepository,
	indicators domain.IndicatorRepository,
	signals domain.SignalRepository,
	broadcaster domain.Broadcaster,
	cfg config.AnalysisConfig,
	logger *zap.Logger,
) *AnalysisOrchestrator {
	return &AnalysisOrchestrator{
		exchange:    exchange,
		coordinator: coordinator,
		assets:      assets,
		indicators:  indicators,
		signals:     signals,
		broadcaster: broadcaster,
		cfg:         cfg,
		logger:      logger,
		workerID:    "analysis-" + uuid.NewString(),
		sem:         make(chan struct{}, cfg.MaxWorkers),
		state:       StateStopped,
		timeNow:     time.Now,
		sleep:       sleepCtx,
	}
}

// Start initializes the exchange client, registers with the coordinator
// and launches the cycle loop. Calling it while already running is a
// no-op; a failed initialization reverts to the stopped state.
func (o *AnalysisOrchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateStopped {
		o.mu.Unlock()
		return nil
	}
	o.state = StateStarting
	o.mu.Unlock()

	if err := o.exchange.Initialize(ctx); err != nil {
		o.setState(StateStopped)
		return fmt.Errorf("exchange initialization: %w", err)
	}
	if err := o.coordinator.RegisterWorker(o.workerID, "analysis"); err != nil {
		o.setState(StateStopped)
		return fmt.Errorf("coordinator registration: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())

	o.mu.Lock()
	o.cancel = cancel
	o.done = make(chan struct{})
	o.startedAt = o.timeNow()
	o.state = StateRunning
	done := o.done
	o.mu.Unlock()

	o.logger.Info("analysis orchestrator started",
		zap.String("worker_id", o.workerID),
		zap.Duration("interval", o.interval()),
		zap.Int("max_workers", o.cfg.MaxWorkers))

	go o.run(runCtx, done)
	return nil
}

// Stop cancels in-flight analyses, waits for the loop to drain and
// unregisters from the coordinator.
func (o *AnalysisOrchestrator) Stop() {
	o.mu.Lock()
	if o.state != StateRunning {
		o.mu.Unlock()
		return
	}
	o.state = StateStopping
	cancel := o.cancel
	done := o.done
	o.mu.Unlock()

	cancel()
	<-done

	o.coordinator.UnregisterWorker(o.workerID)
	o.setState(StateStopped)
	o.logger.Info("analysis orchestrator stopped")
}

func (o *AnalysisOrchestrator) setState(state string) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
}

func (o *AnalysisOrchestrator) State() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// interval is the configured cadence, shrunk in aggressive mode.
func (o *AnalysisOrchestrator) interval() time.Duration {
	d := time.Duration(o.cfg.ScanIntervalSeconds) * time.Second
	if o.cfg.AggressiveMode {
		d = time.Duration(float64(d) * o.cfg.AggressiveFactor)
	}
	return d
}

func (o *AnalysisOrchestrator) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		if ctx.Err() != nil {
			return
		}

		start := o.timeNow()
		if err := o.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			// Last-resort catch-all: log, pause, keep the loop alive.
			o.logger.Error("analysis cycle failed", zap.Error(err))
			if o.sleep(ctx, o.interval()) != nil {
				return
			}
			continue
		}

		elapsed := o.timeNow().Sub(start)
		wait := o.interval() - elapsed
		if wait < 0 {
			wait = 0
		}
		if o.sleep(ctx, wait) != nil {
			return
		}
	}
}

func (o *AnalysisOrchestrator) runCycle(ctx context.Context) error {
	assets, err := o.assets.ListActive(ctx, o.cfg.MaxAssets)
	if err != nil {
		return fmt.Errorf("list assets: %w", err)
	}
	if len(assets) == 0 {
		o.logger.Info("no active assets, waiting")
		return o.sleep(ctx, o.interval())
	}

	// Fan out, fan in, then persist. Persistence never interleaves
	// with analysis.
	results := make([]*domain.AnalysisResult, len(assets))
	var wg sync.WaitGroup
	for i, asset := range assets {
		wg.Add(1)
		go func(i int, asset *domain.Asset) {
			defer wg.Done()
			o.sem <- struct{}{}
			defer func() { <-o.sem }()
			results[i] = o.analyzeAsset(ctx, asset)
		}(i, asset)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	failed := 0
	for _, res := range results {
		o.recordResult(res)
		if res.Failed() {
			failed++
			o.logger.Warn("asset analysis failed",
				zap.String("symbol", res.Symbol),
				zap.String("error", res.Err))
			continue
		}
		if err := o.persistResult(ctx, res); err != nil {
			o.logger.Error("persist failed",
				zap.String("symbol", res.Symbol),
				zap.Error(err))
		}
	}

	o.logger.Info("analysis cycle complete",
		zap.Int("assets", len(assets)),
		zap.Int("failed", failed))
	return nil
}

// analyzeAsset runs the full per-asset pipeline and always returns a
// result; failures are tagged on the result instead of propagating.
func (o *AnalysisOrchestrator) analyzeAsset(ctx context.Context, asset *domain.Asset) *domain.AnalysisResult {
	start := o.timeNow()
	res := &domain.AnalysisResult{
		Symbol:       asset.Symbol,
		AssetID:      asset.ID,
		Timestamp:    start,
		Indicators:   make(map[string]domain.IndicatorSet),
		CandleCounts: make(map[string]int),
		Volume:       domain.VolumeAnalysis{Intensity: "NONE"},
	}
	defer func() {
		res.Duration = o.timeNow().Sub(start)
	}()

	roles := []struct{ role, timeframe string }{
		{"spot", o.cfg.Timeframes.Spot},
		{"mid", o.cfg.Timeframes.Mid},
		{"long", o.cfg.Timeframes.Long},
	}

	analyses := make(map[string]*timeframeAnalysis)
	candlesByRole := make(map[string][]domain.Candle)
	for _, r := range roles {
		// Concurrency still serializes against the shared API budget.
		if err := o.coordinator.RequestPermission(ctx, o.workerID, "market_data"); err != nil {
			res.Err = fmt.Sprintf("coordinator permission: %v", err)
			return res
		}
		candles, err := o.exchange.FetchCandles(ctx, asset.Symbol, r.timeframe, candleLimits[r.role])
		if err != nil {
			res.Err = fmt.Sprintf("fetch %s candles: %v", r.timeframe, err)
			return res
		}
		candlesByRole[r.role] = candles
		res.CandleCounts[r.timeframe] = len(candles)

		if r.role == "spot" {
			continue
		}
		ta, err := analyzeTimeframe(candles)
		if err != nil {
			// Degrade to an error-tagged sub-result.
			res.Indicators[r.timeframe] = domain.IndicatorSet{Err: err.Error()}
			continue
		}
		res.Indicators[r.timeframe] = ta.set
		analyses[r.role] = &ta
	}

	if analyses["mid"] == nil && analyses["long"] == nil {
		res.Err = "no timeframe produced indicators"
		return res
	}

	res.Volume = analyzeVolume(candlesByRole["spot"])
	res.Signal = generateSignal(analyses["mid"], analyses["long"], res.Volume, start)
	return res
}

// persistResult writes indicator snapshots for every clean timeframe,
// then stores and broadcasts the signal when it clears the confidence
// threshold. One failed write does not block the others.
func (o *AnalysisOrchestrator) persistResult(ctx context.Context, res *domain.AnalysisResult) error {
	var firstErr error
	for timeframe, set := range res.Indicators {
		if set.Err != "" {
			continue
		}
		snap := &domain.IndicatorSnapshot{
			AssetID:         res.AssetID,
			Timeframe:       timeframe,
			Timestamp:       res.Timestamp.UTC(),
			MM1:             set.MM1,
			Center:          set.Center,
			RSI:             set.RSI,
			VolumeSMA:       set.VolumeSMA,
			CandlesAnalyzed: res.CandleCounts[timeframe],
			DurationSeconds: res.Duration.Seconds(),
		}
		if err := o.indicators.Upsert(ctx, snap); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("upsert %s indicators: %w", timeframe, err)
			}
		}
	}

	sig := res.Signal
	if !sig.Type.Actionable() || sig.Confidence < o.cfg.SignalThreshold {
		return firstErr
	}

	snapshot, err := json.Marshal(struct {
		Indicators map[string]domain.IndicatorSet `json:"indicators"`
		Volume     domain.VolumeAnalysis          `json:"volume_analysis"`
	}{res.Indicators, res.Volume})
	if err != nil {
		if firstErr == nil {
			firstErr = err
		}
		return firstErr
	}

	rec := &domain.SignalRecord{
		ID:         uuid.NewString(),
		AssetID:    res.AssetID,
		Symbol:     res.Symbol,
		Type:       sig.Type,
		Confidence: sig.Confidence,
		Rules:      sig.RulesTriggered,
		Snapshot:   snapshot,
		CreatedAt:  sig.Timestamp.UTC(),
	}
	if err := o.signals.Create(ctx, rec); err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("store signal: %w", err)
		}
		return firstErr
	}

	o.broadcaster.BroadcastSignal(rec)

	o.mu.Lock()
	o.stats.SignalsGenerated++
	o.mu.Unlock()

	o.logger.Info("signal generated",
		zap.String("symbol", res.Symbol),
		zap.String("type", string(sig.Type)),
		zap.Float64("confidence", sig.Confidence),
		zap.Strings("rules", sig.RulesTriggered))
	return firstErr
}

func (o *AnalysisOrchestrator) recordResult(res *domain.AnalysisResult) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stats.TotalAnalyses++
	if res.Failed() {
		o.stats.FailedAnalyses++
	} else {
		o.stats.SuccessfulAnalyses++
	}
	o.stats.LastAnalysisTime = res.Timestamp

	seconds := res.Duration.Seconds()
	if o.stats.AverageDuration == 0 {
		o.stats.AverageDuration = seconds
	} else {
		o.stats.AverageDuration = statsSmoothing*seconds + (1-statsSmoothing)*o.stats.AverageDuration
	}
}

// AnalyzeSymbol runs the per-asset pipeline once, outside the periodic
// cycle, reusing the same persistence path. The orchestrator must be
// running.
func (o *AnalysisOrchestrator) AnalyzeSymbol(ctx context.Context, symbol string) (*domain.AnalysisResult, error) {
	if o.State() != StateRunning {
		return nil, fmt.Errorf("orchestrator is not running")
	}

	asset, err := o.assets.GetOrCreate(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("resolve asset: %w", err)
	}

	res := o.analyzeAsset(ctx, asset)
	o.recordResult(res)
	if res.Failed() {
		return res, nil
	}
	if err := o.persistResult(ctx, res); err != nil {
		o.logger.Error("persist failed",
			zap.String("symbol", res.Symbol),
			zap.Error(err))
	}
	return res, nil
}

// Status is the read-only snapshot served by the status endpoint.
type Status struct {
	State           string                  `json:"state"`
	WorkerID        string                  `json:"worker_id"`
	Stats           domain.WorkerStatistics `json:"statistics"`
	SuccessRate     float64                 `json:"success_rate"`
	SignalsPerHour  float64                 `json:"signals_per_hour"`
	ScanInterval    float64                 `json:"scan_interval_seconds"`
	MaxAssets       int                     `json:"max_assets"`
	MaxWorkers      int                     `json:"max_workers"`
	SignalThreshold float64                 `json:"signal_threshold"`
	AggressiveMode  bool                    `json:"aggressive_mode"`
	Coordinator     domain.CoordinatorStats `json:"coordinator"`
}

func (o *AnalysisOrchestrator) Status() Status {
	o.mu.Lock()
	stats := o.stats
	state := o.state
	startedAt := o.startedAt
	o.mu.Unlock()

	s := Status{
		State:           state,
		WorkerID:        o.workerID,
		Stats:           stats,
		ScanInterval:    o.interval().Seconds(),
		MaxAssets:       o.cfg.MaxAssets,
		MaxWorkers:      o.cfg.MaxWorkers,
		SignalThreshold: o.cfg.SignalThreshold,
		AggressiveMode:  o.cfg.AggressiveMode,
		Coordinator:     o.coordinator.Stats(),
	}
	if stats.TotalAnalyses > 0 {
		s.SuccessRate = float64(stats.SuccessfulAnalyses) / float64(stats.TotalAnalyses)
	}
	if !startedAt.IsZero() {
		hours := o.timeNow().Sub(startedAt).Hours()
		if hours > 0 {
			s.SignalsPerHour = float64(stats.SignalsGenerated) / hours
		}
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
