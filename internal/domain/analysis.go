package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type SignalType string

const (
	SignalBuy        SignalType = "BUY"
	SignalSell       SignalType = "SELL"
	SignalNeutral    SignalType = "NEUTRAL"
	SignalStrongBuy  SignalType = "STRONG_BUY"
	SignalStrongSell SignalType = "STRONG_SELL"
)

// Actionable reports whether the signal points in a direction at all.
func (s SignalType) Actionable() bool {
	return s != SignalNeutral && s != ""
}

// IndicatorSet holds the computed indicators for one timeframe.
// Indicator math runs on float64; exact decimals matter only for money.
type IndicatorSet struct {
	MM1       float64 `json:"mm1"`        // fast EMA
	Center    float64 `json:"center"`     // slow EMA
	RSI       float64 `json:"rsi"`        // 0..100
	VolumeSMA float64 `json:"volume_sma"` // average volume over the SMA period
	Err       string  `json:"error,omitempty"`
}

type VolumeAnalysis struct {
	IsSpike       bool            `json:"is_spike"`
	Intensity     string          `json:"spike_intensity"` // NONE/LOW/MODERATE/HIGH/EXTREME
	Ratio         float64         `json:"volume_ratio"`
	CurrentVolume decimal.Decimal `json:"current_volume"`
	AverageVolume decimal.Decimal `json:"average_volume"`
	Confidence    float64         `json:"confidence"`
	Periods       int             `json:"periods_analyzed"`
	Err           string          `json:"error,omitempty"`
}

type Signal struct {
	Type           SignalType `json:"signal_type"`
	Confidence     float64    `json:"confidence"`
	RulesTriggered []string   `json:"rules_triggered"`
	Timestamp      time.Time  `json:"timestamp"`
	Err            string     `json:"error,omitempty"`
}

// AnalysisResult is the per-asset, per-cycle outcome. Sub-computation
// failures are carried inline; Err is set only when the whole analysis
// failed and no usable data was produced.
type AnalysisResult struct {
	Symbol       string                  `json:"symbol"`
	AssetID      string                  `json:"asset_id"`
	Timestamp    time.Time               `json:"timestamp"`
	Duration     time.Duration           `json:"duration"`
	Indicators   map[string]IndicatorSet `json:"indicators"`
	Volume       VolumeAnalysis          `json:"volume_analysis"`
	Signal       Signal                  `json:"signal"`
	CandleCounts map[string]int          `json:"candle_counts"`
	Err          string                  `json:"error,omitempty"`
}

func (r *AnalysisResult) Failed() bool { return r.Err != "" }

// WorkerStatistics are cumulative process-wide counters, reset only on
// restart. AverageDuration is an exponentially smoothed mean (alpha 0.1).
type WorkerStatistics struct {
	TotalAnalyses      int64     `json:"total_analyses"`
	SuccessfulAnalyses int64     `json:"successful_analyses"`
	FailedAnalyses     int64     `json:"failed_analyses"`
	SignalsGenerated   int64     `json:"signals_generated"`
	LastAnalysisTime   time.Time `json:"last_analysis_time"`
	AverageDuration    float64   `json:"average_analysis_seconds"`
}

type Asset struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// IndicatorSnapshot is the persisted form of one timeframe's indicators,
// upserted on (asset, timeframe, timestamp).
type IndicatorSnapshot struct {
	AssetID         string
	Timeframe       string
	Timestamp       time.Time
	MM1             float64
	Center          float64
	RSI             float64
	VolumeSMA       float64
	CandlesAnalyzed int
	DurationSeconds float64
}

// SignalRecord is the persisted form of an actionable signal, with the
// indicator/volume snapshot embedded as JSON.
type SignalRecord struct {
	ID         string
	AssetID    string
	Symbol     string
	Type       SignalType
	Confidence float64
	Rules      []string
	Snapshot   json.RawMessage
	CreatedAt  time.Time
}
