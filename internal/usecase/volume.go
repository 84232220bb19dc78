package usecase

import (
	"fmt"

	"github.com/shopspring/decimal"

	"bingx-market-analyzer/internal/domain"
)

const (
	volumeSpikeRatio   = 2.0
	volumeRatioCeiling = 5.0
	volumeMinPeriods   = volumeSMAPeriod + 1
)

// analyzeVolume compares the latest bar's volume against the trailing
// average and classifies spikes. Candles must be oldest first; on
// insufficient data the result carries an error marker instead of
// failing the asset.
func analyzeVolume(candles []domain.Candle) domain.VolumeAnalysis {
	if len(candles) < volumeMinPeriods {
		return domain.VolumeAnalysis{
			Intensity: "NONE",
			Err:       fmt.Sprintf("need at least %d candles, got %d", volumeMinPeriods, len(candles)),
		}
	}

	current := candles[len(candles)-1].Volume
	trailing := candles[len(candles)-1-volumeSMAPeriod : len(candles)-1]

	total := decimal.Zero
	for _, c := range trailing {
		total = total.Add(c.Volume)
	}
	average := total.Div(decimal.NewFromInt(int64(len(trailing))))

	va := domain.VolumeAnalysis{
		CurrentVolume: current,
		AverageVolume: average,
		Intensity:     "NONE",
		Periods:       len(trailing),
	}
	if average.IsZero() {
		return va
	}

	ratio, _ := current.Div(average).Float64()
	va.Ratio = ratio

	if ratio < volumeSpikeRatio {
		return va
	}

	va.IsSpike = true
	switch {
	case ratio >= 5:
		va.Intensity = "EXTREME"
	case ratio >= 4:
		va.Intensity = "HIGH"
	case ratio >= 3:
		va.Intensity = "MODERATE"
	default:
		va.Intensity = "LOW"
	}

	capped := ratio
	if capped > volumeRatioCeiling {
		capped = volumeRatioCeiling
	}
	va.Confidence = capped / volumeRatioCeiling

	return va
}
