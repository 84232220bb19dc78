package usecase

import (
	"fmt"

	"bingx-market-analyzer/internal/domain"
)

const (
	emaFastPeriod   = 9
	emaSlowPeriod   = 21
	rsiPeriod       = 14
	volumeSMAPeriod = 20

	// Slow EMA plus one bar so crossovers have a previous point.
	minCandlesForIndicators = emaSlowPeriod + 1
)

type crossover int

const (
	crossNone crossover = iota
	crossBullish
	crossBearish
)

// timeframeAnalysis is one timeframe's indicator snapshot plus the
// derived features the signal rules consume.
type timeframeAnalysis struct {
	set       domain.IndicatorSet
	crossover crossover
	distance  float64 // |mm1-center| / center
	trendUp   bool    // mm1 above center
}

// analyzeTimeframe computes the indicator set for one timeframe.
// Candles must be oldest first.
func analyzeTimeframe(candles []domain.Candle) (timeframeAnalysis, error) {
	if len(candles) < minCandlesForIndicators {
		return timeframeAnalysis{}, fmt.Errorf("need at least %d candles, got %d", minCandlesForIndicators, len(candles))
	}

	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i], _ = c.Close.Float64()
		volumes[i], _ = c.Volume.Float64()
	}

	fast := emaSeries(closes, emaFastPeriod)
	slow := emaSeries(closes, emaSlowPeriod)

	mm1 := fast[len(fast)-1]
	center := slow[len(slow)-1]

	ta := timeframeAnalysis{
		set: domain.IndicatorSet{
			MM1:       mm1,
			Center:    center,
			RSI:       rsi(closes, rsiPeriod),
			VolumeSMA: sma(volumes, volumeSMAPeriod),
		},
		trendUp: mm1 > center,
	}
	if center != 0 {
		ta.distance = abs(mm1-center) / center
	}

	// Crossover on the last two bars. The series are aligned on their
	// tails; the slow one is shorter.
	prevFast := fast[len(fast)-2]
	prevSlow := slow[len(slow)-2]
	switch {
	case prevFast <= prevSlow && mm1 > center:
		ta.crossover = crossBullish
	case prevFast >= prevSlow && mm1 < center:
		ta.crossover = crossBearish
	}

	return ta, nil
}

// emaSeries returns the EMA for each bar from index period-1 onward,
// seeded with the SMA of the first period values.
func emaSeries(values []float64, period int) []float64 {
	if len(values) < period {
		return nil
	}
	out := make([]float64, 0, len(values)-period+1)

	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	ema := seed / float64(period)
	out = append(out, ema)

	k := 2.0 / float64(period+1)
	for _, v := range values[period:] {
		ema = v*k + ema*(1-k)
		out = append(out, ema)
	}
	return out
}

// rsi computes the Wilder-smoothed relative strength index of the last bar.
func rsi(values []float64, period int) float64 {
	if len(values) <= period {
		return 50
	}

	gains, losses := 0.0, 0.0
	for i := 1; i <= period; i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	for i := period + 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// sma averages the last period values.
func sma(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	if len(values) < period {
		period = len(values)
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
