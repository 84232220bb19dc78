package usecase

import (
	"time"

	"bingx-market-analyzer/internal/domain"
)

const (
	rsiLowerBound = 35.0
	rsiUpperBound = 73.0

	midDistanceThreshold  = 0.02
	longDistanceThreshold = 0.03

	strongConfidence = 0.7
	// A conflicting side must dominate the other by this factor, else
	// the aggregate is neutral.
	dominanceFactor = 1.2
)

type ruleResult struct {
	name       string
	buy        bool
	confidence float64
}

// generateSignal aggregates the three trading rules over the mid and
// long timeframes plus the volume analysis. A nil timeframe is simply
// skipped; the caller decides what to do with a neutral outcome.
func generateSignal(mid, long *timeframeAnalysis, vol domain.VolumeAnalysis, now time.Time) domain.Signal {
	var triggered []ruleResult

	if r, ok := ruleMACrossover(mid, long); ok {
		triggered = append(triggered, r)
	}
	if r, ok := ruleMADistance(mid, long); ok {
		triggered = append(triggered, r)
	}
	if r, ok := ruleVolumeSpike(mid, vol); ok {
		triggered = append(triggered, r)
	}

	return aggregate(triggered, now)
}

// Rule 1: a fresh MA crossover with RSI out of the exhaustion zones.
// The long timeframe is worth more than the mid one.
func ruleMACrossover(mid, long *timeframeAnalysis) (ruleResult, bool) {
	check := func(ta *timeframeAnalysis, confidence float64) (ruleResult, bool) {
		if ta == nil || ta.crossover == crossNone {
			return ruleResult{}, false
		}
		if ta.set.RSI <= rsiLowerBound || ta.set.RSI >= rsiUpperBound {
			return ruleResult{}, false
		}
		return ruleResult{
			name:       "ma_crossover",
			buy:        ta.crossover == crossBullish,
			confidence: confidence,
		}, true
	}

	if r, ok := check(long, 0.7); ok {
		return r, true
	}
	return check(mid, 0.6)
}

// Rule 2: the fast MA has pulled away from the slow one, confirming an
// established trend. The long timeframe wins when both qualify.
func ruleMADistance(mid, long *timeframeAnalysis) (ruleResult, bool) {
	if long != nil && long.distance >= longDistanceThreshold {
		return ruleResult{name: "ma_distance", buy: long.trendUp, confidence: 0.5}, true
	}
	if mid != nil && mid.distance >= midDistanceThreshold {
		return ruleResult{name: "ma_distance", buy: mid.trendUp, confidence: 0.6}, true
	}
	return ruleResult{}, false
}

// Rule 3: a volume spike in the direction of the mid-timeframe trend.
func ruleVolumeSpike(mid *timeframeAnalysis, vol domain.VolumeAnalysis) (ruleResult, bool) {
	if mid == nil || !vol.IsSpike || vol.Err != "" {
		return ruleResult{}, false
	}
	return ruleResult{name: "volume_spike", buy: mid.trendUp, confidence: vol.Confidence}, true
}

func aggregate(triggered []ruleResult, now time.Time) domain.Signal {
	signal := domain.Signal{Type: domain.SignalNeutral, Timestamp: now}
	if len(triggered) == 0 {
		return signal
	}

	var buyRules, sellRules []string
	buySum, sellSum := 0.0, 0.0
	for _, r := range triggered {
		if r.buy {
			buyRules = append(buyRules, r.name)
			buySum += r.confidence
		} else {
			sellRules = append(sellRules, r.name)
			sellSum += r.confidence
		}
	}

	buyAvg, sellAvg := 0.0, 0.0
	if len(buyRules) > 0 {
		buyAvg = buySum / float64(len(buyRules))
	}
	if len(sellRules) > 0 {
		sellAvg = sellSum / float64(len(sellRules))
	}

	switch {
	case len(sellRules) == 0:
		return directional(true, buyAvg, buyRules, now)
	case len(buyRules) == 0:
		return directional(false, sellAvg, sellRules, now)
	case buyAvg > sellAvg*dominanceFactor:
		return directional(true, buyAvg, buyRules, now)
	case sellAvg > buyAvg*dominanceFactor:
		return directional(false, sellAvg, sellRules, now)
	default:
		// Conflicting rules with no clear dominance.
		return signal
	}
}

func directional(buy bool, confidence float64, rules []string, now time.Time) domain.Signal {
	strong := len(rules) >= 2 || confidence >= strongConfidence

	var typ domain.SignalType
	switch {
	case buy && strong:
		typ = domain.SignalStrongBuy
	case buy:
		typ = domain.SignalBuy
	case strong:
		typ = domain.SignalStrongSell
	default:
		typ = domain.SignalSell
	}

	return domain.Signal{
		Type:           typ,
		Confidence:     confidence,
		RulesTriggered: rules,
		Timestamp:      now,
	}
}
