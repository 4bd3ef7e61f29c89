// Package structure detects price-structure patterns (swings, breaks of
// structure, changes of character, fair value gaps, support and resistance)
// and reconciles them with a higher-timeframe bias into one forecast.
package structure

import (
	"math"

	"SignalCast/internal/domain/models"
	"SignalCast/internal/services/signals"
)

// Bias is a structural lean.
type Bias string

const (
	Bullish Bias = "bullish"
	Bearish Bias = "bearish"
	Neutral Bias = "neutral"
)

// Direction maps a bias onto a vote direction.
func (b Bias) Direction() signals.Direction {
	switch b {
	case Bullish:
		return signals.Up
	case Bearish:
		return signals.Down
	}
	return signals.None
}

// SwingKind distinguishes swing highs from swing lows.
type SwingKind string

const (
	SwingHigh SwingKind = "high"
	SwingLow  SwingKind = "low"
)

// Swing is a confirmed local extreme.
type Swing struct {
	Index int
	Price float64
	Kind  SwingKind
}

// Swings holds swing highs and lows in bar order.
type Swings struct {
	Highs []Swing
	Lows  []Swing
}

// DefaultSwingLookback is the number of bars on each side of a swing.
const DefaultSwingLookback = 2

// FindSwings marks bar i as a swing high when its high is strictly above the
// highs of the lookback bars on either side, and likewise for lows. The last
// lookback bars can never be swings.
func FindSwings(bars []models.PriceBar, lookback int) Swings {
	if lookback <= 0 {
		lookback = DefaultSwingLookback
	}
	var out Swings
	for i := lookback; i < len(bars)-lookback; i++ {
		isHigh, isLow := true, true
		for j := i - lookback; j <= i+lookback; j++ {
			if j == i {
				continue
			}
			if bars[j].High >= bars[i].High {
				isHigh = false
			}
			if bars[j].Low <= bars[i].Low {
				isLow = false
			}
		}
		if isHigh {
			out.Highs = append(out.Highs, Swing{Index: i, Price: bars[i].High, Kind: SwingHigh})
		}
		if isLow {
			out.Lows = append(out.Lows, Swing{Index: i, Price: bars[i].Low, Kind: SwingLow})
		}
	}
	return out
}

func lastSwing(s []Swing) (Swing, bool) {
	if len(s) == 0 {
		return Swing{}, false
	}
	return s[len(s)-1], true
}

// pctFrom is the distance from level to price as a percentage of level.
func pctFrom(price, level float64) float64 {
	if level == 0 {
		return 0
	}
	return round2(math.Abs(price-level) / level * 100)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
