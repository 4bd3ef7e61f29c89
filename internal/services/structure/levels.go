package structure

import "SignalCast/internal/domain/models"

// DefaultProximityPct is how close, in percent, price must be to a level.
const DefaultProximityPct = 0.3

// SR is the nearest support and resistance around the last close.
type SR struct {
	Signal             Bias    `json:"signal"`
	NearestSupport     float64 `json:"nearest_support"`
	SupportDistance    float64 `json:"support_distance"`
	NearestResistance  float64 `json:"nearest_resistance"`
	ResistanceDistance float64 `json:"resistance_distance"`
}

// DetectSupportResistance picks the nearest unbroken swing low below price
// and swing high above it. A level is broken once a later bar closes through
// it. Price within proximityPct of support is bullish, of resistance bearish;
// when both apply the nearer level wins.
func DetectSupportResistance(bars []models.PriceBar, swings Swings, proximityPct float64) SR {
	if proximityPct <= 0 {
		proximityPct = DefaultProximityPct
	}
	out := SR{Signal: Neutral}
	if len(bars) == 0 {
		return out
	}
	price := bars[len(bars)-1].Close

	var haveSup, haveRes bool
	for _, s := range swings.Lows {
		if s.Price >= price || brokenBelow(bars, s) {
			continue
		}
		if !haveSup || s.Price > out.NearestSupport {
			out.NearestSupport, haveSup = s.Price, true
		}
	}
	for _, s := range swings.Highs {
		if s.Price <= price || brokenAbove(bars, s) {
			continue
		}
		if !haveRes || s.Price < out.NearestResistance {
			out.NearestResistance, haveRes = s.Price, true
		}
	}

	if price == 0 {
		return out
	}
	if haveSup {
		out.SupportDistance = round2((price - out.NearestSupport) / price * 100)
	}
	if haveRes {
		out.ResistanceDistance = round2((out.NearestResistance - price) / price * 100)
	}

	nearSup := haveSup && out.SupportDistance <= proximityPct
	nearRes := haveRes && out.ResistanceDistance <= proximityPct
	switch {
	case nearSup && (!nearRes || out.SupportDistance <= out.ResistanceDistance):
		out.Signal = Bullish
	case nearRes:
		out.Signal = Bearish
	}
	return out
}

func brokenBelow(bars []models.PriceBar, s Swing) bool {
	for j := s.Index + 1; j < len(bars); j++ {
		if bars[j].Close < s.Price {
			return true
		}
	}
	return false
}

func brokenAbove(bars []models.PriceBar, s Swing) bool {
	for j := s.Index + 1; j < len(bars); j++ {
		if bars[j].Close > s.Price {
			return true
		}
	}
	return false
}
