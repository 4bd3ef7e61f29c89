package structure

import "SignalCast/internal/domain/models"

// Break describes a break of structure or a change of character.
type Break struct {
	Detected bool    `json:"detected"`
	Type     Bias    `json:"type"`
	Strength float64 `json:"strength"`
}

func noBreak() Break { return Break{Type: Neutral} }

// DetectBOS reports a close beyond the most recent swing high (bullish) or
// swing low (bearish). Strength is the breakout distance in percent of the
// broken level.
func DetectBOS(bars []models.PriceBar, swings Swings) Break {
	if len(bars) == 0 {
		return noBreak()
	}
	closePrice := bars[len(bars)-1].Close
	if h, ok := lastSwing(swings.Highs); ok && closePrice > h.Price {
		return Break{Detected: true, Type: Bullish, Strength: pctFrom(closePrice, h.Price)}
	}
	if l, ok := lastSwing(swings.Lows); ok && closePrice < l.Price {
		return Break{Detected: true, Type: Bearish, Strength: pctFrom(closePrice, l.Price)}
	}
	return noBreak()
}

// Prevailing reads the trend from the two most recent swing highs and lows:
// higher high with higher low is bullish, lower high with lower low bearish.
func Prevailing(swings Swings) Bias {
	nh, nl := len(swings.Highs), len(swings.Lows)
	if nh < 2 || nl < 2 {
		return Neutral
	}
	hh := swings.Highs[nh-1].Price > swings.Highs[nh-2].Price
	lh := swings.Highs[nh-1].Price < swings.Highs[nh-2].Price
	hl := swings.Lows[nl-1].Price > swings.Lows[nl-2].Price
	ll := swings.Lows[nl-1].Price < swings.Lows[nl-2].Price
	switch {
	case hh && hl:
		return Bullish
	case lh && ll:
		return Bearish
	}
	return Neutral
}

// DetectCHoCH reports a change of character: the prevailing swing sequence
// is bullish and lastClose drops below the latest swing low, or it is
// bearish and lastClose rises above the latest swing high.
func DetectCHoCH(swings Swings, lastClose float64) Break {
	switch Prevailing(swings) {
	case Bullish:
		l, _ := lastSwing(swings.Lows)
		if lastClose < l.Price {
			return Break{Detected: true, Type: Bearish, Strength: pctFrom(lastClose, l.Price)}
		}
	case Bearish:
		h, _ := lastSwing(swings.Highs)
		if lastClose > h.Price {
			return Break{Detected: true, Type: Bullish, Strength: pctFrom(lastClose, h.Price)}
		}
	}
	return noBreak()
}
