package signals

// Rule weights and thresholds. These are unvalidated heuristics carried over
// as-is; nothing has been backtested against them.
const (
	WeightTrend            = 0.20
	WeightRSIExtreme       = 0.15
	WeightRSIBias          = 0.08
	WeightMACD             = 0.12
	WeightPriceVsSMA       = 0.15
	WeightSMACross         = 0.10
	WeightBollingerExtreme = 0.13
	WeightBollingerBias    = 0.06
	WeightStochastic       = 0.10
	WeightWilliams         = 0.08
	WeightMomentum         = 0.12
	WeightVolumeHigh       = 0.05
	WeightVolumeNormal     = 0.03
	WeightFallback         = 0.10

	TrendWindow    = 5
	TrendThreshold = 0.001

	RSIOversold   = 35.0
	RSIOverbought = 65.0
	RSIMidline    = 50.0

	StochOversold   = 25.0
	StochOverbought = 75.0

	WilliamsOversold   = -75.0
	WilliamsOverbought = -25.0

	MomentumThreshold = 0.2
	VolumeSurge       = 1.2
)

func vote(rule string, d Direction, w float64) []Vote {
	return []Vote{{Rule: rule, Direction: d, Weight: w}}
}

// TrendRule compares the latest close with the close TrendWindow-1 bars back.
func TrendRule(in Input) []Vote {
	n := len(in.Closes)
	if n < TrendWindow {
		return nil
	}
	base := in.Closes[n-TrendWindow]
	if base == 0 {
		return nil
	}
	change := in.Closes[n-1]/base - 1
	switch {
	case change > TrendThreshold:
		return vote("trend", Up, WeightTrend)
	case change < -TrendThreshold:
		return vote("trend", Down, WeightTrend)
	}
	return nil
}

func RSIExtremeRule(in Input) []Vote {
	switch rsi := in.Values.RSI; {
	case rsi < RSIOversold:
		return vote("rsi_extreme", Up, WeightRSIExtreme)
	case rsi > RSIOverbought:
		return vote("rsi_extreme", Down, WeightRSIExtreme)
	}
	return nil
}

// RSIBiasRule only fires when RSIExtremeRule does not.
func RSIBiasRule(in Input) []Vote {
	rsi := in.Values.RSI
	if rsi < RSIOversold || rsi > RSIOverbought {
		return nil
	}
	if rsi < RSIMidline {
		return vote("rsi_bias", Up, WeightRSIBias)
	}
	return vote("rsi_bias", Down, WeightRSIBias)
}

func MACDRule(in Input) []Vote {
	if in.Values.MACDLine > in.Values.MACDSignal {
		return vote("macd", Up, WeightMACD)
	}
	return vote("macd", Down, WeightMACD)
}

func PriceVsSMARule(in Input) []Vote {
	if in.Values.Close > in.Values.SMA20 {
		return vote("price_vs_sma", Up, WeightPriceVsSMA)
	}
	return vote("price_vs_sma", Down, WeightPriceVsSMA)
}

func SMACrossRule(in Input) []Vote {
	if in.Values.SMA20 > in.Values.SMA50 {
		return vote("sma_cross", Up, WeightSMACross)
	}
	return vote("sma_cross", Down, WeightSMACross)
}

// BollingerExtremeRule checks the lower band first, so a zero-width band
// resolves to UP.
func BollingerExtremeRule(in Input) []Vote {
	v := in.Values
	switch {
	case v.Close <= v.BBLower:
		return vote("bollinger_extreme", Up, WeightBollingerExtreme)
	case v.Close >= v.BBUpper:
		return vote("bollinger_extreme", Down, WeightBollingerExtreme)
	}
	return nil
}

// BollingerBiasRule only fires when the close is strictly inside the bands.
func BollingerBiasRule(in Input) []Vote {
	v := in.Values
	if v.Close <= v.BBLower || v.Close >= v.BBUpper {
		return nil
	}
	if v.Close > v.BBMiddle {
		return vote("bollinger_bias", Up, WeightBollingerBias)
	}
	return vote("bollinger_bias", Down, WeightBollingerBias)
}

func StochasticRule(in Input) []Vote {
	switch k := in.Values.StochK; {
	case k < StochOversold:
		return vote("stochastic", Up, WeightStochastic)
	case k > StochOverbought:
		return vote("stochastic", Down, WeightStochastic)
	}
	return nil
}

func WilliamsRule(in Input) []Vote {
	switch r := in.Values.WilliamsR; {
	case r < WilliamsOversold:
		return vote("williams_r", Up, WeightWilliams)
	case r > WilliamsOverbought:
		return vote("williams_r", Down, WeightWilliams)
	}
	return nil
}

func MomentumRule(in Input) []Vote {
	switch m := in.Values.Momentum; {
	case m > MomentumThreshold:
		return vote("momentum", Up, WeightMomentum)
	case m < -MomentumThreshold:
		return vote("momentum", Down, WeightMomentum)
	}
	return nil
}

// VolumeRule adds confirmation weight without a direction.
func VolumeRule(in Input) []Vote {
	if in.Volume > in.Values.VolumeSMA*VolumeSurge {
		return vote("volume", None, WeightVolumeHigh)
	}
	return vote("volume", None, WeightVolumeNormal)
}

// FallbackRule compares the last two closes. With fewer than two it votes UP.
func FallbackRule(in Input) []Vote {
	n := len(in.Closes)
	if n < 2 || in.Closes[n-1] > in.Closes[n-2] {
		return vote("fallback", Up, WeightFallback)
	}
	return vote("fallback", Down, WeightFallback)
}
