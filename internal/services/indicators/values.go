package indicators

// Values is the resolved indicator view consumed by the voter. Every field
// is finite; unavailable indicators carry their neutral default and are
// listed in Defaulted.
type Values struct {
	Close  float64
	Volume float64

	SMA20         float64
	SMA50         float64
	EMA12         float64
	EMA26         float64
	RSI           float64
	MACDLine      float64
	MACDSignal    float64
	MACDHistogram float64
	BBUpper       float64
	BBMiddle      float64
	BBLower       float64
	StochK        float64
	StochD        float64
	WilliamsR     float64
	ATR           float64
	VolumeSMA     float64
	Momentum      float64

	Defaulted []string
}

// Resolve substitutes neutral defaults for failed indicators.
func (s Set) Resolve() Values {
	v := Values{Close: s.Close, Volume: s.Volume}
	pick := func(name string, r Result, def float64) float64 {
		if r.OK {
			return r.Value
		}
		v.Defaulted = append(v.Defaulted, name)
		return def
	}

	v.SMA20 = pick("sma_20", s.SMA20, s.Close)
	v.SMA50 = pick("sma_50", s.SMA50, s.Close)
	v.EMA12 = pick("ema_12", s.EMA12, s.Close)
	v.EMA26 = pick("ema_26", s.EMA26, s.Close)
	v.RSI = pick("rsi", s.RSI, 50)
	v.MACDLine = pick("macd", s.MACD.Line, 0)
	v.MACDSignal = pick("macd_signal", s.MACD.Signal, 0)
	v.MACDHistogram = pick("macd_histogram", s.MACD.Histogram, 0)
	v.BBUpper = pick("bb_upper", s.Bollinger.Upper, s.Close*1.02)
	v.BBMiddle = pick("bb_middle", s.Bollinger.Middle, s.Close)
	v.BBLower = pick("bb_lower", s.Bollinger.Lower, s.Close*0.98)
	v.StochK = pick("stoch_k", s.Stochastic.K, 50)
	v.StochD = pick("stoch_d", s.Stochastic.D, 50)
	v.WilliamsR = pick("williams_r", s.WilliamsR, -50)
	v.ATR = pick("atr", s.ATR, 0)
	v.VolumeSMA = pick("volume_sma", s.VolumeSMA, s.Volume)
	v.Momentum = pick("momentum", s.Momentum, 0)
	return v
}

// Map flattens the values under their snake_case names.
func (v Values) Map() map[string]float64 {
	return map[string]float64{
		"close":          v.Close,
		"volume":         v.Volume,
		"sma_20":         v.SMA20,
		"sma_50":         v.SMA50,
		"ema_12":         v.EMA12,
		"ema_26":         v.EMA26,
		"rsi":            v.RSI,
		"macd":           v.MACDLine,
		"macd_signal":    v.MACDSignal,
		"macd_histogram": v.MACDHistogram,
		"bb_upper":       v.BBUpper,
		"bb_middle":      v.BBMiddle,
		"bb_lower":       v.BBLower,
		"stoch_k":        v.StochK,
		"stoch_d":        v.StochD,
		"williams_r":     v.WilliamsR,
		"atr":            v.ATR,
		"volume_sma":     v.VolumeSMA,
		"momentum":       v.Momentum,
	}
}
