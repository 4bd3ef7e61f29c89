package indicators

import (
	"sync"

	"SignalCast/internal/domain/models"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
)

// MACD holds the MACD line, its signal line and the histogram.
type MACD struct {
	Line      Result
	Signal    Result
	Histogram Result
}

// Bands holds Bollinger bands.
type Bands struct {
	Upper  Result
	Middle Result
	Lower  Result
}

// Stochastic holds %K and %D.
type Stochastic struct {
	K Result
	D Result
}

// Set is the raw indicator battery evaluated at the latest bar.
type Set struct {
	Close  float64
	Volume float64

	SMA20      Result
	SMA50      Result
	EMA12      Result
	EMA26      Result
	RSI        Result
	MACD       MACD
	Bollinger  Bands
	Stochastic Stochastic
	WilliamsR  Result
	ATR        Result
	VolumeSMA  Result
	Momentum   Result
}

// Calculator computes a Set from a bar series. It holds no per-call state.
type Calculator struct {
	cfg Config
}

func New(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Compute evaluates every indicator at the most recent bar of bars.
func (c *Calculator) Compute(bars []models.PriceBar) Set {
	var s Set
	if len(bars) == 0 {
		fail := Fail(ErrInsufficientData)
		s.SMA20, s.SMA50, s.EMA12, s.EMA26, s.RSI = fail, fail, fail, fail, fail
		s.MACD = MACD{fail, fail, fail}
		s.Bollinger = Bands{fail, fail, fail}
		s.Stochastic = Stochastic{fail, fail}
		s.WilliamsR, s.ATR, s.VolumeSMA, s.Momentum = fail, fail, fail, fail
		return s
	}

	closes := models.Closes(bars)
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		highs[i], lows[i], volumes[i] = b.High, b.Low, b.Volume
	}

	s.Close = closes[len(closes)-1]
	s.Volume = volumes[len(volumes)-1]

	s.SMA20 = sma(closes, c.cfg.SMAFast)
	s.SMA50 = sma(closes, c.cfg.SMASlow)
	s.EMA12 = ema(closes, c.cfg.EMAFast)
	s.EMA26 = ema(closes, c.cfg.EMASlow)
	s.RSI = rsi(closes, c.cfg.RSIPeriod)
	s.MACD = macd(closes, c.cfg.EMAFast, c.cfg.EMASlow, c.cfg.MACDSignal)
	s.Bollinger = bollinger(closes, c.cfg.BBPeriod, c.cfg.BBStdDev)
	s.Stochastic = stochastic(highs, lows, closes, c.cfg.StochK, c.cfg.StochD)
	s.WilliamsR = williamsR(highs, lows, closes, c.cfg.WilliamsR)
	s.ATR = atr(highs, lows, closes)
	s.VolumeSMA = sma(volumes, c.cfg.VolumePeriod)
	s.Momentum = roc(closes, c.cfg.ROCPeriod)
	return s
}

func sma(xs []float64, period int) Result {
	if period <= 0 || len(xs) < period {
		return Fail(ErrInsufficientData)
	}
	ind := trend.NewSmaWithPeriod[float64](period)
	return last(helper.ChanToSlice(ind.Compute(helper.SliceToChan(xs))))
}

func ema(xs []float64, period int) Result {
	if period <= 0 || len(xs) < period {
		return Fail(ErrInsufficientData)
	}
	ind := trend.NewEmaWithPeriod[float64](period)
	return last(helper.ChanToSlice(ind.Compute(helper.SliceToChan(xs))))
}

func rsi(closes []float64, period int) Result {
	if period <= 0 || len(closes) < period+1 {
		return Fail(ErrInsufficientData)
	}
	ind := momentum.NewRsiWithPeriod[float64](period)
	return last(helper.ChanToSlice(ind.Compute(helper.SliceToChan(closes))))
}

func macd(closes []float64, fast, slow, signal int) MACD {
	if len(closes) < slow+signal {
		fail := Fail(ErrInsufficientData)
		return MACD{fail, fail, fail}
	}
	ind := trend.NewMacdWithPeriod[float64](fast, slow, signal)
	lineCh, signalCh := ind.Compute(helper.SliceToChan(closes))

	// both outputs share one upstream, drain them together
	var signals []float64
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		signals = helper.ChanToSlice(signalCh)
	}()
	lines := helper.ChanToSlice(lineCh)
	wg.Wait()

	out := MACD{Line: last(lines), Signal: last(signals)}
	if out.Line.OK && out.Signal.OK {
		out.Histogram = Ok(out.Line.Value - out.Signal.Value)
	} else {
		out.Histogram = Fail(ErrInsufficientData)
	}
	return out
}

// atrPeriod is the fixed window of volatility.NewAtr.
const atrPeriod = 14

func atr(highs, lows, closes []float64) Result {
	if len(closes) <= atrPeriod {
		return Fail(ErrInsufficientData)
	}
	ind := volatility.NewAtr[float64]()
	out := ind.Compute(helper.SliceToChan(highs), helper.SliceToChan(lows), helper.SliceToChan(closes))
	return last(helper.ChanToSlice(out))
}
