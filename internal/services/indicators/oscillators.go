package indicators

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
)

// bollinger uses the population standard deviation of the trailing window.
func bollinger(closes []float64, period int, k float64) Bands {
	if period <= 0 || len(closes) < period {
		fail := Fail(ErrInsufficientData)
		return Bands{fail, fail, fail}
	}
	middle := sma(closes, period)
	if !middle.OK {
		return Bands{middle, middle, middle}
	}
	window := closes[len(closes)-period:]
	variance := 0.0
	for _, c := range window {
		d := c - middle.Value
		variance += d * d
	}
	std := math.Sqrt(variance / float64(period))
	return Bands{
		Upper:  Ok(middle.Value + k*std),
		Middle: middle,
		Lower:  Ok(middle.Value - k*std),
	}
}

// rangeAt returns the highest high and lowest low of the period bars ending at i.
func rangeAt(highs, lows []float64, i, period int) (float64, float64) {
	hh, ll := highs[i-period+1], lows[i-period+1]
	for j := i - period + 2; j <= i; j++ {
		hh = math.Max(hh, highs[j])
		ll = math.Min(ll, lows[j])
	}
	return hh, ll
}

// stochastic computes %K over kPeriod bars and %D as the dPeriod mean of %K.
func stochastic(highs, lows, closes []float64, kPeriod, dPeriod int) Stochastic {
	n := len(closes)
	if kPeriod <= 0 || dPeriod <= 0 || n < kPeriod+dPeriod-1 {
		fail := Fail(ErrInsufficientData)
		return Stochastic{fail, fail}
	}

	ks := make([]float64, 0, dPeriod)
	for i := n - dPeriod; i < n; i++ {
		hh, ll := rangeAt(highs, lows, i, kPeriod)
		if hh == ll {
			fail := Fail(ErrDegenerate)
			return Stochastic{fail, fail}
		}
		ks = append(ks, (closes[i]-ll)/(hh-ll)*100)
	}

	sum := 0.0
	for _, k := range ks {
		sum += k
	}
	return Stochastic{
		K: Ok(ks[len(ks)-1]),
		D: Ok(sum / float64(len(ks))),
	}
}

// williamsR is reported on the -100..0 scale.
func williamsR(highs, lows, closes []float64, period int) Result {
	if period <= 0 || len(closes) < period {
		return Fail(ErrInsufficientData)
	}
	wr := &momentum.WilliamsR[float64]{
		Max: trend.NewMovingMaxWithPeriod[float64](period),
		Min: trend.NewMovingMinWithPeriod[float64](period),
	}
	out := wr.Compute(helper.SliceToChan(highs), helper.SliceToChan(lows), helper.SliceToChan(closes))
	// a flat window divides by zero, which Ok rejects
	return last(helper.ChanToSlice(out))
}

// roc is the percent change against the close period bars back.
func roc(closes []float64, period int) Result {
	n := len(closes)
	if period <= 0 || n <= period {
		return Fail(ErrInsufficientData)
	}
	// the library yields 0 for a zero base instead of failing
	if closes[n-1-period] == 0 {
		return Fail(ErrDegenerate)
	}
	r := last(helper.ChanToSlice(trend.NewRocWithPeriod[float64](period).Compute(helper.SliceToChan(closes))))
	if r.OK {
		r.Value *= 100
	}
	return r
}
