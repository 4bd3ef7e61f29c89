package sources

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"SignalCast/internal/domain/models"
	"SignalCast/internal/domain/repository"
	"SignalCast/pkg/util"
)

// BasePrices anchors the generated walk for the OTC catalogue.
var BasePrices = map[string]float64{
	"GOLD_OTC":   2025.50,
	"USDARS_OTC": 1015.25,
	"USDMXN_OTC": 20.1250,
	"USDBRL_OTC": 6.0850,
	"CADCHF_OTC": 0.6450,
	"USDDZD_OTC": 134.75,
}

const defaultBasePrice = 1.0

// Walk parameters for generated series. Illustrative values, not fitted to
// any market.
const (
	mockReturnStd  = 0.002
	mockWickStd    = 0.0005
	mockTrendDrift = 0.0005
	mockMinVolume  = 1000
	mockMaxVolume  = 9999
)

// Mock generates a reproducible random walk per symbol: returns are
// N(trend, 0.002) with trend drawn once per symbol from {-d, 0, +d} at
// p = 0.3/0.4/0.3. It never fails, so it terminates the chain.
type Mock struct {
	now func() time.Time
}

func NewMock() *Mock {
	return &Mock{now: time.Now}
}

// NewMockAt pins the clock, so output is fully deterministic.
func NewMockAt(now func() time.Time) *Mock {
	return &Mock{now: now}
}

func (m *Mock) GetSeries(_ context.Context, symbol string, tf repository.Timeframe, minLength int) ([]models.PriceBar, error) {
	n := minLength
	if n <= 0 {
		n = 100
	}
	rng := rand.New(rand.NewSource(seed(symbol, tf)))

	base, ok := BasePrices[util.NormalizeSymbol(symbol)]
	if !ok {
		base = defaultBasePrice
	}

	var trend float64
	switch p := rng.Float64(); {
	case p < 0.3:
		trend = -mockTrendDrift
	case p >= 0.7:
		trend = mockTrendDrift
	}

	step := tf.Duration()
	end := util.AlignTo(m.now(), step)
	bars := make([]models.PriceBar, n)
	prev := base
	for i := 0; i < n; i++ {
		closePrice := base
		if i > 0 {
			closePrice = prev * (1 + trend + rng.NormFloat64()*mockReturnStd)
		}
		open := closePrice
		if i > 0 {
			open = prev
		}
		high := closePrice * (1 + math.Abs(rng.NormFloat64()*mockWickStd))
		low := closePrice * (1 - math.Abs(rng.NormFloat64()*mockWickStd))

		bars[i] = models.PriceBar{
			Timestamp: end.Add(-time.Duration(n-1-i) * step),
			Symbol:    symbol,
			Timeframe: string(tf),
			Open:      open,
			High:      max(open, high, closePrice),
			Low:       min(open, low, closePrice),
			Close:     closePrice,
			Volume:    float64(mockMinVolume + rng.Intn(mockMaxVolume-mockMinVolume+1)),
		}
		prev = closePrice
	}
	return bars, nil
}

func seed(symbol string, tf repository.Timeframe) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(util.NormalizeSymbol(symbol)))
	_, _ = h.Write([]byte{'|'})
	_, _ = h.Write([]byte(tf))
	return int64(h.Sum64() & math.MaxInt64)
}
