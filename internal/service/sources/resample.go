package sources

import (
	"time"

	"SignalCast/internal/domain/models"
	"SignalCast/pkg/util"
)

// Resample folds ordered bars into buckets of d, aligned to UTC. The last
// bucket may be partial.
func Resample(bars []models.PriceBar, d time.Duration, timeframe string) []models.PriceBar {
	var out []models.PriceBar
	for _, b := range bars {
		bucket := util.AlignTo(b.Timestamp, d)
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(bucket) {
			cur := &out[n-1]
			cur.High = max(cur.High, b.High)
			cur.Low = min(cur.Low, b.Low)
			cur.Close = b.Close
			cur.Volume += b.Volume
			continue
		}
		nb := b
		nb.Timestamp = bucket
		nb.Timeframe = timeframe
		out = append(out, nb)
	}
	return out
}

// tail keeps at most n trailing bars.
func tail(bars []models.PriceBar, n int) []models.PriceBar {
	if n > 0 && len(bars) > n {
		return bars[len(bars)-n:]
	}
	return bars
}
