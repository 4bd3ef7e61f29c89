package structure

import (
	"math"

	"SignalCast/internal/domain/models"
)

// DefaultMaxGaps caps how many of the most recent gaps are tracked.
const DefaultMaxGaps = 10

// Gap is a three-bar fair value gap.
type Gap struct {
	Upper  float64 `json:"upper"`
	Lower  float64 `json:"lower"`
	Filled bool    `json:"filled"`
	Kind   Bias    `json:"kind"`
	Index  int     `json:"-"`
}

// FVG summarises the tracked gaps.
type FVG struct {
	Signal        Bias  `json:"signal"`
	UnfilledCount int   `json:"unfilled_count"`
	Gaps          []Gap `json:"gaps"`
}

// DetectFVG finds gaps where bar one and bar three do not overlap. A gap is
// filled once any later bar trades back into it. Signal points toward the
// nearest unfilled gap, since price tends to return to fill it.
func DetectFVG(bars []models.PriceBar, maxGaps int) FVG {
	if maxGaps <= 0 {
		maxGaps = DefaultMaxGaps
	}
	out := FVG{Signal: Neutral, Gaps: []Gap{}}
	if len(bars) < 3 {
		return out
	}

	var gaps []Gap
	for i := 0; i+2 < len(bars); i++ {
		first, third := bars[i], bars[i+2]
		switch {
		case first.High < third.Low:
			gaps = append(gaps, Gap{Upper: third.Low, Lower: first.High, Kind: Bullish, Index: i})
		case first.Low > third.High:
			gaps = append(gaps, Gap{Upper: first.Low, Lower: third.High, Kind: Bearish, Index: i})
		}
	}
	if len(gaps) > maxGaps {
		gaps = gaps[len(gaps)-maxGaps:]
	}

	price := bars[len(bars)-1].Close
	nearest := math.Inf(1)
	for gi := range gaps {
		g := &gaps[gi]
		for j := g.Index + 3; j < len(bars); j++ {
			if bars[j].Low <= g.Upper && bars[j].High >= g.Lower {
				g.Filled = true
				break
			}
		}
		if g.Filled {
			continue
		}
		out.UnfilledCount++

		mid := (g.Upper + g.Lower) / 2
		if d := math.Abs(mid - price); d < nearest {
			nearest = d
			switch {
			case g.Lower > price:
				out.Signal = Bullish
			case g.Upper < price:
				out.Signal = Bearish
			default:
				out.Signal = Neutral
			}
		}
	}
	out.Gaps = gaps
	return out
}
