package signals

import (
	"testing"
	"time"

	"SignalCast/internal/domain/models"
	"SignalCast/internal/services/indicators"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// neutral has every rule abstain except the always-voting binary ones.
func neutral() indicators.Values {
	return indicators.Values{
		Close: 100, Volume: 1000,
		SMA20: 100, SMA50: 100, EMA12: 100, EMA26: 100,
		RSI: 50, BBUpper: 102, BBMiddle: 100, BBLower: 98,
		StochK: 50, StochD: 50, WilliamsR: -50, VolumeSMA: 1000,
	}
}

func in(v indicators.Values, closes ...float64) Input {
	return Input{Values: v, Closes: closes, Volume: v.Volume}
}

func single(t *testing.T, votes []Vote) Vote {
	t.Helper()
	require.Len(t, votes, 1)
	return votes[0]
}

func TestTrendRule(t *testing.T) {
	v := neutral()
	assert.Equal(t, Up, single(t, TrendRule(in(v, 100, 100, 100, 100, 100.2))).Direction)
	assert.Equal(t, Down, single(t, TrendRule(in(v, 100, 101, 101, 101, 99.8))).Direction)
	assert.Empty(t, TrendRule(in(v, 100, 100, 100, 100, 100.05)))
	assert.Empty(t, TrendRule(in(v, 100, 101)))

	// only the close four bars back counts
	got := single(t, TrendRule(in(v, 50, 100, 0, 0, 100.2)))
	assert.Equal(t, Up, got.Direction)
	assert.Equal(t, WeightTrend, got.Weight)
}

func TestRSIRules(t *testing.T) {
	cases := []struct {
		rsi     float64
		extreme Direction
		bias    Direction
	}{
		{20, Up, ""},
		{80, Down, ""},
		{40, "", Up},
		{50, "", Down},
		{65, "", Down},
		{35, "", Up},
	}
	for _, tc := range cases {
		v := neutral()
		v.RSI = tc.rsi
		ext := RSIExtremeRule(in(v))
		bias := RSIBiasRule(in(v))
		if tc.extreme != "" {
			assert.Equal(t, tc.extreme, single(t, ext).Direction, "rsi %v", tc.rsi)
			assert.Empty(t, bias, "rsi %v", tc.rsi)
		} else {
			assert.Empty(t, ext, "rsi %v", tc.rsi)
			assert.Equal(t, tc.bias, single(t, bias).Direction, "rsi %v", tc.rsi)
		}
	}
}

func TestBinaryRules(t *testing.T) {
	v := neutral()
	v.MACDLine, v.MACDSignal = 1, 0.5
	assert.Equal(t, Up, single(t, MACDRule(in(v))).Direction)
	v.MACDLine = 0.5
	assert.Equal(t, Down, single(t, MACDRule(in(v))).Direction)

	v = neutral()
	v.Close = 101
	assert.Equal(t, Up, single(t, PriceVsSMARule(in(v))).Direction)
	v.Close = 100
	assert.Equal(t, Down, single(t, PriceVsSMARule(in(v))).Direction)

	v = neutral()
	v.SMA20 = 101
	assert.Equal(t, Up, single(t, SMACrossRule(in(v))).Direction)
	v.SMA20 = 100
	assert.Equal(t, Down, single(t, SMACrossRule(in(v))).Direction)
}

func TestBollingerRules(t *testing.T) {
	v := neutral()
	v.Close = 97
	assert.Equal(t, Up, single(t, BollingerExtremeRule(in(v))).Direction)
	assert.Empty(t, BollingerBiasRule(in(v)))

	v.Close = 103
	assert.Equal(t, Down, single(t, BollingerExtremeRule(in(v))).Direction)
	assert.Empty(t, BollingerBiasRule(in(v)))

	v.Close = 101
	assert.Empty(t, BollingerExtremeRule(in(v)))
	assert.Equal(t, Up, single(t, BollingerBiasRule(in(v))).Direction)

	v.Close = 99
	assert.Equal(t, Down, single(t, BollingerBiasRule(in(v))).Direction)

	// zero-width band
	v.BBUpper, v.BBMiddle, v.BBLower, v.Close = 100, 100, 100, 100
	assert.Equal(t, Up, single(t, BollingerExtremeRule(in(v))).Direction)
}

func TestOscillatorRules(t *testing.T) {
	v := neutral()
	v.StochK = 20
	assert.Equal(t, Up, single(t, StochasticRule(in(v))).Direction)
	v.StochK = 80
	assert.Equal(t, Down, single(t, StochasticRule(in(v))).Direction)
	v.StochK = 75
	assert.Empty(t, StochasticRule(in(v)))

	v = neutral()
	v.WilliamsR = -90
	assert.Equal(t, Up, single(t, WilliamsRule(in(v))).Direction)
	v.WilliamsR = -10
	assert.Equal(t, Down, single(t, WilliamsRule(in(v))).Direction)
	v.WilliamsR = -25
	assert.Empty(t, WilliamsRule(in(v)))

	v = neutral()
	v.Momentum = 0.5
	assert.Equal(t, Up, single(t, MomentumRule(in(v))).Direction)
	v.Momentum = -0.5
	assert.Equal(t, Down, single(t, MomentumRule(in(v))).Direction)
	v.Momentum = 0.2
	assert.Empty(t, MomentumRule(in(v)))
}

func TestVolumeRule(t *testing.T) {
	v := neutral()
	v.Volume = 1300
	got := single(t, VolumeRule(in(v)))
	assert.Equal(t, None, got.Direction)
	assert.Equal(t, WeightVolumeHigh, got.Weight)

	v.Volume = 1000
	assert.Equal(t, WeightVolumeNormal, single(t, VolumeRule(in(v))).Weight)
}

func TestFallbackRule(t *testing.T) {
	v := neutral()
	assert.Equal(t, Up, single(t, FallbackRule(in(v, 1, 2))).Direction)
	assert.Equal(t, Down, single(t, FallbackRule(in(v, 2, 2))).Direction)
	assert.Equal(t, Up, single(t, FallbackRule(in(v, 2))).Direction)
	assert.Equal(t, Up, single(t, FallbackRule(in(v))).Direction)
}

func TestVoterFallsBackWhenNothingDirectional(t *testing.T) {
	quiet := func(in Input) []Vote { return VolumeRule(in) }
	voter := NewVoter(quiet)

	bars := []models.PriceBar{
		{Timestamp: time.Unix(0, 0), Close: 2},
		{Timestamp: time.Unix(60, 0), Close: 1},
	}
	votes := voter.Vote(neutral(), bars)
	require.Len(t, votes, 2)
	assert.Equal(t, "fallback", votes[1].Rule)
	assert.Equal(t, Down, votes[1].Direction)

	votes = voter.Vote(neutral(), nil)
	assert.Equal(t, Up, votes[len(votes)-1].Direction)
}

func TestVoterDefaultRules(t *testing.T) {
	v := neutral()
	v.RSI = 20
	v.Close = 101
	votes := NewVoter().Vote(v, nil)

	tally := Count(votes)
	// rsi extreme, price>sma, bollinger bias up; macd, sma cross down; volume weight only
	assert.Equal(t, 3, tally.Up)
	assert.Equal(t, 2, tally.Down)
	assert.Equal(t, 5, tally.Total)
	assert.InDelta(t, 0.15+0.15+0.06+0.12+0.10+0.03, tally.WeightSum, 1e-9)
	for _, vote := range votes {
		assert.NotEqual(t, "fallback", vote.Rule)
	}
}
