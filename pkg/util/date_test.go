package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	require.True(t, ok)
	assert.Equal(t, s, got.UTC().Format(time.RFC3339))
}

func TestParseTimeVendorLayouts(t *testing.T) {
	got, ok := ParseTime("2024-10-10 15:00:00")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 10, 10, 15, 0, 0, 0, time.UTC), got)

	got, ok = ParseTime("2024-10-10")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC), got)
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	require.True(t, ok)
	assert.Equal(t, ts, got.Unix())
}

func TestAlignTo(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 47, 12, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC), AlignTo(ts, time.Hour))
	assert.Equal(t, time.Date(2024, 10, 10, 8, 0, 0, 0, time.UTC), AlignTo(ts, 4*time.Hour))
	assert.Equal(t, time.Date(2024, 10, 10, 10, 45, 0, 0, time.UTC), AlignTo(ts, 5*time.Minute))
}

func TestStrings(t *testing.T) {
	assert.Equal(t, 7, ParseIntDefault("7", 3))
	assert.Equal(t, 3, ParseIntDefault("x", 3))
	assert.Equal(t, "GOLD_OTC", NormalizeSymbol("  gold_otc "))
	assert.Equal(t, []string{"a", "b"}, SplitList(" a, ,b,"))
	assert.Nil(t, SplitList(""))
}
