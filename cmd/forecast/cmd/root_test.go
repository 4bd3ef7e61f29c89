package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) []byte {
	t.Helper()
	t.Setenv("ALPHA_VANTAGE_API_KEY", "")
	cfgFile, envFile, verbose, sources = "", ".env", false, nil
	analyzeTimeframe, analyzePolicy, analyzeThreshold, analyzeBars = "1h", "", 0, 0

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append(args, "--env", t.TempDir()+"/missing.env"))
	require.NoError(t, rootCmd.Execute())
	return out.Bytes()
}

func TestPredictWithMockSource(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal(run(t, "predict", "eurusd_otc", "--sources", "mock"), &doc))

	assert.Equal(t, "EURUSD_OTC", doc["symbol"])
	assert.Contains(t, doc, "prediction")
	assert.Contains(t, doc, "threshold_met")
}

func TestAnalyzeLegacyPolicy(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal(run(t, "analyze", "GOLD_OTC", "--sources", "mock", "--policy", "legacy", "--tf", "4h"), &doc))

	assert.Equal(t, "GOLD_OTC", doc["symbol"])
	assert.Equal(t, "4h", doc["timeframe"])
	assert.Equal(t, "legacy", doc["policy"])
}

func TestPairs(t *testing.T) {
	var pairs []map[string]any
	require.NoError(t, json.Unmarshal(run(t, "pairs"), &pairs))
	assert.Len(t, pairs, 6)
}
