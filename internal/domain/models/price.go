package models

import "time"

// PriceBar is one OHLCV interval for a (symbol, timeframe) pair.
type PriceBar struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Closes extracts closing prices in bar order.
func Closes(bars []PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Quote is the latest known price for a symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// TradingPair is a tradable instrument.
type TradingPair struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultPairs is the OTC catalogue served when no pairs are configured.
func DefaultPairs() []TradingPair {
	return []TradingPair{
		{Symbol: "GOLD_OTC", Name: "Gold (OTC)", IsActive: true},
		{Symbol: "USDARS_OTC", Name: "USD/ARS (OTC)", IsActive: true},
		{Symbol: "USDMXN_OTC", Name: "USD/MXN (OTC)", IsActive: true},
		{Symbol: "USDBRL_OTC", Name: "USD/BRL (OTC)", IsActive: true},
		{Symbol: "CADCHF_OTC", Name: "CAD/CHF (OTC)", IsActive: true},
		{Symbol: "USDDZD_OTC", Name: "USD/DZD (OTC)", IsActive: true},
	}
}
