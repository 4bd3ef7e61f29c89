package models

// Requests for the forecasting HTTP endpoints.

// PredictionRequest.Timeframe is the forecast horizon.
type PredictionRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required,max=32"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"5m" validate:"oneof=1m 5m"`
}

type AnalyzeRequest struct {
	Symbol    string  `query:"symbol" json:"symbol" validate:"required,max=32"`
	Timeframe string  `query:"timeframe" json:"timeframe" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	Policy    string  `query:"policy" json:"policy" default:"production" validate:"oneof=production legacy"`
	Threshold float64 `query:"threshold" json:"threshold" default:"75" validate:"gte=0,lte=100"`
	Bars      int     `query:"bars" json:"bars" default:"100" validate:"gte=20,lte=1000"`
}

type RecentPredictionsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"max=32"`
	Limit  int    `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=200"`
}

type AccuracyRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"max=32"`
	Timeframe string `query:"timeframe" json:"timeframe" validate:"omitempty,oneof=1m 5m"`
}

type ResolvePredictionRequest struct {
	ID    string  `param:"id" json:"id" validate:"required,uuid"`
	Price float64 `json:"price" validate:"gte=0"`
}

type CurrentPriceRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,max=32"`
}

type ManualPriceRequest struct {
	Symbol string  `json:"symbol" validate:"required,max=32"`
	Price  float64 `json:"price" validate:"required,gt=0"`
}
