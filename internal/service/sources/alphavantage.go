package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"SignalCast/internal/domain/models"
	"SignalCast/internal/domain/repository"
	xhttp "SignalCast/pkg/http"
	"SignalCast/pkg/util"
)

const DefaultAlphaVantageURL = "https://www.alphavantage.co/query"

// ErrRateLimited is returned when the vendor answers with a throttle note.
var ErrRateLimited = errors.New("alpha vantage: rate limited")

// AlphaVantage serves 1h (60min intraday) and 1d series over REST. 4h is
// resampled from 1h; other timeframes are not served. Six-letter currency
// pairs use the FX endpoints, everything else the equity ones. A trailing
// "_OTC" is stripped before the call.
type AlphaVantage struct {
	client  *xhttp.Client
	baseURL string
	apiKey  string
}

func NewAlphaVantage(client *xhttp.Client, baseURL, apiKey string) *AlphaVantage {
	if baseURL == "" {
		baseURL = DefaultAlphaVantageURL
	}
	return &AlphaVantage{client: client, baseURL: baseURL, apiKey: apiKey}
}

type avBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// avResponse covers every series key the endpoints use.
type avResponse struct {
	Intraday   map[string]avBar `json:"Time Series (60min)"`
	Daily      map[string]avBar `json:"Time Series (Daily)"`
	FXIntraday map[string]avBar `json:"Time Series FX (60min)"`
	FXDaily    map[string]avBar `json:"Time Series FX (Daily)"`

	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

func (r *avResponse) series() map[string]avBar {
	for _, s := range []map[string]avBar{r.Intraday, r.Daily, r.FXIntraday, r.FXDaily} {
		if len(s) > 0 {
			return s
		}
	}
	return nil
}

func (a *AlphaVantage) GetSeries(ctx context.Context, symbol string, tf repository.Timeframe, minLength int) ([]models.PriceBar, error) {
	if a.apiKey == "" {
		return nil, errors.New("alpha vantage: api key not configured")
	}
	switch tf {
	case repository.TF1h, repository.TF1d:
		bars, err := a.fetch(ctx, symbol, tf, minLength)
		if err != nil {
			return nil, err
		}
		return tail(bars, minLength), nil
	case repository.TF4h:
		hourly, err := a.fetch(ctx, symbol, repository.TF1h, minLength*4)
		if err != nil {
			return nil, err
		}
		return tail(Resample(hourly, tf.Duration(), string(tf)), minLength), nil
	default:
		return nil, fmt.Errorf("alpha vantage: timeframe %s not served", tf)
	}
}

func (a *AlphaVantage) fetch(ctx context.Context, symbol string, tf repository.Timeframe, want int) ([]models.PriceBar, error) {
	var resp avResponse
	err := a.client.SendAndParse(ctx, &xhttp.RequestOptions{
		URL:         a.baseURL,
		QueryParams: a.query(symbol, tf, want),
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("alpha vantage %s: %w", symbol, err)
	}

	switch {
	case resp.ErrorMessage != "":
		return nil, fmt.Errorf("alpha vantage %s: %s", symbol, resp.ErrorMessage)
	case resp.Note != "" || resp.Information != "":
		return nil, ErrRateLimited
	}

	return parseSeries(resp.series(), symbol, string(tf))
}

func (a *AlphaVantage) query(symbol string, tf repository.Timeframe, want int) url.Values {
	outputSize := "compact"
	if want > 100 {
		outputSize = "full"
	}
	q := url.Values{
		"apikey":     {a.apiKey},
		"outputsize": {outputSize},
	}

	ticker := strings.TrimSuffix(util.NormalizeSymbol(symbol), "_OTC")
	fx := len(ticker) == 6 && ticker != "GOLD"
	switch {
	case fx && tf == repository.TF1d:
		q.Set("function", "FX_DAILY")
	case fx:
		q.Set("function", "FX_INTRADAY")
		q.Set("interval", "60min")
	case tf == repository.TF1d:
		q.Set("function", "TIME_SERIES_DAILY")
	default:
		q.Set("function", "TIME_SERIES_INTRADAY")
		q.Set("interval", "60min")
	}
	if fx {
		q.Set("from_symbol", ticker[:3])
		q.Set("to_symbol", ticker[3:])
	} else {
		q.Set("symbol", ticker)
	}
	return q
}

func parseSeries(raw map[string]avBar, symbol, timeframe string) ([]models.PriceBar, error) {
	if len(raw) == 0 {
		return nil, errors.New("alpha vantage: empty series")
	}
	out := make([]models.PriceBar, 0, len(raw))
	for stamp, b := range raw {
		ts, ok := util.ParseTime(stamp)
		if !ok {
			return nil, fmt.Errorf("alpha vantage: bad timestamp %q", stamp)
		}
		bar := models.PriceBar{Timestamp: ts, Symbol: symbol, Timeframe: timeframe}
		var err error
		if bar.Open, err = strconv.ParseFloat(b.Open, 64); err != nil {
			return nil, fmt.Errorf("alpha vantage open: %w", err)
		}
		if bar.High, err = strconv.ParseFloat(b.High, 64); err != nil {
			return nil, fmt.Errorf("alpha vantage high: %w", err)
		}
		if bar.Low, err = strconv.ParseFloat(b.Low, 64); err != nil {
			return nil, fmt.Errorf("alpha vantage low: %w", err)
		}
		if bar.Close, err = strconv.ParseFloat(b.Close, 64); err != nil {
			return nil, fmt.Errorf("alpha vantage close: %w", err)
		}
		// FX series carry no volume
		if b.Volume != "" {
			if bar.Volume, err = strconv.ParseFloat(b.Volume, 64); err != nil {
				return nil, fmt.Errorf("alpha vantage volume: %w", err)
			}
		}
		out = append(out, bar)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// NewAlphaVantageClient builds the HTTP client with the configured timeout.
func NewAlphaVantageClient(timeout time.Duration) *xhttp.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return xhttp.NewClient(xhttp.WithTimeout(timeout))
}
