package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"SignalCast/internal/domain/models"
	"SignalCast/internal/repository"
	"SignalCast/internal/service/quotes"
	"SignalCast/internal/service/sources"
	"SignalCast/internal/services/analyzer"
	"SignalCast/internal/services/structure"
	"SignalCast/internal/usecase"
	"SignalCast/pkg/cache"
	xhttp "SignalCast/pkg/http"
	xlogger "SignalCast/pkg/logger"
	"SignalCast/pkg/metrics"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	e     *echo.Echo
	store *repository.MemoryPredictionStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	l := xlogger.Nop()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	qc := quotes.New(mc)
	store := repository.NewMemoryPredictionStore()
	bars := repository.NewMemoryBarStore()
	series := sources.NewMock()
	an := analyzer.NewDefault(nil)

	prices := usecase.NewPriceUseCase(qc, bars, series, metrics.Nop{}, nil, l)
	h := NewForecastHandler(l,
		usecase.NewPredictionUseCase(series, store, repository.NopPublisher{}, structure.NewReconciler(an, structure.DefaultConfig()), metrics.Nop{}, l, usecase.PredictionConfig{}),
		usecase.NewAnalyzeUseCase(series, an, l),
		usecase.NewResolutionUseCase(store, prices, repository.NopPublisher{}, qc, metrics.Nop{}, l, 0),
		usecase.NewHistoryUseCase(store),
		prices,
		func() map[string]bool { return map[string]bool{"stream": false} },
	)
	e := echo.New()
	h.RegisterRoutes(e)
	return &env{e: e, store: store}
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (v *env) do(t *testing.T, method, target, body string) envelope {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	v.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestPredictionRoundTrip(t *testing.T) {
	v := newEnv(t)

	res := v.do(t, http.MethodGet, "/api/v1/prediction?symbol=GOLD_OTC", "")
	require.Equal(t, http.StatusOK, res.Status)
	var doc usecase.PredictionDocument
	require.NoError(t, json.Unmarshal(res.Data, &doc))
	require.NotNil(t, doc.PredictionID)
	assert.Equal(t, "5m", doc.Timeframe)

	res = v.do(t, http.MethodGet, "/api/v1/predictions/recent?symbol=GOLD_OTC", "")
	var list xhttp.ListDataResponse
	require.NoError(t, json.Unmarshal(res.Data, &list))
	assert.EqualValues(t, 1, list.Total)

	res = v.do(t, http.MethodPost, "/api/v1/predictions/"+doc.PredictionID.String()+"/resolve", `{"price":1}`)
	require.Equal(t, http.StatusOK, res.Status)
	var p models.Prediction
	require.NoError(t, json.Unmarshal(res.Data, &p))
	assert.True(t, p.IsResolved)

	res = v.do(t, http.MethodPost, "/api/v1/predictions/"+doc.PredictionID.String()+"/resolve", `{"price":1}`)
	assert.Equal(t, http.StatusConflict, res.Status)

	res = v.do(t, http.MethodGet, "/api/v1/accuracy?symbol=GOLD_OTC", "")
	require.NoError(t, json.Unmarshal(res.Data, &list))
	assert.EqualValues(t, 1, list.Total)
}

func TestValidationAndErrorMapping(t *testing.T) {
	v := newEnv(t)

	res := v.do(t, http.MethodGet, "/api/v1/prediction", "")
	assert.Equal(t, http.StatusBadRequest, res.Status)
	var verrs []xhttp.ValidationError
	require.NoError(t, json.Unmarshal(res.Data, &verrs))
	require.NotEmpty(t, verrs)
	assert.Equal(t, "symbol", verrs[0].Field)

	res = v.do(t, http.MethodGet, "/api/v1/analyze?symbol=GOLD_OTC&policy=aggressive", "")
	assert.Equal(t, http.StatusBadRequest, res.Status)

	res = v.do(t, http.MethodPost, "/api/v1/predictions/not-a-uuid/resolve", "")
	assert.Equal(t, http.StatusBadRequest, res.Status)

	id := uuid.NewString()
	res = v.do(t, http.MethodPost, "/api/v1/predictions/"+id+"/resolve", `{"price":1}`)
	assert.Equal(t, http.StatusNotFound, res.Status)
	var appErrs []xhttp.AppError
	require.NoError(t, json.Unmarshal(res.Data, &appErrs))
	require.Len(t, appErrs, 1)
	assert.Equal(t, "ERR_NOT_FOUND", appErrs[0].Code)
	assert.Equal(t, "prediction "+id+" not found", appErrs[0].Message)
	assert.Equal(t, id, appErrs[0].Params["id"])
}

func TestAnalyzeLegacy(t *testing.T) {
	v := newEnv(t)
	res := v.do(t, http.MethodGet, "/api/v1/analyze?symbol=USDBRL_OTC&policy=legacy&threshold=50", "")
	require.Equal(t, http.StatusOK, res.Status)
	var doc usecase.AnalysisDocument
	require.NoError(t, json.Unmarshal(res.Data, &doc))
	assert.Equal(t, "legacy", doc.Policy)
	assert.Equal(t, "1h", doc.Timeframe)
	assert.Equal(t, doc.Confidence >= 50, doc.MeetsThreshold)
}

func TestPricesAndPairs(t *testing.T) {
	v := newEnv(t)

	res := v.do(t, http.MethodPost, "/api/v1/price/manual", `{"symbol":"GOLD_OTC","price":2400}`)
	assert.Equal(t, http.StatusCreated, res.Status)

	res = v.do(t, http.MethodGet, "/api/v1/price/current?symbol=GOLD_OTC", "")
	var q models.Quote
	require.NoError(t, json.Unmarshal(res.Data, &q))
	assert.Equal(t, 2400.0, q.Price)

	res = v.do(t, http.MethodPost, "/api/v1/price/manual", `{"symbol":"GOLD_OTC","price":-1}`)
	assert.Equal(t, http.StatusBadRequest, res.Status)

	res = v.do(t, http.MethodGet, "/api/v1/pairs", "")
	var list xhttp.ListDataResponse
	require.NoError(t, json.Unmarshal(res.Data, &list))
	assert.EqualValues(t, 6, list.Total)
}

func TestResolveDueAndHealth(t *testing.T) {
	v := newEnv(t)
	ctx := context.Background()
	require.NoError(t, v.store.Save(ctx, &models.Prediction{
		ID: uuid.New(), Symbol: "GOLD_OTC", Timeframe: "5m", Direction: "UP", EntryPrice: 1,
		PredictedAt: time.Now().Add(-10 * time.Minute), ResolveAt: time.Now().Add(-5 * time.Minute),
	}))

	res := v.do(t, http.MethodPost, "/api/v1/predictions/resolve-due", "")
	var sum usecase.SweepSummary
	require.NoError(t, json.Unmarshal(res.Data, &sum))
	assert.Equal(t, 1, sum.Resolved)

	res = v.do(t, http.MethodGet, "/healthz", "")
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Data, &health))
	assert.Equal(t, "degraded", health["status"])
}
