package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"SignalCast/internal/domain/models"
	domrepo "SignalCast/internal/domain/repository"
	pkgkafka "SignalCast/pkg/kafka"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func prediction(symbol, dir string, at time.Time) *models.Prediction {
	return &models.Prediction{
		ID:          uuid.New(),
		Symbol:      symbol,
		Timeframe:   "5m",
		Direction:   dir,
		Confidence:  80,
		EntryPrice:  100,
		PredictedAt: at,
		ResolveAt:   at.Add(5 * time.Minute),
	}
}

func TestMemoryPredictionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPredictionStore()

	a := prediction("GOLD_OTC", "UP", t0)
	b := prediction("GOLD_OTC", "DOWN", t0.Add(time.Minute))
	c := prediction("USDMXN_OTC", "UP", t0.Add(2*time.Minute))
	for _, p := range []*models.Prediction{a, b, c} {
		require.NoError(t, s.Save(ctx, p))
	}

	recent, err := s.Recent(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, c.ID, recent[0].ID)
	assert.Equal(t, b.ID, recent[1].ID)

	recent, _ = s.Recent(ctx, "GOLD_OTC", 10)
	assert.Len(t, recent, 2)

	due, err := s.PendingDue(ctx, t0.Add(6*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, a.ID, due[0].ID)

	a.MarkResolved(101, t0.Add(6*time.Minute))
	b.MarkResolved(101, t0.Add(6*time.Minute))
	require.NoError(t, s.Resolve(ctx, a))
	require.NoError(t, s.Resolve(ctx, b))

	due, _ = s.PendingDue(ctx, t0.Add(time.Hour), 10)
	require.Len(t, due, 1)
	assert.Equal(t, c.ID, due[0].ID)

	acc, err := s.Accuracy(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, acc, 1)
	assert.Equal(t, "GOLD_OTC", acc[0].Symbol)
	assert.Equal(t, 2, acc[0].TotalPredictions)
	assert.Equal(t, 1, acc[0].CorrectPredictions)
	assert.Equal(t, 50.0, acc[0].AccuracyPercentage)

	_, err = s.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, domrepo.ErrPredictionNotFound)
	assert.ErrorIs(t, s.Resolve(ctx, prediction("X", "UP", t0)), domrepo.ErrPredictionNotFound)
}

func TestMemoryBarStoreReplacesSameTimestamp(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryBarStore()
	bar := func(h int, c float64) models.PriceBar {
		return models.PriceBar{Timestamp: t0.Add(time.Duration(h) * time.Hour), Symbol: "GOLD_OTC", Timeframe: "1h", Close: c}
	}

	require.NoError(t, s.InsertBars(ctx, []models.PriceBar{bar(2, 3), bar(0, 1), bar(1, 2)}))
	require.NoError(t, s.InsertBars(ctx, []models.PriceBar{bar(2, 30)}))

	got, err := s.LatestBars(ctx, "GOLD_OTC", 2, domrepo.TF1h)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[0].Close)
	assert.Equal(t, 30.0, got[1].Close)
}

type fakeProducer struct {
	topic string
	msgs  []pkgkafka.Message
}

func (f *fakeProducer) PublishBatch(_ context.Context, topic string, msgs []pkgkafka.Message) error {
	f.topic = topic
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func TestKafkaPredictionPublisher(t *testing.T) {
	fp := &fakeProducer{}
	pub := NewKafkaPredictionPublisher(fp, "preds", "res")
	p := prediction("GOLD_OTC", "UP", t0)

	require.NoError(t, pub.PublishPrediction(context.Background(), p))
	assert.Equal(t, "preds", fp.topic)
	require.Len(t, fp.msgs, 1)
	assert.Equal(t, []byte("GOLD_OTC"), fp.msgs[0].Key)
	assert.Equal(t, EventPredicted, fp.msgs[0].Headers["event"])

	require.NoError(t, pub.PublishResolution(context.Background(), p))
	assert.Equal(t, "res", fp.topic)
	ev := fp.msgs[1].Value.(PredictionEvent)
	assert.Equal(t, EventResolved, ev.Event)
	assert.Equal(t, p.ID, ev.Prediction.ID)
}

// rowScanner replays a predictionRow into Scan destinations the way the
// driver does for the nullable columns.
type rowScanner struct{ row []any }

func (r rowScanner) Scan(dest ...any) error {
	for i, d := range dest {
		v := r.row[i]
		switch p := d.(type) {
		case *uuid.UUID:
			*p = v.(uuid.UUID)
		case *string:
			*p = v.(string)
		case *float64:
			*p = v.(float64)
		case *bool:
			*p = v.(bool)
		case *uint32:
			*p = v.(uint32)
		case *uint64:
			*p = v.(uint64)
		case *[]string:
			*p = v.([]string)
		case *time.Time:
			*p = v.(time.Time)
		default:
			if s, ok := d.(interface{ Scan(any) error }); ok {
				switch nv := v.(type) {
				case *float64:
					if nv == nil {
						v = nil
					} else {
						v = *nv
					}
				case *bool:
					if nv == nil {
						v = nil
					} else {
						v = *nv
					}
				case *time.Time:
					if nv == nil {
						v = nil
					} else {
						v = *nv
					}
				}
				if err := s.Scan(v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func TestPredictionRowScansBack(t *testing.T) {
	p := prediction("GOLD_OTC", "UP", t0)
	p.AnalysisTimeframes = []string{"1h", "4h"}
	p.ConfluenceFactors = map[string]bool{"htf_bias": true}
	p.Indicators = map[string]float64{"rsi": 55.5}
	p.Breakdown = models.SignalBreakdown{UpSignals: 4, DownSignals: 1, TotalSignals: 5}
	p.MarkResolved(101, t0.Add(5*time.Minute))

	row, err := predictionRow(p, 7)
	require.NoError(t, err)

	got, err := scanPrediction(rowScanner{row})
	require.NoError(t, err)

	want, _ := json.Marshal(p)
	have, _ := json.Marshal(got)
	assert.JSONEq(t, string(want), string(have))
}

func TestBarRowsSkipsIncomplete(t *testing.T) {
	rows := barRows([]models.PriceBar{
		{Symbol: "GOLD_OTC", Timeframe: "1h", Timestamp: t0, Close: 1},
		{Symbol: "", Timeframe: "1h", Timestamp: t0},
		{Symbol: "GOLD_OTC", Timeframe: "1h"},
	}, t0)
	require.Len(t, rows, 1)
	assert.Equal(t, "GOLD_OTC", rows[0][0])
}
