package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"SignalCast/internal/domain/models"
	domrepo "SignalCast/internal/domain/repository"
	pkgch "SignalCast/pkg/clickhouse"
	"SignalCast/pkg/logger"

	"github.com/google/uuid"
)

// PredictionSchema creates the prediction table. Every state change is a new
// row with a higher version; reads use FINAL to see the latest.
func PredictionSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.predictions (
    id                  UUID,
    symbol              LowCardinality(String),
    timeframe           LowCardinality(String),
    direction           LowCardinality(String),
    confidence          Float64,
    meets_threshold     Bool,
    policy              LowCardinality(String),
    entry_price         Float64,
    actual_price        Nullable(Float64),
    is_resolved         Bool,
    is_correct          Nullable(Bool),
    up_signals          UInt32,
    down_signals        UInt32,
    total_signals       UInt32,
    analysis_timeframes Array(String),
    confluence          String,
    indicators          String,
    predicted_at        DateTime64(3, 'UTC'),
    resolve_at          DateTime64(3, 'UTC'),
    resolved_at         Nullable(DateTime64(3, 'UTC')),
    version             UInt64
) ENGINE = ReplacingMergeTree(version)
ORDER BY id`, database),
	}
}

const predictionColumns = `id, symbol, timeframe, direction, confidence, meets_threshold, policy,
    entry_price, actual_price, is_resolved, is_correct, up_signals, down_signals, total_signals,
    analysis_timeframes, confluence, indicators, predicted_at, resolve_at, resolved_at, version`

// CHPredictionStore implements PredictionStore backed by ClickHouse.
type CHPredictionStore struct {
	ch    *pkgch.Client
	table string
	l     *logger.Logger
}

func NewCHPredictionStore(ch *pkgch.Client, database string, l *logger.Logger) *CHPredictionStore {
	return &CHPredictionStore{ch: ch, table: database + ".predictions", l: l}
}

func (s *CHPredictionStore) Save(ctx context.Context, p *models.Prediction) error {
	return s.write(ctx, p)
}

// Resolve writes the resolved state as a newer version of the row.
func (s *CHPredictionStore) Resolve(ctx context.Context, p *models.Prediction) error {
	return s.write(ctx, p)
}

func (s *CHPredictionStore) write(ctx context.Context, p *models.Prediction) error {
	row, err := predictionRow(p, uint64(time.Now().UnixNano()))
	if err != nil {
		return err
	}
	q := fmt.Sprintf("INSERT INTO %s (%s)", s.table, predictionColumns)
	if err := s.ch.InsertBatch(ctx, q, [][]any{row}); err != nil {
		s.l.Error("clickhouse save prediction error",
			logger.String("id", p.ID.String()),
			logger.Error(err),
		)
		return fmt.Errorf("save prediction: %w", err)
	}
	return nil
}

func (s *CHPredictionStore) Get(ctx context.Context, id uuid.UUID) (*models.Prediction, error) {
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE id = ? LIMIT 1", predictionColumns, s.table)
	out, err := s.query(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domrepo.ErrPredictionNotFound
	}
	return out[0], nil
}

func (s *CHPredictionStore) Recent(ctx context.Context, symbol string, limit int) ([]*models.Prediction, error) {
	var (
		where []string
		args  []any
	)
	if symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, symbol)
	}
	q := fmt.Sprintf("SELECT %s FROM %s FINAL %s ORDER BY predicted_at DESC LIMIT ?",
		predictionColumns, s.table, whereClause(where))
	return s.query(ctx, q, append(args, limit)...)
}

func (s *CHPredictionStore) PendingDue(ctx context.Context, now time.Time, limit int) ([]*models.Prediction, error) {
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE is_resolved = false AND resolve_at <= ? ORDER BY resolve_at ASC LIMIT ?",
		predictionColumns, s.table)
	return s.query(ctx, q, now.UTC(), limit)
}

func (s *CHPredictionStore) Accuracy(ctx context.Context, symbol, timeframe string) ([]models.AccuracyMetrics, error) {
	where := []string{"is_resolved = true"}
	var args []any
	if symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, symbol)
	}
	if timeframe != "" {
		where = append(where, "timeframe = ?")
		args = append(args, timeframe)
	}
	q := fmt.Sprintf(`
        SELECT symbol, timeframe, count() AS total, countIf(is_correct = true) AS correct, max(resolved_at) AS last
        FROM %s FINAL %s
        GROUP BY symbol, timeframe
        ORDER BY symbol, timeframe`, s.table, whereClause(where))

	rows, err := s.ch.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("accuracy: %w", err)
	}
	defer rows.Close()

	var out []models.AccuracyMetrics
	for rows.Next() {
		var (
			sym, tf        string
			total, correct uint64
			last           sql.NullTime
		)
		if err := rows.Scan(&sym, &tf, &total, &correct, &last); err != nil {
			return nil, fmt.Errorf("scan accuracy: %w", err)
		}
		out = append(out, models.NewAccuracyMetrics(sym, tf, int(total), int(correct), last.Time.UTC()))
	}
	return out, rows.Err()
}

func (s *CHPredictionStore) query(ctx context.Context, q string, args ...any) ([]*models.Prediction, error) {
	rows, err := s.ch.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	var out []*models.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conds, " AND ")
}

func predictionRow(p *models.Prediction, version uint64) ([]any, error) {
	confluence, err := json.Marshal(p.ConfluenceFactors)
	if err != nil {
		return nil, fmt.Errorf("encode confluence: %w", err)
	}
	indicators, err := json.Marshal(p.Indicators)
	if err != nil {
		return nil, fmt.Errorf("encode indicators: %w", err)
	}

	var actual *float64
	if p.ActualPrice != nil {
		v := *p.ActualPrice
		actual = &v
	}
	var resolvedAt *time.Time
	if p.ResolvedAt != nil {
		v := p.ResolvedAt.UTC()
		resolvedAt = &v
	}
	tfs := p.AnalysisTimeframes
	if tfs == nil {
		tfs = []string{}
	}

	return []any{
		p.ID, p.Symbol, p.Timeframe, p.Direction, p.Confidence, p.MeetsThreshold, p.Policy,
		p.EntryPrice, actual, p.IsResolved, p.IsCorrect,
		uint32(p.Breakdown.UpSignals), uint32(p.Breakdown.DownSignals), uint32(p.Breakdown.TotalSignals),
		tfs, string(confluence), string(indicators),
		p.PredictedAt.UTC(), p.ResolveAt.UTC(), resolvedAt, version,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrediction(r scanner) (*models.Prediction, error) {
	var (
		p                  models.Prediction
		actual             sql.NullFloat64
		correct            sql.NullBool
		resolvedAt         sql.NullTime
		up, down, total    uint32
		confluence, indics string
		version            uint64
	)
	err := r.Scan(
		&p.ID, &p.Symbol, &p.Timeframe, &p.Direction, &p.Confidence, &p.MeetsThreshold, &p.Policy,
		&p.EntryPrice, &actual, &p.IsResolved, &correct,
		&up, &down, &total,
		&p.AnalysisTimeframes, &confluence, &indics,
		&p.PredictedAt, &p.ResolveAt, &resolvedAt, &version,
	)
	if err != nil {
		return nil, fmt.Errorf("scan prediction: %w", err)
	}

	p.Breakdown = models.SignalBreakdown{UpSignals: int(up), DownSignals: int(down), TotalSignals: int(total)}
	if actual.Valid {
		v := actual.Float64
		p.ActualPrice = &v
	}
	if correct.Valid {
		v := correct.Bool
		p.IsCorrect = &v
	}
	if resolvedAt.Valid {
		v := resolvedAt.Time.UTC()
		p.ResolvedAt = &v
	}
	p.PredictedAt = p.PredictedAt.UTC()
	p.ResolveAt = p.ResolveAt.UTC()
	if err := decodeJSONColumn(confluence, &p.ConfluenceFactors); err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(indics, &p.Indicators); err != nil {
		return nil, err
	}
	return &p, nil
}

func decodeJSONColumn(raw string, dest any) error {
	if raw == "" || raw == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("decode column: %w", err)
	}
	return nil
}

var _ domrepo.PredictionStore = (*CHPredictionStore)(nil)
