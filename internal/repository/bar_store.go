package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"SignalCast/internal/domain/models"
	domrepo "SignalCast/internal/domain/repository"
	pkgch "SignalCast/pkg/clickhouse"
	"SignalCast/pkg/logger"
)

// BarSchema creates the bar table. ReplacingMergeTree keeps the latest
// write per (symbol, timeframe, ts), so a manual price overrides a fetched bar.
func BarSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.bars (
    symbol      LowCardinality(String),
    timeframe   LowCardinality(String),
    ts          DateTime64(3, 'UTC'),
    open        Float64,
    high        Float64,
    low         Float64,
    close       Float64,
    volume      Float64,
    inserted_at DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree(inserted_at)
ORDER BY (symbol, timeframe, ts)`, database),
	}
}

// CHBarStore implements BarStore backed by ClickHouse.
type CHBarStore struct {
	ch    *pkgch.Client
	table string
	l     *logger.Logger
}

func NewCHBarStore(ch *pkgch.Client, database string, l *logger.Logger) *CHBarStore {
	return &CHBarStore{ch: ch, table: database + ".bars", l: l}
}

// LatestBars returns the newest n bars in ascending time order.
func (s *CHBarStore) LatestBars(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.PriceBar, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT ts, symbol, timeframe, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND timeframe = ?
        ORDER BY ts DESC
        LIMIT ?`, s.table)

	rows, err := s.ch.DB().QueryContext(ctx, q, symbol, string(tf), n)
	if err != nil {
		s.l.Error("clickhouse latest_bars query error",
			logger.String("symbol", symbol),
			logger.String("tf", string(tf)),
			logger.Error(err),
		)
		return nil, fmt.Errorf("latest bars: %w", err)
	}
	defer rows.Close()

	out, err := scanBars(rows, n)
	if err != nil {
		return nil, err
	}
	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	s.l.Debug("clickhouse latest_bars ok",
		logger.String("symbol", symbol),
		logger.String("tf", string(tf)),
		logger.Int("rows", len(out)),
		logger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func scanBars(rows *sql.Rows, capacity int) ([]models.PriceBar, error) {
	out := make([]models.PriceBar, 0, capacity)
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(&b.Timestamp, &b.Symbol, &b.Timeframe, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timestamp = b.Timestamp.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// InsertBars writes bars as one batch.
func (s *CHBarStore) InsertBars(ctx context.Context, bars []models.PriceBar) error {
	q := fmt.Sprintf("INSERT INTO %s (symbol, timeframe, ts, open, high, low, close, volume, inserted_at)", s.table)
	rows := barRows(bars, time.Now().UTC())
	if err := s.ch.InsertBatch(ctx, q, rows); err != nil {
		return fmt.Errorf("insert bars: %w", err)
	}
	return nil
}

func barRows(bars []models.PriceBar, now time.Time) [][]any {
	rows := make([][]any, 0, len(bars))
	for _, b := range bars {
		if b.Symbol == "" || b.Timestamp.IsZero() {
			continue
		}
		rows = append(rows, []any{
			b.Symbol, b.Timeframe, b.Timestamp.UTC(),
			b.Open, b.High, b.Low, b.Close, b.Volume, now,
		})
	}
	return rows
}

var _ domrepo.BarStore = (*CHBarStore)(nil)
