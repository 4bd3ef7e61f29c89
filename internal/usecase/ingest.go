package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"SignalCast/internal/domain/models"
	domrepo "SignalCast/internal/domain/repository"
	mid "SignalCast/internal/middleware"
	"SignalCast/internal/service/quotes"
	pkgkafka "SignalCast/pkg/kafka"
	"SignalCast/pkg/logger"
	"SignalCast/pkg/util"
)

// BarIngestHandler consumes bar messages from Kafka and writes them to the
// bar store. Message schema: {symbol, timeframe, t, o, h, l, c, v} where t is
// unix seconds or milliseconds; a JSON array of such objects is accepted too.
type BarIngestHandler struct {
	topic   string
	bars    domrepo.BarStore
	quotes  *quotes.Cache
	metrics domrepo.Metrics
	l       *logger.Logger
}

func NewBarIngestHandler(topic string, bars domrepo.BarStore, qc *quotes.Cache, metrics domrepo.Metrics, l *logger.Logger) *BarIngestHandler {
	return &BarIngestHandler{topic: topic, bars: bars, quotes: qc, metrics: metrics, l: l}
}

func (h *BarIngestHandler) Topic() string { return h.topic }

type barMessage struct {
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	T         int64   `json:"t"`
	O         float64 `json:"o"`
	H         float64 `json:"h"`
	L         float64 `json:"l"`
	C         float64 `json:"c"`
	V         float64 `json:"v"`
}

func (m barMessage) bar() (models.PriceBar, error) {
	if m.Symbol == "" || m.T <= 0 || m.C <= 0 {
		return models.PriceBar{}, fmt.Errorf("invalid bar message for %q", m.Symbol)
	}
	ts := m.T
	if ts > 1e11 { // ms
		ts /= 1000
	}
	tf := domrepo.NormalizeTimeframe(m.Timeframe)
	b := models.PriceBar{
		Timestamp: util.AlignTo(time.Unix(ts, 0), tf.Duration()),
		Symbol:    util.NormalizeSymbol(m.Symbol),
		Timeframe: string(tf),
		Open:      m.O,
		High:      m.H,
		Low:       m.L,
		Close:     m.C,
		Volume:    m.V,
	}
	if b.Open == 0 {
		b.Open = b.Close
	}
	b.High = max(b.High, b.Open, b.Close)
	if b.Low == 0 {
		b.Low = min(b.Open, b.Close)
	}
	return b, nil
}

func decodeBars(b []byte) ([]models.PriceBar, error) {
	var msgs []barMessage
	if len(b) > 0 && b[0] == '[' {
		if err := json.Unmarshal(b, &msgs); err != nil {
			return nil, err
		}
	} else {
		var m barMessage
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, err
		}
		msgs = []barMessage{m}
	}
	out := make([]models.PriceBar, 0, len(msgs))
	for _, m := range msgs {
		bar, err := m.bar()
		if err != nil {
			return nil, err
		}
		out = append(out, bar)
	}
	return out, nil
}

func (h *BarIngestHandler) Handle(ctx context.Context, b []byte) error {
	bars, err := decodeBars(b)
	if err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode bars: %w", err)
	}

	start := time.Now()
	err = h.bars.InsertBars(ctx, bars)
	h.metrics.RecordLatency("bar_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}

	// newest bar per symbol becomes the quote
	latest := make(map[string]models.PriceBar)
	for _, bar := range bars {
		if cur, ok := latest[bar.Symbol]; !ok || bar.Timestamp.After(cur.Timestamp) {
			latest[bar.Symbol] = bar
		}
	}
	for sym, bar := range latest {
		if err := h.quotes.Invalidate(ctx, sym); err != nil {
			h.l.Warn("quote cache invalidate failed", logger.String("symbol", sym), logger.Error(err))
		}
		q := models.Quote{Symbol: sym, Price: bar.Close, Timestamp: bar.Timestamp, Source: QuoteSourceBar}
		if err := h.quotes.PutQuote(ctx, q); err != nil {
			h.l.Warn("quote cache write failed", logger.String("symbol", sym), logger.Error(err))
		}
		h.metrics.RecordLastPrice(sym, bar.Close)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*BarIngestHandler)(nil)

// QuoteSink writes accepted ticks to the quote cache.
type QuoteSink struct {
	quotes  *quotes.Cache
	metrics domrepo.Metrics
}

func NewQuoteSink(qc *quotes.Cache, metrics domrepo.Metrics) *QuoteSink {
	return &QuoteSink{quotes: qc, metrics: metrics}
}

func (s *QuoteSink) Process(ctx context.Context, q *models.Quote) error {
	if err := s.quotes.PutQuote(ctx, *q); err != nil {
		return err
	}
	s.metrics.RecordLastPrice(q.Symbol, q.Price)
	return nil
}

// QuoteCollector feeds live stream ticks into the quote cache, reconnecting
// when the stream drops.
type QuoteCollector struct {
	stream  domrepo.QuoteStream
	proc    mid.Proc
	pipe    *mid.QuotePipeline
	metrics domrepo.Metrics
	l       *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQuoteCollector routes ticks through pipe when it is non-nil and
// straight to sink otherwise.
func NewQuoteCollector(stream domrepo.QuoteStream, sink *QuoteSink, pipe *mid.QuotePipeline, metrics domrepo.Metrics, l *logger.Logger) *QuoteCollector {
	c := &QuoteCollector{stream: stream, proc: sink, pipe: pipe, metrics: metrics, l: l}
	if pipe != nil {
		c.proc = pipe
	}
	return c
}

// IsConnected returns true if the quote stream is connected.
func (c *QuoteCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *QuoteCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	ctx, c.cancel = context.WithCancel(ctx)
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	c.wg.Add(1)
	go c.run(ctx)
	return nil
}

func (c *QuoteCollector) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		qCh, errCh := c.stream.Read(ctx)
		c.consume(ctx, qCh)
		if ctx.Err() != nil {
			return
		}
		if err := <-errCh; err != nil {
			c.metrics.RecordError("stream")
			c.l.Warn("quote stream dropped", logger.Error(err))
		}
		for ctx.Err() == nil {
			if err := c.stream.Reconnect(ctx); err != nil {
				c.l.Warn("quote stream reconnect failed", logger.Error(err))
				continue
			}
			break
		}
	}
}

// consume drains one Read session until its quote channel closes.
func (c *QuoteCollector) consume(ctx context.Context, qCh <-chan *models.Quote) {
	for q := range qCh {
		if err := c.proc.Process(ctx, q); err != nil {
			c.l.Debug("quote not applied", logger.String("symbol", q.Symbol), logger.Error(err))
		}
	}
}

// Shutdown stops collecting and closes the stream.
func (c *QuoteCollector) Shutdown(_ context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	err := c.stream.Close()
	c.wg.Wait()
	if c.pipe != nil {
		c.pipe.Stop()
		if n := c.pipe.Buffered(); n > 0 {
			c.l.Warn("quote ticks discarded at shutdown", logger.Int("buffered", n))
		}
	}
	return err
}
