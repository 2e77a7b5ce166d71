package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alexvargas/portfolio-realtime/internal/events"
	"github.com/alexvargas/portfolio-realtime/internal/model"
)

// Config contains batching settings for the recorder.
type Config struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: time.Second,
	}
}

// Metrics holds counters for the recorder.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
	Dropped   int64
}

// analyticsRow represents a row for the analytics_events table.
type analyticsRow struct {
	ID         string
	EventType  string
	Path       string
	VisitorID  string
	Detail     []byte // JSONB, may be nil
	OccurredAt time.Time
	ReceivedAt time.Time
}

// Recorder consumes analytics events from the bus and batch-inserts them
// into PostgreSQL. Events arrive on the dashboard channel for admins only,
// so the recorder is an optional component.
type Recorder struct {
	cfg    Config
	logger *slog.Logger

	// Input from the event bus
	bus    *events.Bus
	input  <-chan events.Event
	cancel func()

	// Database
	db *pgxpool.Pool

	// insert is swapped out in tests.
	insert func(ctx context.Context, rows []analyticsRow) (conflicts int, err error)

	// Batching
	batch       []analyticsRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx     context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	metrics Metrics
}

// New creates a recorder. The pool must already be connected.
func New(cfg Config, bus *events.Bus, db *pgxpool.Pool, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		cfg:    cfg,
		bus:    bus,
		db:     db,
		logger: logger.With("component", "recorder"),
		batch:  make([]analyticsRow, 0, cfg.BatchSize),
	}
	r.insert = r.batchInsert
	return r
}

// Start subscribes to analytics events and begins batching.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.stop = context.WithCancel(ctx)
	r.input, r.cancel = r.bus.Subscribe(events.TopicAnalyticsEvent)
	r.flushTicker = time.NewTicker(r.cfg.FlushInterval)

	r.wg.Add(1)
	go r.consumeLoop()

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("analytics recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop unsubscribes, drains goroutines, and performs a final flush.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping analytics recorder")

	if r.cancel != nil {
		r.cancel()
	}
	if r.stop != nil {
		r.stop()
	}
	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("analytics recorder stopped")
	case <-ctx.Done():
		r.logger.Warn("analytics recorder stop timed out")
	}

	// Final flush. r.ctx is already cancelled, so the pending rows go out
	// on the shutdown context instead.
	r.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (r *Recorder) Stats() Metrics {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return r.metrics
}

func (r *Recorder) consumeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case ev, ok := <-r.input:
			if !ok {
				return
			}
			r.handleEvent(ev)
		}
	}
}

func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.flushTicker.C:
			r.flush(r.ctx)
		}
	}
}

func (r *Recorder) handleEvent(ev events.Event) {
	ae, ok := ev.Payload.(model.AnalyticsEvent)
	if !ok {
		r.batchMu.Lock()
		r.metrics.Dropped++
		r.batchMu.Unlock()
		r.logger.Warn("unexpected payload on analytics topic", "payload_type", fmt.Sprintf("%T", ev.Payload))
		return
	}

	row := transform(ae, ev.Time)

	r.batchMu.Lock()
	r.batch = append(r.batch, row)
	shouldFlush := len(r.batch) >= r.cfg.BatchSize
	r.batchMu.Unlock()

	if shouldFlush {
		r.flush(r.ctx)
	}
}

func transform(ae model.AnalyticsEvent, receivedAt time.Time) analyticsRow {
	return analyticsRow{
		ID:         ae.ID.String(),
		EventType:  ae.EventType,
		Path:       ae.Path,
		VisitorID:  ae.VisitorID,
		Detail:     ae.Detail,
		OccurredAt: ae.OccurredAt,
		ReceivedAt: receivedAt,
	}
}

// flush writes the current batch to the database.
func (r *Recorder) flush(ctx context.Context) {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := r.batch
	r.batch = make([]analyticsRow, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	start := time.Now()

	conflicts, err := r.insert(ctx, batch)
	if err != nil {
		r.logger.Error("batch insert failed", "error", err, "count", len(batch))
		r.batchMu.Lock()
		r.metrics.Errors++
		r.batchMu.Unlock()
		return
	}

	r.batchMu.Lock()
	r.metrics.Inserts += int64(len(batch) - conflicts)
	r.metrics.Conflicts += int64(conflicts)
	r.metrics.Flushes++
	r.batchMu.Unlock()

	r.logger.Debug("flushed analytics events",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (r *Recorder) batchInsert(ctx context.Context, rows []analyticsRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO analytics_events (id, event_type, path, visitor_id, detail, occurred_at, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, row.ID, row.EventType, row.Path, row.VisitorID, row.Detail, row.OccurredAt, row.ReceivedAt)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
