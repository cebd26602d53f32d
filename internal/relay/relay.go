// Package relay runs the portal-to-webhook pipeline once: read rows, parse,
// group per category, publish. Any failure aborts the run.
package relay

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/diftar2energyid/internal/energyid"
	"github.com/JakeFAU/diftar2energyid/internal/logging"
	"github.com/JakeFAU/diftar2energyid/internal/metrics"
	"github.com/JakeFAU/diftar2energyid/internal/waste"
)

// RowSource reads the raw portal rows. Implementations own the portal
// session for the duration of the call.
type RowSource interface {
	Rows(ctx context.Context) ([]waste.RawRow, error)
}

// BatchPublisher delivers a batch to the configured destinations.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, batch waste.Batch) ([]energyid.Result, error)
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock supplies the times a run is measured with.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	return f()
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// Config holds the optional metrics export target.
type Config struct {
	PushgatewayURL string
	Job            string
}

// Report summarises a run.
type Report struct {
	RunID        string
	Rows         int
	Measurements map[waste.Category]int
	Results      []energyid.Result
}

// Delivered is the number of measurements successfully posted.
func (r Report) Delivered() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == energyid.OutcomeDelivered {
			n += res.Count
		}
	}
	return n
}

// Runner wires the pipeline stages together.
type Runner struct {
	cfg       Config
	source    RowSource
	publisher BatchPublisher
	recorder  *metrics.Recorder
	ids       IDGenerator
	logger    *zap.Logger
	clock     Clock
}

// New builds a Runner. recorder may be nil to disable metrics.
func New(
	cfg Config,
	source RowSource,
	publisher BatchPublisher,
	recorder *metrics.Recorder,
	ids IDGenerator,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:       cfg,
		source:    source,
		publisher: publisher,
		recorder:  recorder,
		ids:       ids,
		logger:    logger,
		clock:     ClockFunc(utcNow),
	}
}

// Run executes the pipeline once.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	start := r.clock.Now()
	runID, err := r.ids.NewID()
	if err != nil {
		return Report{}, fmt.Errorf("start run: %w", err)
	}
	log := logging.Run(r.logger, runID)
	log.Info("Relay run started")

	report := Report{RunID: runID, Measurements: map[waste.Category]int{}}
	err = r.run(ctx, log, &report)
	r.finish(ctx, log, start, err)
	if err != nil {
		return report, err
	}
	log.Info("Relay run finished", zap.Int("rows", report.Rows), zap.Int("delivered", report.Delivered()))
	return report, nil
}

func (r *Runner) run(ctx context.Context, log *zap.Logger, report *Report) error {
	rows, err := r.source.Rows(ctx)
	if err != nil {
		return fmt.Errorf("read portal: %w", err)
	}
	report.Rows = len(rows)
	if r.recorder != nil {
		r.recorder.ObserveRows(len(rows))
	}
	log.Info("Got portal rows", zap.Int("count", len(rows)))

	entries, err := waste.ParseAll(rows)
	if err != nil {
		return fmt.Errorf("parse portal rows: %w", err)
	}
	batch := waste.Aggregate(entries)
	for _, category := range batch.Categories() {
		n := len(batch.Get(category))
		report.Measurements[category] = n
		if r.recorder != nil {
			r.recorder.ObserveMeasurements(category.Code(), n)
		}
		log.Debug("Grouped measurements", zap.Stringer("category", category), zap.Int("count", n))
	}

	results, err := r.publisher.PublishBatch(ctx, batch)
	report.Results = results
	if r.recorder != nil {
		for _, res := range results {
			r.recorder.ObserveDelivery(res.Category.Code(), string(res.Outcome))
		}
	}
	if err != nil {
		return fmt.Errorf("publish measurements: %w", err)
	}
	return nil
}

func (r *Runner) finish(ctx context.Context, log *zap.Logger, start time.Time, runErr error) {
	if r.recorder == nil {
		return
	}
	end := r.clock.Now()
	r.recorder.ObserveRun(end.Sub(start), end, runErr)
	if r.cfg.PushgatewayURL == "" {
		return
	}
	if err := r.recorder.Push(ctx, r.cfg.PushgatewayURL, r.cfg.Job); err != nil {
		log.Warn("Failed to push metrics", zap.Error(err))
	}
}
