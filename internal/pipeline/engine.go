// Package pipeline runs the aggregation: fan out to every registered
// source adapter, collect successes and failures independently, gate and
// dedupe the candidate records, and hand the batch to the snapshot store
// in one idempotent write.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chainlens/market-pipeline/internal/metric"
	"github.com/chainlens/market-pipeline/internal/metrics"
)

const fanOutLimit = 4

// Adapter is one external data provider. Fetch returns whatever records it
// could normalize; records and a non-nil error may coexist when data is
// partial. Adapters never panic past their own boundary.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) ([]metric.Record, error)
}

// SnapshotStore persists a batch of records keyed by (date, key).
type SnapshotStore interface {
	UpsertRecords(ctx context.Context, records []metric.Record) (int, error)
}

// RunResult is the outcome of one aggregation run. Partial adapter
// failures leave Success true; only a storage-level failure clears it.
type RunResult struct {
	Success       bool      `json:"success"`
	MetricsStored int       `json:"metricsStored"`
	Errors        []string  `json:"errors"`
	Timestamp     time.Time `json:"timestamp"`
}

// Engine owns the fixed adapter set. Registration happens once at startup;
// runs are triggered by the cron and admin handlers.
type Engine struct {
	store    SnapshotStore
	logger   *slog.Logger
	adapters []Adapter
	now      func() time.Time
}

func NewEngine(store SnapshotStore, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Register adds a source adapter to the engine.
func (e *Engine) Register(a Adapter) {
	e.adapters = append(e.adapters, a)
	e.logger.Info("registered source", "source", a.Name())
}

// SourceNames returns the names of all registered adapters.
func (e *Engine) SourceNames() []string {
	names := make([]string, 0, len(e.adapters))
	for _, a := range e.adapters {
		names = append(names, a.Name())
	}
	return names
}

// Run executes one aggregation pass. only filters the adapter set by name;
// empty means all. One adapter failing never stops the others, and their
// records are only joined after every fetch has settled.
func (e *Engine) Run(ctx context.Context, only []string) RunResult {
	started := e.now()
	adapters := e.selectAdapters(only)

	type outcome struct {
		records []metric.Record
		err     *SourceError
	}
	outcomes := make([]outcome, len(adapters))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for i, a := range adapters {
		i, a := i, a
		g.Go(func() error {
			fetchStart := time.Now()
			records, err := a.Fetch(gctx)
			metrics.FetchDuration.WithLabelValues(a.Name()).Observe(time.Since(fetchStart).Seconds())

			outcomes[i].records = records
			if err != nil {
				outcomes[i].err = classify(a.Name(), err)
				metrics.FetchTotal.WithLabelValues(a.Name(), string(outcomes[i].err.Kind)).Inc()
				e.logger.Error("source fetch failed", "source", a.Name(),
					"kind", outcomes[i].err.Kind, "error", err)
			} else {
				metrics.FetchTotal.WithLabelValues(a.Name(), "ok").Inc()
				metrics.FetchLastSuccess.WithLabelValues(a.Name()).SetToCurrentTime()
			}
			return nil
		})
	}
	_ = g.Wait()

	today := metric.Day(started)
	var candidates []metric.Record
	var errs []string
	for _, o := range outcomes {
		if o.err != nil {
			errs = append(errs, o.err.Error())
		}
		for _, r := range o.records {
			// Freshness gate: a scraped record dated before today is a
			// stale cached page, not new data. Skip it rather than
			// overwrite a correct prior value.
			if r.Scraped && !metric.Day(r.Date).Equal(today) {
				metrics.StaleRecordsSkipped.WithLabelValues(string(r.Key)).Inc()
				e.logger.Warn("stale scraped record skipped",
					"key", r.Key, "date", r.Date.Format("2006-01-02"), "source", r.Source)
				continue
			}
			r.Date = metric.Day(r.Date)
			candidates = append(candidates, r)
		}
	}

	batch := metric.Dedupe(candidates)
	if errs == nil {
		errs = []string{}
	}

	result := RunResult{Success: true, Errors: errs, Timestamp: started.UTC()}
	stored, err := e.store.UpsertRecords(ctx, batch)
	if err != nil {
		se := &SourceError{Source: "store", Kind: KindStorage, Err: err}
		e.logger.Error("upsert batch failed", "records", len(batch), "error", err)
		result.Success = false
		result.Errors = append(result.Errors, se.Error())
		// Report what would have been written so a failed run is still
		// observable next to its adapter errors.
		result.MetricsStored = len(batch)
		return result
	}

	result.MetricsStored = stored
	metrics.RecordsWritten.Add(float64(stored))
	metrics.RunDuration.Observe(time.Since(started).Seconds())
	e.logger.Info("aggregation run complete",
		"sources", len(adapters), "stored", stored, "errors", len(errs),
		"duration", time.Since(started).Round(time.Millisecond).String())
	return result
}

func (e *Engine) selectAdapters(only []string) []Adapter {
	if len(only) == 0 {
		return e.adapters
	}
	wanted := make(map[string]bool, len(only))
	for _, n := range only {
		wanted[n] = true
	}
	var out []Adapter
	for _, a := range e.adapters {
		if wanted[a.Name()] {
			out = append(out, a)
		}
	}
	return out
}
