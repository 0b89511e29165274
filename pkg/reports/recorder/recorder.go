package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/fieldguard/pkg/reports"
	"mercator-hq/fieldguard/pkg/validation/engine"
)

// Config contains configuration for the report recorder.
type Config struct {
	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds each storage write and how long Notify waits for
	// room in a full buffer.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// FailuresOnly skips passes without errors.
	FailuresOnly bool
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Observer is told about every write attempt.
type Observer interface {
	RecordReportStored(success bool)
}

// VersionFunc reports the rule source and version a pass ran against.
type VersionFunc func() (source, version string)

// Option configures a Recorder.
type Option func(*Recorder)

// WithObserver sets the write observer, typically the metrics collector.
func WithObserver(o Observer) Option {
	return func(r *Recorder) { r.observer = o }
}

// WithVersion sets the function that stamps records with the rule version.
func WithVersion(fn VersionFunc) Option {
	return func(r *Recorder) { r.version = fn }
}

// Recorder archives validation events. It implements engine.Notifier and
// writes records on a background goroutine so passes never wait on storage.
type Recorder struct {
	storage  reports.Storage
	config   *Config
	observer Observer
	version  VersionFunc
	logger   *slog.Logger

	recordChan chan *reports.Record
	done       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

var _ engine.Notifier = (*Recorder)(nil)

// NewRecorder creates a recorder and starts its writer.
func NewRecorder(storage reports.Storage, config *Config, logger *slog.Logger, opts ...Option) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		logger:     logger.With("component", "reports.recorder"),
		recordChan: make(chan *reports.Record, config.AsyncBuffer),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("report recorder initialized",
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
		"failures_only", config.FailuresOnly,
	)
	return r
}

// Notify turns event into a record and queues it for writing. It returns
// without waiting on storage.
func (r *Recorder) Notify(ctx context.Context, event *engine.Event) error {
	if event == nil {
		return nil
	}
	if r.config.FailuresOnly && (event.Details == nil || !event.Details.HasErrors) {
		return nil
	}

	select {
	case <-r.done:
		return reports.NewRecorderError("", context.Canceled)
	default:
	}

	record, err := r.newRecord(event)
	if err != nil {
		return reports.NewRecorderError("", err)
	}

	timer := time.NewTimer(r.config.WriteTimeout)
	defer timer.Stop()

	select {
	case r.recordChan <- record:
		r.logger.Debug("report enqueued", "record_id", record.ID, "pass_id", record.PassID)
		return nil
	case <-timer.C:
		r.logger.Error("report channel full, dropping record",
			"record_id", record.ID,
			"pass_id", record.PassID,
			"channel_capacity", r.config.AsyncBuffer,
		)
		r.observe(false)
		return reports.NewRecorderError(record.ID, context.DeadlineExceeded)
	case <-ctx.Done():
		return reports.NewRecorderError(record.ID, ctx.Err())
	case <-r.done:
		return reports.NewRecorderError(record.ID, context.Canceled)
	}
}

// Close stops accepting events, writes everything already queued and waits
// for the writer to exit. It is safe to call more than once.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.logger.Info("shutting down report recorder")
		close(r.done)
		r.wg.Wait()
		r.logger.Info("report recorder shut down complete")
	})
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)

		case <-r.done:
			r.logger.Info("draining report channel before shutdown", "pending_count", len(r.recordChan))
			for {
				select {
				case record := <-r.recordChan:
					r.writeRecord(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) writeRecord(record *reports.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	record.RecordedTime = start.UTC()

	if err := r.storage.Store(ctx, record); err != nil {
		r.logger.Error("failed to store report",
			"record_id", record.ID,
			"pass_id", record.PassID,
			"error", err,
		)
		r.observe(false)
		return
	}
	r.observe(true)

	duration := time.Since(start)
	r.logger.Debug("report recorded",
		"record_id", record.ID,
		"pass_id", record.PassID,
		"has_errors", record.HasErrors,
		"duration_ms", duration.Milliseconds(),
	)
	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow report write",
			"record_id", record.ID,
			"duration_ms", duration.Milliseconds(),
		)
	}
}

func (r *Recorder) observe(success bool) {
	if r.observer != nil {
		r.observer.RecordReportStored(success)
	}
}

// newRecord builds a record from an event.
func (r *Recorder) newRecord(event *engine.Event) (*reports.Record, error) {
	report := event.Details
	if report == nil {
		report = &engine.Report{
			Details: map[string][]engine.ValidationError{},
			Actions: map[string][]engine.ActionRecord{},
		}
	}

	hash, err := HashReport(report)
	if err != nil {
		return nil, fmt.Errorf("hash report: %w", err)
	}

	record := &reports.Record{
		ID:          uuid.NewString(),
		EventID:     event.ID,
		PassID:      event.PassID,
		PassTime:    event.Timestamp.UTC(),
		Event:       event.Event,
		HasErrors:   report.HasErrors,
		ErrorCount:  report.ErrorCount,
		SystemCount: report.SystemErrorCount(),
		FieldIDs:    FieldIDs(report),
		RuleIDs:     RuleIDs(report),
		ReportHash:  hash,
		Report:      report,
	}
	if record.PassTime.IsZero() {
		record.PassTime = time.Now().UTC()
	}
	if r.version != nil {
		record.RuleSource, record.RuleVersion = r.version()
	}
	return record, nil
}

// FieldIDs returns the fields with errors in report order. Reports decoded
// from JSON carry no order, so their fields are sorted instead.
func FieldIDs(report *engine.Report) []string {
	if len(report.Fields) == len(report.Details) {
		return append([]string(nil), report.Fields...)
	}
	ids := make([]string, 0, len(report.Details))
	for id := range report.Details {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RuleIDs returns the distinct, sorted IDs of rules that produced errors.
func RuleIDs(report *engine.Report) []string {
	seen := make(map[string]struct{})
	for _, errs := range report.Details {
		for _, e := range errs {
			if e.RuleID != "" {
				seen[e.RuleID] = struct{}{}
			}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
