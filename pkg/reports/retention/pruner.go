package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mercator-hq/fieldguard/pkg/reports"
	"mercator-hq/fieldguard/pkg/reports/export"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to keep records.
	// 0 keeps records forever.
	RetentionDays int

	// MaxRecords caps the number of stored records, dropping the oldest.
	// 0 means unlimited.
	MaxRecords int64

	// PruneSchedule is a cron expression, e.g. "0 3 * * *" (daily at 3 AM).
	PruneSchedule string

	// ArchivePath, when set, receives a JSON export of each batch before deletion.
	ArchivePath string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 30,
		PruneSchedule: "0 3 * * *",
	}
}

// Observer is told how many records each pruning run removed.
type Observer interface {
	RecordReportsPruned(count int64)
}

// Pruner enforces retention on the report archive.
type Pruner struct {
	storage   reports.Storage
	config    *Config
	observer  Observer
	logger    *slog.Logger
	scheduler *Scheduler
	now       func() time.Time
}

// NewPruner creates a pruner. observer may be nil.
func NewPruner(storage reports.Storage, config *Config, observer Observer, logger *slog.Logger) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pruner{
		storage:  storage,
		config:   config,
		observer: observer,
		logger:   logger.With("component", "reports.retention"),
		now:      time.Now,
	}
	p.scheduler = NewScheduler(p)
	return p
}

// Prune deletes records older than RetentionDays, then the oldest records
// beyond MaxRecords. It returns the total number deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.RetentionDays > 0 {
		deleted, err := p.pruneByAge(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by age failed: %w", err)
		}
		total += deleted
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.pruneByCount(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by count failed: %w", err)
		}
		total += deleted
	}

	if p.observer != nil {
		p.observer.RecordReportsPruned(total)
	}

	if total > 0 {
		p.logger.Info("report pruning completed",
			"deleted_count", total,
			"retention_days", p.config.RetentionDays,
			"max_records", p.config.MaxRecords,
		)
	} else {
		p.logger.Debug("no reports pruned")
	}
	return total, nil
}

func (p *Pruner) pruneByAge(ctx context.Context) (int64, error) {
	cutoff := p.now().AddDate(0, 0, -p.config.RetentionDays)
	query := &reports.Query{EndTime: &cutoff}

	if p.config.ArchivePath != "" {
		if err := p.archive(ctx, query, "age"); err != nil {
			return 0, reports.NewRetentionError(p.config.RetentionDays, err)
		}
	}

	deleted, err := p.storage.Delete(ctx, query)
	if err != nil {
		return 0, reports.NewRetentionError(p.config.RetentionDays, err)
	}
	p.logger.Debug("pruned reports by age", "deleted_count", deleted, "cutoff", cutoff)
	return deleted, nil
}

func (p *Pruner) pruneByCount(ctx context.Context) (int64, error) {
	count, err := p.storage.Count(ctx, &reports.Query{})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	if count <= p.config.MaxRecords {
		return 0, nil
	}

	excess := count - p.config.MaxRecords
	oldest, err := p.storage.Query(ctx, &reports.Query{SortOrder: "asc", Limit: int(excess)})
	if err != nil {
		return 0, fmt.Errorf("failed to query records: %w", err)
	}
	if len(oldest) == 0 {
		return 0, nil
	}

	if p.config.ArchivePath != "" {
		if err := p.writeArchive(ctx, oldest, "count"); err != nil {
			return 0, fmt.Errorf("archive failed: %w", err)
		}
	}

	cutoff := oldest[len(oldest)-1].PassTime
	deleted, err := p.storage.Delete(ctx, &reports.Query{EndTime: &cutoff})
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}

	p.logger.Info("record count exceeded limit, pruned oldest",
		"previous_count", count,
		"max_records", p.config.MaxRecords,
		"deleted_count", deleted,
	)
	return deleted, nil
}

// archive exports every record matching query. Storage listings are paged,
// so the batch is read until a short page comes back.
func (p *Pruner) archive(ctx context.Context, query *reports.Query, kind string) error {
	const page = 1000

	var batch []*reports.Record
	for offset := 0; ; offset += page {
		q := *query
		q.SortOrder = "asc"
		q.Limit = page
		q.Offset = offset
		records, err := p.storage.Query(ctx, &q)
		if err != nil {
			return fmt.Errorf("failed to query records for archiving: %w", err)
		}
		batch = append(batch, records...)
		if len(records) < page {
			break
		}
	}
	return p.writeArchive(ctx, batch, kind)
}

func (p *Pruner) writeArchive(ctx context.Context, records []*reports.Record, kind string) error {
	if len(records) == 0 {
		return nil
	}
	if err := os.MkdirAll(p.config.ArchivePath, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	name := fmt.Sprintf("reports-%s-%s.json", kind, p.now().UTC().Format("20060102-150405"))
	path := filepath.Join(p.config.ArchivePath, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	if err := export.NewJSONExporter(true).Export(ctx, records, f); err != nil {
		return fmt.Errorf("failed to export records to archive: %w", err)
	}

	p.logger.Info("reports archived", "archive_file", path, "record_count", len(records))
	return nil
}

// Start starts scheduled pruning.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops scheduled pruning.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled run, or nil.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
