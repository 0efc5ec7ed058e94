package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/observability"
)

const (
	jobFAQSync        = "faq_sync"
	jobSessionArchive = "session_archive"
)

type faqSyncer interface {
	Sync(ctx context.Context) (int, error)
}

type sessionArchiver interface {
	ArchiveIdle(ctx context.Context, idleFor time.Duration, batch int) (int, error)
}

type maintenanceOptions struct {
	logger  *zap.Logger
	metrics *observability.Metrics
	cron    *cron.Cron
	timeout time.Duration
}

// MaintenanceOption configures the maintenance worker.
type MaintenanceOption func(*maintenanceOptions)

// WithLogger injects a logger.
func WithLogger(l *zap.Logger) MaintenanceOption {
	return func(o *maintenanceOptions) { o.logger = l }
}

// WithMetrics records job outcomes.
func WithMetrics(m *observability.Metrics) MaintenanceOption {
	return func(o *maintenanceOptions) { o.metrics = m }
}

// WithCron supplies a preconfigured scheduler.
func WithCron(c *cron.Cron) MaintenanceOption {
	return func(o *maintenanceOptions) { o.cron = c }
}

// WithJobTimeout bounds a single job run.
func WithJobTimeout(d time.Duration) MaintenanceOption {
	return func(o *maintenanceOptions) { o.timeout = d }
}

// MaintenanceWorker runs periodic FAQ backfill and idle-session archiving.
type MaintenanceWorker struct {
	cron     *cron.Cron
	faq      faqSyncer
	chat     sessionArchiver
	idleFor  time.Duration
	batch    int
	logger   *zap.Logger
	metrics  *observability.Metrics
	timeout  time.Duration
	entryIDs map[string]cron.EntryID
}

// NewMaintenanceWorker registers the configured jobs. The archive job is only
// scheduled when chat.IdleArchiveAfter is positive.
func NewMaintenanceWorker(cfg config.MaintenanceConfig, chat config.ChatConfig, faq faqSyncer, sessions sessionArchiver, opts ...MaintenanceOption) (*MaintenanceWorker, error) {
	o := maintenanceOptions{timeout: 5 * time.Minute}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.cron == nil {
		o.cron = cron.New(cron.WithLocation(time.UTC))
	}

	w := &MaintenanceWorker{
		cron:     o.cron,
		faq:      faq,
		chat:     sessions,
		idleFor:  chat.IdleArchiveAfter,
		batch:    cfg.SessionArchiveBatch,
		logger:   o.logger,
		metrics:  o.metrics,
		timeout:  o.timeout,
		entryIDs: make(map[string]cron.EntryID),
	}

	if faq != nil && cfg.FAQSyncSchedule != "" {
		if err := w.schedule(jobFAQSync, cfg.FAQSyncSchedule, w.RunFAQSync); err != nil {
			return nil, err
		}
	}
	if sessions != nil && w.idleFor > 0 && cfg.SessionArchiveSpec != "" {
		if err := w.schedule(jobSessionArchive, cfg.SessionArchiveSpec, w.RunSessionArchive); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (w *MaintenanceWorker) schedule(job, spec string, run func(context.Context) error) error {
	id, err := w.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		_ = run(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", job, spec, err)
	}
	w.entryIDs[job] = id
	w.logger.Info("maintenance job scheduled", zap.String("job", job), zap.String("spec", spec))
	return nil
}

// Jobs lists the names of scheduled jobs.
func (w *MaintenanceWorker) Jobs() []string {
	jobs := make([]string, 0, len(w.entryIDs))
	for _, name := range []string{jobFAQSync, jobSessionArchive} {
		if _, ok := w.entryIDs[name]; ok {
			jobs = append(jobs, name)
		}
	}
	return jobs
}

// Start begins the scheduler in its own goroutine.
func (w *MaintenanceWorker) Start() {
	w.cron.Start()
}

// Stop halts scheduling and waits for running jobs until ctx expires.
func (w *MaintenanceWorker) Stop(ctx context.Context) {
	done := w.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		w.logger.Warn("maintenance jobs still running at shutdown")
	}
}

// RunFAQSync backfills missing FAQ keywords and short texts.
func (w *MaintenanceWorker) RunFAQSync(ctx context.Context) error {
	changed, err := w.faq.Sync(ctx)
	w.metrics.RecordMaintenanceRun(jobFAQSync, err)
	if err != nil {
		w.logger.Error("faq sync failed", zap.Error(err))
		return err
	}
	w.logger.Info("faq sync completed", zap.Int("changed", changed))
	return nil
}

// RunSessionArchive archives sessions idle longer than the configured window.
func (w *MaintenanceWorker) RunSessionArchive(ctx context.Context) error {
	archived, err := w.chat.ArchiveIdle(ctx, w.idleFor, w.batch)
	w.metrics.RecordMaintenanceRun(jobSessionArchive, err)
	if err != nil {
		w.logger.Error("session archive failed", zap.Error(err))
		return err
	}
	if archived > 0 {
		w.logger.Info("idle sessions archived", zap.Int("archived", archived))
	}
	return nil
}
