package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/observability"
)

type fakeSyncer struct {
	calls int
	err   error
}

func (f *fakeSyncer) Sync(context.Context) (int, error) {
	f.calls++
	return 3, f.err
}

type fakeArchiver struct {
	idleFor time.Duration
	batch   int
}

func (f *fakeArchiver) ArchiveIdle(_ context.Context, idleFor time.Duration, batch int) (int, error) {
	f.idleFor, f.batch = idleFor, batch
	return 2, nil
}

func maintenanceConfig() config.MaintenanceConfig {
	return config.MaintenanceConfig{
		FAQSyncSchedule:     "@daily",
		SessionArchiveSpec:  "@hourly",
		SessionArchiveBatch: 50,
	}
}

func TestArchiveJobNeedsIdleWindow(t *testing.T) {
	w, err := NewMaintenanceWorker(maintenanceConfig(), config.ChatConfig{}, &fakeSyncer{}, &fakeArchiver{})
	require.NoError(t, err)
	assert.Equal(t, []string{jobFAQSync}, w.Jobs())

	w, err = NewMaintenanceWorker(maintenanceConfig(), config.ChatConfig{IdleArchiveAfter: 72 * time.Hour}, &fakeSyncer{}, &fakeArchiver{})
	require.NoError(t, err)
	assert.Equal(t, []string{jobFAQSync, jobSessionArchive}, w.Jobs())
}

func TestInvalidScheduleIsRejected(t *testing.T) {
	cfg := maintenanceConfig()
	cfg.FAQSyncSchedule = "every tuesday"
	_, err := NewMaintenanceWorker(cfg, config.ChatConfig{}, &fakeSyncer{}, nil)
	assert.Error(t, err)
}

func TestRunsRecordOutcomes(t *testing.T) {
	metrics := observability.NewMetrics()
	syncer := &fakeSyncer{}
	archiver := &fakeArchiver{}
	w, err := NewMaintenanceWorker(maintenanceConfig(), config.ChatConfig{IdleArchiveAfter: time.Hour}, syncer, archiver, WithMetrics(metrics))
	require.NoError(t, err)

	require.NoError(t, w.RunFAQSync(context.Background()))
	syncer.err = errors.New("db down")
	assert.Error(t, w.RunFAQSync(context.Background()))
	assert.Equal(t, 2, syncer.calls)

	require.NoError(t, w.RunSessionArchive(context.Background()))
	assert.Equal(t, time.Hour, archiver.idleFor)
	assert.Equal(t, 50, archiver.batch)

	expected := `
# HELP helpdesk_maintenance_runs_total Maintenance job executions, labeled by job and result
# TYPE helpdesk_maintenance_runs_total counter
helpdesk_maintenance_runs_total{job="faq_sync",result="failure"} 1
helpdesk_maintenance_runs_total{job="faq_sync",result="success"} 1
helpdesk_maintenance_runs_total{job="session_archive",result="success"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(metrics.Gatherer(), strings.NewReader(expected), "helpdesk_maintenance_runs_total"))
}

func TestStartStop(t *testing.T) {
	w, err := NewMaintenanceWorker(maintenanceConfig(), config.ChatConfig{}, &fakeSyncer{}, nil)
	require.NoError(t, err)
	w.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Stop(ctx)
}
