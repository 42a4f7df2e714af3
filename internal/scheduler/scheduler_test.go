package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-enricher/internal/common/errors"
	"event-enricher/internal/common/logging"
	"event-enricher/internal/pipeline"
	"event-enricher/internal/testutil"
)

type countingRefresher struct {
	runs    atomic.Int32
	release chan struct{}
}

func (r *countingRefresher) FetchAllEvents(ctx context.Context) (pipeline.CycleReport, bool) {
	r.runs.Add(1)
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
		}
	}
	return pipeline.CycleReport{ID: "cycle"}, true
}

type countingPurger struct {
	deleted int64
	err     error
	runs    atomic.Int32
}

func (p *countingPurger) PurgeEnded(ctx context.Context) (int64, error) {
	p.runs.Add(1)
	return p.deleted, p.err
}

func newTestScheduler(t *testing.T, cfg Config, r Refresher, p Purger) *Scheduler {
	t.Helper()
	s, err := New(cfg, r, p)
	require.NoError(t, err)
	s.SetLogger(logging.NopLogger{})
	return s
}

func TestNew_Schedules(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		jobs    []string
		wantErr bool
	}{
		{
			name: "both jobs",
			cfg:  Config{RefreshSchedule: "@every 6h", CleanupSchedule: "0 3 * * *"},
			jobs: []string{RefreshJob, CleanupJob},
		},
		{
			name: "cleanup disabled",
			cfg:  Config{RefreshSchedule: "@hourly"},
			jobs: []string{RefreshJob},
		},
		{
			name:    "invalid refresh schedule",
			cfg:     Config{RefreshSchedule: "every day"},
			wantErr: true,
		},
		{
			name:    "seconds field is not accepted",
			cfg:     Config{CleanupSchedule: "0 0 3 * * *"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg, &countingRefresher{}, &countingPurger{})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
				return
			}
			require.NoError(t, err)

			runs := s.NextRuns()
			assert.Len(t, runs, len(tt.jobs))
			for _, job := range tt.jobs {
				assert.Contains(t, runs, job)
			}
		})
	}
}

func TestNew_MissingCollaboratorDisablesJob(t *testing.T) {
	s, err := New(Config{RefreshSchedule: "@hourly", CleanupSchedule: "@daily"}, nil, &countingPurger{})
	require.NoError(t, err)
	assert.Equal(t, []string{CleanupJob}, keys(s.NextRuns()))
}

func TestStart_RefreshOnStart(t *testing.T) {
	refresher := &countingRefresher{}
	s := newTestScheduler(t, Config{RefreshSchedule: "@every 6h", RefreshOnStart: true}, refresher, nil)

	s.Start()
	require.Eventually(t, func() bool { return refresher.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	next := s.NextRuns()[RefreshJob]
	assert.False(t, next.IsZero())
}

func TestStop_CancelsRunningRefresh(t *testing.T) {
	refresher := &countingRefresher{release: make(chan struct{})}
	s := newTestScheduler(t, Config{RefreshOnStart: true}, refresher, nil)

	s.Start()
	require.Eventually(t, func() bool { return refresher.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	// the refresh only returns once its context is cancelled
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestStop_Timeout(t *testing.T) {
	refresher := &countingRefresher{release: make(chan struct{})}
	blocking := refresherFunc(func(ctx context.Context) (pipeline.CycleReport, bool) {
		<-refresher.release
		return pipeline.CycleReport{}, true
	})
	s := newTestScheduler(t, Config{RefreshOnStart: true}, blocking, nil)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Stop(ctx)
	assert.True(t, errors.IsType(err, errors.ErrTypeTimeout))

	close(refresher.release)
}

func TestCleanup(t *testing.T) {
	purger := &countingPurger{deleted: 4}
	s := newTestScheduler(t, Config{CleanupSchedule: "@daily"}, nil, purger)

	var purged int64
	s.SetPurgeHook(func(n int64) { purged += n })

	s.cleanup(context.Background())
	s.cleanup(context.Background())
	assert.Equal(t, int64(8), purged)

	purger.err = testutil.ErrTestFailure
	s.cleanup(context.Background())
	assert.Equal(t, int64(8), purged, "failed runs report nothing")
	assert.Equal(t, int32(3), purger.runs.Load())
}

func TestFieldsOf(t *testing.T) {
	fields := fieldsOf([]interface{}{"entry", 3, "next", "soon", "dangling"})
	require.Len(t, fields, 2)
	assert.Equal(t, "entry", fields[0].Key)
	assert.Equal(t, "next", fields[1].Key)
}

type refresherFunc func(ctx context.Context) (pipeline.CycleReport, bool)

func (f refresherFunc) FetchAllEvents(ctx context.Context) (pipeline.CycleReport, bool) {
	return f(ctx)
}

func keys(m map[string]time.Time) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
