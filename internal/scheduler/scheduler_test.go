package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCronExpr(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 3 * * *", false},
		{"*/15 * * * *", false},
		{"@daily", false},
		{"@every 1h", false},
		{"", true},
		{"61 * * * *", true},
		{"* * * *", true},
		{"0 0 3 * * *", true},
	}

	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			err := ValidateCronExpr(tc.expr)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidCron)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNextRun(t *testing.T) {
	from := time.Date(2026, 3, 10, 2, 30, 0, 0, time.UTC)

	next, err := NextRun("0 3 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC), next)

	next, err = NextRun("0 3 * * *", next)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC), next)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Expr: "bad", Trigger: func(context.Context) error { return nil }})
	require.ErrorIs(t, err, ErrInvalidCron)

	_, err = New(Config{Expr: "@daily"})
	require.ErrorIs(t, err, ErrNoTrigger)
}

func TestTick_Stats(t *testing.T) {
	fail := false
	s, err := New(Config{Expr: "@daily", Trigger: func(context.Context) error {
		if fail {
			return errors.New("stage icon failed")
		}
		return nil
	}})
	require.NoError(t, err)

	require.NoError(t, s.Tick(context.Background()))
	fail = true
	require.Error(t, s.Tick(context.Background()))

	fired, failed := s.Stats()
	assert.Equal(t, 2, fired)
	assert.Equal(t, 1, failed)
}

func TestTick_CancelledContext(t *testing.T) {
	var calls atomic.Int32
	s, err := New(Config{Expr: "@daily", Trigger: func(context.Context) error {
		calls.Add(1)
		return nil
	}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Tick(ctx), context.Canceled)
	assert.Equal(t, int32(0), calls.Load())
}

func TestJob_SkipsWhileRunning(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	s, err := New(Config{Expr: "@daily", Trigger: func(context.Context) error {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return nil
	}})
	require.NoError(t, err)

	job := s.job(context.Background())

	done := make(chan struct{})
	go func() {
		job.Run()
		close(done)
	}()
	<-entered

	// второй тик во время первого запуска пропускается
	job.Run()
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	<-done

	job.Run()
	assert.Equal(t, int32(2), calls.Load())
}

func TestStartStop(t *testing.T) {
	s, err := New(Config{Expr: "@daily", Trigger: func(context.Context) error { return nil }})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	require.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
	s.Stop()
	s.Stop()
}

func TestTriggerNow_Busy(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	s, err := New(Config{Expr: "@daily", Trigger: func(context.Context) error {
		close(entered)
		<-release
		return nil
	}})
	require.NoError(t, err)

	require.NoError(t, s.TriggerNow(context.Background()))
	<-entered
	assert.True(t, s.Running())

	require.ErrorIs(t, s.TriggerNow(context.Background()), ErrBusy)
	require.ErrorIs(t, s.Tick(context.Background()), ErrBusy)

	close(release)
	s.Stop()
	assert.False(t, s.Running())

	fired, _ := s.Stats()
	assert.Equal(t, 1, fired)
}

func TestTriggerNow_AfterStop(t *testing.T) {
	s, err := New(Config{Expr: "@daily", Trigger: func(context.Context) error { return nil }})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	require.ErrorIs(t, s.TriggerNow(context.Background()), ErrStopped)

	// повторный Start снова разрешает внеплановые запуски
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.TriggerNow(context.Background()))
	s.Stop()

	fired, _ := s.Stats()
	assert.Equal(t, 1, fired)
}

func TestTriggerNow_ConcurrentWithStop(t *testing.T) {
	s, err := New(Config{Expr: "@daily", Trigger: func(context.Context) error {
		time.Sleep(time.Millisecond)
		return nil
	}})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.TriggerNow(context.Background())
			if err != nil && !errors.Is(err, ErrBusy) && !errors.Is(err, ErrStopped) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	s.Stop()
	wg.Wait()

	// после Stop запусков в полёте нет
	assert.False(t, s.Running())
}
