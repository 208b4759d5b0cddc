package runner_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/appforge/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type announced struct {
	mu   sync.Mutex
	errs []string
	step []string
}

func (a *announced) Error(_, step, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.step = append(a.step, step)
	a.errs = append(a.errs, message)
}

func (a *announced) messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.errs...)
}

func job(id string, fn func(ctx context.Context) error) runner.Job {
	return runner.Job{RunID: id, FlowID: "flow-" + id, Kind: "create", Exec: fn}
}

func TestRunner_SuccessfulRun(t *testing.T) {
	a := &announced{}
	r := runner.New(runner.Config{}, a, nil)

	require.NoError(t, r.Submit(job("1", func(context.Context) error { return nil })))
	r.Wait()

	info, ok := r.Get("1")
	require.True(t, ok)
	assert.Equal(t, runner.StatusSucceeded, info.Status)
	assert.NotNil(t, info.FinishedAt)
	assert.Empty(t, a.messages())
}

func TestRunner_FailureAnnouncedOnce(t *testing.T) {
	a := &announced{}
	r := runner.New(runner.Config{}, a, nil)

	require.NoError(t, r.Submit(job("1", func(context.Context) error { return errors.New("boom") })))
	r.Wait()

	assert.Equal(t, []string{"Error executing flow: boom"}, a.messages())
	assert.Equal(t, []string{runner.FinalStep}, a.step)

	info, _ := r.Get("1")
	assert.Equal(t, runner.StatusFailed, info.Status)
	assert.Equal(t, "boom", info.Error)
}

func TestRunner_PanicIsContained(t *testing.T) {
	a := &announced{}
	r := runner.New(runner.Config{}, a, nil)

	require.NoError(t, r.Submit(job("1", func(context.Context) error { panic("nil map") })))
	r.Wait()

	require.Len(t, a.messages(), 1)
	assert.Contains(t, a.messages()[0], "panic: nil map")
}

func TestRunner_Timeout(t *testing.T) {
	a := &announced{}
	r := runner.New(runner.Config{RunTimeout: 20 * time.Millisecond}, a, nil)

	require.NoError(t, r.Submit(job("1", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})))
	r.Wait()

	require.Len(t, a.messages(), 1)
	assert.Contains(t, a.messages()[0], "run timed out")
	info, _ := r.Get("1")
	assert.Equal(t, runner.StatusFailed, info.Status)
}

func TestRunner_ShutdownCancelsInFlight(t *testing.T) {
	r := runner.New(runner.Config{}, &announced{}, nil)

	started := make(chan struct{})
	require.NoError(t, r.Submit(job("1", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})))
	<-started
	assert.Equal(t, 1, r.Active())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))

	info, _ := r.Get("1")
	assert.Equal(t, runner.StatusCancelled, info.Status)
	assert.Equal(t, 0, r.Active())

	assert.ErrorIs(t, r.Submit(job("2", func(context.Context) error { return nil })), runner.ErrShuttingDown)
}

func TestRunner_ShutdownDeadline(t *testing.T) {
	r := runner.New(runner.Config{}, &announced{}, nil)
	release := make(chan struct{})
	defer close(release)

	require.NoError(t, r.Submit(job("1", func(context.Context) error {
		<-release
		return nil
	})))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Shutdown(ctx), context.DeadlineExceeded)
}

func TestRunner_MaxConcurrent(t *testing.T) {
	r := runner.New(runner.Config{MaxConcurrent: 1}, &announced{}, nil)

	var mu sync.Mutex
	running, peak := 0, 0
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, r.Submit(job(id, func(context.Context) error {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
			return nil
		})))
	}
	r.Wait()
	assert.Equal(t, 1, peak)
}

func TestRunner_HistoryIsBounded(t *testing.T) {
	r := runner.New(runner.Config{MaxHistory: 2}, &announced{}, nil)
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, r.Submit(job(id, func(context.Context) error { return nil })))
		r.Wait()
	}

	_, ok := r.Get("1")
	assert.False(t, ok)
	_, ok = r.Get("3")
	assert.True(t, ok)
}

func TestRunner_RejectsDuplicateActiveRun(t *testing.T) {
	r := runner.New(runner.Config{}, &announced{}, nil)

	release := make(chan struct{})
	require.NoError(t, r.Submit(job("1", func(context.Context) error {
		<-release
		return errors.New("boom")
	})))

	err := r.Submit(job("1", func(context.Context) error { return nil }))
	assert.ErrorIs(t, err, runner.ErrRunActive)

	close(release)
	r.Wait()

	info, _ := r.Get("1")
	require.Equal(t, runner.StatusFailed, info.Status)

	require.NoError(t, r.Submit(job("1", func(context.Context) error { return nil })))
	r.Wait()
	info, _ = r.Get("1")
	assert.Equal(t, runner.StatusSucceeded, info.Status)
}

func TestRunner_ConcurrentSubmitSameRun(t *testing.T) {
	r := runner.New(runner.Config{}, &announced{}, nil)

	release := make(chan struct{})
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.Submit(job("1", func(context.Context) error {
				<-release
				return nil
			}))
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, runner.ErrRunActive)
		}()
	}
	wg.Wait()
	close(release)
	r.Wait()

	assert.Equal(t, 1, accepted)
}
