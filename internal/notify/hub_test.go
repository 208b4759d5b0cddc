package notify_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/randalmurphal/appforge/internal/notify"
	"github.com/randalmurphal/appforge/internal/notify/notifytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func status(step string) notify.Message {
	return notify.Message{Type: notify.TypeStatus, Step: step}
}

func TestHub_FanOutToFlowSubscribers(t *testing.T) {
	hub := notify.NewHub(notify.DefaultHubConfig)
	defer hub.Close()

	a, b, other := notifytest.NewRecorder(), notifytest.NewRecorder(), notifytest.NewRecorder()
	hub.Subscribe("p1", a)
	hub.Subscribe("p1", b)
	hub.Subscribe("p2", other)
	assert.Equal(t, 2, hub.Subscribers("p1"))

	hub.Publish("p1", status("one"))
	hub.Publish("p1", status("two"))

	for _, r := range []*notifytest.Recorder{a, b} {
		require.True(t, r.WaitFor(time.Second, func(m notify.Message) bool { return m.Step == "two" }))
		assert.Equal(t, []string{"status:one", "status:two"}, r.Sequence())
	}
	assert.Empty(t, other.Messages())
}

func TestHub_SubscribeAllSeesEveryFlow(t *testing.T) {
	hub := notify.NewHub(notify.DefaultHubConfig)
	defer hub.Close()

	var seen []string
	done := make(chan struct{}, 2)
	hub.SubscribeAll(notify.ObserverFunc(func(_ context.Context, flowID string, _ notify.Message) error {
		seen = append(seen, flowID)
		done <- struct{}{}
		return nil
	}))

	hub.Publish("p1", status("x"))
	hub.Publish("p2", status("x"))
	<-done
	<-done
	assert.Equal(t, []string{"p1", "p2"}, seen)
}

func TestHub_NoReplayForLateSubscribers(t *testing.T) {
	hub := notify.NewHub(notify.DefaultHubConfig)
	defer hub.Close()

	hub.Publish("p1", status("early"))

	late := notifytest.NewRecorder()
	hub.Subscribe("p1", late)
	hub.Publish("p1", status("late"))

	require.True(t, late.WaitFor(time.Second, func(m notify.Message) bool { return m.Step == "late" }))
	assert.Equal(t, []string{"status:late"}, late.Sequence())
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := notify.NewHub(notify.DefaultHubConfig)
	defer hub.Close()

	r := notifytest.NewRecorder()
	sub := hub.Subscribe("p1", r)
	sub.Unsubscribe()
	sub.Unsubscribe()

	assert.Equal(t, 0, hub.Subscribers("p1"))
	hub.Publish("p1", status("ignored"))
	assert.False(t, r.WaitFor(50*time.Millisecond, func(notify.Message) bool { return true }))
}

func TestHub_DropsWhenQueueFull(t *testing.T) {
	var dropped atomic.Int32
	hub := notify.NewHub(notify.HubConfig{
		BufferSize: 1,
		OnDrop: func(string, notify.Message, string) {
			dropped.Add(1)
		},
	})
	defer hub.Close()

	block := make(chan struct{})
	hub.Subscribe("p1", notify.ObserverFunc(func(ctx context.Context, _ string, _ notify.Message) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}))

	for i := 0; i < 10; i++ {
		hub.Publish("p1", status("burst"))
	}
	close(block)

	assert.Positive(t, dropped.Load())
}

func TestHub_ObserverErrorReported(t *testing.T) {
	errs := make(chan error, 1)
	hub := notify.NewHub(notify.HubConfig{
		OnError: func(_ string, _ notify.Message, _ string, err error) {
			errs <- err
		},
	})
	defer hub.Close()

	hub.Subscribe("p1", notify.ObserverFunc(func(context.Context, string, notify.Message) error {
		return errors.New("socket closed")
	}))
	hub.Publish("p1", status("x"))

	select {
	case err := <-errs:
		assert.EqualError(t, err, "socket closed")
	case <-time.After(time.Second):
		t.Fatal("OnError not called")
	}
}

func TestHub_Close(t *testing.T) {
	hub := notify.NewHub(notify.DefaultHubConfig)
	hub.Subscribe("p1", notifytest.NewRecorder())

	require.NoError(t, hub.Close())
	require.NoError(t, hub.Close())
	assert.Equal(t, 0, hub.Subscribers("p1"))
	assert.Nil(t, hub.Subscribe("p1", notifytest.NewRecorder()))
	assert.NotPanics(t, func() { hub.Publish("p1", status("x")) })
}
