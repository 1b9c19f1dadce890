package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskscheduler/pkg/logger"
	"github.com/dmitrymomot/taskscheduler/pkg/scheduler"
)

func handlerInfo(t *testing.T, s *scheduler.Scheduler, id string) scheduler.HandlerInfo {
	t.Helper()
	info, ok := s.Handler(id)
	require.True(t, ok, "handler %s not registered", id)
	return info
}

func TestEngine_SleepsAfterThreshold(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	b.push("empty")

	var slept []scheduler.HandlerInfo
	var mu sync.Mutex
	s := newScheduler(t, b,
		scheduler.WithSuicideThreshold(3),
		scheduler.WithSleepHook(func(info scheduler.HandlerInfo) {
			mu.Lock()
			slept = append(slept, info)
			mu.Unlock()
		}),
	)

	id, err := s.AddTopicHandler("empty", noop, time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return handlerInfo(t, s, id).Asleep
	}, time.Second, time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 3, b.getCount())

	info := handlerInfo(t, s, id)
	assert.Equal(t, 3, info.PollFailures)
	assert.Equal(t, scheduler.StateAsleep, info.State)
	require.NotNil(t, info.LastPollAt)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, slept, 1)
	assert.Equal(t, id, slept[0].ID)
	assert.Equal(t, 3, slept[0].PollFailures)
}

func TestEngine_ZeroThresholdNeverSleeps(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	b.push("empty")
	s := newScheduler(t, b)

	id, err := s.AddTopicHandler("empty", noop, time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return b.getCount() >= 10 }, time.Second, time.Millisecond)
	info := handlerInfo(t, s, id)
	assert.False(t, info.Asleep)
	assert.GreaterOrEqual(t, info.PollFailures, 9)
}

func TestEngine_NoMessageErrorCountsAsEmpty(t *testing.T) {
	t.Parallel()

	b := &noMessageBackend{fakeBackend: newFakeBackend()}
	s := newScheduler(t, b, scheduler.WithSuicideThreshold(2))

	id, err := s.AddTopicHandler("jobs", noop, time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return handlerInfo(t, s, id).Asleep
	}, time.Second, time.Millisecond)
	assert.Equal(t, 2, b.getCount())
}

type noMessageBackend struct {
	*fakeBackend
}

func (b *noMessageBackend) Get(ctx context.Context, topic string) (scheduler.Message, error) {
	_, _ = b.fakeBackend.Get(ctx, topic)
	return nil, fmt.Errorf("receive from %q: %w", topic, scheduler.ErrNoMessage)
}

func TestEngine_AlwaysSuccess(t *testing.T) {
	t.Parallel()

	const total = 20

	b := newFakeBackend()
	b.push("jobs")
	for i := range total {
		b.push("jobs", fmt.Sprintf("msg-%d", i))
	}

	var (
		mu       sync.Mutex
		failures []int
	)
	s := newScheduler(t, b, scheduler.WithIDGenerator(func() string { return "h1" }))

	_, err := s.AddTopicHandler("jobs", func(ctx context.Context, topic string, body []byte, done scheduler.Done) {
		info, _ := s.Handler("h1")
		mu.Lock()
		failures = append(failures, info.PollFailures)
		mu.Unlock()
		done(nil)
	}, time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return handlerInfo(t, s, "h1").Processed == total
	}, 2*time.Second, time.Millisecond)

	deleted := b.deletedIDs()
	assert.Len(t, deleted, total)
	assert.ElementsMatch(t, deleted, uniq(deleted))
	assert.Empty(t, b.releasedIDs())
	assert.Zero(t, handlerInfo(t, s, "h1").Failed)

	mu.Lock()
	defer mu.Unlock()
	for _, n := range failures {
		assert.Zero(t, n)
	}
}

func uniq(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func TestEngine_AlwaysFailureNeverSleeps(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	b.push("jobs", "poison")
	s := newScheduler(t, b, scheduler.WithSuicideThreshold(2))

	id, err := s.AddTopicHandler("jobs", scheduler.Sync(func(ctx context.Context, topic string, body []byte) error {
		return errors.New("transient")
	}), time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return handlerInfo(t, s, id).Failed >= 5
	}, time.Second, time.Millisecond)

	info := handlerInfo(t, s, id)
	assert.False(t, info.Asleep)
	assert.GreaterOrEqual(t, info.PollFailures, 5)
	assert.Zero(t, info.Processed)
	assert.Empty(t, b.deletedIDs())
	for _, released := range b.releasedIDs() {
		assert.Equal(t, "m-1", released)
	}
}

func TestEngine_GetErrorKeepsPolling(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	b.push("jobs")
	b.setGetErr(errors.New("connection reset"))
	s := newScheduler(t, b, scheduler.WithSuicideThreshold(2))

	id, err := s.AddTopicHandler("jobs", noop, time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return b.getCount() >= 5 }, time.Second, time.Millisecond)
	info := handlerInfo(t, s, id)
	assert.False(t, info.Asleep)
	assert.Zero(t, info.PollFailures, "backend errors do not count toward sleep")

	// Once the outage ends the handler still needs the full threshold of empty polls.
	gets := b.getCount()
	b.setGetErr(nil)
	require.Eventually(t, func() bool {
		info, ok := s.Handler(id)
		return ok && info.Asleep
	}, time.Second, time.Millisecond)
	assert.Equal(t, 2, handlerInfo(t, s, id).PollFailures)
	assert.GreaterOrEqual(t, b.getCount()-gets, 2)
}

func TestEngine_Serialization(t *testing.T) {
	t.Parallel()

	const total = 10

	b := newFakeBackend()
	b.push("jobs")
	for i := range total {
		b.push("jobs", fmt.Sprintf("msg-%d", i))
	}
	s := newScheduler(t, b)

	var inFlight, maxInFlight atomic.Int32
	id, err := s.AddTopicHandler("jobs", func(ctx context.Context, topic string, body []byte, done scheduler.Done) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		go func() {
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			done(nil)
		}()
	}, 0)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return handlerInfo(t, s, id).Processed == total
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestEngine_PanicIsFailure(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	b.push("jobs", "boom")
	s := newScheduler(t, b)

	var calls atomic.Int32
	id, err := s.AddTopicHandler("jobs", func(ctx context.Context, topic string, body []byte, done scheduler.Done) {
		if calls.Add(1) == 1 {
			panic("unexpected payload")
		}
		done(nil)
	}, time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return handlerInfo(t, s, id).Processed == 1
	}, time.Second, time.Millisecond)

	info := handlerInfo(t, s, id)
	assert.Equal(t, uint64(1), info.Failed)
	assert.Equal(t, []string{"m-1"}, b.releasedIDs())
	assert.Equal(t, []string{"m-1"}, b.deletedIDs())
}

func TestEngine_OnlyFirstDoneCounts(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	b.push("jobs", "a")
	s := newScheduler(t, b)

	id, err := s.AddTopicHandler("jobs", func(ctx context.Context, topic string, body []byte, done scheduler.Done) {
		done(nil)
		done(errors.New("second signal"))
	}, time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return handlerInfo(t, s, id).Processed == 1
	}, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	assert.Zero(t, handlerInfo(t, s, id).Failed)
	assert.Equal(t, []string{"m-1"}, b.deletedIDs())
	assert.Empty(t, b.releasedIDs())
}

func TestEngine_LifecycleErrorsAreAbsorbed(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	b.push("jobs", "a", "b")
	b.delErr = errors.New("delete failed")
	s := newScheduler(t, b)

	id, err := s.AddTopicHandler("jobs", noop, time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return handlerInfo(t, s, id).Processed == 2
	}, time.Second, time.Millisecond)
	assert.Len(t, b.deletedIDs(), 2)
}

func TestEngine_ImmediateRepoll(t *testing.T) {
	t.Parallel()

	t.Run("drains backlog without waiting", func(t *testing.T) {
		t.Parallel()

		b := newFakeBackend()
		b.push("jobs", "a", "b", "c")
		s := newScheduler(t, b)

		id, err := s.AddTopicHandler("jobs", noop, time.Hour, scheduler.WithImmediateRepoll())
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return handlerInfo(t, s, id).Processed == 3
		}, time.Second, time.Millisecond)
	})

	t.Run("waits the interval by default", func(t *testing.T) {
		t.Parallel()

		b := newFakeBackend()
		b.push("jobs", "a", "b", "c")
		s := newScheduler(t, b)

		id, err := s.AddTopicHandler("jobs", noop, time.Hour)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return handlerInfo(t, s, id).Processed == 1
		}, time.Second, time.Millisecond)
		time.Sleep(30 * time.Millisecond)

		assert.Equal(t, uint64(1), handlerInfo(t, s, id).Processed)
		assert.Equal(t, 2, b.pending("jobs"))
	})
}

func TestEngine_JobContextCarriesLogAttrs(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	b.push("jobs", "a")
	s := newScheduler(t, b, scheduler.WithIDGenerator(func() string { return "h-attrs" }))

	attrs := make(chan map[string]string, 1)
	_, err := s.AddTopicHandler("jobs", func(ctx context.Context, topic string, body []byte, done scheduler.Done) {
		got := make(map[string]string)
		for _, a := range logger.ContextAttrs(ctx) {
			got[a.Key] = a.Value.String()
		}
		select {
		case attrs <- got:
		default:
		}
		done(nil)
	}, time.Hour)
	require.NoError(t, err)

	select {
	case got := <-attrs:
		assert.Equal(t, "h-attrs", got["handler_id"])
		assert.Equal(t, "jobs", got["topic"])
		assert.Equal(t, "m-1", got["message_id"])
	case <-time.After(time.Second):
		t.Fatal("job was not dispatched")
	}
}

func TestResubmit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("deletes and puts an equivalent body", func(t *testing.T) {
		t.Parallel()

		b := newFakeBackend()
		b.push("jobs", "payload")

		msg, err := b.Get(ctx, "jobs")
		require.NoError(t, err)
		require.NoError(t, scheduler.Resubmit(ctx, b, "jobs", msg))

		assert.Equal(t, []string{"m-1"}, b.deletedIDs())
		next, err := b.Get(ctx, "jobs")
		require.NoError(t, err)
		assert.Equal(t, "m-2", next.ID())
		assert.Equal(t, []byte("payload"), next.Body())
	})

	t.Run("delete failure stops resubmission", func(t *testing.T) {
		t.Parallel()

		b := newFakeBackend()
		b.push("jobs", "payload")
		b.delErr = errors.New("gone")

		msg, err := b.Get(ctx, "jobs")
		require.NoError(t, err)

		err = scheduler.Resubmit(ctx, b, "jobs", msg)
		require.Error(t, err)
		assert.ErrorIs(t, err, b.delErr)
		assert.Zero(t, b.pending("jobs"))
	})
}
