package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskscheduler/pkg/backend/memory"
	"github.com/dmitrymomot/taskscheduler/pkg/logger"
	"github.com/dmitrymomot/taskscheduler/pkg/scheduler"
)

func TestLoadManifest(t *testing.T) {
	t.Parallel()

	t.Run("empty path", func(t *testing.T) {
		t.Parallel()
		m, err := loadManifest("")
		require.NoError(t, err)
		assert.Empty(t, m.Handlers)
	})

	t.Run("file", func(t *testing.T) {
		t.Parallel()
		m, err := loadManifest("testdata/handlers.yaml")
		require.NoError(t, err)
		require.Len(t, m.Handlers, 2)
		assert.Equal(t, ActionForward, m.Handlers[0].Action)
		assert.Equal(t, 10*time.Millisecond, m.Handlers[0].Interval)
		assert.True(t, m.Handlers[0].Immediate)
		assert.Equal(t, []string{"audit", "orders", "shipping"}, m.AllTopics())
	})
}

func TestManifest_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		spec    HandlerSpec
		wantErr string
	}{
		{name: "log", spec: HandlerSpec{Topic: "a", Action: ActionLog}},
		{name: "default action", spec: HandlerSpec{Topic: "a"}},
		{name: "fail", spec: HandlerSpec{Topic: "a", Action: ActionFail}},
		{name: "forward", spec: HandlerSpec{Topic: "a", Action: ActionForward, Target: "b"}},
		{name: "empty topic", spec: HandlerSpec{Topic: " "}, wantErr: scheduler.ErrEmptyTopic.Error()},
		{name: "negative interval", spec: HandlerSpec{Topic: "a", Interval: -time.Second}, wantErr: scheduler.ErrNegativeInterval.Error()},
		{name: "forward without target", spec: HandlerSpec{Topic: "a", Action: ActionForward}, wantErr: "requires a target"},
		{name: "forward to itself", spec: HandlerSpec{Topic: "a", Action: ActionForward, Target: "a"}, wantErr: "to itself"},
		{name: "unknown action", spec: HandlerSpec{Topic: "a", Action: "email"}, wantErr: `unknown action "email"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Manifest{Handlers: []HandlerSpec{tt.spec}}.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidManifest)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("reports every problem", func(t *testing.T) {
		t.Parallel()

		err := Manifest{
			Topics:   []string{""},
			Handlers: []HandlerSpec{{Topic: ""}, {Topic: "a", Action: "nope"}},
		}.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "topics[0]")
		assert.Contains(t, err.Error(), "handlers[0]")
		assert.Contains(t, err.Error(), "handlers[1]")
	})
}

type recordingSender struct {
	topic string
	body  []byte
}

func (r *recordingSender) SendMessage(ctx context.Context, topic string, body []byte) error {
	r.topic = topic
	r.body = body
	return nil
}

func TestJobFor(t *testing.T) {
	t.Parallel()

	run := func(job scheduler.JobFunc, body string) error {
		result := make(chan error, 1)
		job(context.Background(), "in", []byte(body), func(err error) { result <- err })
		return <-result
	}

	t.Run("log", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, run(jobFor(HandlerSpec{Action: ActionLog}, nil, logger.Discard()), "hello"))
	})

	t.Run("fail", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, run(jobFor(HandlerSpec{Action: ActionFail}, nil, logger.Discard()), "x"), ErrRejected)
	})

	t.Run("forward", func(t *testing.T) {
		t.Parallel()
		s := &recordingSender{}
		require.NoError(t, run(jobFor(HandlerSpec{Action: ActionForward, Target: "out"}, s, logger.Discard()), "payload"))
		assert.Equal(t, "out", s.topic)
		assert.Equal(t, []byte("payload"), s.body)
	})
}

func TestRegister(t *testing.T) {
	t.Parallel()

	b := memory.New()
	s, err := scheduler.New(b, scheduler.WithLogger(logger.Discard()))
	require.NoError(t, err)
	t.Cleanup(s.Stop)

	m, err := loadManifest("testdata/handlers.yaml")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, register(ctx, s, m, logger.Discard()))
	assert.ElementsMatch(t, []string{"audit", "orders", "shipping"}, b.Topics())
	assert.Len(t, s.Handlers(), 2)

	require.NoError(t, s.SendMessage(ctx, "orders", []byte("order-1")))

	require.Eventually(t, func() bool {
		for _, info := range s.TopicHandlers("shipping") {
			if info.Processed == 1 {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	assert.Zero(t, b.Len("orders"))
	assert.Zero(t, b.Len("shipping"))
}

func TestPreview(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", preview([]byte("short")))
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	got := preview(long)
	assert.Len(t, got, 259)
	assert.Equal(t, "...", got[256:])
}
