package queue

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unclebandit/outreach-engine/internal/model"
)

func TestInMemoryQueueDelivers(t *testing.T) {
	q := NewInMemoryQueue(zap.NewNop())

	got := make(chan any, 1)
	require.NoError(t, q.Subscribe(TopicAdvanced, func(p any) error {
		got <- p
		return nil
	}))

	ev := SequenceEvent{Kind: "advanced", ProspectID: "p1", StepIndex: 1}
	require.NoError(t, q.Publish(TopicAdvanced, ev))

	select {
	case p := <-got:
		assert.Equal(t, ev, p)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	q.Wait()
}

func TestInMemoryQueueRetriesThenGivesUp(t *testing.T) {
	q := NewInMemoryQueue(zap.NewNop())
	q.backoff = time.Millisecond

	var calls int32
	require.NoError(t, q.Subscribe(TopicFallback, func(any) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	}))
	require.NoError(t, q.Publish(TopicFallback, "x"))
	q.Wait()

	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestInMemoryQueueWithoutSubscribers(t *testing.T) {
	q := NewInMemoryQueue(zap.NewNop())
	assert.NoError(t, q.Publish("nobody.listens", 1))
	assert.Error(t, q.Subscribe("x", nil))
}

func TestTopicFor(t *testing.T) {
	assert.Equal(t, TopicAdvanced, TopicFor(model.TransitionAdvance))
	assert.Equal(t, TopicCompleted, TopicFor(model.TransitionComplete))
	assert.Equal(t, TopicSkipped, TopicFor(model.TransitionSkip))
	assert.Equal(t, TopicReplied, TopicFor(model.TransitionReply))
	assert.Equal(t, TopicEnrolled, TopicFor(model.TransitionEnroll))
}
