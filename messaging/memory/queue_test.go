package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testEvent struct {
	Topic string
	ID    int64
}

func TestQueue(t *testing.T) {
	config := DefaultConfig()
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[testEvent](config)

	ctx := context.Background()
	event := testEvent{Topic: "request.created", ID: 1}

	err := queue.Publish(ctx, &event)
	assert.NoError(t, err)
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, event, *message.T())

	err = message.Ack()
	assert.NoError(t, err)

	// Double ack should error
	err = message.Ack()
	assert.Error(t, err)
}

func TestQueueRetries(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 2
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[testEvent](config)

	ctx := context.Background()
	assert.NoError(t, queue.Publish(ctx, &testEvent{Topic: "request.decided", ID: 7}))

	// Nack redelivers until the retry budget is spent
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		message, err := queue.Consume(ctx)
		cancel()
		assert.NoError(t, err)
		assert.Equal(t, int64(7), message.T().ID)
		assert.NoError(t, message.Nack(nil))
	}

	// Retry budget exhausted, the message is dropped
	time.Sleep(3 * config.RetryDelay)
	assert.Equal(t, 0, queue.Size())
}

func TestQueueTryPublish(t *testing.T) {
	queue := NewQueue[testEvent](Config{Buffer: 1})
	ctx := context.Background()

	accepted, err := queue.TryPublish(ctx, &testEvent{Topic: "request.created", ID: 1})
	assert.NoError(t, err)
	assert.True(t, accepted)

	// Full buffer rejects instead of blocking
	accepted, err = queue.TryPublish(ctx, &testEvent{Topic: "request.created", ID: 2})
	assert.NoError(t, err)
	assert.False(t, accepted)
	assert.Equal(t, 1, queue.Size())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = queue.TryPublish(cancelled, &testEvent{ID: 3})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueueConsumeHonoursContext(t *testing.T) {
	queue := NewQueue[testEvent](DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := queue.Consume(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
