package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type trialPayload struct {
	ID           string
	Index        int
	LearningRate float64
}

func TestQueue(t *testing.T) {
	config := DefaultConfig()
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[trialPayload](config)

	ctx := context.Background()
	payload := trialPayload{ID: "trial-1", Index: 0, LearningRate: 0.01}

	err := queue.Publish(ctx, &payload)
	assert.NoError(t, err)
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
	assert.Equal(t, 0, queue.Size())

	got := message.T()
	assert.Equal(t, payload.ID, got.ID)
	assert.Equal(t, payload.Index, got.Index)
	assert.Equal(t, payload.LearningRate, got.LearningRate)

	err = message.Ack()
	assert.NoError(t, err)

	// Double ack should error.
	err = message.Ack()
	assert.Error(t, err)
}

func TestQueueRetries(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 2
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[trialPayload](config)

	ctx := context.Background()
	payload := trialPayload{ID: "retry-trial", Index: 1}

	err := queue.Publish(ctx, &payload)
	assert.NoError(t, err)

	// Nack twice within the retry budget; the message is re-published.
	for attempt := 0; attempt < 2; attempt++ {
		message, err := queue.Consume(ctx)
		assert.NoError(t, err)
		assert.NotNil(t, message)
		err = message.Nack(fmt.Errorf("trial diverged"))
		assert.NoError(t, err)
		time.Sleep(20 * time.Millisecond)
	}

	// Final attempt exceeds MaxRetries and lands on the dead-letter queue.
	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	err = message.Nack(fmt.Errorf("trial diverged"))
	assert.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, 1, queue.DLQSize())
}

func TestQueueConsumeCancelled(t *testing.T) {
	queue := NewQueue[trialPayload](DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := queue.Consume(ctx)
	assert.Equal(t, context.Canceled, err)
}

func TestQueueConcurrency(t *testing.T) {
	config := DefaultConfig()
	queue := NewQueue[trialPayload](config)

	ctx := context.Background()
	producers := 8
	perProducer := 10
	total := producers * perProducer

	var wg sync.WaitGroup
	wg.Add(producers * 2)

	var consumedMu sync.Mutex
	consumed := 0

	for i := 0; i < producers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				message, err := queue.Consume(ctx)
				if err != nil {
					t.Errorf("consume: %v", err)
					return
				}
				assert.NoError(t, message.Ack())
				consumedMu.Lock()
				consumed++
				consumedMu.Unlock()
			}
		}()
	}

	for i := 0; i < producers; i++ {
		go func(producerID int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				payload := trialPayload{
					ID:    fmt.Sprintf("p%d-t%d", producerID, j),
					Index: producerID*perProducer + j,
				}
				if err := queue.Publish(ctx, &payload); err != nil {
					t.Errorf("publish: %v", err)
				}
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for producers and consumers")
	}

	assert.Equal(t, total, consumed)
	assert.Equal(t, 0, queue.Size())
}
