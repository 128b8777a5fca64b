package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestEnqueueDropsEventWhenBufferFull(t *testing.T) {
	closed := false
	sub := newSubscriber("sub-1", nil, time.Second, time.Minute, zap.NewNop(), func(string) { closed = true })

	for i := 0; i < cap(sub.send); i++ {
		sub.enqueue([]byte("event"))
	}
	assert.Len(t, sub.send, cap(sub.send))

	done := make(chan struct{})
	go func() {
		sub.enqueue([]byte("overflow"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full buffer")
	}

	assert.Len(t, sub.send, cap(sub.send))
	assert.False(t, closed)
	select {
	case <-sub.done:
		t.Fatal("subscriber closed after a dropped event")
	default:
	}

	first := <-sub.send
	assert.Equal(t, "event", string(first))
}

func TestEnqueueAfterCloseDoesNotBlock(t *testing.T) {
	sub := newSubscriber("sub-2", nil, time.Second, time.Minute, zap.NewNop(), func(string) {})
	for i := 0; i < cap(sub.send); i++ {
		sub.enqueue([]byte("event"))
	}
	close(sub.done)

	sub.enqueue([]byte("late"))
	assert.Len(t, sub.send, cap(sub.send))
}
