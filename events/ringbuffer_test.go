package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingBufferPublishConsumeOrder(t *testing.T) {
	rb := NewRingBuffer[int](8)
	consumer := rb.NewConsumer()

	for i := 0; i < 5; i++ {
		rb.Publish(i)
	}
	for i := 0; i < 5; i++ {
		require.Equal(t, i, consumer.Consume())
	}
}

func TestRingBufferWrapsAroundCapacity(t *testing.T) {
	rb := NewRingBuffer[int](4)
	consumer := rb.NewConsumer()

	for round := 0; round < 3; round++ {
		for i := 0; i < 4; i++ {
			rb.Publish(round*4 + i)
		}
		for i := 0; i < 4; i++ {
			require.Equal(t, round*4+i, consumer.Consume())
		}
	}
}

func BenchmarkRingBufferPublishConsume(b *testing.B) {
	rb := NewRingBuffer[int](1024)
	consumer := rb.NewConsumer()
	done := make(chan struct{})

	go func() {
		for i := 0; i < b.N; i++ {
			consumer.Consume()
		}
		close(done)
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rb.Publish(i)
	}
	<-done
}
