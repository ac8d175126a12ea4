package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hanssonlabs/puckline/internal/model"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	var got []string

	var wg sync.WaitGroup
	wg.Add(2)
	b.Subscribe("a", func(m Message) { mu.Lock(); got = append(got, "a:"+m.GameUUID); mu.Unlock(); wg.Done() })
	b.Subscribe("b", func(m Message) { mu.Lock(); got = append(got, "b:"+m.GameUUID); mu.Unlock(); wg.Done() })

	b.Publish(SseClosed("g1"))

	waitOrTimeout(t, &wg)
	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a:g1", "b:g1"}, got)
}

func TestPublishPreservesPerSubscriberOrder(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	wg.Add(5)
	b.Subscribe("seq", func(m Message) {
		mu.Lock()
		order = append(order, m.Event.Revision)
		mu.Unlock()
		wg.Done()
	})

	for i := 0; i < 5; i++ {
		b.Publish(AddEvent("g1", model.Event{Revision: i}))
	}

	waitOrTimeout(t, &wg)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

// TestPublishLagDropsNonWriterSubscribers fills a non-writer subscriber's
// buffer while it's blocked, publishes past capacity, then releases it and
// confirms it only ever receives the first bufferSize+1 messages (one held by
// the blocked handler, bufferSize queued behind it): the excess
// was dropped rather than queued or blocking the publisher.
func TestPublishLagDropsNonWriterSubscribers(t *testing.T) {
	b := New()
	defer b.Close()

	block := make(chan struct{})
	received := make(chan Message, bufferSize+10)
	b.Subscribe("slow", func(m Message) {
		<-block
		received <- m
	})

	publishDone := make(chan struct{})
	go func() {
		for i := 0; i < bufferSize+10; i++ {
			b.Publish(SseClosed("g1"))
		}
		close(publishDone)
	}()

	select {
	case <-publishDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a lag-drop subscriber")
	}

	close(block)

	time.Sleep(50 * time.Millisecond)
	assert.Less(t, len(received), bufferSize+10, "some of the excess publishes must have been dropped")
	assert.Greater(t, len(received), 0)
}

func TestPublishBlocksForWriterSubscriber(t *testing.T) {
	b := New()
	defer b.Close()

	release := make(chan struct{})
	b.Subscribe("writer", func(m Message) { <-release })

	// The drain goroutine pulls the first message into the blocked handler
	// and the buffer holds the next bufferSize, so publish bufferSize+2 is
	// the first one that has to wait.
	done := make(chan struct{})
	go func() {
		for i := 0; i < bufferSize+2; i++ {
			b.Publish(SseClosed("g1"))
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Publish should have blocked once the writer's buffer filled")
	case <-time.After(100 * time.Millisecond):
	}
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish never unblocked after the writer drained")
	}
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscribers")
	}
}
