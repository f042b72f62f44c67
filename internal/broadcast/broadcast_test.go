package broadcast

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEveryObserverSeesPublishedValue(t *testing.T) {
	b := New[int]()

	got := make([]chan int, 3)
	for i := range got {
		ch := make(chan int, 1)
		got[i] = ch
		unsubscribe := b.Subscribe(func(v int) { ch <- v })
		defer unsubscribe()
	}
	assert.Equal(t, 3, b.Len())

	b.Publish(42)

	for _, ch := range got {
		select {
		case v := <-ch:
			assert.Equal(t, 42, v)
		case <-time.After(time.Second):
			t.Fatal("observer was not notified")
		}
	}
}

func TestObserversSeeIncreasingValuesEndingWithLatest(t *testing.T) {
	b := New[int]()

	var (
		mu   sync.Mutex
		seen []int
	)
	release := make(chan struct{})
	last := make(chan struct{})
	unsubscribe := b.Subscribe(func(v int) {
		<-release
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
		if v == 100 {
			close(last)
		}
	})
	defer unsubscribe()

	for i := 1; i <= 100; i++ {
		b.Publish(i)
	}
	close(release)

	select {
	case <-last:
	case <-time.After(time.Second):
		t.Fatal("latest value was never delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1], seen[i], "values must arrive in publication order")
	}
	assert.Equal(t, 100, seen[len(seen)-1])
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New[string]()

	calls := make(chan string, 4)
	unsubscribe := b.Subscribe(func(v string) { calls <- v })
	unsubscribe()
	unsubscribe()

	b.Publish("late")
	assert.Equal(t, 0, b.Len())

	select {
	case v := <-calls:
		t.Fatalf("unexpected delivery %q", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeFromInsideCallback(t *testing.T) {
	b := New[int]()

	done := make(chan struct{})
	var unsubscribe func()
	unsubscribe = b.Subscribe(func(int) {
		unsubscribe()
		close(done)
	})

	b.Publish(1)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback did not run")
	}
	assert.Equal(t, 0, b.Len())
}

func TestMergingKeepsValuesThatMayNotMerge(t *testing.T) {
	type update struct {
		kind string
		seq  int
	}
	b := NewMerging(func(pending, next update) bool { return pending.kind == next.kind })

	var (
		mu   sync.Mutex
		seen []update
	)
	release := make(chan struct{})
	last := make(chan struct{})
	unsubscribe := b.Subscribe(func(u update) {
		<-release
		mu.Lock()
		seen = append(seen, u)
		mu.Unlock()
		if u.kind == "done" {
			close(last)
		}
	})
	defer unsubscribe()

	b.Publish(update{"submitted", 1})
	for i := 2; i <= 20; i++ {
		b.Publish(update{"streaming", i})
	}
	b.Publish(update{"done", 21})
	close(release)

	select {
	case <-last:
	case <-time.After(time.Second):
		t.Fatal("final value was never delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	var kinds []string
	for i, u := range seen {
		if i == 0 || seen[i-1].kind != u.kind {
			kinds = append(kinds, u.kind)
		}
	}
	assert.Equal(t, []string{"submitted", "streaming", "done"}, kinds)
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1].seq, seen[i].seq)
	}

	var lastStreaming update
	for _, u := range seen {
		if u.kind == "streaming" {
			lastStreaming = u
		}
	}
	assert.Equal(t, 20, lastStreaming.seq, "streaming values collapse onto the newest")
}
