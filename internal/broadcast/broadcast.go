// Package broadcast fans values from a single writer out to any number of
// observers.
//
// Every observer owns a mailbox and a goroutine that calls its callback.
// Publishing never blocks the writer. A value not yet delivered is replaced by
// a newer one when the merge rule allows it (always, for New), so a slow
// observer skips straight to the newest value; values are never reordered.
// Values must be immutable (or copies) once published.
package broadcast

import (
	"sync"
	"sync/atomic"
)

type Broadcaster[T any] struct {
	mu    sync.Mutex
	subs  map[uint64]*mailbox[T]
	next  uint64
	merge func(pending, next T) bool
}

// New returns a latest-wins broadcaster: observers may skip any value.
func New[T any]() *Broadcaster[T] {
	return NewMerging(func(T, T) bool { return true })
}

// NewMerging returns a broadcaster that replaces an undelivered value with a
// newer one only when merge(pending, next) reports true. Values that may not
// be merged queue up and are delivered in order.
func NewMerging[T any](merge func(pending, next T) bool) *Broadcaster[T] {
	return &Broadcaster[T]{
		subs:  make(map[uint64]*mailbox[T]),
		merge: merge,
	}
}

type mailbox[T any] struct {
	mu      sync.Mutex
	pending []T
	merge   func(pending, next T) bool
	signal  chan struct{}
	done    chan struct{}
	stopped atomic.Bool
	fn      func(T)
}

// Subscribe registers fn and returns its unsubscribe function. fn runs on the
// observer's own goroutine, one call at a time. Unsubscribing is idempotent
// and safe from inside fn; a call already running is allowed to finish.
func (b *Broadcaster[T]) Subscribe(fn func(T)) func() {
	mb := &mailbox[T]{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		merge:  b.merge,
		fn:     fn,
	}

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = mb
	b.mu.Unlock()

	go mb.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			mb.stopped.Store(true)
			close(mb.done)
		})
	}
}

// Publish hands v to every current observer. Callers serialize Publish calls
// (the single writer holds its own lock) so all observers see one order.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	subs := make([]*mailbox[T], 0, len(b.subs))
	for _, mb := range b.subs {
		subs = append(subs, mb)
	}
	b.mu.Unlock()

	for _, mb := range subs {
		mb.put(v)
	}
}

// Len returns the number of observers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (mb *mailbox[T]) put(v T) {
	mb.mu.Lock()
	if n := len(mb.pending); n > 0 && mb.merge(mb.pending[n-1], v) {
		mb.pending[n-1] = v
	} else {
		mb.pending = append(mb.pending, v)
	}
	mb.mu.Unlock()

	select {
	case mb.signal <- struct{}{}:
	default:
	}
}

func (mb *mailbox[T]) take() (T, bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	var zero T
	if len(mb.pending) == 0 {
		return zero, false
	}
	v := mb.pending[0]
	mb.pending[0] = zero
	mb.pending = mb.pending[1:]
	if len(mb.pending) == 0 {
		mb.pending = nil
	}
	return v, true
}

func (mb *mailbox[T]) run() {
	for {
		select {
		case <-mb.done:
			return
		case <-mb.signal:
		}
		for {
			v, ok := mb.take()
			if !ok || mb.stopped.Load() {
				break
			}
			mb.fn(v)
		}
	}
}
