package manager

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// BufferEvent is one observable change of the live buffer. Every
// generation ends with exactly one event whose Done is true.
type BufferEvent struct {
	Generation string `json:"generation"`
	Text       string `json:"text"`
	Done       bool   `json:"done"`
}

// Buffer is the live output of the active generation plus the regeneration
// cache. The controller is its only writer.
type Buffer struct {
	mu         sync.Mutex
	gen        string
	text       string
	regen      string
	generating bool
	sealed     bool
	subs       map[*Subscription]struct{}
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{subs: make(map[*Subscription]struct{})}
}

// Text returns the current buffer contents.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// Generating reports whether a generation is writing into the buffer.
func (b *Buffer) Generating() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generating
}

// RegenCache returns the pending regeneration prefix.
func (b *Buffer) RegenCache() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.regen
}

// SetRegenCache sets the text that prefixes the next finalized output.
func (b *Buffer) SetRegenCache(s string) {
	b.mu.Lock()
	b.regen = s
	b.mu.Unlock()
}

// begin starts a generation with an empty buffer and returns its id.
func (b *Buffer) begin() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gen = uuid.NewString()
	b.text = ""
	b.generating = true
	b.sealed = false
	b.publishLocked(BufferEvent{Generation: b.gen})
	return b.gen
}

// update replaces the text of generation gen with f(current). It reports
// false, changing nothing, once gen is sealed or superseded.
func (b *Buffer) update(gen string, f func(cur string) string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen || !b.generating || b.sealed {
		return false
	}
	b.text = f(b.text)
	b.publishLocked(BufferEvent{Generation: gen, Text: b.text})
	return true
}

// seal stops accepting updates for gen. Text written after seal is lost,
// so the finalize step sees a stable buffer.
func (b *Buffer) seal(gen string) {
	b.mu.Lock()
	if gen == b.gen {
		b.sealed = true
	}
	b.mu.Unlock()
}

// finish publishes the final text, clears the regeneration cache and ends
// the generation.
func (b *Buffer) finish(gen, final string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen {
		return
	}
	b.text = final
	b.regen = ""
	b.generating = false
	b.sealed = true
	b.publishLocked(BufferEvent{Generation: gen, Text: final, Done: true})
}

// skip ends a generation that failed before streaming. The text is left
// as it was and subscribers get its Done event.
func (b *Buffer) skip() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gen = uuid.NewString()
	b.generating = false
	b.sealed = true
	b.publishLocked(BufferEvent{Generation: b.gen, Text: b.text, Done: true})
	return b.gen
}

func (b *Buffer) publishLocked(ev BufferEvent) {
	for s := range b.subs {
		s.push(ev)
	}
}

// Subscribe registers an observer. Close the subscription when done.
func (b *Buffer) Subscribe() *Subscription {
	s := &Subscription{buf: b, notify: make(chan struct{}, 1)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Subscription delivers buffer events in order. Consecutive stream events
// of one generation are coalesced when the reader falls behind; terminal
// events are never dropped.
type Subscription struct {
	buf     *Buffer
	mu      sync.Mutex
	pending []BufferEvent
	notify  chan struct{}
	closed  bool
}

func (s *Subscription) push(ev BufferEvent) {
	s.mu.Lock()
	if n := len(s.pending); n > 0 {
		last := s.pending[n-1]
		if !ev.Done && !last.Done && last.Generation == ev.Generation {
			s.pending[n-1] = ev
			s.mu.Unlock()
			s.signal()
			return
		}
	}
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until an event is available or ctx is done.
func (s *Subscription) Next(ctx context.Context) (BufferEvent, error) {
	for {
		s.mu.Lock()
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()
			return ev, nil
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return BufferEvent{}, context.Canceled
		}
		select {
		case <-s.notify:
		case <-ctx.Done():
			return BufferEvent{}, ctx.Err()
		}
	}
}

// Close unregisters the subscription.
func (s *Subscription) Close() {
	s.buf.mu.Lock()
	delete(s.buf.subs, s)
	s.buf.mu.Unlock()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signal()
}
