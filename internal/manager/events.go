package manager

import "sync"

// Event is a generation lifecycle notification. Fields carries optional
// details such as the model id or an error string.
type Event struct {
	Name    string
	ChatID  int64
	EntryID int64
	Fields  map[string]any
}

// EventPublisher receives controller events synchronously from the
// generation goroutine, so Publish must be quick and must not panic.
type EventPublisher interface {
	Publish(Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// MemoryPublisher records events for inspection.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
	max    int
}

// NewMemoryPublisher keeps the last max events; 0 keeps all.
func NewMemoryPublisher(max int) *MemoryPublisher { return &MemoryPublisher{max: max} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	if p.max > 0 && len(p.events) > p.max {
		p.events = append(p.events[:0:0], p.events[len(p.events)-p.max:]...)
	}
}

// Events returns a copy of the recorded events, oldest first.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// Names returns the recorded event names, oldest first.
func (p *MemoryPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Name
	}
	return out
}
