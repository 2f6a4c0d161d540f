package manager

import (
	"strings"
	"testing"
)

func TestMemoryPublisher_KeepsLast(t *testing.T) {
	p := NewMemoryPublisher(2)
	for _, n := range []string{"a", "b", "c"} {
		p.Publish(Event{Name: n})
	}
	if got := strings.Join(p.Names(), ","); got != "b,c" {
		t.Fatalf("expected b,c got %s", got)
	}
	ev := p.Events()
	ev[0].Name = "mutated"
	if p.Names()[0] != "b" {
		t.Fatalf("Events must return a copy")
	}
}
