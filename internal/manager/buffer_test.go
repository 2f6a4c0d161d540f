package manager

import (
	"context"
	"testing"
	"time"
)

func TestBuffer_UpdatesAndFinish(t *testing.T) {
	b := NewBuffer()
	b.SetRegenCache("keep ")
	gen := b.begin()
	if !b.Generating() || b.Text() != "" {
		t.Fatalf("begin must clear the buffer")
	}
	b.update(gen, func(cur string) string { return cur + "a" })
	b.update(gen, func(cur string) string { return cur + "b" })
	if b.Text() != "ab" {
		t.Fatalf("got %q", b.Text())
	}
	b.seal(gen)
	if b.update(gen, func(cur string) string { return cur + "late" }) {
		t.Fatalf("update after seal must be rejected")
	}
	b.finish(gen, "keep ab")
	if b.Generating() || b.Text() != "keep ab" || b.RegenCache() != "" {
		t.Fatalf("unexpected final state: %q %q", b.Text(), b.RegenCache())
	}
}

func TestBuffer_SupersededGenerationIgnored(t *testing.T) {
	b := NewBuffer()
	old := b.begin()
	b.finish(old, "x")
	cur := b.begin()
	if b.update(old, func(string) string { return "stale" }) {
		t.Fatalf("stale generation accepted")
	}
	b.finish(old, "stale")
	if b.Text() != "" || !b.Generating() {
		t.Fatalf("stale finish changed the buffer")
	}
	b.finish(cur, "ok")
}

func TestSubscription_OrderAndCoalescing(t *testing.T) {
	b := NewBuffer()
	sub := b.Subscribe()
	defer sub.Close()

	gen := b.begin()
	for _, s := range []string{"a", "b", "c"} {
		s := s
		b.update(gen, func(cur string) string { return cur + s })
	}
	b.finish(gen, "abc!")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := sub.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// begin and the three updates coalesce into the latest text
	if ev.Done || ev.Text != "abc" || ev.Generation != gen {
		t.Fatalf("unexpected first event: %+v", ev)
	}
	ev, err = sub.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ev.Done || ev.Text != "abc!" {
		t.Fatalf("unexpected done event: %+v", ev)
	}
}

func TestSubscription_DoneNeverDropped(t *testing.T) {
	b := NewBuffer()
	sub := b.Subscribe()
	defer sub.Close()

	g1 := b.begin()
	b.finish(g1, "one")
	g2 := b.begin()
	b.update(g2, func(string) string { return "two" })
	b.finish(g2, "two!")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var done []string
	for len(done) < 2 {
		ev, err := sub.Next(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if ev.Done {
			done = append(done, ev.Text)
		}
	}
	if done[0] != "one" || done[1] != "two!" {
		t.Fatalf("unexpected done events: %v", done)
	}
}

func TestSubscription_CloseUnblocks(t *testing.T) {
	b := NewBuffer()
	sub := b.Subscribe()
	errc := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		errc <- err
	}()
	sub.Close()
	select {
	case err := <-errc:
		if err == nil {
			t.Fatalf("expected error after close")
		}
	case <-time.After(time.Second):
		t.Fatalf("Next did not return after Close")
	}
}

func TestBuffer_SkipKeepsTextAndEndsWithDone(t *testing.T) {
	b := NewBuffer()
	g := b.begin()
	b.finish(g, "previous")
	sub := b.Subscribe()
	defer sub.Close()

	skipped := b.skip()
	if skipped == g || b.Generating() || b.Text() != "previous" {
		t.Fatalf("unexpected state after skip: gen=%q text=%q", skipped, b.Text())
	}
	if b.update(skipped, func(string) string { return "late" }) {
		t.Fatalf("skipped generation accepted an update")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := sub.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ev.Done || ev.Generation != skipped || ev.Text != "previous" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
