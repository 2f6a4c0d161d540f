package prompt

import (
	"context"
	"errors"
	"strings"
	"testing"

	"chatd/pkg/types"
)

type memSource struct {
	chat    types.Chat
	entries []types.ChatEntry
	err     error
}

func (m memSource) Chat(ctx context.Context, id int64) (types.Chat, error) { return m.chat, m.err }
func (m memSource) Entries(ctx context.Context, id int64) ([]types.ChatEntry, error) {
	return m.entries, m.err
}

func plainInstruct() Instruct {
	return Instruct{
		InputPrefix:  "U:",
		InputSuffix:  "\n",
		OutputPrefix: "A:",
		OutputSuffix: "\n",
	}
}

func history() memSource {
	return memSource{
		chat: types.Chat{ID: 1, CharacterName: "Aria", UserName: "Bo"},
		entries: []types.ChatEntry{
			{ID: 1, Text: "first", IsUser: true},
			{ID: 2, Text: "second"},
			{ID: 3, Text: "third", IsUser: true},
			{ID: 4, Text: ""},
		},
	}
}

// counting one token per byte keeps budgets easy to reason about
type byteTokens struct{}

func (byteTokens) Count(s string) int { return len(s) }

func TestBuild_FullHistoryExcludesTarget(t *testing.T) {
	b := NewBuilder(history(), byteTokens{})
	got, err := b.BuildTextCompletionContext(context.Background(), Request{ChatID: 1, TargetEntryID: 4, Instruct: plainInstruct()}, 1000)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := "U:first\nA:second\nU:third\nA:"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestBuild_TrimsOldestFirst(t *testing.T) {
	b := NewBuilder(history(), byteTokens{})
	// "A:" (2) + "U:third\n" (8) + "A:second\n" (9) = 19
	got, err := b.BuildTextCompletionContext(context.Background(), Request{ChatID: 1, TargetEntryID: 4, Instruct: plainInstruct()}, 19)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got != "A:second\nU:third\nA:" {
		t.Fatalf("got %q", got)
	}
}

func TestBuild_NonPositiveBudgetStillValid(t *testing.T) {
	b := NewBuilder(history(), byteTokens{})
	for _, budget := range []int{0, -50} {
		got, err := b.BuildTextCompletionContext(context.Background(), Request{ChatID: 1, TargetEntryID: 4, Instruct: plainInstruct()}, budget)
		if err != nil {
			t.Fatalf("budget %d: %v", budget, err)
		}
		if got != "A:" {
			t.Fatalf("budget %d: got %q", budget, got)
		}
	}
}

func TestBuild_BypassIgnoresBudget(t *testing.T) {
	b := NewBuilder(history(), byteTokens{})
	got, err := b.BuildTextCompletionContext(context.Background(), Request{ChatID: 1, TargetEntryID: 4, Instruct: plainInstruct(), Bypass: true}, 0)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.HasPrefix(got, "U:first") {
		t.Fatalf("got %q", got)
	}
}

func TestBuild_SystemPromptAndNames(t *testing.T) {
	in := DefaultInstruct()
	b := NewBuilder(history(), nil)
	got, err := b.BuildTextCompletionContext(context.Background(), Request{ChatID: 1, TargetEntryID: 4, Instruct: in}, 4096)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(got, "Write Aria's next reply") || !strings.Contains(got, "and Bo.") {
		t.Fatalf("macros not expanded: %q", got)
	}
	if !strings.HasSuffix(got, "<|im_start|>assistant\nAria:") {
		t.Fatalf("unexpected tail: %q", got)
	}
}

func TestBuild_SourceError(t *testing.T) {
	b := NewBuilder(memSource{err: errors.New("boom")}, nil)
	if _, err := b.BuildTextCompletionContext(context.Background(), Request{ChatID: 9}, 10); err == nil {
		t.Fatalf("expected error")
	}
}

func TestByteCounter(t *testing.T) {
	c := ByteCounter{}
	if c.Count("") != 0 || c.Count("abcd") != 1 || c.Count("abcde") != 2 {
		t.Fatalf("unexpected counts")
	}
}
