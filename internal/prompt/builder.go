package prompt

import (
	"context"
	"fmt"
	"strings"

	"chatd/pkg/types"
)

// Source supplies the chat history the builder reads.
type Source interface {
	Chat(ctx context.Context, chatID int64) (types.Chat, error)
	Entries(ctx context.Context, chatID int64) ([]types.ChatEntry, error)
}

// TokenCounter estimates the token length of a string.
type TokenCounter interface {
	Count(s string) int
}

// ByteCounter estimates tokens as ceil(len/BytesPerToken).
type ByteCounter struct{ BytesPerToken int }

func (c ByteCounter) Count(s string) int {
	per := c.BytesPerToken
	if per <= 0 {
		per = 4
	}
	return (len(s) + per - 1) / per
}

// Request scopes one prompt build.
type Request struct {
	ChatID int64
	// TargetEntryID is the entry being generated; it and any later
	// entries are left out of the history.
	TargetEntryID int64
	Instruct      Instruct
	// Bypass disables trimming to the token budget.
	Bypass bool
}

// Builder assembles text-completion prompts.
type Builder struct {
	src     Source
	counter TokenCounter
}

// NewBuilder returns a Builder reading from src. A nil counter falls back
// to ByteCounter.
func NewBuilder(src Source, counter TokenCounter) *Builder {
	if counter == nil {
		counter = ByteCounter{BytesPerToken: 4}
	}
	return &Builder{src: src, counter: counter}
}

// BuildTextCompletionContext returns the prompt for req that fits in
// maxTokens. The system block and the trailing output prefix are always
// present; history is added newest first while it fits. A non-positive
// budget yields the fixed parts only.
func (b *Builder) BuildTextCompletionContext(ctx context.Context, req Request, maxTokens int) (string, error) {
	chat, err := b.src.Chat(ctx, req.ChatID)
	if err != nil {
		return "", fmt.Errorf("load chat %d: %w", req.ChatID, err)
	}
	entries, err := b.src.Entries(ctx, req.ChatID)
	if err != nil {
		return "", fmt.Errorf("load entries %d: %w", req.ChatID, err)
	}
	names := Names{User: chat.UserName, Char: chat.CharacterName}
	in := req.Instruct

	var head string
	if sys := names.Expand(in.SystemPrompt); sys != "" {
		head = names.Expand(in.SystemPrefix) + sys + names.Expand(in.SystemSuffix)
	}
	tail := names.Expand(in.OutputPrefix)
	if in.IncludeNames && chat.CharacterName != "" {
		tail += chat.CharacterName + ":"
	}

	history := entries
	if req.TargetEntryID != 0 {
		for i, e := range entries {
			if e.ID == req.TargetEntryID {
				history = entries[:i]
				break
			}
		}
	}

	used := b.counter.Count(head) + b.counter.Count(tail)
	var turns []string
	for i := len(history) - 1; i >= 0; i-- {
		turn := formatTurn(in, names, history[i])
		cost := b.counter.Count(turn)
		if !req.Bypass && used+cost > maxTokens {
			break
		}
		used += cost
		turns = append(turns, turn)
	}

	var sb strings.Builder
	sb.WriteString(head)
	for i := len(turns) - 1; i >= 0; i-- {
		sb.WriteString(turns[i])
	}
	sb.WriteString(tail)
	return sb.String(), nil
}

func formatTurn(in Instruct, names Names, e types.ChatEntry) string {
	prefix, suffix := in.OutputPrefix, in.OutputSuffix
	if e.IsUser {
		prefix, suffix = in.InputPrefix, in.InputSuffix
	}
	text := names.Expand(e.Text)
	if in.IncludeNames && e.Author != "" {
		text = e.Author + ": " + text
	}
	return names.Expand(prefix) + text + names.Expand(suffix)
}
