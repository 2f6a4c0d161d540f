package manager

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"chatd/internal/prompt"
	"chatd/pkg/types"
)

const defaultFinalizeTimeout = 5 * time.Second

// ChatStore is the chat storage the controller reads and writes.
type ChatStore interface {
	Chat(ctx context.Context, chatID int64) (types.Chat, error)
	LastEntry(ctx context.Context, chatID int64) (types.ChatEntry, error)
	AddEntry(ctx context.Context, chatID int64, author string, isUser bool, text string) (int64, error)
	UpdateEntryText(ctx context.Context, entryID int64, text string) error
}

// Settings is the persisted key-value store for flags and structured values.
type Settings interface {
	Bool(ctx context.Context, key string) (bool, error)
	SetBool(ctx context.Context, key string, v bool) error
	JSON(ctx context.Context, key string, dst any) error
	SetJSON(ctx context.Context, key string, v any) error
}

// PromptBuilder assembles the prompt under a token budget.
type PromptBuilder interface {
	BuildTextCompletionContext(ctx context.Context, req prompt.Request, maxTokens int) (string, error)
}

// Config wires the controller to its collaborators.
type Config struct {
	Backend   Backend
	Chats     ChatStore
	Settings  Settings
	Prompts   PromptBuilder
	Notifier  *Notifier
	Publisher EventPublisher
	Logger    zerolog.Logger
	// FinalizeTimeout bounds persisting the result once the generation
	// context has ended.
	FinalizeTimeout time.Duration
}
