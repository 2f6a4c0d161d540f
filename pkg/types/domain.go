package types

import "time"

// Model represents a model file on disk that the local engine can load.
// It is also the descriptor persisted as the last-used model.
type Model struct {
	// Stable identifier for the model.
	// example: tinyllama-q4.gguf
	ID string `json:"id" example:"tinyllama-q4.gguf"`
	// Human-friendly name.
	// example: TinyLlama (Q4)
	Name string `json:"name" example:"TinyLlama (Q4)"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/TinyLlama.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/TinyLlama.Q4_K_M.gguf"`
	// Quantization level parsed from the file name.
	// example: Q4_K_M
	Quant string `json:"quant,omitempty" example:"Q4_K_M"`
	// File size in bytes.
	SizeBytes int64 `json:"size_bytes,omitempty"`
}

// Chat is a conversation between the user and one character.
type Chat struct {
	ID            int64     `json:"id" example:"1"`
	CharacterName string    `json:"character_name" example:"Aria"`
	UserName      string    `json:"user_name" example:"User"`
	CreatedAt     time.Time `json:"created_at"`
}

// ChatEntry is a persisted message in a chat.
type ChatEntry struct {
	ID     int64  `json:"id" example:"12"`
	ChatID int64  `json:"chat_id" example:"1"`
	Author string `json:"author" example:"Aria"`
	IsUser bool   `json:"is_user" example:"false"`
	Text   string `json:"text" example:"Hello there."`
	// Position of the entry within its chat, starting at 0.
	Order int `json:"order" example:"3"`
}
