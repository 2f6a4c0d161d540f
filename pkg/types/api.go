package types

// SendRequest is the body of POST /chats/{id}/send.
type SendRequest struct {
	// Message typed by the user. Blank messages only trigger a new reply.
	// example: Tell me a story.
	Message string `json:"message" example:"Tell me a story."`
}

// RegenerateRequest is the body of POST /chats/{id}/regenerate.
type RegenerateRequest struct {
	// Text kept from the superseded reply; it prefixes the new one.
	// example: Once upon a time,
	Keep string `json:"keep,omitempty" example:"Once upon a time, "`
}

// CreateChatRequest is the body of POST /chats.
type CreateChatRequest struct {
	CharacterName string `json:"character_name" example:"Aria"`
	UserName      string `json:"user_name" example:"User"`
}

// LoadModelRequest is the body of POST /model/load.
type LoadModelRequest struct {
	// Registry id of the model to load.
	// example: tinyllama-q4.gguf
	ID string `json:"id" example:"tinyllama-q4.gguf"`
}

// GenerationResponse is returned once a send or regenerate finishes.
type GenerationResponse struct {
	EntryID int64  `json:"entry_id" example:"12"`
	Text    string `json:"text" example:"Hello there."`
	Aborted bool   `json:"aborted,omitempty"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	Models []Model `json:"models"`
}

// ChatsResponse wraps the list of chats returned by GET /chats.
type ChatsResponse struct {
	Chats []Chat `json:"chats"`
}

// EntriesResponse wraps the entries returned by GET /chats/{id}/entries.
type EntriesResponse struct {
	Entries []ChatEntry `json:"entries"`
}

// SettingValue is the body and response of /settings/{key}.
type SettingValue struct {
	Key   string `json:"key" example:"auto_load_local"`
	Value any    `json:"value"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
