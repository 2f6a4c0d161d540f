package types

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Generation state (idle, autoloading, streaming, finalizing).
	// example: idle
	State string `json:"state" example:"idle"`
	// Whether a generation currently owns the session.
	NowGenerating bool `json:"now_generating"`
	// Backend kind serving completions.
	// example: local
	Backend string `json:"backend" example:"local"`
	// Model currently loaded by the local engine, if any.
	LoadedModel string `json:"loaded_model,omitempty" example:"tinyllama-q4.gguf"`
	// Chat and entry being generated into.
	ChatID  int64 `json:"chat_id,omitempty" example:"1"`
	EntryID int64 `json:"entry_id,omitempty" example:"12"`
	// Live buffer contents.
	Buffer string `json:"buffer"`
	// Last error observed by the controller (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Totals since start.
	GenerationsTotal uint64 `json:"generations_total" example:"12"`
	AbortsTotal      uint64 `json:"aborts_total" example:"1"`
}

// Notice is a user-visible log line.
type Notice struct {
	Message  string `json:"message" example:"No Model Loaded"`
	TimeUnix int64  `json:"time_unix" example:"1700000000"`
}

// NoticesResponse wraps GET /notices.
type NoticesResponse struct {
	Notices []Notice `json:"notices"`
}
