// Package manager runs chat generations against a completion backend. It is
// structured into small files by concern:
//
//   - controller.go: Controller type, constructor, snapshot and abort.
//   - config.go: Config and the storage interfaces the controller needs.
//   - types.go: State, Outcome, Result, Snapshot.
//   - errors.go: error types and helpers (IsBusy, IsConfiguration, ...).
//   - admission.go: the single generation slot and Generation handles.
//   - inference.go: the generation state machine, autoload and KV restore.
//   - ops.go: Send, Regenerate, LoadModel and friends.
//   - buffer.go: the live output buffer and its subscriptions.
//   - payload.go: preset to request mapping shared by every backend.
//   - status_report.go, sanity.go: status and readiness reporting.
//
// Backends:
//
//   - local: in-process go-llama.cpp engine. Enabled with `-tags=llama`.
//     Files: adapter_llama.go, llama_cgo.go. Without the tag
//     adapter_llama_stub.go reports a dependency error instead.
//   - llamacpp: a running llama.cpp server over /completion (SSE).
//   - openai: any OpenAI compatible /v1/completions endpoint (SSE).
//
// Only one generation runs at a time; a second request is rejected with a
// busy error rather than queued.
package manager
