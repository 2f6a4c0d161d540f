package main

// General API documentation for swaggo. Regenerate with `swag init -g cmd/chatd/docs.go -o internal/httpapi/docs`.
//
// @title           chatd API
// @version         1.0
// @description     HTTP API for a single-user chat frontend driving a local or remote LLM.
//
// @contact.name   chatd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
