// Package docs registers the OpenAPI document served by the Swagger UI.
// Regenerate with `swag init -g cmd/chatd/docs.go -o internal/httpapi/docs`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/models": {"get": {"produces": ["application/json"], "summary": "List loadable models", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}}}},
        "/status": {"get": {"produces": ["application/json"], "summary": "Generation status", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}}}},
        "/model/load": {"post": {"consumes": ["application/json"], "summary": "Load a model into the local engine", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.LoadModelRequest"}}], "responses": {"204": {"description": "No Content"}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}, "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}}}},
        "/chats/{id}/send": {"post": {"consumes": ["application/json"], "produces": ["application/json"], "summary": "Send a message and generate the reply", "parameters": [{"type": "integer", "in": "path", "name": "id", "required": true}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.SendRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.GenerationResponse"}}, "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/types.GenerationResponse"}}, "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}}}},
        "/generation/stream": {"get": {"produces": ["text/event-stream"], "summary": "Live generation output (Server-Sent Events)", "responses": {"200": {"description": "OK"}}}}
    },
    "definitions": {
        "types.ErrorResponse": {"type": "object", "properties": {"code": {"type": "integer", "example": 400}, "error": {"type": "string", "example": "invalid JSON body"}}},
        "types.GenerationResponse": {"type": "object", "properties": {"aborted": {"type": "boolean"}, "entry_id": {"type": "integer", "example": 12}, "text": {"type": "string", "example": "Hello there."}}},
        "types.LoadModelRequest": {"type": "object", "properties": {"id": {"type": "string", "example": "tinyllama-q4.gguf"}}},
        "types.Model": {"type": "object", "properties": {"id": {"type": "string"}, "name": {"type": "string"}, "path": {"type": "string"}, "quant": {"type": "string"}, "size_bytes": {"type": "integer"}}},
        "types.ModelsResponse": {"type": "object", "properties": {"models": {"type": "array", "items": {"$ref": "#/definitions/types.Model"}}}},
        "types.SendRequest": {"type": "object", "properties": {"message": {"type": "string", "example": "Tell me a story."}}},
        "types.StatusResponse": {"type": "object", "properties": {"state": {"type": "string", "example": "idle"}, "now_generating": {"type": "boolean"}, "backend": {"type": "string", "example": "local"}, "loaded_model": {"type": "string"}, "buffer": {"type": "string"}, "generations_total": {"type": "integer"}, "aborts_total": {"type": "integer"}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "chatd API",
	Description:      "HTTP API for chat generation against local and remote LLM backends.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
