// Package apidocs holds the OpenAPI document served under /swagger when
// ghostd is built with -tags=swagger. Regenerate with `make swagger-gen`.
package apidocs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "audioghost maintainers",
            "url": "https://github.com/oulianov/audioghost-ai"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/separate": {
            "post": {
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["separate"],
                "summary": "Submit a separation job",
                "parameters": [
                    {"type": "file", "description": "Audio or video file", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "description": "Text prompt for the sound to separate", "name": "description", "in": "formData", "required": true},
                    {"type": "string", "default": "extract", "description": "extract or remove", "name": "mode", "in": "formData"},
                    {"type": "number", "description": "Anchor start in seconds", "name": "start_time", "in": "formData"},
                    {"type": "number", "description": "Anchor end in seconds", "name": "end_time", "in": "formData"},
                    {"type": "string", "description": "small, base or large", "name": "model_size", "in": "formData"},
                    {"type": "number", "description": "Chunk length in seconds (5-60)", "name": "chunk_duration", "in": "formData"},
                    {"type": "string", "description": "bf16 or fp32", "name": "precision", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.SeparationResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/api/separate/batch": {
            "post": {
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["separate"],
                "summary": "Submit one job per description",
                "parameters": [
                    {"type": "file", "description": "Audio or video file", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "description": "JSON array of text prompts", "name": "descriptions", "in": "formData", "required": true},
                    {"type": "string", "default": "extract", "description": "extract or remove", "name": "mode", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/types.SeparationResponse"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/api/tasks": {
            "get": {
                "produces": ["application/json"],
                "tags": ["tasks"],
                "summary": "Recent tasks",
                "parameters": [
                    {"type": "integer", "default": 10, "description": "Maximum tasks to return", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/types.TaskStatus"}}}
                }
            }
        },
        "/api/tasks/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["tasks"],
                "summary": "Task status",
                "parameters": [{"type": "string", "description": "Task id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.TaskStatus"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["tasks"],
                "summary": "Cancel a task",
                "parameters": [{"type": "string", "description": "Task id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/api/tasks/{id}/download/{type}": {
            "get": {
                "produces": ["audio/wav"],
                "tags": ["tasks"],
                "summary": "Download an artifact",
                "parameters": [
                    {"type": "string", "description": "Task id", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "original, ghost, clean or video", "name": "type", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/api/auth/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Credential and checkpoint status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.AuthStatus"}}}
            }
        },
        "/api/auth/token": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Store the hub token",
                "parameters": [{"description": "Token", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.TokenRequest"}}],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Remove the hub token",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/models": {
            "get": {
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "List models",
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/types.Model"}}}}
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Slot status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.SlotStatus"}}}
            }
        }
    },
    "definitions": {
        "types.SeparationResponse": {
            "type": "object",
            "properties": {
                "task_id": {"type": "string"},
                "status": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "types.TaskStatus": {
            "type": "object",
            "properties": {
                "task_id": {"type": "string"},
                "status": {"type": "string"},
                "state": {"type": "string"},
                "progress": {"type": "integer"},
                "message": {"type": "string"},
                "error_kind": {"type": "string"},
                "result": {"$ref": "#/definitions/types.JobResult"}
            }
        },
        "types.JobResult": {
            "type": "object",
            "properties": {
                "original_path": {"type": "string"},
                "ghost_path": {"type": "string"},
                "clean_path": {"type": "string"},
                "video_path": {"type": "string"},
                "description": {"type": "string"},
                "mode": {"type": "string"},
                "audio_duration": {"type": "number"},
                "processing_time": {"type": "number"},
                "model_size": {"type": "string"},
                "sample_rate": {"type": "integer"},
                "chunks": {"type": "integer"}
            }
        },
        "types.AuthStatus": {
            "type": "object",
            "properties": {
                "authenticated": {"type": "boolean"},
                "model_downloaded": {"type": "boolean"},
                "model_name": {"type": "string"}
            }
        },
        "types.TokenRequest": {
            "type": "object",
            "properties": {"token": {"type": "string"}}
        },
        "types.Model": {
            "type": "object",
            "properties": {
                "size": {"type": "string"},
                "name": {"type": "string"},
                "local": {"type": "boolean"}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "kind": {"type": "string"},
                "code": {"type": "integer"}
            }
        },
        "types.SlotStatus": {
            "type": "object",
            "properties": {
                "state": {"type": "string"},
                "key": {"type": "string"},
                "model_name": {"type": "string"},
                "device": {"type": "string"},
                "precision": {"type": "string"},
                "variant": {"type": "string"},
                "sample_rate": {"type": "integer"},
                "loads_total": {"type": "integer"},
                "evictions_total": {"type": "integer"},
                "hits_total": {"type": "integer"},
                "queue_len": {"type": "integer"},
                "running_job": {"type": "string"},
                "uptime_seconds": {"type": "integer"},
                "server_time_unix": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "ghostd API",
	Description:      "HTTP API for text-prompted audio source separation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
