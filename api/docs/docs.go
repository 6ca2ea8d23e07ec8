// Package docs holds the swagger document of the bridge API.
// Keep in sync with the handler annotations in api/resources.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Liveness and version",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/entries": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["entries"],
                "summary": "List entries",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.EntryStatus"}}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["entries"],
                "summary": "Create an entry",
                "parameters": [
                    {"description": "Name and API token", "name": "entry", "in": "body", "required": true, "schema": {"$ref": "#/definitions/bridge.EntryInput"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.EntryStatus"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/entries/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["entries"],
                "summary": "Get an entry",
                "parameters": [{"type": "string", "description": "Entry ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.EntryStatus"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["entries"],
                "summary": "Reconfigure an entry",
                "parameters": [
                    {"type": "string", "description": "Entry ID", "name": "id", "in": "path", "required": true},
                    {"description": "New name and optional token", "name": "entry", "in": "body", "required": true, "schema": {"$ref": "#/definitions/bridge.ReconfigureInput"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.EntryStatus"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["entries"],
                "summary": "Delete an entry",
                "parameters": [{"type": "string", "description": "Entry ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/entries/{id}/refresh": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["entries"],
                "summary": "Refresh an entry",
                "parameters": [{"type": "string", "description": "Entry ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Snapshot"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/entries/{id}/snapshot": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["entries"],
                "summary": "Get an entry's snapshot",
                "parameters": [{"type": "string", "description": "Entry ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/bridge.SnapshotView"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/issues": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["issues"],
                "summary": "List repair issues",
                "parameters": [{"type": "string", "description": "Entry ID", "name": "entry_id", "in": "query"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Issue"}}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/services/send_meter_reading": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json", "application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "tags": ["services"],
                "summary": "Send a meter reading",
                "parameters": [
                    {"description": "Action parameters", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/submission.Request"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/submission.Result"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        }
    },
    "definitions": {
        "bridge.EntryInput": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "api_token": {"type": "string"}
            }
        },
        "bridge.ReconfigureInput": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "api_token": {"type": "string"}
            }
        },
        "bridge.SnapshotView": {
            "type": "object",
            "properties": {
                "snapshot": {"$ref": "#/definitions/models.Snapshot"},
                "sensors": {"type": "array", "items": {"$ref": "#/definitions/models.SensorState"}},
                "last_update_success": {"type": "boolean"}
            }
        },
        "errors.APIError": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "message": {"type": "string"},
                "code": {"type": "integer"},
                "request_id": {"type": "string"},
                "details": {},
                "translation_key": {"type": "string"},
                "translation_placeholders": {"type": "object", "additionalProperties": {"type": "string"}},
                "upstream_status": {"type": "integer"}
            }
        },
        "models.Entry": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "models.EntryStatus": {
            "type": "object",
            "properties": {
                "entry": {"$ref": "#/definitions/models.Entry"},
                "running": {"type": "boolean"},
                "device_count": {"type": "integer"},
                "last_update_success": {"type": "boolean"},
                "last_refreshed_at": {"type": "string"},
                "last_error": {"type": "string"},
                "reauth_required": {"type": "boolean"}
            }
        },
        "models.Issue": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "entry_id": {"type": "string"},
                "translation_key": {"type": "string"},
                "severity": {"type": "string"},
                "is_fixable": {"type": "boolean"},
                "upstream_status": {"type": "integer"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "models.SensorState": {
            "type": "object",
            "properties": {
                "entity_id": {"type": "string"},
                "unique_id": {"type": "string"},
                "device_id": {"type": "string"},
                "kind": {"type": "string"},
                "state": {"type": "string"},
                "attributes": {"type": "object"}
            }
        },
        "models.Snapshot": {
            "type": "object",
            "properties": {
                "entry_id": {"type": "string"},
                "devices": {"type": "object"},
                "refreshed_at": {"type": "string"},
                "reading_errors": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "submission.Request": {
            "type": "object",
            "properties": {
                "entry_id": {"type": "string"},
                "device_id": {"type": "string"},
                "source_entity_id": {"type": "string"},
                "allow_rounding": {"type": "boolean"}
            }
        },
        "submission.Result": {
            "type": "object",
            "properties": {
                "entry_id": {"type": "string"},
                "device_id": {"type": "string"},
                "source_entity_id": {"type": "string"},
                "source_value": {"type": "number"},
                "sent_value": {"type": "number"},
                "timestamp": {"type": "string"},
                "allow_rounding": {"type": "boolean"},
                "decimal_places": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Energy Tracker Bridge API",
	Description:      "Mirrors Energy Tracker meter devices into Home Assistant and submits readings back.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
