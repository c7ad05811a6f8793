// Package docs registers the Strayland OpenAPI document with swag.
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
        "/posts": {
            "get": {
                "tags": ["posts"],
                "summary": "List posts",
                "parameters": [
                    {"type": "integer", "description": "page size (default 20, max 100)", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Post"}}}
                }
            },
            "post": {
                "consumes": ["multipart/form-data"],
                "tags": ["posts"],
                "summary": "Create a post with an optional image and place",
                "parameters": [
                    {"type": "string", "name": "author", "in": "formData", "required": true},
                    {"type": "string", "name": "title", "in": "formData", "required": true},
                    {"type": "string", "name": "content", "in": "formData"},
                    {"type": "string", "description": "shelter or cafe", "name": "place_type", "in": "formData"},
                    {"type": "string", "name": "place_name", "in": "formData"},
                    {"type": "number", "name": "lat", "in": "formData"},
                    {"type": "number", "name": "lng", "in": "formData"},
                    {"type": "string", "name": "address", "in": "formData"},
                    {"type": "file", "name": "image", "in": "formData"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Post"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/posts/{id}": {
            "get": {
                "tags": ["posts"],
                "summary": "Get a post with its comments",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Post"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["posts"],
                "summary": "Delete a post created by the caller",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/posts/{id}/like": {
            "post": {
                "description": "Likes the post when the caller has not liked it, otherwise removes the like.",
                "tags": ["posts"],
                "summary": "Toggle the caller's like on a post",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Post"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/posts/{id}/comments": {
            "get": {
                "tags": ["comments"],
                "summary": "List a post's comments, oldest first",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Comment"}}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/comments": {
            "post": {
                "consumes": ["application/json"],
                "tags": ["comments"],
                "summary": "Comment on a post",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/server.CreateCommentRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Comment"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/comments/{id}": {
            "delete": {
                "tags": ["comments"],
                "summary": "Delete a comment written by the caller",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/places": {
            "get": {
                "tags": ["places"],
                "summary": "List places attached to posts, newest first",
                "parameters": [{"type": "string", "description": "shelter or cafe", "name": "type", "in": "query"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Place"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/chat": {
            "post": {
                "consumes": ["application/json"],
                "tags": ["chat"],
                "summary": "Ask the assistant",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/server.ChatRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.ChatResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/chat/suggestions": {
            "get": {
                "tags": ["chat"],
                "summary": "Assistant name and suggested prompts",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ws": {
            "get": {
                "tags": ["realtime"],
                "summary": "Realtime feed events",
                "responses": {"101": {"description": "Switching Protocols"}}
            }
        }
    },
    "definitions": {
        "models.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string"},
                "details": {"type": "string"}
            }
        },
        "models.Post": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "author": {"type": "string"},
                "title": {"type": "string"},
                "content": {"type": "string"},
                "image_url": {"type": "string"},
                "thumbnail_url": {"type": "string"},
                "type": {"type": "string"},
                "name": {"type": "string"},
                "lat": {"type": "number"},
                "lng": {"type": "number"},
                "addr": {"type": "string"},
                "likes_count": {"type": "integer"},
                "comments_count": {"type": "integer"},
                "liked": {"type": "boolean"},
                "comments": {"type": "array", "items": {"$ref": "#/definitions/models.Comment"}},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "models.Comment": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "post_id": {"type": "integer"},
                "author": {"type": "string"},
                "text": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "models.Place": {
            "type": "object",
            "properties": {
                "post_id": {"type": "integer"},
                "type": {"type": "string"},
                "name": {"type": "string"},
                "lat": {"type": "number"},
                "lng": {"type": "number"},
                "addr": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "models.ChatMessage": {
            "type": "object",
            "required": ["role", "content"],
            "properties": {
                "role": {"type": "string", "enum": ["user", "assistant"]},
                "content": {"type": "string", "maxLength": 4000}
            }
        },
        "server.ChatRequest": {
            "type": "object",
            "required": ["messages"],
            "properties": {
                "messages": {"type": "array", "maxItems": 30, "minItems": 1, "items": {"$ref": "#/definitions/models.ChatMessage"}}
            }
        },
        "server.ChatResponse": {
            "type": "object",
            "properties": {"reply": {"type": "string"}}
        },
        "server.CreateCommentRequest": {
            "type": "object",
            "required": ["post_id", "author", "text"],
            "properties": {
                "post_id": {"type": "integer"},
                "author": {"type": "string", "maxLength": 80},
                "text": {"type": "string", "maxLength": 2000}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        },
        "ClientID": {
            "description": "Anonymous per-device voter token.",
            "type": "apiKey",
            "name": "X-Client-Id",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8375",
	BasePath:         "/api",
	Schemes:          []string{"http", "https"},
	Title:            "Strayland API",
	Description:      "Community feed for stray animals, shelters and adoption cafes.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
