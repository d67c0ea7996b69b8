package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "QR Attend API",
        "description": "QR-code attendance session engine",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Owner account login"},
        {"name": "Sessions", "description": "Attendance session lifecycle"},
        {"name": "Scans", "description": "Device binding and attendance scans"},
        {"name": "Exports", "description": "Attendance snapshot downloads"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List sessions",
                "parameters": [
                    {"name": "class_id", "in": "query", "type": "string"},
                    {"name": "state", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"},
                    {"name": "sort_order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Sessions"],
                "summary": "Open attendance session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid configuration"}
                }
            }
        },
        "/sessions/{id}": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Get session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/sessions/{id}/end": {
            "post": {
                "tags": ["Sessions"],
                "summary": "End session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already terminal"}
                }
            }
        },
        "/sessions/{id}/aggregate": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Session aggregate",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "recompute", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/export": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export attendance snapshot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["tabular", "structured", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File download"},
                    "400": {"description": "Unsupported format"}
                }
            }
        },
        "/scan/bind": {
            "post": {
                "tags": ["Scans"],
                "summary": "Bind device to session",
                "parameters": [
                    {"name": "X-Device-ID", "in": "header", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BindRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "Session no longer active"}
                }
            }
        },
        "/scan": {
            "post": {
                "tags": ["Scans"],
                "summary": "Record attendance scan",
                "parameters": [
                    {"name": "X-Device-ID", "in": "header", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScanRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate scan or session full"},
                    "412": {"description": "No active session binding"}
                }
            }
        },
        "/scan/binding": {
            "delete": {
                "tags": ["Scans"],
                "summary": "Reset device binding",
                "parameters": [
                    {"name": "X-Device-ID", "in": "header", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "CreateSessionRequest": {
            "type": "object",
            "properties": {
                "class_id": {"type": "string"},
                "name": {"type": "string"},
                "duration_minutes": {"type": "integer"},
                "late_threshold_minutes": {"type": "integer"},
                "allow_late_entry": {"type": "boolean"},
                "max_attendees": {"type": "integer"}
            },
            "required": ["class_id", "name", "duration_minutes"]
        },
        "BindRequest": {
            "type": "object",
            "properties": {
                "payload": {"type": "string"}
            },
            "required": ["payload"]
        },
        "ScanRequest": {
            "type": "object",
            "properties": {
                "payload": {"type": "string"},
                "location": {"type": "string"},
                "device": {"type": "string"},
                "confidence": {"type": "number"},
                "reported_at": {"type": "string"}
            },
            "required": ["payload"]
        },
        "Session": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "class_id": {"type": "string"},
                "name": {"type": "string"},
                "owner_id": {"type": "string"},
                "created_at": {"type": "string"},
                "duration_minutes": {"type": "integer"},
                "expires_at": {"type": "string"},
                "late_threshold_minutes": {"type": "integer"},
                "allow_late_entry": {"type": "boolean"},
                "max_attendees": {"type": "integer"},
                "state": {"type": "string"},
                "ended_at": {"type": "string"}
            }
        },
        "Record": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "session_id": {"type": "string"},
                "student_id": {"type": "string"},
                "display_name": {"type": "string"},
                "roll_number": {"type": "string"},
                "timestamp": {"type": "string"},
                "status": {"type": "string"},
                "arrival_minutes": {"type": "integer"}
            }
        },
        "Aggregate": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "total_attendees": {"type": "integer"},
                "present_count": {"type": "integer"},
                "late_count": {"type": "integer"},
                "average_arrival_minutes": {"type": "number"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
