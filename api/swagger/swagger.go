package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Schedulus API",
        "description": "Timetable scheduling service: lessons, conflict scoring and asynchronous optimization jobs. Send X-Key-Case: camel to receive camelCase keys.",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Lessons", "description": "Lessons of the session timetable"},
        {"name": "Schedules", "description": "Timetables and optimization jobs"},
        {"name": "Exports", "description": "Signed timetable downloads"}
    ],
    "paths": {
        "/lessons": {
            "get": {
                "tags": ["Lessons"],
                "summary": "List lessons of the session timetable",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Lessons"],
                "summary": "Add a lesson",
                "description": "Missing difficulty and satisfaction values are predicted. The lesson is placed in a random timeslot and room.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateLessonRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lessons/{id}": {
            "delete": {
                "tags": ["Lessons"],
                "summary": "Remove a lesson",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lessons/{id}/pin": {
            "patch": {
                "tags": ["Lessons"],
                "summary": "Toggle the pinned flag of a lesson",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lessons/import": {
            "post": {
                "tags": ["Lessons"],
                "summary": "Import lessons from a CSV or XLSX file",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid spreadsheet", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "File too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lessons/export": {
            "get": {
                "tags": ["Lessons"],
                "summary": "Download lessons as CSV",
                "produces": ["text/csv"],
                "responses": {
                    "200": {"description": "CSV file"}
                }
            }
        },
        "/schedules/latest": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Latest optimized timetable",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No completed optimization yet", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/current": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Current session timetable with score",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/conflicts": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Hard constraint violations of the session timetable",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/optimize": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Submit an optimization job",
                "description": "Without lessons the session timetable is optimized and updated on completion.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/OptimizationRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "A job is already running", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/jobs": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Optimization jobs held in memory, newest first",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/jobs/{id}": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Optimization job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "wait", "in": "query", "type": "string", "description": "Long-poll duration such as 10s, max 60s"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/export": {
            "post": {
                "tags": ["Exports"],
                "summary": "Export a timetable as CSV or PDF",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Signed link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download an exported timetable",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid or expired link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "File removed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timeslots": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Fixed timeslot set",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rooms": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Fixed room set",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateLessonRequest": {
            "type": "object",
            "required": ["subject", "teacher", "student_group"],
            "properties": {
                "subject": {"type": "string"},
                "teacher": {"type": "string"},
                "student_group": {"type": "string"},
                "difficulty_weight": {"type": "number", "minimum": 0, "maximum": 1},
                "satisfaction_score": {"type": "number", "minimum": 0, "maximum": 1},
                "pinned": {"type": "boolean"}
            }
        },
        "TimeslotInput": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "day_of_week": {"type": "string", "enum": ["MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"]},
                "start_time": {"type": "string", "example": "08:30"},
                "end_time": {"type": "string", "example": "09:30"},
                "preference_bonus": {"type": "number"}
            }
        },
        "RoomInput": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "capacity": {"type": "integer"}
            }
        },
        "LessonInput": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "subject": {"type": "string"},
                "teacher": {"type": "string"},
                "student_group": {"type": "string"},
                "difficulty_weight": {"type": "number"},
                "satisfaction_score": {"type": "number"},
                "pinned": {"type": "boolean"},
                "pinned_timeslot_index": {"type": "integer"},
                "pinned_room_index": {"type": "integer"}
            }
        },
        "OptimizationRequest": {
            "type": "object",
            "properties": {
                "timeslots": {"type": "array", "items": {"$ref": "#/definitions/TimeslotInput"}},
                "rooms": {"type": "array", "items": {"$ref": "#/definitions/RoomInput"}},
                "lessons": {"type": "array", "items": {"$ref": "#/definitions/LessonInput"}},
                "solver_time_limit_seconds": {"type": "integer"}
            }
        },
        "ExportRequest": {
            "type": "object",
            "required": ["format"],
            "properties": {
                "format": {"type": "string", "enum": ["csv", "pdf"]},
                "source": {"type": "string", "enum": ["current", "latest"]}
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
