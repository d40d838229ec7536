package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Timetable API",
        "description": "Weekly timetable management with teacher and class conflict detection",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Schedules", "description": "Weekly schedule entries and timetable views"},
        {"name": "Assignments", "description": "Teaching assignments owning schedule entries"},
        {"name": "Observability", "description": "Service counters"}
    ],
    "paths": {
        "/schedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "List schedule entries",
                "parameters": [
                    {"name": "termId", "in": "query", "type": "string"},
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "teacherId", "in": "query", "type": "string"},
                    {"name": "assignmentId", "in": "query", "type": "string"},
                    {"name": "day", "in": "query", "type": "string", "enum": ["SENIN", "SELASA", "RABU", "KAMIS", "JUMAT", "SABTU"]},
                    {"name": "room", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid day", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Schedules"],
                "summary": "Create schedule entry",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateScheduleEntryRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "INVALID_DAY, INVALID_TIME_FORMAT or END_NOT_AFTER_START", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "ASSIGNMENT_NOT_FOUND", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "TEACHER_CONFLICT or CLASS_CONFLICT", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "STORAGE_UNAVAILABLE", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "504": {"description": "TIMEOUT", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/bulk": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Bulk create schedule entries",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkCreateScheduleEntriesRequest"}}
                ],
                "responses": {
                    "200": {"description": "Created and rejected items", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "First conflict when partial_on_error is false", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/stats": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Timetable statistics",
                "parameters": [
                    {"name": "termId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/export": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Export a class or teacher timetable",
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "teacherId", "in": "query", "type": "string"},
                    {"name": "termId", "in": "query", "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "xlsx"]}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "400": {"description": "Exactly one of classId or teacherId is required", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}": {
            "put": {
                "tags": ["Schedules"],
                "summary": "Update schedule entry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateScheduleEntryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Schedules"],
                "summary": "Update schedule entry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateScheduleEntryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Schedules"],
                "summary": "Delete schedule entry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes/{id}/schedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Class timetable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "termId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teachers/{id}/schedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Teacher timetable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "termId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teachers/{id}/assignments": {
            "get": {
                "tags": ["Assignments"],
                "summary": "List a teacher's assignments",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Create a teaching assignment",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTeachingAssignmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate tuple", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/{id}": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Resolve a teaching assignment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "ASSIGNMENT_NOT_FOUND", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Assignments"],
                "summary": "Delete a teaching assignment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "ASSIGNMENT_IN_USE", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/{id}/schedules/count": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Number of schedule entries owned by an assignment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Observability"],
                "summary": "Aggregated service counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateScheduleEntryRequest": {
            "type": "object",
            "required": ["assignment_id", "day", "start_time", "end_time"],
            "properties": {
                "assignment_id": {"type": "string"},
                "day": {"type": "string", "example": "SENIN"},
                "start_time": {"type": "string", "example": "07:00"},
                "end_time": {"type": "string", "example": "08:30"},
                "room": {"type": "string"},
                "note": {"type": "string"}
            }
        },
        "UpdateScheduleEntryRequest": {
            "type": "object",
            "properties": {
                "assignment_id": {"type": "string"},
                "day": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "room": {"type": "string"},
                "note": {"type": "string"}
            }
        },
        "BulkCreateScheduleEntriesRequest": {
            "type": "object",
            "required": ["items"],
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/CreateScheduleEntryRequest"}},
                "partial_on_error": {"type": "boolean"}
            }
        },
        "CreateTeachingAssignmentRequest": {
            "type": "object",
            "required": ["teacher_id", "class_id", "subject_id", "term_id"],
            "properties": {
                "teacher_id": {"type": "string"},
                "class_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "term_id": {"type": "string"}
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
                "status": {"type": "integer"},
                "details": {"type": "object"}
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
