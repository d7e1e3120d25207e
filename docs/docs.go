// Package docs holds the OpenAPI document served under /swagger. It is
// regenerated from the handler annotations with
//
//	swag init -g cmd/server/main.go --parseInternal
package docs

import "github.com/swaggo/swag/v2"

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
                "description": "Reports the state of the service and of its optional stores",
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "operationId": "getHealth",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse-HandlerHealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.APIResponse-HandlerHealthResponse"}}
                }
            }
        },
        "/rates": {
            "post": {
                "description": "Stores every quote of the table at its date, replacing quotes already stored for that date",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["rates"],
                "summary": "Store an exchange-rate table",
                "operationId": "saveRateTable",
                "parameters": [
                    {"description": "Rate table", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/parser.RatesInput"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.APIResponse-handler_RateTableResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/rates/latest": {
            "get": {
                "description": "Returns the newest quote of every currency against base, as of date",
                "produces": ["application/json"],
                "tags": ["rates"],
                "summary": "Get the newest exchange rates",
                "operationId": "getLatestRateTable",
                "parameters": [
                    {"type": "string", "default": "EUR", "description": "Base currency", "name": "base", "in": "query"},
                    {"type": "string", "description": "Reference date (YYYY-MM-DD), today when omitted", "name": "date", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse-handler_RateTableResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/tpa/affectation": {
            "post": {
                "description": "Returns every record with all the rules matching it, most specific first",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["tpa"],
                "summary": "List matching rules",
                "operationId": "affectTPARules",
                "parameters": [
                    {"description": "Records and rules", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/HandlerAffectationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse-array_handler_AffectationResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/tpa/computation": {
            "post": {
                "description": "Resolves one rule per record, solves the adjustments to convergence and aggregates the fiscal impact per taxpayer",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["tpa"],
                "summary": "Run a computation",
                "operationId": "computeTPA",
                "parameters": [
                    {"description": "Records, rules and optional exchange rates", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/HandlerComputationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse-HandlerComputationResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/tpa/methods": {
            "get": {
                "description": "Returns every registered method with the KPI it measures",
                "produces": ["application/json"],
                "tags": ["tpa"],
                "summary": "List transfer-pricing methods",
                "operationId": "listTPAMethods",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse-array_handler_MethodResponse"}}
                }
            }
        },
        "/tpa/parse-data": {
            "post": {
                "description": "Accepts a JSON array or a CSV file and returns the typed records",
                "consumes": ["application/json", "text/csv"],
                "produces": ["application/json"],
                "tags": ["tpa"],
                "summary": "Parse financial records",
                "operationId": "parseTPAData",
                "parameters": [
                    {"type": "string", "default": ",", "description": "CSV field delimiter", "name": "delimiter", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse-array_handler_RecordResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/tpa/parse-rules": {
            "post": {
                "description": "Accepts a JSON array or a CSV file and returns the typed rules",
                "consumes": ["application/json", "text/csv"],
                "produces": ["application/json"],
                "tags": ["tpa"],
                "summary": "Parse pricing rules",
                "operationId": "parseTPARules",
                "parameters": [
                    {"type": "string", "default": ",", "description": "CSV field delimiter", "name": "delimiter", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse-array_handler_RuleResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/tpa/runs/{id}": {
            "get": {
                "description": "Returns a time-limited download link to the stored result of a computation run",
                "produces": ["application/json"],
                "tags": ["tpa"],
                "summary": "Get an archived computation",
                "operationId": "getTPARun",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Run ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse-handler_RunLinkResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "HandlerAffectationRequest": {
            "type": "object",
            "required": ["data", "rules"],
            "properties": {
                "data": {"type": "array", "items": {"type": "object"}},
                "rules": {"type": "array", "items": {"type": "object"}}
            }
        },
        "HandlerComputationRequest": {
            "type": "object",
            "required": ["data", "rules"],
            "properties": {
                "data": {"type": "array", "items": {"type": "object"}},
                "rules": {"type": "array", "items": {"type": "object"}},
                "exchangeRates": {"$ref": "#/definitions/parser.RatesInput"},
                "rateBase": {"type": "string", "example": "EUR"},
                "rateDate": {"type": "string", "example": "2024-12-31"}
            }
        },
        "dto.ErrorInfo": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "request_id": {"type": "string"},
                "timestamp": {"type": "string"},
                "details": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "field": {"type": "string"},
                            "message": {"type": "string"},
                            "row": {"type": "integer"}
                        }
                    }
                }
            }
        },
        "handler.ErrorResponse": {
            "description": "Standard error response",
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": false},
                "error": {"$ref": "#/definitions/dto.ErrorInfo"}
            }
        },
        "handler.APIResponse-HandlerComputationResponse": {"$ref": "#/definitions/envelope"},
        "handler.APIResponse-HandlerHealthResponse": {"$ref": "#/definitions/envelope"},
        "handler.APIResponse-array_handler_AffectationResponse": {"$ref": "#/definitions/envelope"},
        "handler.APIResponse-array_handler_MethodResponse": {"$ref": "#/definitions/envelope"},
        "handler.APIResponse-array_handler_RecordResponse": {"$ref": "#/definitions/envelope"},
        "handler.APIResponse-array_handler_RuleResponse": {"$ref": "#/definitions/envelope"},
        "handler.APIResponse-handler_RateTableResponse": {"$ref": "#/definitions/envelope"},
        "handler.APIResponse-handler_RunLinkResponse": {"$ref": "#/definitions/envelope"},
        "envelope": {
            "description": "Standard API response wrapper with typed data field",
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {},
                "error": {"$ref": "#/definitions/dto.ErrorInfo"}
            }
        },
        "parser.RatesInput": {
            "type": "object",
            "required": ["base"],
            "properties": {
                "base": {"type": "string", "example": "EUR"},
                "date": {"type": "string", "example": "2024-12-31"},
                "rates": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "required": ["currency"],
                        "properties": {
                            "currency": {"type": "string", "example": "USD"},
                            "rate": {"type": "string", "example": "1.0850"}
                        }
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "TPA Engine API",
	Description:      "Transfer-pricing adjustment engine: rule affectation, adjustment solving and fiscal aggregation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
