// Package docs registers the swagger document served at /swagger.
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
        "/payments/initiate": {
            "post": {
                "description": "Mints a gateway order and payment key and records a pending order.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["payments"],
                "summary": "Start a checkout",
                "parameters": [
                    {"type": "string", "description": "authenticated user id", "name": "X-User-ID", "in": "header"},
                    {"description": "cart, billing data and amount", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/initiateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/initiateResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/payments/checkout": {
            "post": {
                "description": "Alias of /payments/initiate.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["payments"],
                "summary": "Start a checkout",
                "parameters": [
                    {"description": "cart, billing data and amount", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/initiateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/initiateResponse"}}
                }
            }
        },
        "/payments/webhook": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["payments"],
                "summary": "Gateway push notification",
                "parameters": [
                    {"type": "string", "description": "hex HMAC-SHA512 of the body", "name": "X-Paymob-Signature", "in": "header"},
                    {"type": "string", "description": "signature, when not sent as a header", "name": "hmac", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/webhookResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/payments/result": {
            "get": {
                "produces": ["application/json"],
                "tags": ["payments"],
                "summary": "Browser return after payment",
                "parameters": [
                    {"type": "integer", "description": "order id", "name": "order", "in": "query", "required": true},
                    {"type": "string", "description": "gateway transaction id (or id)", "name": "transaction_id", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/payments/paymob-callback": {
            "get": {
                "produces": ["application/json"],
                "tags": ["payments"],
                "summary": "Gateway redirect callback",
                "parameters": [
                    {"type": "integer", "description": "order id", "name": "order", "in": "query", "required": true},
                    {"type": "string", "description": "gateway transaction id (or id)", "name": "transaction_id", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/outcome"}}}
            }
        },
        "/payments/orders": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Orders of the calling user",
                "parameters": [
                    {"type": "string", "description": "authenticated user id", "name": "X-User-ID", "in": "header", "required": true},
                    {"type": "integer", "description": "page size (max 100)", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/payments/orders/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Order with its items",
                "parameters": [
                    {"type": "integer", "description": "order id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/payments/orders/{id}/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["payments"],
                "summary": "Poll the gateway for an order's transaction",
                "parameters": [
                    {"type": "integer", "description": "order id", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "gateway transaction id", "name": "transaction_id", "in": "query", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/outcome"}}}
            }
        }
    },
    "definitions": {
        "initiateRequest": {
            "type": "object",
            "properties": {
                "cartItems": {"type": "array", "items": {"type": "object"}},
                "billingData": {"type": "object"},
                "amount": {"type": "number"},
                "inspectionFees": {"type": "number"}
            }
        },
        "initiateResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "paymentUrl": {"type": "string"},
                "orderId": {"type": "integer"}
            }
        },
        "webhookResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "orderId": {"type": "integer"},
                "paymentStatus": {"type": "string"},
                "duplicate": {"type": "boolean"}
            }
        },
        "outcome": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "orderId": {"type": "integer"},
                "transactionId": {"type": "string"},
                "status": {"type": "string"},
                "isRefunded": {"type": "boolean"},
                "amount": {"type": "string"}
            }
        },
        "errorResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "error": {"type": "string"},
                "details": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Autoparts Payments API",
	Description:      "Checkout and payment reconciliation for the auto-parts marketplace.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
