// Package docs Wiley Widget API 文档，由 swag init 根据处理器注释重新生成
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
        "/api/v1/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["认证"],
                "summary": "用户登录",
                "parameters": [
                    {
                        "description": "登录信息",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/api.LoginRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "登录成功", "schema": {"$ref": "#/definitions/api.Response"}},
                    "401": {"description": "用户名或密码错误", "schema": {"$ref": "#/definitions/api.Response"}},
                    "429": {"description": "登录尝试过于频繁", "schema": {"$ref": "#/definitions/api.Response"}}
                }
            }
        },
        "/api/v1/budget/summary": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["预算"],
                "summary": "财年预算汇总",
                "parameters": [
                    {"type": "integer", "description": "财年", "name": "fiscal_year", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "获取成功", "schema": {"$ref": "#/definitions/api.Response"}}
                }
            }
        },
        "/api/v1/services/rate-recommendations": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["业务服务"],
                "summary": "获取费率建议",
                "parameters": [
                    {
                        "description": "部门支出与目标利润率",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/api.RateRecommendationRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "获取成功", "schema": {"$ref": "#/definitions/api.Response"}},
                    "400": {"description": "参数错误", "schema": {"$ref": "#/definitions/api.Response"}}
                }
            }
        },
        "/api/v1/services/quickbooks/sync": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["业务服务"],
                "summary": "同步 QuickBooks 实际发生额",
                "parameters": [
                    {
                        "description": "同步参数",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/api.SyncRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "同步成功", "schema": {"$ref": "#/definitions/api.Response"}},
                    "503": {"description": "QuickBooks 未配置", "schema": {"$ref": "#/definitions/api.Response"}}
                }
            }
        },
        "/api/v1/export/budget.xlsx": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "tags": ["导出"],
                "summary": "导出财年预算 (Excel)",
                "parameters": [
                    {"type": "integer", "description": "财年", "name": "fiscal_year", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "Excel 文件", "schema": {"type": "file"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["系统"],
                "summary": "健康检查",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "api.Response": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 200},
                "data": {},
                "message": {"type": "string", "example": "success"}
            }
        },
        "api.LoginRequest": {
            "type": "object",
            "required": ["password", "username"],
            "properties": {
                "password": {"type": "string", "example": "password123"},
                "username": {"type": "string", "example": "clerk"}
            }
        },
        "api.RateRecommendationRequest": {
            "type": "object",
            "properties": {
                "expenses": {"type": "object", "additionalProperties": {"type": "number"}},
                "margin_pct": {"type": "number", "example": 15}
            }
        },
        "api.SyncRequest": {
            "type": "object",
            "required": ["fiscal_year"],
            "properties": {
                "fiscal_year": {"type": "integer", "example": 2025},
                "from": {"type": "string", "example": "2024-07-01"},
                "to": {"type": "string", "example": "2025-06-30"}
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
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Wiley Widget 市政预算系统 API",
	Description:      "市政基金会计、预算、公用事业计费与费率测算 API",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
