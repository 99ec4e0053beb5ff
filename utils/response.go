package utils

import (
	"github.com/gin-gonic/gin"

	"github.com/discusshub/discusshub/config"
)

// JSONResponse defines the uniform structure for API responses.
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Detail  string      `json:"detail,omitempty"`
}

// Respond writes a JSON response with the given status code.
func Respond(ctx *gin.Context, status int, code int, message string, data interface{}) {
	ctx.JSON(status, JSONResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success returns a standard success response.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, 200, 0, "success", data)
}

// Created returns a success response for newly created resources.
func Created(ctx *gin.Context, data interface{}) {
	Respond(ctx, 201, 0, "created", data)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	Respond(ctx, status, code, message, nil)
}

// ErrorWithDetail includes the underlying error string outside production.
func ErrorWithDetail(ctx *gin.Context, status int, code int, message string, err error) {
	resp := JSONResponse{Code: code, Message: message}
	if err != nil && config.Get().Environment != "production" {
		resp.Detail = err.Error()
	}
	ctx.JSON(status, resp)
}
