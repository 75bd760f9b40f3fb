package utils

import "github.com/gin-gonic/gin"

// JSONResponse defines the uniform structure for API responses. Warning is set
// when the request succeeded against a degraded backend (for example, remote
// unreachable and the result came from locally saved data).
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Warning string      `json:"warning,omitempty"`
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

// SuccessWithWarning returns a success response carrying a non-fatal warning.
// An empty warning is identical to Success.
func SuccessWithWarning(ctx *gin.Context, data interface{}, warning string) {
	ctx.JSON(200, JSONResponse{
		Code:    0,
		Message: "success",
		Data:    data,
		Warning: warning,
	})
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	Respond(ctx, status, code, message, nil)
}
