package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse standard error body
type ErrorResponse struct {
	Error   string `json:"error"`   // error code (codes.go)
	Message string `json:"message"` // user facing message
}

// RespondWithError writes an error body
// statusCode: HTTP status
// errorCode: code constant from codes.go
// message: text shown to the user
func RespondWithError(c *gin.Context, statusCode int, errorCode string, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}

func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Silakan login terlebih dahulu"
	}
	RespondWithError(c, http.StatusUnauthorized, AuthUnauthorized, message)
}

func BadRequest(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusBadRequest, errorCode, message)
}

func NotFound(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusNotFound, errorCode, message)
}

func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "Terjadi kesalahan pada server. Silakan coba lagi"
	}
	RespondWithError(c, http.StatusInternalServerError, InternalServerError, message)
}

// ValidationError validation failure with per-field messages
type ValidationError struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func RespondWithValidationError(c *gin.Context, fields map[string]string) {
	c.JSON(http.StatusBadRequest, ValidationError{
		Error:   ValidationInvalidInput,
		Message: "Data yang dimasukkan tidak valid",
		Fields:  fields,
	})
}

// RespondWithServiceError parses err and answers with the matching status
func RespondWithServiceError(c *gin.Context, err error, context string) {
	if fields, ok := asFieldErrors(err); ok {
		RespondWithValidationError(c, fields)
		return
	}
	info := ParseError(err, context)
	RespondWithError(c, info.Status, info.Code, info.Message)
}
