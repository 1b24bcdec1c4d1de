package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/hargapangan/pangan-monitor/internal/errors"
)

// queryUint parses an optional unsigned query parameter. It answers 400 and
// returns false when the value is malformed.
func queryUint(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		apperrors.RespondWithValidationError(c, map[string]string{name: "must be a positive integer"})
		return 0, false
	}
	return uint(v), true
}

// queryInt parses an optional non-negative integer query parameter
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		apperrors.RespondWithValidationError(c, map[string]string{name: "must be a non-negative integer"})
		return 0, false
	}
	return v, true
}

func paramID(c *gin.Context, message string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, message)
		return 0, false
	}
	return uint(id), true
}
