package middleware

import (
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hargapangan/pangan-monitor/pkg/logger"
)

// RequestIDHeader header carrying the request id in both directions
const RequestIDHeader = "X-Request-ID"

const loggerKey = "logger"

// quiet paths are logged at debug level only
var quietPaths = map[string]bool{
	"/health": true,
}

// LoggingMiddleware tags every request with an id and logs its outcome
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		reqLog := logger.WithContext(logger.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"ip":         c.ClientIP(),
		})
		c.Set(loggerKey, reqLog)

		c.Next()

		status := c.Writer.Status()
		latency := time.Since(started)
		fields := logger.Fields{
			"status_code": status,
			"latency_ms":  latency.Milliseconds(),
			"body_size":   c.Writer.Size(),
			"user_agent":  c.Request.UserAgent(),
		}
		if query := redactedQuery(c.Request.URL.Query()); query != "" {
			fields["query"] = query
		}
		if userID, ok := GetUserID(c); ok {
			fields["user_id"] = userID
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch {
		case status >= 500:
			reqLog.Error("Request failed", nil, fields)
		case status >= 400:
			reqLog.Warn("Request rejected", fields)
		case quietPaths[c.Request.URL.Path]:
			reqLog.Debug("Request completed", fields)
		default:
			reqLog.Info("Request completed", fields)
		}
	}
}

// redactedQuery encodes the query with credentials masked.
// The live feed takes its bearer token from the query string.
func redactedQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	if _, ok := values["token"]; ok {
		masked := url.Values{}
		for k, v := range values {
			masked[k] = v
		}
		masked["token"] = []string{"REDACTED"}
		values = masked
	}
	return values.Encode()
}

// GetLoggerFromContext request logger, or the global one outside a request
func GetLoggerFromContext(c *gin.Context) *logger.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*logger.Logger); ok {
			return l
		}
	}
	return logger.Get()
}
