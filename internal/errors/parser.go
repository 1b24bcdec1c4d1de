package errors

import (
	"errors"
	"net/http"
	"strings"

	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/internal/reconcile"
	"gorm.io/gorm"
)

// ErrorInfo parsed error
type ErrorInfo struct {
	Code    string // codes.go
	Message string // user facing message
	Status  int    // HTTP status to answer with
}

// ParseError converts err into a code and a user facing message.
// Backend rejections keep the backend's own text.
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			Code:    InternalServerError,
			Message: "Terjadi kesalahan pada server",
			Status:  http.StatusInternalServerError,
		}
	}

	// 1. price backend
	if msg, ok := hargaapi.RejectionMessage(err); ok {
		code := UpstreamRejected
		if strings.Contains(strings.ToLower(context), "override") {
			code = OverrideRejected
		}
		return ErrorInfo{Code: code, Message: msg, Status: rejectionStatus(err)}
	}
	if errors.Is(err, hargaapi.ErrUnauthorized) {
		return ErrorInfo{
			Code:    UpstreamUnauthorized,
			Message: "Sesi Anda telah berakhir. Silakan login kembali",
			Status:  http.StatusUnauthorized,
		}
	}
	if errors.Is(err, hargaapi.ErrNotFound) {
		return ErrorInfo{Code: ResourceNotFound, Message: getNotFoundMessage(context), Status: http.StatusNotFound}
	}
	if errors.Is(err, hargaapi.ErrNetwork) {
		return ErrorInfo{
			Code:    UpstreamUnavailable,
			Message: "Gagal terhubung ke server harga. Silakan coba lagi",
			Status:  http.StatusBadGateway,
		}
	}
	if errors.Is(err, hargaapi.ErrUnexpectedResponse) {
		return ErrorInfo{
			Code:    UpstreamBadResponse,
			Message: "Server harga mengembalikan respons yang tidak dikenali",
			Status:  http.StatusBadGateway,
		}
	}

	// 2. malformed payloads that reached a single-record path
	if errors.Is(err, reconcile.ErrMalformedRecord) {
		return ErrorInfo{Code: ValidationInvalidFormat, Message: "Data harga tidak valid", Status: http.StatusUnprocessableEntity}
	}

	// 3. GORM
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorInfo{Code: ResourceNotFound, Message: getNotFoundMessage(context), Status: http.StatusNotFound}
	}

	errStrLower := strings.ToLower(err.Error())

	if strings.Contains(errStrLower, "duplicate key") || strings.Contains(errStrLower, "unique constraint") {
		return ErrorInfo{Code: InternalDatabaseError, Message: "Data sudah ada", Status: http.StatusConflict}
	}

	// 4. network
	if strings.Contains(errStrLower, "connection refused") ||
		strings.Contains(errStrLower, "no such host") ||
		strings.Contains(errStrLower, "timeout") {
		return ErrorInfo{
			Code:    InternalExternalAPI,
			Message: "Gagal terhubung ke layanan eksternal. Silakan coba lagi",
			Status:  http.StatusBadGateway,
		}
	}

	return ErrorInfo{
		Code:    InternalServerError,
		Message: getDefaultErrorMessage(context),
		Status:  http.StatusInternalServerError,
	}
}

func rejectionStatus(err error) int {
	var rejected *hargaapi.RejectedError
	if errors.As(err, &rejected) && rejected.StatusCode >= 400 && rejected.StatusCode < 500 {
		return rejected.StatusCode
	}
	return http.StatusUnprocessableEntity
}

func asFieldErrors(err error) (map[string]string, bool) {
	fields, ok := reconcile.AsFieldErrors(err)
	if !ok {
		return nil, false
	}
	return map[string]string(fields), true
}

// getNotFoundMessage not found message per context
func getNotFoundMessage(context string) string {
	contextLower := strings.ToLower(context)

	if strings.Contains(contextLower, "market") {
		return "Data harga pasar tidak ditemukan"
	}
	if strings.Contains(contextLower, "override") {
		return "Data override tidak ditemukan"
	}
	if strings.Contains(contextLower, "commodity") || strings.Contains(contextLower, "price") {
		return "Harga komoditas tidak ditemukan"
	}

	return "Data yang diminta tidak ditemukan"
}

// getDefaultErrorMessage fallback message per context
func getDefaultErrorMessage(context string) string {
	contextLower := strings.ToLower(context)

	if strings.Contains(contextLower, "create") || strings.Contains(contextLower, "submit") {
		return "Gagal menyimpan data. Silakan coba lagi"
	}
	if strings.Contains(contextLower, "update") {
		return "Gagal memperbarui data. Silakan coba lagi"
	}
	if strings.Contains(contextLower, "delete") {
		return "Gagal menghapus data. Silakan coba lagi"
	}
	if strings.Contains(contextLower, "export") {
		return "Gagal membuat file ekspor. Silakan coba lagi"
	}

	return "Terjadi kesalahan pada server. Silakan coba lagi"
}

// ParseAndRespond parses err and answers with statusCode
func ParseAndRespond(c interface{ JSON(int, interface{}) }, statusCode int, err error, context string) {
	errorInfo := ParseError(err, context)
	c.JSON(statusCode, ErrorResponse{
		Error:   errorInfo.Code,
		Message: errorInfo.Message,
	})
}
