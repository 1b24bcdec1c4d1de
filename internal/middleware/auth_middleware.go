package middleware

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hargapangan/pangan-monitor/internal/errors"
	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/pkg/util"
)

// Context keys for user information
const (
	UserIDKey    = "user_id"
	UserEmailKey = "user_email"
	UserRoleKey  = "user_role"
	SessionKey   = "session"
)

type AuthMiddleware struct {
	jwtSecret string
}

func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
	}
}

var (
	errMalformedHeader = stderrors.New("malformed authorization header")
	errMissingToken    = stderrors.New("missing token")
)

// bearerToken reads the Authorization header, falling back to the token
// query parameter when allowQuery is set. Browsers cannot set headers on
// WebSocket upgrades.
func bearerToken(c *gin.Context, allowQuery bool) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if token := c.Query("token"); allowQuery && token != "" {
			return token, nil
		}
		return "", errMissingToken
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" || token == "" || strings.Contains(token, " ") {
		return "", errMalformedHeader
	}
	return token, nil
}

// identify validates token and stores the caller and its upstream session on c
func (m *AuthMiddleware) identify(c *gin.Context, token string) (*util.Claims, error) {
	claims, err := util.ValidateToken(token, m.jwtSecret)
	if err != nil {
		return nil, err
	}
	c.Set(UserIDKey, claims.SubjectID())
	c.Set(UserEmailKey, claims.Email)
	c.Set(UserRoleKey, claims.Role)
	c.Set(SessionKey, hargaapi.Session{Token: token})
	return claims, nil
}

// Authenticate rejects requests without a valid bearer token
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		token, err := bearerToken(c, true)
		if err != nil {
			log.Warn("Request without usable credentials", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			if err == errMalformedHeader {
				errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenInvalid, "Format otorisasi tidak valid")
			} else {
				errors.Unauthorized(c, "")
			}
			c.Abort()
			return
		}

		claims, err := m.identify(c, token)
		if err != nil {
			log.Warn("Token validation failed", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			if err == util.ErrExpiredToken {
				errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenExpired, "Sesi Anda telah berakhir. Silakan login kembali")
			} else {
				errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenInvalid, "Token tidak valid")
			}
			c.Abort()
			return
		}

		log.Debug("Caller authenticated", map[string]interface{}{
			"user_id": claims.SubjectID(),
			"role":    claims.Role,
		})
		c.Next()
	}
}

// OptionalAuthenticate identifies the caller when a valid bearer header is
// sent. Anyone else continues as a guest and reads the backend anonymously.
func (m *AuthMiddleware) OptionalAuthenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c, false)
		if err == errMissingToken {
			c.Next()
			return
		}
		if err == nil {
			_, err = m.identify(c, token)
		}
		if err != nil {
			GetLoggerFromContext(c).Debug("Continuing as guest", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
		}
		c.Next()
	}
}

// GetUserID extracts user ID from context
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok
}

// GetUserRole extracts user role from context
func GetUserRole(c *gin.Context) (string, bool) {
	role, exists := c.Get(UserRoleKey)
	if !exists {
		return "", false
	}
	r, ok := role.(string)
	return r, ok
}

// GetSession returns the upstream session of the authenticated caller
func GetSession(c *gin.Context) (hargaapi.Session, bool) {
	sess, exists := c.Get(SessionKey)
	if !exists {
		return hargaapi.Session{}, false
	}
	s, ok := sess.(hargaapi.Session)
	return s, ok
}
