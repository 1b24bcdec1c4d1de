package errors

// Error code constants
// Format: CATEGORY_SPECIFIC_DETAIL
// Clients map their messages from these codes

const (
	// ==================== Auth (AUTH_) ====================
	AuthUnauthorized = "AUTH_UNAUTHORIZED" // login required
	AuthTokenExpired = "AUTH_TOKEN_EXPIRED"
	AuthTokenInvalid = "AUTH_TOKEN_INVALID"

	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput  = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID     = "VALIDATION_INVALID_ID"
	ValidationInvalidFormat = "VALIDATION_INVALID_FORMAT"
	ValidationInvalidRange  = "VALIDATION_INVALID_RANGE"
	ValidationRequired      = "VALIDATION_REQUIRED"

	// ==================== Resources (RESOURCE_) ====================
	ResourceNotFound = "RESOURCE_NOT_FOUND"

	// ==================== Prices (PRICE_) ====================
	PriceNotFound      = "PRICE_NOT_FOUND"       // no national price for the commodity
	PriceInvalidDate   = "PRICE_INVALID_DATE"    // malformed or future date
	PriceInvalidAmount = "PRICE_INVALID_AMOUNT"  // price <= 0
	PriceMarketMissing = "PRICE_MARKET_REQUIRED" // market submission without market name

	// ==================== Overrides (OVERRIDE_) ====================
	OverrideRejected       = "OVERRIDE_REJECTED" // backend refused the override
	OverrideReasonTooShort = "OVERRIDE_REASON_TOO_SHORT"

	// ==================== Upload (UPLOAD_) ====================
	UploadInvalidFileType = "UPLOAD_INVALID_FILE_TYPE"
	UploadFileTooLarge    = "UPLOAD_FILE_TOO_LARGE"
	UploadFailed          = "UPLOAD_FAILED"

	// ==================== Upstream price backend (UPSTREAM_) ====================
	UpstreamUnavailable  = "UPSTREAM_UNAVAILABLE"  // network failure or timeout
	UpstreamUnauthorized = "UPSTREAM_UNAUTHORIZED" // token refused by the backend
	UpstreamRejected     = "UPSTREAM_REJECTED"     // business rule rejection, message relayed
	UpstreamBadResponse  = "UPSTREAM_BAD_RESPONSE"

	// ==================== Internal (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API"
	InternalConfigError   = "INTERNAL_CONFIG_ERROR"
)
