package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeTimeout          = "SCRAPE_TIMEOUT"
	ErrCodeNavigation       = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash     = "BROWSER_CRASH"
	ErrCodeSoftBlocked      = "SOFT_BLOCKED"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeCaptcha          = "CAPTCHA_DETECTED"
	ErrCodeRetriesExhausted = "RETRIES_EXHAUSTED"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeInvalidStatus    = "INVALID_TRANSITION"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeCycleInProgress  = "CYCLE_IN_PROGRESS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternal         = "INTERNAL_ERROR"

	// Text generation failures. Callers normally fall back to a template
	// before these reach an API response.
	ErrCodeLLMFailure     = "LLM_FAILURE"
	ErrCodeLLMAuthFailure = "LLM_AUTH_FAILURE"
	ErrCodeLLMRateLimited = "LLM_RATE_LIMITED"

	ErrCodeMailerDisabled    = "MAILER_NOT_CONFIGURED"
	ErrCodeApplicationFailed = "APPLICATION_FAILED"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error code.
// Scrapers, the store adapters and the API all speak it so a failure keeps
// its classification from the fetch layer up to the HTTP response.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}
