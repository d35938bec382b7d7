package errors

import "fmt"

// APIError is the standardized error returned by the portal's HTTP surface.
type APIError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	RetryAfter  int    `json:"retry_after,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Error codes. Validation and auth failures are safe to show to the client;
// upstream and server failures are surfaced generically and logged with
// detail server-side.
const (
	ValidationError = "validation_error"
	AuthError       = "auth_error"
	ConflictError   = "conflict"
	RateLimited     = "rate_limited"
	UpstreamError   = "upstream_error"
	IntegrityError  = "integrity_error"
	ServerError     = "server_error"
	NotFound        = "not_found"
)

func NewValidation(description string) *APIError {
	return &APIError{
		Code:        ValidationError,
		Description: description,
	}
}

func NewAuth(description string) *APIError {
	return &APIError{
		Code:        AuthError,
		Description: description,
	}
}

func NewConflict(description string) *APIError {
	return &APIError{
		Code:        ConflictError,
		Description: description,
	}
}

// NewRateLimited reports a retryable rejection with the seconds remaining
// until the window resets.
func NewRateLimited(retryAfterSeconds int) *APIError {
	return &APIError{
		Code:        RateLimited,
		Description: fmt.Sprintf("Too many requests. Try again in %d seconds.", retryAfterSeconds),
		RetryAfter:  retryAfterSeconds,
	}
}

func NewUpstream(description string) *APIError {
	return &APIError{
		Code:        UpstreamError,
		Description: description,
	}
}

// NewIntegrity marks stored ciphertext that failed authenticated decryption.
// Never downgraded to a plaintext result.
func NewIntegrity(description string) *APIError {
	return &APIError{
		Code:        IntegrityError,
		Description: description,
	}
}

func NewServer(description string) *APIError {
	return &APIError{
		Code:        ServerError,
		Description: description,
	}
}

func NewNotFound(description string) *APIError {
	return &APIError{
		Code:        NotFound,
		Description: description,
	}
}
