package session

import (
	"context"
	"net/http"
	"time"

	"reelscraper/pkg/auth"
	"reelscraper/pkg/instagram"
	"reelscraper/pkg/logger"
)

// Validation reasons.
const (
	ReasonAuthFailed  = "authentication_error"
	ReasonRateLimited = "rate_limited"
	ReasonAPIError    = "api_error"
	ReasonNetwork     = "validation_error"
)

// ValidationResult reports the outcome of a live credential probe.
type ValidationResult struct {
	IsValid bool
	// Reason is set when IsValid is false, or when a non-terminal condition
	// (rate limit, transport failure) prevented a definitive answer.
	Reason string
	// Terminal reports whether the credential set should be invalidated.
	// Rate limits and transport failures are not credential problems.
	Terminal  bool
	UserID    string
	CheckedAt time.Time
}

// Validator confirms that a credential set still authenticates against the
// target service.
type Validator struct {
	client   *instagram.Client
	probeURL string
	log      logger.Logger
}

// NewValidator creates a validator probing through the given client.
func NewValidator(client *instagram.Client, log logger.Logger) *Validator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Validator{
		client:   client,
		probeURL: instagram.CurrentUserURL(),
		log:      log.WithField("component", "session_validator"),
	}
}

// SetProbeURL overrides the probe endpoint.
func (v *Validator) SetProbeURL(url string) {
	v.probeURL = url
}

// ValidatePresence is the local-only fast path: it checks that all required
// credential fields exist without any network call.
func (v *Validator) ValidatePresence(creds *auth.Credentials) error {
	if creds == nil {
		return auth.ErrMissingSessionID
	}
	return creds.Validate()
}

// Validate performs a live probe against a lightweight authenticated
// endpoint. 401/403 is an authentication error, terminal for the credential
// set. 429 is a rate limit, not a credential problem. Transport failures are
// ambiguous and reported as non-terminal validation errors.
func (v *Validator) Validate(ctx context.Context, creds *auth.Credentials) *ValidationResult {
	result := &ValidationResult{CheckedAt: time.Now()}

	if err := v.ValidatePresence(creds); err != nil {
		result.Reason = ReasonAuthFailed
		result.Terminal = true
		return result
	}

	v.client.SetCredentials(creds)

	var probe instagram.CurrentUserResponse
	status, err := v.client.GetJSON(ctx, v.probeURL, &probe)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		result.Reason = ReasonAuthFailed
		result.Terminal = true
	case status == http.StatusTooManyRequests:
		result.Reason = ReasonRateLimited
	case err != nil && status == 0:
		result.Reason = ReasonNetwork
	case status < 200 || status > 299:
		result.Reason = ReasonAPIError
	case err != nil:
		// 2xx with an undecodable body still proves the cookie works.
		result.IsValid = true
	default:
		result.IsValid = true
	}

	if result.IsValid {
		// Owner id comes from the credential set, not the response body,
		// so every strategy sees the same identity.
		result.UserID = creds.UserID
	}

	v.log.DebugWithFields("session probe completed", map[string]interface{}{
		"status": status,
		"valid":  result.IsValid,
		"reason": result.Reason,
	})
	return result
}
