package scrape

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// BlockKind classifies an upstream response into a recovery-actionable
// category.
type BlockKind string

const (
	BlockNone          BlockKind = "none"
	BlockRateLimit     BlockKind = "rate_limit"
	BlockLoginRequired BlockKind = "login_required"
	BlockCaptcha       BlockKind = "captcha"
	BlockIPBan         BlockKind = "ip_ban"
)

// RecoveryAction is what a caller should do about a detected block.
type RecoveryAction string

const (
	ActionNone         RecoveryAction = "none"
	ActionWait         RecoveryAction = "wait"
	ActionUseAuth      RecoveryAction = "use_auth"
	ActionSolveCaptcha RecoveryAction = "captcha_solve"
	ActionRotateProxy  RecoveryAction = "rotate_proxy"
)

// Block is the outcome of block detection on one response.
type Block struct {
	Kind       BlockKind
	Confidence float64
	Action     RecoveryAction
	// Wait is the recommended back-off before the next attempt, when the
	// kind implies one.
	Wait time.Duration
}

// Blocked reports whether the response was classified as any block kind.
func (b Block) Blocked() bool {
	return b.Kind != BlockNone
}

var loginMarkers = []string{
	"login_required",
	"loginform",
	"please log in",
	"log in to continue",
	"not logged in",
	"/accounts/login",
}

var captchaMarkers = []string{
	"captcha",
	"recaptcha",
	"challenge_required",
	"checkpoint_required",
	"verify you are human",
	"suspicious activity",
}

var ipBanMarkers = []string{
	"ip address has been blocked",
	"access from your network",
	"unusual traffic from your network",
}

// DetectBlock classifies a response by status and body content. Order
// matters: an explicit 429 is unambiguous and checked first, then
// authentication signals, then CAPTCHA markers, and last the narrow IP-ban
// heuristic, so that an ordinary auth failure is never misread as a ban.
func DetectBlock(status int, body string, headers http.Header) Block {
	lower := strings.ToLower(body)

	if status == http.StatusTooManyRequests {
		return Block{
			Kind:       BlockRateLimit,
			Confidence: 1.0,
			Action:     ActionWait,
			Wait:       retryAfter(headers, time.Minute),
		}
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		if containsAny(lower, loginMarkers) {
			return Block{Kind: BlockLoginRequired, Confidence: 0.9, Action: ActionUseAuth}
		}
	} else if containsAny(lower, loginMarkers) {
		return Block{Kind: BlockLoginRequired, Confidence: 0.7, Action: ActionUseAuth}
	}

	if containsAny(lower, captchaMarkers) {
		return Block{Kind: BlockCaptcha, Confidence: 0.8, Action: ActionSolveCaptcha}
	}

	if status == http.StatusForbidden && containsAny(lower, ipBanMarkers) {
		return Block{
			Kind:       BlockIPBan,
			Confidence: 0.6,
			Action:     ActionRotateProxy,
			Wait:       time.Hour,
		}
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		// Auth-class status without any body marker: still an auth problem,
		// lower confidence.
		return Block{Kind: BlockLoginRequired, Confidence: 0.5, Action: ActionUseAuth}
	}

	return Block{Kind: BlockNone, Action: ActionNone}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// retryAfter honors a Retry-After header when present, with a fallback.
func retryAfter(headers http.Header, fallback time.Duration) time.Duration {
	if headers == nil {
		return fallback
	}
	v := headers.Get("Retry-After")
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
