package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelscraper/pkg/auth"
	errs "reelscraper/pkg/errors"
	"reelscraper/pkg/logger"
)

// Client is an HTTP client that presents itself as a browser and carries the
// cookie set of an authenticated identity when one is attached.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	logger     logger.Logger
}

// NewClient creates a client with browser-equivalent default headers.
func NewClient(timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			"Accept":          "*/*",
			"Accept-Language": "en-US,en;q=0.9",
			"X-IG-App-ID":     WebAppID,
			"X-Requested-With": "XMLHttpRequest",
		},
		baseURL: BaseURL,
		logger:  log,
	}
}

// SetHeader sets a custom header for all subsequent requests.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetCredentials attaches a credential set: the cookie header is rebuilt
// from all four tokens and the CSRF header is set.
func (c *Client) SetCredentials(creds *auth.Credentials) {
	cookies := []string{
		fmt.Sprintf("sessionid=%s", creds.SessionID),
		fmt.Sprintf("csrftoken=%s", creds.CSRFToken),
		fmt.Sprintf("ds_user_id=%s", creds.UserID),
		fmt.Sprintf("rur=%s", creds.MachineID),
	}
	c.headers["Cookie"] = strings.Join(cookies, "; ")
	c.headers["x-csrftoken"] = creds.CSRFToken
}

// ClearCredentials drops any attached cookie material.
func (c *Client) ClearCredentials() {
	delete(c.headers, "Cookie")
	delete(c.headers, "x-csrftoken")
}

// GetBody performs a GET and returns the raw status and body. Transport
// failures come back as typed network errors with code 0.
func (c *Client) GetBody(ctx context.Context, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, errs.Wrap(errs.ErrorTypeUnknown, "failed to create request", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"duration": duration,
		})
		if ctx.Err() != nil || strings.Contains(err.Error(), "Client.Timeout") {
			return 0, nil, errs.Wrap(errs.ErrorTypeTimeout, "request timed out", err)
		}
		return 0, nil, errs.Wrap(errs.ErrorTypeNetwork, "network error", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, errs.Wrap(errs.ErrorTypeNetwork, "failed to read response body", err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      url,
		"status":   resp.StatusCode,
		"duration": duration,
	})
	return resp.StatusCode, body, nil
}

// GetJSON performs a GET and decodes a JSON response into target. Receiving
// markup where JSON was expected is the classic symptom of being served a
// login or interstitial page; it surfaces as a malformed-response error with
// a snippet, distinct from a generic parse failure.
func (c *Client) GetJSON(ctx context.Context, url string, target interface{}) (int, error) {
	status, body, err := c.GetBody(ctx, url)
	if err != nil {
		return status, err
	}

	if status < 200 || status > 299 {
		return status, statusError(status, string(body))
	}

	if LooksLikeHTML(body) {
		return status, errs.New(errs.ErrorTypeMalformedResponse,
			"expected JSON but received markup").WithCode(status).WithSnippet(string(body))
	}

	if err := json.Unmarshal(body, target); err != nil {
		return status, errs.Wrap(errs.ErrorTypeParsing, "failed to decode JSON response", err).WithCode(status)
	}
	return status, nil
}

// LooksLikeHTML sniffs a body for markup before any JSON parse is attempted.
func LooksLikeHTML(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return false
	}
	lower := strings.ToLower(trimmed)
	return strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html") ||
		strings.HasPrefix(trimmed, "<")
}

// statusError maps a non-2xx response to the error taxonomy.
func statusError(status int, body string) *errs.Error {
	switch {
	case status == http.StatusTooManyRequests:
		return errs.New(errs.ErrorTypeRateLimit, "rate limited by upstream").WithCode(status)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errs.New(errs.ErrorTypeAuth, "authentication rejected").WithCode(status).WithSnippet(body)
	case status == http.StatusNotFound:
		return errs.New(errs.ErrorTypeNotFound, "resource not found").WithCode(status)
	case status >= 500:
		return errs.Newf(errs.ErrorTypeServerError, "server returned status %d", status).WithCode(status)
	default:
		return errs.Newf(errs.ErrorTypeUnknown, "unexpected status %d", status).WithCode(status)
	}
}
