package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	errs "reelscraper/pkg/errors"
	"reelscraper/pkg/logger"
)

// Client is a thin caller for a downstream generative content API. The
// contract is deliberately narrow: send a plain text prompt, accept either
// plain text or a JSON object back. Markup in the body is the signature of
// an interstitial or error page and is rejected before any parse attempt.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	log        logger.Logger
}

// Response is the generative API's reply: the raw text, plus the decoded
// object when the body was JSON.
type Response struct {
	Text   string
	Fields map[string]interface{}
}

// NewClient creates a generative API client.
func NewClient(endpoint, apiKey string, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log.WithField("component", "generate"),
	}
}

// Generate sends a prompt and returns the reply.
func (c *Client) Generate(ctx context.Context, prompt string) (*Response, error) {
	payload, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, "failed to encode prompt", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(errs.ErrorTypeTimeout, "generation request timed out", err)
		}
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "generation request failed", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "failed to read generation response", err)
	}
	body := buf.String()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errs.Newf(errs.ErrorTypeServerError, "generation API returned status %d", resp.StatusCode).
			WithCode(resp.StatusCode).WithSnippet(body)
	}

	return ParseResponse(body)
}

// ParseResponse interprets a generative API body. JSON objects are decoded;
// anything else is taken as plain text, except markup, which is rejected as
// a malformed response.
func ParseResponse(body string) (*Response, error) {
	trimmed := strings.TrimSpace(body)

	if strings.HasPrefix(trimmed, "<") {
		return nil, errs.New(errs.ErrorTypeMalformedResponse,
			"generation API returned markup instead of text or JSON").WithSnippet(trimmed)
	}

	if strings.HasPrefix(trimmed, "{") {
		var fields map[string]interface{}
		if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeMalformedResponse,
				"generation API returned invalid JSON", err).WithSnippet(trimmed)
		}
		resp := &Response{Text: trimmed, Fields: fields}
		if text, ok := fields["text"].(string); ok {
			resp.Text = text
		}
		return resp, nil
	}

	return &Response{Text: trimmed}, nil
}
