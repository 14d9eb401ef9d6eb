package instagram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"reelscraper/pkg/auth"
	errs "reelscraper/pkg/errors"
)

func testClientCredentials() *auth.Credentials {
	return auth.New("123%3Aabcdefexample", "csrfexampletoken1234", "123", "NEP")
}

func TestLooksLikeHTML(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"doctype", "<!DOCTYPE html><html>", true},
		{"html tag", "<html lang=\"en\">", true},
		{"leading whitespace", "  \n <html>", true},
		{"any markup", "<div>login</div>", true},
		{"json object", `{"status":"ok"}`, false},
		{"json array", `[1,2,3]`, false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooksLikeHTML([]byte(tt.body)); got != tt.want {
				t.Errorf("LooksLikeHTML(%q) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}

func TestGetJSONDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, nil)
	var out struct {
		Status string `json:"status"`
	}
	status, err := c.GetJSON(context.Background(), srv.URL, &out)
	if err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if status != http.StatusOK || out.Status != "ok" {
		t.Errorf("Got status %d body %+v", status, out)
	}
}

func TestGetJSONMarkupIsMalformedResponse(t *testing.T) {
	// A login interstitial served where JSON was expected must surface as a
	// malformed-response error carrying a body snippet, not a parse error.
	page := "<!DOCTYPE html><html><body>Please log in</body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, nil)
	var out map[string]interface{}
	_, err := c.GetJSON(context.Background(), srv.URL, &out)

	var apiErr *errs.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected typed error, got %v", err)
	}
	if apiErr.Type != errs.ErrorTypeMalformedResponse {
		t.Errorf("Type = %s, want malformed_response", apiErr.Type)
	}
	if apiErr.Snippet == "" || !strings.Contains(apiErr.Snippet, "<!DOCTYPE") {
		t.Errorf("Snippet = %q, want leading bytes of the markup", apiErr.Snippet)
	}
}

func TestGetJSONStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   errs.ErrorType
	}{
		{http.StatusTooManyRequests, errs.ErrorTypeRateLimit},
		{http.StatusUnauthorized, errs.ErrorTypeAuth},
		{http.StatusForbidden, errs.ErrorTypeAuth},
		{http.StatusNotFound, errs.ErrorTypeNotFound},
		{http.StatusBadGateway, errs.ErrorTypeServerError},
		{http.StatusTeapot, errs.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		c := NewClient(5*time.Second, nil)
		var out map[string]interface{}
		status, err := c.GetJSON(context.Background(), srv.URL, &out)
		srv.Close()

		if status != tt.status {
			t.Errorf("Status = %d, want %d", status, tt.status)
		}
		var apiErr *errs.Error
		if !errors.As(err, &apiErr) {
			t.Fatalf("Status %d: expected typed error, got %v", tt.status, err)
		}
		if apiErr.Type != tt.want {
			t.Errorf("Status %d mapped to %s, want %s", tt.status, apiErr.Type, tt.want)
		}
		if apiErr.Code != tt.status {
			t.Errorf("Status %d: error code = %d", tt.status, apiErr.Code)
		}
	}
}

func TestGetBodyNetworkFailure(t *testing.T) {
	c := NewClient(time.Second, nil)
	status, _, err := c.GetBody(context.Background(), "http://127.0.0.1:1/unreachable")
	if status != 0 {
		t.Errorf("Status = %d, want 0 for transport failure", status)
	}
	var apiErr *errs.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected typed error, got %v", err)
	}
	if apiErr.Type != errs.ErrorTypeNetwork {
		t.Errorf("Type = %s, want network", apiErr.Type)
	}
}

func TestClientSendsCredentialHeaders(t *testing.T) {
	var gotCookie, gotCSRF string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotCSRF = r.Header.Get("x-csrftoken")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, nil)
	c.SetCredentials(testClientCredentials())

	var out map[string]interface{}
	if _, err := c.GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}

	for _, fragment := range []string{"sessionid=", "csrftoken=", "ds_user_id=123", "rur="} {
		if !strings.Contains(gotCookie, fragment) {
			t.Errorf("Cookie header %q missing %q", gotCookie, fragment)
		}
	}
	if gotCSRF == "" {
		t.Error("CSRF header not sent")
	}

	c.ClearCredentials()
	if _, err := c.GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if gotCookie != "" {
		t.Errorf("Cookie header still sent after clear: %q", gotCookie)
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultFetchLimit},
		{-5, DefaultFetchLimit},
		{1, 1},
		{MaxFetchLimit, MaxFetchLimit},
		{MaxFetchLimit + 1, MaxFetchLimit},
		{1000, MaxFetchLimit},
	}

	for _, tt := range tests {
		if got := ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestURLBuilders(t *testing.T) {
	if got := ReelURL("Cxyz_-1"); got != BaseURL+"/reel/Cxyz_-1/" {
		t.Errorf("ReelURL = %q", got)
	}
	if got := ProfileURL("naturecam"); !strings.Contains(got, "username=naturecam") {
		t.Errorf("ProfileURL = %q", got)
	}
	if got := UserReelsURL("123", 200); !strings.Contains(got, "page_size=50") {
		t.Errorf("UserReelsURL did not clamp: %q", got)
	}
	if got := OEmbedURL("https://x.test/a?b=c"); !strings.Contains(got, "url=https%3A%2F%2Fx.test") {
		t.Errorf("OEmbedURL did not escape target: %q", got)
	}
}
