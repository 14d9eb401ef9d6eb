package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"reelscraper/pkg/instagram"
)

func probeServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestValidatorLiveProbe(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantValid    bool
		wantReason   string
		wantTerminal bool
	}{
		{"ok", http.StatusOK, `{"form_data":{"username":"someone"},"status":"ok"}`, true, "", false},
		{"unauthorized", http.StatusUnauthorized, `{"message":"login_required"}`, false, ReasonAuthFailed, true},
		{"forbidden", http.StatusForbidden, `{}`, false, ReasonAuthFailed, true},
		{"rate limited", http.StatusTooManyRequests, `{}`, false, ReasonRateLimited, false},
		{"server error", http.StatusBadGateway, `{}`, false, ReasonAPIError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := probeServer(t, tt.status, tt.body)

			v := NewValidator(instagram.NewClient(5*time.Second, nil), nil)
			v.SetProbeURL(srv.URL)

			result := v.Validate(context.Background(), validCreds(time.Hour))
			assert.Equal(t, tt.wantValid, result.IsValid)
			assert.Equal(t, tt.wantReason, result.Reason)
			assert.Equal(t, tt.wantTerminal, result.Terminal)
		})
	}
}

func TestValidatorOwnerIDFromCredentials(t *testing.T) {
	// The response body names a different user; the owner id must still come
	// from the credential set.
	srv := probeServer(t, http.StatusOK, `{"form_data":{"username":"whoever"},"status":"ok"}`)

	v := NewValidator(instagram.NewClient(5*time.Second, nil), nil)
	v.SetProbeURL(srv.URL)

	creds := validCreds(time.Hour)
	result := v.Validate(context.Background(), creds)
	assert.True(t, result.IsValid)
	assert.Equal(t, creds.UserID, result.UserID)
}

func TestValidatorNetworkFailureIsNotTerminal(t *testing.T) {
	srv := probeServer(t, http.StatusOK, "{}")
	srv.Close() // probe now hits a dead server

	v := NewValidator(instagram.NewClient(time.Second, nil), nil)
	v.SetProbeURL(srv.URL)

	result := v.Validate(context.Background(), validCreds(time.Hour))
	assert.False(t, result.IsValid)
	assert.Equal(t, ReasonNetwork, result.Reason)
	assert.False(t, result.Terminal)
}

func TestValidatePresence(t *testing.T) {
	v := NewValidator(instagram.NewClient(time.Second, nil), nil)

	assert.NoError(t, v.ValidatePresence(validCreds(time.Hour)))
	assert.Error(t, v.ValidatePresence(nil))

	incomplete := validCreds(time.Hour)
	incomplete.CSRFToken = ""
	assert.Error(t, v.ValidatePresence(incomplete))
}
