package twofactor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
)

// TOTP parameters: the standard 30-second step, 6 digits.
const (
	totpStep   = 30 * time.Second
	totpDigits = 6
)

// ErrBadTOTPSecret is returned for secrets that cannot generate codes.
var ErrBadTOTPSecret = errors.New("TOTP secret must be at least 16 base32 characters")

// TOTPGenerator produces time-stepped numeric codes from a shared secret.
type TOTPGenerator struct {
	secret string
}

// NewTOTPGenerator validates the shared secret and returns a generator.
func NewTOTPGenerator(secret string) (*TOTPGenerator, error) {
	secret = normalizeSecret(secret)
	if len(secret) < 16 {
		return nil, ErrBadTOTPSecret
	}
	// Reject secrets the underlying codec cannot decode.
	if _, err := totp.GenerateCode(secret, time.Now()); err != nil {
		return nil, ErrBadTOTPSecret
	}
	return &TOTPGenerator{secret: secret}, nil
}

func normalizeSecret(secret string) string {
	secret = strings.ToUpper(strings.ReplaceAll(secret, " ", ""))
	return strings.TrimRight(secret, "=")
}

// Generate returns the 6-digit code for the current time step.
func (g *TOTPGenerator) Generate() (string, error) {
	return g.GenerateAt(time.Now())
}

// GenerateAt returns the code for the step containing t.
func (g *TOTPGenerator) GenerateAt(t time.Time) (string, error) {
	return totp.GenerateCode(g.secret, t)
}

// Verify reports whether the code is valid for the current step.
func (g *TOTPGenerator) Verify(code string) bool {
	return totp.Validate(code, g.secret)
}

// RemainingValidity returns how long the current step's code stays valid.
func (g *TOTPGenerator) RemainingValidity() time.Duration {
	return remainingAt(time.Now())
}

func remainingAt(t time.Time) time.Duration {
	elapsed := time.Duration(t.Unix()%int64(totpStep.Seconds())) * time.Second
	return totpStep - elapsed
}

// WaitForFreshCode generates a code, proactively waiting for the next step
// boundary when the current code's remaining validity is below margin. This
// avoids the race where a code expires mid-transit.
func (g *TOTPGenerator) WaitForFreshCode(ctx context.Context, margin time.Duration) (string, error) {
	if margin <= 0 || margin >= totpStep {
		margin = 5 * time.Second
	}

	if remaining := g.RemainingValidity(); remaining < margin {
		timer := time.NewTimer(remaining)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return g.Generate()
}
