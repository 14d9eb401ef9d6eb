package twofactor

import (
	"context"
	"regexp"
	"testing"
	"time"
)

// A fixed 16+ character base32 secret.
const testSecret = "JBSWY3DPEHPK3PXPJBSWY3DP"

func TestTOTPGenerateAndVerify(t *testing.T) {
	gen, err := NewTOTPGenerator(testSecret)
	if err != nil {
		t.Fatalf("Failed to create generator: %v", err)
	}

	code, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !regexp.MustCompile(`^\d{6}$`).MatchString(code) {
		t.Errorf("Code %q is not a 6-digit numeric string", code)
	}
	if !gen.Verify(code) {
		t.Error("Freshly generated code did not verify")
	}
	if code != "000000" && gen.Verify("000000") {
		t.Error("Constant code verified against a differing fresh code")
	}
}

func TestTOTPDeterministicPerStep(t *testing.T) {
	gen, err := NewTOTPGenerator(testSecret)
	if err != nil {
		t.Fatalf("Failed to create generator: %v", err)
	}

	at := time.Date(2026, 8, 1, 10, 0, 5, 0, time.UTC)
	a, err := gen.GenerateAt(at)
	if err != nil {
		t.Fatalf("GenerateAt failed: %v", err)
	}
	b, err := gen.GenerateAt(at.Add(10 * time.Second)) // same 30s step
	if err != nil {
		t.Fatalf("GenerateAt failed: %v", err)
	}
	if a != b {
		t.Errorf("Codes differ within one step: %q vs %q", a, b)
	}

	c, err := gen.GenerateAt(at.Add(30 * time.Second))
	if err != nil {
		t.Fatalf("GenerateAt failed: %v", err)
	}
	if a == c {
		t.Error("Codes should differ across step boundaries")
	}
}

func TestTOTPSecretValidation(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		wantOK bool
	}{
		{"valid", testSecret, true},
		{"lowercase with spaces", "jbsw y3dp ehpk 3pxp", true},
		{"too short", "JBSWY3DP", false},
		{"empty", "", false},
		{"not base32", "1890!@#$%^&*()_+1890", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTOTPGenerator(tt.secret)
			if (err == nil) != tt.wantOK {
				t.Errorf("NewTOTPGenerator(%q) error = %v, wantOK %v", tt.secret, err, tt.wantOK)
			}
		})
	}
}

func TestWaitForFreshCode(t *testing.T) {
	gen, err := NewTOTPGenerator(testSecret)
	if err != nil {
		t.Fatalf("Failed to create generator: %v", err)
	}

	// A generous margin relative to remaining validity may wait; a cancelled
	// context must unblock it.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if gen.RemainingValidity() < 5*time.Second {
		if _, err := gen.WaitForFreshCode(ctx, 5*time.Second); err == nil {
			t.Error("Expected cancellation error while waiting for step boundary")
		}
		return
	}

	code, err := gen.WaitForFreshCode(ctx, 5*time.Second)
	if err != nil {
		t.Fatalf("WaitForFreshCode failed: %v", err)
	}
	if len(code) != 6 {
		t.Errorf("Unexpected code %q", code)
	}
}
