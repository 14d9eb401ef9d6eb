package twofactor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHandlerBadTOTPSecretFailsAtConstruction(t *testing.T) {
	_, err := NewHandler(HandlerConfig{TOTPSecret: "tooshort"}, nil, nil)
	if !errors.Is(err, ErrBadTOTPSecret) {
		t.Errorf("Expected ErrBadTOTPSecret, got %v", err)
	}
}

func TestHandlerResolvesTOTP(t *testing.T) {
	h, err := NewHandler(HandlerConfig{TOTPSecret: testSecret}, nil, nil)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}

	result, err := h.Resolve(context.Background(), &Challenge{Method: MethodTOTP})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if result.Method != MethodTOTP {
		t.Errorf("Method = %s, want totp", result.Method)
	}
	if len(result.Code) != 6 {
		t.Errorf("Unexpected code %q", result.Code)
	}
}

func TestHandlerChallengeMethodTriedFirst(t *testing.T) {
	provided := false
	provider := CodeProvider(func(ctx context.Context) (string, error) {
		provided = true
		return "123456", nil
	})

	h, err := NewHandler(HandlerConfig{
		TOTPSecret: testSecret,
		Provider:   provider,
		SMSTimeout: time.Second,
	}, nil, nil)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}

	// Detected method is SMS, so the provider must win over the configured
	// TOTP generator.
	result, err := h.Resolve(context.Background(), &Challenge{Method: MethodSMS})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if result.Method != MethodSMS || !provided {
		t.Errorf("Expected SMS resolution, got %s (provider called: %v)", result.Method, provided)
	}
}

func TestHandlerFallsBackAcrossMethods(t *testing.T) {
	failing := CodeProvider(func(ctx context.Context) (string, error) {
		return "", errors.New("gateway unreachable")
	})

	h, err := NewHandler(HandlerConfig{
		Provider:             failing,
		BackupCodes:          []string{"87654321"},
		MaxAttemptsPerMethod: 2,
	}, nil, nil)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}

	result, err := h.Resolve(context.Background(), &Challenge{Method: MethodSMS})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if result.Method != MethodBackupCode {
		t.Errorf("Method = %s, want backup_code", result.Method)
	}
	if result.Code != "87654321" {
		t.Errorf("Code = %q", result.Code)
	}
}

func TestHandlerBackupExhaustionIsTerminal(t *testing.T) {
	h, err := NewHandler(HandlerConfig{
		BackupCodes:          []string{"11112222"},
		MaxAttemptsPerMethod: 5,
	}, nil, nil)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}

	if _, err := h.Resolve(context.Background(), &Challenge{Method: MethodBackupCode}); err != nil {
		t.Fatalf("First resolve failed: %v", err)
	}

	// The only code is consumed; the exhausted method drops out of the
	// candidate list instead of being retried five times.
	_, err = h.Resolve(context.Background(), &Challenge{Method: MethodBackupCode})
	var tfErr *Error
	if !errors.As(err, &tfErr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
}

func TestHandlerNoMethodsConfigured(t *testing.T) {
	h, err := NewHandler(HandlerConfig{}, nil, nil)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	if _, err := h.Resolve(context.Background(), &Challenge{Method: MethodSMS}); err == nil {
		t.Error("Expected error with no methods configured")
	}
}

func TestHandlerErrorReportsLastMethod(t *testing.T) {
	failing := CodeProvider(func(ctx context.Context) (string, error) {
		return "", errors.New("gateway unreachable")
	})
	h, err := NewHandler(HandlerConfig{Provider: failing, MaxAttemptsPerMethod: 1}, nil, nil)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}

	_, err = h.Resolve(context.Background(), &Challenge{Method: MethodSMS})
	var tfErr *Error
	if !errors.As(err, &tfErr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if tfErr.Method != MethodSMS {
		t.Errorf("Last method = %s, want sms", tfErr.Method)
	}
}
