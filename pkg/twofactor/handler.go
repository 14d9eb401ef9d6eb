package twofactor

import (
	"context"
	"fmt"
	"time"

	"reelscraper/pkg/logger"
)

// Error reports a failed second-factor resolution, carrying the last method
// attempted and its failure reason.
type Error struct {
	Method Method
	Cause  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("two-factor resolution failed (last method %s): %v", e.Method, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Result is a successfully acquired second-factor code.
type Result struct {
	Method   Method
	Code     string
	Attempts int
}

// HandlerConfig wires the available code-acquisition paths.
type HandlerConfig struct {
	// TOTPSecret enables the TOTP path when non-empty.
	TOTPSecret string
	// BackupCodes enables the backup-code path when non-empty.
	BackupCodes []string
	// Provider enables programmatic SMS acquisition when non-nil.
	Provider CodeProvider
	// Interactive enables the stdin SMS prompt.
	Interactive bool
	// SMSTimeout bounds each interactive or polled wait.
	SMSTimeout time.Duration
	// MaxAttemptsPerMethod bounds retries within one method. Attempts are
	// independent across methods: a failed TOTP generation does not count
	// against the SMS budget.
	MaxAttemptsPerMethod int
}

// Handler resolves second-factor challenges during (re-)authentication.
type Handler struct {
	totp       *TOTPGenerator
	backup     *BackupCodes
	provider   CodeProvider
	prompter   *SMSPrompter
	smsTimeout time.Duration
	maxTries   int
	log        logger.Logger
}

// NewHandler builds a handler from the configured paths. A bad TOTP secret
// is a configuration error and fails here, not mid-login.
func NewHandler(cfg HandlerConfig, prompter *SMSPrompter, log logger.Logger) (*Handler, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	h := &Handler{
		provider:   cfg.Provider,
		smsTimeout: cfg.SMSTimeout,
		maxTries:   cfg.MaxAttemptsPerMethod,
		log:        log.WithField("component", "two_factor"),
	}
	if h.maxTries <= 0 {
		h.maxTries = 3
	}

	if cfg.TOTPSecret != "" {
		gen, err := NewTOTPGenerator(cfg.TOTPSecret)
		if err != nil {
			return nil, err
		}
		h.totp = gen
	}
	if len(cfg.BackupCodes) > 0 {
		h.backup = NewBackupCodes(cfg.BackupCodes)
	}
	if cfg.Interactive && prompter != nil {
		h.prompter = prompter
	}
	return h, nil
}

// Resolve acquires a code for the challenge, trying the challenge's own
// method first and falling back across the remaining configured methods.
// Each method gets its own independent attempt budget.
func (h *Handler) Resolve(ctx context.Context, ch *Challenge) (*Result, error) {
	order := h.methodOrder(ch)

	var lastErr *Error
	for _, method := range order {
		res, err := h.tryMethod(ctx, method, ch)
		if err == nil {
			return res, nil
		}
		h.log.WarnWithFields("two-factor method exhausted", map[string]interface{}{
			"method": string(method),
			"error":  err.Error(),
		})
		lastErr = &Error{Method: method, Cause: err}

		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		lastErr = &Error{Cause: fmt.Errorf("no two-factor methods configured")}
	}
	return nil, lastErr
}

// methodOrder puts the detected method first, then the other configured ones.
func (h *Handler) methodOrder(ch *Challenge) []Method {
	available := map[Method]bool{
		MethodTOTP:       h.totp != nil,
		MethodSMS:        h.provider != nil || h.prompter != nil,
		MethodBackupCode: h.backup != nil && h.backup.Remaining() > 0,
	}

	var order []Method
	if ch != nil && available[ch.Method] {
		order = append(order, ch.Method)
	}
	for _, m := range []Method{MethodTOTP, MethodSMS, MethodBackupCode} {
		if !available[m] {
			continue
		}
		if ch != nil && m == ch.Method {
			continue
		}
		order = append(order, m)
	}
	return order
}

func (h *Handler) tryMethod(ctx context.Context, method Method, ch *Challenge) (*Result, error) {
	var lastErr error

	for attempt := 1; attempt <= h.maxTries; attempt++ {
		var code string
		var err error

		switch method {
		case MethodTOTP:
			code, err = h.totp.WaitForFreshCode(ctx, 5*time.Second)
		case MethodSMS:
			code, err = h.acquireSMS(ctx, ch)
		case MethodBackupCode:
			code, err = h.backup.Next()
			if err != nil {
				// Exhaustion is terminal for this method; retrying cannot help.
				return nil, err
			}
		}

		if err == nil {
			return &Result{Method: method, Code: code, Attempts: attempt}, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func (h *Handler) acquireSMS(ctx context.Context, ch *Challenge) (string, error) {
	if h.provider != nil {
		return PollProvider(ctx, h.provider, 5*time.Second, h.smsWait())
	}
	if h.prompter != nil {
		hint := ""
		if ch != nil {
			hint = ch.PhoneHint
		}
		return h.prompter.Prompt(ctx, hint)
	}
	return "", fmt.Errorf("no SMS code source configured")
}

func (h *Handler) smsWait() time.Duration {
	if h.smsTimeout > 0 {
		return h.smsTimeout
	}
	if h.prompter != nil && h.prompter.Timeout > 0 {
		return h.prompter.Timeout
	}
	return 2 * time.Minute
}
