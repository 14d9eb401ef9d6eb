package twofactor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Errors
var (
	ErrInvalidCode   = errors.New("code must be exactly 6 digits")
	ErrCodeTimeout   = errors.New("timed out waiting for SMS code")
	ErrCodeCancelled = errors.New("SMS code wait cancelled")
)

var codeRe = regexp.MustCompile(`^\d{6}$`)

// ValidateCode enforces the strict 6-digit format.
func ValidateCode(code string) error {
	if !codeRe.MatchString(code) {
		return ErrInvalidCode
	}
	return nil
}

// CodeProvider supplies an SMS code programmatically. It is polled until it
// returns a code, an error, or the overall deadline passes. Returning an
// empty code with a nil error means "not received yet".
type CodeProvider func(ctx context.Context) (string, error)

// SMSPrompter solicits a code interactively from a reader (normally stdin)
// with a timeout. Cancellation through the context is a distinct outcome
// from the timeout.
type SMSPrompter struct {
	In      io.Reader
	Out     io.Writer
	Timeout time.Duration

	once  sync.Once
	lines chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// readLoop is the single owner of the input stream. One goroutine reads for
// the prompter's whole lifetime; an attempt that times out leaves it blocked
// on the next line, and a later attempt receives that line instead of racing
// a second reader over the same buffer.
func (p *SMSPrompter) readLoop() {
	p.once.Do(func() {
		p.lines = make(chan lineResult)
		go func() {
			reader := bufio.NewReader(p.In)
			for {
				line, err := reader.ReadString('\n')
				p.lines <- lineResult{line: line, err: err}
				if err != nil {
					return
				}
			}
		}()
	})
}

// Prompt asks for a code and waits for one line of input. The entered value
// must pass the strict 6-digit validation before being accepted.
func (p *SMSPrompter) Prompt(ctx context.Context, phoneHint string) (string, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	if phoneHint != "" {
		fmt.Fprintf(p.Out, "Enter the 6-digit code sent to %s: ", phoneHint)
	} else {
		fmt.Fprint(p.Out, "Enter the 6-digit SMS code: ")
	}

	p.readLoop()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-p.lines:
		if res.err != nil && res.line == "" {
			return "", fmt.Errorf("failed to read code: %w", res.err)
		}
		code := strings.TrimSpace(res.line)
		if err := ValidateCode(code); err != nil {
			return "", err
		}
		return code, nil
	case <-timer.C:
		return "", ErrCodeTimeout
	case <-ctx.Done():
		return "", ErrCodeCancelled
	}
}

// PollProvider polls a code provider until it yields a valid code or the
// overall deadline passes. The deadline is independent of any per-attempt
// retry budget the caller maintains.
func PollProvider(ctx context.Context, provider CodeProvider, interval, deadline time.Duration) (string, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if deadline <= 0 {
		deadline = 2 * time.Minute
	}

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		code, err := provider(ctx)
		if err != nil {
			return "", err
		}
		if code != "" {
			if err := ValidateCode(code); err != nil {
				return "", err
			}
			return code, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", ErrCodeTimeout
			}
			return "", ErrCodeCancelled
		}
	}
}
