package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"reelscraper/pkg/auth"
	"reelscraper/pkg/expiry"
	"reelscraper/pkg/instagram"
	"reelscraper/pkg/logger"
	"reelscraper/pkg/twofactor"
)

// ErrLoginFailed is returned when the login flow completes without yielding
// a session cookie.
var ErrLoginFailed = errors.New("browser login did not produce a session")

// BrowserAuthenticator re-authenticates by driving a real browser through
// the login form, resolving a second-factor challenge when one appears, and
// extracting the resulting cookie set as a credential set.
type BrowserAuthenticator struct {
	username  string
	password  string
	twoFactor *twofactor.Handler
	headless  bool
	timeout   time.Duration
	log       logger.Logger
}

// NewBrowserAuthenticator creates a browser-automation login driver.
// The two-factor handler may be nil when the account has no second factor.
func NewBrowserAuthenticator(username, password string, tf *twofactor.Handler, headless bool, log logger.Logger) *BrowserAuthenticator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &BrowserAuthenticator{
		username:  username,
		password:  password,
		twoFactor: tf,
		headless:  headless,
		timeout:   3 * time.Minute,
		log:       log.WithField("component", "browser_auth"),
	}
}

// Login performs a full authentication cycle and returns fresh credentials.
func (b *BrowserAuthenticator) Login(ctx context.Context) (*auth.Credentials, error) {
	if b.username == "" || b.password == "" {
		return nil, errors.New("browser login requires username and password")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, b.timeout)
	defer cancelTimeout()

	b.log.Info("starting browser login")

	err := chromedp.Run(browserCtx,
		chromedp.Navigate(instagram.LoginURL),
		chromedp.WaitVisible(`input[name="username"]`, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="username"]`, b.username, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="password"]`, b.password, chromedp.ByQuery),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
		chromedp.Sleep(4*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("login form submission failed: %w", err)
	}

	if err := b.resolveChallenge(browserCtx); err != nil {
		return nil, err
	}

	cookies, err := collectCookies(browserCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to read browser cookies: %w", err)
	}

	creds, err := credentialsFromCookies(cookies)
	if err != nil {
		return nil, err
	}
	b.log.InfoWithFields("browser login succeeded", map[string]interface{}{
		"user_id": creds.UserID,
	})
	return creds, nil
}

// resolveChallenge checks the landing page for a second-factor prompt and
// submits a code when one is required.
func (b *BrowserAuthenticator) resolveChallenge(ctx context.Context) error {
	var pageURL, pageHTML string
	err := chromedp.Run(ctx,
		chromedp.Location(&pageURL),
		chromedp.OuterHTML("html", &pageHTML, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to inspect post-login page: %w", err)
	}

	challenge := twofactor.DetectChallenge(pageHTML, pageURL)
	if challenge == nil {
		return nil
	}
	if b.twoFactor == nil {
		return fmt.Errorf("second factor required (%s) but none configured", challenge.Method)
	}

	b.log.InfoWithFields("second-factor challenge detected", map[string]interface{}{
		"method": string(challenge.Method),
	})

	result, err := b.twoFactor.Resolve(ctx, challenge)
	if err != nil {
		return err
	}

	return chromedp.Run(ctx,
		chromedp.WaitVisible(`input[name="verificationCode"]`, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="verificationCode"]`, result.Code, chromedp.ByQuery),
		chromedp.Click(`button[type="button"]`, chromedp.ByQuery),
		chromedp.Sleep(4*time.Second),
	)
}

func collectCookies(ctx context.Context) ([]expiry.Cookie, error) {
	var out []expiry.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			cookie := expiry.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Secure:   c.Secure,
				HTTPOnly: c.HTTPOnly,
			}
			if c.Expires > 0 {
				cookie.Expires = time.Unix(int64(c.Expires), 0)
			}
			out = append(out, cookie)
		}
		return nil
	}))
	return out, err
}

// credentialsFromCookies builds a credential set from a browser cookie set.
func credentialsFromCookies(cookies []expiry.Cookie) (*auth.Credentials, error) {
	var creds auth.Credentials
	for _, c := range cookies {
		switch c.Name {
		case "sessionid":
			creds.SessionID = c.Value
		case "csrftoken":
			creds.CSRFToken = c.Value
		case "ds_user_id":
			creds.UserID = c.Value
		case "rur":
			creds.MachineID = c.Value
		}
	}
	if creds.SessionID == "" {
		return nil, ErrLoginFailed
	}
	if creds.UserID == "" {
		if id, ok := auth.UserIDFromSessionID(creds.SessionID); ok {
			creds.UserID = id
		}
	}
	if creds.MachineID == "" {
		creds.MachineID = auth.DefaultMachineID
	}

	now := time.Now()
	creds.ExtractedAt = now
	if earliest, ok := expiry.EarliestExpiry(cookies); ok {
		creds.ExpiresAt = earliest
	} else {
		creds.ExpiresAt = now.Add(auth.DefaultExpiryHorizon)
	}
	return &creds, creds.Validate()
}
