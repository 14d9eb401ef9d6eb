package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"reelscraper/internal/downloader"
	"reelscraper/pkg/auth"
	"reelscraper/pkg/config"
	"reelscraper/pkg/instagram"
	"reelscraper/pkg/logger"
	"reelscraper/pkg/models"
	"reelscraper/pkg/ratelimit"
	"reelscraper/pkg/scrape"
	"reelscraper/pkg/service"
	"reelscraper/pkg/session"
	"reelscraper/pkg/store"
	"reelscraper/pkg/twofactor"
)

// App is the composition root: every stateful coordinator is constructed
// once here, passed by reference to its consumers, and torn down through
// Close. Nothing does ambient global lookup.
type App struct {
	Config    *config.Config
	Log       logger.Logger
	Store     *auth.FileStore
	Sessions  *session.Manager
	Validator *session.Validator
	Refresher *session.Refresher
	Scheduler *session.Scheduler
	Unified   *service.Unified
	Content   store.ContentStore

	authClient *instagram.Client
}

// newApp loads configuration and wires the full object graph.
func newApp(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logger.Initialize(logger.Options{
		Level: cfg.Logging.Level,
		File:  cfg.Logging.File,
	}); err != nil {
		return nil, err
	}
	log := logger.GetLogger()

	secret := cfg.Store.Secret
	if cfg.Store.Encrypt && secret == "" {
		secret, err = auth.ResolveSecret(filepath.Dir(cfg.Store.Path))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve store secret: %w", err)
		}
	}

	credStore, err := auth.NewFileStore(cfg.Store.Path, auth.FileStoreOptions{
		Encrypt:        cfg.Store.Encrypt,
		Secret:         secret,
		LockStaleAfter: cfg.Store.LockStaleAfter,
		LockWait:       cfg.Store.LockWait,
	})
	if err != nil {
		return nil, err
	}

	authClient := instagram.NewClient(cfg.Strategies.Retry.Timeout, log)
	anonClient := instagram.NewClient(cfg.Strategies.Retry.Timeout, log)
	if cfg.Instagram.UserAgent != "" {
		authClient.SetHeader("User-Agent", cfg.Instagram.UserAgent)
	}

	sessions := session.NewManager(cfg.Session.RefreshThreshold, log)
	validator := session.NewValidator(authClient, log)

	var authn session.Authenticator
	if cfg.Instagram.Username != "" && cfg.Instagram.Password != "" {
		tf, err := buildTwoFactorHandler(cfg, log)
		if err != nil {
			return nil, err
		}
		authn = session.NewBrowserAuthenticator(
			cfg.Instagram.Username, cfg.Instagram.Password, tf, cfg.Strategies.Headless, log)
	} else {
		authn = &noAuthenticator{}
	}

	refresher := session.NewRefresher(credStore, sessions, authn, session.RefresherOptions{
		MaxRetries:  cfg.Session.MaxRefreshRetries,
		MinInterval: cfg.Session.MinRefreshInterval,
	}, log)

	var notifier session.Notifier
	if cfg.Session.WebhookURL != "" {
		notifier = session.NewWebhookNotifier(cfg.Session.WebhookURL, log)
	}
	scheduler := session.NewScheduler(refresher, sessions, session.SchedulerOptions{
		CheckInterval:          cfg.Session.CheckInterval,
		RefreshThreshold:       cfg.Session.RefreshThreshold,
		MaxConsecutiveFailures: cfg.Session.MaxConsecutiveFailures,
	}, notifier, log)

	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute)

	strategies := []scrape.Strategy{
		scrape.NewAPIStrategy(cfg, authClient, sessions, limiter, log),
		scrape.NewEmbedStrategy(cfg, anonClient, log),
		scrape.NewRapidAPIStrategy(cfg, log),
		scrape.NewBrowserStrategy(cfg, log),
		scrape.NewSearchStrategy(cfg, log),
	}
	unified := service.NewUnified(strategies, log)

	content, err := store.NewFileStore(cfg.Output.DataDir, log)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:     cfg,
		Log:        log,
		Store:      credStore,
		Sessions:   sessions,
		Validator:  validator,
		Refresher:  refresher,
		Scheduler:  scheduler,
		Unified:    unified,
		Content:    content,
		authClient: authClient,
	}, nil
}

// RestoreSession seeds the session manager from the persisted credential
// file when one exists, falling back to environment credentials.
func (a *App) RestoreSession() (bool, error) {
	existed, err := a.Refresher.Initialize()
	if err != nil {
		return false, err
	}
	if existed {
		return true, nil
	}

	creds, err := a.Config.Credentials()
	if err != nil {
		return false, nil
	}
	a.Sessions.Set(creds)
	return true, nil
}

// Close tears down background work.
func (a *App) Close() {
	a.Scheduler.Stop()
	a.Refresher.CancelScheduled()
	a.Sessions.Stop()
}

func buildTwoFactorHandler(cfg *config.Config, log logger.Logger) (*twofactor.Handler, error) {
	prompter := &twofactor.SMSPrompter{
		In:      os.Stdin,
		Out:     os.Stderr,
		Timeout: cfg.TwoFactor.SMSTimeout,
	}
	return twofactor.NewHandler(twofactor.HandlerConfig{
		TOTPSecret:           cfg.TwoFactor.TOTPSecret,
		BackupCodes:          cfg.TwoFactor.BackupCodes,
		Interactive:          cfg.TwoFactor.Interactive,
		SMSTimeout:           cfg.TwoFactor.SMSTimeout,
		MaxAttemptsPerMethod: cfg.TwoFactor.MaxAttempts,
	}, prompter, log)
}

// DownloadMedia fetches the media assets of the given items into the data
// directory, concurrently and deduplicated against earlier runs. It reports
// how many assets were saved and the first failure encountered.
func (a *App) DownloadMedia(ctx context.Context, items []models.ContentItem) (int, error) {
	jobs := downloader.JobsFor(items)
	if len(jobs) == 0 {
		return 0, nil
	}

	mediaStore, err := downloader.NewDiskStore(a.Config.Output.DataDir)
	if err != nil {
		return 0, err
	}
	limiter := ratelimit.NewTokenBucket(a.Config.RateLimit.RequestsPerMinute, time.Minute)
	pool := downloader.NewPool(3, &clientFetcher{client: a.authClient}, mediaStore, limiter, a.Log)
	pool.Start()

	go func() {
		for _, job := range jobs {
			if ctx.Err() != nil {
				break
			}
			if err := pool.Submit(job); err != nil {
				break
			}
		}
		pool.Stop()
	}()

	saved := 0
	var firstErr error
	for result := range pool.Results() {
		if result.Success {
			saved++
			continue
		}
		if firstErr == nil {
			firstErr = result.Err
		}
	}
	return saved, firstErr
}

// clientFetcher adapts the HTTP client to the downloader's fetch contract.
type clientFetcher struct {
	client *instagram.Client
}

func (f *clientFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	status, body, err := f.client.GetBody(ctx, url)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("media fetch returned status %d", status)
	}
	return body, nil
}

// noAuthenticator is installed when no login credentials are configured;
// refresh cycles fail with a clear message instead of a nil dereference.
type noAuthenticator struct{}

func (n *noAuthenticator) Login(ctx context.Context) (*auth.Credentials, error) {
	return nil, fmt.Errorf("no login credentials configured; set REELSCRAPER_USERNAME and REELSCRAPER_PASSWORD")
}
