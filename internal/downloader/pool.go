package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"reelscraper/pkg/logger"
	"reelscraper/pkg/models"
	"reelscraper/pkg/ratelimit"
)

// Kind distinguishes the media assets a content item can carry.
type Kind string

const (
	KindVideo     Kind = "video"
	KindThumbnail Kind = "thumbnail"
)

// Job is one media asset to fetch.
type Job struct {
	URL       string
	Shortcode string
	Kind      Kind
}

// Result is the outcome of one job.
type Result struct {
	Job      Job
	Success  bool
	Err      error
	Size     int
	Duration time.Duration
}

// Fetcher retrieves one media asset by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// MediaStore persists fetched assets and answers dedup queries.
type MediaStore interface {
	Has(shortcode string, kind Kind) bool
	Save(shortcode string, kind Kind, r io.Reader) error
}

// Pool fetches media assets concurrently. Jobs flow through a bounded queue
// into a fixed set of workers; each worker paces itself through the shared
// rate limiter and skips assets the store already holds.
type Pool struct {
	workers int
	jobs    chan Job
	results chan Result
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	fetcher Fetcher
	store   MediaStore
	limiter ratelimit.Limiter
	log     logger.Logger
}

// NewPool creates a media download pool.
func NewPool(workers int, fetcher Fetcher, store MediaStore, limiter ratelimit.Limiter, log logger.Logger) *Pool {
	if workers <= 0 {
		workers = 3
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		workers: workers,
		jobs:    make(chan Job, workers*2),
		results: make(chan Result, workers),
		ctx:     ctx,
		cancel:  cancel,
		fetcher: fetcher,
		store:   store,
		limiter: limiter,
		log:     log.WithField("component", "downloader"),
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	p.log.DebugWithFields("starting download pool", map[string]interface{}{
		"workers": p.workers,
	})
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop drains the queue, waits for in-flight jobs and closes the result
// channel. No further Submit calls are allowed after Stop.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	close(p.results)
	p.cancel()
}

// Submit enqueues one job. It fails once the pool is shutting down.
func (p *Pool) Submit(job Job) error {
	select {
	case p.jobs <- job:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("download pool is shutting down")
	}
}

// Results is the stream of per-job outcomes.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// QueueSize reports the jobs waiting in the queue.
func (p *Pool) QueueSize() int {
	return len(p.jobs)
}

// JobsFor expands content items into media jobs: the video rendition when one
// is known, the thumbnail otherwise. Items without any asset URL or without a
// shortcode produce nothing.
func JobsFor(items []models.ContentItem) []Job {
	jobs := make([]Job, 0, len(items))
	for _, item := range items {
		if item.Shortcode == "" {
			continue
		}
		switch {
		case item.VideoURL != "":
			jobs = append(jobs, Job{URL: item.VideoURL, Shortcode: item.Shortcode, Kind: KindVideo})
		case item.ThumbnailURL != "":
			jobs = append(jobs, Job{URL: item.ThumbnailURL, Shortcode: item.Shortcode, Kind: KindThumbnail})
		}
	}
	return jobs
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for job := range p.jobs {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		result := p.process(job)

		select {
		case p.results <- result:
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) process(job Job) Result {
	start := time.Now()
	result := Result{Job: job}

	if p.store.Has(job.Shortcode, job.Kind) {
		result.Success = true
		result.Duration = time.Since(start)
		return result
	}

	if p.limiter != nil {
		p.limiter.Wait()
	}

	data, err := p.fetcher.Fetch(p.ctx, job.URL)
	if err != nil {
		result.Err = fmt.Errorf("fetch failed: %w", err)
		result.Duration = time.Since(start)
		p.log.WarnWithFields("media fetch failed", map[string]interface{}{
			"shortcode": job.Shortcode,
			"kind":      string(job.Kind),
			"error":     err.Error(),
		})
		return result
	}
	result.Size = len(data)

	if err := p.store.Save(job.Shortcode, job.Kind, bytes.NewReader(data)); err != nil {
		result.Err = fmt.Errorf("save failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	result.Success = true
	result.Duration = time.Since(start)

	p.log.DebugWithFields("media saved", map[string]interface{}{
		"shortcode": job.Shortcode,
		"kind":      string(job.Kind),
		"bytes":     result.Size,
	})
	return result
}
