package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"reelscraper/pkg/models"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   int
	payload []byte
	err     error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestPool(t *testing.T, fetcher Fetcher) (*Pool, *DiskStore) {
	t.Helper()
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create disk store: %v", err)
	}
	return NewPool(2, fetcher, store, nil, nil), store
}

func collectResults(p *Pool) []Result {
	var results []Result
	for r := range p.Results() {
		results = append(results, r)
	}
	return results
}

func TestPoolDownloadsAndSaves(t *testing.T) {
	fetcher := &fakeFetcher{payload: []byte("video-bytes")}
	pool, store := newTestPool(t, fetcher)
	pool.Start()

	jobs := []Job{
		{URL: "https://cdn.example.com/a.mp4", Shortcode: "AAA", Kind: KindVideo},
		{URL: "https://cdn.example.com/b.jpg", Shortcode: "BBB", Kind: KindThumbnail},
	}
	for _, job := range jobs {
		if err := pool.Submit(job); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	done := make(chan []Result)
	go func() { done <- collectResults(pool) }()
	pool.Stop()
	results := <-done

	if len(results) != 2 {
		t.Fatalf("Results = %d, want 2", len(results))
	}
	for _, r := range results {
		if !r.Success {
			t.Errorf("Job %s failed: %v", r.Job.Shortcode, r.Err)
		}
		if r.Size != len("video-bytes") {
			t.Errorf("Job %s size = %d", r.Job.Shortcode, r.Size)
		}
	}

	data, err := os.ReadFile(store.Path("AAA", KindVideo))
	if err != nil {
		t.Fatalf("Saved video missing: %v", err)
	}
	if string(data) != "video-bytes" {
		t.Errorf("Saved payload = %q", data)
	}
	if !store.Has("BBB", KindThumbnail) {
		t.Error("Thumbnail not saved")
	}
}

func TestPoolSkipsExistingAssets(t *testing.T) {
	fetcher := &fakeFetcher{payload: []byte("x")}
	pool, store := newTestPool(t, fetcher)

	if err := store.Save("AAA", KindVideo, strings.NewReader("already here")); err != nil {
		t.Fatalf("Seed save failed: %v", err)
	}

	pool.Start()
	if err := pool.Submit(Job{URL: "https://cdn.example.com/a.mp4", Shortcode: "AAA", Kind: KindVideo}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	done := make(chan []Result)
	go func() { done <- collectResults(pool) }()
	pool.Stop()
	results := <-done

	if len(results) != 1 || !results[0].Success {
		t.Fatalf("Unexpected results %+v", results)
	}
	if fetcher.callCount() != 0 {
		t.Errorf("Fetcher called %d times for an existing asset", fetcher.callCount())
	}

	data, _ := os.ReadFile(store.Path("AAA", KindVideo))
	if string(data) != "already here" {
		t.Errorf("Existing asset overwritten: %q", data)
	}
}

func TestPoolReportsFetchFailure(t *testing.T) {
	boom := errors.New("cdn unreachable")
	fetcher := &fakeFetcher{err: boom}
	pool, _ := newTestPool(t, fetcher)
	pool.Start()

	if err := pool.Submit(Job{URL: "https://cdn.example.com/a.mp4", Shortcode: "AAA", Kind: KindVideo}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	done := make(chan []Result)
	go func() { done <- collectResults(pool) }()
	pool.Stop()
	results := <-done

	if len(results) != 1 {
		t.Fatalf("Results = %d, want 1", len(results))
	}
	if results[0].Success {
		t.Error("Failed fetch reported success")
	}
	if !errors.Is(results[0].Err, boom) {
		t.Errorf("Err = %v, want wrapped cause", results[0].Err)
	}
}

func TestPoolConcurrentSubmissions(t *testing.T) {
	fetcher := &fakeFetcher{payload: []byte("x")}
	pool, _ := newTestPool(t, fetcher)
	pool.Start()

	const n = 20
	for i := 0; i < n; i++ {
		job := Job{
			URL:       fmt.Sprintf("https://cdn.example.com/%d.mp4", i),
			Shortcode: fmt.Sprintf("SC%03d", i),
			Kind:      KindVideo,
		}
		if err := pool.Submit(job); err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
	}

	done := make(chan []Result)
	go func() { done <- collectResults(pool) }()
	pool.Stop()
	results := <-done

	if len(results) != n {
		t.Fatalf("Results = %d, want %d", len(results), n)
	}
	for _, r := range results {
		if !r.Success {
			t.Errorf("Job %s failed: %v", r.Job.Shortcode, r.Err)
		}
	}
}

func TestJobsFor(t *testing.T) {
	items := []models.ContentItem{
		{Shortcode: "A", VideoURL: "https://cdn/v.mp4", ThumbnailURL: "https://cdn/t.jpg"},
		{Shortcode: "B", ThumbnailURL: "https://cdn/t2.jpg"},
		{Shortcode: "C"},
		{VideoURL: "https://cdn/orphan.mp4"}, // no shortcode
	}

	jobs := JobsFor(items)
	if len(jobs) != 2 {
		t.Fatalf("Jobs = %d, want 2", len(jobs))
	}
	if jobs[0].Kind != KindVideo || jobs[0].Shortcode != "A" {
		t.Errorf("Job 0 = %+v, want the video rendition preferred", jobs[0])
	}
	if jobs[1].Kind != KindThumbnail || jobs[1].Shortcode != "B" {
		t.Errorf("Job 1 = %+v", jobs[1])
	}
}
