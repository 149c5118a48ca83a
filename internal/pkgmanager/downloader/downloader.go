// SPDX-License-Identifier: Apache-2.0

// Package downloader is a small worker pool for fetching remote
// package archives, with retry/backoff and a submit-then-barrier
// concurrency model: callers Submit any number of requests, then call
// WaitForAllRequests to drain them, guaranteeing no partial in-flight
// state is ever exposed between barriers (spec §6).
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// Request is one archive fetch.
type Request struct {
	Name string // package name, for result correlation and logging
	URL  string
}

// Result is the outcome of one Request.
type Result struct {
	Request     Request
	Body        []byte
	ContentType string
	Err         error
}

// Pool is a bounded worker pool of downloaders.
type Pool struct {
	Client     *http.Client
	Workers    int
	MaxRetries uint64
	BaseDelay  time.Duration

	mu      sync.Mutex
	pending []Request
	results []Result
}

// NewPool creates a pool with sane defaults; Workers defaults to 4,
// MaxRetries to 3, BaseDelay to 200ms.
func NewPool() *Pool {
	return &Pool{
		Client:     http.DefaultClient,
		Workers:    4,
		MaxRetries: 3,
		BaseDelay:  200 * time.Millisecond,
	}
}

// Submit queues a request. Safe to call concurrently, but only
// meaningful before the matching WaitForAllRequests call drains the
// queue.
func (p *Pool) Submit(req Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, req)
}

// WaitForAllRequests drains every submitted request through the
// worker pool and returns their results in submission order. It is
// the barrier: callers never observe some requests done and others
// still pending.
func (p *Pool) WaitForAllRequests(ctx context.Context) []Result {
	p.mu.Lock()
	batch := p.pending
	p.pending = nil
	p.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(batch) {
		workers = len(batch)
	}

	jobs := make(chan int, len(batch))
	results := make([]Result, len(batch))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = Result{Request: batch[idx], Body: nil}
				body, contentType, err := p.fetchWithRetry(ctx, batch[idx])
				results[idx].Body = body
				results[idx].ContentType = contentType
				results[idx].Err = err
			}
		}()
	}
	for i := range batch {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

func (p *Pool) fetchWithRetry(ctx context.Context, req Request) ([]byte, string, error) {
	backoff := retry.NewExponential(p.baseDelay())
	backoff = retry.WithMaxRetries(p.maxRetries(), backoff)

	var body []byte
	var contentType string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		b, ct, err := p.fetchOnce(ctx, req.URL)
		if err != nil {
			return retry.RetryableError(err)
		}
		body = b
		contentType = ct
		return nil
	})
	return body, contentType, err
}

func (p *Pool) fetchOnce(ctx context.Context, url string) ([]byte, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("downloader: build request: %w", err)
	}

	resp, err := p.client().Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("downloader: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("downloader: fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("downloader: read %s: %w", url, err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (p *Pool) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

func (p *Pool) maxRetries() uint64 {
	if p.MaxRetries > 0 {
		return p.MaxRetries
	}
	return 3
}

func (p *Pool) baseDelay() time.Duration {
	if p.BaseDelay > 0 {
		return p.BaseDelay
	}
	return 200 * time.Millisecond
}
