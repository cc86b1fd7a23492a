package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/oklog/ulid/v2"
)

// ErrInstanceClosed is returned when reading an instance after Close
var ErrInstanceClosed = errors.New("instance is closed")

// CollyHost renders instances by fetching static HTML, without running JavaScript
type CollyHost struct {
	collector *colly.Collector
	logger    *slog.Logger
}

type collyInstance struct {
	id  string
	url string

	mu     sync.Mutex
	body   string
	err    error
	done   bool
	closed bool
}

func (i *collyInstance) ID() string  { return i.id }
func (i *collyInstance) URL() string { return i.url }

func (i *collyInstance) HTML(_ context.Context) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return "", ErrInstanceClosed
	}
	if i.err != nil {
		return "", i.err
	}
	return i.body, nil
}

// NewCollyHost creates a new CollyHost instance
func NewCollyHost(userAgent string, delay time.Duration, logger *slog.Logger) *CollyHost {
	if logger == nil {
		logger = slog.Default()
	}

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)

	// One request at a time per domain
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       delay,
	}); err != nil {
		logger.Warn("failed to set rate limit", "error", err)
	}

	return &CollyHost{collector: c, logger: logger}
}

// Open fetches url; the response body becomes the instance DOM
func (h *CollyHost) Open(ctx context.Context, url string) (Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inst := &collyInstance{id: "inst-" + ulid.Make().String(), url: url}

	// Callbacks are per instance, the clone shares limits but not handlers
	c := h.collector.Clone()
	c.OnResponse(func(r *colly.Response) {
		inst.mu.Lock()
		inst.body = string(r.Body)
		inst.done = true
		inst.mu.Unlock()
	})
	c.OnError(func(r *colly.Response, err error) {
		h.logger.Warn("error fetching page", "url", r.Request.URL.String(), "status", r.StatusCode, "error", err)
		inst.mu.Lock()
		inst.err = fmt.Errorf("failed to fetch %s: %w", url, err)
		inst.done = true
		inst.mu.Unlock()
	})

	if err := c.Visit(url); err != nil {
		return nil, fmt.Errorf("failed to visit URL: %w", err)
	}
	c.Wait()

	h.logger.Debug("instance opened", "instance", inst.id, "url", url)
	return inst, nil
}

// WaitReady reports the fetch outcome; static pages are ready once fetched
func (h *CollyHost) WaitReady(_ context.Context, inst Instance) error {
	ci, ok := inst.(*collyInstance)
	if !ok {
		return errors.New("instance was not opened by this host")
	}

	ci.mu.Lock()
	defer ci.mu.Unlock()
	if !ci.done {
		return fmt.Errorf("no response received for %s", ci.url)
	}
	return ci.err
}

// Close releases the fetched body
func (h *CollyHost) Close(_ context.Context, inst Instance) error {
	ci, ok := inst.(*collyInstance)
	if !ok {
		return errors.New("instance was not opened by this host")
	}

	ci.mu.Lock()
	defer ci.mu.Unlock()
	ci.closed = true
	ci.body = ""
	return nil
}
