// Package fetcher renders page instances and runs table extraction inside them.
//
// A Host hands out opaque Instance handles; callers never touch the
// underlying browser page or HTTP response directly.
package fetcher

import (
	"context"
	"fmt"

	"github.com/dmitrysluch/eva-table-reactor/models"
	"github.com/dmitrysluch/eva-table-reactor/parser"
)

// Instance is a handle to one rendered page
type Instance interface {
	ID() string
	URL() string
	// HTML returns the current DOM of the instance serialized as HTML
	HTML(ctx context.Context) (string, error)
}

// Host opens, readies and tears down page instances
type Host interface {
	Open(ctx context.Context, url string) (Instance, error)
	// WaitReady blocks until the instance content has fully loaded
	WaitReady(ctx context.Context, inst Instance) error
	// Close tears the instance down; closing twice is a no-op
	Close(ctx context.Context, inst Instance) error
}

// Scrape runs the extraction request against inst.
// Extraction failures come back in ScrapeResponse.Error; the returned error
// is reserved for failing to reach the instance at all.
func Scrape(ctx context.Context, inst Instance, req models.ScrapeRequest) (models.ScrapeResponse, error) {
	content, err := inst.HTML(ctx)
	if err != nil {
		return models.ScrapeResponse{}, fmt.Errorf("failed to read instance %s: %w", inst.ID(), err)
	}

	rows, err := parser.NewParser().ParseHTML(content, req.Schema)
	if err != nil {
		return models.ScrapeResponse{Error: err.Error()}, nil
	}
	return models.ScrapeResponse{Rows: rows}, nil
}
