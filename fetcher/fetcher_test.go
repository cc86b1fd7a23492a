package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrysluch/eva-table-reactor/logger"
	"github.com/dmitrysluch/eva-table-reactor/models"
)

type staticInstance struct {
	html string
	err  error
}

func (s staticInstance) ID() string  { return "inst-static" }
func (s staticInstance) URL() string { return "https://x.test" }
func (s staticInstance) HTML(context.Context) (string, error) {
	return s.html, s.err
}

const table = `<table id="t"><tbody><tr><td>a</td><td>1</td></tr><tr><td>b</td><td>2</td></tr></tbody></table>`

func testSchema(selector string) models.TableSchema {
	return models.TableSchema{
		TableSelector: selector,
		DataSection:   models.SectionTBody,
		Columns:       []models.ColumnRule{{Name: "name", ColumnIndex: 0}, {Name: "qty", ColumnIndex: 1}},
	}
}

func TestScrapeReturnsRows(t *testing.T) {
	resp, err := Scrape(context.Background(), staticInstance{html: table}, models.ScrapeRequest{Schema: testSchema("#t"), Date: "2024-01-01"})
	require.NoError(t, err)

	assert.Empty(t, resp.Error)
	assert.Equal(t, []models.Row{{"name": "a", "qty": "1"}, {"name": "b", "qty": "2"}}, resp.Rows)
}

func TestScrapeReportsExtractionFailureInResponse(t *testing.T) {
	resp, err := Scrape(context.Background(), staticInstance{html: table}, models.ScrapeRequest{Schema: testSchema("#missing")})
	require.NoError(t, err)

	assert.Nil(t, resp.Rows)
	assert.Contains(t, resp.Error, "table element not found")
}

func TestScrapeTransportFailure(t *testing.T) {
	_, err := Scrape(context.Background(), staticInstance{err: errors.New("tab crashed")}, models.ScrapeRequest{Schema: testSchema("#t")})
	assert.ErrorContains(t, err, "tab crashed")
}

func TestCollyHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "<html><body><p>%s</p>%s</body></html>", r.URL.Query().Get("date"), table)
	}))
	defer srv.Close()

	host := NewCollyHost("eva-test", 0, logger.Discard())
	ctx := context.Background()

	inst, err := host.Open(ctx, srv.URL+"/report?date=2024-01-01")
	require.NoError(t, err)
	require.NoError(t, host.WaitReady(ctx, inst))

	resp, err := Scrape(ctx, inst, models.ScrapeRequest{Schema: testSchema("#t")})
	require.NoError(t, err)
	assert.Len(t, resp.Rows, 2)

	html, err := inst.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "2024-01-01")

	require.NoError(t, host.Close(ctx, inst))
	require.NoError(t, host.Close(ctx, inst))
	_, err = inst.HTML(ctx)
	assert.ErrorIs(t, err, ErrInstanceClosed)

	// The same URL can be opened again
	again, err := host.Open(ctx, srv.URL+"/report?date=2024-01-01")
	require.NoError(t, err)
	require.NoError(t, host.Close(ctx, again))

	_, err = host.Open(ctx, srv.URL+"/missing")
	assert.Error(t, err)
}

func TestCollyHostRejectsForeignInstance(t *testing.T) {
	host := NewCollyHost("eva-test", 0, logger.Discard())
	assert.Error(t, host.WaitReady(context.Background(), staticInstance{}))
	assert.Error(t, host.Close(context.Background(), staticInstance{}))
}

func TestCollyHostCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCollyHost("eva-test", 0, logger.Discard()).Open(ctx, "http://127.0.0.1:1/")
	assert.ErrorIs(t, err, context.Canceled)
}
