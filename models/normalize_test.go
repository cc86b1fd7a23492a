package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLocation(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want PageLocation
		ok   bool
	}{
		{"plain", "https://x.test/report?date=1#frag", PageLocation{"https://x.test", "/report"}, true},
		{"port kept", "http://X.test:8080/a/b", PageLocation{"http://x.test:8080", "/a/b"}, true},
		{"root path", "https://x.test", PageLocation{"https://x.test", "/"}, true},
		{"default https port dropped", "https://x.test:443/a", PageLocation{"https://x.test", "/a"}, true},
		{"default http port dropped", "HTTP://x.test:80/a", PageLocation{"http://x.test", "/a"}, true},
		{"https on port 80 kept", "https://x.test:80/a", PageLocation{"https://x.test:80", "/a"}, true},
		{"ipv6 host", "http://[::1]:8080/a", PageLocation{"http://[::1]:8080", "/a"}, true},
		{"relative", "/report", PageLocation{}, false},
		{"empty", "", PageLocation{}, false},
		{"garbage", "://nope", PageLocation{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeLocation(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	got := ApplyDefaults(TableSchema{ID: "table-1"}, "https://x.test/report?date=2024-01-01")

	assert.Equal(t, SectionTBody, got.DataSection)
	assert.Equal(t, PageLocation{"https://x.test", "/report"}, got.Page)
	assert.Equal(t, "https://x.test/report?date=2024-01-01", got.URLTemplate)
	require.NotNil(t, got.Columns)
	assert.Empty(t, got.Columns)
}

func TestApplyDefaultsKeepsExistingPage(t *testing.T) {
	page := PageLocation{"https://a.test", "/x"}
	got := ApplyDefaults(TableSchema{Page: page, DataSection: SectionTable}, "https://b.test/y")

	assert.Equal(t, page, got.Page)
	assert.Equal(t, SectionTable, got.DataSection)
}

func TestApplyDefaultsMalformedHint(t *testing.T) {
	got := ApplyDefaults(TableSchema{}, "not a url")
	assert.True(t, got.Page.IsZero())
}

func TestApplyDefaultsIdempotent(t *testing.T) {
	inputs := []struct {
		schema TableSchema
		hint   string
	}{
		{TableSchema{}, ""},
		{TableSchema{}, "https://x.test/a"},
		{TableSchema{URLTemplate: "https://x.test/{{date}}/r"}, ""},
		{TableSchema{DataSection: "bogus", Columns: []ColumnRule{{Name: "a", SampleRowIndex: -3}}}, "https://x.test"},
		{TableSchema{DataSection: SectionTFoot, Columns: []ColumnRule{{Name: "a", Section: SectionTHead}}}, "garbage"},
	}
	for i, in := range inputs {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			once := ApplyDefaults(in.schema, in.hint)
			twice := ApplyDefaults(once, in.hint)
			assert.Equal(t, once, twice)
		})
	}
}

func TestColumnIndexOf(t *testing.T) {
	schema := TableSchema{Columns: []ColumnRule{{ID: "col-1", Name: "Price"}, {ID: "col-2", Name: "Qty"}}}

	assert.Equal(t, 0, schema.ColumnIndexOf("col-1", ""))
	assert.Equal(t, 1, schema.ColumnIndexOf("col-x", "Qty"))
	assert.Equal(t, -1, schema.ColumnIndexOf("col-x", "Other"))
	assert.Equal(t, -1, schema.ColumnIndexOf("", ""))

	unnamed := TableSchema{Columns: []ColumnRule{{ID: "col-1", Name: "Price"}, {ID: "col-2"}}}
	assert.Equal(t, 1, unnamed.ColumnIndexOf("", ""))
	assert.Equal(t, 1, unnamed.ColumnIndexOf("col-x", ""))
	assert.False(t, TableSchema{}.Exportable())
	assert.True(t, schema.Exportable())
}

func TestExtractionErrorUnwraps(t *testing.T) {
	var err error = &ExtractionError{Date: "2024-01-02", Reason: "table element not found"}

	assert.True(t, errors.Is(err, ErrExtractionFailed))
	assert.Contains(t, err.Error(), "2024-01-02")

	var extErr *ExtractionError
	require.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &extErr))
	assert.Equal(t, "2024-01-02", extErr.Date)
}
