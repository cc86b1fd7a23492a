package models

import (
	"net/url"
	"strings"
)

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// NormalizeLocation reduces a URL to its origin (scheme, host and non-default port) and path.
// It returns false instead of an error when the URL cannot be parsed as absolute.
func NormalizeLocation(rawURL string) (PageLocation, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return PageLocation{}, false
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return PageLocation{}, false
	}

	pathname := u.EscapedPath()
	if pathname == "" {
		pathname = "/"
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" && port != defaultPorts[scheme] {
		host += ":" + port
	}

	return PageLocation{
		Origin:   scheme + "://" + host,
		Pathname: pathname,
	}, true
}

// ApplyDefaults fills every optional field of a schema with its default so
// downstream code never has to branch on absent values.
// originHint is the URL of the page the schema was authored on, if known.
func ApplyDefaults(t TableSchema, originHint string) TableSchema {
	if t.URLTemplate == "" {
		t.URLTemplate = originHint
	}

	if t.Page.IsZero() {
		hint := originHint
		if hint == "" {
			hint = t.URLTemplate
		}
		// Malformed hints leave the empty location in place
		if loc, ok := NormalizeLocation(hint); ok {
			t.Page = loc
		}
	}

	if !t.DataSection.Valid() {
		t.DataSection = SectionTBody
	}

	if t.Columns == nil {
		t.Columns = []ColumnRule{}
	}
	for i := range t.Columns {
		if !t.Columns[i].Section.Valid() {
			t.Columns[i].Section = SectionTBody
		}
		if t.Columns[i].SampleRowIndex < 0 {
			t.Columns[i].SampleRowIndex = 0
		}
	}

	return t
}
