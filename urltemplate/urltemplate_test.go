package urltemplate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildInstanceURL(t *testing.T) {
	tests := []struct {
		name     string
		template string
		date     string
		origin   string
		want     string
	}{
		{"placeholder", "https://x.test/{{date}}/report", "2024-01-02", "", "https://x.test/2024-01-02/report"},
		{"relative path", "report", "2024-01-02", "https://x.test", "https://x.test/report?date=2024-01-02"},
		{"relative without origin", "report", "2024-01-02", "", ""},
		{"every placeholder", "https://x.test/{{date}}?d={{date}}", "2024-01-02", "", "https://x.test/2024-01-02?d=2024-01-02"},
		{"placeholder escapes date", "https://x.test/r?d={{date}}", "01/02 2024", "", "https://x.test/r?d=01%2F02%202024"},
		{"placeholder is not parsed", "not a url {{date}}", "x", "", "not a url x"},
		{"slashes trimmed", "/report", "d", "https://x.test/", "https://x.test/report?date=d"},
		{"date overrides query", "https://x.test/r?date=old&a=1", "new", "", "https://x.test/r?a=1&date=new"},
		{"absolute ignores origin", "HTTP://x.test/r", "d", "https://other.test", "http://x.test/r?date=d"},
		{"empty path", "https://x.test", "d", "", "https://x.test/?date=d"},
		{"empty template", "", "d", "https://x.test", ""},
		{"bad origin", "report", "d", "::bad", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildInstanceURL(tt.template, tt.date, tt.origin))
		})
	}
}

func TestEscapeComponent(t *testing.T) {
	assert.Equal(t, "a%20b", EscapeComponent("a b"))
	assert.Equal(t, "a%2Bb", EscapeComponent("a+b"))
	assert.Equal(t, "it's(*)!~", EscapeComponent("it's(*)!~"))
	assert.Equal(t, "%26%3D%3F%23", EscapeComponent("&=?#"))
}
