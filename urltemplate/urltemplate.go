// Package urltemplate turns a stored URL template and a date token into the
// URL of one page instance.
package urltemplate

import (
	"net/url"
	"regexp"
	"strings"
)

// Placeholder is the literal marker replaced by the date token
const Placeholder = "{{date}}"

// DateParam is the query parameter set when the template has no placeholder
const DateParam = "date"

var absoluteHTTP = regexp.MustCompile(`(?i)^https?:`)

// componentEscaper undoes the QueryEscape differences from encodeURIComponent
var componentEscaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EscapeComponent escapes s the way a URI component is escaped:
// everything except letters, digits and -_.!~*'() is percent-encoded.
func EscapeComponent(s string) string {
	return componentEscaper.Replace(url.QueryEscape(s))
}

// BuildInstanceURL returns the URL for one date, or "" when none can be built.
//
// A template containing {{date}} gets every marker replaced by the escaped date
// and is returned as is. Any other template that is not an absolute http(s)
// URL is treated as a path under origin, and the date is set as the "date"
// query parameter of the result.
func BuildInstanceURL(template, date, origin string) string {
	if template == "" {
		return ""
	}

	if strings.Contains(template, Placeholder) {
		return strings.ReplaceAll(template, Placeholder, EscapeComponent(date))
	}

	base := template
	if !absoluteHTTP.MatchString(template) {
		if origin == "" {
			return ""
		}
		base = strings.TrimSuffix(origin, "/") + "/" + strings.TrimPrefix(template, "/")
	}

	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}

	if u.Path == "" {
		u.Path = "/"
	}

	q := u.Query()
	q.Set(DateParam, date)
	u.RawQuery = q.Encode()
	return u.String()
}
