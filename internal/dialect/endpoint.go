package dialect

import (
	"net/url"
	"regexp"
	"strings"
)

// Endpoint is one resolved candidate: a URL together with the type and
// driver it is opened with.
type Endpoint struct {
	Type   Type
	Driver string
	URL    string
}

// Endpoints pairs every candidate URL with t and driver.
func Endpoints(t Type, driver string, urls []string) []Endpoint {
	out := make([]Endpoint, len(urls))
	for i, u := range urls {
		out[i] = Endpoint{Type: t, Driver: driver, URL: u}
	}
	return out
}

var keywordSecret = regexp.MustCompile(`(?i)(PWD|PASSWORD)=[^;]*`)

// Redact masks any password a caller embedded in raw. Candidate URLs built
// by Resolve carry none, but explicit URLs may.
func Redact(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.User != nil {
		return u.Redacted()
	}
	raw = keywordSecret.ReplaceAllString(raw, "${1}=xxxxx")
	// go-sql-driver style user:pass@tcp(host)/db
	if at := strings.LastIndex(raw, "@"); at > 0 {
		if colon := strings.Index(raw[:at], ":"); colon >= 0 && !strings.Contains(raw[:at], "/") {
			return raw[:colon+1] + "xxxxx" + raw[at:]
		}
	}
	return raw
}
