package domain

import (
	"net/url"
	"strings"
)

// MatchIDFromURL derives the stable match identifier from a match page URL.
// Match pages end in a "<home>-<away>-<id>" segment; the id is the last token.
func MatchIDFromURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", &MalformedURLError{URL: raw, Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &MalformedURLError{URL: raw, Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return "", &MalformedURLError{URL: raw, Reason: "missing host"}
	}
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) < 2 {
		return "", &MalformedURLError{URL: raw, Reason: "path too short for a match page"}
	}
	last := segments[len(segments)-1]
	idx := strings.LastIndex(last, "-")
	if idx < 0 || idx == len(last)-1 {
		return "", &MalformedURLError{URL: raw, Reason: "last path segment carries no match id"}
	}
	return last[idx+1:], nil
}
