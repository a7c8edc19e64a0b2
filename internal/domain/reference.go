package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var trackingParams = map[string]struct{}{
	"fbclid": {},
	"gclid":  {},
	"ref":    {},
	"source": {},
}

// NormalizeURL produces the canonical form used for article identity.
func NormalizeURL(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", raw)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""

	query := parsed.Query()
	for key := range query {
		lower := strings.ToLower(key)
		if _, drop := trackingParams[lower]; drop || strings.HasPrefix(lower, "utm_") {
			query.Del(key)
		}
	}
	parsed.RawQuery = query.Encode()

	if len(parsed.Path) > 1 {
		parsed.Path = strings.TrimRight(parsed.Path, "/")
		parsed.RawPath = ""
	}

	return parsed.String(), nil
}

// NewArticleReference builds a reference whose ID is stable across fetches.
// When idPattern is set and its first capture group matches the URL, the
// captured site id is used instead of the normalized URL.
func NewArticleReference(rawURL, title string, idPattern *regexp.Regexp) (ArticleReference, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return ArticleReference{}, err
	}

	id := normalized
	if idPattern != nil {
		if m := idPattern.FindStringSubmatch(normalized); len(m) > 1 && m[1] != "" {
			id = m[1]
		}
	}

	return ArticleReference{
		ID:    id,
		URL:   normalized,
		Title: strings.TrimSpace(title),
	}, nil
}
