// Package urlutil holds stateless helpers for share URL parameters.
// SortQueryInURL canonicalizes the URLs the saver logs. QueryToMap,
// MapToQuery and RefreshCode are building blocks for callers that assemble
// share links by hand; nothing in the save path needs them.
package urlutil

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"sort"
	"strings"
)

// ErrInvalidURL is returned when a URL is not absolute.
var ErrInvalidURL = errors.New("invalid url")

type pair struct {
	key   string
	value string
}

func splitPairs(query string) []pair {
	parts := strings.Split(query, "&")
	out := make([]pair, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		out = append(out, pair{key: key, value: value})
	}
	return out
}

// SortQuery orders the parameters of a key1=value1&key2=value2 string by key
// using byte-wise comparison. Only the first value of a repeated key is kept.
// When encode is set the values are query-escaped.
func SortQuery(query string, encode bool) string {
	if strings.TrimSpace(query) == "" {
		return ""
	}
	seen := make(map[string]struct{})
	kept := make([]pair, 0)
	for _, p := range splitPairs(query) {
		if _, ok := seen[p.key]; ok {
			continue
		}
		seen[p.key] = struct{}{}
		if encode {
			p.value = url.QueryEscape(p.value)
		}
		kept = append(kept, p)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].key < kept[j].key })
	return join(kept)
}

// SortQueryInURL sorts the query of an absolute URL, keeping its scheme, host,
// path and fragment.
func SortQueryInURL(rawURL string, encode bool) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	base := u.Scheme + "://" + u.Host + u.EscapedPath()
	var b strings.Builder
	b.WriteString(base)
	if sorted := SortQuery(u.RawQuery, encode); sorted != "" {
		b.WriteByte('?')
		b.WriteString(sorted)
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.EscapedFragment())
	}
	return b.String(), nil
}

// QueryToMap decodes a query string into a map. A leading '?' is ignored and
// the last value of a repeated key wins.
func QueryToMap(query string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(query) == "" {
		return out
	}
	query = strings.TrimPrefix(query, "?")
	for _, p := range splitPairs(query) {
		value, err := url.QueryUnescape(p.value)
		if err != nil {
			value = p.value
		}
		out[p.key] = value
	}
	return out
}

// MapToQuery renders params as a query string with keys in sorted order.
func MapToQuery(params map[string]string, encode bool) string {
	if len(params) == 0 {
		return ""
	}
	pairs := make([]pair, 0, len(params))
	for k, v := range params {
		if encode {
			v = url.QueryEscape(v)
		}
		pairs = append(pairs, pair{key: k, value: v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })
	return join(pairs)
}

// RefreshCode returns a random cache-busting value in [0, 1) with 16 decimals.
func RefreshCode() string {
	return fmt.Sprintf("%.16f", rand.Float64()) // #nosec G404 -- not security sensitive
}

func join(pairs []pair) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(p.value)
	}
	return b.String()
}
