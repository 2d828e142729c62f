package clickmap

import (
	"net/url"
	"strings"
)

// essentialParams is the query-parameter allow-list retained by
// normalization; everything else is treated as tracking noise.
// Order matters: retained params are reassembled in this order.
var essentialParams = []string{"id", "utm_source", "utm_medium", "utm_campaign"}

// Normalize canonicalizes a URL into a comparison key: scheme, host,
// and path lowercased, a literal "www." host prefix stripped, one
// trailing slash removed from the path, the query reduced to the
// essential-parameter allow-list (first value wins for repeated keys),
// and the fragment dropped. On parse failure the input is passed
// through unchanged with Fallback set; normalization is best-effort,
// never fatal.
func Normalize(raw string) NormalizedURL {
	parsed, err := url.Parse(raw)
	if err != nil {
		return NormalizedURL{Key: raw, Fallback: true}
	}

	scheme := strings.ToLower(parsed.Scheme)

	// Opaque URLs (mailto:, tel:) have no host/query to canonicalize
	if parsed.Opaque != "" {
		return NormalizedURL{Key: scheme + ":" + parsed.Opaque}
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	// Mailchimp's click report lowercases tracked URLs, so the href
	// side must fold path case too or the join misses.
	path := strings.TrimSuffix(strings.ToLower(parsed.Path), "/")

	query := parsed.Query()
	var kept []string
	for _, key := range essentialParams {
		if vals, ok := query[key]; ok && len(vals) > 0 && vals[0] != "" {
			kept = append(kept, key+"="+vals[0])
		}
	}

	var b strings.Builder
	if scheme != "" {
		b.WriteString(scheme)
		b.WriteString("://")
	}
	b.WriteString(host)
	b.WriteString(path)
	if len(kept) > 0 {
		b.WriteString("?")
		b.WriteString(strings.Join(kept, "&"))
	}

	return NormalizedURL{Key: b.String()}
}
