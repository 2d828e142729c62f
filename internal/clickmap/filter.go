package clickmap

import (
	"net/url"
	"strings"
)

// Filter decides which links are non-content noise: mailto targets and
// links whose host matches a configured exclusion set (social platforms,
// the publication's own site, survey tools, newsletter redirectors).
type Filter struct {
	excluded map[string]struct{}
}

// NewFilter creates a Filter from an exclusion-domain list. Entries are
// matched against the link's host after lowercasing and stripping a
// "www." prefix.
func NewFilter(domains []string) *Filter {
	excluded := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d != "" {
			excluded[d] = struct{}{}
		}
	}
	return &Filter{excluded: excluded}
}

// ShouldExclude reports whether the link is noise: a mailto: target
// (case-insensitive) or a host on the exclusion list. Unparseable
// links are never excluded (best-effort, like normalization).
func (f *Filter) ShouldExclude(link string) bool {
	if strings.HasPrefix(strings.ToLower(link), "mailto:") {
		return true
	}

	parsed, err := url.Parse(link)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	_, excluded := f.excluded[host]
	return excluded
}
