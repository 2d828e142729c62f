package clickmap

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractLinks parses anchor targets from a campaign's HTML body in
// document order. The parse is best-effort: malformed markup never
// fails, and no visibility or reachability filtering happens here.
func ExtractLinks(html string) []RawLink {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// net/html recovers from malformed input; a reader error here
		// means no document at all.
		return nil
	}

	var links []RawLink
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists {
			return
		}
		links = append(links, RawLink{URL: href, Index: len(links)})
	})
	return links
}

// mergeTagMarker is the Mailchimp template-placeholder prefix (*|TAG|*).
const mergeTagMarker = "*|"

// DedupeLinks removes duplicate link targets (first occurrence wins)
// and merge-tag placeholders, preserving document order.
func DedupeLinks(links []RawLink) []RawLink {
	seen := make(map[string]struct{}, len(links))
	unique := make([]RawLink, 0, len(links))
	for _, link := range links {
		if strings.HasPrefix(link.URL, mergeTagMarker) {
			continue
		}
		if _, dup := seen[link.URL]; dup {
			continue
		}
		seen[link.URL] = struct{}{}
		unique = append(unique, link)
	}
	return unique
}
