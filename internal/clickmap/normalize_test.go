package clickmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLowercases(t *testing.T) {
	n := Normalize("HTTPS://Example.COM/Path")
	assert.False(t, n.Fallback)
	assert.Equal(t, "https://example.com/path", n.Key)

	// Path case folds too; the click report lowercases its URLs and a
	// mixed-case href must still produce the same key.
	assert.Equal(t,
		Normalize("https://example.com/some/story").Key,
		Normalize("https://example.com/Some/Story").Key)
}

func TestNormalizeStripsWWWPrefix(t *testing.T) {
	assert.Equal(t, "https://example.com/a", Normalize("https://www.example.com/a").Key)

	// Only an actual "www." prefix is stripped, not a leading substring
	assert.Equal(t, "https://wwwexample.com/a", Normalize("https://wwwexample.com/a").Key)
	assert.Equal(t, "https://ww.example.com/a", Normalize("https://ww.example.com/a").Key)
}

func TestNormalizeStripsTrailingSlash(t *testing.T) {
	assert.Equal(t, "https://example.com/path", Normalize("https://example.com/path/").Key)
	assert.Equal(t, "https://example.com", Normalize("https://example.com/").Key)
}

func TestNormalizeFiltersQueryParams(t *testing.T) {
	n := Normalize("https://example.com/p?junk=1&utm_source=newsletter&fbclid=x&id=42")
	assert.Equal(t, "https://example.com/p?id=42&utm_source=newsletter", n.Key)

	// Repeated values for a retained key keep the first
	n = Normalize("https://example.com/p?utm_medium=a&utm_medium=b")
	assert.Equal(t, "https://example.com/p?utm_medium=a", n.Key)

	// Fragment always dropped
	n = Normalize("https://example.com/p#section-2")
	assert.Equal(t, "https://example.com/p", n.Key)
}

func TestNormalizeIdempotent(t *testing.T) {
	urls := []string{
		"https://Example.com/Path/?utm_source=x&junk=1",
		"https://www.example.com/a/b/",
		"https://example.com",
		"http://example.com/p?id=1&utm_campaign=c&utm_medium=m&utm_source=s",
		"relative/path",
	}
	for _, u := range urls {
		once := Normalize(u).Key
		assert.Equal(t, once, Normalize(once).Key, "not idempotent for %q", u)
	}
}

func TestNormalizeMatchesTrackedRepresentation(t *testing.T) {
	// A differently-formatted href and tracked URL normalize to the
	// same key, so the click report joins back onto the HTML link.
	href := Normalize("https://Example.com/Path/?utm_source=x&junk=1")
	tracked := Normalize("https://example.com/path?utm_source=x")
	assert.Equal(t, tracked.Key, href.Key)
}

func TestNormalizeParseFailureFallsBack(t *testing.T) {
	// Control characters make url.Parse fail
	raw := "https://example.com/\x7f\x00"
	n := Normalize(raw)
	assert.True(t, n.Fallback)
	assert.Equal(t, raw, n.Key)
}

func TestNormalizeOpaqueURL(t *testing.T) {
	n := Normalize("MAILTO:Foo@Bar.com")
	assert.Equal(t, "mailto:Foo@Bar.com", n.Key)
	assert.Equal(t, n.Key, Normalize(n.Key).Key)
}
