package tabgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURLFilter_Allow(t *testing.T) {
	f := NewURLFilter(DefaultUnwantedDomains...)

	tests := map[string]bool{
		"https://doc.rust-lang.org/book/":         true,
		"http://www.bbc.co.uk/news":               true,
		"https://example.com/page":                false,
		"https://www.facebook.com/groups/rust":    false,
		"https://m.facebook.com/":                 false,
		"https://uk.linkedin.com/in/someone":      false,
		"https://notfacebook.com/":                true,
		"ftp://files.rust-lang.org/":              false,
		"javascript:alert(1)":                     false,
		"doc.rust-lang.org/book":                  false,
		"https://localhost:8080/":                 false,
		"https://":                                false,
		"   https://www.rust-lang.org/learn   ":   true,
		"https://www.pinterest.com/pin/123":       false,
		"https://placeholder.com/300x200":         false,
	}
	for raw, want := range tests {
		t.Run(raw, func(t *testing.T) {
			assert.Equal(t, want, f.Allow(raw))
		})
	}
}

func TestURLFilter_CustomDomains(t *testing.T) {
	f := NewURLFilter("Reddit.com", "")
	assert.False(t, f.Allow("https://old.reddit.com/r/golang"))
	assert.True(t, f.Allow("https://example.com"))
}
