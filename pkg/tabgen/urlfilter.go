package tabgen

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// DefaultUnwantedDomains are registrable domains never opened as tabs:
// placeholders and social sites that need a login.
var DefaultUnwantedDomains = []string{
	"example.com", "test.com", "placeholder.com",
	"facebook.com", "twitter.com", "instagram.com", "linkedin.com", "pinterest.com",
}

// URLFilter accepts absolute http(s) URLs outside a blocklist of domains.
type URLFilter struct {
	unwanted map[string]struct{}
}

// NewURLFilter blocks each of domains and all of their subdomains.
func NewURLFilter(domains ...string) *URLFilter {
	f := &URLFilter{unwanted: make(map[string]struct{}, len(domains))}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			f.unwanted[d] = struct{}{}
		}
	}
	return f
}

// Allow reports whether raw is a usable tab URL.
func (f *URLFilter) Allow(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || !strings.Contains(host, ".") {
		return false
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		domain = host
	}
	if _, blocked := f.unwanted[domain]; blocked {
		return false
	}
	// also catch entries listed with a subdomain, e.g. "m.facebook.com"
	for d := range f.unwanted {
		if host == d || strings.HasSuffix(host, "."+d) {
			return false
		}
	}
	return true
}
