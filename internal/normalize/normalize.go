// Package normalize canonicalizes URLs for dedup-key derivation (spec.md
// §4.1). Every function here is pure: no network I/O, no logging.
package normalize

import (
	"net/url"
	"strings"
)

// trackingParamPrefixes and trackingParamNames are the small configured
// denylist of tracking query parameters stripped from canonical URLs.
var trackingParamPrefixes = []string{"utm_"}

var trackingParamNames = map[string]bool{
	"gclid":  true,
	"fbclid": true,
}

// Canonical resolves href against base (if href is relative), lowercases
// scheme and host, strips the fragment and trailing slash (except at
// root), and removes denylisted tracking query parameters. Pagination
// query parameters are preserved. Returns ("", false) if href cannot be
// parsed or resolved to an absolute URL.
func Canonical(href, base string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}

	resolved := ref
	if !ref.IsAbs() {
		if base == "" {
			return "", false
		}
		baseURL, err := url.Parse(base)
		if err != nil {
			return "", false
		}
		resolved = baseURL.ResolveReference(ref)
	}

	if resolved.Scheme == "" || resolved.Host == "" {
		return "", false
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}

	resolved.Scheme = strings.ToLower(resolved.Scheme)
	resolved.Host = strings.ToLower(resolved.Host)
	resolved.Fragment = ""
	resolved.RawFragment = ""

	if resolved.RawQuery != "" {
		values := resolved.Query()
		for key := range values {
			lower := strings.ToLower(key)
			if trackingParamNames[lower] {
				values.Del(key)
				continue
			}
			for _, prefix := range trackingParamPrefixes {
				if strings.HasPrefix(lower, prefix) {
					values.Del(key)
					break
				}
			}
		}
		resolved.RawQuery = values.Encode()
	}

	path := resolved.Path
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimRight(path, "/")
	}
	if path == "" {
		path = "/"
	}
	resolved.Path = path

	return resolved.String(), true
}

// SameRegistrableDomain reports whether two hosts share a registrable
// domain (the last two labels, e.g. "shop.example.com" and "www.example.com"
// both resolve to "example.com"). This is a pragmatic approximation — it
// does not consult the public suffix list, matching the teacher's
// colly.AllowedDomains-style plain host comparison rather than adding a
// PSL dependency no pack repo carries.
func SameRegistrableDomain(hostA, hostB string) bool {
	a := registrable(hostA)
	b := registrable(hostB)
	return a != "" && a == b
}

func registrable(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

// Host extracts the lowercase host from a canonical or raw URL string, or
// "" if unparsable.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
