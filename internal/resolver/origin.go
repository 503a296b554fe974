// Package resolver maps requested content URLs to registered
// publishers and their priced endpoints.
package resolver

import (
	"net/url"
	"strings"
)

// NormalizeOrigin canonicalizes a URL's origin for matching:
// lowercase scheme and host, strip a leading "www.", and drop default
// ports. The resolver and publisher registration both key on this
// normalized form.
func NormalizeOrigin(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")

	port := u.Port()
	switch {
	case port == "":
	case scheme == "http" && port == "80":
	case scheme == "https" && port == "443":
	default:
		host = host + ":" + port
	}

	return scheme + "://" + host
}

// NormalizeSlug canonicalizes a publisher slug to "/slug" form: one
// leading slash, no trailing slash. An empty slug stays empty, meaning
// the publisher claims its whole origin.
func NormalizeSlug(slug string) string {
	slug = strings.TrimSpace(slug)
	slug = strings.Trim(slug, "/")
	if slug == "" {
		return ""
	}
	return "/" + slug
}
