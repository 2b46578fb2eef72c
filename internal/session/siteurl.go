package session

import "strings"

// FallbackSiteURL is used when no other candidate is configured.
const FallbackSiteURL = "http://localhost:5173/"

const callbackPath = "auth/callback"

// SiteURLs are the candidate base URLs for auth callback links, highest priority first.
type SiteURLs struct {
	// Explicitly configured public site URL.
	Public string
	// URL injected by the hosting platform, usually without a scheme.
	Platform string
	// Origin of the running UI, if there is one.
	Origin string
}

// Resolve returns ResolveSiteURL over the configured candidates.
func (u SiteURLs) Resolve() string {
	return ResolveSiteURL(u.Public, u.Platform, u.Origin)
}

// CallbackURL is where the confirmation email sends the user back to.
func (u SiteURLs) CallbackURL() string {
	return u.Resolve() + callbackPath
}

// ResolveSiteURL picks the first non-blank candidate, falling back to
// FallbackSiteURL, and normalizes it to carry a scheme and a trailing slash.
func ResolveSiteURL(candidates ...string) string {
	url := FallbackSiteURL
	for _, candidate := range candidates {
		if c := strings.TrimSpace(candidate); c != "" {
			url = c
			break
		}
	}
	if !strings.HasPrefix(url, "http") {
		url = "https://" + url
	}
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	return url
}
