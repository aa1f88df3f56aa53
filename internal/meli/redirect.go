package meli

import (
	"strings"
)

// RedirectURIPlaceholder is the sentinel returned when a redirect uri cannot
// be derived safely. It never parses as a URL, so misconfiguration surfaces
// instead of a silently broken OAuth flow registered at the marketplace.
const RedirectURIPlaceholder = "INVALID_REDIRECT_URI_SET_APP_ORIGIN"

// DeriveRedirectURI builds the OAuth callback uri from the SPA origin.
//
// Fails closed: absent, "null" or blob origins yield the placeholder.
// Otherwise the origin is normalized with a trailing slash and the scheme is
// forced to https. The marketplace allows plain http for localhost redirect
// uris, so localhost is left untouched for local development.
func DeriveRedirectURI(origin string) string {
	if origin == "" || origin == "null" || strings.HasPrefix(origin, "blob:") {
		return RedirectURIPlaceholder
	}

	uri := origin
	if !strings.HasSuffix(uri, "/") {
		uri += "/"
	}

	if !strings.HasPrefix(origin, "http://localhost") && strings.HasPrefix(uri, "http:") {
		uri = "https:" + uri[len("http:"):]
	}

	return uri
}
