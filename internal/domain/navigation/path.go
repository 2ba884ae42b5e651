package navigation

import (
	"net/url"
	"strings"
)

// Pages that own a window layer
var windowPages = map[string]bool{"art": true, "work": true, "music": true}

// NormalisePath strips a single trailing slash; the empty path is "/"
func NormalisePath(p string) string {
	if p == "" {
		return "/"
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		return p[:len(p)-1]
	}
	return p
}

// ResolvePageID maps a known route to its page id, empty when unknown
func ResolvePageID(p string) string {
	switch NormalisePath(p) {
	case "/":
		return "home"
	case "/art":
		return "art"
	case "/work":
		return "work"
	case "/music":
		return "music"
	}
	return ""
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}

// requestURI is the path and query sent to the server and written to history
func requestURI(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		return p + "?" + u.RawQuery
	}
	return p
}
