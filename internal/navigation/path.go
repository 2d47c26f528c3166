package navigation

import (
	"net/url"
	"path"
	"strings"
)

// SanitizeRequestedPath returns raw when it is a local absolute path that is
// safe to redirect to, and "" otherwise. Paths pointing at loginPath are
// dropped so a login never lands back on itself.
func SanitizeRequestedPath(raw, loginPath string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" {
		return ""
	}
	unescaped, err := url.PathUnescape(parsed.Path)
	if err != nil || strings.Contains(unescaped, "\\") {
		return ""
	}
	cleaned := path.Clean(unescaped)
	if !strings.HasPrefix(cleaned, "/") || strings.HasPrefix(cleaned, "//") {
		return ""
	}
	if loginPath != "" && samePath(cleaned, loginPath) {
		return ""
	}

	out := &url.URL{Path: cleaned, RawQuery: parsed.RawQuery, Fragment: parsed.Fragment}
	return out.String()
}

func samePath(a, b string) bool {
	trim := func(p string) string {
		for len(p) > 1 && strings.HasSuffix(p, "/") {
			p = strings.TrimSuffix(p, "/")
		}
		return p
	}
	return trim(a) == trim(b)
}
