package crawler

import (
	"net/url"
	"strings"
)

// trackingParams lists query parameters that are stripped during
// normalization. Any parameter starting with "utm_" is stripped as well.
var trackingParams = map[string]struct{}{
	"gclid":   {},
	"gclsrc":  {},
	"dclid":   {},
	"fbclid":  {},
	"msclkid": {},
	"mc_cid":  {},
	"mc_eid":  {},
	"yclid":   {},
	"igshid":  {},
	"_ga":     {},
	"_hsenc":  {},
	"_hsmi":   {},
	"mkt_tok": {},
	"ref":     {},
	"ref_src": {},
}

// NormalizeURL canonicalizes a URL for identity and dedup: scheme and host
// are lowercased, default ports and the fragment are removed, and tracking
// parameters are dropped while the remaining parameters keep their order and
// encoding. Unparseable input is returned trimmed. NormalizeURL is idempotent.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = normalizeHost(u)
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = StripTrackingParams(u.RawQuery)
	u.ForceQuery = false
	return u.String()
}

// StripTrackingParams removes tracking parameters from a raw query string,
// preserving the order and raw encoding of every other parameter.
func StripTrackingParams(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	parts := strings.Split(rawQuery, "&")
	kept := parts[:0]
	for _, part := range parts {
		if part == "" {
			continue
		}
		key, _, _ := strings.Cut(part, "=")
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		if isTrackingParam(key) {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "&")
}

func isTrackingParam(key string) bool {
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "utm_") {
		return true
	}
	_, ok := trackingParams[key]
	return ok
}

func normalizeHost(u *url.URL) string {
	host := strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	return host
}

// SiteHost returns the lowercased hostname of raw without a leading "www.".
// Bare hosts such as "example.com/path" are accepted.
func SiteHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// IsHTTPURL reports whether raw parses as an absolute http(s) URL with a host.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// origin returns scheme://host for raw, or "" when it cannot be parsed.
func origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
