package heuristics

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)

	obfuscatedEmailPattern = regexp.MustCompile(
		`(?i)([A-Z0-9._%+-]+)\s*(?:@|\(at\)|\[at\]|\sat\s)\s*([A-Z0-9.-]+)\s*(?:\.|\(dot\)|\[dot\]|\sdot\s)\s*([A-Z]{2,})`,
	)
)

// IsCandidateEmail reports whether email looks like a reachable human or
// business inbox rather than infrastructure, a placeholder or a scrape
// artifact.
func (r *Rules) IsCandidateEmail(email string) bool {
	e := strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(e, "@")
	if at <= 0 || at == len(e)-1 {
		return false
	}
	if r.emailJunkSet.any(e) {
		return false
	}
	local, domain := e[:at], e[at+1:]
	if r.emailDomains.Blocks(domain) {
		return false
	}
	for _, placeholder := range r.PlaceholderLocalParts {
		if local == placeholder {
			return false
		}
	}
	for _, suffix := range r.BlockedEmailSuffixes {
		if strings.HasSuffix(domain, suffix) {
			return false
		}
	}
	return true
}

// ScanEmails returns every address-shaped token in markup, lowercased.
func ScanEmails(markup string) []string {
	matches := emailPattern.FindAllString(markup, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.ToLower(strings.TrimSpace(m)))
	}
	return out
}

// ScanObfuscatedEmails recovers addresses written as "name (at) host (dot) tld"
// and similar spellings from visible text.
func ScanObfuscatedEmails(text string) []string {
	var out []string
	for _, m := range obfuscatedEmailPattern.FindAllStringSubmatch(text, -1) {
		if len(m) != 4 {
			continue
		}
		out = append(out, strings.ToLower(strings.TrimSpace(m[1]+"@"+m[2]+"."+m[3])))
	}
	return out
}
