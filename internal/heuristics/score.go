package heuristics

import (
	"net/url"
	"strings"
)

// Signals is the text of a page split by where it appeared.
type Signals struct {
	Title    string
	Headings string
	Body     string
	URL      string
}

// ScoreLink ranks a candidate link: contact, roster and licensing hints in
// the path or query raise the score, binary assets sink it.
func (r *Rules) ScoreLink(rawURL string) int {
	target := strings.ToLower(rawURL)
	if u, err := url.Parse(rawURL); err == nil {
		target = strings.ToLower(u.EscapedPath())
		if u.RawQuery != "" {
			target += "?" + strings.ToLower(u.RawQuery)
		}
	}
	path := target
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	score := linkHintScore * r.linkHintSet.count(target)
	for _, ext := range r.BinaryExtensions {
		if strings.HasSuffix(path, ext) {
			score -= binaryLinkPenalty
			break
		}
	}
	return score
}

// KeepsLink reports whether a link's score clears the configured floor.
func (r *Rules) KeepsLink(score int) bool {
	return score >= r.LinkScoreFloor
}

// IsContactPath reports whether a URL path carries a contact-page hint.
func (r *Rules) IsContactPath(path string) bool {
	return r.contactSet.any(strings.ToLower(path))
}

// DetectRole scores every role and returns the strongest one with its
// confidence in [0,100]. RoleUnknown and 0 are returned when nothing matched.
func (r *Rules) DetectRole(s Signals) (Role, int) {
	fields := lowerSignals(s)
	best, bestScore := RoleUnknown, 0
	for i, rk := range r.Roles {
		if i >= len(r.roleSets) {
			break
		}
		score := r.keywordScore(fields, r.roleSets[i])
		if score > bestScore {
			best, bestScore = rk.Role, score
		}
	}
	return best, bestScore
}

// LibraryConfidence scores how strongly a page looks like a production-music
// or licensing business. Without a title or heading hit the score never
// exceeds 40.
func (r *Rules) LibraryConfidence(s Signals) int {
	fields := lowerSignals(s)
	score := r.keywordScore(fields, r.librarySet)
	if !r.librarySet.any(fields.Title) && !r.librarySet.any(fields.Headings) {
		score = min(score, libraryBodyCeil)
	}
	return score
}

func (r *Rules) keywordScore(fields loweredSignals, keywords *keywordSet) int {
	score := 0
	if keywords.any(fields.Title) {
		score += titleWeight
	}
	if keywords.any(fields.Headings) {
		score += headingWeight
	}
	if keywords.any(fields.Path) {
		score += pathWeight
	}
	score += bodyWeight * min(keywords.count(fields.Body), bodyKeywordCap)
	if score == 0 {
		return 0
	}
	if r.teamPathSet.any(fields.Path) {
		score += contactPathBonus
	}
	if r.editorialSet.any(fields.Path) {
		score -= editorialPenalty
	}
	return clamp(score, 0, 100)
}

type loweredSignals struct {
	Title    string
	Headings string
	Body     string
	Path     string
}

func lowerSignals(s Signals) loweredSignals {
	path := s.URL
	if u, err := url.Parse(s.URL); err == nil {
		path = u.Path
	}
	return loweredSignals{
		Title:    strings.ToLower(s.Title),
		Headings: strings.ToLower(s.Headings),
		Body:     strings.ToLower(s.Body),
		Path:     strings.ToLower(path),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
