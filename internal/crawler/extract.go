package crawler

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/leadcrawler/internal/heuristics"
)

// ExtractOptions bounds link extraction.
type ExtractOptions struct {
	// AllowExternal keeps links whose host differs from the seed's host.
	AllowExternal bool
	// MaxLinks caps the links returned per page. Zero means unlimited.
	MaxLinks int
}

// Extractor derives links, emails and scoring signals from parsed pages.
type Extractor struct {
	rules *heuristics.Rules
	opts  ExtractOptions
}

// NewExtractor builds an Extractor over immutable rules.
func NewExtractor(rules *heuristics.Rules, opts ExtractOptions) *Extractor {
	return &Extractor{rules: rules, opts: opts}
}

// Rules exposes the heuristic tables the extractor scores with.
func (e *Extractor) Rules() *heuristics.Rules {
	return e.rules
}

type scoredLink struct {
	url   string
	score int
}

// Links returns the page's crawlable links: http(s) only, resolved and
// normalized, restricted to the seed's site unless external links are
// allowed, filtered by score, deduplicated and ordered by descending score.
func (e *Extractor) Links(page *Page, seedURL string) []string {
	if page == nil || page.Doc == nil {
		return nil
	}
	base, err := url.Parse(page.URL)
	if err != nil {
		return nil
	}
	seedHost := SiteHost(seedURL)

	seen := make(map[string]struct{})
	var links []scoredLink
	page.Doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		target, ok := resolveHref(base, s.AttrOr("href", ""))
		if !ok {
			return
		}
		if !e.opts.AllowExternal && seedHost != "" && SiteHost(target) != seedHost {
			return
		}
		score := e.rules.ScoreLink(target)
		if !e.rules.KeepsLink(score) {
			return
		}
		if _, dup := seen[target]; dup {
			return
		}
		seen[target] = struct{}{}
		links = append(links, scoredLink{url: target, score: score})
	})

	sort.SliceStable(links, func(i, j int) bool {
		return links[i].score > links[j].score
	})
	if e.opts.MaxLinks > 0 && len(links) > e.opts.MaxLinks {
		links = links[:e.opts.MaxLinks]
	}
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.url
	}
	return out
}

// Emails returns the candidate addresses found in mailto anchors, the raw
// markup and obfuscated visible text, lowercased, deduplicated and sorted.
func (e *Extractor) Emails(page *Page) []string {
	if page == nil {
		return nil
	}
	found := make(map[string]struct{})
	add := func(addr string) {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr != "" && e.rules.IsCandidateEmail(addr) {
			found[addr] = struct{}{}
		}
	}

	if page.Doc != nil {
		page.Doc.Find(`a[href]`).Each(func(_ int, s *goquery.Selection) {
			href := strings.TrimSpace(s.AttrOr("href", ""))
			if len(href) < len("mailto:") || !strings.EqualFold(href[:len("mailto:")], "mailto:") {
				return
			}
			addr, _, _ := strings.Cut(href[len("mailto:"):], "?")
			if unescaped, err := url.PathUnescape(addr); err == nil {
				addr = unescaped
			}
			add(addr)
		})
	}
	for _, addr := range heuristics.ScanEmails(page.Raw) {
		add(addr)
	}
	for _, addr := range heuristics.ScanObfuscatedEmails(page.FullText) {
		add(addr)
	}

	out := make([]string, 0, len(found))
	for addr := range found {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// ContactLink returns the first anchor on the page whose resolved path carries
// a contact hint, normalized, or "" if none does.
func (e *Extractor) ContactLink(page *Page) string {
	if page == nil || page.Doc == nil {
		return ""
	}
	base, err := url.Parse(page.URL)
	if err != nil {
		return ""
	}
	var contact string
	page.Doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		target, ok := resolveHref(base, s.AttrOr("href", ""))
		if !ok {
			return true
		}
		u, err := url.Parse(target)
		if err != nil {
			return true
		}
		if e.rules.IsContactPath(u.Path) {
			contact = target
			return false
		}
		return true
	})
	return contact
}

// Signals returns the scoring inputs for page.
func (e *Extractor) Signals(page *Page) heuristics.Signals {
	return heuristics.Signals{
		Title:    page.Title,
		Headings: page.Headings,
		Body:     page.Text,
		URL:      page.URL,
	}
}

// resolveHref resolves href against base and returns the normalized absolute
// URL when it is an http(s) link.
func resolveHref(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"mailto:", "tel:", "javascript:"} {
		if strings.HasPrefix(lower, prefix) {
			return "", false
		}
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	target := NormalizeURL(base.ResolveReference(ref).String())
	if !IsHTTPURL(target) {
		return "", false
	}
	return target, true
}
