package crawler

import (
	"context"
)

// ContactResult is the outcome of contact resolution. An empty Type means no
// contact route was found.
type ContactResult struct {
	Type  ContactType
	Email string
	URL   string
	// Via names the strategy that produced the result.
	Via string
}

// Found reports whether a contact route was resolved.
func (c ContactResult) Found() bool {
	return c.Type != ""
}

// PageFetcher is the subset of FetchLayer the contact resolver needs.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, bool)
}

// contactStrategy tries one way of reaching the page owner. ok reports that
// the strategy decided the outcome and later strategies must not run.
type contactStrategy struct {
	name    string
	resolve func(ctx context.Context, page *Page) (result ContactResult, ok bool)
}

// ContactResolver runs an ordered chain of contact strategies and returns the
// first decisive result: an address on the page itself, then the page's own
// contact link, then well-known contact paths on the page's origin.
type ContactResolver struct {
	fetcher    PageFetcher
	extractor  *Extractor
	strategies []contactStrategy
}

// NewContactResolver builds the default strategy chain.
func NewContactResolver(fetcher PageFetcher, extractor *Extractor) *ContactResolver {
	r := &ContactResolver{fetcher: fetcher, extractor: extractor}
	r.strategies = []contactStrategy{
		{name: "page", resolve: r.fromPage},
		{name: "contact_link", resolve: r.fromContactLink},
		{name: "path_guess", resolve: r.fromGuessedPaths},
	}
	return r
}

// Resolve returns how the owner of page can be contacted.
func (r *ContactResolver) Resolve(ctx context.Context, page *Page) ContactResult {
	for _, s := range r.strategies {
		if ctx.Err() != nil {
			break
		}
		if result, ok := s.resolve(ctx, page); ok {
			result.Via = s.name
			return result
		}
	}
	return ContactResult{}
}

func (r *ContactResolver) fromPage(_ context.Context, page *Page) (ContactResult, bool) {
	emails := r.extractor.Emails(page)
	if len(emails) == 0 {
		return ContactResult{}, false
	}
	return ContactResult{Type: ContactEmail, Email: emails[0], URL: page.URL}, true
}

// fromContactLink follows the page's contact anchor. A found anchor is decisive
// even when fetching it fails: the page is then reachable through a form.
func (r *ContactResolver) fromContactLink(ctx context.Context, page *Page) (ContactResult, bool) {
	link := r.extractor.ContactLink(page)
	if link == "" {
		return ContactResult{}, false
	}
	if body, ok := r.fetcher.Fetch(ctx, link); ok {
		if emails := r.extractor.Emails(ParsePage(link, body)); len(emails) > 0 {
			return ContactResult{Type: ContactEmail, Email: emails[0], URL: link}, true
		}
	}
	return ContactResult{Type: ContactForm, URL: link}, true
}

func (r *ContactResolver) fromGuessedPaths(ctx context.Context, page *Page) (ContactResult, bool) {
	base := origin(page.URL)
	if base == "" {
		return ContactResult{}, false
	}
	for _, path := range r.extractor.Rules().ContactPaths {
		if ctx.Err() != nil {
			return ContactResult{}, false
		}
		guess := NormalizeURL(base + path)
		body, ok := r.fetcher.Fetch(ctx, guess)
		if !ok {
			continue
		}
		if emails := r.extractor.Emails(ParsePage(guess, body)); len(emails) > 0 {
			return ContactResult{Type: ContactEmail, Email: emails[0], URL: guess}, true
		}
		return ContactResult{Type: ContactForm, URL: guess}, true
	}
	return ContactResult{}, false
}
