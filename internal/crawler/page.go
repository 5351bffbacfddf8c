package crawler

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxBodyText = 5000

// Page is a parsed HTML document plus the text signals used for scoring.
type Page struct {
	URL      string
	Doc      *goquery.Document
	Raw      string
	Title    string
	Headings string
	// Text is the visible body text, whitespace-collapsed and capped.
	Text     string
	FullText string
	SiteName string
}

// ParsePage parses body as HTML. Malformed markup yields a Page with empty
// signals rather than an error.
func ParsePage(pageURL string, body []byte) *Page {
	page := &Page{URL: pageURL, Raw: string(body)}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return page
	}
	page.Doc = doc
	page.Title = collapse(doc.Find("title").First().Text())
	page.SiteName = strings.TrimSpace(doc.Find(`meta[property="og:site_name"]`).AttrOr("content", ""))

	var headings []string
	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		if text := collapse(s.Text()); text != "" {
			headings = append(headings, text)
		}
	})
	page.Headings = strings.Join(headings, " ")

	visible := doc.Clone()
	visible.Find("script, style, noscript, template").Remove()
	page.FullText = collapse(visible.Find("body").Text())
	if page.FullText == "" {
		page.FullText = collapse(visible.Text())
	}
	page.Text = truncate(page.FullText, maxBodyText)
	return page
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
