package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContactResolver(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		page  string
		setup func(g *fakeGetter)
		want  ContactResult
	}{
		{
			name: "email on page",
			page: `<a href="mailto:hello@harbor.com">mail</a><a href="/contact">c</a>`,
			want: ContactResult{Type: ContactEmail, Email: "hello@harbor.com", URL: "https://harbor.com/home", Via: "page"},
		},
		{
			name: "email on linked contact page",
			page: `<a href="/about-us">About</a>`,
			setup: func(g *fakeGetter) {
				g.page("https://harbor.com/about-us", `<p>write to team@harbor.com</p>`)
			},
			want: ContactResult{Type: ContactEmail, Email: "team@harbor.com", URL: "https://harbor.com/about-us", Via: "contact_link"},
		},
		{
			name: "linked contact page without email is a form",
			page: `<a href="/contact">Contact</a>`,
			setup: func(g *fakeGetter) {
				g.page("https://harbor.com/contact", `<form><input name="msg"></form>`)
			},
			want: ContactResult{Type: ContactForm, URL: "https://harbor.com/contact", Via: "contact_link"},
		},
		{
			name: "unreachable contact link is still a form",
			page: `<a href="/contact">Contact</a>`,
			setup: func(g *fakeGetter) {
				g.fail("https://harbor.com/contact", errors.New("timeout"))
			},
			want: ContactResult{Type: ContactForm, URL: "https://harbor.com/contact", Via: "contact_link"},
		},
		{
			name: "guessed path",
			page: `<a href="/shop">Shop</a>`,
			setup: func(g *fakeGetter) {
				g.page("https://harbor.com/team", `<p>no address here</p>`)
				g.page("https://harbor.com/licensing", `<a href="mailto:sync@harbor.com">x</a>`)
			},
			want: ContactResult{Type: ContactForm, URL: "https://harbor.com/team", Via: "path_guess"},
		},
		{
			name: "nothing found",
			page: `<p>just music</p>`,
			want: ContactResult{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(FetchOptions{}, LeadOptions{})
			if tc.setup != nil {
				tc.setup(h.getter)
			}
			resolver := NewContactResolver(h.fetch, h.extractor)

			got := resolver.Resolve(context.Background(), ParsePage("https://harbor.com/home", []byte(tc.page)))
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.want.Type != "", got.Found())
		})
	}
}

func TestContactResolverGuessesStopAtFirstSuccess(t *testing.T) {
	t.Parallel()
	h := newHarness(FetchOptions{}, LeadOptions{})
	h.getter.page("https://harbor.com/contact-us", `<p>ops (at) harbor (dot) com</p>`)
	resolver := NewContactResolver(h.fetch, h.extractor)

	got := resolver.Resolve(context.Background(), ParsePage("https://harbor.com/", []byte(`<p>hi</p>`)))
	assert.Equal(t, ContactResult{Type: ContactEmail, Email: "ops@harbor.com", URL: "https://harbor.com/contact-us", Via: "path_guess"}, got)
	assert.Equal(t, 1, h.getter.callCount("https://harbor.com/contact"))
	assert.Zero(t, h.getter.callCount("https://harbor.com/about"))
}
