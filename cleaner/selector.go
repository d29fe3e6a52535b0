package cleaner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Chain is an ordered list of CSS selectors tried until one matches. Job
// boards rename classes often; each field keeps its old selectors as
// fallbacks behind the current one.
type Chain []cascadia.Selector

// MustChain compiles selectors, panicking on a malformed one. Chains are
// package-level values, so a typo fails at init.
func MustChain(selectors ...string) Chain {
	c := make(Chain, len(selectors))
	for i, s := range selectors {
		c[i] = cascadia.MustCompile(s)
	}
	return c
}

// Find returns the elements matched by the first selector that matches
// anything under s.
func (c Chain) Find(s *goquery.Selection) *goquery.Selection {
	for _, sel := range c {
		if m := s.FindMatcher(sel); m.Length() > 0 {
			return m
		}
	}
	return s.FindMatcher(none)
}

// First returns the first element matched by the chain.
func (c Chain) First(s *goquery.Selection) *goquery.Selection {
	return c.Find(s).First()
}

// Text returns the cleaned text of the first non-empty match, trying later
// selectors when an earlier one matches only empty elements.
func (c Chain) Text(s *goquery.Selection) string {
	for _, sel := range c {
		var out string
		s.FindMatcher(sel).EachWithBreak(func(_ int, m *goquery.Selection) bool {
			out = CleanText(m.Text())
			return out == ""
		})
		if out != "" {
			return out
		}
	}
	return ""
}

// Attr returns the first non-empty value of attr among the chain's matches.
func (c Chain) Attr(s *goquery.Selection, attr string) string {
	for _, sel := range c {
		var out string
		s.FindMatcher(sel).EachWithBreak(func(_ int, m *goquery.Selection) bool {
			v, _ := m.Attr(attr)
			out = strings.TrimSpace(v)
			return out == ""
		})
		if out != "" {
			return out
		}
	}
	return ""
}

// none matches nothing; it gives Find an empty selection of the right type.
var none = cascadia.MustCompile("jobscout-none")
