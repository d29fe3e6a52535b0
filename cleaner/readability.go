package cleaner

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// minContentLength is the shortest readability text accepted as a job
// description. Shorter output means the algorithm picked a nav block or
// cookie notice.
const minContentLength = 120

// ExtractDescription pulls the main content out of a job-detail page and
// returns it as Markdown. ok is false when readability could not find a
// plausible description; callers then keep whatever the listing card had.
func ExtractDescription(rawHTML, sourceURL string) (desc string, ok bool) {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		return "", false
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Debug("readability: extraction failed", "url", sourceURL, "error", err)
		return "", false
	}
	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		slog.Debug("readability: content too short", "url", sourceURL, "length", len(article.TextContent))
		return "", false
	}

	md := Markdown(article.Content, parsedURL.Scheme+"://"+parsedURL.Host)
	if md == "" {
		md = CleanText(article.TextContent)
	}
	return md, true
}
