// Package cleaner turns listing and job-detail HTML into the plain text and
// Markdown stored on job records.
package cleaner

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
)

// conv is goroutine-safe and shared by every caller.
var conv = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal)),
	),
)

var (
	reSpaces     = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	reBlankLines = regexp.MustCompile(`\n{3,}`)
)

// Markdown converts an HTML fragment to Markdown, resolving relative links
// against baseURL. If conversion fails the fragment's text is returned.
func Markdown(htmlContent, baseURL string) string {
	out, err := conv.ConvertString(htmlContent, converter.WithDomain(baseURL))
	if err != nil {
		return PlainText(htmlContent)
	}
	return tidy(out)
}

// PlainText returns the visible text of an HTML fragment with whitespace
// collapsed.
func PlainText(htmlContent string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return CleanText(htmlContent)
	}
	doc.Find("script, style, noscript").Remove()
	return CleanText(doc.Text())
}

// CleanText collapses runs of whitespace to single spaces and trims.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func tidy(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(reSpaces.ReplaceAllString(l, " "), " ")
	}
	return strings.TrimSpace(reBlankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}
