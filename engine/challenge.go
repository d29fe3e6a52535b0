package engine

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// challengeMarkers are substrings found in the markup of CAPTCHA and
// anti-bot interstitials served by the common protection vendors.
var challengeMarkers = []struct {
	marker string
	name   string
}{
	{"g-recaptcha", "recaptcha"},
	{"www.google.com/recaptcha", "recaptcha"},
	{"h-captcha", "hcaptcha"},
	{"hcaptcha.com", "hcaptcha"},
	{"challenges.cloudflare.com", "cloudflare"},
	{"cf-challenge", "cloudflare"},
	{"cf-turnstile", "cloudflare"},
	{"/cdn-cgi/challenge-platform", "cloudflare"},
	{"px-captcha", "perimeterx"},
	{"captcha-delivery.com", "datadome"},
	{"geo.captcha-delivery", "datadome"},
	{"_incapsula_resource", "incapsula"},
	{"arkoselabs.com", "arkose"},
}

// challengePhrases appear in the visible text of interstitial pages.
var challengePhrases = []string{
	"verify you are human",
	"verify that you are human",
	"are you a robot",
	"are you a human",
	"unusual traffic from your computer",
	"complete the security check",
	"checking your browser before accessing",
	"please enable cookies and javascript",
	"press & hold",
	"access to this page has been denied",
}

var reCaptchaTitle = regexp.MustCompile(`(?i)(captcha|just a moment|attention required|security check|access denied|robot check)`)

// DetectChallenge returns a short vendor/kind label when the page looks like
// a CAPTCHA or anti-bot challenge, or "" when it looks like real content.
//
// Content-rich pages are never challenges, whatever widgets they embed.
// Phrases and titles only count on pages with little visible text, so a job
// description that mentions "captcha" does not trip the detector.
func DetectChallenge(rawHTML, title string) string {
	if rawHTML == "" {
		return ""
	}
	text := strings.ToLower(VisibleText([]byte(rawHTML)))
	if len(text) > 5000 {
		return ""
	}

	lower := strings.ToLower(rawHTML)
	for _, m := range challengeMarkers {
		if strings.Contains(lower, m.marker) {
			return m.name
		}
	}

	if len(text) > 3000 {
		return ""
	}
	for _, p := range challengePhrases {
		if strings.Contains(text, p) {
			return "interstitial"
		}
	}
	if title == "" {
		title = ExtractTitle(rawHTML)
	}
	if title != "" && reCaptchaTitle.MatchString(title) {
		return "interstitial"
	}
	return ""
}

// NeedsBrowser uses heuristics to decide if an HTTP-fetched page is a JS
// shell that only renders its listings client-side.
func NeedsBrowser(body []byte) bool {
	bodyText := VisibleText(body)

	// Very little visible text in <body>: likely an SPA shell.
	if len(bodyText) < 200 {
		return true
	}

	lower := strings.ToLower(string(body))
	for _, root := range []string{`<div id="root"></div>`, `<div id="app"></div>`, `<div id="__next"></div>`} {
		if strings.Contains(lower, root) {
			return true
		}
	}
	if reNoscript.MatchString(lower) && len(bodyText) < 1000 {
		return true
	}

	// Many scripts and little text: JS-heavy page.
	return strings.Count(lower, "<script") > 10 && len(bodyText) < 500
}

var reNoscript = regexp.MustCompile(`<noscript[^>]*>[^<]*(enable|activate|turn on|requires?)\s+javascript`)

// ExtractTitle uses the Go HTML tokenizer to find the first <title> element.
func ExtractTitle(htmlStr string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	inTitle := false
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			inTitle = string(tn) == "title"
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}

// VisibleText returns the text inside <body>, skipping script, style and
// noscript content. Used for heuristics only.
func VisibleText(body []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	var buf strings.Builder
	inBody := false
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(buf.String())
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "body":
				inBody = true
			case "script", "style", "noscript":
				skipDepth++
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "script", "style", "noscript":
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if inBody && skipDepth == 0 {
				if text := strings.TrimSpace(string(tokenizer.Text())); text != "" {
					buf.WriteString(text)
					buf.WriteByte(' ')
				}
			}
		}
	}
}
