package engine

import (
	"strings"
	"testing"
)

func TestDetectChallenge(t *testing.T) {
	longDescription := strings.Repeat("Monitor SIEM alerts and triage incidents across the estate. ", 120)

	tests := []struct {
		name  string
		html  string
		title string
		want  string
	}{
		{
			name: "recaptcha widget",
			html: `<html><body><form><div class="g-recaptcha" data-sitekey="x"></div></form></body></html>`,
			want: "recaptcha",
		},
		{
			name: "cloudflare turnstile",
			html: `<html><body><div class="cf-turnstile"></div></body></html>`,
			want: "cloudflare",
		},
		{
			name: "interstitial phrase",
			html: `<html><body><p>Please verify you are human to continue.</p></body></html>`,
			want: "interstitial",
		},
		{
			name:  "challenge title",
			html:  `<html><head><title>Just a moment...</title></head><body></body></html>`,
			title: "",
			want:  "interstitial",
		},
		{
			name: "ordinary listing page",
			html: `<html><head><title>Cyber security jobs</title></head><body><h2>SOC Analyst</h2></body></html>`,
			want: "",
		},
		{
			name: "content rich page mentioning captcha",
			html: `<html><body><p>` + longDescription + ` We also build captcha tooling. Are you a robot fan?</p><div class="g-recaptcha"></div></body></html>`,
			want: "",
		},
		{
			name: "empty",
			html: "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectChallenge(tt.html, tt.title); got != tt.want {
				t.Errorf("DetectChallenge = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRefused(t *testing.T) {
	if !(&FetchResult{StatusCode: 403}).Refused() {
		t.Error("403 should be refused")
	}
	if (&FetchResult{StatusCode: 429}).Refused() {
		t.Error("429 is rate limiting, not refusal")
	}
}

func TestNeedsBrowser(t *testing.T) {
	shell := []byte(`<html><body><div id="root"></div><script src="/app.js"></script></body></html>`)
	if !NeedsBrowser(shell) {
		t.Error("SPA shell should need a browser")
	}
	full := []byte("<html><body><p>" + strings.Repeat("Graduate penetration tester role in Manchester. ", 40) + "</p></body></html>")
	if NeedsBrowser(full) {
		t.Error("server-rendered page should not need a browser")
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("120"); got.Seconds() != 120 {
		t.Errorf("parseRetryAfter(120) = %v", got)
	}
	if got := parseRetryAfter("soon"); got != 0 {
		t.Errorf("parseRetryAfter(soon) = %v", got)
	}
}
