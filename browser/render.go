package browser

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/jobscout/engine"
	"github.com/use-agent/jobscout/models"
	"github.com/ysmood/gson"
)

// Render loads req.URL in a pooled tab and returns the rendered DOM. It
// matches engine.RenderFunc.
//
// Stealth JS and the resource blocker are installed before navigation,
// since both only affect loads that start after they exist. The deferred
// about:blank uses the page without the request context so cleanup still
// runs after the deadline has passed.
func (b *Browser) Render(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	// ── 1. Timeout guard ──────────────────────────────────────────────
	timeout := req.Timeout
	if timeout <= 0 || timeout > b.cfg.NavigationTimeout && b.cfg.NavigationTimeout > 0 {
		timeout = b.cfg.NavigationTimeout
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// ── 2. Acquire page from pool ─────────────────────────────────────
	b.activePages.Add(1)
	defer b.activePages.Add(-1)

	page, err := b.pagePool.Get(func() (*rod.Page, error) {
		return b.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to acquire page from pool", err)
	}

	// ── 3. Cleanup: blank the tab and return it to the pool ───────────
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		b.pagePool.Put(page)
	}()

	// ── 4. Stealth injection ──────────────────────────────────────────
	if req.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}
	_ = proto.EmulationSetLocaleOverride{Locale: "en-GB"}.Call(page)
	_ = proto.NetworkSetUserAgentOverride{
		UserAgent:      engine.RandomUserAgent(),
		AcceptLanguage: "en-GB,en;q=0.9",
	}.Call(page)

	// ── 5. Headers and cookies ────────────────────────────────────────
	headers := make(map[string]string, len(req.Headers)+1)
	if u, parseErr := url.Parse(req.URL); parseErr == nil {
		headers["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
	}
	for k, v := range req.Headers {
		headers[k] = v
	}
	_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}.Call(page)

	for _, c := range req.Cookies {
		domain := c.Domain
		if domain == "" {
			if u, parseErr := url.Parse(req.URL); parseErr == nil {
				domain = u.Hostname()
			}
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		_, _ = proto.NetworkSetCookie{Name: c.Name, Value: c.Value, Domain: domain, Path: path}.Call(page)
	}

	// ── 6. Resource blocking ──────────────────────────────────────────
	if router := blockResources(page, b.cfg.BlockedResourceTypes, b.cfg.BlockAds); router != nil {
		defer func() { _ = router.Stop() }()
	}

	// ── 7. Navigate and wait ──────────────────────────────────────────
	p := page.Context(ctx)
	if err := p.Navigate(req.URL); err != nil {
		return nil, categorizeError(err, "navigation to search page failed")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, using current DOM", "url", req.URL, "error", err)
	}

	// Navigation timing exposes the document's status without enabling
	// the Network domain, which conflicts with the hijack router.
	statusCode := 0
	if res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	}`); err == nil {
		statusCode = res.Value.Int()
	}
	if statusCode == 0 {
		statusCode = 200
	}

	dismissConsent(p)

	// ── 8. Extract ────────────────────────────────────────────────────
	rawHTML, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to extract page HTML")
	}
	title := evalString(p, `() => document.title`)
	finalURL := evalString(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	return &engine.FetchResult{
		HTML:       rawHTML,
		Title:      title,
		StatusCode: statusCode,
		FinalURL:   finalURL,
		EngineName: "rod",
	}, nil
}

// dismissConsent removes cookie banners and the body scroll lock they set.
// Listing markup is unaffected, but some boards lazy-load cards only when
// the banner is gone.
func dismissConsent(p *rod.Page) {
	const js = `() => {
		const selectors = [
			'#onetrust-consent-sdk', '#CybotCookiebotDialog', '[id*="cookie-banner"]',
			'[class*="cookie-banner"]', '[class*="consent"]', '[id*="consent"]', '[class*="gdpr"]',
		];
		for (const sel of selectors) {
			document.querySelectorAll(sel).forEach(el => {
				const pos = window.getComputedStyle(el).position;
				if (pos === 'fixed' || pos === 'sticky' || pos === 'absolute') el.remove();
			});
		}
		document.documentElement.style.overflow = '';
		if (document.body) document.body.style.overflow = '';
	}`
	_, _ = p.Eval(js)
}

func evalString(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain map to proto.NetworkHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw rod errors into typed ScrapeErrors.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
