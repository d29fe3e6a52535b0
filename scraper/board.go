package scraper

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/jobscout/models"
	"github.com/use-agent/jobscout/simhash"
)

// Site is what a paginated job board contributes to a Board: where its
// search pages live and how to read listings off one.
type Site interface {
	Key() string
	Platform() models.Platform

	// SearchURL returns the URL of result page (1-based) for a search.
	SearchURL(keyword, location string, page int) string

	// Parse extracts listings from a result page. Cards missing a title or
	// URL are skipped, not reported.
	Parse(doc *goquery.Document, pageURL string, now time.Time) []models.JobListing
}

// Board runs a Site: one rate-limited, retried fetch per result page until
// a stop condition is reached.
type Board struct {
	site   Site
	client pageClient
	m      counters
	state  atomic.Int32
}

// NewBoard wraps site with the shared fetch machinery.
func NewBoard(site Site, deps Deps) *Board {
	b := &Board{site: site}
	b.client = pageClient{deps: deps, key: site.Key(), m: &b.m}
	return b
}

func (b *Board) Key() string               { return b.site.Key() }
func (b *Board) Platform() models.Platform { return b.site.Platform() }
func (b *Board) Metrics() Metrics          { return b.m.snapshot() }
func (b *Board) ResetMetrics()             { b.m.reset() }

// State returns the current run state.
func (b *Board) State() State { return State(b.state.Load()) }

func (b *Board) setState(s State) { b.state.Store(int32(s)) }

func (b *Board) Scrape(ctx context.Context, keyword, location string, opts Options) (*Result, error) {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = 5
	}
	now := b.client.deps.now()
	var cutoff time.Time
	if opts.MaxAge > 0 {
		cutoff = now.Add(-opts.MaxAge)
	}

	log := slog.With("source", b.site.Key(), "keyword", keyword)
	res := &Result{}
	seen := make(map[string]struct{})
	var pages simhash.PageTracker

	defer b.setState(StateStopped)

	for page := 1; ; page++ {
		if page > maxPages {
			res.Stop = StopMaxPages
			break
		}

		b.setState(StateFetching)
		pageURL := b.site.SearchURL(keyword, location, page)
		fr, err := b.client.get(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				res.Stop = StopFailed
				return res, ctx.Err()
			}
			stop, challenge, runErr := stopFor(err, page)
			res.Stop, res.Challenge = stop, challenge
			switch stop {
			case StopCaptcha:
				log.Warn("anti-bot challenge detected, aborting source run",
					"signal", "captcha", "vendor", challenge, "page", page, "collected", len(res.Listings))
			case StopBlocked, StopRateLimited:
				log.Warn("source refused requests, keeping partial results",
					"reason", string(stop), "page", page, "collected", len(res.Listings))
			case StopExhausted:
				log.Debug("no further result pages", "page", page)
			default:
				log.Error("page fetch failed", "page", page, "error", err)
			}
			if runErr != nil {
				return res, runErr
			}
			break
		}
		res.Pages++

		b.setState(StateParsing)
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(fr.HTML))
		if err != nil {
			res.Stop = StopEmptyPage
			break
		}
		base := fr.FinalURL
		if base == "" {
			base = pageURL
		}
		listings := b.site.Parse(doc, base, now)
		if len(listings) == 0 {
			res.Stop = StopEmptyPage
			break
		}

		keys := make([]string, len(listings))
		for i, l := range listings {
			keys[i] = l.URL
		}
		if pages.Repeat(simhash.Fingerprint(keys)) {
			log.Debug("board served the previous page again", "page", page)
			res.Stop = StopExhausted
			break
		}

		fresh, stale := 0, 0
		for i := range listings {
			l := listings[i]
			if _, dup := seen[l.URL]; dup {
				continue
			}
			seen[l.URL] = struct{}{}
			finalize(&l, b.site.Platform(), now)
			if !cutoff.IsZero() && l.PostedDate.Before(cutoff) {
				stale++
				continue
			}
			res.Listings = append(res.Listings, l)
			fresh++
		}
		b.m.listings.Add(int64(fresh))
		log.Debug("parsed result page", "page", page, "fresh", fresh, "stale", stale)

		if fresh == 0 && stale > 0 {
			res.Stop = StopExhausted
			break
		}
	}

	log.Info("source run finished",
		"stop", string(res.Stop), "pages", res.Pages, "listings", len(res.Listings))
	return res, nil
}
