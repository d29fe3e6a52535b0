package scraper

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"

	"github.com/use-agent/jobscout/cache"
	"github.com/use-agent/jobscout/cleaner"
	"github.com/use-agent/jobscout/models"
)

//go:embed companies.yaml
var defaultCompanies []byte

// Company is one employer career page.
type Company struct {
	Name       string `yaml:"name"`
	CareersURL string `yaml:"careers_url"`
	Location   string `yaml:"location"`
	Priority   string `yaml:"priority"`
}

// LoadCompanies reads the career page list from path, or the built-in list
// when path is empty. Only high-priority entries are returned.
func LoadCompanies(path string) ([]Company, error) {
	data := defaultCompanies
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read companies file: %w", err)
		}
		data = b
	}
	return parseCompanies(data)
}

func parseCompanies(data []byte) ([]Company, error) {
	var doc struct {
		Companies []Company `yaml:"companies"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse companies: %w", err)
	}
	var out []Company
	for _, c := range doc.Companies {
		if c.Name == "" || c.CareersURL == "" {
			continue
		}
		if p := strings.ToLower(c.Priority); p != "" && p != "high" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

var companyFields = cardFields{
	Cards: cleaner.MustChain(`.job-listing`, `.career-opportunity`, `.job-card`, `[data-job]`,
		`.position`, `.opening`, `.job-result`, `.vacancy`, `.job-post`),
	Title:       cleaner.MustChain(`h2`, `h3`, `.title`, `[class*="title"]`),
	Link:        cleaner.MustChain(`a[href]`),
	Location:    cleaner.MustChain(`[class*="location"]`),
	Description: cleaner.MustChain(`.description`, `[class*="description"]`, `.summary`),
	Posted:      cleaner.MustChain(`time`, `[class*="date"]`),
}

// securityTerms admit a career page listing even when it shares no word
// with the search keyword.
var securityTerms = []string{
	"security", "cyber", "soc ", "threat", "penetration", "pentest", "incident",
	"vulnerability", "forensic", "infosec", "grc",
}

// maxDetailFetches bounds the detail pages fetched per company per run.
const maxDetailFetches = 5

// CompanyPages scrapes a fixed list of employer career pages. It has no
// pagination: every run fetches each company's page once, served from
// cache for the remaining keywords of a cycle.
type CompanyPages struct {
	companies []Company
	client    pageClient
	pages     *cache.Cache[string]
	m         counters
	state     atomic.Int32
}

// NewCompanyPages creates the career page source. pages caches fetched
// HTML by URL; nil disables caching.
func NewCompanyPages(companies []Company, deps Deps, pages *cache.Cache[string]) *CompanyPages {
	c := &CompanyPages{companies: companies, pages: pages}
	c.client = pageClient{deps: deps, key: c.Key(), m: &c.m}
	return c
}

func (c *CompanyPages) Key() string               { return "companies" }
func (c *CompanyPages) Platform() models.Platform { return models.PlatformCompanyCareerPage }
func (c *CompanyPages) Metrics() Metrics          { return c.m.snapshot() }
func (c *CompanyPages) ResetMetrics()             { c.m.reset() }

// State returns the current run state.
func (c *CompanyPages) State() State { return State(c.state.Load()) }

func (c *CompanyPages) Scrape(ctx context.Context, keyword, location string, opts Options) (*Result, error) {
	now := c.client.deps.now()
	var cutoff time.Time
	if opts.MaxAge > 0 {
		cutoff = now.Add(-opts.MaxAge)
	}
	log := slog.With("source", c.Key(), "keyword", keyword)
	res := &Result{Stop: StopExhausted}
	seen := make(map[string]struct{})
	defer c.state.Store(int32(StateStopped))

	for _, company := range c.companies {
		if err := ctx.Err(); err != nil {
			res.Stop = StopFailed
			return res, err
		}

		c.state.Store(int32(StateFetching))
		html, err := c.page(ctx, company.CareersURL)
		if err != nil {
			if ctx.Err() != nil {
				res.Stop = StopFailed
				return res, ctx.Err()
			}
			if stop, vendor := c.abort(err); stop {
				res.Stop, res.Challenge = StopCaptcha, vendor
				log.Warn("anti-bot challenge detected, aborting source run",
					"signal", "captcha", "vendor", vendor, "company", company.Name)
				return res, nil
			}
			log.Warn("career page unavailable", "company", company.Name, "error", err)
			continue
		}
		res.Pages++

		c.state.Store(int32(StateParsing))
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			continue
		}
		listings := readCards(doc, company.CareersURL, now, companyFields, nil)

		details := 0
		kept := 0
		for i := range listings {
			l := listings[i]
			if _, dup := seen[l.URL]; dup || !relevant(l.Title, keyword) {
				continue
			}
			seen[l.URL] = struct{}{}
			l.Company = company.Name
			if l.Location == "" {
				l.Location = company.Location
			}

			if len(l.Description) < MinDescriptionLength && details < maxDetailFetches {
				details++
				desc, err := c.detail(ctx, l.URL)
				if err != nil {
					if stop, vendor := c.abort(err); stop {
						res.Stop, res.Challenge = StopCaptcha, vendor
						log.Warn("anti-bot challenge detected, aborting source run",
							"signal", "captcha", "vendor", vendor, "company", company.Name)
						return res, nil
					}
					if ctx.Err() != nil {
						res.Stop = StopFailed
						return res, ctx.Err()
					}
				} else if desc != "" {
					l.Description = desc
				}
			}

			finalize(&l, c.Platform(), now)
			if !cutoff.IsZero() && l.PostedDate.Before(cutoff) {
				continue
			}
			res.Listings = append(res.Listings, l)
			kept++
		}
		c.m.listings.Add(int64(kept))
		log.Debug("parsed career page", "company", company.Name, "cards", len(listings), "kept", kept)
	}

	log.Info("source run finished",
		"stop", string(res.Stop), "pages", res.Pages, "listings", len(res.Listings))
	return res, nil
}

// page returns the career page HTML, from cache when possible.
func (c *CompanyPages) page(ctx context.Context, url string) (string, error) {
	key := cache.Key(c.Key(), url)
	if c.pages != nil {
		if html, ok := c.pages.Get(key); ok {
			return html, nil
		}
	}
	fr, err := c.client.get(ctx, url)
	if err != nil {
		return "", err
	}
	if c.pages != nil {
		c.pages.Set(key, fr.HTML)
	}
	return fr.HTML, nil
}

// detail fetches a job page and extracts its main text.
func (c *CompanyPages) detail(ctx context.Context, url string) (string, error) {
	html, err := c.page(ctx, url)
	if err != nil {
		return "", err
	}
	desc, _ := cleaner.ExtractDescription(html, url)
	return desc, nil
}

// abort reports whether err is a challenge that must end the whole run.
func (c *CompanyPages) abort(err error) (bool, string) {
	var se *models.ScrapeError
	if errors.As(err, &se) && se.Code == models.ErrCodeCaptcha {
		return true, se.Message
	}
	return false, ""
}

// relevant reports whether a career page title fits the search keyword:
// it shares a significant word with it or names a security discipline.
func relevant(title, keyword string) bool {
	t := strings.ToLower(title) + " "
	for _, w := range strings.Fields(strings.ToLower(keyword)) {
		if len(w) >= 3 && strings.Contains(t, w) {
			return true
		}
	}
	return containsAny(t, securityTerms)
}
