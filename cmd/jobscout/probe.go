package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/use-agent/jobscout/config"
	"github.com/use-agent/jobscout/scraper"
)

// probeRun is one scrape of one source.
type probeRun struct {
	Run      int             `json:"run"`
	Elapsed  int64           `json:"elapsed_ms"`
	Listings int             `json:"listings"`
	Pages    int             `json:"pages"`
	Stop     string          `json:"stop"`
	Metrics  scraper.Metrics `json:"metrics"`
	Error    string          `json:"error,omitempty"`
}

type probeSource struct {
	Source string     `json:"source"`
	Runs   []probeRun `json:"runs"`
}

type probeReport struct {
	Timestamp string        `json:"timestamp"`
	Keyword   string        `json:"keyword"`
	Location  string        `json:"location"`
	Runs      int           `json:"runs_per_source"`
	Results   []probeSource `json:"results"`
}

// runProbe scrapes each enabled source directly, bypassing the store, and
// reports how each one behaves. It is meant for checking selectors and
// block rates against the live boards.
func runProbe(args []string) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	keyword := fs.String("keyword", "SOC Analyst", "search keyword")
	runs := fs.Int("runs", 1, "runs per source")
	pages := fs.Int("pages", 1, "max pages per run")
	only := fs.String("source", "", "probe a single source key")
	output := fs.String("output", "", "write the JSON report to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Load()
	initLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher, _, closeEngines := buildEngines(ctx, cfg)
	defer closeEngines()
	registry, err := buildSources(cfg, dispatcher)
	if err != nil {
		return err
	}

	sources := registry.Enabled()
	if *only != "" {
		s, ok := registry.Get(*only)
		if !ok {
			return fmt.Errorf("unknown source %q", *only)
		}
		sources = []scraper.Scraper{s}
	}

	fmt.Println("=== jobscout source probe ===")
	fmt.Printf("Keyword:   %s\n", *keyword)
	fmt.Printf("Location:  %s\n", cfg.Search.Location)
	fmt.Printf("Runs:      %d\n", *runs)
	fmt.Println()

	report := probeReport{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Keyword:   *keyword,
		Location:  cfg.Search.Location,
		Runs:      *runs,
	}
	for _, src := range sources {
		fmt.Printf("Probing %s ...\n", src.Key())
		ps := probeSource{Source: src.Key()}
		for i := 1; i <= *runs; i++ {
			if ctx.Err() != nil {
				break
			}
			pr := probeOnce(ctx, src, *keyword, cfg.Search.Location, *pages, i)
			if pr.Error == "" {
				fmt.Printf("  Run %d/%d ... %d listings, %d pages, %s, %dms\n", i, *runs, pr.Listings, pr.Pages, pr.Stop, pr.Elapsed)
			} else {
				fmt.Printf("  Run %d/%d ... FAILED: %s\n", i, *runs, pr.Error)
			}
			ps.Runs = append(ps.Runs, pr)
		}
		report.Results = append(report.Results, ps)
	}
	fmt.Println()
	printProbeTable(report.Results)

	if *output == "" {
		return nil
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
	return nil
}

func probeOnce(ctx context.Context, src scraper.Scraper, keyword, location string, pages, run int) probeRun {
	src.ResetMetrics()
	start := time.Now()
	res, err := src.Scrape(ctx, keyword, location, scraper.Options{MaxPages: pages})
	pr := probeRun{
		Run:     run,
		Elapsed: time.Since(start).Milliseconds(),
		Metrics: src.Metrics(),
	}
	if res != nil {
		pr.Listings = len(res.Listings)
		pr.Pages = res.Pages
		pr.Stop = string(res.Stop)
	}
	if err != nil {
		pr.Error = err.Error()
	}
	return pr
}

func printProbeTable(results []probeSource) {
	fmt.Println(strings.Repeat("─", 72))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Source\tAvg Listings\tAvg Latency\tBlocked\tCaptchas\tLast Stop\n")
	fmt.Fprintf(w, "──────\t────────────\t───────────\t───────\t────────\t─────────\n")
	for _, r := range results {
		if len(r.Runs) == 0 {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\n", r.Source)
			continue
		}
		var listings, elapsed, blocked, captchas int64
		for _, run := range r.Runs {
			listings += int64(run.Listings)
			elapsed += run.Elapsed
			blocked += run.Metrics.RequestsBlocked
			captchas += run.Metrics.CaptchasDetected
		}
		n := int64(len(r.Runs))
		last := r.Runs[len(r.Runs)-1]
		stop := last.Stop
		if last.Error != "" {
			stop = "error"
		}
		fmt.Fprintf(w, "%s\t%d\t%dms\t%d\t%d\t%s\n", r.Source, listings/n, elapsed/n, blocked, captchas, stop)
	}
	w.Flush()
	fmt.Println(strings.Repeat("─", 72))
}
