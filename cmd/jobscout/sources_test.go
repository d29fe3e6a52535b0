package main

import (
	"reflect"
	"testing"

	"github.com/use-agent/jobscout/config"
	"github.com/use-agent/jobscout/scraper"
)

type recordingLimits map[string]int

func (r recordingLimits) SetLimit(key string, n int) { r[key] = n }

func TestBuildRegistry_OrderAndLimits(t *testing.T) {
	t.Setenv("JOBSCOUT_SOURCE_ORDER", "studentcircus,reed,bogus,indeed")
	t.Setenv("JOBSCOUT_SOURCE_INDEED_ENABLED", "false")
	t.Setenv("JOBSCOUT_SOURCE_REED_RPM", "7")

	cfg := config.Load()
	limits := recordingLimits{}
	reg, err := buildRegistry(cfg, scraper.Deps{}, limits)
	if err != nil {
		t.Fatalf("buildRegistry: %v", err)
	}

	var got []string
	for _, s := range reg.Enabled() {
		got = append(got, s.Key())
	}
	if want := []string{"studentcircus", "reed"}; !reflect.DeepEqual(got, want) {
		t.Errorf("enabled order = %v, want %v", got, want)
	}
	if _, ok := reg.Get("indeed"); !ok {
		t.Error("disabled source should still be registered")
	}
	if _, ok := reg.Get("bogus"); ok {
		t.Error("unknown key should be ignored")
	}
	if limits["reed"] != 7 {
		t.Errorf("reed limit = %d, want 7", limits["reed"])
	}
	if _, ok := limits["indeed"]; !ok {
		t.Error("disabled sources still get a limit")
	}
}

func TestMaxPagesBySource(t *testing.T) {
	t.Setenv("JOBSCOUT_SOURCE_CWJOBS_MAX_PAGES", "2")
	pages := maxPagesBySource(config.Load())
	if pages["cwjobs"] != 2 {
		t.Errorf("cwjobs = %d, want 2", pages["cwjobs"])
	}
	if pages["reed"] != 5 {
		t.Errorf("reed = %d, want default 5", pages["reed"])
	}
}
