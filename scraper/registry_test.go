package scraper

import "testing"

func keys(scrapers []Scraper) []string {
	out := make([]string, len(scrapers))
	for i, s := range scrapers {
		out[i] = s.Key()
	}
	return out
}

func TestRegistry_PriorityOrder(t *testing.T) {
	r := NewRegistry()
	mustRegister := func(s Scraper, prio int, enabled bool) {
		t.Helper()
		if err := r.Register(s, prio, enabled); err != nil {
			t.Fatalf("Register(%s): %v", s.Key(), err)
		}
	}
	mustRegister(NewBoard(NewIndeed(), Deps{}), 2, true)
	mustRegister(NewBoard(NewReed(), Deps{}), 1, true)
	mustRegister(NewBoard(NewTotalJobs(), Deps{}), 2, false)
	mustRegister(NewBoard(NewStudentCircus(), Deps{}), 0, true)

	got := keys(r.Enabled())
	want := []string{"studentcircus", "reed", "indeed"}
	if len(got) != len(want) {
		t.Fatalf("Enabled = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Enabled = %v, want %v", got, want)
		}
	}

	if !r.SetEnabled("totaljobs", true) {
		t.Fatal("SetEnabled(totaljobs) reported unknown key")
	}
	if got := keys(r.Enabled()); len(got) != 4 || got[3] != "totaljobs" {
		t.Errorf("after enabling totaljobs: %v", got)
	}
	if r.SetEnabled("monster", true) {
		t.Error("SetEnabled on unknown key should report false")
	}
	if err := r.Register(NewBoard(NewReed(), Deps{}), 5, true); err == nil {
		t.Error("duplicate key should fail")
	}
	if s, ok := r.Get("reed"); !ok || s.Platform() != "Reed" {
		t.Errorf("Get(reed) = %v, %v", s, ok)
	}

	all := r.All()
	if len(all) != 4 || all[0].Key != "studentcircus" || all[3].Key != "totaljobs" {
		t.Fatalf("All = %+v", all)
	}
	if !all[3].Enabled || all[3].Priority != 2 || all[1].Platform != "Reed" {
		t.Errorf("All = %+v", all)
	}
}
