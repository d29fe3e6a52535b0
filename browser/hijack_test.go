package browser

import "testing"

func TestIsTrackerHost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"www.google-analytics.com", true},
		{"stats.g.doubleclick.net", true},
		{"cdn.cookielaw.org", true},
		{"www.reed.co.uk", false},
		{"uk.indeed.com", false},
		{"net", false},
	}
	for _, tt := range tests {
		if got := isTrackerHost(tt.host); got != tt.want {
			t.Errorf("isTrackerHost(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}
