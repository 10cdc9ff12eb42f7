package hdrconfig

import "testing"

const testYAML = `
histograms:
  - name: request_latency_us
    lowest_trackable: 1
    highest_trackable: 3600000000
    significant_digits: 3
    tag: latency
  - name: queue_depth
    highest_trackable: 65536
    counter_width: "32"
`

func TestParseAndDefaults(t *testing.T) {
	cfg, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Histograms) != 2 {
		t.Fatalf("len(Histograms) = %d, want 2", len(cfg.Histograms))
	}

	qd, ok := cfg.Find("queue_depth")
	if !ok {
		t.Fatalf("Find(queue_depth) = false")
	}
	if qd.LowestTrackable != 1 {
		t.Errorf("LowestTrackable default = %d, want 1", qd.LowestTrackable)
	}
	if qd.SignificantDigits != defaultSignificantDigits {
		t.Errorf("SignificantDigits default = %d, want %d", qd.SignificantDigits, defaultSignificantDigits)
	}
}

func TestProfileNewConstructsHistogram(t *testing.T) {
	cfg, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	p, ok := cfg.Find("request_latency_us")
	if !ok {
		t.Fatalf("Find(request_latency_us) = false")
	}
	h, err := p.New()
	if err != nil {
		t.Fatalf("Profile.New: %v", err)
	}
	if h.HighestTrackableValue() != 3_600_000_000 {
		t.Errorf("HighestTrackableValue = %d, want 3600000000", h.HighestTrackableValue())
	}
	if h.Tag() != "latency" {
		t.Errorf("Tag = %q, want %q", h.Tag(), "latency")
	}
}

func TestProfileUnknownCounterWidth(t *testing.T) {
	p := Profile{Name: "x", LowestTrackable: 1, HighestTrackable: 1000, SignificantDigits: 3, CounterWidth: "128"}
	if _, err := p.New(); err == nil {
		t.Fatalf("New with bad counter_width: want error, got nil")
	}
}

func TestProfileNewLayoutMatchesNewHistogram(t *testing.T) {
	p := Profile{Name: "x", LowestTrackable: 1, HighestTrackable: 100_000, SignificantDigits: 2}
	h, err := p.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l, err := p.NewLayout()
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	if !l.Equal(h.LayoutOf()) {
		t.Fatalf("NewLayout() != New().LayoutOf()")
	}
}
