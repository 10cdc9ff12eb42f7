// Package hdrconfig loads named histogram construction profiles from
// YAML, so a process can define its histograms ("request_latency_us",
// "queue_depth", ...) in one file instead of scattering New calls with
// magic numbers through the codebase.
//
// Grounded on runningwild-jolt's pkg/config/config.go: a single exported
// Config struct with yaml tags, a Load(path) that unmarshals and applies
// defaults for zero-valued fields.
package hdrconfig

import (
	"os"

	"github.com/runningwild/hdr/pkg/hdr"
	"github.com/zeebo/errs/v2"
	"gopkg.in/yaml.v3"
)

// defaultSignificantDigits matches the 3-digit precision the teacher's
// own hdrhistogram.New call used (pkg/engine/libaio.go).
const defaultSignificantDigits = 3

// Config is the top-level YAML document: a named set of histogram
// profiles.
type Config struct {
	Histograms []Profile `yaml:"histograms"`
}

// Profile describes one histogram's construction parameters.
type Profile struct {
	Name              string `yaml:"name"`
	LowestTrackable   int64  `yaml:"lowest_trackable"`
	HighestTrackable  int64  `yaml:"highest_trackable"`
	SignificantDigits int    `yaml:"significant_digits,omitempty"`
	// CounterWidth selects the storage realization: "64" (default),
	// "32", "16", or "atomic64".
	CounterWidth string `yaml:"counter_width,omitempty"`
	Tag          string `yaml:"tag,omitempty"`
}

// Load reads and parses a Config from path. Parse fills in defaults for
// zero-valued lowest_trackable (1), significant_digits (3), and
// counter_width ("64"); other fields are left as parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses a Config from raw YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	for i := range cfg.Histograms {
		p := &cfg.Histograms[i]
		if p.LowestTrackable == 0 {
			p.LowestTrackable = 1
		}
		if p.SignificantDigits == 0 {
			p.SignificantDigits = defaultSignificantDigits
		}
		if p.CounterWidth == "" {
			p.CounterWidth = "64"
		}
	}
	return &cfg, nil
}

// Find returns the named profile, or ok=false if no profile with that
// name exists.
func (c *Config) Find(name string) (Profile, bool) {
	for _, p := range c.Histograms {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// counterWidth maps the profile's string tag to an hdr.CounterWidth.
func (p Profile) counterWidth() (hdr.CounterWidth, error) {
	switch p.CounterWidth {
	case "", "64":
		return hdr.Width64, nil
	case "32":
		return hdr.Width32, nil
	case "16":
		return hdr.Width16, nil
	case "atomic64":
		return hdr.WidthAtomic64, nil
	default:
		return 0, errs.Errorf("%w: unknown counter_width %q", hdr.ErrArgumentInvalid, p.CounterWidth)
	}
}

// New constructs an hdr.Histogram from this profile.
func (p Profile) New() (*hdr.Histogram, error) {
	width, err := p.counterWidth()
	if err != nil {
		return nil, err
	}
	opts := []hdr.Option{hdr.WithCounterWidth(width)}
	if p.Tag != "" {
		opts = append(opts, hdr.WithTag(p.Tag))
	}
	return hdr.New(p.LowestTrackable, p.HighestTrackable, p.SignificantDigits, opts...)
}

// NewLayout constructs just this profile's hdr.Layout, for callers
// building a concurrent.Histogram instead.
func (p Profile) NewLayout() (hdr.Layout, error) {
	return hdr.NewLayout(p.LowestTrackable, p.HighestTrackable, p.SignificantDigits)
}
