// Package settings owns the persisted settings record: defaults, the optional
// YAML defaults file, validation of edit requests and the load/save adapter
// over the key/value store.
package settings

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"slices"

	"github.com/dgnsrekt/tab_cycler/internal/domain"
	"gopkg.in/yaml.v3"
)

// FloorIntervalS is the smallest accepted interval bound.
const FloorIntervalS = 10

// CeilIntervalS is the largest accepted interval bound. Larger values would
// overflow a millisecond time.Duration.
const CeilIntervalS = math.MaxInt32

const (
	DefaultMinIntervalS = 5 * 60
	DefaultMaxIntervalS = 10 * 60
)

// Record keys in the key/value store.
const (
	KeyMinIntervalS = "minIntervalS"
	KeyMaxIntervalS = "maxIntervalS"
	KeyURLList      = "urlList"
)

var defaultPaths = []string{
	"/inbox",
	"/briefs/overview/matches",
	"/catalog/manage",
	"/seller/levels",
	"/seller_dashboard",
}

// Settings is the flat record persisted across restarts.
type Settings struct {
	MinIntervalS int      `json:"minIntervalS"`
	MaxIntervalS int      `json:"maxIntervalS"`
	URLList      []string `json:"urlList"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		MinIntervalS: DefaultMinIntervalS,
		MaxIntervalS: DefaultMaxIntervalS,
		URLList:      defaultURLList(),
	}
}

func defaultURLList() []string {
	out := make([]string, len(defaultPaths))
	for i, p := range defaultPaths {
		out[i] = "https://www." + domain.RootDomain + p
	}
	return out
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	s.URLList = slices.Clone(s.URLList)
	return s
}

// Record returns the key/value form written to the store.
func (s Settings) Record() map[string]any {
	return map[string]any{
		KeyMinIntervalS: s.MinIntervalS,
		KeyMaxIntervalS: s.MaxIntervalS,
		KeyURLList:      s.URLList,
	}
}

type defaultsFile struct {
	MinIntervalS *int     `yaml:"min_interval_s"`
	MaxIntervalS *int     `yaml:"max_interval_s"`
	URLList      []string `yaml:"url_list"`
}

// LoadDefaultsFile reads a YAML file overriding the built-in defaults.
// Fields that are missing or invalid keep the built-in value.
func LoadDefaultsFile(path string) (Settings, error) {
	out := Defaults()
	if path == "" {
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("defaults file: %w", err)
	}
	var f defaultsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return out, fmt.Errorf("defaults file: %w", err)
	}

	if f.MinIntervalS != nil {
		if *f.MinIntervalS > CeilIntervalS {
			slog.Warn("defaults file min_interval_s above ceiling, ignored", "value", *f.MinIntervalS, "ceil", CeilIntervalS)
		} else if *f.MinIntervalS >= FloorIntervalS {
			out.MinIntervalS = *f.MinIntervalS
		} else {
			slog.Warn("defaults file min_interval_s below floor, ignored", "value", *f.MinIntervalS, "floor", FloorIntervalS)
		}
	}
	if f.MaxIntervalS != nil {
		if *f.MaxIntervalS > CeilIntervalS {
			slog.Warn("defaults file max_interval_s above ceiling, ignored", "value", *f.MaxIntervalS, "ceil", CeilIntervalS)
		} else if *f.MaxIntervalS >= out.MinIntervalS {
			out.MaxIntervalS = *f.MaxIntervalS
		} else {
			slog.Warn("defaults file max_interval_s below min, ignored", "value", *f.MaxIntervalS, "min", out.MinIntervalS)
		}
	}
	if out.MaxIntervalS < out.MinIntervalS {
		out.MaxIntervalS = out.MinIntervalS
	}
	if len(f.URLList) > 0 {
		out.URLList = slices.Clone(f.URLList)
	}
	return out, nil
}
