package settings

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"slices"

	"github.com/dgnsrekt/tab_cycler/internal/types"
)

// Store is the durable key/value store the adapter reads and writes.
type Store interface {
	Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error)
	Set(ctx context.Context, record map[string]any) error
}

// Adapter loads and saves Settings against a Store.
type Adapter struct {
	store    Store
	defaults Settings
}

// NewAdapter returns an adapter falling back to defaults for absent or
// invalid fields.
func NewAdapter(store Store, defaults Settings) *Adapter {
	return &Adapter{store: store, defaults: defaults.Clone()}
}

// Defaults returns the adapter's fallback settings.
func (a *Adapter) Defaults() Settings {
	return a.defaults.Clone()
}

// Load reads the persisted record. It never fails: read errors and malformed
// fields fall back to defaults.
func (a *Adapter) Load(ctx context.Context) Settings {
	out := a.defaults.Clone()

	data, err := a.store.Get(ctx, []string{KeyMinIntervalS, KeyMaxIntervalS, KeyURLList})
	if err != nil {
		slog.Error("settings load failed, using defaults", "error", types.NewError(types.CodeStoreFailure, "read settings", err))
		return out
	}

	if v, ok := decodeInt(data[KeyMinIntervalS]); ok && v >= FloorIntervalS {
		out.MinIntervalS = v
	} else if _, present := data[KeyMinIntervalS]; present {
		slog.Warn("stored minIntervalS invalid, using default", "raw", string(data[KeyMinIntervalS]))
	}

	if v, ok := decodeInt(data[KeyMaxIntervalS]); ok && v > 0 {
		out.MaxIntervalS = v
	} else if _, present := data[KeyMaxIntervalS]; present {
		slog.Warn("stored maxIntervalS invalid, using default", "raw", string(data[KeyMaxIntervalS]))
	}
	if out.MaxIntervalS < out.MinIntervalS {
		out.MaxIntervalS = max(out.MinIntervalS, a.defaults.MaxIntervalS)
	}

	if raw, ok := data[KeyURLList]; ok {
		var urls []string
		if err := json.Unmarshal(raw, &urls); err == nil && len(urls) > 0 {
			out.URLList = urls
		} else {
			slog.Warn("stored urlList invalid, using default", "raw", string(raw))
		}
	}

	slog.Info("settings loaded", "min_interval_s", out.MinIntervalS, "max_interval_s", out.MaxIntervalS, "urls", len(out.URLList))
	return out
}

// Save persists s as one flat record.
func (a *Adapter) Save(ctx context.Context, s Settings) error {
	rec := s.Clone()
	if rec.URLList == nil {
		rec.URLList = slices.Clone(a.defaults.URLList)
	}
	if err := a.store.Set(ctx, rec.Record()); err != nil {
		return types.NewError(types.CodeStoreFailure, "write settings", err)
	}
	return nil
}

func decodeInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if f != math.Trunc(f) || f < math.MinInt32 || f > CeilIntervalS {
		return 0, false
	}
	return int(f), true
}
