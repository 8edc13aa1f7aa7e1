package settings

import (
	"fmt"
	"math"

	"github.com/dgnsrekt/tab_cycler/internal/types"
)

// Candidate is an unvalidated saveSettings payload as decoded from JSON.
// Numbers arrive as float64 and lists as []any.
type Candidate struct {
	MinIntervalS any `json:"minIntervalS"`
	MaxIntervalS any `json:"maxIntervalS"`
	URLList      any `json:"urlList"`
}

// CandidateFrom wraps already-typed settings, e.g. from a typed HTTP body.
func CandidateFrom(s Settings) Candidate {
	list := make([]any, len(s.URLList))
	for i, u := range s.URLList {
		list[i] = u
	}
	return Candidate{
		MinIntervalS: float64(s.MinIntervalS),
		MaxIntervalS: float64(s.MaxIntervalS),
		URLList:      list,
	}
}

// ParseCandidate validates c and returns the settings it describes.
func ParseCandidate(c Candidate) (Settings, error) {
	minS, err := wholeNumber(c.MinIntervalS, KeyMinIntervalS)
	if err != nil {
		return Settings{}, err
	}
	if minS < FloorIntervalS {
		return Settings{}, invalid(fmt.Sprintf("%s must be at least %d", KeyMinIntervalS, FloorIntervalS))
	}
	maxS, err := wholeNumber(c.MaxIntervalS, KeyMaxIntervalS)
	if err != nil {
		return Settings{}, err
	}
	if maxS < minS {
		return Settings{}, invalid(fmt.Sprintf("%s must be at least %s", KeyMaxIntervalS, KeyMinIntervalS))
	}
	urls, err := stringList(c.URLList)
	if err != nil {
		return Settings{}, err
	}
	return Settings{MinIntervalS: minS, MaxIntervalS: maxS, URLList: urls}, nil
}

func wholeNumber(v any, field string) (int, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, invalid(field + " must be a number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, invalid(field + " must be a whole number")
	}
	if f > CeilIntervalS {
		return 0, invalid(field + " is too large")
	}
	return int(f), nil
}

func stringList(v any) ([]string, error) {
	var out []string
	switch list := v.(type) {
	case []string:
		out = append(out, list...)
	case []any:
		out = make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, invalid(KeyURLList + " must contain only strings")
			}
			out = append(out, s)
		}
	default:
		return nil, invalid(KeyURLList + " must be a list of strings")
	}
	if len(out) == 0 {
		return nil, invalid(KeyURLList + " must not be empty")
	}
	return out, nil
}

func invalid(msg string) error {
	return types.NewError(types.CodeSettingsInvalid, msg, nil)
}
