// Package domain holds the monitored site's root domain and the predicate
// deciding whether a tab location belongs to it.
package domain

import (
	"regexp"
	"strings"
	"sync"
)

// RootDomain is fixed at build time:
//
//	go build -ldflags "-X github.com/dgnsrekt/tab_cycler/internal/domain.RootDomain=example.com"
var RootDomain = "fiverr.com"

var (
	patternOnce sync.Once
	pattern     *regexp.Regexp
)

// Pattern compiles the location pattern for a root domain:
// scheme://[subdomain.]root[/path], case-insensitive.
func Pattern(root string) *regexp.Regexp {
	root = strings.ToLower(strings.TrimSpace(root))
	return regexp.MustCompile(`(?i)^https?://([^./]+\.)?` + regexp.QuoteMeta(root) + `(/.*)?$`)
}

// Matches reports whether location belongs to RootDomain.
func Matches(location string) bool {
	patternOnce.Do(func() { pattern = Pattern(RootDomain) })
	return pattern.MatchString(location)
}
