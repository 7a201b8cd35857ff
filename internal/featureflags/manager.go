// Package featureflags evaluates operator-controlled switches for optional
// community features.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Flags understood by the server. Unlisted flags are parsed but ignored.
const (
	ImageUploads = "image_uploads"
	Realtime     = "realtime"
)

// defaults apply when FEATURE_FLAGS does not mention a flag.
var defaults = map[string]bool{
	ImageUploads: true,
	Realtime:     true,
}

type rule struct {
	raw     string
	percent int // 0..100, 100 means fully on
}

// Manager evaluates flags configured as a comma-separated list.
// Example: "image_uploads=off,realtime=25%"
type Manager struct {
	rules map[string]rule
}

// NewManager parses raw. Malformed entries are skipped.
func NewManager(raw string) *Manager {
	rules := make(map[string]rule)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" {
			continue
		}
		if r, ok := parseRule(value); ok {
			rules[key] = r
		}
	}
	return &Manager{rules: rules}
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{raw: value, percent: 100}, true
	case "off", "false", "0":
		return rule{raw: value, percent: 0}, true
	}
	pct, found := strings.CutSuffix(value, "%")
	if !found {
		return rule{}, false
	}
	n, err := strconv.Atoi(pct)
	if err != nil {
		return rule{}, false
	}
	return rule{raw: value, percent: min(max(n, 0), 100)}, true
}

// Enabled reports whether name is on for the account. Percentage rollouts
// are deterministic per account; anonymous callers only see fully-on flags.
func (m *Manager) Enabled(name string, userID uint) bool {
	name = normalize(name)
	if m == nil {
		return defaults[name]
	}
	r, ok := m.rules[name]
	if !ok {
		return defaults[name]
	}
	switch {
	case r.percent >= 100:
		return true
	case r.percent <= 0, userID == 0:
		return false
	}
	return rolloutBucket(name, userID) < r.percent
}

// Raw returns the configured values keyed by flag name.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.rules))
	for k, r := range m.rules {
		out[k] = r.raw
	}
	return out
}

// Snapshot evaluates every known and configured flag for one account.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(defaults)+len(m.rules))
	for _, name := range m.names() {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func (m *Manager) names() []string {
	seen := make(map[string]struct{}, len(defaults)+len(m.rules))
	for k := range defaults {
		seen[k] = struct{}{}
	}
	for k := range m.rules {
		seen[k] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", name, userID)
	return int(h.Sum32() % 100)
}
