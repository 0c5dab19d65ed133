// Package ticketref recognizes issue-tracker ticket references in
// free-form text.
package ticketref

import (
	"regexp"
	"strings"
	"sync"
)

// fallbackPattern matches ticket-shaped tokens before any project keys
// are known. Uppercase-only, unlike the dynamic pattern: the generic
// shape is kept strict so arbitrary ALL-CAPS-adjacent text doesn't
// trigger lookups.
var fallbackPattern = regexp.MustCompile(`\b[A-Z]{2,8}-[0-9]{1,8}\b`)

// Matcher builds the pattern that recognizes ticket IDs. With a known
// project-key set it matches (KEY1|KEY2|...)-digits case-insensitively;
// with no keys it falls back to the generic pattern, so the bot is never
// silent before the project list loads.
type Matcher struct {
	mu      sync.RWMutex
	keys    []string
	pattern *regexp.Regexp
}

// NewMatcher creates a matcher with no known project keys.
func NewMatcher() *Matcher {
	return &Matcher{pattern: fallbackPattern}
}

// SetProjectKeys replaces the known project-key set and rebuilds the
// pattern. An empty set reverts to the fallback pattern.
func (m *Matcher) SetProjectKeys(keys []string) {
	pattern := fallbackPattern
	if len(keys) > 0 {
		quoted := make([]string, len(keys))
		for i, k := range keys {
			quoted[i] = regexp.QuoteMeta(k)
		}
		pattern = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)-[0-9]{1,8}\b`)
	}

	m.mu.Lock()
	m.keys = append([]string(nil), keys...)
	m.pattern = pattern
	m.mu.Unlock()
}

// ProjectKeys returns the current key set.
func (m *Matcher) ProjectKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.keys...)
}

// Pattern returns the current compiled pattern.
func (m *Matcher) Pattern() *regexp.Regexp {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pattern
}

// References returns the distinct ticket references in text, in
// first-seen order.
func (m *Matcher) References(text string) []string {
	matches := m.Pattern().FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	refs := matches[:0]
	for _, id := range matches {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		refs = append(refs, id)
	}
	return refs
}
