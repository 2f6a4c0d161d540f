// Package filter builds stop sequences and the replace filter that strips
// control markers from streamed output.
package filter

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"chatd/internal/prompt"
)

// StopSequences returns the literal strings the backend should halt on,
// in order and without duplicates.
func StopSequences(in prompt.Instruct, names prompt.Names) []string {
	var raw []string
	raw = append(raw, in.StopSequences...)
	raw = append(raw, in.InputPrefix, in.SystemPrefix)
	if in.IncludeNames && names.User != "" {
		raw = append(raw, "\n"+names.User+":")
	}
	return dedupe(names, raw)
}

// ReplaceStrings returns every string that must be stripped from output.
func ReplaceStrings(in prompt.Instruct, names prompt.Names) []string {
	out := StopSequences(in, names)
	return dedupe(names, append(out, in.ReplaceStrings...))
}

func dedupe(names prompt.Names, raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = names.Expand(s)
		if strings.TrimSpace(s) == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Replacer removes any of a fixed set of literal strings from text.
type Replacer struct {
	re *regexp.Regexp
}

// NewReplacer compiles strs into a single alternation. Longer strings are
// tried first so a marker is never cut short by one of its prefixes.
// Empty input yields a Replacer that leaves text unchanged.
func NewReplacer(strs []string) *Replacer {
	lits := make([]string, 0, len(strs))
	for _, s := range strs {
		if s != "" {
			lits = append(lits, s)
		}
	}
	if len(lits) == 0 {
		return &Replacer{}
	}
	sort.SliceStable(lits, func(i, j int) bool { return len(lits[i]) > len(lits[j]) })
	quoted := make([]string, len(lits))
	for i, s := range lits {
		quoted[i] = regexp.QuoteMeta(s)
	}
	return &Replacer{re: regexp.MustCompile(strings.Join(quoted, "|"))}
}

// Apply strips every match. Removal is repeated until nothing matches, so
// Apply(Apply(s)) == Apply(s).
func (r *Replacer) Apply(s string) string {
	if r == nil || r.re == nil {
		return s
	}
	for {
		next := r.re.ReplaceAllString(s, "")
		if next == s {
			return s
		}
		s = next
	}
}

// Cache keeps the compiled Replacer for the most recent replace list.
type Cache struct {
	mu  sync.Mutex
	key string
	r   *Replacer
}

// Get returns a Replacer for strs, compiling only when strs differs from
// the previous call.
func (c *Cache) Get(strs []string) *Replacer {
	key := strings.Join(strs, "\x00")
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.r == nil || key != c.key {
		c.r = NewReplacer(strs)
		c.key = key
	}
	return c.r
}
