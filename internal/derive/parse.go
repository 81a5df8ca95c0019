package derive

import (
	"regexp"
	"sort"
	"strings"

	"squad-planner/internal/domain"
)

// numberPattern matches the first numeric token of a line: digits with
// thousands separators or a decimal point, and an optional percent sign.
var numberPattern = regexp.MustCompile(`\d[\d,.]*%?`)

// AttributeMap holds parsed attribute values keyed by name, iterated in the
// order of the vocabulary it was parsed with.
type AttributeMap struct {
	keys   []string
	values map[string]string
}

func NewAttributeMap(keys []string, values map[string]string) AttributeMap {
	m := AttributeMap{keys: uniqueKeys(keys), values: make(map[string]string, len(keys))}
	for _, k := range m.keys {
		v, ok := values[k]
		if !ok || v == "" {
			v = domain.MissingValue
		}
		m.values[k] = v
	}
	return m
}

// Get returns the value for key, or "NA" when the key is unknown.
func (m AttributeMap) Get(key string) string {
	if v, ok := m.values[key]; ok {
		return v
	}
	return domain.MissingValue
}

func (m AttributeMap) Keys() []string {
	return append([]string(nil), m.keys...)
}

func (m AttributeMap) Len() int {
	return len(m.keys)
}

// Map returns a copy of the values suitable for persisting.
func (m AttributeMap) Map() map[string]string {
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// Parse extracts the value of every desired key from raw OCR text.
//
// Keys are matched longest first. An occurrence of a key only counts when it
// is not immediately followed by a letter, and occurrences claimed by a longer
// key are masked before shorter keys are tried, so "Troop Attack" never picks
// up the value of a "Troop Attack Blessing" line. For each key the first
// matching line wins and its first numeric token becomes the value. Keys that
// are not found, or whose line has no number, are set to "NA".
func Parse(rawText string, desiredKeys []string) AttributeMap {
	lines := splitLines(rawText)
	keys := uniqueKeys(desiredKeys)

	byLength := append([]string(nil), keys...)
	sort.SliceStable(byLength, func(i, j int) bool {
		return len(byLength[i]) > len(byLength[j])
	})

	masked := append([]string(nil), lines...)
	values := make(map[string]string, len(keys))

	for _, key := range byLength {
		values[key] = domain.MissingValue
		if strings.TrimSpace(key) == "" {
			continue
		}

		rule := newKeyRule(key)
		found := false
		for i := range masked {
			spans := rule.spans(masked[i])
			if len(spans) == 0 {
				continue
			}
			if !found {
				found = true
				if num := numberPattern.FindString(lines[i]); num != "" {
					values[key] = num
				}
			}
			masked[i] = maskSpans(masked[i], spans)
		}
	}

	return NewAttributeMap(keys, values)
}

// ParseMany parses the concatenated text of several screenshots.
func ParseMany(texts []string, desiredKeys []string) AttributeMap {
	return Parse(strings.Join(texts, "\n"), desiredKeys)
}

type keyRule struct {
	pattern *regexp.Regexp
}

func newKeyRule(key string) keyRule {
	return keyRule{pattern: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(key))}
}

// spans returns the byte ranges of key occurrences not followed by a letter.
func (r keyRule) spans(line string) [][]int {
	var out [][]int
	for _, loc := range r.pattern.FindAllStringIndex(line, -1) {
		if loc[1] < len(line) && isASCIILetter(line[loc[1]]) {
			continue
		}
		out = append(out, loc)
	}
	return out
}

func maskSpans(line string, spans [][]int) string {
	b := []byte(line)
	for _, s := range spans {
		for i := s[0]; i < s[1]; i++ {
			b[i] = 0
		}
	}
	return string(b)
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func uniqueKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
