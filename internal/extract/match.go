package extract

import (
	"html"
	"strconv"
	"strings"
)

// Match holds the submatches of every rule that matched, keyed by rule
// name. Accessors return the zero value for rules that did not match.
type Match struct {
	groups  map[string][]string
	missing []string
}

func newMatch() *Match {
	return &Match{groups: make(map[string][]string)}
}

func (m *Match) set(name string, groups []string) {
	m.groups[name] = groups
}

// Found reports whether the named rule matched.
func (m *Match) Found(name string) bool {
	_, ok := m.groups[name]
	return ok
}

// Groups returns the full submatch slice of the named rule, group 0 being
// the whole match.
func (m *Match) Groups(name string) []string {
	return m.groups[name]
}

// Group returns submatch i of the named rule, or "".
func (m *Match) Group(name string, i int) string {
	g := m.groups[name]
	if i < 0 || i >= len(g) {
		return ""
	}
	return g[i]
}

// Text returns submatch i with HTML entities decoded and surrounding space,
// including non-breaking space, trimmed.
func (m *Match) Text(name string, i int) string {
	return strings.TrimSpace(html.UnescapeString(m.Group(name, i)))
}

// Float parses submatch i as a float, accepting a decimal comma. It
// returns 0 when absent or malformed.
func (m *Match) Float(name string, i int) float64 {
	s := strings.Replace(strings.TrimSpace(m.Group(name, i)), ",", ".", 1)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// Int parses submatch i as an integer, ignoring thousands separators. It
// returns 0 when absent or malformed.
func (m *Match) Int(name string, i int) int {
	s := strings.NewReplacer(",", "", ".", "", " ", "").Replace(m.Group(name, i))
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// Missing lists the rules that did not match, in rule order.
func (m *Match) Missing() []string {
	return m.missing
}
