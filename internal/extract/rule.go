// Package extract turns server-rendered pages into ordered field maps using
// independent per-field patterns, so a markup change breaks single fields
// rather than whole records.
package extract

import (
	"fmt"
	"regexp"
)

// Flag modifies how a Rule's pattern is compiled.
type Flag uint8

const (
	// IgnoreCase matches letters case-insensitively.
	IgnoreCase Flag = 1 << iota
	// DotAll lets "." match newlines.
	DotAll
	// Multiline makes ^ and $ match at line boundaries.
	Multiline
)

// Rule is a named pattern. Optional rules are logged at debug level when
// they do not match; mandatory ones at warn level, and in row mode a
// missing mandatory rule drops the record.
type Rule struct {
	Name     string
	Pattern  *regexp.Regexp
	Optional bool
}

// NewRule compiles pattern with flags. It panics on an invalid pattern,
// since rules are package-level tables.
func NewRule(name, pattern string, flags Flag) Rule {
	prefix := ""
	if flags&IgnoreCase != 0 {
		prefix += "i"
	}
	if flags&DotAll != 0 {
		prefix += "s"
	}
	if flags&Multiline != 0 {
		prefix += "m"
	}
	if prefix != "" {
		pattern = "(?" + prefix + ")" + pattern
	}
	return Rule{Name: name, Pattern: regexp.MustCompile(pattern)}
}

// Opt returns a copy of r marked optional.
func (r Rule) Opt() Rule {
	r.Optional = true
	return r
}

// RuleSet is an immutable ordered list of rules with unique names.
type RuleSet struct {
	rules []Rule
	index map[string]int
}

// NewRuleSet registers rules in order. It panics on a duplicate or empty
// name.
func NewRuleSet(rules ...Rule) *RuleSet {
	rs := &RuleSet{
		rules: make([]Rule, len(rules)),
		index: make(map[string]int, len(rules)),
	}
	for i, r := range rules {
		if r.Name == "" || r.Pattern == nil {
			panic(fmt.Sprintf("extract: rule %d is incomplete", i))
		}
		if _, dup := rs.index[r.Name]; dup {
			panic(fmt.Sprintf("extract: duplicate rule %q", r.Name))
		}
		rs.rules[i] = r
		rs.index[r.Name] = i
	}
	return rs
}

// Rule looks up a rule by name.
func (rs *RuleSet) Rule(name string) (Rule, bool) {
	i, ok := rs.index[name]
	if !ok {
		return Rule{}, false
	}
	return rs.rules[i], true
}

// Rules returns the rules in registration order.
func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}
