package extract

import (
	"log/slog"
	"regexp"
	"strings"
)

// Observer is told about non-fatal extraction problems. internal/metrics
// provides an implementation.
type Observer interface {
	FieldMissing(rule string, mandatory bool)
	RecordDropped(rows, reason string)
}

// Engine runs rule sets over page text and reports what did not match.
type Engine struct {
	logger   *slog.Logger
	observer Observer
}

// NewEngine creates an Engine. Both arguments are optional.
func NewEngine(logger *slog.Logger, observer Observer) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:   logger.With("component", "extract"),
		observer: observer,
	}
}

// Extract matches every rule of rs once against text and keeps the first
// match of each. Rules that do not match are logged and listed in
// Match.Missing; Extract itself never fails.
func (e *Engine) Extract(rs *RuleSet, text string) *Match {
	m := newMatch()
	for _, r := range rs.rules {
		if g := r.Pattern.FindStringSubmatch(text); g != nil {
			m.set(r.Name, g)
			continue
		}
		m.missing = append(m.missing, r.Name)
		e.fieldMissing(r)
	}
	return m
}

func (e *Engine) fieldMissing(r Rule) {
	if r.Optional {
		e.logger.Debug("field not found", "rule", r.Name)
	} else {
		e.logger.Warn("field not found", "rule", r.Name)
	}
	if e.observer != nil {
		e.observer.FieldMissing(r.Name, !r.Optional)
	}
}

// RowSpec describes a record spread over consecutive rows. Start opens a
// record, Fields fill it, End closes it. Start and End may match the same
// row, and a row may fill several fields. Groups of Start and End are
// kept under their rule names like any field.
type RowSpec struct {
	Name   string
	Start  Rule
	Fields []Rule
	End    Rule
}

// Rows walks rows in order and returns one Match per complete record. A
// record missing a mandatory field when End matches is dropped, as is one
// interrupted by another Start or by the end of input.
func (e *Engine) Rows(rs RowSpec, rows []string) []*Match {
	var (
		out     []*Match
		current *Match
	)

	drop := func(reason string, missing []string) {
		e.logger.Warn("record dropped", "rows", rs.Name, "reason", reason, "missing", missing)
		if e.observer != nil {
			e.observer.RecordDropped(rs.Name, reason)
		}
		current = nil
	}

	for _, row := range rows {
		if g := rs.Start.Pattern.FindStringSubmatch(row); g != nil {
			if current != nil {
				drop("interrupted", e.unfilled(rs, current))
			}
			current = newMatch()
			current.set(rs.Start.Name, g)
		}
		if current == nil {
			continue
		}

		for _, r := range rs.Fields {
			if current.Found(r.Name) {
				continue
			}
			if g := r.Pattern.FindStringSubmatch(row); g != nil {
				current.set(r.Name, g)
			}
		}

		g := rs.End.Pattern.FindStringSubmatch(row)
		if g == nil {
			continue
		}
		current.set(rs.End.Name, g)

		missing := e.unfilled(rs, current)
		mandatoryMissing := false
		for _, r := range rs.Fields {
			if current.Found(r.Name) {
				continue
			}
			if !r.Optional {
				mandatoryMissing = true
			}
			e.fieldMissing(r)
		}
		if mandatoryMissing {
			drop("incomplete", missing)
			continue
		}
		current.missing = missing
		out = append(out, current)
		current = nil
	}

	if current != nil {
		drop("truncated", e.unfilled(rs, current))
	}
	return out
}

func (e *Engine) unfilled(rs RowSpec, m *Match) []string {
	var missing []string
	for _, r := range rs.Fields {
		if !m.Found(r.Name) {
			missing = append(missing, r.Name)
		}
	}
	return missing
}

// SplitLines splits text into lines, dropping carriage returns.
func SplitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r", ""), "\n")
}

// SplitFragments splits text after every match of sep, so each fragment
// ends with its delimiter.
func SplitFragments(text string, sep *regexp.Regexp) []string {
	var out []string
	last := 0
	for _, loc := range sep.FindAllStringIndex(text, -1) {
		out = append(out, text[last:loc[1]])
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, text[last:])
	}
	return out
}
