package geocaching

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// Record kinds registered by DefaultRegistry.
const (
	KindCache   = "cache"
	KindFinds   = "myfinds"
	KindSeek    = "seek"
	KindProfile = "profileedit"
)

// Args are the string parameters a parser is constructed from, as they
// come from a command line or a job file.
type Args map[string]string

// Bool reports whether key holds a true value ("1", "y", "yes", "true").
func (a Args) Bool(key string) bool {
	switch strings.ToLower(a[key]) {
	case "1", "y", "yes", "true", "on":
		return true
	}
	return false
}

// Float parses key as a float. A missing key yields 0.
func (a Args) Float(key string) (float64, error) {
	v, ok := a[key]
	if !ok || v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("argument %s: %w", key, err)
	}
	return f, nil
}

// Constructor builds a Parser for one request.
type Constructor func(d Deps, args Args) (Parser, error)

// Registry maps record kinds to parser constructors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register adds a constructor. Registering a kind twice is an error.
func (r *Registry) Register(kind string, c Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ctors[kind]; ok {
		return fmt.Errorf("geocaching: kind %q already registered", kind)
	}
	r.ctors[kind] = c
	return nil
}

// New builds a parser of the given kind.
func (r *Registry) New(kind string, d Deps, args Args) (Parser, error) {
	r.mu.RLock()
	c, ok := r.ctors[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("geocaching: unknown kind %q", kind)
	}
	return c(d, args)
}

// Kinds lists the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.ctors))
	for k := range r.ctors {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// DefaultRegistry returns a Registry with the built-in parsers.
//
//	cache:       guid or waypoint, logs
//	myfinds:     no arguments
//	seek:        lat, lon, radius, page_size
//	profileedit: text
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(KindCache, func(d Deps, a Args) (Parser, error) {
		return NewCacheParser(d, CacheQuery{GUID: a["guid"], Waypoint: a["waypoint"], Logs: a.Bool("logs")})
	})
	_ = r.Register(KindFinds, func(d Deps, _ Args) (Parser, error) {
		return NewFindsParser(d), nil
	})
	_ = r.Register(KindSeek, func(d Deps, a Args) (Parser, error) {
		var q SearchQuery
		var err error
		if q.Lat, err = a.Float("lat"); err != nil {
			return nil, err
		}
		if q.Lon, err = a.Float("lon"); err != nil {
			return nil, err
		}
		if q.Radius, err = a.Float("radius"); err != nil {
			return nil, err
		}
		size, err := a.Float("page_size")
		if err != nil {
			return nil, err
		}
		return NewSearchParser(d, q, int(size)), nil
	})
	_ = r.Register(KindProfile, func(d Deps, a Args) (Parser, error) {
		text, ok := a["text"]
		if !ok {
			return nil, fmt.Errorf("geocaching: profileedit needs a text argument")
		}
		return NewProfileUpdater(d, text), nil
	})
	return r
}
