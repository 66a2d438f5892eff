package geocaching

import (
	"fmt"
	"strconv"

	"github.com/FranksOps/gcparser/internal/extract"
)

// Record is one extracted item, ready to be stored or printed.
type Record interface {
	// Kind is the registry name of the parser that produced the record.
	Kind() string
	// Key identifies the record within its kind.
	Key() string
	Fields() *extract.FieldMap
}

// Date is a calendar date as printed by the site. The zero value renders
// as "0000-00-00".
type Date struct {
	Year, Month, Day int
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// usDate reads a M/D/Y date from groups first..first+2 of rule.
func usDate(m *extract.Match, rule string, first int) Date {
	if !m.Found(rule) {
		return Date{}
	}
	month, _ := strconv.Atoi(m.Group(rule, first))
	day, _ := strconv.Atoi(m.Group(rule, first+1))
	year, _ := strconv.Atoi(m.Group(rule, first+2))
	if month == 0 || day == 0 || year == 0 {
		return Date{}
	}
	return Date{Year: year, Month: month, Day: day}
}

// Trackable is a travel bug or geocoin sitting in a cache.
type Trackable struct {
	GUID string
	Name string
}

// Visit is the number of logs of one type on a listing.
type Visit struct {
	Type  string
	Count int
}

// CacheDetails is a parsed cache listing.
type CacheDetails struct {
	GUID          string
	Waypoint      string
	Name          string
	Hidden        Date
	Type          string
	Owner         string
	OwnerID       string
	Size          string
	Difficulty    float64
	Terrain       float64
	Lat           float64
	Lon           float64
	Province      string
	Country       string
	ShortDesc     string
	ShortDescHTML string
	LongDesc      string
	LongDescHTML  string
	Hint          string
	Attributes    string
	Inventory     []Trackable
	Visits        []Visit
	Disabled      bool
	Archived      bool
	PremiumOnly   bool
}

func (c *CacheDetails) Kind() string { return KindCache }

func (c *CacheDetails) Key() string {
	if c.Waypoint != "" {
		return c.Waypoint
	}
	return c.GUID
}

func (c *CacheDetails) Fields() *extract.FieldMap {
	inventory := extract.NewFieldMap()
	for _, t := range c.Inventory {
		inventory.Set(t.GUID, t.Name)
	}
	visits := extract.NewFieldMap()
	for _, v := range c.Visits {
		visits.Set(v.Type, v.Count)
	}

	return extract.NewFieldMap().
		Set("guid", c.GUID).
		Set("waypoint", c.Waypoint).
		Set("name", c.Name).
		Set("hidden", c.Hidden.String()).
		Set("type", c.Type).
		Set("owner", c.Owner).
		Set("owner_id", c.OwnerID).
		Set("size", c.Size).
		Set("difficulty", c.Difficulty).
		Set("terrain", c.Terrain).
		Set("lat", c.Lat).
		Set("lon", c.Lon).
		Set("province", c.Province).
		Set("country", c.Country).
		Set("short_desc", c.ShortDesc).
		Set("short_desc_html", c.ShortDescHTML).
		Set("long_desc", c.LongDesc).
		Set("long_desc_html", c.LongDescHTML).
		Set("hint", c.Hint).
		Set("attributes", c.Attributes).
		Set("inventory", inventory).
		Set("visits", visits).
		Set("disabled", c.Disabled).
		Set("archived", c.Archived).
		Set("premium_only", c.PremiumOnly)
}

// FindLogEntry is one row of the account's find log list. Sequence counts
// down from the total number of finds, so the oldest find is 1.
type FindLogEntry struct {
	Sequence int
	Date     Date
	GUID     string
	Name     string
	Disabled bool
	Archived bool
	LogID    string
}

func (e *FindLogEntry) Kind() string { return KindFinds }
func (e *FindLogEntry) Key() string  { return e.LogID }

func (e *FindLogEntry) Fields() *extract.FieldMap {
	return extract.NewFieldMap().
		Set("sequence", e.Sequence).
		Set("date", e.Date.String()).
		Set("guid", e.GUID).
		Set("name", e.Name).
		Set("disabled", e.Disabled).
		Set("archived", e.Archived).
		Set("log_id", e.LogID)
}

// SearchResultEntry is one row of a nearest-caches search.
type SearchResultEntry struct {
	CacheID    int
	Distance   string
	Type       string
	Difficulty float64
	Terrain    float64
	Size       string
	Hidden     Date
	GUID       string
	Name       string
	Owner      string
	Waypoint   string
	Province   string
	Country    string
	Disabled   bool
	Archived   bool
	Found      bool
	LastFound  Date
}

func (e *SearchResultEntry) Kind() string { return KindSeek }
func (e *SearchResultEntry) Key() string  { return e.Waypoint }

func (e *SearchResultEntry) Fields() *extract.FieldMap {
	return extract.NewFieldMap().
		Set("cache_id", e.CacheID).
		Set("distance", e.Distance).
		Set("type", e.Type).
		Set("difficulty", e.Difficulty).
		Set("terrain", e.Terrain).
		Set("size", e.Size).
		Set("hidden", e.Hidden.String()).
		Set("guid", e.GUID).
		Set("name", e.Name).
		Set("owner", e.Owner).
		Set("waypoint", e.Waypoint).
		Set("province", e.Province).
		Set("country", e.Country).
		Set("disabled", e.Disabled).
		Set("archived", e.Archived).
		Set("found", e.Found).
		Set("last_found", e.LastFound.String())
}
