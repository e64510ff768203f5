// Package gazetteer maps free-text locations to coordinates using a
// reference table of countries and cities.
package gazetteer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"tweet_fetcher/internal/domain"
)

// ErrMissingColumn is returned when the reference table lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// Entry is a single normalized row of the reference table.
type Entry struct {
	Country   string
	City      string
	Latitude  float64
	Longitude float64
}

// Gazetteer is an immutable country+city index. Safe for concurrent use.
type Gazetteer struct {
	countries []string
	index     map[string]domain.Location
}

// Key builds the index key of a country/city pair. The parts are joined with
// no separator, so pairs like ("france", "st lucia") and ("franc", "est lucia")
// share a key.
func Key(country, city string) string {
	return country + city
}

// New builds a gazetteer from entries. Country and city are lower-cased and
// trimmed; on duplicate keys the last entry wins.
func New(entries []Entry) *Gazetteer {
	g := &Gazetteer{index: make(map[string]domain.Location, len(entries))}

	seen := make(map[string]struct{})
	for _, e := range entries {
		country := strings.ToLower(strings.TrimSpace(e.Country))
		city := strings.ToLower(strings.TrimSpace(e.City))

		g.index[Key(country, city)] = domain.Location{
			Latitude:  e.Latitude,
			Longitude: e.Longitude,
			City:      city,
			Country:   country,
		}

		if _, ok := seen[country]; !ok && country != "" {
			seen[country] = struct{}{}
			g.countries = append(g.countries, country)
		}
	}
	sort.Strings(g.countries)

	return g
}

// Load reads a CSV reference table with a header row. The columns country,
// lat and lng are required, plus city_ascii or city; city_ascii wins when
// both are present.
func Load(r io.Reader) (*Gazetteer, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}

	cityCol, ok := cols["city_ascii"]
	if !ok {
		if cityCol, ok = cols["city"]; !ok {
			return nil, fmt.Errorf("%w: city_ascii or city", ErrMissingColumn)
		}
	}
	var countryCol, latCol, lngCol int
	for _, c := range []struct {
		name string
		dst  *int
	}{{"country", &countryCol}, {"lat", &latCol}, {"lng", &lngCol}} {
		idx, ok := cols[c.name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c.name)
		}
		*c.dst = idx
	}
	maxCol := max(cityCol, countryCol, latCol, lngCol)

	var entries []Entry
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		line, _ := cr.FieldPos(0)
		if len(row) <= maxCol {
			return nil, fmt.Errorf("line %d: expected at least %d fields, got %d", line, maxCol+1, len(row))
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(row[latCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parse lat: %w", line, err)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(row[lngCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parse lng: %w", line, err)
		}

		entries = append(entries, Entry{
			Country:   row[countryCol],
			City:      row[cityCol],
			Latitude:  lat,
			Longitude: lng,
		})
	}

	return New(entries), nil
}

// LoadFile loads the reference table at path.
func LoadFile(path string) (*Gazetteer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gazetteer: %w", err)
	}
	defer f.Close()

	g, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("load gazetteer %s: %w", path, err)
	}
	return g, nil
}

// Countries returns the known countries in lexicographic order.
func (g *Gazetteer) Countries() []string {
	out := make([]string, len(g.countries))
	copy(out, g.countries)
	return out
}

// Lookup returns the location recorded for a normalized country/city pair.
func (g *Gazetteer) Lookup(country, city string) (domain.Location, bool) {
	return g.LookupKey(Key(country, city))
}

// LookupKey returns the location recorded under an index key.
func (g *Gazetteer) LookupKey(key string) (domain.Location, bool) {
	loc, ok := g.index[key]
	return loc, ok
}

// keys returns all index keys, sorted.
func (g *Gazetteer) keys() []string {
	keys := make([]string, 0, len(g.index))
	for k := range g.index {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of index keys.
func (g *Gazetteer) Len() int {
	return len(g.index)
}
