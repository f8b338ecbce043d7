// Package region holds the catalog of analysable regions and resolves their
// administrative boundaries.
package region

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

var (
	// ErrEmptyCatalog is returned when a catalog defines no regions.
	ErrEmptyCatalog = errors.New("region catalog is empty")

	// ErrUnknownDefault is returned when the default region is not in the
	// catalog.
	ErrUnknownDefault = errors.New("default region not in catalog")
)

// Region is one catalog entry.
type Region struct {
	Name        string       `yaml:"name" json:"name"`
	Latitude    float64      `yaml:"latitude" json:"latitude"`
	Longitude   float64      `yaml:"longitude" json:"longitude"`
	Population  int          `yaml:"population" json:"population,omitempty"`
	Climate     string       `yaml:"climate" json:"climate,omitempty"`
	WAQIStation string       `yaml:"waqi_station" json:"-"`
	Boundary    [][2]float64 `yaml:"boundary" json:"-"`
}

type catalogFile struct {
	Default string   `yaml:"default"`
	Regions []Region `yaml:"regions"`
}

// Catalog is an immutable, case-insensitive set of regions with a default.
type Catalog struct {
	regions    map[string]Region
	defaultKey string
}

// LoadCatalog parses a YAML catalog. A non-empty defaultName overrides the
// default declared in the file.
func LoadCatalog(data []byte, defaultName string) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing region catalog: %w", err)
	}
	if len(file.Regions) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{regions: make(map[string]Region, len(file.Regions))}
	for _, r := range file.Regions {
		c.regions[key(r.Name)] = r
	}

	if defaultName == "" {
		defaultName = file.Default
	}
	if _, ok := c.regions[key(defaultName)]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDefault, defaultName)
	}
	c.defaultKey = key(defaultName)
	return c, nil
}

// DefaultCatalog loads the embedded catalog.
func DefaultCatalog(defaultName string) (*Catalog, error) {
	return LoadCatalog(embeddedCatalog, defaultName)
}

// Lookup finds a region by name, ignoring case and surrounding space.
func (c *Catalog) Lookup(name string) (Region, bool) {
	r, ok := c.regions[key(name)]
	return r, ok
}

// Resolve returns the named region, or the default one when the name is
// empty or unknown.
func (c *Catalog) Resolve(name string) Region {
	if r, ok := c.Lookup(name); ok {
		return r
	}
	return c.regions[c.defaultKey]
}

// Default returns the default region.
func (c *Catalog) Default() Region {
	return c.regions[c.defaultKey]
}

// Population returns the known population of a location.
func (c *Catalog) Population(location string) (int, bool) {
	r, ok := c.Lookup(location)
	if !ok || r.Population <= 0 {
		return 0, false
	}
	return r.Population, true
}

// Names returns all region names in alphabetical order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.regions))
	for _, r := range c.regions {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
