package sources

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Catalog is the immutable, validated set of configured sources.
type Catalog struct {
	sources []Config
}

// NewCatalog normalizes and validates every config. The first invalid entry
// aborts construction.
func NewCatalog(configs []Config) (*Catalog, error) {
	out := make([]Config, 0, len(configs))
	for _, c := range configs {
		c = c.Normalize()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return &Catalog{sources: out}, nil
}

// LoadCatalog reads a YAML document of the form `sources: [...]`.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var doc struct {
		Sources []Config `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(doc.Sources) == 0 {
		return nil, fmt.Errorf("catalog %s: no sources", path)
	}
	return NewCatalog(doc.Sources)
}

// All returns every source in catalog order.
func (c *Catalog) All() []Config {
	out := make([]Config, len(c.sources))
	copy(out, c.sources)
	return out
}

// Len returns the number of configured sources.
func (c *Catalog) Len() int { return len(c.sources) }

// ByCategory returns sources whose hint equals category; an empty category
// returns everything.
func (c *Catalog) ByCategory(category string) []Config {
	if category == "" {
		return c.All()
	}
	category = Config{Category: category}.Normalize().Category
	var out []Config
	for _, s := range c.sources {
		if s.Category == category {
			out = append(out, s)
		}
	}
	return out
}

// ByDepartment returns sources pinned to the given department.
func (c *Catalog) ByDepartment(department string) []Config {
	if department == "" {
		return c.All()
	}
	department = Config{Department: department}.Normalize().Department
	var out []Config
	for _, s := range c.sources {
		if s.Department == department {
			out = append(out, s)
		}
	}
	return out
}

// Names returns the distinct source display names, sorted.
func (c *Catalog) Names() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range c.sources {
		if !seen[s.Name] {
			seen[s.Name] = true
			out = append(out, s.Name)
		}
	}
	sort.Strings(out)
	return out
}

// Categories returns the category hints known to the registry.
func Categories() []string {
	return []string{CategoryNacional, CategoryInternacional, CategoryRegional}
}
