// Package catalog holds the static table of processing-unit types. It is loaded
// once at startup and shared read-only by every other component.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed engines.yaml
var defaultTable []byte

// ErrUnknownUnit is returned for unit IDs outside [1, N].
var ErrUnknownUnit = errors.New("unknown unit")

// maxTableSize bounds external catalog files.
const maxTableSize = 1 << 20

// #region catalog
// Catalog is an immutable lookup table keyed by unit-type ID.
type Catalog struct {
	engines []Descriptor // engines[i].ID == i+1
	byName  map[string]int
}

type table struct {
	Engines []Descriptor `yaml:"engines"`
}

// Default parses the embedded unit table.
func Default() (*Catalog, error) {
	return Parse(defaultTable)
}

// MustDefault is Default for tests and tools where the embedded table cannot be wrong.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFile reads a unit table from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat catalog: %w", err)
	}
	if info.Size() > maxTableSize {
		return nil, fmt.Errorf("catalog %s: %d bytes exceeds limit %d", path, info.Size(), maxTableSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML unit table.
func Parse(data []byte) (*Catalog, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(t.Engines) == 0 {
		return nil, errors.New("catalog: no engines")
	}

	c := &Catalog{
		engines: make([]Descriptor, len(t.Engines)),
		byName:  make(map[string]int, len(t.Engines)),
	}
	for i, d := range t.Engines {
		if d.ID != i+1 {
			return nil, fmt.Errorf("catalog: row %d has id %d, ids must be contiguous from 1", i, d.ID)
		}
		if err := checkDescriptor(d); err != nil {
			return nil, err
		}
		if d.Safety == "" {
			d.Safety = SafetyNone
		}
		c.engines[i] = d
		c.byName[normalizeName(d.Name)] = d.ID
	}
	return c, nil
}

func checkDescriptor(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("catalog: unit %d has no name", d.ID)
	}
	if !d.Category.valid() {
		return fmt.Errorf("catalog: unit %d has invalid category %q", d.ID, d.Category)
	}
	if len(d.Params) == 0 {
		return fmt.Errorf("catalog: unit %d declares no params", d.ID)
	}
	for role, idx := range d.Roles {
		if idx < 0 || idx >= len(d.Params) {
			return fmt.Errorf("catalog: unit %d role %s index %d out of range", d.ID, role, idx)
		}
	}
	for _, role := range requiredRoles[d.Safety] {
		if _, ok := d.Roles[role]; !ok {
			return fmt.Errorf("catalog: unit %d is %s but has no %s role", d.ID, d.Safety, role)
		}
	}
	return nil
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// #endregion catalog

// #region lookups
// Len returns N, the highest valid unit ID.
func (c *Catalog) Len() int {
	return len(c.engines)
}

// IsValid reports whether id is in [1, N].
func (c *Catalog) IsValid(id int) bool {
	return id >= 1 && id <= len(c.engines)
}

// Describe returns the descriptor for id.
func (c *Catalog) Describe(id int) (Descriptor, error) {
	if !c.IsValid(id) {
		return Descriptor{}, fmt.Errorf("%w: %d", ErrUnknownUnit, id)
	}
	return c.engines[id-1], nil
}

// Category returns the category of id.
func (c *Catalog) Category(id int) (Category, error) {
	d, err := c.Describe(id)
	if err != nil {
		return "", err
	}
	return d.Category, nil
}

// ChainPriority returns the ordering priority of id. Lower runs earlier.
func (c *Catalog) ChainPriority(id int) (int, error) {
	d, err := c.Describe(id)
	if err != nil {
		return 0, err
	}
	return d.ChainPriority, nil
}

// Lookup finds a unit ID by display name, case-insensitively.
func (c *Catalog) Lookup(name string) (int, bool) {
	id, ok := c.byName[normalizeName(name)]
	return id, ok
}

// All returns every descriptor in ID order.
func (c *Catalog) All() []Descriptor {
	out := make([]Descriptor, len(c.engines))
	copy(out, c.engines)
	return out
}

// #endregion lookups
