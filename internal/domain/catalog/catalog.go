// Package catalog loads the booth scenarios and the QR tag lookup table.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"unicode"

	"github.com/okian/triagebooth/internal/domain/model"
	"gopkg.in/yaml.v3"
)

//go:embed scenarios.yaml
var defaultCatalog []byte

// file is the on-disk layout of a catalog.
type file struct {
	Tags      map[model.VitalKey][]string `yaml:"tags"`
	Scenarios []model.Scenario            `yaml:"scenarios"`
}

// Catalog is the immutable set of scenarios plus the tag table.
// It is safe for concurrent use once built.
type Catalog struct {
	scenarios []model.Scenario
	byID      map[string]int
	tags      map[string]model.VitalKey
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads the catalog at p, or the built-in one when p is empty.
func Load(p string) (*Catalog, error) {
	if p == "" {
		return Default()
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrReadCatalog, p, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	return build(f)
}

func build(f file) (*Catalog, error) {
	if len(f.Scenarios) == 0 {
		return nil, fmt.Errorf("%w: no scenarios", ErrInvalidCatalog)
	}

	c := &Catalog{
		scenarios: make([]model.Scenario, 0, len(f.Scenarios)),
		byID:      make(map[string]int, len(f.Scenarios)),
		tags:      make(map[string]model.VitalKey),
	}

	used := make(map[model.VitalKey]bool)
	for _, sc := range f.Scenarios {
		if err := validateScenario(&sc); err != nil {
			return nil, err
		}
		if _, dup := c.byID[sc.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate scenario id %q", ErrInvalidCatalog, sc.ID)
		}
		for _, v := range sc.Vitals {
			used[v.Key] = true
		}
		c.byID[sc.ID] = len(c.scenarios)
		c.scenarios = append(c.scenarios, sc)
	}

	for key, tags := range f.Tags {
		if !key.Valid() {
			return nil, fmt.Errorf("%w: tags target unknown vital %q", ErrInvalidCatalog, key)
		}
		for _, raw := range tags {
			tag := Normalize(raw)
			if tag == "" {
				return nil, fmt.Errorf("%w: empty tag for %q", ErrInvalidCatalog, key)
			}
			if prev, dup := c.tags[tag]; dup {
				return nil, fmt.Errorf("%w: tag %q maps to both %q and %q", ErrInvalidCatalog, tag, prev, key)
			}
			c.tags[tag] = key
		}
	}

	for key := range used {
		if !c.hasTagFor(key) {
			return nil, fmt.Errorf("%w: no tag reveals %q", ErrInvalidCatalog, key)
		}
	}
	return c, nil
}

func validateScenario(sc *model.Scenario) error {
	sc.ID = strings.TrimSpace(sc.ID)
	if sc.ID == "" {
		return fmt.Errorf("%w: scenario without id", ErrInvalidCatalog)
	}
	tr, ok := model.ParseTriage(string(sc.AI.Triage))
	if !ok {
		return fmt.Errorf("%w: scenario %s: triage %q", ErrInvalidCatalog, sc.ID, sc.AI.Triage)
	}
	sc.AI.Triage = tr
	if sc.AI.AITimeSeconds <= 0 {
		return fmt.Errorf("%w: scenario %s: ai time must be positive", ErrInvalidCatalog, sc.ID)
	}
	if len(sc.Vitals) == 0 {
		return fmt.Errorf("%w: scenario %s: no vitals", ErrInvalidCatalog, sc.ID)
	}
	seen := make(map[model.VitalKey]bool, len(sc.Vitals))
	for _, v := range sc.Vitals {
		if !v.Key.Valid() {
			return fmt.Errorf("%w: scenario %s: unknown vital %q", ErrInvalidCatalog, sc.ID, v.Key)
		}
		if seen[v.Key] {
			return fmt.Errorf("%w: scenario %s: vital %q listed twice", ErrInvalidCatalog, sc.ID, v.Key)
		}
		seen[v.Key] = true
	}
	return nil
}

func (c *Catalog) hasTagFor(key model.VitalKey) bool {
	for _, k := range c.tags {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the scenario with id. Slices inside are shared and must not be
// modified.
func (c *Catalog) Get(id string) (model.Scenario, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.Scenario{}, false
	}
	return c.scenarios[i], true
}

// List returns all scenarios in catalog order.
func (c *Catalog) List() []model.Scenario {
	out := make([]model.Scenario, len(c.scenarios))
	copy(out, c.scenarios)
	return out
}

// Resolve maps a scanned payload to a vital key. A payload may be a tag, a
// vital key, or a file name or URL carrying either.
func (c *Catalog) Resolve(payload string) (model.VitalKey, bool) {
	tag := Normalize(payload)
	if tag == "" {
		return "", false
	}
	if k, ok := c.lookup(tag); ok {
		return k, true
	}
	for _, tok := range strings.FieldsFunc(tag, isSeparator) {
		if k, ok := c.lookup(tok); ok {
			return k, true
		}
	}
	return "", false
}

func (c *Catalog) lookup(tag string) (model.VitalKey, bool) {
	if k, ok := c.tags[tag]; ok {
		return k, true
	}
	if k := model.VitalKey(tag); k.Valid() {
		return k, true
	}
	return "", false
}

// Tags returns the tag table as sorted tag names and their targets.
func (c *Catalog) Tags() []Tag {
	out := make([]Tag, 0, len(c.tags))
	for t, k := range c.tags {
		out = append(out, Tag{Name: t, Vital: k})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Tag is one printable QR payload.
type Tag struct {
	Name  string         `json:"name"`
	Vital model.VitalKey `json:"vital"`
}

// Normalize trims and lower-cases payload and strips any URL or file path and
// the file extension.
func Normalize(payload string) string {
	s := strings.ToLower(strings.TrimSpace(payload))
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, `/\`)
	if i := strings.LastIndexAny(s, `/\`); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(s, path.Ext(s))
	return strings.TrimSpace(s)
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
