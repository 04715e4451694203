// pkg/registry/registry.go
package registry

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var placeholderPattern = regexp.MustCompile(`\{\{([a-zA-Z0-9_]+)\}\}`)

func LoadRegistry(path string) (*TemplateRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*TemplateRegistry, error) {
	var reg TemplateRegistry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse template registry: %w", err)
	}
	return &reg, nil
}

func SaveRegistry(path string, reg *TemplateRegistry) error {
	data, err := yaml.Marshal(reg)
	if err != nil {
		return fmt.Errorf("encode template registry: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks ids are present and unique, types are known, and every
// declared variable appears in the template text.
func (r *TemplateRegistry) Validate() []error {
	var errs []error
	seen := make(map[string]bool, len(r.Templates))

	for i, t := range r.Templates {
		if strings.TrimSpace(t.ID) == "" {
			errs = append(errs, fmt.Errorf("template #%d: id is required", i))
			continue
		}
		if seen[t.ID] {
			errs = append(errs, fmt.Errorf("template %s: duplicate id", t.ID))
		}
		seen[t.ID] = true

		if !validTypes[t.Type] {
			errs = append(errs, fmt.Errorf("template %s: unknown type %q", t.ID, t.Type))
		}
		if t.Type == "email" && t.Subject == "" {
			errs = append(errs, fmt.Errorf("template %s: email templates need a subject", t.ID))
		}
		if strings.TrimSpace(t.Content) == "" {
			errs = append(errs, fmt.Errorf("template %s: content is required", t.ID))
		}

		used := Placeholders(t.Subject + " " + t.Content)
		for _, v := range t.Variables {
			if !contains(used, v) {
				errs = append(errs, fmt.Errorf("template %s: declared variable %s is never used", t.ID, v))
			}
		}
	}
	return errs
}

// Find returns the entry with id.
func (r *TemplateRegistry) Find(id string) (TemplateEntry, bool) {
	for _, t := range r.Templates {
		if t.ID == id {
			return t, true
		}
	}
	return TemplateEntry{}, false
}

// Upsert adds entry or replaces the entry with the same id.
func (r *TemplateRegistry) Upsert(entry TemplateEntry) {
	for i, t := range r.Templates {
		if t.ID == entry.ID {
			r.Templates[i] = entry
			return
		}
	}
	r.Templates = append(r.Templates, entry)
}

// Placeholders lists the distinct {{key}} names in text, sorted.
func Placeholders(text string) []string {
	set := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		set[m[1]] = true
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
