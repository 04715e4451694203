// Package templates holds the communication templates orchestrators render.
package templates

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/errors"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/pkg/registry"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Store is read-only after construction.
type Store struct {
	templates map[string]models.CommunicationTemplate
}

// Default builds a store from the embedded catalog only.
func Default() (*Store, error) {
	return New("")
}

// MustDefault panics if the embedded catalog is invalid.
func MustDefault() *Store {
	s, err := Default()
	if err != nil {
		panic(err)
	}
	return s
}

// New loads the embedded catalog and, if registryPath is set, overlays the
// operator registry on top of it.
func New(registryPath string) (*Store, error) {
	base, err := registry.Parse(defaultCatalog)
	if err != nil {
		return nil, fmt.Errorf("default catalog: %w", err)
	}

	var overlay *registry.TemplateRegistry
	if registryPath != "" {
		overlay, err = registry.LoadRegistry(registryPath)
		if err != nil {
			return nil, fmt.Errorf("load template registry %s: %w", registryPath, err)
		}
	}
	return FromRegistries(base, overlay)
}

// FromRegistries merges sources in order; later sources override earlier ids.
func FromRegistries(sources ...*registry.TemplateRegistry) (*Store, error) {
	s := &Store{templates: make(map[string]models.CommunicationTemplate)}
	for _, src := range sources {
		if src == nil {
			continue
		}
		entries, err := collect(src)
		if err != nil {
			return nil, err
		}
		for id, t := range entries {
			s.templates[id] = t
		}
	}
	return s, nil
}

func collect(src *registry.TemplateRegistry) (map[string]models.CommunicationTemplate, error) {
	out := make(map[string]models.CommunicationTemplate, len(src.Templates))
	for i, e := range src.Templates {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return nil, errors.NewTemplateValidationError(fmt.Sprintf("template #%d: empty id", i))
		}
		if _, dup := out[id]; dup {
			return nil, errors.NewTemplateValidationError(fmt.Sprintf("template %s: duplicate id", id))
		}
		channel, err := models.ParseChannel(e.Type)
		if err != nil {
			return nil, errors.NewTemplateValidationError(fmt.Sprintf("template %s: %v", id, err))
		}
		out[id] = models.CommunicationTemplate{
			ID:        id,
			Name:      e.Name,
			Subject:   e.Subject,
			Content:   e.Content,
			Variables: append([]string(nil), e.Variables...),
			Type:      channel,
			Category:  e.Category,
		}
	}
	return out, nil
}

// Get returns a copy of the template so callers cannot mutate the store.
func (s *Store) Get(id string) (models.CommunicationTemplate, bool) {
	t, ok := s.templates[id]
	if !ok {
		return models.CommunicationTemplate{}, false
	}
	t.Variables = append([]string(nil), t.Variables...)
	return t, true
}

func (s *Store) Has(id string) bool {
	_, ok := s.templates[id]
	return ok
}

// IDs lists template ids in sorted order.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.templates))
	for id := range s.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) Len() int {
	return len(s.templates)
}
