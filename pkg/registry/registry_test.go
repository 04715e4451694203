package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
version: "1.0.0"
templates:
  - id: welcome
    name: Welcome
    type: email
    subject: "Hi {{first_name}}"
    content: "Welcome to {{organization_name}}"
    variables: [first_name, organization_name]
`

func TestParseAndValidate(t *testing.T) {
	reg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Empty(t, reg.Validate())
	entry, ok := reg.Find("welcome")
	require.True(t, ok)
	assert.Equal(t, "Welcome", entry.Name)
}

func TestValidate_ReportsProblems(t *testing.T) {
	reg := &TemplateRegistry{Templates: []TemplateEntry{
		{ID: "a", Type: "email", Content: "hello"},
		{ID: "a", Type: "fax", Content: "hi {{name}}", Variables: []string{"name", "unused"}},
		{ID: "", Type: "sms", Content: "x"},
	}}

	errs := reg.Validate()

	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	assert.Contains(t, msgs, "template a: email templates need a subject")
	assert.Contains(t, msgs, "template a: duplicate id")
	assert.Contains(t, msgs, `template a: unknown type "fax"`)
	assert.Contains(t, msgs, "template a: declared variable unused is never used")
	assert.Contains(t, msgs, "template #2: id is required")
}

func TestUpsert(t *testing.T) {
	reg := &TemplateRegistry{}
	reg.Upsert(TemplateEntry{ID: "x", Name: "first"})
	reg.Upsert(TemplateEntry{ID: "x", Name: "second"})
	reg.Upsert(TemplateEntry{ID: "y", Name: "other"})

	require.Len(t, reg.Templates, 2)
	assert.Equal(t, "second", reg.Templates[0].Name)
}

func TestPlaceholders(t *testing.T) {
	got := Placeholders("{{b}} and {{a}} and {{b}} but not {{ c }}")

	assert.Equal(t, []string{"a", "b"}, got)
}

func TestSaveAndLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	reg, err := Parse([]byte(sample))
	require.NoError(t, err)

	require.NoError(t, SaveRegistry(path, reg))
	loaded, err := LoadRegistry(path)

	require.NoError(t, err)
	assert.Equal(t, reg.Templates, loaded.Templates)
}
