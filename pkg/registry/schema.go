// pkg/registry/schema.go
package registry

// TemplateRegistry is the on-disk catalog of communication templates.
type TemplateRegistry struct {
	Version     string          `yaml:"version"`
	LastUpdated string          `yaml:"lastUpdated,omitempty"`
	Templates   []TemplateEntry `yaml:"templates"`
}

type TemplateEntry struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Category  string   `yaml:"category,omitempty"`
	Subject   string   `yaml:"subject,omitempty"`
	Content   string   `yaml:"content"`
	Variables []string `yaml:"variables,omitempty"`
}

// Channels a template entry may target.
var validTypes = map[string]bool{
	"email":  true,
	"sms":    true,
	"push":   true,
	"in_app": true,
}
