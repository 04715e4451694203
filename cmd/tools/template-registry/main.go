// cmd/tools/template-registry/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/pkg/registry"
)

const defaultRegistryPath = "internal/automation/templates/catalog.yaml"

var registryPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{addCmd, updateCmd, validateCmd, listCmd} {
		fs.StringVar(&registryPath, "path", defaultRegistryPath, "Path to the template registry")
	}

	idAdd := addCmd.String("id", "", "Template ID (e.g., donation_thank_you)")
	name := addCmd.String("name", "", "Display name")
	channel := addCmd.String("type", "email", "Channel (email, sms, push, in_app)")
	category := addCmd.String("category", "", "Category (e.g., donation)")
	subject := addCmd.String("subject", "", "Subject line, required for email")
	content := addCmd.String("content", "", "Body with {{placeholder}} keys")

	idUpdate := updateCmd.String("id", "", "Template ID to update")
	field := updateCmd.String("field", "", "Field to update (name, type, category, subject, content)")
	value := updateCmd.String("value", "", "New value for the field")

	listCategory := listCmd.String("category", "", "Only list this category")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *name == "" || *content == "" {
			fmt.Println("Error: id, name, and content are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		entry := registry.TemplateEntry{
			ID:       *idAdd,
			Name:     *name,
			Type:     *channel,
			Category: *category,
			Subject:  *subject,
			Content:  *content,
		}
		if err := addTemplate(entry); err != nil {
			fmt.Printf("Error adding template: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added template: %s\n", *idAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" {
			fmt.Println("Error: id and field are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateTemplate(*idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating template: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated template %s, field %s\n", *idUpdate, *field)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateRegistry(); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Registry validation passed.")

	case "list":
		listCmd.Parse(os.Args[2:])
		if err := listTemplates(*listCategory); err != nil {
			fmt.Printf("Error listing templates: %v\n", err)
			os.Exit(1)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

func addTemplate(entry registry.TemplateEntry) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		reg = &registry.TemplateRegistry{Version: "1.0.0"}
	}

	if _, exists := reg.Find(entry.ID); exists {
		return fmt.Errorf("template with ID %s already exists", entry.ID)
	}

	entry.Variables = registry.Placeholders(entry.Subject + " " + entry.Content)
	reg.Upsert(entry)
	return save(reg)
}

func updateTemplate(id, field, value string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	entry, ok := reg.Find(id)
	if !ok {
		return fmt.Errorf("template with ID %s not found", id)
	}

	switch field {
	case "name":
		entry.Name = value
	case "type":
		entry.Type = value
	case "category":
		entry.Category = value
	case "subject":
		entry.Subject = value
	case "content":
		entry.Content = value
	default:
		return fmt.Errorf("unsupported field: %s", field)
	}

	entry.Variables = registry.Placeholders(entry.Subject + " " + entry.Content)
	reg.Upsert(entry)
	return save(reg)
}

// save refuses to write a registry that would fail validation.
func save(reg *registry.TemplateRegistry) error {
	if errs := reg.Validate(); len(errs) > 0 {
		return joinErrors(errs)
	}
	reg.LastUpdated = time.Now().Format("2006-01-02")
	return registry.SaveRegistry(registryPath, reg)
}

func validateRegistry() error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if errs := reg.Validate(); len(errs) > 0 {
		return joinErrors(errs)
	}
	fmt.Printf("%d templates checked.\n", len(reg.Templates))
	return nil
}

func listTemplates(category string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tCATEGORY\tVARIABLES")
	for _, t := range reg.Templates {
		if category != "" && t.Category != category {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Type, t.Category, strings.Join(t.Variables, ","))
	}
	return w.Flush()
}

func joinErrors(errs []error) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%d problem(s):\n  %s", len(errs), strings.Join(msgs, "\n  "))
}

func help() {
	fmt.Println("Usage: template-registry <command> [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  add       Add a new template")
	fmt.Println("  update    Update a field of an existing template")
	fmt.Println("  validate  Check ids, channels and placeholders")
	fmt.Println("  list      Print the catalog")
	fmt.Println("  help      Show this help message")
	fmt.Println("All commands accept -path (default " + defaultRegistryPath + ").")
}
