package archetype

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// hiddenFiles exist in every seeded project but are never shown to the model.
var hiddenFiles = []string{".gitignore", "package-lock.json"}

// Template is what a classified prompt starts from: Prompts go to the model
// ahead of the user's request, UIPrompts are the seed artifacts for display
// and for populating the file tree.
type Template struct {
	Prompts   []string `json:"prompts"`
	UIPrompts []string `json:"uiPrompts"`
}

// Catalog holds the seed artifacts and shared prompts.
type Catalog struct {
	DesignPrompt string               `yaml:"design_prompt"`
	SystemPrompt string               `yaml:"system_prompt"`
	Seeds        map[Archetype]string `yaml:"seeds"`
}

// LoadCatalog parses the embedded catalog.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog parses a catalog document and checks that every archetype
// has a seed.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for _, a := range All {
		seed := strings.TrimRight(c.Seeds[a], "\n")
		if seed == "" {
			return nil, fmt.Errorf("catalog: no seed for archetype %q", a)
		}
		c.Seeds[a] = seed
	}
	c.DesignPrompt = strings.TrimRight(c.DesignPrompt, "\n")
	c.SystemPrompt = strings.TrimRight(c.SystemPrompt, "\n")
	if c.SystemPrompt == "" {
		return nil, fmt.Errorf("catalog: missing system_prompt")
	}
	return &c, nil
}

// Seed returns the seed artifact for a.
func (c *Catalog) Seed(a Archetype) (string, error) {
	seed, ok := c.Seeds[a]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnrecognized, string(a))
	}
	return seed, nil
}

// Template builds the starting prompts for a. React projects also get the
// design prompt.
func (c *Catalog) Template(a Archetype) (Template, error) {
	seed, err := c.Seed(a)
	if err != nil {
		return Template{}, err
	}
	var prompts []string
	if a == React && c.DesignPrompt != "" {
		prompts = append(prompts, c.DesignPrompt)
	}
	prompts = append(prompts, Preamble(seed))
	return Template{Prompts: prompts, UIPrompts: []string{seed}}, nil
}

// Preamble wraps a seed artifact with the note telling the model it sees the
// whole project apart from the hidden files.
func Preamble(seed string) string {
	var b strings.Builder
	b.WriteString("Here is an artifact that contains all files of the project visible to you.\n")
	b.WriteString("Consider the contents of ALL files in the project.\n\n")
	b.WriteString(seed)
	b.WriteString("\n\nHere is a list of files that exist on the file system but are not being shown to you:\n\n")
	for _, f := range hiddenFiles {
		b.WriteString("  - ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	return b.String()
}
