package prompts

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// embeds all .yaml files in the templates folder into Go program at compile time
//
//go:embed templates/*.yaml
var templateFS embed.FS

// DefaultVariant is used by templates that have a single body
const DefaultVariant = "default"

// Template names
const (
	ClassifyDifficulty = "classify_difficulty"
	GenerateQuestions  = "generate_questions"
	DetectLanguage     = "detect_language"
	EvaluateAnswer     = "evaluate_answer"
	SummarizeSession   = "summarize_session"
)

// PromptProvider builds prompts by template name and variant
type PromptProvider interface {
	BuildPrompt(name, variant string, data map[string]string) (string, error)
	SystemInstruction(name string) string
	GetTemplates() map[string][]string
}

type PromptManager struct {
	prompts map[string]map[string]string // name -> variant -> complete prompt
	system  map[string]string
}

// loaded prompt template
type PromptTemplate struct {
	System     string            `yaml:"system"`
	BasePrompt string            `yaml:"base_prompt"`
	Variants   map[string]string `yaml:"variants"`
}

// creates a new prompt manager and loads templates
func NewPromptManager() (*PromptManager, error) {
	pm := &PromptManager{
		prompts: make(map[string]map[string]string),
		system:  make(map[string]string),
	}

	if err := pm.loadPrompts(); err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}

	return pm, nil
}

// BuildPrompt fills {{.Key}} placeholders of the named template variant.
// An empty variant selects DefaultVariant.
func (pm *PromptManager) BuildPrompt(name, variant string, data map[string]string) (string, error) {
	variants, exists := pm.prompts[name]
	if !exists {
		return "", fmt.Errorf("template not found: %s", name)
	}
	if variant == "" {
		variant = DefaultVariant
	}

	promptTemplate, exists := variants[variant]
	if !exists {
		return "", fmt.Errorf("variant '%s' not found for template '%s'", variant, name)
	}

	pairs := make([]string, 0, len(data)*2)
	for key, value := range data {
		pairs = append(pairs, "{{."+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(promptTemplate), nil
}

func (pm *PromptManager) SystemInstruction(name string) string {
	return pm.system[name]
}

// GetTemplates lists template names with their sorted variants
func (pm *PromptManager) GetTemplates() map[string][]string {
	out := make(map[string][]string, len(pm.prompts))
	for name, variants := range pm.prompts {
		keys := make([]string, 0, len(variants))
		for k := range variants {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out[name] = keys
	}
	return out
}

// loadPrompts loads all YAML prompt files from the embedded filesystem
func (pm *PromptManager) loadPrompts() error {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return fmt.Errorf("failed to read templates directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		data, err := templateFS.ReadFile("templates/" + entry.Name())
		if err != nil {
			return fmt.Errorf("failed to read template file %s: %w", entry.Name(), err)
		}

		var promptTemplate PromptTemplate
		if err := yaml.Unmarshal(data, &promptTemplate); err != nil {
			return fmt.Errorf("failed to parse template file %s: %w", entry.Name(), err)
		}
		if len(promptTemplate.Variants) == 0 {
			return fmt.Errorf("template file %s has no variants", entry.Name())
		}

		name := strings.TrimSuffix(entry.Name(), ".yaml")
		pm.prompts[name] = make(map[string]string)
		pm.system[name] = strings.TrimSpace(promptTemplate.System)

		for variant, body := range promptTemplate.Variants {
			var fullPrompt strings.Builder
			if promptTemplate.BasePrompt != "" {
				fullPrompt.WriteString(strings.TrimSpace(promptTemplate.BasePrompt))
				fullPrompt.WriteString("\n\n")
			}
			fullPrompt.WriteString(strings.TrimSpace(body))
			pm.prompts[name][variant] = fullPrompt.String()
		}
	}

	return nil
}
