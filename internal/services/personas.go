package services

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tekvare/erp-ai-worker/internal/logger"
)

// Persona describes one conversation mode: the system-prompt fragment the
// model is primed with, suggestion-prompt fragments for the producer side,
// and extra business fields rendered into every prompt for that mode.
type Persona struct {
	SystemPrompt      string            `yaml:"system_prompt"`
	SuggestionPrompts []string          `yaml:"suggestion_prompts"`
	Fields            map[string]string `yaml:"fields"`
}

type PersonaSet map[string]Persona

const defaultMode = "assistant"

func defaultPersonas() PersonaSet {
	return PersonaSet{
		defaultMode: {
			SystemPrompt: "You are the Tekvare ERP assistant. Answer using the business data provided. Be concise and factual; if the data does not cover the question, say so.",
			SuggestionPrompts: []string{
				"If a concrete follow-up action would help the user, embed it as a suggestion.",
			},
		},
		"sales": {
			SystemPrompt: "You are the Tekvare sales assistant. Help with quotes, pricing and customer follow-ups using the business data provided.",
			SuggestionPrompts: []string{
				"Suggest an upsell when the conversation indicates an open quote.",
			},
		},
	}
}

// LoadPersonas returns the built-in personas, overlaid with the YAML file at
// PERSONAS_FILE when set. File entries replace built-ins mode by mode.
func LoadPersonas(path string, log *logger.Logger) (PersonaSet, error) {
	set := defaultPersonas()
	if path == "" {
		return set, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read personas file: %w", err)
	}
	var fromFile PersonaSet
	if err := yaml.Unmarshal(raw, &fromFile); err != nil {
		return nil, fmt.Errorf("parse personas file: %w", err)
	}
	for mode, p := range fromFile {
		set[mode] = p
	}
	if log != nil {
		log.Info("Personas loaded", "file", path, "modes", len(set))
	}
	return set, nil
}

// Get falls back to the default persona for unknown modes so a producer-side
// typo degrades to generic behavior instead of failing requests.
func (ps PersonaSet) Get(mode string) Persona {
	if p, ok := ps[mode]; ok {
		return p
	}
	return ps[defaultMode]
}
