package ai

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tones accepted by the generator. Unknown tones fall back to ToneFriendly.
const (
	ToneFriendly = "friendly"
	ToneOfficial = "official"
	ToneFormal   = "formal"
)

var Tones = []string{ToneFriendly, ToneOfficial, ToneFormal}

//go:embed templates.yaml
var templatesYAML []byte

type fallbackPair struct {
	Positive string `yaml:"positive"`
	Negative string `yaml:"negative"`
}

// TemplateSet holds the prompts and fallback answers loaded from templates.yaml.
type TemplateSet struct {
	NegativeWords     []string                `yaml:"negative_words"`
	SystemPrompts     map[string]string       `yaml:"system_prompts"`
	Fallback          map[string]fallbackPair `yaml:"fallback"`
	RespondUserPrompt string                  `yaml:"respond_user_prompt"`
	VariantPrompt     string                  `yaml:"variant_prompt"`
	SentimentPrompt   string                  `yaml:"sentiment_prompt"`
	CategoryPrompt    string                  `yaml:"category_prompt"`
}

// LoadTemplates parses the embedded template set and checks every tone is present.
func LoadTemplates() (*TemplateSet, error) {
	var ts TemplateSet
	if err := yaml.Unmarshal(templatesYAML, &ts); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	for _, tone := range Tones {
		pair, ok := ts.Fallback[tone]
		if !ok || pair.Positive == "" || pair.Negative == "" {
			return nil, fmt.Errorf("templates: missing fallback for tone %q", tone)
		}
		if ts.SystemPrompts[tone] == "" {
			return nil, fmt.Errorf("templates: missing system prompt for tone %q", tone)
		}
	}
	if len(ts.NegativeWords) == 0 {
		return nil, fmt.Errorf("templates: negative_words is empty")
	}
	return &ts, nil
}

// NormalizeTone maps unknown or empty tones to ToneFriendly.
func NormalizeTone(tone string) string {
	tone = strings.ToLower(strings.TrimSpace(tone))
	switch tone {
	case ToneFriendly, ToneOfficial, ToneFormal:
		return tone
	}
	return ToneFriendly
}

// IsNegative reports whether the lower-cased text contains any word of the negative lexicon.
func (ts *TemplateSet) IsNegative(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range ts.NegativeWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// FallbackText picks the fixed answer for text and tone, without signature.
func (ts *TemplateSet) FallbackText(text, tone string) string {
	pair := ts.Fallback[NormalizeTone(tone)]
	if ts.IsNegative(text) {
		return pair.Negative
	}
	return pair.Positive
}

func (ts *TemplateSet) SystemPrompt(tone string) string {
	return ts.SystemPrompts[NormalizeTone(tone)]
}

// fill replaces {name} placeholders in tpl.
func fill(tpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}
