package services

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Request schema names, one per write endpoint.
const (
	SchemaRegister         = "register"
	SchemaLogin            = "login"
	SchemaSecretLogin      = "secret_login"
	SchemaOrderCreate      = "order_create"
	SchemaOrderUpdate      = "order_update"
	SchemaDisputeResolve   = "dispute_resolve"
	SchemaReviewCreate     = "review_create"
	SchemaMessageCreate    = "message_create"
	SchemaMessageEdit      = "message_edit"
	SchemaServiceCreate    = "service_create"
	SchemaServiceUpdate    = "service_update"
	SchemaServiceModerate  = "service_moderate"
	SchemaProfileUpdate    = "profile_update"
	SchemaTopUp            = "top_up"
	SchemaFeedbackSubmit   = "feedback_submit"
	SchemaSettingsResponse = "settings_response"
	SchemaSettingsOzon     = "settings_ozon"
	SchemaSettingsOpenAI   = "settings_openai"
	SchemaSettingsModel    = "settings_model"
	SchemaSettingsToggle   = "settings_toggle"
	SchemaSettingsValue    = "settings_value"
	SchemaAutoResponseTest = "auto_response_test"
)

// Validator checks request bodies against the embedded JSON schemas.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles every embedded schemas/*.json file, keyed by file name without extension.
func NewValidator() (*Validator, error) {
	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, fmt.Errorf("read embedded schemas: %w", err)
	}
	schemas := make(map[string]*jsonschema.Schema, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		data, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", e.Name(), err)
		}
		schemas[name], err = jsonschema.CompileString("https://tgwork.dev/schemas/"+name+".json", string(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", name, err)
		}
	}
	return &Validator{schemas: schemas}, nil
}

// Has reports whether a schema with that name was compiled.
func (v *Validator) Has(name string) bool {
	_, ok := v.schemas[name]
	return ok
}

// Validate performs a hard reject: an error wrapping ErrValidation when body does not match.
func (v *Validator) Validate(name string, body []byte) error {
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrValidation, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, describe(err))
	}
	return nil
}

// describe flattens a jsonschema validation error to its leaf causes.
func describe(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	var leaves []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			leaves = append(leaves, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return strings.Join(leaves, "; ")
}
