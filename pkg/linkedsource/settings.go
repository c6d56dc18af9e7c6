package linkedsource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	apperrors "github.com/wehubfusion/Heartcore/pkg/errors"
)

// Settings is the integration-wide settings value.
type Settings struct {
	LinkedSources []LinkedSource `json:"linkedSources"`
}

// Configured reports whether at least one linked source exists.
func (s *Settings) Configured() bool {
	return s != nil && len(s.LinkedSources) > 0
}

// Registry returns a registry over the settings' sources.
func (s *Settings) Registry() *Registry {
	if s == nil {
		return New(nil)
	}
	return New(s.LinkedSources)
}

const settingsSchemaURL = "heartcore://settings.schema.json"

const settingsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "linkedSources": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["id", "project"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "project": {
            "type": "object",
            "required": ["projectAlias", "apiKey"],
            "properties": {
              "projectAlias": {"type": "string"},
              "apiKey": {"type": "string"},
              "server": {"type": ["string", "null"]}
            }
          }
        }
      }
    }
  }
}`

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(settingsSchema))
		if err != nil {
			compileErr = fmt.Errorf("failed to parse settings schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(settingsSchemaURL, doc); err != nil {
			compileErr = fmt.Errorf("failed to add settings schema: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(settingsSchemaURL)
	})
	return compiledSchema, compileErr
}

// ParseSettings validates raw against the settings schema and decodes it.
// Empty input decodes to unconfigured settings.
func ParseSettings(raw []byte) (*Settings, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return &Settings{}, nil
	}

	sch, err := schema()
	if err != nil {
		return nil, apperrors.NewError(apperrors.Internal, apperrors.ErrorCodeInternal, "settings schema unavailable", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, apperrors.NewConfigurationError("settings are not valid JSON", err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, apperrors.NewConfigurationError("settings do not match the expected shape", err)
	}

	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, apperrors.NewConfigurationError("failed to decode settings", err)
	}
	return &s, nil
}

// Marshal encodes the settings as stored in the location value.
func (s *Settings) Marshal() ([]byte, error) {
	return json.Marshal(s)
}
