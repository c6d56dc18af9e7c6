// Package location stores the values the editor writes: parameter values,
// parameter configurations and integration settings. A value is an opaque
// JSON document addressed by a key; the backends differ only in where the
// bytes live.
package location

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wehubfusion/Heartcore/pkg/content"
	apperrors "github.com/wehubfusion/Heartcore/pkg/errors"
)

// Store reads and writes location values.
type Store interface {
	// Get returns the value at key, or an error wrapping errors.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Well-known key prefixes.
const (
	SettingsKey     = "settings"
	parameterPrefix = "parameter"
	configPrefix    = "config"
)

// ParameterKey addresses the stored value of one component parameter.
func ParameterKey(composition, component, parameter string) string {
	return strings.Join([]string{parameterPrefix, composition, component, parameter}, "/")
}

// ConfigKey addresses the configuration of one parameter definition.
func ConfigKey(component, parameter string) string {
	return strings.Join([]string{configPrefix, component, parameter}, "/")
}

func notFound(key string) error {
	return fmt.Errorf("location %q: %w", key, apperrors.ErrNotFound)
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return apperrors.NewValidationError("location key is empty", nil)
	}
	return nil
}

// GetJSON decodes the value at key into v.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("location %q holds malformed JSON", key), err)
	}
	return nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode location %q: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// LoadValue reads a parameter value. A missing key yields nil without error.
func LoadValue(ctx context.Context, s Store, key string) (*content.ParameterValue, error) {
	var v content.ParameterValue
	if err := GetJSON(ctx, s, key, &v); err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

// SaveValue normalizes and writes a parameter value.
func SaveValue(ctx context.Context, s Store, key string, v content.ParameterValue) error {
	v.Normalize()
	if v.IDs == nil {
		v.IDs = []string{}
	}
	return SetJSON(ctx, s, key, v)
}

// LoadConfig reads a parameter configuration. A missing key yields an empty one.
func LoadConfig(ctx context.Context, s Store, key string) (content.ParameterConfig, error) {
	var cfg content.ParameterConfig
	if err := GetJSON(ctx, s, key, &cfg); err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return content.ParameterConfig{}, err
	}
	return cfg, nil
}
