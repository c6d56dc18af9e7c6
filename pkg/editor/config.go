package editor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/wehubfusion/Heartcore/pkg/content"
	"github.com/wehubfusion/Heartcore/pkg/contentclient"
	apperrors "github.com/wehubfusion/Heartcore/pkg/errors"
	"github.com/wehubfusion/Heartcore/pkg/linkedsource"
	"github.com/wehubfusion/Heartcore/pkg/location"
	"go.uber.org/zap"
)

// ToggleContentType flips d between allowed and deselected in config and
// returns the updated configuration. config is not modified.
func ToggleContentType(config content.ParameterConfig, d content.ContentTypeDescriptor) content.ParameterConfig {
	config.AllowedContentTypes = config.AllowedContentTypes.Toggle(d)
	return config
}

// Catalog is the list of content types a project defines.
type Catalog struct {
	ProjectAlias string
	Types        []content.ContentTypeDescriptor
}

// Empty reports a project without content types.
func (c Catalog) Empty() bool {
	return len(c.Types) == 0
}

// Callout returns the caution text for an empty catalog, or "".
func (c Catalog) Callout() string {
	if !c.Empty() {
		return ""
	}
	return fmt.Sprintf("No content types were found for project %s", c.ProjectAlias)
}

// ContentTypeCatalog loads the content types of the project behind lister.
func ContentTypeCatalog(ctx context.Context, lister contentclient.ContentTypeLister, projectAlias string) (Catalog, error) {
	if lister == nil {
		return Catalog{}, apperrors.NewConfigurationError("no content client", apperrors.ErrMissingCredentials)
	}
	types, err := lister.ListContentTypes(ctx)
	if err != nil {
		return Catalog{}, err
	}
	if types == nil {
		types = []content.ContentTypeDescriptor{}
	}
	return Catalog{ProjectAlias: projectAlias, Types: types}, nil
}

// ConfigEditor edits the configuration of one Heartcore parameter
// definition: its linked source, allowed content types and multiselect flag.
type ConfigEditor struct {
	store    location.Store
	key      string
	registry *linkedsource.Registry
	factory  ClientFactory
	logger   *zap.Logger

	mu     sync.Mutex
	config content.ParameterConfig
}

// NewConfigEditor loads the configuration stored at key.
func NewConfigEditor(ctx context.Context, store location.Store, key string, registry *linkedsource.Registry, opts ...Option) (*ConfigEditor, error) {
	o := buildOptions(opts)

	config, err := location.LoadConfig(ctx, store, key)
	if err != nil {
		return nil, err
	}
	return &ConfigEditor{
		store:    store,
		key:      key,
		registry: registry,
		factory:  o.factory,
		logger:   o.logger.With(zap.String("location", key)),
		config:   config,
	}, nil
}

// Config returns a copy of the current configuration.
func (e *ConfigEditor) Config() content.ParameterConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.config
	c.AllowedContentTypes = e.config.AllowedContentTypes.Clone()
	return c
}

// Sources lists the linked sources that can be picked.
func (e *ConfigEditor) Sources() []linkedsource.LinkedSource {
	return e.registry.Sources()
}

// Project returns the credentials of the selected source when it is usable.
func (e *ConfigEditor) Project() (content.ProjectCredentials, bool) {
	e.mu.Lock()
	source := e.config.Source
	e.mu.Unlock()

	if source == "" {
		return content.ProjectCredentials{}, false
	}
	src, ok := e.registry.Resolve(source)
	if !ok || strings.TrimSpace(src.Project.APIKey) == "" {
		return content.ProjectCredentials{}, false
	}
	return src.Project, true
}

// Callout returns the not-configured message when no usable source is
// selected, or "".
func (e *ConfigEditor) Callout() string {
	if e.registry.Len() == 0 {
		return NotConfiguredMessage
	}
	if _, ok := e.Project(); !ok {
		return NotConfiguredMessage
	}
	return ""
}

// SelectSource points the parameter at the linked source id.
func (e *ConfigEditor) SelectSource(ctx context.Context, id string) error {
	if _, ok := e.registry.Resolve(id); !ok {
		return apperrors.NewValidationError(fmt.Sprintf("linked source %q does not exist", id), apperrors.ErrUnknownSource)
	}
	return e.update(ctx, func(c *content.ParameterConfig) { c.Source = id })
}

// ToggleContentType flips d in the allowed set and saves.
func (e *ConfigEditor) ToggleContentType(ctx context.Context, d content.ContentTypeDescriptor) error {
	if d.Alias == "" {
		return apperrors.NewValidationError("content type alias is empty", nil)
	}
	return e.update(ctx, func(c *content.ParameterConfig) { *c = ToggleContentType(*c, d) })
}

// SetAllowMultiselect sets the multiselect flag and saves.
func (e *ConfigEditor) SetAllowMultiselect(ctx context.Context, allow bool) error {
	return e.update(ctx, func(c *content.ParameterConfig) { c.AllowMultiselect = allow })
}

// SetRequired sets the required flag and saves.
func (e *ConfigEditor) SetRequired(ctx context.Context, required bool) error {
	return e.update(ctx, func(c *content.ParameterConfig) { c.Required = required })
}

// Catalog loads the content types of the selected source's project.
func (e *ConfigEditor) Catalog(ctx context.Context) (Catalog, error) {
	creds, ok := e.Project()
	if !ok {
		return Catalog{}, apperrors.NewConfigurationError(NotConfiguredMessage, apperrors.ErrUnknownSource)
	}
	client, err := e.factory(creds)
	if err != nil {
		return Catalog{}, err
	}
	return ContentTypeCatalog(ctx, client, creds.ProjectAlias)
}

func (e *ConfigEditor) update(ctx context.Context, mutate func(*content.ParameterConfig)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.config
	next.AllowedContentTypes = e.config.AllowedContentTypes.Clone()
	mutate(&next)

	if err := location.SetJSON(ctx, e.store, e.key, next); err != nil {
		e.logger.Error("Failed to save parameter configuration", zap.Error(err))
		return err
	}
	e.config = next
	return nil
}
