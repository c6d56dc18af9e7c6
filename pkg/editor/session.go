// Package editor ties the picker together for one component parameter: it
// resolves the linked source, runs searches, keeps the selected rows current
// and persists the selection to the location store.
package editor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/wehubfusion/Heartcore/pkg/content"
	"github.com/wehubfusion/Heartcore/pkg/contentclient"
	apperrors "github.com/wehubfusion/Heartcore/pkg/errors"
	"github.com/wehubfusion/Heartcore/pkg/linkedsource"
	"github.com/wehubfusion/Heartcore/pkg/location"
	"github.com/wehubfusion/Heartcore/pkg/metrics"
	"github.com/wehubfusion/Heartcore/pkg/search"
	"github.com/wehubfusion/Heartcore/pkg/selection"
	"go.uber.org/zap"
)

// User-facing messages.
const (
	NotConfiguredMessage = `It appears the Heartcore integration is not configured. Please visit the "Settings > Heartcore" page to provide information for connecting to Heartcore.`
	RequiredMessage      = "Select at least one Heartcore content item"
)

// ClientFactory builds a content client for a project.
type ClientFactory func(creds content.ProjectCredentials) (contentclient.ContentClient, error)

// ValidationResult is reported to the hosting editor instead of an error.
type ValidationResult struct {
	IsValid bool   `json:"isValid"`
	Message string `json:"message,omitempty"`
}

type options struct {
	logger  *zap.Logger
	metrics *metrics.Collectors
	factory ClientFactory
	now     func() time.Time
}

// Option customizes a Session or ConfigEditor.
type Option func(*options)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records search metrics on m.
func WithMetrics(m *metrics.Collectors) Option {
	return func(o *options) { o.metrics = m }
}

// WithClientFactory replaces the Heartcore HTTP client.
func WithClientFactory(f ClientFactory) Option {
	return func(o *options) {
		if f != nil {
			o.factory = f
		}
	}
}

// WithClock overrides the clock used for relative dates.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.factory == nil {
		logger := o.logger
		m := o.metrics
		o.factory = func(creds content.ProjectCredentials) (contentclient.ContentClient, error) {
			client, err := contentclient.NewHeartcoreClient(creds,
				contentclient.WithLogger(logger),
				contentclient.WithMetrics(m))
			if err != nil {
				return nil, err
			}
			return client, nil
		}
	}
	return o
}

// LoadRegistry reads the integration settings from the store. Missing
// settings yield an empty registry.
func LoadRegistry(ctx context.Context, store location.Store) (*linkedsource.Registry, error) {
	settings, err := LoadSettings(ctx, store)
	if err != nil {
		return nil, err
	}
	return settings.Registry(), nil
}

// LoadSettings reads and validates the integration settings.
func LoadSettings(ctx context.Context, store location.Store) (*linkedsource.Settings, error) {
	raw, err := store.Get(ctx, location.SettingsKey)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return &linkedsource.Settings{}, nil
		}
		return nil, err
	}
	return linkedsource.ParseSettings(raw)
}

// Session edits the stored value of one Heartcore parameter.
type Session struct {
	store  location.Store
	key    string
	config content.ParameterConfig
	logger *zap.Logger

	source     linkedsource.LinkedSource
	renderable bool
	search     *search.Controller
	selection  *selection.Resolver

	mu    sync.Mutex
	value *content.ParameterValue
}

// NewSession loads the value stored at key and resolves its linked source.
// When the source is unknown or has no API key the session is not renderable
// and every operation on it is a no-op.
func NewSession(ctx context.Context, store location.Store, key string, config content.ParameterConfig, registry *linkedsource.Registry, opts ...Option) (*Session, error) {
	o := buildOptions(opts)

	value, err := location.LoadValue(ctx, store, key)
	if err != nil {
		return nil, err
	}

	s := &Session{
		store:  store,
		key:    key,
		config: config,
		logger: o.logger.With(zap.String("location", key)),
		value:  value,
	}

	sourceID := linkedsource.SourceFor(value, &config)
	src, ok := registry.Resolve(sourceID)
	if !ok || strings.TrimSpace(src.Project.APIKey) == "" {
		s.logger.Debug("Linked source not usable", zap.String("source", sourceID), zap.Bool("known", ok))
		return s, nil
	}

	client, err := o.factory(src.Project)
	if err != nil {
		return nil, err
	}

	s.source = src
	s.renderable = true
	s.search = search.NewController(client, src.Project, config.AllowedContentTypes,
		search.WithLogger(o.logger),
		search.WithMetrics(o.metrics),
		search.WithClock(o.now))
	s.selection = selection.NewResolver(client, src.Project,
		selection.WithLogger(o.logger),
		selection.WithClock(o.now))
	return s, nil
}

// Renderable reports whether the picker should be shown at all.
func (s *Session) Renderable() bool {
	return s.renderable
}

// Source returns the resolved linked source.
func (s *Session) Source() linkedsource.LinkedSource {
	return s.source
}

// Multiselect reports whether more than one item may be selected.
func (s *Session) Multiselect() bool {
	return s.config.AllowMultiselect
}

// Value returns the current stored value, or nil when nothing was stored yet.
func (s *Session) Value() *content.ParameterValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value == nil {
		return nil
	}
	v := *s.value
	if s.value.IDs != nil {
		v.IDs = make([]string, len(s.value.IDs))
		copy(v.IDs, s.value.IDs)
	}
	return &v
}

// ContentTypeOptions lists the content types a search can be scoped to.
func (s *Session) ContentTypeOptions() []content.ContentTypeDescriptor {
	return s.config.AllowedContentTypes.Active()
}

// Search runs a search scoped to alias. Searches for a content type outside
// the allowed set do nothing.
func (s *Session) Search(ctx context.Context, text, alias string) search.Snapshot {
	if !s.renderable {
		return search.Snapshot{State: search.StateIdle}
	}
	return s.search.Search(ctx, text, alias)
}

// SearchState returns the latest search snapshot.
func (s *Session) SearchState() search.Snapshot {
	if !s.renderable {
		return search.Snapshot{State: search.StateIdle}
	}
	return s.search.Snapshot()
}

// SelectedRows returns the rows for the stored ids, in stored order.
func (s *Session) SelectedRows() []content.DisplayRow {
	if !s.renderable {
		return nil
	}
	s.mu.Lock()
	var ids []string
	if s.value != nil {
		ids = s.value.IDs
	}
	s.mu.Unlock()
	return s.selection.Recompute(ids, s.config.AllowedContentTypes)
}

// WaitSelection blocks until the rows returned by SelectedRows have settled.
func (s *Session) WaitSelection(ctx context.Context) error {
	if !s.renderable {
		return nil
	}
	return s.selection.Wait(ctx)
}

// Select stores ids as the new selection. It also serves re-sorting, since
// the stored order is the display order. Without multiselect only the last
// id is kept.
func (s *Session) Select(ctx context.Context, ids []string) error {
	if !s.renderable {
		return apperrors.NewConfigurationError(NotConfiguredMessage, apperrors.ErrUnknownSource)
	}

	ids = content.DedupeIDs(ids)
	if ids == nil {
		ids = []string{}
	}
	if !s.config.AllowMultiselect && len(ids) > 1 {
		ids = ids[len(ids)-1:]
	}

	s.mu.Lock()
	required := s.value != nil && s.value.Required
	s.mu.Unlock()

	next := content.ParameterValue{Source: s.source.ID, IDs: ids, Required: required}
	if err := location.SaveValue(ctx, s.store, s.key, next); err != nil {
		s.logger.Error("Failed to save selection", zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.value = &next
	s.mu.Unlock()

	s.logger.Debug("Selection saved",
		zap.String("source", next.Source),
		zap.Int("count", len(ids)))
	return nil
}

// Add appends id to the selection, or replaces it without multiselect.
func (s *Session) Add(ctx context.Context, id string) error {
	return s.Select(ctx, append(s.currentIDs(), id))
}

// Remove drops id from the selection.
func (s *Session) Remove(ctx context.Context, id string) error {
	current := s.currentIDs()
	ids := make([]string, 0, len(current))
	for _, existing := range current {
		if existing != id {
			ids = append(ids, existing)
		}
	}
	return s.Select(ctx, ids)
}

func (s *Session) currentIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value == nil {
		return nil
	}
	return append([]string(nil), s.value.IDs...)
}

// Validate reports an empty selection for a required parameter.
func (s *Session) Validate() ValidationResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	required := s.config.Required || (s.value != nil && s.value.Required)
	if required && !s.value.HasIDs() {
		return ValidationResult{IsValid: false, Message: RequiredMessage}
	}
	return ValidationResult{IsValid: true}
}

// Callout returns the error text to show above the picker, or "".
// Search failures take precedence over selection failures.
func (s *Session) Callout() string {
	if !s.renderable {
		return ""
	}
	if err := s.search.Snapshot().Err; err != nil {
		return Message(err)
	}
	if err := s.selection.Err(); err != nil {
		return Message(err)
	}
	return ""
}

// Close detaches the session; in-flight searches and fetches are discarded.
func (s *Session) Close() {
	if !s.renderable {
		return
	}
	s.search.Close()
	s.selection.Close()
}

// Message returns the human-readable part of err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}
