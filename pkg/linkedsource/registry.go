// Package linkedsource resolves which Heartcore project a parameter reads from.
//
// Settings hold a list of linked sources, each pairing an id with project
// credentials. Parameter values and parameter configurations refer to a source
// by id; when neither names one, the "default" source is used.
package linkedsource

import (
	"github.com/wehubfusion/Heartcore/pkg/content"
)

// DefaultSourceID is the id of the source created from the settings page.
const DefaultSourceID = "default"

// LinkedSource pairs an id with the project it points at.
type LinkedSource struct {
	ID      string                     `json:"id"`
	Project content.ProjectCredentials `json:"project"`
}

// Registry looks up linked sources by id. It is immutable after New.
type Registry struct {
	sources []LinkedSource
	byID    map[string]int
}

// New builds a registry. When ids repeat, the first source wins.
func New(sources []LinkedSource) *Registry {
	r := &Registry{
		sources: make([]LinkedSource, 0, len(sources)),
		byID:    make(map[string]int, len(sources)),
	}
	for _, s := range sources {
		if _, dup := r.byID[s.ID]; dup {
			continue
		}
		r.byID[s.ID] = len(r.sources)
		r.sources = append(r.sources, s)
	}
	return r
}

// Resolve returns the source whose id equals id.
func (r *Registry) Resolve(id string) (LinkedSource, bool) {
	if r == nil {
		return LinkedSource{}, false
	}
	i, ok := r.byID[id]
	if !ok {
		return LinkedSource{}, false
	}
	return r.sources[i], true
}

// ResolveOrDefault resolves id, then falls back to the default source.
func (r *Registry) ResolveOrDefault(id string) (LinkedSource, bool) {
	if s, ok := r.Resolve(id); ok {
		return s, true
	}
	return r.Resolve(DefaultSourceID)
}

// Sources returns a copy of the registered sources in their original order.
func (r *Registry) Sources() []LinkedSource {
	if r == nil {
		return nil
	}
	out := make([]LinkedSource, len(r.sources))
	copy(out, r.sources)
	return out
}

// Len returns the number of sources.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.sources)
}

// SourceFor picks the source id for a stored value: the value's own source,
// then the parameter configuration's, then DefaultSourceID.
func SourceFor(value *content.ParameterValue, config *content.ParameterConfig) string {
	if value != nil && value.Source != "" {
		return value.Source
	}
	if config != nil && config.Source != "" {
		return config.Source
	}
	return DefaultSourceID
}
