// Package content holds the data model shared by the enhancer, the search
// controller and the selection resolver: credentials, stored parameter values,
// content records fetched from Heartcore and the rows shown in the picker.
package content

import (
	"sort"
	"strings"
	"time"
)

// ParameterType is the composition parameter type handled by this module.
const ParameterType = "heartcore"

// ProjectCredentials identify one Heartcore project.
type ProjectCredentials struct {
	ProjectAlias string `json:"projectAlias"`
	APIKey       string `json:"apiKey"`
	// Server is optional and only used to build edit links, e.g. "euwest01".
	Server string `json:"server,omitempty"`
}

// Complete reports whether both the alias and the API key are set.
func (c ProjectCredentials) Complete() bool {
	return strings.TrimSpace(c.ProjectAlias) != "" && strings.TrimSpace(c.APIKey) != ""
}

// ContentTypeDescriptor describes a Heartcore content type.
type ContentTypeDescriptor struct {
	Alias string `json:"alias"`
	Name  string `json:"name"`
}

// AllowedContentTypes maps a content type alias to its descriptor. A present key
// with a nil descriptor marks a type that was explicitly deselected.
type AllowedContentTypes map[string]*ContentTypeDescriptor

// Lookup returns the descriptor for alias, or nil when the alias is unknown or deselected.
func (a AllowedContentTypes) Lookup(alias string) *ContentTypeDescriptor {
	if a == nil || alias == "" {
		return nil
	}
	return a[alias]
}

// Active returns the selected descriptors sorted by name, then alias.
func (a AllowedContentTypes) Active() []ContentTypeDescriptor {
	out := make([]ContentTypeDescriptor, 0, len(a))
	for _, d := range a {
		if d != nil {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Alias < out[j].Alias
	})
	return out
}

// Clone returns a shallow copy that can be mutated independently.
func (a AllowedContentTypes) Clone() AllowedContentTypes {
	if a == nil {
		return nil
	}
	out := make(AllowedContentTypes, len(a))
	for k, v := range a {
		if v != nil {
			d := *v
			out[k] = &d
			continue
		}
		out[k] = nil
	}
	return out
}

// Toggle flips alias between selected and the deselected marker and returns the new set.
// The receiver is not modified.
func (a AllowedContentTypes) Toggle(d ContentTypeDescriptor) AllowedContentTypes {
	out := a.Clone()
	if out == nil {
		out = AllowedContentTypes{}
	}
	if out[d.Alias] != nil {
		out[d.Alias] = nil
		return out
	}
	out[d.Alias] = &ContentTypeDescriptor{Alias: d.Alias, Name: d.Name}
	return out
}

// ParameterValue is the value the editor stores for a Heartcore parameter.
type ParameterValue struct {
	Source   string   `json:"source,omitempty"`
	IDs      []string `json:"ids"`
	Required bool     `json:"required,omitempty"`
}

// HasIDs reports whether v references at least one content id.
func (v *ParameterValue) HasIDs() bool {
	return v != nil && len(v.IDs) > 0
}

// Normalize drops empty and duplicate ids, keeping the first occurrence of each.
func (v *ParameterValue) Normalize() {
	if v == nil || v.IDs == nil {
		return
	}
	v.IDs = DedupeIDs(v.IDs)
}

// DedupeIDs returns ids without blanks or duplicates, preserving order.
func DedupeIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ContentRecord is a content item fetched from Heartcore.
type ContentRecord struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	ContentTypeAlias string    `json:"contentTypeAlias"`
	VersionState     string    `json:"versionState,omitempty"`
	URL              string    `json:"url,omitempty"`
}

// ParameterConfig is the per-parameter configuration set by whoever defines
// the component: which linked source to use and which content types may be picked.
type ParameterConfig struct {
	AllowedContentTypes AllowedContentTypes `json:"allowedContentTypes,omitempty"`
	Source              string              `json:"source,omitempty"`
	AllowMultiselect    bool                `json:"allowMultiselect,omitempty"`
	Required            bool                `json:"required,omitempty"`
}
