package content

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// LoadingTitle is shown while a selected id is being resolved.
	LoadingTitle = "Loading..."

	// UnknownType is shown when a record's content type is not in the allowed set.
	UnknownType = "Unknown"

	// EditHost is the Heartcore backoffice domain used for edit links.
	EditHost = "umbraco.io"
)

// Metadata keys, in display order.
const (
	MetaType    = "Type"
	MetaCreated = "Created"
	MetaUpdated = "Updated"
	MetaState   = "State"
)

// MetadataField is one labelled value on a DisplayRow.
type MetadataField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// DisplayRow is what the picker renders for one content id.
type DisplayRow struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Metadata []MetadataField `json:"metadata,omitempty"`
	EditLink string          `json:"editLink,omitempty"`
}

// Meta returns the value of the metadata field named key.
func (r DisplayRow) Meta(key string) (string, bool) {
	for _, f := range r.Metadata {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// UnresolvableTitle is the title of a row whose id could not be resolved.
func UnresolvableTitle(id string) string {
	quoted, _ := json.Marshal(id)
	return fmt.Sprintf("Unresolvable (%s)", quoted)
}

// LoadingRows returns one loading placeholder per id.
func LoadingRows(ids []string) []DisplayRow {
	rows := make([]DisplayRow, len(ids))
	for i, id := range ids {
		rows[i] = DisplayRow{ID: id, Title: LoadingTitle}
	}
	return rows
}

// UnresolvableRows returns one unresolvable placeholder per id.
func UnresolvableRows(ids []string) []DisplayRow {
	rows := make([]DisplayRow, len(ids))
	for i, id := range ids {
		rows[i] = DisplayRow{ID: id, Title: UnresolvableTitle(id)}
	}
	return rows
}

// EditLink builds the backoffice link for itemID. It is empty exactly when
// creds.Server is empty.
func EditLink(creds ProjectCredentials, itemID string) string {
	if creds.Server == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.%s.%s/edit/%s", creds.ProjectAlias, creds.Server, EditHost, itemID)
}

// Projector turns content records into display rows.
type Projector struct {
	Credentials ProjectCredentials
	Allowed     AllowedContentTypes
	// Now anchors the relative Created/Updated times; defaults to time.Now.
	Now func() time.Time
}

// Project converts rec into a DisplayRow.
func (p Projector) Project(rec ContentRecord) DisplayRow {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	ref := now()

	typeLabel := UnknownType
	if d := p.Allowed.Lookup(rec.ContentTypeAlias); d != nil {
		typeLabel = d.Alias
	}

	return DisplayRow{
		ID:    rec.ID,
		Title: rec.Name,
		Metadata: []MetadataField{
			{Key: MetaType, Value: typeLabel},
			{Key: MetaCreated, Value: relative(rec.CreatedAt, ref)},
			{Key: MetaUpdated, Value: relative(rec.UpdatedAt, ref)},
			{Key: MetaState, Value: cases.Title(language.English).String(rec.VersionState)},
		},
		EditLink: EditLink(p.Credentials, rec.ID),
	}
}

// ProjectAll converts records in order.
func (p Projector) ProjectAll(records []ContentRecord) []DisplayRow {
	rows := make([]DisplayRow, len(records))
	for i, rec := range records {
		rows[i] = p.Project(rec)
	}
	return rows
}

func relative(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
