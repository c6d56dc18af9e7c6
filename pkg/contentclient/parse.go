package contentclient

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/wehubfusion/Heartcore/pkg/content"
	apperrors "github.com/wehubfusion/Heartcore/pkg/errors"
)

// Management payloads keep culture-variant values under "$invariant"; delivery
// and GraphQL payloads use plain fields. Each entry lists the paths tried in order.
var (
	idPaths      = []string{"_id", "id"}
	namePaths    = []string{"name.$invariant", "name"}
	createdPaths = []string{"_createDate.$invariant", "_createDate", "createDate"}
	updatedPaths = []string{"_updateDate.$invariant", "_updateDate", "updateDate"}
	aliasPaths   = []string{"contentTypeAlias"}
	statePaths   = []string{"_currentVersionState.$invariant", "_currentVersionState", "currentVersionState"}
	urlPaths     = []string{"_url", "url"}
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseRecord validates a raw content payload and converts it to a ContentRecord.
// Payloads without an id or content type alias are rejected with ErrMalformedPayload.
func ParseRecord(raw []byte) (content.ContentRecord, error) {
	if !gjson.ValidBytes(raw) {
		return content.ContentRecord{}, fmt.Errorf("%w: invalid JSON", apperrors.ErrMalformedPayload)
	}
	return parseRecordResult(gjson.ParseBytes(raw))
}

func parseRecordResult(doc gjson.Result) (content.ContentRecord, error) {
	if !doc.IsObject() {
		return content.ContentRecord{}, fmt.Errorf("%w: expected an object", apperrors.ErrMalformedPayload)
	}

	rec := content.ContentRecord{
		ID:               firstString(doc, idPaths),
		Name:             firstString(doc, namePaths),
		ContentTypeAlias: firstString(doc, aliasPaths),
		VersionState:     firstString(doc, statePaths),
		URL:              firstString(doc, urlPaths),
		CreatedAt:        parseTime(firstString(doc, createdPaths)),
		UpdatedAt:        parseTime(firstString(doc, updatedPaths)),
	}

	if rec.ID == "" {
		return content.ContentRecord{}, fmt.Errorf("%w: missing id", apperrors.ErrMalformedPayload)
	}
	if rec.ContentTypeAlias == "" {
		return content.ContentRecord{}, fmt.Errorf("%w: missing contentTypeAlias for %s", apperrors.ErrMalformedPayload, rec.ID)
	}
	return rec, nil
}

// ParseContentTypes reads a content type listing. Projects without content types
// answer with an object instead of an empty list, so anything that is not a JSON
// array yields an empty slice.
func ParseContentTypes(raw []byte) []content.ContentTypeDescriptor {
	list := gjson.ParseBytes(raw)
	if !list.IsArray() {
		return []content.ContentTypeDescriptor{}
	}

	out := make([]content.ContentTypeDescriptor, 0, len(list.Array()))
	for _, item := range list.Array() {
		alias := item.Get("alias").String()
		if alias == "" {
			continue
		}
		name := item.Get("name").String()
		if name == "" {
			name = alias
		}
		out = append(out, content.ContentTypeDescriptor{Alias: alias, Name: name})
	}
	return out
}

func firstString(doc gjson.Result, paths []string) string {
	for _, p := range paths {
		if v := doc.Get(p); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
