package content

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupeIDsKeepsFirstOccurrence(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, DedupeIDs([]string{"b", "a", "", "b", "c", "a"}))
	assert.Nil(t, DedupeIDs(nil))

	v := &ParameterValue{IDs: []string{"x", "x"}}
	v.Normalize()
	assert.Equal(t, []string{"x"}, v.IDs)

	var empty *ParameterValue
	assert.False(t, empty.HasIDs())
	assert.False(t, (&ParameterValue{IDs: []string{}}).HasIDs())
}

func TestParameterValueJSON(t *testing.T) {
	var v ParameterValue
	require.NoError(t, json.Unmarshal([]byte(`{"source":"default","ids":["b","a"],"required":true}`), &v))
	assert.Equal(t, "default", v.Source)
	assert.Equal(t, []string{"b", "a"}, v.IDs)
	assert.True(t, v.Required)
}

func TestAllowedContentTypesToggle(t *testing.T) {
	article := ContentTypeDescriptor{Alias: "article", Name: "Article"}

	set := AllowedContentTypes(nil).Toggle(article)
	require.NotNil(t, set.Lookup("article"))

	off := set.Toggle(article)
	_, present := off["article"]
	assert.True(t, present, "deselected alias keeps its key")
	assert.Nil(t, off.Lookup("article"))
	assert.NotNil(t, set.Lookup("article"), "toggle must not mutate the receiver")

	on := off.Toggle(article)
	assert.Equal(t, "Article", on.Lookup("article").Name)
}

func TestAllowedContentTypesActiveSkipsAbsentMarkers(t *testing.T) {
	set := AllowedContentTypes{
		"news":    {Alias: "news", Name: "News"},
		"article": {Alias: "article", Name: "Article"},
		"old":     nil,
	}
	assert.Equal(t, []ContentTypeDescriptor{
		{Alias: "article", Name: "Article"},
		{Alias: "news", Name: "News"},
	}, set.Active())
}

func TestEditLinkPresenceRule(t *testing.T) {
	assert.Equal(t, "", EditLink(ProjectCredentials{ProjectAlias: "demo", APIKey: "k"}, "42"))
	// only an empty server suppresses the link
	assert.NotEmpty(t, EditLink(ProjectCredentials{APIKey: "k", Server: "euwest01"}, "42"))
	assert.Equal(t, "https://demo.euwest01.umbraco.io/edit/42",
		EditLink(ProjectCredentials{ProjectAlias: "demo", APIKey: "k", Server: "euwest01"}, "42"))
}

func TestProjectorProject(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	p := Projector{
		Credentials: ProjectCredentials{ProjectAlias: "demo", APIKey: "k"},
		Allowed:     AllowedContentTypes{"article": {Alias: "article", Name: "Article"}},
		Now:         func() time.Time { return now },
	}

	row := p.Project(ContentRecord{
		ID:               "1",
		Name:             "Dogs",
		ContentTypeAlias: "article",
		CreatedAt:        now.Add(-48 * time.Hour),
		UpdatedAt:        now.Add(-2 * time.Hour),
		VersionState:     "PUBLISHED",
	})

	assert.Equal(t, "Dogs", row.Title)
	typ, _ := row.Meta(MetaType)
	assert.Equal(t, "article", typ)
	created, _ := row.Meta(MetaCreated)
	assert.Equal(t, "2 days ago", created)
	state, _ := row.Meta(MetaState)
	assert.Equal(t, "Published", state)
	assert.Empty(t, row.EditLink)

	raw, err := json.Marshal(row)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "editLink")

	unknown := p.Project(ContentRecord{ID: "2", ContentTypeAlias: "page"})
	typ, _ = unknown.Meta(MetaType)
	assert.Equal(t, UnknownType, typ)

	p.Credentials.Server = "euwest01"
	withLink := p.Project(ContentRecord{ID: "3"})
	assert.Equal(t, "https://demo.euwest01.umbraco.io/edit/3", withLink.EditLink)
}

func TestPlaceholderRows(t *testing.T) {
	assert.Equal(t, []DisplayRow{{ID: "a", Title: "Loading..."}, {ID: "b", Title: "Loading..."}},
		LoadingRows([]string{"a", "b"}))
	assert.Equal(t, `Unresolvable ("a")`, UnresolvableRows([]string{"a"})[0].Title)
}
