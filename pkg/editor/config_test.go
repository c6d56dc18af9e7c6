package editor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wehubfusion/Heartcore/pkg/content"
	apperrors "github.com/wehubfusion/Heartcore/pkg/errors"
	"github.com/wehubfusion/Heartcore/pkg/linkedsource"
	"github.com/wehubfusion/Heartcore/pkg/location"
)

const configKey = "config/hero/article"

func TestToggleContentType(t *testing.T) {
	cfg := content.ParameterConfig{}

	on := ToggleContentType(cfg, blogPost)
	assert.Nil(t, cfg.AllowedContentTypes)
	assert.Equal(t, &blogPost, on.AllowedContentTypes["blogPost"])

	off := ToggleContentType(on, blogPost)
	v, present := off.AllowedContentTypes["blogPost"]
	assert.True(t, present)
	assert.Nil(t, v)
	assert.NotNil(t, on.AllowedContentTypes["blogPost"])
}

func TestContentTypeCatalog(t *testing.T) {
	h := newHarness()
	h.client.SetTypes(blogPost, page)

	cat, err := ContentTypeCatalog(context.Background(), h.client, "demo")
	require.NoError(t, err)
	assert.False(t, cat.Empty())
	assert.Equal(t, "", cat.Callout())

	empty, err := ContentTypeCatalog(context.Background(), newHarness().client, "demo")
	require.NoError(t, err)
	assert.True(t, empty.Empty())
	assert.Equal(t, "No content types were found for project demo", empty.Callout())

	h.client.TypesErr = apperrors.NewUnauthorizedError("rejected", nil)
	_, err = ContentTypeCatalog(context.Background(), h.client, "demo")
	assert.True(t, apperrors.IsFatal(err))

	_, err = ContentTypeCatalog(context.Background(), nil, "demo")
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestConfigEditorPersistsChanges(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	e, err := NewConfigEditor(ctx, h.store, configKey, registry, h.factory())
	require.NoError(t, err)

	assert.Equal(t, NotConfiguredMessage, e.Callout())

	require.NoError(t, e.SelectSource(ctx, "staging"))
	require.NoError(t, e.ToggleContentType(ctx, blogPost))
	require.NoError(t, e.ToggleContentType(ctx, page))
	require.NoError(t, e.ToggleContentType(ctx, page))
	require.NoError(t, e.SetAllowMultiselect(ctx, true))
	require.NoError(t, e.SetRequired(ctx, true))
	assert.Equal(t, "", e.Callout())

	stored, err := location.LoadConfig(ctx, h.store, configKey)
	require.NoError(t, err)
	assert.Equal(t, "staging", stored.Source)
	assert.True(t, stored.AllowMultiselect)
	assert.True(t, stored.Required)
	assert.Equal(t, []content.ContentTypeDescriptor{blogPost}, stored.AllowedContentTypes.Active())
	assert.Equal(t, stored, e.Config())

	reopened, err := NewConfigEditor(ctx, h.store, configKey, registry, h.factory())
	require.NoError(t, err)
	assert.Equal(t, stored, reopened.Config())
}

func TestConfigEditorRejectsUnknownSource(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	e, err := NewConfigEditor(ctx, h.store, configKey, registry, h.factory())
	require.NoError(t, err)

	err = e.SelectSource(ctx, "nope")
	assert.ErrorIs(t, err, apperrors.ErrUnknownSource)
	assert.Equal(t, 0, h.store.Keys())

	assert.Error(t, e.ToggleContentType(ctx, content.ContentTypeDescriptor{}))
}

func TestConfigEditorCatalog(t *testing.T) {
	h := newHarness()
	h.client.SetTypes(page)
	ctx := context.Background()
	e, err := NewConfigEditor(ctx, h.store, configKey, registry, h.factory())
	require.NoError(t, err)

	_, err = e.Catalog(ctx)
	assert.True(t, apperrors.IsConfiguration(err))

	require.NoError(t, e.SelectSource(ctx, "keyless"))
	_, err = e.Catalog(ctx)
	assert.True(t, apperrors.IsConfiguration(err))
	assert.Equal(t, NotConfiguredMessage, e.Callout())

	require.NoError(t, e.SelectSource(ctx, "default"))
	cat, err := e.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, "demo", cat.ProjectAlias)
	assert.Equal(t, []content.ContentTypeDescriptor{page}, cat.Types)
}

func TestConfigEditorWithoutSources(t *testing.T) {
	e, err := NewConfigEditor(context.Background(), location.NewMemoryStore(), configKey, linkedsource.New(nil))
	require.NoError(t, err)
	assert.Equal(t, NotConfiguredMessage, e.Callout())
	assert.Empty(t, e.Sources())
}
