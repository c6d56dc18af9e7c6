package linkedsource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wehubfusion/Heartcore/pkg/content"
	"github.com/wehubfusion/Heartcore/pkg/contentclient"
	apperrors "github.com/wehubfusion/Heartcore/pkg/errors"
)

func TestRegistryResolve(t *testing.T) {
	reg := New([]LinkedSource{
		{ID: "default", Project: content.ProjectCredentials{ProjectAlias: "a", APIKey: "k"}},
		{ID: "other", Project: content.ProjectCredentials{ProjectAlias: "b", APIKey: "k"}},
		{ID: "default", Project: content.ProjectCredentials{ProjectAlias: "dup", APIKey: "k"}},
	})

	s, ok := reg.Resolve("other")
	require.True(t, ok)
	assert.Equal(t, "b", s.Project.ProjectAlias)

	s, ok = reg.Resolve("default")
	require.True(t, ok)
	assert.Equal(t, "a", s.Project.ProjectAlias, "first source with an id wins")
	assert.Equal(t, 2, reg.Len())

	_, ok = reg.Resolve("missing")
	assert.False(t, ok)

	s, ok = reg.ResolveOrDefault("missing")
	require.True(t, ok)
	assert.Equal(t, DefaultSourceID, s.ID)

	var nilReg *Registry
	_, ok = nilReg.Resolve("default")
	assert.False(t, ok)
}

func TestSourceFor(t *testing.T) {
	assert.Equal(t, "v", SourceFor(&content.ParameterValue{Source: "v"}, &content.ParameterConfig{Source: "c"}))
	assert.Equal(t, "c", SourceFor(&content.ParameterValue{}, &content.ParameterConfig{Source: "c"}))
	assert.Equal(t, DefaultSourceID, SourceFor(nil, nil))
	assert.Equal(t, DefaultSourceID, SourceFor(&content.ParameterValue{}, &content.ParameterConfig{}))
}

func TestParseSettings(t *testing.T) {
	s, err := ParseSettings([]byte(`{"linkedSources":[{"id":"default","project":{"projectAlias":"demo","apiKey":"k","server":"euwest01"}}]}`))
	require.NoError(t, err)
	require.True(t, s.Configured())

	src, ok := s.Registry().Resolve("default")
	require.True(t, ok)
	assert.Equal(t, "euwest01", src.Project.Server)

	s, err = ParseSettings(nil)
	require.NoError(t, err)
	assert.False(t, s.Configured())

	s, err = ParseSettings([]byte(`{"linkedSources":null}`))
	require.NoError(t, err)
	assert.False(t, s.Configured())
}

func TestParseSettingsRejectsBadShapes(t *testing.T) {
	bad := []string{
		`not json`,
		`{"linkedSources":"nope"}`,
		`{"linkedSources":[{"project":{"projectAlias":"a","apiKey":"k"}}]}`,
		`{"linkedSources":[{"id":"default","project":{"apiKey":"k"}}]}`,
	}
	for _, raw := range bad {
		_, err := ParseSettings([]byte(raw))
		require.Error(t, err, raw)
		assert.True(t, apperrors.IsConfiguration(err), raw)
	}
}

type stubProber struct {
	res contentclient.ProbeResult
	err error
}

func (s stubProber) Probe(context.Context) (contentclient.ProbeResult, error) {
	return s.res, s.err
}

func validatorReturning(res contentclient.ProbeResult, err error) *Validator {
	return NewValidator(func(content.ProjectCredentials) (Prober, error) {
		return stubProber{res: res, err: err}, nil
	}, nil)
}

func TestValidateAndLink(t *testing.T) {
	creds := content.ProjectCredentials{ProjectAlias: " demo ", APIKey: "k"}

	t.Run("success links default source", func(t *testing.T) {
		v := validatorReturning(contentclient.ProbeResult{ManagementValid: true, SearchValid: true}, nil)
		s, err := v.ValidateAndLink(context.Background(), creds)
		require.NoError(t, err)
		require.Len(t, s.LinkedSources, 1)
		assert.Equal(t, DefaultSourceID, s.LinkedSources[0].ID)
		assert.Equal(t, "demo", s.LinkedSources[0].Project.ProjectAlias)
	})

	t.Run("management rejected", func(t *testing.T) {
		v := validatorReturning(contentclient.ProbeResult{SearchValid: true}, nil)
		_, err := v.ValidateAndLink(context.Background(), creds)
		var appErr *apperrors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, MsgManagementInvalid, appErr.Message)
	})

	t.Run("graphql rejected", func(t *testing.T) {
		v := validatorReturning(contentclient.ProbeResult{ManagementValid: true}, nil)
		_, err := v.ValidateAndLink(context.Background(), creds)
		var appErr *apperrors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, MsgSearchInvalid, appErr.Message)
	})

	t.Run("missing credentials never probe", func(t *testing.T) {
		called := false
		v := NewValidator(func(content.ProjectCredentials) (Prober, error) {
			called = true
			return stubProber{}, nil
		}, nil)
		_, err := v.ValidateAndLink(context.Background(), content.ProjectCredentials{ProjectAlias: "demo"})
		assert.True(t, apperrors.IsConfiguration(err))
		assert.False(t, called)
	})
}
