package linkedsource

import (
	"context"
	"strings"

	"github.com/wehubfusion/Heartcore/pkg/content"
	"github.com/wehubfusion/Heartcore/pkg/contentclient"
	apperrors "github.com/wehubfusion/Heartcore/pkg/errors"
	"go.uber.org/zap"
)

// Messages shown when the connectivity probe rejects the settings.
const (
	MsgMissingCredentials = "Be sure to provide a Project Alias and API Key"
	MsgManagementInvalid  = "It appears that the provided settings are not able to access the Umbraco Heartcore Content Management API. Please check the settings and try again."
	MsgSearchInvalid      = "It appears that the provided settings are not able to access the Umbraco Heartcore GraphQL API. Please ensure that the project you are trying to connect to has GraphQL API access included or check the settings and try again."
)

// Validation is the outcome of probing a project's APIs.
type Validation struct {
	ManagementValid bool
	SearchValid     bool
}

// Valid reports whether both APIs accepted the credentials.
func (v Validation) Valid() bool {
	return v.ManagementValid && v.SearchValid
}

// Prober checks that credentials reach the Heartcore APIs.
type Prober interface {
	Probe(ctx context.Context) (contentclient.ProbeResult, error)
}

// ProberFactory builds a Prober for a set of credentials.
type ProberFactory func(creds content.ProjectCredentials) (Prober, error)

// Validator probes credentials before they are stored as a linked source.
type Validator struct {
	newProber ProberFactory
	logger    *zap.Logger
}

// NewValidator returns a validator. A nil factory probes the live Heartcore
// endpoints; clientOpts are passed to each client it builds.
func NewValidator(factory ProberFactory, logger *zap.Logger, clientOpts ...contentclient.Option) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if factory == nil {
		factory = func(creds content.ProjectCredentials) (Prober, error) {
			return contentclient.NewHeartcoreClient(creds, clientOpts...)
		}
	}
	return &Validator{newProber: factory, logger: logger}
}

// Validate probes both APIs with creds.
func (v *Validator) Validate(ctx context.Context, creds content.ProjectCredentials) (Validation, error) {
	p, err := v.newProber(creds)
	if err != nil {
		return Validation{}, err
	}
	res, err := p.Probe(ctx)
	if err != nil {
		return Validation{}, err
	}
	v.logger.Info("Probed Heartcore project",
		zap.String("project", creds.ProjectAlias),
		zap.Bool("management_valid", res.ManagementValid),
		zap.Bool("search_valid", res.SearchValid))
	return Validation{ManagementValid: res.ManagementValid, SearchValid: res.SearchValid}, nil
}

// ValidateAndLink probes creds and, when both APIs accept them, returns
// settings holding a single default linked source.
func (v *Validator) ValidateAndLink(ctx context.Context, creds content.ProjectCredentials) (*Settings, error) {
	creds.ProjectAlias = strings.TrimSpace(creds.ProjectAlias)
	creds.APIKey = strings.TrimSpace(creds.APIKey)
	creds.Server = strings.TrimSpace(creds.Server)
	if !creds.Complete() {
		return nil, apperrors.NewConfigurationError(MsgMissingCredentials, apperrors.ErrMissingCredentials)
	}

	res, err := v.Validate(ctx, creds)
	if err != nil {
		return nil, err
	}
	if !res.ManagementValid {
		return nil, apperrors.NewConfigurationError(MsgManagementInvalid, nil)
	}
	if !res.SearchValid {
		return nil, apperrors.NewConfigurationError(MsgSearchInvalid, nil)
	}

	return &Settings{
		LinkedSources: []LinkedSource{{ID: DefaultSourceID, Project: creds}},
	}, nil
}
