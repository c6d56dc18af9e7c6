package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/wehubfusion/Heartcore/pkg/concurrency"
	"github.com/wehubfusion/Heartcore/pkg/config"
	"github.com/wehubfusion/Heartcore/pkg/content"
	"github.com/wehubfusion/Heartcore/pkg/contentclient"
	"github.com/wehubfusion/Heartcore/pkg/editor"
	"github.com/wehubfusion/Heartcore/pkg/enhancer"
	apperrors "github.com/wehubfusion/Heartcore/pkg/errors"
	"github.com/wehubfusion/Heartcore/pkg/linkedsource"
	"github.com/wehubfusion/Heartcore/pkg/location"
	"github.com/wehubfusion/Heartcore/pkg/search"
	"go.uber.org/zap"
)

func newRootCommand() *cobra.Command {
	return newRootCommandWith(newApp())
}

func newRootCommandWith(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "heartcore [sub-command]",
		Short: "Resolve, search and link Umbraco Heartcore content",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", config.Path(""), "path to the YAML configuration file")
	cmd.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")

	cmd.AddCommand(newEnhanceCommand(a))
	cmd.AddCommand(newSearchCommand(a))
	cmd.AddCommand(newSelectCommand(a))
	cmd.AddCommand(newValidateCommand(a))
	cmd.AddCommand(newTypesCommand(a))
	return cmd
}

// run wraps a command body with setup, teardown and error reporting.
func (a *app) run(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.teardown()
		if err := a.setup(cmd.Context()); err != nil {
			return err
		}
		err := fn(cmd.Context(), cmd, args)
		if err != nil {
			a.logger.Error("Command failed",
				zap.String("command", cmd.Name()),
				zap.String("error_code", apperrors.Categorize(err)),
				zap.Error(err))
			a.report(err)
		}
		return err
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newEnhanceCommand(a *app) *cobra.Command {
	var (
		rawValue     string
		rawParameter string
		key          string
	)

	cmd := &cobra.Command{
		Use:   "enhance",
		Short: "Resolve a stored parameter value into content records",
		Long: `Resolve a Heartcore parameter value into the content records it references.

The value is read from --value, from a whole composition parameter given with
--parameter, or from the location store with --location. Records are printed
in stored order; ids that no longer resolve are left out.`,
		Args: cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			enh := enhancer.New(a.newThrottle(),
				enhancer.WithLogger(a.logger),
				enhancer.WithMetrics(a.metrics),
				enhancer.WithLimiter(concurrency.NewLimiter(a.cfg.Throttle.MaxConcurrent)))

			if rawParameter != "" {
				var p enhancer.Parameter
				if err := json.Unmarshal([]byte(rawParameter), &p); err != nil {
					return apperrors.NewValidationError("--parameter is not valid JSON", err)
				}
				if !enhancer.ParameterIsEntry(p) {
					a.logger.Info("Parameter is not a Heartcore entry, leaving it untouched", zap.String("type", p.Type))
					return writeJSON(cmd.OutOrStdout(), p)
				}
				var value content.ParameterValue
				if err := json.Unmarshal(p.Value, &value); err != nil {
					return apperrors.NewValidationError("parameter value is malformed", err)
				}
				client, err := a.clientFor(ctx, value.Source)
				if err != nil {
					return err
				}
				records, _, err := enh.EnhanceParameter(ctx, p, client)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), records)
			}

			value, err := a.readValue(ctx, rawValue, key)
			if err != nil {
				return err
			}
			if !value.HasIDs() {
				return writeJSON(cmd.OutOrStdout(), []content.ContentRecord{})
			}
			client, err := a.clientFor(ctx, value.Source)
			if err != nil {
				return err
			}
			records, err := enh.Enhance(ctx, value, client)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), records)
		}),
	}

	cmd.Flags().StringVar(&rawValue, "value", "", `parameter value as JSON, e.g. '{"ids":["..."]}'`)
	cmd.Flags().StringVar(&rawParameter, "parameter", "", `composition parameter as JSON, e.g. '{"type":"heartcore","value":{...}}'`)
	cmd.Flags().StringVar(&key, "location", "", "location key holding the parameter value")
	cmd.MarkFlagsMutuallyExclusive("value", "parameter", "location")
	cmd.MarkFlagsOneRequired("value", "parameter", "location")
	return cmd
}

func (a *app) readValue(ctx context.Context, raw, key string) (*content.ParameterValue, error) {
	if raw != "" {
		var v content.ParameterValue
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, apperrors.NewValidationError("--value is not valid JSON", err)
		}
		return &v, nil
	}
	return location.LoadValue(ctx, a.store, key)
}

func (a *app) clientFor(ctx context.Context, sourceID string) (*clientWithCreds, error) {
	creds, err := a.credentials(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	client, err := a.newClient(creds)
	if err != nil {
		return nil, err
	}
	return &clientWithCreds{ContentClient: client, creds: creds}, nil
}

func newSearchCommand(a *app) *cobra.Command {
	var alias, text, source string

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search content of one content type",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			client, err := a.clientFor(ctx, source)
			if err != nil {
				return err
			}
			allowed := content.AllowedContentTypes{alias: {Alias: alias, Name: alias}}
			ctrl := search.NewController(client, client.creds, allowed,
				search.WithLogger(a.logger),
				search.WithMetrics(a.metrics))
			defer ctrl.Close()

			snap := ctrl.Search(ctx, text, alias)
			if snap.Err != nil {
				return snap.Err
			}
			if snap.NoResults() {
				a.logger.Info("No results", zap.String("content_type", alias), zap.String("text", text))
			}
			return writeJSON(cmd.OutOrStdout(), snap.Results)
		}),
	}

	cmd.Flags().StringVar(&alias, "type", "", "content type alias to search")
	cmd.Flags().StringVar(&text, "text", "", "match names containing this text")
	cmd.Flags().StringVar(&source, "source", linkedsource.DefaultSourceID, "linked source id")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

// selectionOutput is what the select command prints.
type selectionOutput struct {
	Value      *content.ParameterValue `json:"value"`
	Rows       []content.DisplayRow    `json:"rows"`
	Validation editor.ValidationResult `json:"validation"`
	Callout    string                  `json:"callout,omitempty"`
}

func newSelectCommand(a *app) *cobra.Command {
	var (
		key       string
		configKey string
		multi     bool
		remove    bool
	)

	cmd := &cobra.Command{
		Use:   "select [ids...]",
		Short: "Store the selected content ids for a parameter",
		Long: `Store the selected content ids for a parameter and print the resolved rows.

The ids are stored in the given order. Without multiselect only the last id is
kept. With --remove the given ids are dropped from the stored selection instead.`,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			reg, err := a.linkedSources(ctx)
			if err != nil {
				return err
			}

			pcfg := content.ParameterConfig{AllowMultiselect: multi}
			if configKey != "" {
				if pcfg, err = location.LoadConfig(ctx, a.store, configKey); err != nil {
					return err
				}
			}

			session, err := editor.NewSession(ctx, a.store, key, pcfg, reg,
				editor.WithLogger(a.logger),
				editor.WithMetrics(a.metrics),
				editor.WithClientFactory(a.newClient))
			if err != nil {
				return err
			}
			defer session.Close()

			if !session.Renderable() {
				return apperrors.NewConfigurationError(editor.NotConfiguredMessage, apperrors.ErrUnknownSource)
			}

			if remove {
				for _, id := range args {
					if err := session.Remove(ctx, id); err != nil {
						return err
					}
				}
			} else if err := session.Select(ctx, args); err != nil {
				return err
			}

			session.SelectedRows()
			if err := session.WaitSelection(ctx); err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), selectionOutput{
				Value:      session.Value(),
				Rows:       session.SelectedRows(),
				Validation: session.Validate(),
				Callout:    session.Callout(),
			})
		}),
	}

	cmd.Flags().StringVar(&key, "location", "", "location key of the parameter value")
	cmd.Flags().StringVar(&configKey, "config-key", "", "location key of the parameter configuration")
	cmd.Flags().BoolVar(&multi, "multi", false, "allow more than one id when no --config-key is given")
	cmd.Flags().BoolVar(&remove, "remove", false, "remove the given ids instead of replacing the selection")
	_ = cmd.MarkFlagRequired("location")
	return cmd
}

func newValidateCommand(a *app) *cobra.Command {
	var (
		creds content.ProjectCredentials
		link  bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Probe Heartcore credentials against the management and GraphQL APIs",
		Long: `Probe Heartcore credentials against the management and GraphQL APIs.

Credentials default to the configured project. With --link, valid credentials
are stored as the default linked source.`,
		Args: cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			if creds.ProjectAlias == "" {
				creds.ProjectAlias = a.cfg.Heartcore.ProjectAlias
			}
			if creds.APIKey == "" {
				creds.APIKey = a.cfg.Heartcore.APIKey
			}
			if creds.Server == "" {
				creds.Server = a.cfg.Heartcore.Server
			}

			v := linkedsource.NewValidator(nil, a.logger, a.clientOptions()...)
			if !link {
				if !creds.Complete() {
					return apperrors.NewConfigurationError(linkedsource.MsgMissingCredentials, apperrors.ErrMissingCredentials)
				}
				res, err := v.Validate(ctx, creds)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]bool{
					"managementValid": res.ManagementValid,
					"searchValid":     res.SearchValid,
				})
			}

			settings, err := v.ValidateAndLink(ctx, creds)
			if err != nil {
				return err
			}
			if err := location.SetJSON(ctx, a.store, location.SettingsKey, settings); err != nil {
				return err
			}
			a.logger.Info("Linked Heartcore project", zap.String("project", creds.ProjectAlias))
			return writeJSON(cmd.OutOrStdout(), settings.LinkedSources)
		}),
	}

	cmd.Flags().StringVar(&creds.ProjectAlias, "project-alias", "", "Heartcore project alias")
	cmd.Flags().StringVar(&creds.APIKey, "api-key", "", "Heartcore API key")
	cmd.Flags().StringVar(&creds.Server, "server", "", "Heartcore server, used for edit links")
	cmd.Flags().BoolVar(&link, "link", false, "store valid credentials as the default linked source")
	return cmd
}

func newTypesCommand(a *app) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "types",
		Short: "List the content types of a project",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			client, err := a.clientFor(ctx, source)
			if err != nil {
				return err
			}
			cat, err := editor.ContentTypeCatalog(ctx, client, client.creds.ProjectAlias)
			if err != nil {
				return err
			}
			if msg := cat.Callout(); msg != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), msg)
			}
			return writeJSON(cmd.OutOrStdout(), cat.Types)
		}),
	}

	cmd.Flags().StringVar(&source, "source", linkedsource.DefaultSourceID, "linked source id")
	return cmd
}

// clientWithCreds keeps the project next to its client for edit links.
type clientWithCreds struct {
	contentclient.ContentClient
	creds content.ProjectCredentials
}
