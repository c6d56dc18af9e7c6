package contentclient

import (
	"context"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProbeResult reports which Heartcore APIs accept the client's credentials.
type ProbeResult struct {
	ManagementValid bool
	SearchValid     bool
}

// Probe checks both APIs concurrently: a GET against the management API root
// and an empty POST against the GraphQL endpoint. Probe failures are reported
// in the result; the error is non-nil only when ctx ends first.
func (h *HeartcoreClient) Probe(ctx context.Context) (ProbeResult, error) {
	ctx, span := h.tracer.Start(ctx, "contentclient.Probe",
		trace.WithAttributes(attribute.String("heartcore.project", h.credentials.ProjectAlias)))
	defer span.End()

	result := ProbeResult{ManagementValid: true, SearchValid: true}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := h.do(gctx, apiManagement, http.MethodGet, h.managementURL, nil); err != nil {
			h.logger.Info("Management API probe failed", zap.Error(err))
			result.ManagementValid = false
		}
		return nil
	})
	g.Go(func() error {
		body, err := h.do(gctx, apiGraphQL, http.MethodPost, h.graphqlURL, []byte{})
		if err != nil {
			h.logger.Info("GraphQL API probe failed", zap.Error(err))
			result.SearchValid = false
			return nil
		}
		if deniesGraphQL(body) {
			result.SearchValid = false
		}
		return nil
	})
	_ = g.Wait()

	span.SetAttributes(
		attribute.Bool("probe.management_valid", result.ManagementValid),
		attribute.Bool("probe.search_valid", result.SearchValid),
	)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// deniesGraphQL looks for the permission messages Heartcore returns to
// projects without GraphQL access. Those come back with HTTP 200.
func deniesGraphQL(body []byte) bool {
	denied := false
	gjson.GetBytes(body, "errors").ForEach(func(_, e gjson.Result) bool {
		if isPermissionMessage(e.Get("message").String()) {
			denied = true
			return false
		}
		return true
	})
	return denied
}

func isPermissionMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "does not have graphql") || strings.Contains(msg, "permission denied")
}
