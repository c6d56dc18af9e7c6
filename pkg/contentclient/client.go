// Package contentclient talks to the Umbraco Heartcore APIs: the management
// API for fetching content by id and listing content types, and the GraphQL
// API for filtered searches.
//
// A client is constructed per request or per editor session from explicit
// credentials; there is no process-wide client.
//
// Example:
//
//	c, err := contentclient.NewHeartcoreClient(creds, contentclient.WithLogger(logger))
//	if err != nil {
//	    return err // configuration error, nothing was sent
//	}
//	rec, err := c.FetchByID(ctx, "0f4a...")
package contentclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wehubfusion/Heartcore/pkg/content"
	apperrors "github.com/wehubfusion/Heartcore/pkg/errors"
	"github.com/wehubfusion/Heartcore/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Default Heartcore endpoints.
const (
	DefaultManagementURL = "https://api.umbraco.io"
	DefaultDeliveryURL   = "https://cdn.umbraco.io"
	DefaultGraphQLURL    = "https://graphql.umbraco.io"
	DefaultTimeout       = 30 * time.Second

	headerAPIKey       = "Api-Key"
	headerProjectAlias = "Umb-Project-Alias"
	userAgent          = "heartcore-canvas/1.0"
)

// API names used in spans and metrics.
const (
	apiManagement = "management"
	apiDelivery   = "delivery"
	apiGraphQL    = "graphql"
)

// ContentFetcher resolves a single content id.
type ContentFetcher interface {
	FetchByID(ctx context.Context, id string) (content.ContentRecord, error)
}

// ContentSearcher executes filtered content queries.
type ContentSearcher interface {
	Search(ctx context.Context, filter Filter) ([]content.ContentRecord, error)
}

// ContentTypeLister lists the content types of a project.
type ContentTypeLister interface {
	ListContentTypes(ctx context.Context) ([]content.ContentTypeDescriptor, error)
}

// ContentClient is everything the enhancer and the picker need from Heartcore.
type ContentClient interface {
	ContentFetcher
	ContentSearcher
	ContentTypeLister
}

// HeartcoreClient implements ContentClient over HTTPS.
type HeartcoreClient struct {
	credentials   content.ProjectCredentials
	managementURL string
	deliveryURL   string
	graphqlURL    string
	useDelivery   bool
	httpClient    *http.Client
	logger        *zap.Logger
	metrics       *metrics.Collectors
	tracer        trace.Tracer
}

var _ ContentClient = (*HeartcoreClient)(nil)

// Option customizes a HeartcoreClient.
type Option func(*HeartcoreClient)

// WithHTTPClient sets the HTTP client (tests point it at httptest servers).
func WithHTTPClient(c *http.Client) Option {
	return func(h *HeartcoreClient) {
		if c != nil {
			h.httpClient = c
		}
	}
}

// WithEndpoints overrides the API base URLs. Empty values keep the defaults.
func WithEndpoints(managementURL, deliveryURL, graphqlURL string) Option {
	return func(h *HeartcoreClient) {
		if managementURL != "" {
			h.managementURL = strings.TrimRight(managementURL, "/")
		}
		if deliveryURL != "" {
			h.deliveryURL = strings.TrimRight(deliveryURL, "/")
		}
		if graphqlURL != "" {
			h.graphqlURL = strings.TrimRight(graphqlURL, "/")
		}
	}
}

// WithDeliveryAPI makes FetchByID read published content from the delivery CDN
// instead of the management API. Render-time enhancement uses this.
func WithDeliveryAPI() Option {
	return func(h *HeartcoreClient) {
		h.useDelivery = true
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(h *HeartcoreClient) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics reports request latencies to m.
func WithMetrics(m *metrics.Collectors) Option {
	return func(h *HeartcoreClient) {
		h.metrics = m
	}
}

// NewHeartcoreClient creates a client for one project. It fails with a
// configuration error, before any network call, when the alias or API key is missing.
func NewHeartcoreClient(creds content.ProjectCredentials, opts ...Option) (*HeartcoreClient, error) {
	if strings.TrimSpace(creds.ProjectAlias) == "" {
		return nil, apperrors.NewConfigurationError("Heartcore project alias is not set", apperrors.ErrMissingCredentials)
	}
	if strings.TrimSpace(creds.APIKey) == "" {
		return nil, apperrors.NewConfigurationError("Heartcore API key is not set", apperrors.ErrMissingCredentials)
	}

	h := &HeartcoreClient{
		credentials:   creds,
		managementURL: DefaultManagementURL,
		deliveryURL:   DefaultDeliveryURL,
		graphqlURL:    DefaultGraphQLURL,
		httpClient:    &http.Client{Timeout: DefaultTimeout},
		logger:        zap.NewNop(),
		tracer:        otel.Tracer("heartcore/contentclient"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Credentials returns the project credentials the client was built with.
func (h *HeartcoreClient) Credentials() content.ProjectCredentials {
	return h.credentials
}

// FetchByID fetches one content item. Unknown ids and malformed payloads are
// reported as not-found errors.
func (h *HeartcoreClient) FetchByID(ctx context.Context, id string) (content.ContentRecord, error) {
	if strings.TrimSpace(id) == "" {
		return content.ContentRecord{}, apperrors.NewNotFoundError(id, nil)
	}

	api, base := apiManagement, h.managementURL
	if h.useDelivery {
		api, base = apiDelivery, h.deliveryURL
	}

	ctx, span := h.tracer.Start(ctx, "contentclient.FetchByID",
		trace.WithAttributes(
			attribute.String("heartcore.api", api),
			attribute.String("heartcore.project", h.credentials.ProjectAlias),
			attribute.String("content.id", id),
		))
	defer span.End()

	body, err := h.do(ctx, api, http.MethodGet, base+"/content/"+url.PathEscape(id), nil)
	if err != nil {
		err = notFoundOn404(id, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return content.ContentRecord{}, err
	}

	rec, err := ParseRecord(body)
	if err != nil {
		h.logger.Debug("Discarding malformed content payload",
			zap.String("id", id),
			zap.Error(err))
		err = apperrors.NewNotFoundError(id, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return content.ContentRecord{}, err
	}

	span.SetStatus(codes.Ok, "resolved")
	return rec, nil
}

// ListContentTypes lists the project's content types. A response that is not a
// list (projects without content types) yields an empty slice.
func (h *HeartcoreClient) ListContentTypes(ctx context.Context) ([]content.ContentTypeDescriptor, error) {
	ctx, span := h.tracer.Start(ctx, "contentclient.ListContentTypes",
		trace.WithAttributes(attribute.String("heartcore.project", h.credentials.ProjectAlias)))
	defer span.End()

	body, err := h.do(ctx, apiManagement, http.MethodGet, h.managementURL+"/content/type", nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	types := ParseContentTypes(body)
	span.SetAttributes(attribute.Int("content_types.count", len(types)))
	return types, nil
}

// do executes one request and maps HTTP failures onto the error taxonomy.
func (h *HeartcoreClient) do(ctx context.Context, api, method, endpoint string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = strings.NewReader(string(payload))
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, apperrors.NewError(apperrors.Internal, apperrors.ErrorCodeInternal, "failed to build request", err)
	}
	req.Header.Set(headerAPIKey, h.credentials.APIKey)
	req.Header.Set(headerProjectAlias, h.credentials.ProjectAlias)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.metrics.ObserveRequest(api, "error", time.Since(start).Seconds())
		return nil, apperrors.NewTransientError(fmt.Sprintf("%s request failed", api), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	h.metrics.ObserveRequest(api, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
	if err != nil {
		return nil, apperrors.NewTransientError(fmt.Sprintf("%s response could not be read", api), err)
	}

	if resp.StatusCode >= 400 {
		return body, statusError(api, resp.StatusCode, body)
	}
	return body, nil
}

// StatusError is the error returned for non-2xx responses, wrapped in an AppError.
type StatusError struct {
	API        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API returned HTTP %d: %s", e.API, e.StatusCode, e.Body)
}

func statusError(api string, status int, body []byte) error {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}
	cause := &StatusError{API: api, StatusCode: status, Body: snippet}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.NewUnauthorizedError("Heartcore rejected the project credentials", cause)
	case status == http.StatusNotFound:
		return apperrors.NewError(apperrors.NotFound, apperrors.ErrorCodeNotFound, "resource not found", cause)
	case status == http.StatusTooManyRequests || status >= 500:
		return apperrors.NewTransientError(fmt.Sprintf("%s API unavailable", api), cause)
	default:
		return apperrors.NewValidationError(fmt.Sprintf("%s API rejected the request", api), cause)
	}
}

// notFoundOn404 rewrites a generic 404 into a not-found error naming id.
func notFoundOn404(id string, err error) error {
	var se *StatusError
	if apperrors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return apperrors.NewNotFoundError(id, err)
	}
	return err
}
