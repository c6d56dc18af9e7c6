package contentclient

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/wehubfusion/Heartcore/pkg/content"
	apperrors "github.com/wehubfusion/Heartcore/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// AllContentQuery lists preview content matching a ContentFilterInput.
const AllContentQuery = `query allContent($where: ContentFilterInput) {
  allContent(preview: true, where: $where) {
    items {
      id
      name
      updateDate
      createDate
      url
      contentTypeAlias
    }
  }
}`

// Filter scopes a search to one content type and, optionally, a name substring.
type Filter struct {
	ContentTypeAlias string
	NameContains     string
}

// Where renders the GraphQL "where" input:
//
//	{"contentTypeAlias":"blogPost"}
//	{"AND":[{"contentTypeAlias":"blogPost"},{"name_contains":"intro"}]}
func (f Filter) Where() string {
	if f.NameContains == "" {
		where, _ := sjson.Set("{}", "contentTypeAlias", f.ContentTypeAlias)
		return where
	}
	byType, _ := sjson.Set("{}", "contentTypeAlias", f.ContentTypeAlias)
	byName, _ := sjson.Set("{}", "name_contains", f.NameContains)

	where := `{"AND":[]}`
	where, _ = sjson.SetRaw(where, "AND.-1", byType)
	where, _ = sjson.SetRaw(where, "AND.-1", byName)
	return where
}

// RequestBody builds the GraphQL POST body for the filter.
func (f Filter) RequestBody() ([]byte, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "query", AllContentQuery)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(body, "variables.where", []byte(f.Where()))
}

// Search runs the allContent query. An empty item list is returned as a non-nil
// empty slice; items failing boundary validation are skipped.
func (h *HeartcoreClient) Search(ctx context.Context, filter Filter) ([]content.ContentRecord, error) {
	ctx, span := h.tracer.Start(ctx, "contentclient.Search",
		trace.WithAttributes(
			attribute.String("heartcore.project", h.credentials.ProjectAlias),
			attribute.String("content.type_alias", filter.ContentTypeAlias),
		))
	defer span.End()

	payload, err := filter.RequestBody()
	if err != nil {
		err = apperrors.NewError(apperrors.Internal, apperrors.ErrorCodeInternal, "failed to encode search", err)
		span.RecordError(err)
		return nil, err
	}

	body, err := h.do(ctx, apiGraphQL, "POST", h.graphqlURL, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	records, err := h.parseSearchResponse(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("search.results", len(records)))
	return records, nil
}

func (h *HeartcoreClient) parseSearchResponse(body []byte) ([]content.ContentRecord, error) {
	if !gjson.ValidBytes(body) {
		return nil, apperrors.NewTransientError("graphql response is not JSON", apperrors.ErrMalformedPayload)
	}
	doc := gjson.ParseBytes(body)

	if errs := doc.Get("errors"); errs.IsArray() && len(errs.Array()) > 0 {
		msg := errs.Get("0.message").String()
		if isPermissionMessage(msg) {
			return nil, apperrors.NewUnauthorizedError("project has no GraphQL access", fmt.Errorf("graphql: %s", msg))
		}
		return nil, apperrors.NewValidationError("graphql query failed", fmt.Errorf("graphql: %s", msg))
	}

	items := doc.Get("data.allContent.items")
	records := make([]content.ContentRecord, 0, len(items.Array()))
	for _, item := range items.Array() {
		rec, err := parseRecordResult(item)
		if err != nil {
			h.logger.Debug("Skipping malformed search item", zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
