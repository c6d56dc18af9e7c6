package enhancer

import (
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/wehubfusion/Heartcore/pkg/content"
	"github.com/wehubfusion/Heartcore/pkg/contentclient"
	apperrors "github.com/wehubfusion/Heartcore/pkg/errors"
)

// Parameter is one component parameter as stored in a composition.
type Parameter struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// ParameterIsEntry reports whether p is a Heartcore parameter whose value
// carries an ids array.
func ParameterIsEntry(p Parameter) bool {
	return p.Type == content.ParameterType && gjson.GetBytes(p.Value, "ids").IsArray()
}

// EnhanceParameter resolves p when it is a Heartcore parameter. handled is
// false for any other parameter, which the caller should leave untouched.
func (e *Enhancer) EnhanceParameter(ctx context.Context, p Parameter, client contentclient.ContentFetcher) (records []content.ContentRecord, handled bool, err error) {
	if !ParameterIsEntry(p) {
		return nil, false, nil
	}

	var value content.ParameterValue
	if err := json.Unmarshal(p.Value, &value); err != nil {
		return nil, true, apperrors.NewValidationError("heartcore parameter value is malformed", err)
	}

	records, err = e.Enhance(ctx, &value, client)
	return records, true, err
}
