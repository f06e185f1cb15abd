// Package protocol translates analysis results to and from their JSON wire
// form. Decoding is done by processors that hand typed values to a
// consumer; input that cannot be decoded is turned into a RequestError
// instead of failing the caller.
package protocol

import (
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/jward/arbor/internal/resolve"
)

// Request error codes.
const (
	InvalidServerResponse = "INVALID_SERVER_RESPONSE"
	InvalidParameters     = "INVALID_PARAMETERS"
)

// HighlightsEvent names the highlights notification.
const HighlightsEvent = "analysis.highlights"

// RequestError is the failure of one request.
type RequestError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StackTrace string `json:"stackTrace,omitempty"`
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// invalidResponse wraps a decoding failure.
func invalidResponse(err error) *RequestError {
	return &RequestError{
		Code:       InvalidServerResponse,
		Message:    err.Error(),
		StackTrace: string(debug.Stack()),
	}
}

// ErrorsConsumer receives the result of an errors request.
type ErrorsConsumer interface {
	ComputedErrors(errs []resolve.AnalysisError)
	OnError(err *RequestError)
}

// ErrorsProcessor decodes errors results.
type ErrorsProcessor struct {
	consumer ErrorsConsumer
}

func NewErrorsProcessor(c ErrorsConsumer) *ErrorsProcessor {
	return &ErrorsProcessor{consumer: c}
}

// Process delivers the errors in result, or reqErr, to the consumer. A
// result that cannot be decoded is delivered as an InvalidServerResponse
// error. A nil result with a nil reqErr delivers nothing.
func (p *ErrorsProcessor) Process(result json.RawMessage, reqErr *RequestError) {
	if len(result) > 0 {
		errs, err := decodeErrors(result)
		if err != nil {
			reqErr = invalidResponse(err)
		} else {
			p.consumer.ComputedErrors(errs)
		}
	}
	if reqErr != nil {
		p.consumer.OnError(reqErr)
	}
}

type errorsResult struct {
	Errors *[]resolve.AnalysisError `json:"errors"`
}

func decodeErrors(data json.RawMessage) ([]resolve.AnalysisError, error) {
	var res errorsResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("errors result: %w", err)
	}
	if res.Errors == nil {
		return nil, fmt.Errorf("errors result: missing errors")
	}
	for i, e := range *res.Errors {
		if err := validateError(e); err != nil {
			return nil, fmt.Errorf("errors result: error %d: %w", i, err)
		}
	}
	return *res.Errors, nil
}

func validateError(e resolve.AnalysisError) error {
	switch e.Severity {
	case resolve.SeverityInfo, resolve.SeverityWarning, resolve.SeverityError:
	default:
		return fmt.Errorf("unknown severity %q", e.Severity)
	}
	switch e.Type {
	case resolve.SyntacticError, resolve.CompileTimeError, resolve.StaticWarning, resolve.Lint:
	default:
		return fmt.Errorf("unknown type %q", e.Type)
	}
	if e.Location.File == "" {
		return fmt.Errorf("missing location")
	}
	return nil
}

// EncodeErrors renders errs as an errors result.
func EncodeErrors(errs []resolve.AnalysisError) (json.RawMessage, error) {
	if errs == nil {
		errs = []resolve.AnalysisError{}
	}
	data, err := json.Marshal(errorsResult{Errors: &errs})
	if err != nil {
		return nil, fmt.Errorf("encode errors: %w", err)
	}
	return data, nil
}

// HighlightsListener receives decoded highlights notifications.
type HighlightsListener interface {
	ComputedHighlights(file string, regions []resolve.HighlightRegion)
}

// HighlightsProcessor decodes highlights notifications.
type HighlightsProcessor struct {
	listener HighlightsListener
}

func NewHighlightsProcessor(l HighlightsListener) *HighlightsProcessor {
	return &HighlightsProcessor{listener: l}
}

type notification struct {
	Event  string          `json:"event"`
	Params json.RawMessage `json:"params"`
}

type highlightsParams struct {
	File    *string          `json:"file"`
	Regions *[]wireHighlight `json:"regions"`
}

type wireHighlight struct {
	Type   resolve.HighlightType `json:"type"`
	Offset *int                  `json:"offset"`
	Length *int                  `json:"length"`
}

// Process decodes a highlights notification and notifies the listener.
// Regions of unknown type are skipped. A malformed notification is
// returned as an InvalidServerResponse error and nothing is delivered.
func (p *HighlightsProcessor) Process(data json.RawMessage) error {
	file, regions, err := decodeHighlights(data)
	if err != nil {
		return invalidResponse(err)
	}
	p.listener.ComputedHighlights(file, regions)
	return nil
}

func decodeHighlights(data json.RawMessage) (string, []resolve.HighlightRegion, error) {
	var n notification
	if err := json.Unmarshal(data, &n); err != nil {
		return "", nil, fmt.Errorf("highlights: %w", err)
	}
	var params highlightsParams
	if len(n.Params) == 0 {
		return "", nil, fmt.Errorf("highlights: missing params")
	}
	if err := json.Unmarshal(n.Params, &params); err != nil {
		return "", nil, fmt.Errorf("highlights: params: %w", err)
	}
	if params.File == nil || params.Regions == nil {
		return "", nil, fmt.Errorf("highlights: params need file and regions")
	}
	regions := make([]resolve.HighlightRegion, 0, len(*params.Regions))
	for i, r := range *params.Regions {
		if !r.Type.Valid() {
			continue
		}
		if r.Offset == nil || r.Length == nil {
			return "", nil, fmt.Errorf("highlights: region %d: missing offset or length", i)
		}
		regions = append(regions, resolve.HighlightRegion{Type: r.Type, Offset: *r.Offset, Length: *r.Length})
	}
	return *params.File, regions, nil
}

// EncodeHighlights renders a highlights notification for file.
func EncodeHighlights(file string, regions []resolve.HighlightRegion) (json.RawMessage, error) {
	wire := make([]wireHighlight, len(regions))
	for i, r := range regions {
		wire[i] = wireHighlight{Type: r.Type, Offset: &r.Offset, Length: &r.Length}
	}
	params, err := json.Marshal(highlightsParams{File: &file, Regions: &wire})
	if err != nil {
		return nil, fmt.Errorf("encode highlights: %w", err)
	}
	data, err := json.Marshal(notification{Event: HighlightsEvent, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encode highlights: %w", err)
	}
	return data, nil
}
