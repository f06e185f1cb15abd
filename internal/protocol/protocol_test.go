package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/jward/arbor/internal/resolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errorsRecorder struct {
	computed [][]resolve.AnalysisError
	failures []*RequestError
}

func (r *errorsRecorder) ComputedErrors(errs []resolve.AnalysisError) {
	r.computed = append(r.computed, errs)
}

func (r *errorsRecorder) OnError(err *RequestError) {
	r.failures = append(r.failures, err)
}

type highlightsRecorder struct {
	file    string
	regions []resolve.HighlightRegion
	calls   int
}

func (r *highlightsRecorder) ComputedHighlights(file string, regions []resolve.HighlightRegion) {
	r.file, r.regions = file, regions
	r.calls++
}

// =============================================================================
// Errors
// =============================================================================

func TestErrorsProcessor_Decodes(t *testing.T) {
	t.Parallel()
	rec := &errorsRecorder{}
	NewErrorsProcessor(rec).Process(json.RawMessage(`{"errors": [{
		"severity": "ERROR",
		"type": "COMPILE_TIME_ERROR",
		"code": "undefined_class",
		"location": {"file": "/src/Foo.java", "offset": 18, "length": 3, "startLine": 1, "startColumn": 19},
		"message": "Undefined class 'Bse'",
		"correction": "Did you mean 'Base'?"
	}]}`), nil)

	require.Len(t, rec.computed, 1)
	assert.Empty(t, rec.failures)
	assert.Equal(t, []resolve.AnalysisError{{
		Severity:   resolve.SeverityError,
		Type:       resolve.CompileTimeError,
		Code:       "undefined_class",
		Location:   resolve.Location{File: "/src/Foo.java", Offset: 18, Length: 3, StartLine: 1, StartColumn: 19},
		Message:    "Undefined class 'Bse'",
		Correction: "Did you mean 'Base'?",
	}}, rec.computed[0])
}

func TestErrorsProcessor_InvalidResponse(t *testing.T) {
	t.Parallel()
	for name, body := range map[string]string{
		"not json":       `{`,
		"missing errors": `{}`,
		"wrong shape":    `{"errors": {"a": 1}}`,
		"bad severity":   `{"errors": [{"severity": "FATAL", "type": "LINT", "location": {"file": "a"}}]}`,
		"bad type":       `{"errors": [{"severity": "INFO", "type": "OTHER", "location": {"file": "a"}}]}`,
		"no location":    `{"errors": [{"severity": "INFO", "type": "LINT"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			rec := &errorsRecorder{}
			NewErrorsProcessor(rec).Process(json.RawMessage(body), nil)
			assert.Empty(t, rec.computed)
			require.Len(t, rec.failures, 1)
			assert.Equal(t, InvalidServerResponse, rec.failures[0].Code)
			assert.NotEmpty(t, rec.failures[0].Message)
			assert.NotEmpty(t, rec.failures[0].StackTrace)
		})
	}
}

func TestErrorsProcessor_PassesRequestError(t *testing.T) {
	t.Parallel()
	rec := &errorsRecorder{}
	reqErr := &RequestError{Code: InvalidParameters, Message: "file is not analyzed"}
	NewErrorsProcessor(rec).Process(nil, reqErr)
	assert.Empty(t, rec.computed)
	require.Len(t, rec.failures, 1)
	assert.Same(t, reqErr, rec.failures[0])
	assert.Equal(t, "INVALID_PARAMETERS: file is not analyzed", reqErr.Error())
}

func TestErrorsProcessor_NothingToDeliver(t *testing.T) {
	t.Parallel()
	rec := &errorsRecorder{}
	NewErrorsProcessor(rec).Process(nil, nil)
	assert.Empty(t, rec.computed)
	assert.Empty(t, rec.failures)
}

func TestEncodeErrors_RoundTrip(t *testing.T) {
	t.Parallel()
	errs := []resolve.AnalysisError{{
		Severity: resolve.SeverityWarning,
		Type:     resolve.Lint,
		Code:     "deep_hierarchy",
		Location: resolve.Location{File: "/a.java", Offset: 6, Length: 1, StartLine: 1, StartColumn: 7},
		Message:  "too deep",
	}}
	data, err := EncodeErrors(errs)
	require.NoError(t, err)

	rec := &errorsRecorder{}
	NewErrorsProcessor(rec).Process(data, nil)
	require.Len(t, rec.computed, 1)
	assert.Equal(t, errs, rec.computed[0])

	data, err = EncodeErrors(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"errors": []}`, string(data))
}

// =============================================================================
// Highlights
// =============================================================================

func TestHighlightsProcessor_SkipsUnknownTypes(t *testing.T) {
	t.Parallel()
	rec := &highlightsRecorder{}
	err := NewHighlightsProcessor(rec).Process(json.RawMessage(`{
		"event": "analysis.highlights",
		"params": {
			"file": "/src/A.java",
			"regions": [
				{"type": "CLASS", "offset": 6, "length": 1},
				{"type": "SPARKLES", "offset": 8, "length": 2},
				{"type": "KEYWORD", "offset": 0, "length": 5}
			]
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, "/src/A.java", rec.file)
	assert.Equal(t, []resolve.HighlightRegion{
		{Type: resolve.HighlightClass, Offset: 6, Length: 1},
		{Type: resolve.HighlightKeyword, Offset: 0, Length: 5},
	}, rec.regions)
}

func TestHighlightsProcessor_Malformed(t *testing.T) {
	t.Parallel()
	for name, body := range map[string]string{
		"not json":       `[`,
		"no params":      `{"event": "analysis.highlights"}`,
		"no file":        `{"params": {"regions": []}}`,
		"no regions":     `{"params": {"file": "a"}}`,
		"missing offset": `{"params": {"file": "a", "regions": [{"type": "CLASS", "length": 1}]}}`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			rec := &highlightsRecorder{}
			err := NewHighlightsProcessor(rec).Process(json.RawMessage(body))
			require.Error(t, err)
			var reqErr *RequestError
			require.True(t, errors.As(err, &reqErr))
			assert.Equal(t, InvalidServerResponse, reqErr.Code)
			assert.Zero(t, rec.calls)
		})
	}
}

func TestEncodeHighlights_RoundTrip(t *testing.T) {
	t.Parallel()
	regions := []resolve.HighlightRegion{
		{Type: resolve.HighlightKeyword, Offset: 0, Length: 5},
		{Type: resolve.HighlightClass, Offset: 6, Length: 1},
	}
	data, err := EncodeHighlights("/src/A.java", regions)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"analysis.highlights"`)

	rec := &highlightsRecorder{}
	require.NoError(t, NewHighlightsProcessor(rec).Process(data))
	assert.Equal(t, "/src/A.java", rec.file)
	assert.Equal(t, regions, rec.regions)
}

// =============================================================================
// Server errors
// =============================================================================

func TestServerError_Message(t *testing.T) {
	t.Parallel()
	err := NewServerError(InvalidContextID, "my-id")
	assert.Equal(t, "Cannot find a context with the id 'my-id'", err.Message())
	assert.Equal(t, "Cannot find a context with the id 'my-id'", err.Error())
	assert.Equal(t, "[code=INVALID_CONTEXT_ID, message=Cannot find a context with the id 'my-id']", err.String())

	assert.Equal(t, "The analysis engine has not been started", NewServerError(EngineNotStarted).Message())
	assert.Equal(t, "Unknown analysis service 'FOLDING'", NewServerError(UnknownService, "FOLDING").Error())
}
