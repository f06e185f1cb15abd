package arbor

import (
	"github.com/jward/arbor/internal/resolve"
	"github.com/jward/arbor/internal/types"
)

// Public type aliases for the internal result types delivered to listeners
// and returned by queries. External consumers use these names; no
// conversion is needed.

type AnalysisError = resolve.AnalysisError
type Location = resolve.Location
type Severity = resolve.Severity
type ErrorType = resolve.ErrorType
type HighlightRegion = resolve.HighlightRegion
type HighlightType = resolve.HighlightType
type Outline = resolve.Outline
type NavigationRegion = resolve.NavigationRegion
type Hover = resolve.Hover
type ClassKind = types.ClassKind
