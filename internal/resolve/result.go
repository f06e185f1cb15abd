package resolve

import (
	"github.com/jward/arbor/internal/ast"
	"github.com/jward/arbor/internal/types"
)

// Severity ranks an AnalysisError.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// ErrorType groups analysis errors by the phase that found them.
type ErrorType string

const (
	SyntacticError   ErrorType = "SYNTACTIC_ERROR"
	CompileTimeError ErrorType = "COMPILE_TIME_ERROR"
	StaticWarning    ErrorType = "STATIC_WARNING"
	Lint             ErrorType = "LINT"
)

// Error codes reported by resolution.
const (
	CodeSyntaxError            = "syntax_error"
	CodeUndefinedClass         = "undefined_class"
	CodeDuplicateDefinition    = "duplicate_definition"
	CodeExtendsNonClass        = "extends_non_class"
	CodeImplementsNonInterface = "implements_non_interface"
	CodeCyclicHierarchy        = "cyclic_hierarchy"
	CodeWrongTypeArgumentCount = "wrong_number_of_type_arguments"
)

// Location is a source range. Lines and columns are 1-based.
type Location struct {
	File        string `json:"file"`
	Offset      int    `json:"offset"`
	Length      int    `json:"length"`
	StartLine   int    `json:"startLine"`
	StartColumn int    `json:"startColumn"`
}

// LocationOf returns the location of n in file.
func LocationOf(file string, n *ast.Node) Location {
	loc := Location{File: file, Offset: n.Offset(), Length: n.Length()}
	if tok := n.BeginToken(); tok != nil {
		loc.StartLine = tok.Line + 1
		loc.StartColumn = tok.Column + 1
	}
	return loc
}

// AnalysisError is a problem found in a file.
type AnalysisError struct {
	Severity   Severity  `json:"severity"`
	Type       ErrorType `json:"type"`
	Code       string    `json:"code"`
	Location   Location  `json:"location"`
	Message    string    `json:"message"`
	Correction string    `json:"correction,omitempty"`
}

// HighlightType classifies a highlighted region.
type HighlightType string

const (
	HighlightAnnotation        HighlightType = "ANNOTATION"
	HighlightBuiltIn           HighlightType = "BUILT_IN"
	HighlightClass             HighlightType = "CLASS"
	HighlightComment           HighlightType = "COMMENT_BLOCK"
	HighlightConstructor       HighlightType = "CONSTRUCTOR"
	HighlightDirective         HighlightType = "DIRECTIVE"
	HighlightField             HighlightType = "FIELD"
	HighlightFunctionDecl      HighlightType = "FUNCTION_DECLARATION"
	HighlightKeyword           HighlightType = "KEYWORD"
	HighlightLiteralBoolean    HighlightType = "LITERAL_BOOLEAN"
	HighlightLiteralDouble     HighlightType = "LITERAL_DOUBLE"
	HighlightLiteralInteger    HighlightType = "LITERAL_INTEGER"
	HighlightLiteralString     HighlightType = "LITERAL_STRING"
	HighlightMethodDecl        HighlightType = "METHOD_DECLARATION"
	HighlightParameter         HighlightType = "PARAMETER"
	HighlightTypeNameDynamic   HighlightType = "TYPE_NAME_DYNAMIC"
	HighlightTypeParameter     HighlightType = "TYPE_PARAMETER"
	HighlightLocalVariableDecl HighlightType = "LOCAL_VARIABLE_DECLARATION"
)

var highlightTypes = map[HighlightType]bool{
	HighlightAnnotation:        true,
	HighlightBuiltIn:           true,
	HighlightClass:             true,
	HighlightComment:           true,
	HighlightConstructor:       true,
	HighlightDirective:         true,
	HighlightField:             true,
	HighlightFunctionDecl:      true,
	HighlightKeyword:           true,
	HighlightLiteralBoolean:    true,
	HighlightLiteralDouble:     true,
	HighlightLiteralInteger:    true,
	HighlightLiteralString:     true,
	HighlightMethodDecl:        true,
	HighlightParameter:         true,
	HighlightTypeNameDynamic:   true,
	HighlightTypeParameter:     true,
	HighlightLocalVariableDecl: true,
}

// Valid reports whether t is a known highlight type.
func (t HighlightType) Valid() bool { return highlightTypes[t] }

// HighlightRegion is a highlighted source range.
type HighlightRegion struct {
	Type   HighlightType `json:"type"`
	Offset int           `json:"offset"`
	Length int           `json:"length"`
}

// Outline is a node of a file's declaration outline.
type Outline struct {
	Kind     string     `json:"kind"`
	Name     string     `json:"name"`
	Offset   int        `json:"offset"`
	Length   int        `json:"length"`
	Children []*Outline `json:"children,omitempty"`
}

// NavigationRegion links a source range to the declarations it names.
type NavigationRegion struct {
	Offset  int        `json:"offset"`
	Length  int        `json:"length"`
	Targets []Location `json:"targets"`
}

// Result is everything resolution learns about one file.
type Result struct {
	File    string
	Unit    *ast.Node
	Classes []*types.ClassElement

	// Imports lists the other files declaring classes this file refers to.
	Imports []string
	// Unresolved lists referenced class names that could not be found.
	Unresolved []string

	Errors     []AnalysisError
	Highlights []HighlightRegion
	Outline    *Outline
	Navigation []NavigationRegion
}
