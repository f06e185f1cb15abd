package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIError is a JSON-friendly analysis error.
type CLIError struct {
	File       string `json:"file"`
	Line       int    `json:"line"`
	Col        int    `json:"col"`
	Severity   string `json:"severity"`
	Type       string `json:"type"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Correction string `json:"correction,omitempty"`
}

// CLIReference is a JSON-friendly reference site.
type CLIReference struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
	Kind     string `json:"kind"`
	Resolved bool   `json:"resolved"`
}

// CLIHover is a JSON-friendly hover description.
type CLIHover struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	File        string `json:"file,omitempty"`
	Line        int    `json:"line,omitempty"`
	Col         int    `json:"col,omitempty"`
	Depth       int    `json:"depth,omitempty"`
}

// CLITypeSymbol is a JSON-friendly class in a hierarchy.
type CLITypeSymbol struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	File  string `json:"file,omitempty"`
	Line  int    `json:"line,omitempty"`
	Depth int    `json:"depth"`
}

// CLITypeRelation is a JSON-friendly hierarchy edge.
type CLITypeRelation struct {
	Symbol CLITypeSymbol `json:"symbol"`
	Kind   string        `json:"kind"`
}

// CLITypeHierarchy is a JSON-friendly type hierarchy.
type CLITypeHierarchy struct {
	Symbol     CLITypeSymbol     `json:"symbol"`
	Supertypes []CLITypeRelation `json:"supertypes"`
	Subtypes   []CLITypeRelation `json:"subtypes"`
}

// CLIFile is a JSON-friendly stored file record.
type CLIFile struct {
	Path       string `json:"path"`
	Language   string `json:"language,omitempty"`
	ErrorCount int    `json:"error_count"`
}

// CLISummary summarizes an analysis run.
type CLISummary struct {
	Root            string         `json:"root"`
	Files           int            `json:"files"`
	FilesWithErrors int            `json:"files_with_errors"`
	Errors          int            `json:"errors"`
	BySeverity      map[string]int `json:"by_severity"`
}

// CLIStats is a JSON-friendly model size report.
type CLIStats struct {
	Root          string `json:"root"`
	Files         int    `json:"files"`
	Classes       int    `json:"classes"`
	Elements      int    `json:"elements"`
	Relationships int    `json:"relationships"`
	Locations     int    `json:"locations"`
	Sources       int    `json:"sources"`
}
