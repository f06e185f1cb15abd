// Package cache holds, per analysis root, the libraries resolved so far and
// the units parsed but not yet resolved, and streams the resolved set to
// and from a line-oriented text form.
package cache

import (
	"slices"

	"github.com/jward/arbor/internal/ast"
)

// Library is the unit of resolution: a defining file, the files it sources
// and the files it imports. Resolved units and per-file stamps are recorded
// as resolution completes.
type Library struct {
	File          string
	SourceFiles   []string
	ImportedFiles []string
	Stamps        map[string]uint64

	resolved bool
	units    map[string]*ast.Node
}

// NewLibrary returns an unresolved library whose only source is file.
func NewLibrary(file string) *Library {
	return &Library{
		File:        file,
		SourceFiles: []string{file},
		Stamps:      make(map[string]uint64),
	}
}

// IsResolved reports whether resolution of the library has completed.
func (l *Library) IsResolved() bool { return l.resolved }

// MarkResolved records that resolution has completed.
func (l *Library) MarkResolved() { l.resolved = true }

// SetResolvedUnit records the resolved unit for one of the library's files.
func (l *Library) SetResolvedUnit(file string, unit *ast.Node) {
	if l.units == nil {
		l.units = make(map[string]*ast.Node)
	}
	l.units[file] = unit
}

// ResolvedUnit returns the resolved unit for file, or nil.
func (l *Library) ResolvedUnit(file string) *ast.Node {
	return l.units[file]
}

// Sources reports whether file is one of the library's source files.
func (l *Library) Sources(file string) bool {
	return slices.Contains(l.SourceFiles, file)
}

// Imports reports whether the library imports file.
func (l *Library) Imports(file string) bool {
	return slices.Contains(l.ImportedFiles, file)
}

// AddImport records an imported file once.
func (l *Library) AddImport(file string) {
	if file == l.File || l.Imports(file) {
		return
	}
	l.ImportedFiles = append(l.ImportedFiles, file)
}
