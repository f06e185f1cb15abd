package arbor

import (
	"cmp"
	"context"
	"path/filepath"
	"slices"

	"github.com/jward/arbor/internal/index"
	"github.com/jward/arbor/internal/protocol"
	"github.com/jward/arbor/internal/queue"
)

// Reference is a recorded site related to a declaration.
type Reference struct {
	File        string `json:"file"`
	Offset      int    `json:"offset"`
	Length      int    `json:"length"`
	StartLine   int    `json:"startLine,omitempty"`
	StartColumn int    `json:"startColumn,omitempty"`
	Kind        string `json:"kind"` // the relationship, e.g. "is-referenced-by"
	Qualified   bool   `json:"qualified"`
	Resolved    bool   `json:"resolved"`
}

// referenceRelationships are the relationships FindReferences reports, in
// output order.
var referenceRelationships = []*index.Relationship{
	index.IsReferencedBy,
	index.IsExtendedBy,
	index.IsImplementedBy,
	index.IsMixedInBy,
	index.IsOverriddenBy,
}

// Stats summarizes the engine's model.
type Stats struct {
	Roots         int `json:"roots"`
	Files         int `json:"files"`
	Classes       int `json:"classes"`
	Elements      int `json:"elements"`
	Relationships int `json:"relationships"`
	Locations     int `json:"locations"`
	Sources       int `json:"sources"`
	Queued        int `json:"queued"`
}

// current returns the up-to-date state of file, analyzing it first when
// it has not been analyzed or has changed. A file outside every root is an
// InvalidContextID error.
func (e *Engine) current(ctx context.Context, file string) (*fileState, error) {
	if e.rootFor(file) == nil {
		return nil, protocol.NewServerError(protocol.InvalidContextID, file)
	}
	st := e.files[file]
	if st == nil || st.stale || st.result == nil {
		if err := e.analyze(ctx, []string{file}); err != nil {
			return nil, err
		}
	} else if src, err := e.overlay.Contents(file); err != nil || src.Stamp != st.stamp {
		if err := e.analyze(ctx, []string{file}); err != nil {
			return nil, err
		}
	}
	if st = e.files[file]; st == nil || st.result == nil {
		return nil, nil
	}
	return st, nil
}

// query runs fn on the worker ahead of background work with the current
// state of file.
func (e *Engine) query(ctx context.Context, file string, fn func(ctx context.Context, abs string, st *fileState) error) error {
	abs, err := filepath.Abs(file)
	if err != nil {
		return err
	}
	var qerr error
	err = e.submit(ctx, queue.Interactive, func(ctx context.Context) {
		var st *fileState
		if st, qerr = e.current(ctx, abs); qerr == nil {
			qerr = fn(ctx, abs, st)
		}
	})
	if err != nil {
		return err
	}
	return qerr
}

// GetErrors returns the problems found in file, analyzing it first when
// needed. A file that cannot be analyzed, such as one in a disabled
// language, has no errors.
func (e *Engine) GetErrors(ctx context.Context, file string) ([]AnalysisError, error) {
	var out []AnalysisError
	err := e.query(ctx, file, func(_ context.Context, _ string, st *fileState) error {
		if st != nil {
			out = slices.Clone(st.errors)
		}
		return nil
	})
	return out, err
}

// GetHover describes the declaration named at offset in file. It returns
// nil when nothing is named there.
func (e *Engine) GetHover(ctx context.Context, file string, offset int) (*Hover, error) {
	var out *Hover
	err := e.query(ctx, file, func(_ context.Context, abs string, st *fileState) error {
		if st != nil {
			out = e.resolver.Hover(abs, offset)
		}
		return nil
	})
	return out, err
}

// FindReferences returns every recorded site related to the declaration
// named at offset in file: references, and for classes their subclasses,
// implementers and mixers, and for members their overrides. Results are
// ordered by relationship, then file, then offset.
func (e *Engine) FindReferences(ctx context.Context, file string, offset int) ([]Reference, error) {
	var out []Reference
	err := e.query(ctx, file, func(_ context.Context, abs string, st *fileState) error {
		if st == nil {
			return nil
		}
		elem := e.resolver.ElementAt(abs, offset)
		if elem == nil {
			return nil
		}
		for _, rel := range referenceRelationships {
			locs := e.index.GetRelationships(elem, rel)
			slices.SortFunc(locs, func(a, b index.Location) int {
				return cmp.Or(cmp.Compare(a.Source(), b.Source()), cmp.Compare(a.Offset, b.Offset))
			})
			for _, loc := range locs {
				out = append(out, e.reference(rel, loc))
			}
		}
		return nil
	})
	return out, err
}

func (e *Engine) reference(rel *index.Relationship, loc index.Location) Reference {
	ref := Reference{
		File:      loc.Source(),
		Offset:    loc.Offset,
		Length:    loc.Length,
		Kind:      rel.String(),
		Qualified: loc.Qualified,
		Resolved:  loc.Resolved,
	}
	if st := e.files[ref.File]; st != nil {
		ref.StartLine, ref.StartColumn = position(st.source, loc.Offset)
	}
	return ref
}

// Stats reports the size of the model.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	var out *Stats
	err := e.submit(ctx, queue.Interactive, func(context.Context) {
		s := &Stats{
			Roots:         len(e.roots),
			Elements:      e.index.ElementCount(),
			Relationships: e.index.RelationshipCount(),
			Locations:     e.index.LocationCount(),
			Sources:       e.index.SourceCount(),
			Queued:        e.queue.Len(),
		}
		for f, st := range e.files {
			if st.result != nil {
				s.Files++
				s.Classes += len(e.decls.Classes(f))
			}
		}
		out = s
	})
	return out, err
}

// position returns the 1-based line and column of offset in src.
func position(src []byte, offset int) (int, int) {
	line, col := 1, 1
	for i := 0; i < offset && i < len(src); i++ {
		if src[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
