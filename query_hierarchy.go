package arbor

import (
	"cmp"
	"context"
	"slices"

	"github.com/jward/arbor/internal/index"
	"github.com/jward/arbor/internal/types"
)

// Relation kinds reported in a TypeHierarchy.
const (
	RelationExtends    = "extends"
	RelationImplements = "implements"
	RelationMixesIn    = "mixes-in"
)

// TypeSymbol identifies a class in a hierarchy.
type TypeSymbol struct {
	Name     string    `json:"name"`
	Kind     string    `json:"kind"`
	Location *Location `json:"location,omitempty"` // nil for the root and library classes
	Depth    int       `json:"depth"`              // longest path to the root
}

// TypeRelation represents a relationship between two types in a hierarchy.
type TypeRelation struct {
	Symbol TypeSymbol `json:"symbol"`
	Kind   string     `json:"kind"` // RelationExtends, RelationImplements or RelationMixesIn
}

// TypeHierarchy is a one-level hierarchy view of a class: its direct
// supertypes from the type model and its direct subtypes from the
// relationship index.
type TypeHierarchy struct {
	Symbol     TypeSymbol      `json:"symbol"`
	Supertypes []*TypeRelation `json:"supertypes"`
	Subtypes   []*TypeRelation `json:"subtypes"`
}

// subtypeRelationships maps the index relationships recorded on a
// supertype to the relation kind of the subtype.
var subtypeRelationships = []struct {
	rel  *index.Relationship
	kind string
}{
	{index.IsExtendedBy, RelationExtends},
	{index.IsImplementedBy, RelationImplements},
	{index.IsMixedInBy, RelationMixesIn},
}

// TypeHierarchy returns the hierarchy of the class named at offset in
// file, or nil when no declared or library class is named there.
func (e *Engine) TypeHierarchy(ctx context.Context, file string, offset int) (*TypeHierarchy, error) {
	var out *TypeHierarchy
	err := e.query(ctx, file, func(_ context.Context, abs string, st *fileState) error {
		if st == nil {
			return nil
		}
		if c := e.resolver.ClassAt(abs, offset); c != nil {
			out = e.hierarchy(c)
		}
		return nil
	})
	return out, err
}

func (e *Engine) hierarchy(c *types.ClassElement) *TypeHierarchy {
	h := &TypeHierarchy{
		Symbol:     e.typeSymbol(c),
		Supertypes: []*TypeRelation{},
		Subtypes:   []*TypeRelation{},
	}

	if s := c.Supertype(); s != nil && !(s.Element().IsRoot() && c.Kind == types.Interface) {
		h.Supertypes = append(h.Supertypes, &TypeRelation{Symbol: e.typeSymbol(s.Element()), Kind: RelationExtends})
	}
	for _, t := range c.Interfaces() {
		kind := RelationImplements
		if c.Kind == types.Interface {
			kind = RelationExtends
		}
		h.Supertypes = append(h.Supertypes, &TypeRelation{Symbol: e.typeSymbol(t.Element()), Kind: kind})
	}
	for _, t := range c.Mixins() {
		h.Supertypes = append(h.Supertypes, &TypeRelation{Symbol: e.typeSymbol(t.Element()), Kind: RelationMixesIn})
	}

	elem := e.decls.Element(c)
	if elem == nil {
		return h
	}
	seen := make(map[*types.ClassElement]bool)
	for _, sr := range subtypeRelationships {
		var subs []*types.ClassElement
		for _, loc := range e.index.GetRelationships(elem, sr.rel) {
			if loc.Element == nil {
				continue
			}
			sub := e.decls.ClassByKey(loc.Element.Key)
			if sub == nil || seen[sub] {
				continue
			}
			seen[sub] = true
			subs = append(subs, sub)
		}
		slices.SortFunc(subs, func(a, b *types.ClassElement) int {
			return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Source, b.Source))
		})
		for _, sub := range subs {
			h.Subtypes = append(h.Subtypes, &TypeRelation{Symbol: e.typeSymbol(sub), Kind: sr.kind})
		}
	}
	return h
}

func (e *Engine) typeSymbol(c *types.ClassElement) TypeSymbol {
	s := TypeSymbol{Name: c.Name, Kind: c.Kind.String()}
	if loc, ok := e.decls.Location(c); ok {
		s.Location = &loc
	}
	if d, err := e.decls.Universe().LongestPathToRoot(c.Type()); err == nil {
		s.Depth = d
	}
	return s
}
