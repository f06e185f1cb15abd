// Package index records cross-file relationships between declarations
// ("A is referenced by this site", "I is implemented by C") and drops them
// in bulk when a file is invalidated.
package index

import (
	"cmp"
	"slices"
	"strconv"
	"sync"
)

// Element is a declaration identified by a stable location key.
type Element struct {
	Key    string
	Name   string
	Kind   string
	Source string // declaring file
	Offset int
}

// NewElement builds an element whose key is derived from the declaring
// file, the enclosing-element path, the name and the offset.
func NewElement(source, enclosing, name, kind string, offset int) *Element {
	key := source + "#"
	if enclosing != "" {
		key += enclosing + "."
	}
	key += name + "@" + strconv.Itoa(offset)
	return &Element{Key: key, Name: name, Kind: kind, Source: source, Offset: offset}
}

// Relationship is an interned relationship kind. Compare with ==.
type Relationship struct {
	name string
}

func (r *Relationship) String() string { return r.name }

var (
	relMu         sync.Mutex
	relationships = make(map[string]*Relationship)
)

// GetRelationship returns the unique Relationship with the given name.
func GetRelationship(name string) *Relationship {
	relMu.Lock()
	defer relMu.Unlock()
	if r, ok := relationships[name]; ok {
		return r
	}
	r := &Relationship{name: name}
	relationships[name] = r
	return r
}

// Well-known relationships recorded by resolution.
var (
	IsReferencedBy  = GetRelationship("is-referenced-by")
	IsExtendedBy    = GetRelationship("is-extended-by")
	IsImplementedBy = GetRelationship("is-implemented-by")
	IsMixedInBy     = GetRelationship("is-mixed-in-by")
	IsOverriddenBy  = GetRelationship("is-overridden-by")
)

// Location is a site holding evidence about an element. The site's file is
// the file of the element enclosing it.
type Location struct {
	Element   *Element
	Offset    int
	Length    int
	Qualified bool
	Resolved  bool
}

// Source returns the file the location lives in.
func (l Location) Source() string {
	if l.Element == nil {
		return ""
	}
	return l.Element.Source
}

type locationKey struct {
	site      string
	offset    int
	length    int
	qualified bool
	resolved  bool
}

func (l Location) key() locationKey {
	return locationKey{l.Element.Key, l.Offset, l.Length, l.Qualified, l.Resolved}
}

// locationSet is an insertion-ordered set of locations.
type locationSet struct {
	order []Location
	has   map[locationKey]bool
}

func (s *locationSet) add(l Location) bool {
	k := l.key()
	if s.has[k] {
		return false
	}
	if s.has == nil {
		s.has = make(map[locationKey]bool)
	}
	s.has[k] = true
	s.order = append(s.order, l)
	return true
}

// removeSource drops every location in source and reports how many went.
func (s *locationSet) removeSource(source string) int {
	kept := s.order[:0]
	removed := 0
	for _, l := range s.order {
		if l.Element.Source == source {
			delete(s.has, l.key())
			removed++
			continue
		}
		kept = append(kept, l)
	}
	clear(s.order[len(kept):])
	s.order = kept
	return removed
}

type entry struct {
	element *Element
	rels    map[*Relationship]*locationSet
}

// Fact is one recorded (element, relationship, location) triple.
type Fact struct {
	Element      *Element
	Relationship *Relationship
	Location     Location
}

// Index is an in-memory relationship store. It is safe for concurrent use;
// each call holds the lock only for its own lookup or mutation.
type Index struct {
	mu       sync.Mutex
	elements map[string]*entry
	facts    int
}

func New() *Index {
	return &Index{elements: make(map[string]*entry)}
}

// RecordRelationship adds location to the set for (element, rel). It is a
// no-op when element, location or the location's site element is nil.
func (x *Index) RecordRelationship(element *Element, rel *Relationship, location *Location) {
	if element == nil || rel == nil || location == nil || location.Element == nil {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	e, ok := x.elements[element.Key]
	if !ok {
		e = &entry{element: element, rels: make(map[*Relationship]*locationSet)}
		x.elements[element.Key] = e
	}
	set, ok := e.rels[rel]
	if !ok {
		set = &locationSet{}
		e.rels[rel] = set
	}
	if set.add(*location) {
		x.facts++
	}
}

// GetRelationships returns a copy of the locations recorded for
// (element, rel). The result is never nil.
func (x *Index) GetRelationships(element *Element, rel *Relationship) []Location {
	if element == nil {
		return []Location{}
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	e, ok := x.elements[element.Key]
	if !ok {
		return []Location{}
	}
	set, ok := e.rels[rel]
	if !ok {
		return []Location{}
	}
	return slices.Clone(set.order)
}

// Element returns the indexed element with the given key, or nil.
func (x *Index) Element(key string) *Element {
	x.mu.Lock()
	defer x.mu.Unlock()
	if e, ok := x.elements[key]; ok {
		return e.element
	}
	return nil
}

// ElementsNamed returns every indexed element with the given name, ordered
// by key.
func (x *Index) ElementsNamed(name string) []*Element {
	x.mu.Lock()
	defer x.mu.Unlock()
	var out []*Element
	for _, e := range x.elements {
		if e.element.Name == name {
			out = append(out, e.element)
		}
	}
	slices.SortFunc(out, func(a, b *Element) int { return cmp.Compare(a.Key, b.Key) })
	return out
}

// RemoveSource drops every element declared in source along with all of
// its relationships, and every location whose site is in source from any
// element's sets.
func (x *Index) RemoveSource(source string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for key, e := range x.elements {
		if e.element.Source == source {
			for _, set := range e.rels {
				x.facts -= len(set.order)
			}
			delete(x.elements, key)
			continue
		}
		for rel, set := range e.rels {
			x.facts -= set.removeSource(source)
			if len(set.order) == 0 {
				delete(e.rels, rel)
			}
		}
		if len(e.rels) == 0 {
			delete(x.elements, key)
		}
	}
}

// Clear drops everything.
func (x *Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	clear(x.elements)
	x.facts = 0
}

// ElementCount returns the number of elements with at least one
// relationship.
func (x *Index) ElementCount() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.elements)
}

// RelationshipCount returns the number of recorded facts.
func (x *Index) RelationshipCount() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.facts
}

// LocationCount returns the number of distinct locations.
func (x *Index) LocationCount() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	seen := make(map[locationKey]bool)
	for _, e := range x.elements {
		for _, set := range e.rels {
			for _, l := range set.order {
				seen[l.key()] = true
			}
		}
	}
	return len(seen)
}

// SourceCount returns the number of distinct files among declaring sources
// and location sites.
func (x *Index) SourceCount() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	seen := make(map[string]bool)
	for _, e := range x.elements {
		seen[e.element.Source] = true
		for _, set := range e.rels {
			for _, l := range set.order {
				seen[l.Element.Source] = true
			}
		}
	}
	return len(seen)
}

// Relationships returns every recorded fact ordered by element key, then
// relationship name, then insertion order.
func (x *Index) Relationships() []Fact {
	x.mu.Lock()
	defer x.mu.Unlock()
	keys := make([]string, 0, len(x.elements))
	for k := range x.elements {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]Fact, 0, x.facts)
	for _, k := range keys {
		e := x.elements[k]
		rels := make([]*Relationship, 0, len(e.rels))
		for r := range e.rels {
			rels = append(rels, r)
		}
		slices.SortFunc(rels, func(a, b *Relationship) int { return cmp.Compare(a.name, b.name) })
		for _, r := range rels {
			for _, l := range e.rels[r].order {
				out = append(out, Fact{Element: e.element, Relationship: r, Location: l})
			}
		}
	}
	return out
}

// Load records every fact. Used to restore a persisted snapshot.
func (x *Index) Load(facts []Fact) {
	for i := range facts {
		f := facts[i]
		x.RecordRelationship(f.Element, f.Relationship, &f.Location)
	}
}
