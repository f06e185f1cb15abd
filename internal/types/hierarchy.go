package types

import "fmt"

// LongestPathToRoot returns the length of the longest chain of supertype,
// interface and mixin edges from t to the root. The root is 0. Each edge
// counts 1 whatever its kind. Results are memoized per class until the
// hierarchy is edited.
func (u *Universe) LongestPathToRoot(t Type) (int, error) {
	c := u.classOf(t)
	if c == nil {
		return 0, nil
	}
	return u.depth(c, make(map[*ClassElement]bool))
}

func (u *Universe) depth(c *ClassElement, visiting map[*ClassElement]bool) (int, error) {
	if d, ok := u.cachedDepth(c); ok {
		return d, nil
	}
	supers := c.directSupertypes()
	if len(supers) == 0 {
		return 0, nil
	}
	if visiting[c] {
		return 0, fmt.Errorf("%s: %w", c.Name, ErrCycle)
	}
	visiting[c] = true
	defer delete(visiting, c)

	longest := 0
	for _, s := range supers {
		d, err := u.depth(s.element, visiting)
		if err != nil {
			return 0, err
		}
		longest = max(longest, d)
	}
	u.storeDepth(c, longest+1)
	return longest + 1, nil
}

// SuperinterfaceSet returns every proper ancestor of t reachable through
// supertype, interface and mixin edges, including the root, each exactly
// once in discovery order. Ancestors of a parameterized type have t's
// arguments substituted for the class's parameters.
func (u *Universe) SuperinterfaceSet(t *InterfaceType) ([]*InterfaceType, error) {
	type frame struct {
		parents []*InterfaceType
		next    int
		class   *ClassElement
	}

	var (
		result     []*InterfaceType
		seen       = make(map[*InterfaceType]bool)
		inProgress = map[*ClassElement]bool{t.element: true}
		stack      = []*frame{{parents: u.directSupertypesOf(t), class: t.element}}
	)

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next == len(top.parents) {
			delete(inProgress, top.class)
			stack = stack[:len(stack)-1]
			continue
		}
		p := top.parents[top.next]
		top.next++

		if inProgress[p.element] {
			return nil, fmt.Errorf("%s: %w", p.element.Name, ErrCycle)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		result = append(result, p)
		inProgress[p.element] = true
		stack = append(stack, &frame{parents: u.directSupertypesOf(p), class: p.element})
	}
	return result, nil
}

// directSupertypesOf returns t's direct supertypes with t's type arguments
// substituted for its class's parameters.
func (u *Universe) directSupertypesOf(t *InterfaceType) []*InterfaceType {
	supers := t.element.directSupertypes()
	params := t.element.params
	if len(t.args) == 0 || len(t.args) != len(params) {
		return supers
	}
	from := make([]Type, len(params))
	for i, p := range params {
		from[i] = p
	}
	out := make([]*InterfaceType, len(supers))
	for i, s := range supers {
		out[i] = u.Substitute(s, t.args, from).(*InterfaceType)
	}
	return out
}

// LeastUpperBound returns the most specific type that both a and b are
// subtypes of. Candidates are the types shared by a and b's superinterface
// sets (each including the type itself); the one with the longest path to
// the root wins, and ties go to the earliest declared class so the result
// does not depend on argument order. The root is always a candidate.
func (u *Universe) LeastUpperBound(a, b Type) (Type, error) {
	switch {
	case a == nil:
		return b, nil
	case b == nil, Identical(a, b):
		return a, nil
	case a == Dynamic || b == Dynamic:
		return Dynamic, nil
	case a == Bottom:
		return b, nil
	case b == Bottom:
		return a, nil
	}

	ia, ib := u.upperInterface(a), u.upperInterface(b)
	if Identical(ia, ib) {
		return ia, nil
	}
	setA, err := u.SuperinterfaceSet(ia)
	if err != nil {
		return nil, err
	}
	setB, err := u.SuperinterfaceSet(ib)
	if err != nil {
		return nil, err
	}

	inB := make(map[*InterfaceType]bool, len(setB)+1)
	inB[ib] = true
	for _, t := range setB {
		inB[t] = true
	}

	var (
		best      *InterfaceType
		bestDepth = -1
	)
	for _, t := range append([]*InterfaceType{ia}, setA...) {
		if !inB[t] {
			continue
		}
		d, err := u.LongestPathToRoot(t)
		if err != nil {
			return nil, err
		}
		if d > bestDepth || (d == bestDepth && before(t, best)) {
			best, bestDepth = t, d
		}
	}
	if best == nil {
		return u.ObjectType(), nil
	}
	return best, nil
}

// before orders same-depth candidates by declaration, then by identity key.
func before(a, b *InterfaceType) bool {
	if a.element.seq != b.element.seq {
		return a.element.seq < b.element.seq
	}
	return a.k < b.k
}

// upperInterface maps a type parameter to its bound (or the root) so it
// can take part in hierarchy walks.
func (u *Universe) upperInterface(t Type) *InterfaceType {
	for range 32 {
		switch v := t.(type) {
		case *InterfaceType:
			return v
		case *TypeParameterType:
			if v.bound == nil {
				return u.ObjectType()
			}
			t = v.bound
		default:
			return u.ObjectType()
		}
	}
	return u.ObjectType()
}

func (u *Universe) classOf(t Type) *ClassElement {
	switch v := t.(type) {
	case *InterfaceType:
		return v.element
	case *TypeParameterType:
		return u.upperInterface(v).element
	}
	return nil
}
