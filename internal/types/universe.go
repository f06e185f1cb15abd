package types

import "sync"

// RootName is the name of the synthesized root class.
const RootName = "Object"

// Universe owns the class elements of one analysis context: it synthesizes
// the root class, hands out declaration sequence numbers and interns
// interface types so identical types share a pointer.
type Universe struct {
	mu       sync.Mutex
	seq      int
	object   *ClassElement
	interned map[string]*InterfaceType
	depths   map[*ClassElement]int
}

// NewUniverse returns a universe holding only the root class.
func NewUniverse() *Universe {
	u := &Universe{
		interned: make(map[string]*InterfaceType),
		depths:   make(map[*ClassElement]int),
	}
	u.object = &ClassElement{Name: RootName, Kind: Class, universe: u}
	return u
}

// Object returns the root class.
func (u *Universe) Object() *ClassElement { return u.object }

// ObjectType returns the raw type of the root class.
func (u *Universe) ObjectType() *InterfaceType { return u.object.Type() }

// NewClass declares a class whose superclass is supertype, or the root when
// supertype is nil. Each name in params declares an unbounded type
// parameter.
func (u *Universe) NewClass(name string, supertype *InterfaceType, params ...string) *ClassElement {
	u.mu.Lock()
	u.seq++
	c := &ClassElement{Name: name, Kind: Class, seq: u.seq, universe: u}
	u.mu.Unlock()

	if supertype == nil {
		supertype = u.ObjectType()
	}
	c.supertype = supertype
	if len(params) > 0 {
		ps := make([]*TypeParameterType, len(params))
		for i, p := range params {
			ps[i] = u.NewTypeParameter(p, nil)
		}
		c.params = ps
	}
	return c
}

// NewTypeParameter declares a type parameter. A nil bound means the root.
func (u *Universe) NewTypeParameter(name string, bound Type) *TypeParameterType {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.seq++
	return &TypeParameterType{name: name, seq: u.seq, bound: bound}
}

// Parameterize returns the interned type c<args...>. Calling it twice with
// identical arguments returns the same pointer.
func (u *Universe) Parameterize(c *ClassElement, args ...Type) *InterfaceType {
	k := interfaceKey(c, args)
	u.mu.Lock()
	defer u.mu.Unlock()
	if t, ok := u.interned[k]; ok {
		return t
	}
	var cp []Type
	if len(args) > 0 {
		cp = make([]Type, len(args))
		copy(cp, args)
	}
	t := &InterfaceType{element: c, args: cp, k: k}
	u.interned[k] = t
	return t
}

// invalidate drops memoized path lengths after a hierarchy edit.
func (u *Universe) invalidate() {
	u.mu.Lock()
	clear(u.depths)
	u.mu.Unlock()
}

func (u *Universe) cachedDepth(c *ClassElement) (int, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	d, ok := u.depths[c]
	return d, ok
}

func (u *Universe) storeDepth(c *ClassElement, d int) {
	u.mu.Lock()
	u.depths[c] = d
	u.mu.Unlock()
}
