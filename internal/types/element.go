package types

// ClassKind distinguishes the flavours of class-like declaration.
type ClassKind uint8

const (
	Class ClassKind = iota
	Interface
	Enum
	Mixin
)

func (k ClassKind) String() string {
	switch k {
	case Interface:
		return "interface"
	case Enum:
		return "enum"
	case Mixin:
		return "mixin"
	default:
		return "class"
	}
}

// MemberKind distinguishes class members.
type MemberKind uint8

const (
	Field MemberKind = iota
	Method
	Constructor
)

func (k MemberKind) String() string {
	switch k {
	case Method:
		return "method"
	case Constructor:
		return "constructor"
	default:
		return "field"
	}
}

// Member is a field, method or constructor declared by a class.
type Member struct {
	Name   string
	Kind   MemberKind
	Offset int
	Length int
	Type   Type // declared field or return type, nil when absent
}

// ClassElement is a class-like declaration. Every class except the root
// has a supertype; NewClass defaults it to the root.
type ClassElement struct {
	Name     string
	Kind     ClassKind
	Source   string // declaring file
	Offset   int    // offset of the declared name
	Length   int
	Abstract bool

	seq        int
	universe   *Universe
	supertype  *InterfaceType
	interfaces []*InterfaceType
	mixins     []*InterfaceType
	params     []*TypeParameterType
	members    []*Member
	thisType   *InterfaceType
}

// Seq returns the declaration sequence number within the universe. The
// root is 0.
func (c *ClassElement) Seq() int { return c.seq }

// IsRoot reports whether c is the synthesized root of the universe.
func (c *ClassElement) IsRoot() bool { return c.seq == 0 }

// Supertype returns the superclass type, or nil for the root.
func (c *ClassElement) Supertype() *InterfaceType { return c.supertype }

func (c *ClassElement) Interfaces() []*InterfaceType { return c.interfaces }

func (c *ClassElement) Mixins() []*InterfaceType { return c.mixins }

func (c *ClassElement) TypeParameters() []*TypeParameterType { return c.params }

func (c *ClassElement) Members() []*Member { return c.members }

// SetSupertype replaces the superclass. nil resets it to the root.
func (c *ClassElement) SetSupertype(t *InterfaceType) {
	if c.IsRoot() {
		return
	}
	if t == nil {
		t = c.universe.ObjectType()
	}
	c.supertype = t
	c.universe.invalidate()
}

func (c *ClassElement) SetInterfaces(ts ...*InterfaceType) {
	c.interfaces = ts
	c.universe.invalidate()
}

func (c *ClassElement) SetMixins(ts ...*InterfaceType) {
	c.mixins = ts
	c.universe.invalidate()
}

// SetTypeParameters declares the class's type parameters, replacing any
// previous declaration.
func (c *ClassElement) SetTypeParameters(ps ...*TypeParameterType) {
	c.params = ps
	c.thisType = nil
}

// AddMember records a member declaration.
func (c *ClassElement) AddMember(m *Member) {
	c.members = append(c.members, m)
}

// Member returns the first member with the given name and kind, or nil.
func (c *ClassElement) Member(name string, kind MemberKind) *Member {
	for _, m := range c.members {
		if m.Name == name && m.Kind == kind {
			return m
		}
	}
	return nil
}

// Type returns the class's own type: the raw type for a non-generic class,
// or the class parameterized by its own type parameters.
func (c *ClassElement) Type() *InterfaceType {
	if c.thisType == nil {
		args := make([]Type, len(c.params))
		for i, p := range c.params {
			args[i] = p
		}
		c.thisType = c.universe.Parameterize(c, args...)
	}
	return c.thisType
}

// directSupertypes lists supertype, interfaces and mixins in that order.
func (c *ClassElement) directSupertypes() []*InterfaceType {
	out := make([]*InterfaceType, 0, 1+len(c.interfaces)+len(c.mixins))
	if c.supertype != nil {
		out = append(out, c.supertype)
	}
	out = append(out, c.interfaces...)
	out = append(out, c.mixins...)
	return out
}

func (c *ClassElement) String() string { return c.Kind.String() + " " + c.Name }
