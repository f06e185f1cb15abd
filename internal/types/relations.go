package types

// IsSubtypeOf reports whether a is a subtype of b: a and b are identical, b
// is in a's superinterface set, or an ancestor of a shares b's class with
// covariantly subtyped arguments. Bottom is a subtype of everything and
// Dynamic is both a subtype and a supertype of everything. A hierarchy
// cycle makes the answer false.
func (u *Universe) IsSubtypeOf(a, b Type) bool {
	return u.subtype(a, b, true)
}

// IsSupertypeOf reports whether b is a subtype of a.
func (u *Universe) IsSupertypeOf(a, b Type) bool {
	return u.IsSubtypeOf(b, a)
}

// IsMoreSpecificThan is IsSubtypeOf with Dynamic acting only as a top
// type: every type is more specific than Dynamic, but Dynamic is more
// specific only than itself.
func (u *Universe) IsMoreSpecificThan(a, b Type) bool {
	return u.subtype(a, b, false)
}

// IsDirectSupertypeOf reports whether a is the supertype, an interface or a
// mixin named directly by b's class.
func (u *Universe) IsDirectSupertypeOf(a, b *InterfaceType) bool {
	for _, s := range u.directSupertypesOf(b) {
		if Identical(s, a) {
			return true
		}
	}
	return false
}

func (u *Universe) subtype(a, b Type, dynamicIsBottom bool) bool {
	switch {
	case a == nil || b == nil:
		return false
	case Identical(a, b):
		return true
	case a == Bottom:
		return true
	case b == Dynamic:
		return true
	case a == Dynamic:
		return dynamicIsBottom
	case b == Bottom:
		return false
	}

	// Only the parameter itself or bottom fits an unknown instantiation.
	if _, ok := b.(*TypeParameterType); ok {
		return false
	}
	bi, ok := b.(*InterfaceType)
	if !ok {
		return false
	}
	if bi.element.IsRoot() {
		return true
	}
	ai := u.upperInterface(a)
	if Identical(ai, bi) {
		return true
	}

	ancestors, err := u.SuperinterfaceSet(ai)
	if err != nil {
		return false
	}
	for _, s := range append([]*InterfaceType{ai}, ancestors...) {
		if s == bi {
			return true
		}
		if s.element == bi.element && u.argumentsSubtype(s.args, bi.args, dynamicIsBottom) {
			return true
		}
	}
	return false
}

func (u *Universe) argumentsSubtype(as, bs []Type, dynamicIsBottom bool) bool {
	if len(bs) == 0 {
		return true
	}
	if len(as) == 0 {
		// A raw type stands for its class instantiated with dynamic.
		return dynamicIsBottom
	}
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if !u.subtype(as[i], bs[i], dynamicIsBottom) {
			return false
		}
	}
	return true
}

// Substitute replaces every occurrence of params[i] (matched by identity)
// in t with args[i]. When nothing matches, t itself is returned.
func (u *Universe) Substitute(t Type, args, params []Type) Type {
	if len(args) != len(params) || len(params) == 0 {
		return t
	}
	switch v := t.(type) {
	case *TypeParameterType:
		for i, p := range params {
			if Identical(v, p) {
				return args[i]
			}
		}
		return t
	case *InterfaceType:
		if len(v.args) == 0 {
			return t
		}
		var changed []Type
		for i, a := range v.args {
			s := u.Substitute(a, args, params)
			if s != a && changed == nil {
				changed = make([]Type, len(v.args))
				copy(changed, v.args[:i])
			}
			if changed != nil {
				changed[i] = s
			}
		}
		if changed == nil {
			return t
		}
		return u.Parameterize(v.element, changed...)
	}
	return t
}
