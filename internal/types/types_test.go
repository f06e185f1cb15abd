package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(ts []*InterfaceType) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}

func requireLUB(t *testing.T, u *Universe, want, a, b Type) {
	t.Helper()
	got, err := u.LeastUpperBound(a, b)
	require.NoError(t, err)
	assert.Same(t, want, got, "lub(%s, %s)", a, b)
	got, err = u.LeastUpperBound(b, a)
	require.NoError(t, err)
	assert.Same(t, want, got, "lub(%s, %s)", b, a)
}

// =============================================================================
// LongestPathToRoot
// =============================================================================

func TestLongestPathToRoot_Object(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	d, err := u.LongestPathToRoot(u.ObjectType())
	require.NoError(t, err)
	assert.Equal(t, 0, d)
}

func TestLongestPathToRoot_MultipleInterfacePaths(t *testing.T) {
	t.Parallel()
	// B, C implement A; D implements C; E implements B and D.
	u := NewUniverse()
	a := u.NewClass("A", nil)
	b := u.NewClass("B", nil)
	c := u.NewClass("C", nil)
	d := u.NewClass("D", nil)
	e := u.NewClass("E", nil)
	b.SetInterfaces(a.Type())
	c.SetInterfaces(a.Type())
	d.SetInterfaces(c.Type())
	e.SetInterfaces(b.Type(), d.Type())

	for _, tc := range []struct {
		class *ClassElement
		want  int
	}{{a, 1}, {b, 2}, {c, 2}, {d, 3}, {e, 4}} {
		got, err := u.LongestPathToRoot(tc.class.Type())
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.class.Name)
	}
}

func TestLongestPathToRoot_MultipleSuperclassPaths(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil)
	b := u.NewClass("B", a.Type())
	c := u.NewClass("C", a.Type())
	d := u.NewClass("D", c.Type())
	e := u.NewClass("E", b.Type())
	e.SetInterfaces(d.Type())

	got, err := u.LongestPathToRoot(b.Type())
	require.NoError(t, err)
	assert.Equal(t, 2, got)
	got, err = u.LongestPathToRoot(e.Type())
	require.NoError(t, err)
	assert.Equal(t, 4, got)
}

func TestLongestPathToRoot_Diamond(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil)
	b := u.NewClass("B", nil)
	c := u.NewClass("C", nil)
	d := u.NewClass("D", nil)
	b.SetInterfaces(a.Type())
	c.SetInterfaces(b.Type())
	d.SetInterfaces(b.Type(), c.Type())

	db, _ := u.LongestPathToRoot(b.Type())
	dc, _ := u.LongestPathToRoot(c.Type())
	dd, err := u.LongestPathToRoot(d.Type())
	require.NoError(t, err)
	assert.Equal(t, 1+max(db, dc), dd)
	assert.Equal(t, 4, dd)
}

func TestLongestPathToRoot_Cycle(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil)
	b := u.NewClass("B", a.Type())
	a.SetSupertype(b.Type())

	_, err := u.LongestPathToRoot(a.Type())
	require.ErrorIs(t, err, ErrCycle)
}

func TestLongestPathToRoot_InvalidatedByEdit(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil)
	b := u.NewClass("B", nil)

	got, err := u.LongestPathToRoot(b.Type())
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	b.SetSupertype(a.Type())
	got, err = u.LongestPathToRoot(b.Type())
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

// =============================================================================
// SuperinterfaceSet
// =============================================================================

func TestSuperinterfaceSet_MultipleInterfacePaths(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil)
	b := u.NewClass("B", nil)
	c := u.NewClass("C", nil)
	d := u.NewClass("D", nil)
	e := u.NewClass("E", nil)
	b.SetInterfaces(a.Type())
	c.SetInterfaces(a.Type())
	d.SetInterfaces(c.Type())
	e.SetInterfaces(b.Type(), d.Type())

	setD, err := u.SuperinterfaceSet(d.Type())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Object", "A", "C"}, names(setD))

	setE, err := u.SuperinterfaceSet(e.Type())
	require.NoError(t, err)
	require.Len(t, setE, 5)
	assert.ElementsMatch(t, []string{"Object", "A", "B", "C", "D"}, names(setE))
}

func TestSuperinterfaceSet_MultipleSuperclassPaths(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil)
	b := u.NewClass("B", a.Type())
	c := u.NewClass("C", a.Type())
	d := u.NewClass("D", c.Type())
	e := u.NewClass("E", b.Type())
	e.SetInterfaces(d.Type())

	setD, err := u.SuperinterfaceSet(d.Type())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Object", "A", "C"}, names(setD))

	setE, err := u.SuperinterfaceSet(e.Type())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Object", "A", "B", "C", "D"}, names(setE))
}

func TestSuperinterfaceSet_SubstitutesArguments(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	str := u.NewClass("String", nil)
	a := u.NewClass("A", nil, "T")
	b := u.NewClass("B", nil, "U")
	b.SetSupertype(u.Parameterize(a, b.TypeParameters()[0]))

	set, err := u.SuperinterfaceSet(u.Parameterize(b, str.Type()))
	require.NoError(t, err)
	assert.Equal(t, []string{"A<String>", "Object"}, names(set))
	assert.Same(t, u.Parameterize(a, str.Type()), set[0])
}

func TestSuperinterfaceSet_Cycle(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil)
	b := u.NewClass("B", nil)
	a.SetInterfaces(b.Type())
	b.SetInterfaces(a.Type())

	_, err := u.SuperinterfaceSet(a.Type())
	require.ErrorIs(t, err, ErrCycle)
}

// =============================================================================
// LeastUpperBound
// =============================================================================

func TestLeastUpperBound_Self(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil)
	requireLUB(t, u, a.Type(), a.Type(), a.Type())
}

func TestLeastUpperBound_Object(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil)
	b := u.NewClass("B", nil)
	assert.Nil(t, u.Object().Supertype())
	assert.Same(t, a.Supertype(), b.Supertype())
	requireLUB(t, u, u.ObjectType(), a.Type(), b.Type())
}

func TestLeastUpperBound_DirectInterface(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil)
	b := u.NewClass("B", nil)
	c := u.NewClass("C", nil)
	b.SetInterfaces(a.Type())
	c.SetInterfaces(b.Type())
	requireLUB(t, u, b.Type(), b.Type(), c.Type())
}

func TestLeastUpperBound_DirectSubclass(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil)
	b := u.NewClass("B", a.Type())
	c := u.NewClass("C", b.Type())
	requireLUB(t, u, b.Type(), b.Type(), c.Type())
}

func TestLeastUpperBound_Mixin(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil)
	b := u.NewClass("B", a.Type())
	c := u.NewClass("C", a.Type())
	d := u.NewClass("D", b.Type())
	d.SetMixins(
		u.NewClass("M", nil).Type(), u.NewClass("N", nil).Type(),
		u.NewClass("O", nil).Type(), u.NewClass("P", nil).Type(),
	)
	requireLUB(t, u, a.Type(), d.Type(), c.Type())
}

func TestLeastUpperBound_SharedSuperclass(t *testing.T) {
	t.Parallel()

	t.Run("siblings", func(t *testing.T) {
		u := NewUniverse()
		a := u.NewClass("A", nil)
		b := u.NewClass("B", a.Type())
		c := u.NewClass("C", a.Type())
		requireLUB(t, u, a.Type(), b.Type(), c.Type())
	})
	t.Run("uneven depth", func(t *testing.T) {
		u := NewUniverse()
		a := u.NewClass("A", nil)
		b := u.NewClass("B", a.Type())
		c := u.NewClass("C", a.Type())
		d := u.NewClass("D", c.Type())
		requireLUB(t, u, a.Type(), b.Type(), d.Type())
	})
	t.Run("nearer ancestor", func(t *testing.T) {
		u := NewUniverse()
		a := u.NewClass("A", nil)
		b := u.NewClass("B", a.Type())
		c := u.NewClass("C", b.Type())
		d := u.NewClass("D", b.Type())
		requireLUB(t, u, b.Type(), c.Type(), d.Type())
	})
	t.Run("unrelated interfaces", func(t *testing.T) {
		u := NewUniverse()
		a := u.NewClass("A", nil)
		a2 := u.NewClass("A2", nil)
		a3 := u.NewClass("A3", nil)
		b := u.NewClass("B", a.Type())
		c := u.NewClass("C", a.Type())
		b.SetInterfaces(a2.Type())
		c.SetInterfaces(a3.Type())
		requireLUB(t, u, a.Type(), b.Type(), c.Type())
	})
}

func TestLeastUpperBound_SharedSuperinterface(t *testing.T) {
	t.Parallel()

	t.Run("siblings", func(t *testing.T) {
		u := NewUniverse()
		a := u.NewClass("A", nil)
		b := u.NewClass("B", nil)
		c := u.NewClass("C", nil)
		b.SetInterfaces(a.Type())
		c.SetInterfaces(a.Type())
		requireLUB(t, u, a.Type(), b.Type(), c.Type())
	})
	t.Run("uneven depth", func(t *testing.T) {
		u := NewUniverse()
		a := u.NewClass("A", nil)
		b := u.NewClass("B", nil)
		c := u.NewClass("C", nil)
		d := u.NewClass("D", nil)
		b.SetInterfaces(a.Type())
		c.SetInterfaces(a.Type())
		d.SetInterfaces(c.Type())
		requireLUB(t, u, a.Type(), b.Type(), d.Type())
	})
	t.Run("nearer ancestor", func(t *testing.T) {
		u := NewUniverse()
		a := u.NewClass("A", nil)
		b := u.NewClass("B", nil)
		c := u.NewClass("C", nil)
		d := u.NewClass("D", nil)
		b.SetInterfaces(a.Type())
		c.SetInterfaces(b.Type())
		d.SetInterfaces(b.Type())
		requireLUB(t, u, b.Type(), c.Type(), d.Type())
	})
	t.Run("extra interfaces", func(t *testing.T) {
		u := NewUniverse()
		a := u.NewClass("A", nil)
		a2 := u.NewClass("A2", nil)
		a3 := u.NewClass("A3", nil)
		b := u.NewClass("B", nil)
		c := u.NewClass("C", nil)
		b.SetInterfaces(a.Type(), a2.Type())
		c.SetInterfaces(a.Type(), a3.Type())
		requireLUB(t, u, a.Type(), b.Type(), c.Type())
	})
}

func TestLeastUpperBound_TieIsSymmetric(t *testing.T) {
	t.Parallel()
	// B and C both implement I and J at the same depth.
	u := NewUniverse()
	i := u.NewClass("I", nil)
	j := u.NewClass("J", nil)
	b := u.NewClass("B", nil)
	c := u.NewClass("C", nil)
	b.SetInterfaces(j.Type(), i.Type())
	c.SetInterfaces(i.Type(), j.Type())

	requireLUB(t, u, i.Type(), b.Type(), c.Type())
}

func TestLeastUpperBound_SpecialTypes(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil)

	requireLUB(t, u, Dynamic, a.Type(), Dynamic)
	requireLUB(t, u, a.Type(), a.Type(), Bottom)
}

// =============================================================================
// Subtyping
// =============================================================================

func TestIsSubtypeOf(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil)
	b := u.NewClass("B", a.Type())
	c := u.NewClass("C", b.Type())
	obj := u.ObjectType()

	tests := []struct {
		name string
		a, b Type
		want bool
	}{
		{"self", a.Type(), a.Type(), true},
		{"direct", b.Type(), a.Type(), true},
		{"direct reversed", a.Type(), b.Type(), false},
		{"indirect", c.Type(), a.Type(), true},
		{"indirect reversed", a.Type(), c.Type(), false},
		{"object", a.Type(), obj, true},
		{"object reversed", obj, a.Type(), false},
		{"dynamic below", Dynamic, a.Type(), true},
		{"dynamic above", a.Type(), Dynamic, true},
		{"bottom below", Bottom, a.Type(), true},
		{"bottom above", a.Type(), Bottom, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, u.IsSubtypeOf(tt.a, tt.b))
			assert.Equal(t, tt.want, u.IsSupertypeOf(tt.b, tt.a))
		})
	}
}

func TestIsMoreSpecificThan(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil)
	b := u.NewClass("B", a.Type())
	c := u.NewClass("C", b.Type())

	assert.True(t, u.IsMoreSpecificThan(Bottom, a.Type()))
	assert.True(t, u.IsMoreSpecificThan(a.Type(), a.Type()))
	assert.True(t, u.IsMoreSpecificThan(b.Type(), a.Type()))
	assert.False(t, u.IsMoreSpecificThan(a.Type(), b.Type()))
	assert.True(t, u.IsMoreSpecificThan(c.Type(), a.Type()))
	assert.True(t, u.IsMoreSpecificThan(a.Type(), Dynamic))
	assert.False(t, u.IsMoreSpecificThan(Dynamic, a.Type()))
}

func TestIsMoreSpecificThan_Covariance(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil, "E")
	i := u.NewClass("I", nil)
	j := u.NewClass("J", i.Type())
	ai := u.Parameterize(a, i.Type())
	aj := u.Parameterize(a, j.Type())

	assert.True(t, u.IsMoreSpecificThan(aj, ai))
	assert.False(t, u.IsMoreSpecificThan(ai, aj))
	assert.True(t, u.IsSubtypeOf(aj, ai))
}

func TestIsDirectSupertypeOf(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil)
	b := u.NewClass("B", a.Type())
	c := u.NewClass("C", b.Type())

	assert.True(t, u.IsDirectSupertypeOf(a.Type(), b.Type()))
	assert.False(t, u.IsDirectSupertypeOf(a.Type(), c.Type()))
}

// =============================================================================
// Substitute and identity
// =============================================================================

func TestSubstitute_Equal(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil)
	b := u.NewClass("B", nil)
	e := u.NewTypeParameter("E", nil)
	typ := u.Parameterize(a, e)

	got := u.Substitute(typ, []Type{b.Type()}, []Type{e})
	result, ok := got.(*InterfaceType)
	require.True(t, ok)
	assert.Same(t, a, result.Element())
	require.Len(t, result.TypeArguments(), 1)
	assert.Same(t, b.Type(), result.TypeArguments()[0])
}

func TestSubstitute_NotEqual(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil)
	b := u.NewClass("B", nil)
	e := u.NewTypeParameter("E", nil)
	f := u.NewTypeParameter("F", nil)
	typ := u.Parameterize(a, e)

	got := u.Substitute(typ, []Type{b.Type()}, []Type{f})
	assert.Same(t, typ, got)
	assert.Equal(t, []Type{e}, typ.TypeArguments())
}

func TestParameterize_Interns(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil, "T")
	b := u.NewClass("B", nil)

	assert.Same(t, u.Parameterize(a, b.Type()), u.Parameterize(a, b.Type()))
	assert.NotSame(t, u.Parameterize(a, b.Type()), u.Parameterize(a, u.ObjectType()))
	assert.True(t, Identical(a.Type(), u.Parameterize(a, a.TypeParameters()[0])))
	assert.Equal(t, "A<T>", a.Type().String())
	assert.Empty(t, b.Type().TypeArguments())
}

func TestTypeParameters_AreDistinctByDeclaration(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil, "T")
	b := u.NewClass("B", nil, "T")
	assert.False(t, Identical(a.TypeParameters()[0], b.TypeParameters()[0]))
}

func TestTypeParameter_UsesBound(t *testing.T) {
	t.Parallel()
	u := NewUniverse()
	a := u.NewClass("A", nil)
	b := u.NewClass("B", a.Type())
	p := u.NewTypeParameter("T", b.Type())

	assert.True(t, u.IsSubtypeOf(p, a.Type()))
	assert.False(t, u.IsSubtypeOf(a.Type(), p))
	got, err := u.LeastUpperBound(p, a.Type())
	require.NoError(t, err)
	assert.Same(t, a.Type(), got)
}
