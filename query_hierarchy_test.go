package arbor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeHierarchy_Superclass(t *testing.T) {
	t.Parallel()
	e, root := setupQueryTest(t, hierarchyProject)

	h, err := e.TypeHierarchy(testContext(t), filepath.Join(root, "B.java"), 6)
	require.NoError(t, err)
	require.NotNil(t, h)

	assert.Equal(t, "B", h.Symbol.Name)
	assert.Equal(t, "class", h.Symbol.Kind)
	assert.Equal(t, 1, h.Symbol.Depth)
	require.NotNil(t, h.Symbol.Location)
	assert.Equal(t, filepath.Join(root, "B.java"), h.Symbol.Location.File)

	require.Len(t, h.Supertypes, 1)
	assert.Equal(t, "Object", h.Supertypes[0].Symbol.Name)
	assert.Equal(t, RelationExtends, h.Supertypes[0].Kind)
	assert.Nil(t, h.Supertypes[0].Symbol.Location)
	assert.Zero(t, h.Supertypes[0].Symbol.Depth)

	require.Len(t, h.Subtypes, 2)
	assert.Equal(t, "A", h.Subtypes[0].Symbol.Name)
	assert.Equal(t, "C", h.Subtypes[1].Symbol.Name)
	for _, sub := range h.Subtypes {
		assert.Equal(t, RelationExtends, sub.Kind)
	}
	assert.Equal(t, 2, h.Subtypes[0].Symbol.Depth)
}

func TestTypeHierarchy_Subclass(t *testing.T) {
	t.Parallel()
	e, root := setupQueryTest(t, hierarchyProject)

	h, err := e.TypeHierarchy(testContext(t), filepath.Join(root, "A.java"), 6)
	require.NoError(t, err)
	require.NotNil(t, h)

	require.Len(t, h.Supertypes, 2)
	assert.Equal(t, "B", h.Supertypes[0].Symbol.Name)
	assert.Equal(t, RelationExtends, h.Supertypes[0].Kind)
	assert.Equal(t, "I", h.Supertypes[1].Symbol.Name)
	assert.Equal(t, RelationImplements, h.Supertypes[1].Kind)
	assert.Equal(t, "interface", h.Supertypes[1].Symbol.Kind)
	assert.Empty(t, h.Subtypes)
}

func TestTypeHierarchy_Interface(t *testing.T) {
	t.Parallel()
	files := map[string]string{
		"I.java": "interface I {}",
		"J.java": "interface J extends I {}",
		"A.java": "class A implements I {}",
	}
	e, root := setupQueryTest(t, files)

	h, err := e.TypeHierarchy(testContext(t), filepath.Join(root, "I.java"), 10)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "interface", h.Symbol.Kind)
	assert.Empty(t, h.Supertypes, "interfaces do not report the root")

	require.Len(t, h.Subtypes, 2)
	assert.Equal(t, "J", h.Subtypes[0].Symbol.Name)
	assert.Equal(t, RelationExtends, h.Subtypes[0].Kind)
	assert.Equal(t, "A", h.Subtypes[1].Symbol.Name)
	assert.Equal(t, RelationImplements, h.Subtypes[1].Kind)

	h, err = e.TypeHierarchy(testContext(t), filepath.Join(root, "J.java"), 10)
	require.NoError(t, err)
	require.NotNil(t, h)
	require.Len(t, h.Supertypes, 1)
	assert.Equal(t, "I", h.Supertypes[0].Symbol.Name)
	assert.Equal(t, RelationExtends, h.Supertypes[0].Kind)
}

func TestTypeHierarchy_FromReference(t *testing.T) {
	t.Parallel()
	e, root := setupQueryTest(t, hierarchyProject)

	// The B in "class C extends B".
	h, err := e.TypeHierarchy(testContext(t), filepath.Join(root, "C.java"), 16)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "B", h.Symbol.Name)
	assert.Len(t, h.Subtypes, 2)
}

func TestTypeHierarchy_NoClass(t *testing.T) {
	t.Parallel()
	e, root := setupQueryTest(t, hierarchyProject)

	h, err := e.TypeHierarchy(testContext(t), filepath.Join(root, "B.java"), 0)
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestTypeHierarchy_UpdatesWithEdits(t *testing.T) {
	t.Parallel()
	e, root := setupQueryTest(t, hierarchyProject)
	c := filepath.Join(root, "C.java")

	require.NoError(t, e.UpdateContent(map[string]ContentChange{c: AddContent("class C {}")}))
	require.NoError(t, e.WaitIdle(testContext(t)))

	h, err := e.TypeHierarchy(testContext(t), filepath.Join(root, "B.java"), 6)
	require.NoError(t, err)
	require.NotNil(t, h)
	require.Len(t, h.Subtypes, 1)
	assert.Equal(t, "A", h.Subtypes[0].Symbol.Name)
}
