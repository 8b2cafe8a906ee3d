package schema

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Valid(t *testing.T) {
	r := Default()

	assert.Equal(t, []string{TablePages, TableContent, TableWall, TableBrick, TableL10nCfg}, r.Tables())

	rels, err := r.RelationsOf(TableWall)
	require.NoError(t, err)
	require.Len(t, rels, 2)
	assert.Equal(t, FieldWallContent, rels[0].Field)
	assert.Equal(t, ParentPointer, rels[0].Kind)
	assert.Equal(t, ChildCollection, rels[1].Kind)
	assert.Equal(t, TableBrick, rels[1].TargetTable)
}

func TestRelationsOf_UnknownTable(t *testing.T) {
	_, err := Default().RelationsOf("tx_news")
	assert.True(t, errors.Is(err, ErrUnknownTable))
}

func TestInverseOf(t *testing.T) {
	r := Default()

	inv, ok, err := r.InverseOf(TableContent, FieldContentWalls)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ParentPointer, inv.Kind)
	assert.Equal(t, TableContent, inv.TargetTable)
	assert.Equal(t, FieldWallContent, inv.Field)

	inv, ok, err = r.InverseOf(TableBrick, FieldBrickWall)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ChildCollection, inv.Kind)
	assert.Equal(t, TableBrick, inv.TargetTable)
	assert.Equal(t, FieldWallBricks, inv.Field)

	_, _, err = r.InverseOf(TableBrick, "missing")
	assert.True(t, errors.Is(err, ErrUnknownField))
}

func TestNewRegistry_BidirectionalInvariant(t *testing.T) {
	tests := []struct {
		name   string
		tables []Table
		want   string
	}{
		{
			name: "collection without inverse",
			tables: []Table{
				{Name: "a", Relations: []RelationField{{Field: "kids", Kind: ChildCollection, TargetTable: "b"}}},
				{Name: "b"},
			},
			want: "has no inverse field",
		},
		{
			name: "inverse points elsewhere",
			tables: []Table{
				{Name: "a", Relations: []RelationField{{Field: "kids", Kind: ChildCollection, TargetTable: "b", InverseField: "parent"}}},
				{Name: "b", Relations: []RelationField{{Field: "parent", Kind: ParentPointer, TargetTable: "b"}}},
			},
			want: "needs pointer b.parent",
		},
		{
			name: "unknown target",
			tables: []Table{
				{Name: "a", Relations: []RelationField{{Field: "p", Kind: ParentPointer, TargetTable: "zzz"}}},
			},
			want: "unknown table",
		},
		{
			name:   "duplicate table",
			tables: []Table{{Name: "a"}, {Name: "a"}},
			want:   "declared twice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.tables...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewRegistry_PointerWithoutInverse(t *testing.T) {
	_, err := NewRegistry(
		Table{Name: "a"},
		Table{Name: "b", Relations: []RelationField{{Field: "owner", Kind: ParentPointer, TargetTable: "a"}}},
	)
	assert.NoError(t, err)
}

func TestCheckPlacement(t *testing.T) {
	r := Default()

	assert.NoError(t, r.CheckPlacement(TypeContainerParent, 999, TypeContainerChild))
	assert.NoError(t, r.CheckPlacement(TypeContainerChild, 1000, TypeWallCollection))

	err := r.CheckPlacement(TypeContainerParent, 999, TypeWallCollection)
	assert.True(t, errors.Is(err, ErrPlacement))

	err = r.CheckPlacement(TypeContainerChild, 999, TypeWallCollection)
	assert.True(t, errors.Is(err, ErrPlacement))

	err = r.CheckPlacement(TypeWallCollection, 0, TypeText)
	assert.True(t, errors.Is(err, ErrPlacement))
}

func TestTranslatableFields(t *testing.T) {
	tbl, err := Default().Table(TableContent)
	require.NoError(t, err)
	assert.Equal(t, []string{"header", "bodytext"}, tbl.TranslatableFields())

	f, ok := tbl.Field("header")
	require.True(t, ok)
	assert.Equal(t, 255, f.Max)
}

func TestLoad_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Default().Marshal(&buf))
	assert.Contains(t, buf.String(), "kind: collection")

	r, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, Default().Tables(), r.Tables())

	f, err := r.Relation(TableWall, FieldWallContent)
	require.NoError(t, err)
	assert.Equal(t, []string{TypeWallCollection}, f.AllowedTypes)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(strings.NewReader("tables: []\n"))
	assert.True(t, errors.Is(err, ErrInvalid))

	_, err = Load(strings.NewReader(`
tables:
  - name: a
    relations:
      - field: x
        kind: sideways
        target: a
`))
	assert.Error(t, err)

	_, err = Load(strings.NewReader("tables:\n  - name: a\n    colour: red\n"))
	assert.Error(t, err)
}
