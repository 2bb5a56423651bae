package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRow_SetDoesNotLeakIntoSharedFields(t *testing.T) {
	fields := []string{"a", "b"}
	r1 := NewRowWithFields(fields, []Value{Integer(1), Integer(2)})
	r2 := NewRowWithFields(fields, []Value{Integer(3), Integer(4)})

	r1 = r1.Set("c", Text("x"))

	assert.Equal(t, []string{"a", "b", "c"}, r1.Fields())
	assert.Equal(t, []string{"a", "b"}, r2.Fields())
	assert.False(t, r2.Has("c"))
}

func TestRow_Merge(t *testing.T) {
	base := NewRow(2).Set("id", Integer(1)).Set("name", Text("a"))
	other := NewRow(2).Set("name", Text("b")).Set("value", Float(2.5))

	merged := base.Merge(other)

	assert.Equal(t, []string{"id", "name", "value"}, merged.Fields())
	v, _ := merged.Get("name")
	assert.Equal(t, "b", v.Str())
	v, _ = base.Get("name")
	assert.Equal(t, "a", v.Str(), "merge must not modify the receiver")
}

func TestTree_AttachAndLookup(t *testing.T) {
	tree := NewTree()
	root := tree.Root()

	h1 := tree.Add(root, Band{Name: "header"})
	h2 := tree.Add(root, Band{Name: "header"})
	d := tree.Add(h1, Band{Name: "detail"})
	tree.Attach(h1, d)
	tree.Attach(root, h1, h2)

	assert.Equal(t, []BandID{h1, h2}, tree.Children(root))
	assert.Equal(t, []BandID{h1, h2}, tree.ChildrenNamed(root, "header"))
	assert.Equal(t, []BandID{d}, tree.FindAll("detail"))
	assert.Equal(t, []string{"header", "detail"}, tree.Path(d))
	assert.Equal(t, h1, tree.Band(d).Parent)
	assert.Equal(t, 4, tree.Len())
	assert.Equal(t, RootBandName, tree.Band(root).Name)
}

func TestTree_Bookkeeping(t *testing.T) {
	tree := NewTree()
	tree.AddFirstLevelBand("a")
	tree.AddFirstLevelBand("b")
	tree.AddFirstLevelBand("a")
	tree.AddFormats([]FieldFormat{{Band: "a", Field: "date", Format: "dd.MM.yyyy"}})

	assert.Equal(t, []string{"a", "b"}, tree.FirstLevelBands())
	assert.Equal(t, map[string]string{"a.date": "dd.MM.yyyy"}, tree.Formats())
}

func TestReport_Validate(t *testing.T) {
	q := []Query{{Text: "x", Kind: "sql"}}

	t.Run("valid tree", func(t *testing.T) {
		r := &Report{Name: "r", Bands: []*BandDefinition{
			{Name: "a", Queries: q, Children: []*BandDefinition{{Name: "b", Queries: q}}},
		}}
		assert.NoError(t, r.Validate())
	})

	t.Run("duplicate siblings", func(t *testing.T) {
		r := &Report{Name: "r", Bands: []*BandDefinition{{Name: "a", Queries: q}, {Name: "a", Queries: q}}}
		var defErr *DefinitionError
		assert.ErrorAs(t, r.Validate(), &defErr)
		assert.Equal(t, "r/a", defErr.Band)
	})

	t.Run("missing queries", func(t *testing.T) {
		r := &Report{Name: "r", Bands: []*BandDefinition{{Name: "a"}}}
		assert.Error(t, r.Validate())
	})

	t.Run("value query without value fields", func(t *testing.T) {
		grid := &BandDefinition{
			Name:        "grid",
			Orientation: OrientationCrosstab,
			Queries: []Query{
				{Text: "h", Kind: "sql", Role: RoleHeader},
				{Text: "m", Kind: "sql", Role: RoleMaster},
				{Text: "v", Kind: "sql", Role: RoleValue},
			},
			Crosstab: &Crosstab{HeaderKey: "month_id", MasterKey: "user_id"},
		}
		r := &Report{Name: "r", Bands: []*BandDefinition{grid}}

		var defErr *DefinitionError
		require.ErrorAs(t, r.Validate(), &defErr)
		assert.Equal(t, "r/grid", defErr.Band)

		grid.Crosstab.ValueFields = []string{"hours"}
		assert.NoError(t, r.Validate())
	})
}

func TestParseOrientation(t *testing.T) {
	assert.Equal(t, OrientationHorizontal, ParseOrientation(""))
	assert.Equal(t, OrientationCrosstab, ParseOrientation("CROSS"))
	assert.Equal(t, OrientationVertical, ParseOrientation("Vertical"))
	assert.Equal(t, Orientation("diagonal"), ParseOrientation("diagonal"))
}
