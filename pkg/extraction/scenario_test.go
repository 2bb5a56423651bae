package extraction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gitsby/yarg/pkg/loaders"
	"github.com/gitsby/yarg/pkg/loaders/document"
	"github.com/gitsby/yarg/pkg/loaders/script"
	sqlloader "github.com/gitsby/yarg/pkg/loaders/sql"
	"github.com/gitsby/yarg/pkg/models/domain"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTimesheetDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// every connection to :memory: opens a new database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = db.Close()
	})

	fixture, err := os.ReadFile(filepath.Join("testdata", "timesheet.sql"))
	require.NoError(t, err)
	for _, stmt := range strings.Split(string(fixture), ";\n") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return db
}

func timesheetReport(value domain.Query) *domain.Report {
	return &domain.Report{
		Name: "timesheet",
		Bands: []*domain.BandDefinition{{
			Name:        "timesheet",
			Orientation: domain.OrientationCrosstab,
			Queries: []domain.Query{
				{
					Name: "months",
					Kind: loaders.KindSQL,
					Role: domain.RoleHeader,
					Text: "SELECT month_name AS MONTH_NAME, month_id AS MONTH_ID FROM months ORDER BY month_id",
				},
				{
					Name: "users",
					Kind: loaders.KindSQL,
					Role: domain.RoleMaster,
					Text: "SELECT user_id AS USER_ID, login AS LOGIN FROM users ORDER BY user_id",
				},
				value,
			},
			Crosstab: &domain.Crosstab{
				HeaderBand:  "header",
				MasterBand:  "master_data",
				HeaderKey:   "MONTH_ID",
				MasterKey:   "USER_ID",
				ValueFields: []string{"HOURS"},
			},
		}},
	}
}

func TestExtractReport_SQLCrosstab(t *testing.T) {
	tests := []struct {
		name  string
		value domain.Query
	}{
		{
			name: "success - aggregated facts",
			value: domain.Query{
				Name: "hours",
				Kind: loaders.KindSQL,
				Role: domain.RoleValue,
				Text: `SELECT user_id AS USER_ID, month_id AS MONTH_ID, SUM(hours) AS HOURS
FROM hours GROUP BY user_id, month_id`,
			},
		},
		{
			name: "success - fact per cell",
			value: domain.Query{
				Name:       "hours",
				Kind:       loaders.KindSQL,
				Role:       domain.RoleValue,
				LinkFields: []string{"USER_ID", "MONTH_ID"},
				Text: `SELECT SUM(hours) AS HOURS FROM hours
WHERE user_id = ${USER_ID} AND month_id = ${MONTH_ID} HAVING COUNT(*) > 0`,
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			db := setupTimesheetDB(t)
			sqlLoader, err := sqlloader.NewLoader(db)
			require.NoError(t, err)
			registry, err := loaders.NewRegistry(map[string]loaders.Loader{loaders.KindSQL: sqlLoader})
			require.NoError(t, err)
			e := NewExtractor(registry, Settings{Parallelism: 2})

			tree, err := e.ExtractReport(testContext(t), timesheetReport(tt.value), nil)
			require.NoError(t, err)

			headers := tree.FindAll("header")
			require.Len(t, headers, 12)
			for i, h := range headers {
				assert.Equal(t, []string{"MONTH_NAME", "MONTH_ID"}, tree.Data(h).Fields())
				assert.Equal(t, int64(i+1), field(t, tree, h, "MONTH_ID"))
			}
			assert.Equal(t, "January", field(t, tree, headers[0], "MONTH_NAME"))

			masters := tree.FindAll("master_data")
			require.Len(t, masters, 3)
			for i, m := range masters {
				cells := tree.Children(m)
				require.Len(t, cells, 12)
				for j, c := range cells {
					data := tree.Data(c)
					for _, f := range []string{"USER_ID", "LOGIN", "HOURS"} {
						assert.True(t, data.Has(f), "cell %d/%d lacks %s", i, j, f)
					}
					assert.Equal(t, int64(i+1), field(t, tree, c, "USER_ID"))
					assert.Equal(t, int64(j+1), field(t, tree, c, "MONTH_ID"))
				}
			}

			user1 := tree.Children(masters[0])
			assert.Equal(t, int64(111), field(t, tree, user1[0], "HOURS"))
			user2 := tree.Children(masters[1])
			assert.Equal(t, int64(51), field(t, tree, user2[0], "HOURS"))
			assert.Nil(t, field(t, tree, user2[1], "HOURS"))
			for _, c := range tree.Children(masters[2]) {
				assert.Nil(t, field(t, tree, c, "HOURS"))
			}
		})
	}
}

func TestExtractReport_CrosstabCardinality(t *testing.T) {
	months := func(n int) []domain.Row {
		out := make([]domain.Row, n)
		for i := range out {
			out[i] = row("month_id", i+1)
		}
		return out
	}
	users := func(n int) []domain.Row {
		out := make([]domain.Row, n)
		for i := range out {
			out[i] = row("user_id", i+1, "login", fmt.Sprintf("u%d", i+1))
		}
		return out
	}
	report := func(valueFields ...string) *domain.Report {
		return &domain.Report{Bands: []*domain.BandDefinition{{
			Name:        "grid",
			Orientation: domain.OrientationCrosstab,
			Queries: []domain.Query{
				{Name: "months", Text: "months", Kind: fakeKind, Role: domain.RoleHeader},
				{Name: "users", Text: "users", Kind: fakeKind, Role: domain.RoleMaster},
				{Name: "facts", Text: "facts", Kind: fakeKind, Role: domain.RoleValue},
			},
			Crosstab: &domain.Crosstab{HeaderKey: "month_id", MasterKey: "user_id", ValueFields: valueFields},
			Children: []*domain.BandDefinition{{
				Name:        "notes",
				Orientation: domain.OrientationSimple,
				Queries:     []domain.Query{q("notes")},
				LinkFields:  []string{"login"},
			}},
		}}}
	}
	notes := func(p domain.Params) ([]domain.Row, error) {
		return []domain.Row{row("note", "for "+p["login"].Str())}, nil
	}

	t.Run("success - zero facts keep cardinality", func(t *testing.T) {
		backend := fakeBackend{"months": returns(months(4)...), "users": returns(users(3)...), "facts": returns(), "notes": notes}
		e := setupFixture(t, backend, Settings{Parallelism: 2})

		tree, err := e.ExtractReport(testContext(t), report("hours"), nil)
		require.NoError(t, err)

		assert.Len(t, tree.FindAll("grid_header"), 4)
		masters := tree.FindAll("grid_master_data")
		require.Len(t, masters, 3)
		assert.Len(t, tree.FindAll("grid"), 12)
		for _, m := range masters {
			cells := tree.ChildrenNamed(m, "grid")
			require.Len(t, cells, 4)
			for _, c := range cells {
				assert.Nil(t, field(t, tree, c, "hours"))
			}
			n := tree.ChildrenNamed(m, "notes")
			require.Len(t, n, 1)
			assert.Equal(t, "for "+field(t, tree, m, "login").(string), field(t, tree, n[0], "note"))
		}
		assert.Len(t, tree.Children(tree.Root()), 7)
	})

	t.Run("success - first matching fact wins", func(t *testing.T) {
		backend := fakeBackend{
			"months": returns(months(2)...),
			"users":  returns(users(2)...),
			"facts": returns(
				row("user_id", 1, "month_id", 1, "hours", 5),
				row("user_id", 1, "month_id", 1, "hours", 6),
				row("user_id", 2, "month_id", 2, "hours", 7.5),
			),
			"notes": notes,
		}
		e := setupFixture(t, backend, Settings{CellPolicy: ZeroCells})

		tree, err := e.ExtractReport(testContext(t), report("hours"), nil)
		require.NoError(t, err)

		cells := tree.FindAll("grid")
		require.Len(t, cells, 4)
		assert.Equal(t, int64(5), field(t, tree, cells[0], "hours"))
		assert.Equal(t, int64(0), field(t, tree, cells[1], "hours"))
		assert.Equal(t, int64(0), field(t, tree, cells[2], "hours"))
		assert.Equal(t, 7.5, field(t, tree, cells[3], "hours"))
	})

	t.Run("success - per cell query without rows keeps value fields", func(t *testing.T) {
		backend := fakeBackend{"months": returns(months(2)...), "users": returns(users(2)...), "cell": returns(), "notes": notes}
		e := setupFixture(t, backend, Settings{CellPolicy: ZeroCells})
		r := report("hours")
		r.Bands[0].Queries[2] = domain.Query{Name: "cell", Text: "cell", Kind: fakeKind, Role: domain.RoleValue, LinkFields: []string{"user_id", "month_id"}}

		tree, err := e.ExtractReport(testContext(t), r, nil)
		require.NoError(t, err)

		cells := tree.FindAll("grid")
		require.Len(t, cells, 4)
		for _, c := range cells {
			assert.ElementsMatch(t, []string{"user_id", "login", "month_id", "hours"}, tree.Data(c).Fields())
			assert.Equal(t, int64(0), field(t, tree, c, "hours"))
		}
	})

	t.Run("error - zero facts without declared value fields", func(t *testing.T) {
		backend := fakeBackend{"months": returns(months(2)...), "users": returns(users(2)...), "facts": returns(), "notes": notes}
		e := setupFixture(t, backend, Settings{})

		tree, err := e.ExtractReport(testContext(t), report(), nil)

		assert.Nil(t, tree)
		var defErr *domain.DefinitionError
		require.ErrorAs(t, err, &defErr)
		assert.Equal(t, "/grid", defErr.Band)
		assert.Contains(t, defErr.Reason, "value fields")
	})

	t.Run("error - fact without key", func(t *testing.T) {
		backend := fakeBackend{
			"months": returns(months(1)...),
			"users":  returns(users(1)...),
			"facts":  returns(row("user_id", 1, "hours", 5)),
			"notes":  notes,
		}
		e := setupFixture(t, backend, Settings{})

		tree, err := e.ExtractReport(testContext(t), report("hours"), nil)

		assert.Nil(t, tree)
		var missing *MissingLinkFieldError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "month_id", missing.Field)
	})
}

func TestCellPolicy(t *testing.T) {
	p, err := ParseCellPolicy("")
	require.NoError(t, err)
	assert.True(t, p("x").IsNull())

	p, err = ParseCellPolicy("Zero")
	require.NoError(t, err)
	assert.True(t, p("x").Equal(domain.Integer(0)))

	_, err = ParseCellPolicy("omit")
	assert.Error(t, err)
}

const entitiesDoc = `{
  "users": [
    {"id": 1, "name": "Alice"},
    {"id": 2, "name": "Bob"}
  ],
  "entries": [
    {"id": 10, "name": "e1", "value": 1.5, "user_id": 1},
    {"id": 11, "name": "e2", "value": 2.5, "user_id": 1},
    {"id": 12, "name": "e3", "value": 3.5, "user_id": 2},
    {"id": 13, "name": "e4", "value": 4.5, "user_id": 2}
  ]
}`

const headerScript = `return []map[string]interface{}{
	{"name": "Alice", "id": 1},
	{"name": "Bob", "id": 2},
}, nil`

const detailScript = `id := params["id"].(int64)
rows := make([]map[string]interface{}, 0, 2)
for i := int64(0); i < 2; i++ {
	rows = append(rows, map[string]interface{}{
		"id":      id*10 + i,
		"name":    fmt.Sprintf("e%d", id*10+i),
		"value":   float64(i) + 0.5,
		"user_id": id,
	})
}
return rows, nil`

func masterDetailReport(kind, header, detail string) *domain.Report {
	return &domain.Report{
		Name: "entities",
		Bands: []*domain.BandDefinition{{
			Name:        "header",
			Orientation: domain.OrientationHorizontal,
			Queries:     []domain.Query{{Name: "header", Kind: kind, Text: header}},
			Children: []*domain.BandDefinition{{
				Name:        "master_data",
				Orientation: domain.OrientationHorizontal,
				Queries:     []domain.Query{{Name: "master_data", Kind: kind, Text: detail}},
				LinkFields:  []string{"id"},
			}},
		}},
	}
}

func TestExtractReport_MasterDetail(t *testing.T) {
	tests := []struct {
		name   string
		kind   string
		loader loaders.Loader
		report *domain.Report
		params domain.Params
	}{
		{
			name:   "success - script backend",
			kind:   loaders.KindScript,
			loader: script.NewLoader(),
			report: masterDetailReport(loaders.KindScript, headerScript, "import \"fmt\"\n\n"+detailScript),
		},
		{
			name:   "success - document backend",
			kind:   loaders.KindDocument,
			loader: document.NewLoader(),
			report: masterDetailReport(loaders.KindDocument,
				"parameter=doc $.users[*]",
				"parameter=doc $.entries[?(@.user_id == ${id})]"),
			params: domain.Params{"doc": domain.Text(entitiesDoc)},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			registry, err := loaders.NewRegistry(map[string]loaders.Loader{tt.kind: tt.loader})
			require.NoError(t, err)
			e := NewExtractor(registry, Settings{Parallelism: 2})

			tree, err := e.ExtractReport(testContext(t), tt.report, tt.params)
			require.NoError(t, err)

			headers := tree.FindAll("header")
			require.Len(t, headers, 2)
			assert.Len(t, tree.FindAll("master_data"), 4)
			for _, h := range headers {
				assert.ElementsMatch(t, []string{"id", "name"}, tree.Data(h).Fields())
				id, _ := tree.Data(h).Get("id")

				group := tree.ChildrenNamed(h, "master_data")
				require.Len(t, group, 2)
				for _, d := range group {
					data := tree.Data(d)
					assert.ElementsMatch(t, []string{"id", "name", "value", "user_id"}, data.Fields())
					uid, _ := data.Get("user_id")
					assert.True(t, uid.Equal(id), "detail user_id %v, header id %v", uid, id)
				}
			}
		})
	}
}

func TestExtractReport_Stress(t *testing.T) {
	if testing.Short() {
		t.Skip("stress extraction")
	}

	const (
		queries = 100
		rows    = 10000
	)

	t.Run("success - joined script queries", func(t *testing.T) {
		registry, err := loaders.NewRegistry(map[string]loaders.Loader{loaders.KindScript: script.NewLoader()})
		require.NoError(t, err)
		e := NewExtractor(registry, Settings{Parallelism: 4})

		band := &domain.BandDefinition{Name: "wide", Orientation: domain.OrientationHorizontal}
		for i := 0; i < queries; i++ {
			qry := domain.Query{
				Name: fmt.Sprintf("q%d", i),
				Kind: loaders.KindScript,
				Text: fmt.Sprintf(`rows := make([]map[string]interface{}, 0, %[1]d)
for i := 0; i < %[1]d; i++ {
	rows = append(rows, map[string]interface{}{"link": i, "v%[2]d": i * %[2]d})
}
return rows, nil`, rows, i),
			}
			if i > 0 {
				qry.Link = "link"
			}
			band.Queries = append(band.Queries, qry)
		}

		tree, err := e.ExtractReport(context.Background(), &domain.Report{Bands: []*domain.BandDefinition{band}}, nil)
		require.NoError(t, err)

		wide := tree.Children(tree.Root())
		require.Len(t, wide, rows)
		for _, i := range []int{0, 1, rows / 2, rows - 1} {
			data := tree.Data(wide[i])
			assert.Equal(t, queries+1, data.Len())
			v, _ := data.Get("link")
			assert.Equal(t, int64(i), v.Int())
			v, _ = data.Get(fmt.Sprintf("v%d", queries-1))
			assert.Equal(t, int64(i*(queries-1)), v.Int())
		}
	})

	t.Run("success - independent horizontal bands", func(t *testing.T) {
		backend := fakeBackend{}
		report := &domain.Report{}
		for b := 0; b < queries; b++ {
			name := fmt.Sprintf("band%d", b)
			fields := []string{"n"}
			backend[name] = func(domain.Params) ([]domain.Row, error) {
				out := make([]domain.Row, rows)
				for i := range out {
					out[i] = domain.NewRowWithFields(fields, []domain.Value{domain.Integer(int64(i))})
				}
				return out, nil
			}
			report.Bands = append(report.Bands, &domain.BandDefinition{
				Name:        name,
				Orientation: domain.OrientationHorizontal,
				Queries:     []domain.Query{q(name)},
			})
		}
		e := setupFixture(t, backend, Settings{Parallelism: 8})

		tree, err := e.ExtractReport(context.Background(), report, nil)
		require.NoError(t, err)

		top := tree.Children(tree.Root())
		require.Len(t, top, queries*rows)
		for b := 0; b < queries; b++ {
			band := top[b*rows : (b+1)*rows]
			assert.Equal(t, fmt.Sprintf("band%d", b), tree.Band(band[0]).Name)
			for i, id := range band {
				v, _ := tree.Data(id).Get("n")
				if v.Int() != int64(i) {
					t.Fatalf("band%d row %d holds %d", b, i, v.Int())
				}
			}
		}
	})
}
