package definition

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/gitsby/yarg/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_YAML(t *testing.T) {
	report, err := LoadFile(filepath.Join("testdata", "timesheet.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "timesheet", report.Name)
	require.Len(t, report.Parameters, 2)
	assert.True(t, report.Parameters[0].Required)
	assert.Nil(t, report.Parameters[0].Default)
	require.NotNil(t, report.Parameters[1].Default)
	assert.True(t, report.Parameters[1].Default.Equal(domain.Integer(50)))
	assert.Equal(t, []domain.FieldFormat{{Band: "timesheet", Field: "HOURS", Format: "#,##0.00"}}, report.Formats)

	require.Len(t, report.Bands, 2)
	grid := report.Bands[0]
	assert.Equal(t, domain.OrientationCrosstab, grid.Orientation)
	require.Len(t, grid.Queries, 3)
	assert.Equal(t, domain.RoleHeader, grid.Queries[0].Role)
	assert.Equal(t, domain.RoleMaster, grid.Queries[1].Role)
	assert.Equal(t, domain.RoleValue, grid.Queries[2].Role)
	assert.Contains(t, grid.Queries[2].Text, "GROUP BY")
	assert.Equal(t, &domain.Crosstab{
		HeaderBand:  "header",
		MasterBand:  "master_data",
		HeaderKey:   "MONTH_ID",
		MasterKey:   "USER_ID",
		ValueFields: []string{"HOURS"},
	}, grid.Crosstab)

	totals := report.Bands[1]
	assert.Equal(t, domain.OrientationVertical, totals.Orientation)
	assert.Equal(t, "totals#0", totals.Queries[0].Name)
	assert.Equal(t, map[string]domain.Aggregate{"hours": domain.AggregateSum}, totals.Aggregates)
	assert.Equal(t, "${area}", totals.Parameters["region"].Str())
	assert.True(t, totals.Parameters["factor"].Equal(domain.Float(1.5)))
}

func TestLoadFile_JSON(t *testing.T) {
	report, err := LoadFile(filepath.Join("testdata", "entities.json"))
	require.NoError(t, err)

	require.Len(t, report.Bands, 1)
	header := report.Bands[0]
	assert.Equal(t, domain.OrientationHorizontal, header.Orientation)
	require.Len(t, header.Children, 1)

	detail := header.Children[0]
	assert.Equal(t, "master_data", detail.Name)
	assert.Equal(t, []string{"id"}, detail.LinkFields)
	assert.Equal(t, domain.KindInteger, detail.Parameters["page"].Kind())
	assert.Equal(t, "document", detail.Queries[0].Kind)
}

func TestLoadFile_TOML(t *testing.T) {
	report, err := LoadFile(filepath.Join("testdata", "people.toml"))
	require.NoError(t, err)

	require.Len(t, report.Parameters, 1)
	since := report.Parameters[0].Default
	require.NotNil(t, since)
	assert.Equal(t, domain.KindDate, since.Kind())
	assert.True(t, since.Time().Equal(time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)))

	people := report.Bands[0]
	assert.Equal(t, domain.OrientationSimple, people.Orientation)
	require.Len(t, people.Queries, 2)
	assert.Equal(t, "id", people.Queries[1].Link)
	assert.Contains(t, people.Queries[0].Text, "return")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		input  string
	}{
		{name: "malformed yaml", format: FormatYAML, input: "bands: [name: x"},
		{name: "unknown json field", format: FormatJSON, input: `{"bandz": []}`},
		{name: "malformed toml", format: FormatTOML, input: "name = "},
		{name: "unknown role", format: FormatYAML, input: "bands:\n  - name: x\n    queries:\n      - role: pivot\n"},
		{name: "unknown aggregate", format: FormatYAML, input: "bands:\n  - name: x\n    queries: [{text: q}]\n    aggregates: {a: median}\n"},
		{name: "band without queries", format: FormatYAML, input: "bands:\n  - name: x\n"},
		{name: "duplicate siblings", format: FormatYAML, input: "bands:\n  - name: x\n    queries: [{text: q}]\n  - name: x\n    queries: [{text: q}]\n"},
		{name: "unsupported format", format: "xml", input: "<report/>"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input), tt.format)
			assert.Error(t, err)
		})
	}
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]Format{
		"a.yml":  FormatYAML,
		"a.YAML": FormatYAML,
		"a.json": FormatJSON,
		"a.toml": FormatTOML,
	} {
		got, err := FormatOf(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := FormatOf("a.ini")
	assert.Error(t, err)
}
