package api

import (
	"encoding/json"
	"testing"

	"github.com/gitsby/yarg/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromTree(t *testing.T) {
	tree := domain.NewTree()
	tree.AddFirstLevelBand("users")
	tree.AddFormats([]domain.FieldFormat{{Band: "users", Field: "hours", Format: "0.00"}})

	user := tree.Add(tree.Root(), domain.Band{
		Name: "users",
		Data: domain.NewRow(2).Set("name", domain.Text("ann")).Set("id", domain.Integer(1)),
	})
	totals := tree.Add(user, domain.Band{
		Name:    "totals",
		Data:    domain.NewRow(1).Set("hours", domain.Float(7.5)),
		Columns: map[string][]domain.Value{"hours": {domain.Float(3), domain.Float(4.5)}},
	})
	tree.Attach(user, totals)
	tree.Attach(tree.Root(), user)

	report := FromTree("timesheet", "run-1", tree)

	assert.Equal(t, "timesheet", report.Name)
	assert.Equal(t, []string{"users"}, report.FirstLevelBands)
	assert.Equal(t, map[string]string{"users.hours": "0.00"}, report.Formats)
	assert.Equal(t, domain.RootBandName, report.Root.Name)
	assert.Nil(t, report.Root.Data)

	require.Len(t, report.Root.Children, 1)
	u := report.Root.Children[0]
	assert.Equal(t, []string{"name", "id"}, u.Fields)
	assert.Equal(t, map[string]interface{}{"name": "ann", "id": int64(1)}, u.Data)

	require.Len(t, u.Children, 1)
	assert.Equal(t, []interface{}{3.0, 4.5}, u.Children[0].Columns["hours"])

	raw, err := json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "timesheet",
		"run_id": "run-1",
		"first_level_bands": ["users"],
		"formats": {"users.hours": "0.00"},
		"root": {
			"name": "Root",
			"children": [{
				"name": "users",
				"fields": ["name", "id"],
				"data": {"name": "ann", "id": 1},
				"children": [{
					"name": "totals",
					"fields": ["hours"],
					"data": {"hours": 7.5},
					"columns": {"hours": [3, 4.5]}
				}]
			}]
		}
	}`, string(raw))
}
