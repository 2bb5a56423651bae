package api

import (
	"time"

	"github.com/gitsby/yarg/pkg/models/domain"
)

// Band is a materialized band as handed to renderers.
type Band struct {
	Name     string                   `json:"name" msgpack:"name"`
	Fields   []string                 `json:"fields,omitempty" msgpack:"fields,omitempty"`
	Data     map[string]interface{}   `json:"data,omitempty" msgpack:"data,omitempty"`
	Columns  map[string][]interface{} `json:"columns,omitempty" msgpack:"columns,omitempty"`
	Children []Band                   `json:"children,omitempty" msgpack:"children,omitempty"`
}

type Report struct {
	Name            string            `json:"name" msgpack:"name"`
	RunID           string            `json:"run_id,omitempty" msgpack:"run_id,omitempty"`
	FirstLevelBands []string          `json:"first_level_bands" msgpack:"first_level_bands"`
	Formats         map[string]string `json:"formats,omitempty" msgpack:"formats,omitempty"`
	Root            Band              `json:"root" msgpack:"root"`
}

type ReportsResponse struct {
	Reports []string `json:"reports"`
}

type Run struct {
	ID         string                 `json:"id"`
	Report     string                 `json:"report"`
	Status     string                 `json:"status"`
	Params     map[string]interface{} `json:"params,omitempty"`
	Bands      int                    `json:"bands"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt *time.Time             `json:"finished_at,omitempty"`
	Error      *string                `json:"error,omitempty"`
}

type RunsResponse struct {
	Runs []Run `json:"runs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func FromTree(name, runID string, tree *domain.Tree) *Report {
	return &Report{
		Name:            name,
		RunID:           runID,
		FirstLevelBands: tree.FirstLevelBands(),
		Formats:         tree.Formats(),
		Root:            fromBand(tree, tree.Root()),
	}
}

func fromBand(tree *domain.Tree, id domain.BandID) Band {
	b := tree.Band(id)
	out := Band{Name: b.Name}
	if b.Data.Len() > 0 {
		out.Fields = append([]string(nil), b.Data.Fields()...)
		out.Data = b.Data.Map()
	}
	if len(b.Columns) > 0 {
		out.Columns = make(map[string][]interface{}, len(b.Columns))
		for field, values := range b.Columns {
			column := make([]interface{}, len(values))
			for i, v := range values {
				column[i] = v.Interface()
			}
			out.Columns[field] = column
		}
	}
	for _, c := range tree.Children(id) {
		out.Children = append(out.Children, fromBand(tree, c))
	}
	return out
}

func FromRun(r domain.Run) Run {
	return Run{
		ID:         r.ID,
		Report:     r.Report,
		Status:     string(r.Status),
		Params:     r.Params,
		Bands:      r.Bands,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Error:      r.Error,
	}
}
