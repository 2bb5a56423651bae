package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/gitsby/yarg/pkg/models/api"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
	FormatText    = "text"
)

// Reporter writes an extracted report for a renderer or a person.
type Reporter interface {
	Handle(report *api.Report) error
}

func NewReporter(format string, writer io.Writer) (Reporter, error) {
	if writer == nil {
		writer = os.Stdout
	}
	switch strings.ToLower(format) {
	case FormatJSON, "":
		return &jsonReporter{writer: writer}, nil
	case FormatMsgpack:
		return &msgpackReporter{writer: writer}, nil
	case FormatText:
		return newTextReporter(writer), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

type jsonReporter struct {
	writer io.Writer
}

func (r *jsonReporter) Handle(report *api.Report) error {
	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

type msgpackReporter struct {
	writer io.Writer
}

func (r *msgpackReporter) Handle(report *api.Report) error {
	if err := msgpack.NewEncoder(r.writer).Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

type TableConfig struct {
	Indent     int
	ValueWidth int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		Indent:     2,
		ValueWidth: 40,
	}
}

type textReporter struct {
	writer io.Writer
	config TableConfig
}

func newTextReporter(writer io.Writer) *textReporter {
	return &textReporter{
		writer: writer,
		config: DefaultTableConfig(),
	}
}

type frame struct {
	Depth int
	Band  api.Band
}

func (c *textReporter) Handle(report *api.Report) error {
	funcMap := template.FuncMap{
		"root": func(b api.Band) frame {
			return frame{Band: b}
		},
		"child": func(parent frame, b api.Band) frame {
			return frame{Depth: parent.Depth + 1, Band: b}
		},
		"join": strings.Join,
		"indent": func(depth int) string {
			return strings.Repeat(" ", depth*c.config.Indent)
		},
		"value": func(v interface{}) string {
			s := fmt.Sprint(v)
			if v == nil {
				s = "null"
			}
			if len(s) > c.config.ValueWidth {
				s = s[:c.config.ValueWidth-3] + "..."
			}
			return s
		},
	}

	tmpl := `{{define "band"}}{{indent .Depth}}{{.Band.Name}}{{range .Band.Fields}} {{.}}={{value (index $.Band.Data .)}}{{end}}
{{range .Band.Children}}{{template "band" (child $ .)}}{{end}}{{end}}Report: {{.Name}}{{if .RunID}} (run {{.RunID}}){{end}}
First level bands: {{join .FirstLevelBands ", "}}

{{template "band" (root .Root)}}`

	t, err := template.New("report").Funcs(funcMap).Parse(tmpl)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	return t.Execute(c.writer, report)
}
