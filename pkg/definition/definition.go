package definition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gitsby/yarg/pkg/models/domain"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatOf picks the definition format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported report definition file %s", path)
	}
}

// File is the on-disk shape of a report definition.
type File struct {
	Name       string        `yaml:"name" json:"name" toml:"name"`
	Parameters []Parameter   `yaml:"parameters" json:"parameters" toml:"parameters"`
	Formats    []FieldFormat `yaml:"formats" json:"formats" toml:"formats"`
	Bands      []Band        `yaml:"bands" json:"bands" toml:"bands"`
}

type Parameter struct {
	Name     string      `yaml:"name" json:"name" toml:"name"`
	Required bool        `yaml:"required" json:"required" toml:"required"`
	Default  interface{} `yaml:"default" json:"default" toml:"default"`
}

type FieldFormat struct {
	Band   string `yaml:"band" json:"band" toml:"band"`
	Field  string `yaml:"field" json:"field" toml:"field"`
	Format string `yaml:"format" json:"format" toml:"format"`
}

type Query struct {
	Name       string   `yaml:"name" json:"name" toml:"name"`
	Kind       string   `yaml:"kind" json:"kind" toml:"kind"`
	Role       string   `yaml:"role" json:"role" toml:"role"`
	Text       string   `yaml:"text" json:"text" toml:"text"`
	Link       string   `yaml:"link" json:"link" toml:"link"`
	LinkFields []string `yaml:"link_fields" json:"link_fields" toml:"link_fields"`
}

type Crosstab struct {
	HeaderBand  string   `yaml:"header_band" json:"header_band" toml:"header_band"`
	MasterBand  string   `yaml:"master_band" json:"master_band" toml:"master_band"`
	HeaderKey   string   `yaml:"header_key" json:"header_key" toml:"header_key"`
	MasterKey   string   `yaml:"master_key" json:"master_key" toml:"master_key"`
	ValueFields []string `yaml:"value_fields" json:"value_fields" toml:"value_fields"`
}

type Band struct {
	Name        string                 `yaml:"name" json:"name" toml:"name"`
	Orientation string                 `yaml:"orientation" json:"orientation" toml:"orientation"`
	Queries     []Query                `yaml:"queries" json:"queries" toml:"queries"`
	Parameters  map[string]interface{} `yaml:"parameters" json:"parameters" toml:"parameters"`
	LinkFields  []string               `yaml:"link_fields" json:"link_fields" toml:"link_fields"`
	Aggregates  map[string]string      `yaml:"aggregates" json:"aggregates" toml:"aggregates"`
	Crosstab    *Crosstab              `yaml:"crosstab" json:"crosstab" toml:"crosstab"`
	Children    []Band                 `yaml:"children" json:"children" toml:"children"`
}

// LoadFile reads and parses a definition file; the format follows the extension.
func LoadFile(path string) (*domain.Report, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report definition: %w", err)
	}
	report, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if report.Name == "" {
		report.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return report, nil
}

// Parse decodes a definition and converts it into a validated report.
func Parse(data []byte, format Format) (*domain.Report, error) {
	var f File
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse yaml definition: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to parse json definition: %w", err)
		}
	case FormatTOML:
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, fmt.Errorf("failed to parse toml definition: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported definition format %q", format)
	}

	report, err := f.Report()
	if err != nil {
		return nil, err
	}
	if err := report.Validate(); err != nil {
		return nil, err
	}
	return report, nil
}

func (f *File) Report() (*domain.Report, error) {
	report := &domain.Report{Name: f.Name}

	for _, p := range f.Parameters {
		rp := domain.ReportParameter{Name: p.Name, Required: p.Required}
		if p.Default != nil {
			v, err := value(p.Default)
			if err != nil {
				return nil, fmt.Errorf("parameter %s default: %w", p.Name, err)
			}
			rp.Default = &v
		}
		report.Parameters = append(report.Parameters, rp)
	}
	for _, ff := range f.Formats {
		report.Formats = append(report.Formats, domain.FieldFormat{Band: ff.Band, Field: ff.Field, Format: ff.Format})
	}
	for i := range f.Bands {
		b, err := f.Bands[i].definition()
		if err != nil {
			return nil, err
		}
		report.Bands = append(report.Bands, b)
	}
	return report, nil
}

func (b *Band) definition() (*domain.BandDefinition, error) {
	def := &domain.BandDefinition{
		Name:        b.Name,
		Orientation: domain.ParseOrientation(b.Orientation),
		LinkFields:  b.LinkFields,
	}

	for _, q := range b.Queries {
		role := domain.QueryRole(strings.ToLower(q.Role))
		switch role {
		case domain.RoleNone, domain.RoleHeader, domain.RoleMaster, domain.RoleValue:
		default:
			return nil, &domain.DefinitionError{Band: b.Name, Reason: fmt.Sprintf("unknown query role %q", q.Role)}
		}
		name := q.Name
		if name == "" {
			name = fmt.Sprintf("%s#%d", b.Name, len(def.Queries))
		}
		def.Queries = append(def.Queries, domain.Query{
			Name:       name,
			Text:       q.Text,
			Kind:       q.Kind,
			Role:       role,
			Link:       q.Link,
			LinkFields: q.LinkFields,
		})
	}

	if len(b.Parameters) > 0 {
		def.Parameters = make(map[string]domain.Value, len(b.Parameters))
		for _, name := range sortedKeys(b.Parameters) {
			v, err := value(b.Parameters[name])
			if err != nil {
				return nil, &domain.DefinitionError{Band: b.Name, Reason: fmt.Sprintf("parameter %s: %v", name, err)}
			}
			def.Parameters[name] = v
		}
	}

	if len(b.Aggregates) > 0 {
		def.Aggregates = make(map[string]domain.Aggregate, len(b.Aggregates))
		for field, fn := range b.Aggregates {
			agg, err := aggregate(fn)
			if err != nil {
				return nil, &domain.DefinitionError{Band: b.Name, Reason: err.Error()}
			}
			def.Aggregates[field] = agg
		}
	}

	if b.Crosstab != nil {
		def.Crosstab = &domain.Crosstab{
			HeaderBand:  b.Crosstab.HeaderBand,
			MasterBand:  b.Crosstab.MasterBand,
			HeaderKey:   b.Crosstab.HeaderKey,
			MasterKey:   b.Crosstab.MasterKey,
			ValueFields: b.Crosstab.ValueFields,
		}
	}

	for i := range b.Children {
		child, err := b.Children[i].definition()
		if err != nil {
			return nil, err
		}
		def.Children = append(def.Children, child)
	}
	return def, nil
}

func aggregate(name string) (domain.Aggregate, error) {
	switch agg := domain.Aggregate(strings.ToLower(name)); agg {
	case domain.AggregateSum, domain.AggregateAvg, domain.AggregateMin, domain.AggregateMax,
		domain.AggregateCount, domain.AggregateFirst, domain.AggregateLast:
		return agg, nil
	default:
		return "", fmt.Errorf("unknown aggregate %q", name)
	}
}

// value converts a decoded scalar. json.Number keeps integers integral.
func value(raw interface{}) (domain.Value, error) {
	if n, ok := raw.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return domain.Integer(i), nil
		}
		f, err := n.Float64()
		if err != nil {
			return domain.Null, err
		}
		return domain.Float(f), nil
	}
	return domain.FromAny(raw)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
