package domain

import (
	"fmt"
	"strings"
)

type Orientation string

const (
	OrientationSimple     Orientation = "simple"
	OrientationHorizontal Orientation = "horizontal"
	OrientationVertical   Orientation = "vertical"
	OrientationCrosstab   Orientation = "crosstab"
)

// ParseOrientation accepts the orientation tag case-insensitively.
// An empty tag means horizontal.
func ParseOrientation(tag string) Orientation {
	if strings.TrimSpace(tag) == "" {
		return OrientationHorizontal
	}
	switch o := Orientation(strings.ToLower(strings.TrimSpace(tag))); o {
	case "cross":
		return OrientationCrosstab
	default:
		return o
	}
}

type QueryRole string

const (
	RoleNone   QueryRole = ""
	RoleHeader QueryRole = "header" // crosstab column dimension
	RoleMaster QueryRole = "master" // crosstab row dimension
	RoleValue  QueryRole = "value"  // crosstab facts
)

type Query struct {
	Name       string
	Text       string
	Kind       string // backend kind, e.g. sql, script, document
	Role       QueryRole
	Link       string   // join field for the second and later queries of a band
	LinkFields []string // crosstab value query executed once per cell
}

type Aggregate string

const (
	AggregateSum   Aggregate = "sum"
	AggregateAvg   Aggregate = "avg"
	AggregateMin   Aggregate = "min"
	AggregateMax   Aggregate = "max"
	AggregateCount Aggregate = "count"
	AggregateFirst Aggregate = "first"
	AggregateLast  Aggregate = "last"
)

type Crosstab struct {
	HeaderBand  string // defaults to <band>_header
	MasterBand  string // defaults to <band>_master_data
	HeaderKey   string
	MasterKey   string
	ValueFields []string
}

// BandDefinition describes one report section: its queries, how rows map to
// bands and which child sections hang below every produced band.
type BandDefinition struct {
	Name        string
	Orientation Orientation
	Queries     []Query
	Parameters  map[string]Value
	LinkFields  []string
	Aggregates  map[string]Aggregate
	Crosstab    *Crosstab
	Children    []*BandDefinition
}

func (b *BandDefinition) HeaderBandName() string {
	if b.Crosstab != nil && b.Crosstab.HeaderBand != "" {
		return b.Crosstab.HeaderBand
	}
	return b.Name + "_header"
}

func (b *BandDefinition) MasterBandName() string {
	if b.Crosstab != nil && b.Crosstab.MasterBand != "" {
		return b.Crosstab.MasterBand
	}
	return b.Name + "_master_data"
}

// DataQueries returns the queries without a crosstab role.
func (b *BandDefinition) DataQueries() []Query {
	out := make([]Query, 0, len(b.Queries))
	for _, q := range b.Queries {
		if q.Role == RoleNone {
			out = append(out, q)
		}
	}
	return out
}

func (b *BandDefinition) QueryByRole(role QueryRole) (Query, bool) {
	for _, q := range b.Queries {
		if q.Role == role {
			return q, true
		}
	}
	return Query{}, false
}

type ReportParameter struct {
	Name     string
	Required bool
	Default  *Value
}

type FieldFormat struct {
	Band   string
	Field  string
	Format string
}

func (f FieldFormat) Key() string {
	return f.Band + "." + f.Field
}

type Report struct {
	Name       string
	Parameters []ReportParameter
	Formats    []FieldFormat
	Bands      []*BandDefinition
}

// Validate checks the static shape of the definition tree.
func (r *Report) Validate() error {
	if err := validateSiblings(r.Bands, r.Name); err != nil {
		return err
	}
	return nil
}

func validateSiblings(bands []*BandDefinition, path string) error {
	seen := make(map[string]struct{}, len(bands))
	for _, b := range bands {
		if b == nil {
			return &DefinitionError{Band: path, Reason: "nil band definition"}
		}
		p := path + "/" + b.Name
		if b.Name == "" {
			return &DefinitionError{Band: p, Reason: "band name is empty"}
		}
		if _, dup := seen[b.Name]; dup {
			return &DefinitionError{Band: p, Reason: "duplicate band name among siblings"}
		}
		seen[b.Name] = struct{}{}
		if len(b.Queries) == 0 {
			return &DefinitionError{Band: p, Reason: "band has no queries"}
		}
		if _, ok := b.QueryByRole(RoleValue); ok && (b.Crosstab == nil || len(b.Crosstab.ValueFields) == 0) {
			return &DefinitionError{Band: p, Reason: "value query needs declared value fields"}
		}
		if err := validateSiblings(b.Children, p); err != nil {
			return err
		}
	}
	return nil
}

type DefinitionError struct {
	Band   string
	Reason string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("invalid band definition %s: %s", e.Band, e.Reason)
}
