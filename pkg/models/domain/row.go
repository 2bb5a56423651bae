package domain

import "sort"

// Row is an ordered field -> value mapping returned by a backend.
// Rows of one result set may share their field list.
type Row struct {
	fields []string
	values map[string]Value
}

func NewRow(capacity int) Row {
	return Row{
		fields: make([]string, 0, capacity),
		values: make(map[string]Value, capacity),
	}
}

// NewRowWithFields builds a row whose field list is shared with the caller.
// values must have the same length as fields.
func NewRowWithFields(fields []string, values []Value) Row {
	m := make(map[string]Value, len(fields))
	for i, f := range fields {
		m[f] = values[i]
	}
	return Row{fields: fields, values: m}
}

// RowFromMap builds a row from an unordered map; fields are sorted by name.
func RowFromMap(m map[string]Value) Row {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	values := make(map[string]Value, len(m))
	for k, v := range m {
		values[k] = v
	}
	return Row{fields: fields, values: values}
}

func (r Row) Len() int {
	return len(r.fields)
}

func (r Row) Fields() []string {
	return r.fields
}

func (r Row) Get(field string) (Value, bool) {
	v, ok := r.values[field]
	return v, ok
}

func (r Row) Has(field string) bool {
	_, ok := r.values[field]
	return ok
}

// Set returns the row with field set to v. A new field is appended without
// touching a field list shared with other rows.
func (r Row) Set(field string, v Value) Row {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if _, ok := r.values[field]; !ok {
		r.fields = append(r.fields[:len(r.fields):len(r.fields)], field)
	}
	r.values[field] = v
	return r
}

// Merge returns a copy of r with every field of o set on it; o wins on collision.
func (r Row) Merge(o Row) Row {
	out := r.Clone()
	for _, f := range o.fields {
		out = out.Set(f, o.values[f])
	}
	return out
}

func (r Row) Clone() Row {
	fields := make([]string, len(r.fields))
	copy(fields, r.fields)
	values := make(map[string]Value, len(r.values))
	for k, v := range r.values {
		values[k] = v
	}
	return Row{fields: fields, values: values}
}

// Map returns the row as native Go values.
func (r Row) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(r.fields))
	for _, f := range r.fields {
		out[f] = r.values[f].Interface()
	}
	return out
}
