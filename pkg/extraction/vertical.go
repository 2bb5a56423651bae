package extraction

import (
	"context"
	"sort"

	"github.com/gitsby/yarg/pkg/models/domain"
)

// verticalController folds all rows of a band into a single band.
type verticalController struct {
	rt *runtime
}

func (c *verticalController) Extract(ctx context.Context, ec *Context) ([]domain.BandID, error) {
	rows, err := c.rt.queryRows(ctx, ec)
	if err != nil {
		return nil, err
	}

	b := newBand(ec, domain.Row{})
	b.Data, b.Columns = fold(rows, ec.Definition.Aggregates)

	id := ec.Tree.Add(ec.Parent, b)
	if err := c.rt.extractChildren(ctx, ec, id); err != nil {
		return nil, err
	}
	return []domain.BandID{id}, nil
}

func fold(rows []domain.Row, aggregates map[string]domain.Aggregate) (domain.Row, map[string][]domain.Value) {
	var fields []string
	columns := make(map[string][]domain.Value)
	for i, r := range rows {
		for _, f := range r.Fields() {
			if _, ok := columns[f]; !ok {
				fields = append(fields, f)
				// rows before i lacked the field
				columns[f] = make([]domain.Value, i, len(rows))
			}
		}
		for _, f := range fields {
			v, _ := r.Get(f)
			columns[f] = append(columns[f], v)
		}
	}

	declared := make([]string, 0, len(aggregates))
	for f := range aggregates {
		if _, ok := columns[f]; !ok {
			declared = append(declared, f)
		}
	}
	sort.Strings(declared)
	fields = append(fields, declared...)

	data := domain.NewRow(len(fields))
	for _, f := range fields {
		fn, ok := aggregates[f]
		if !ok {
			fn = domain.AggregateFirst
		}
		data = data.Set(f, aggregate(fn, columns[f]))
	}
	return data, columns
}

func aggregate(fn domain.Aggregate, values []domain.Value) domain.Value {
	switch fn {
	case domain.AggregateCount:
		n := 0
		for _, v := range values {
			if !v.IsNull() {
				n++
			}
		}
		return domain.Integer(int64(n))
	case domain.AggregateSum:
		return sum(values)
	case domain.AggregateAvg:
		total, n := 0.0, 0
		for _, v := range values {
			if f, ok := v.Number(); ok {
				total += f
				n++
			}
		}
		if n == 0 {
			return domain.Null
		}
		return domain.Float(total / float64(n))
	case domain.AggregateMin:
		return extreme(values, func(a, b domain.Value) bool { return less(a, b) })
	case domain.AggregateMax:
		return extreme(values, func(a, b domain.Value) bool { return less(b, a) })
	case domain.AggregateLast:
		for i := len(values) - 1; i >= 0; i-- {
			if !values[i].IsNull() {
				return values[i]
			}
		}
		return domain.Null
	default:
		for _, v := range values {
			if !v.IsNull() {
				return v
			}
		}
		return domain.Null
	}
}

// sum stays integral while every operand is an integer.
func sum(values []domain.Value) domain.Value {
	var (
		i        int64
		f        float64
		floating bool
	)
	for _, v := range values {
		switch v.Kind() {
		case domain.KindInteger:
			i += v.Int()
		case domain.KindFloat:
			n, _ := v.Number()
			f += n
			floating = true
		}
	}
	if floating {
		return domain.Float(f + float64(i))
	}
	return domain.Integer(i)
}

func extreme(values []domain.Value, better func(a, b domain.Value) bool) domain.Value {
	out := domain.Null
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		if out.IsNull() || better(v, out) {
			out = v
		}
	}
	return out
}

// less orders numbers numerically, dates chronologically and anything else by text.
func less(a, b domain.Value) bool {
	if x, ok := a.Number(); ok {
		if y, ok := b.Number(); ok {
			return x < y
		}
	}
	if a.Kind() == domain.KindDate && b.Kind() == domain.KindDate {
		return a.Time().Before(b.Time())
	}
	return a.String() < b.String()
}
