package document

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/gitsby/yarg/pkg/models/domain"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ScalarField names the field of rows produced from scalar results.
const ScalarField = "value"

var placeholder = regexp.MustCompile(`\$\{\s*([A-Za-z_][A-Za-z0-9_.]*)\s*\}`)

// Loader evaluates JSON path expressions over a JSON or YAML document passed
// as a parameter. Query text: "parameter=<name> <path>".
type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

func (l *Loader) Load(ctx context.Context, query string, params domain.Params) ([]domain.Row, error) {
	source, path, err := parseQuery(query)
	if err != nil {
		return nil, err
	}

	raw, ok := params[source]
	if !ok || raw.IsNull() {
		return nil, fmt.Errorf("document parameter %q is not set", source)
	}
	if raw.Kind() != domain.KindText {
		return nil, fmt.Errorf("document parameter %q must be text, got %s", source, raw.Kind())
	}

	doc, err := decode(raw.Str())
	if err != nil {
		return nil, fmt.Errorf("decode document %q: %w", source, err)
	}

	path, err = substitute(path, params)
	if err != nil {
		return nil, err
	}

	result, err := jsonpath.Get(path, doc)
	if err != nil {
		return nil, fmt.Errorf("evaluate path %s: %w", path, err)
	}

	records, err := toRows(result)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Str("path", path).Int("rows", len(records)).Msg("document loaded")
	return records, nil
}

func parseQuery(query string) (string, string, error) {
	query = strings.TrimSpace(query)
	if !strings.HasPrefix(query, "parameter=") {
		return "", "", fmt.Errorf("document query must start with parameter=<name>: %q", query)
	}
	head, path, found := strings.Cut(query, " ")
	name := strings.TrimPrefix(head, "parameter=")
	path = strings.TrimSpace(path)
	if !found || name == "" || path == "" {
		return "", "", fmt.Errorf("document query must be \"parameter=<name> <path>\": %q", query)
	}
	return name, path, nil
}

// decode parses JSON documents with encoding/json and everything else as YAML.
func decode(text string) (interface{}, error) {
	var doc interface{}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, err
	}
	return normalize(doc), nil
}

// normalize turns YAML specific map types into the shapes jsonpath expects.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []interface{}:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	default:
		return v
	}
}

// substitute replaces ${name} placeholders of a path with parameter literals.
func substitute(path string, params domain.Params) (string, error) {
	var missing string
	out := placeholder.ReplaceAllStringFunc(path, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v, ok := params[name]
		if !ok {
			missing = name
			return m
		}
		return literal(v)
	})
	if missing != "" {
		return "", fmt.Errorf("path parameter %q is not set", missing)
	}
	return out, nil
}

func literal(v domain.Value) string {
	switch v.Kind() {
	case domain.KindText:
		return strconv.Quote(v.Str())
	case domain.KindDate:
		return strconv.Quote(v.Time().Format(time.RFC3339))
	default:
		return v.String()
	}
}

func toRows(result interface{}) ([]domain.Row, error) {
	switch x := result.(type) {
	case []interface{}:
		records := make([]domain.Row, 0, len(x))
		for i, e := range x {
			row, err := toRow(e)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			records = append(records, row)
		}
		return records, nil
	case nil:
		return []domain.Row{}, nil
	default:
		row, err := toRow(x)
		if err != nil {
			return nil, err
		}
		return []domain.Row{row}, nil
	}
}

func toRow(e interface{}) (domain.Row, error) {
	obj, ok := e.(map[string]interface{})
	if !ok {
		v, err := domain.FromAny(e)
		if err != nil {
			return domain.Row{}, err
		}
		return domain.NewRow(1).Set(ScalarField, v), nil
	}
	values := make(map[string]domain.Value, len(obj))
	for k, raw := range obj {
		v, err := fieldValue(raw)
		if err != nil {
			return domain.Row{}, fmt.Errorf("field %s: %w", k, err)
		}
		values[k] = v
	}
	return domain.RowFromMap(values), nil
}

// fieldValue keeps nested objects and arrays as their JSON text.
func fieldValue(raw interface{}) (domain.Value, error) {
	switch raw.(type) {
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(raw)
		if err != nil {
			return domain.Null, err
		}
		return domain.Text(string(b)), nil
	default:
		return domain.FromAny(raw)
	}
}
