package script

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/gitsby/yarg/pkg/models/domain"
	"github.com/rs/zerolog"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

const (
	entryPoint   = "Load"
	inputPath    = "yarg/input"
	inputPackage = "yarginput"
	runner       = "yargRun"
)

// LoadFunc is the signature a script must expose.
type LoadFunc = func(params map[string]interface{}) ([]map[string]interface{}, error)

// DefaultAllowedImports lists the standard packages a script may import.
// Filesystem, process, network and unsafe packages are never allowed.
var DefaultAllowedImports = []string{
	"bytes",
	"encoding/base64",
	"encoding/json",
	"errors",
	"fmt",
	"math",
	"regexp",
	"sort",
	"strconv",
	"strings",
	"time",
	"unicode",
}

// Loader evaluates Go scripts with the yaegi interpreter. Every call gets a
// fresh interpreter, so scripts cannot share state.
type Loader struct {
	allowed map[string]bool
}

func NewLoader(allowedImports ...string) *Loader {
	if len(allowedImports) == 0 {
		allowedImports = DefaultAllowedImports
	}
	allowed := make(map[string]bool, len(allowedImports))
	for _, pkg := range allowedImports {
		allowed[pkg] = true
	}
	return &Loader{allowed: allowed}
}

func (l *Loader) Load(ctx context.Context, query string, params domain.Params) ([]domain.Row, error) {
	src, err := l.prepare(query)
	if err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("load stdlib symbols: %w", err)
	}
	input := params.Native()
	if err := i.Use(interp.Exports{
		inputPath + "/" + inputPackage: {"Params": reflect.ValueOf(&input).Elem()},
	}); err != nil {
		return nil, fmt.Errorf("load script params: %w", err)
	}
	if _, err := i.EvalWithContext(ctx, src); err != nil {
		return nil, fmt.Errorf("evaluate script: %w", err)
	}
	v, err := i.EvalWithContext(ctx, "main."+entryPoint)
	if err != nil {
		return nil, fmt.Errorf("script does not define %s: %w", entryPoint, err)
	}
	if _, ok := v.Interface().(LoadFunc); !ok {
		return nil, fmt.Errorf("%s has signature %s, want func(map[string]interface{}) ([]map[string]interface{}, error)",
			entryPoint, v.Type())
	}

	// The call stays inside the interpreter so that a cancelled context
	// stops the script instead of leaving it running.
	out, err := i.EvalWithContext(ctx, "main."+runner+"()")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("script interrupted: %w", ctxErr)
		}
		return nil, fmt.Errorf("script failed: %w", err)
	}

	rows, err := results(out)
	if err != nil {
		return nil, err
	}
	records, err := convert(rows)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Int("rows", len(records)).Msg("script loaded")
	return records, nil
}

// results unpacks the rows and error returned by the entry point.
func results(out reflect.Value) ([]map[string]interface{}, error) {
	pair, ok := out.Interface().([]interface{})
	if !ok || len(pair) != 2 {
		return nil, fmt.Errorf("unexpected %s result %v", entryPoint, out)
	}
	if pair[1] != nil {
		if err, ok := pair[1].(error); ok {
			return nil, fmt.Errorf("script failed: %w", err)
		}
		return nil, fmt.Errorf("script failed: %v", pair[1])
	}
	if pair[0] == nil {
		return nil, nil
	}
	rows, ok := pair[0].([]map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s returned %T, want []map[string]interface{}", entryPoint, pair[0])
	}
	return rows, nil
}

// prepare validates imports, wraps a bare function body into a Load function
// and appends the runner that feeds it the exported params.
func (l *Loader) prepare(code string) (string, error) {
	imports, body := splitImports(code)

	var forbidden []string
	for _, spec := range imports {
		if pkg := importPath(spec); !l.allowed[pkg] {
			forbidden = append(forbidden, pkg)
		}
	}
	if len(forbidden) > 0 {
		return "", fmt.Errorf("forbidden imports in script: %v", forbidden)
	}

	var b strings.Builder
	b.WriteString("package main\n\n")
	for _, spec := range imports {
		fmt.Fprintf(&b, "import %s\n", spec)
	}
	fmt.Fprintf(&b, "import %s %q\n\n", inputPackage, inputPath)
	if strings.Contains(body, "func "+entryPoint+"(") {
		b.WriteString(body)
	} else {
		fmt.Fprintf(&b, "func %s(params map[string]interface{}) ([]map[string]interface{}, error) {\n%s\n}\n", entryPoint, body)
	}
	fmt.Fprintf(&b, "\nfunc %s() []interface{} {\n\trows, err := %s(%s.Params)\n\treturn []interface{}{rows, err}\n}\n",
		runner, entryPoint, inputPackage)
	return b.String(), nil
}

// splitImports strips an optional package clause and the leading import
// declarations of a script, returning the import specs as written.
func splitImports(code string) ([]string, string) {
	lines := strings.Split(code, "\n")
	var imports []string
	inBlock := false

	for idx, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case inBlock && strings.HasPrefix(trimmed, ")"):
			inBlock = false
		case inBlock:
			if importPath(trimmed) != "" {
				imports = append(imports, trimmed)
			}
		case trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "package "):
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case strings.HasPrefix(trimmed, "import "):
			if spec := strings.TrimSpace(strings.TrimPrefix(trimmed, "import ")); importPath(spec) != "" {
				imports = append(imports, spec)
			}
		default:
			return imports, strings.Join(lines[idx:], "\n")
		}
	}
	return imports, ""
}

func importPath(spec string) string {
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.HasPrefix(spec, "//") {
		return ""
	}
	start := strings.Index(spec, `"`)
	end := strings.LastIndex(spec, `"`)
	if start < 0 || end <= start {
		return ""
	}
	return spec[start+1 : end]
}

func convert(raw []map[string]interface{}) ([]domain.Row, error) {
	records := make([]domain.Row, 0, len(raw))
	var shared []string
	for idx, m := range raw {
		fields := sortedKeys(m)
		if !sameFields(shared, fields) {
			shared = fields
		}
		values := make([]domain.Value, len(shared))
		for i, f := range shared {
			v, err := domain.FromAny(m[f])
			if err != nil {
				return nil, fmt.Errorf("row %d field %s: %w", idx, f, err)
			}
			values[i] = v
		}
		records = append(records, domain.NewRowWithFields(shared, values))
	}
	return records, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sameFields(a, b []string) bool {
	if a == nil || len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
