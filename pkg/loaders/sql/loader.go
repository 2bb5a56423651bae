package sql

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/gitsby/yarg/pkg/models/domain"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// ${name} placeholders are rewritten into sqlx named parameters
var dollarPlaceholder = regexp.MustCompile(`\$\{\s*([A-Za-z_][A-Za-z0-9_.]*)\s*\}`)

type Loader struct {
	db *sqlx.DB
}

func NewLoader(db *sqlx.DB) (*Loader, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &Loader{db: db}, nil
}

func (l *Loader) Load(ctx context.Context, query string, params domain.Params) ([]domain.Row, error) {
	logger := zerolog.Ctx(ctx)

	bound, args, err := l.bind(query, params)
	if err != nil {
		return nil, err
	}

	rows, err := l.db.QueryxContext(ctx, bound, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func(rows *sqlx.Rows) {
		err := rows.Close()
		if err != nil {
			logger.Warn().Err(err).Msg("failed to close query rows")
		}
	}(rows)

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	records := make([]domain.Row, 0)
	raw := make([]interface{}, len(columns))
	dest := make([]interface{}, len(columns))
	for i := range raw {
		dest[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(records), err)
		}
		values := make([]domain.Value, len(columns))
		for i, r := range raw {
			v, err := domain.FromAny(r)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", columns[i], err)
			}
			values[i] = v
		}
		records = append(records, domain.NewRowWithFields(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	logger.Debug().Int("rows", len(records)).Msg("sql query loaded")
	return records, nil
}

// bind resolves named parameters into positional arguments in the driver's
// bind variable style. Queries without named parameters are passed through.
// Colons inside quoted literals and identifiers are kept as text, and `::`
// outside quotes stands for a literal colon.
func (l *Loader) bind(query string, params domain.Params) (string, []interface{}, error) {
	named, ok := escapeQuoted(dollarPlaceholder.ReplaceAllString(query, ":$1"))
	if !ok {
		return query, nil, nil
	}

	bound, args, err := sqlx.Named(named, params.Native())
	if err != nil {
		return "", nil, fmt.Errorf("bind parameters: %w", err)
	}
	return l.db.Rebind(bound), args, nil
}

// escapeQuoted doubles the colons found inside quotes so sqlx does not read
// them as parameters. It reports whether a named parameter remains outside.
func escapeQuoted(query string) (string, bool) {
	var (
		b     strings.Builder
		quote byte
		named bool
	)
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else if c == ':' {
				b.WriteByte(':')
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == ':' && i+1 < len(query) && isNameStart(query[i+1]) && (i == 0 || query[i-1] != ':'):
			named = true
		}
		b.WriteByte(c)
	}
	return b.String(), named
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
