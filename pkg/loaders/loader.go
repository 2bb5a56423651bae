package loaders

import (
	"context"
	"errors"
	"fmt"

	"github.com/gitsby/yarg/pkg/models/domain"
)

const (
	KindSQL      = "sql"
	KindScript   = "script"
	KindDocument = "document"
)

// Loader executes one query against one backend and returns its rows in the
// backend's natural order. Implementations release every backend resource
// before returning.
type Loader interface {
	Load(ctx context.Context, query string, params domain.Params) ([]domain.Row, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, query string, params domain.Params) ([]domain.Row, error)

func (f LoaderFunc) Load(ctx context.Context, query string, params domain.Params) ([]domain.Row, error) {
	return f(ctx, query, params)
}

type UnconfiguredBackendError struct {
	Kind string
}

func (e *UnconfiguredBackendError) Error() string {
	return fmt.Sprintf("no loader configured for backend %q", e.Kind)
}

type BackendExecutionError struct {
	Kind  string
	Query string
	Err   error
}

func (e *BackendExecutionError) Error() string {
	if e.Query != "" {
		return fmt.Sprintf("%s query %q failed: %v", e.Kind, e.Query, e.Err)
	}
	return fmt.Sprintf("%s query failed: %v", e.Kind, e.Err)
}

func (e *BackendExecutionError) Unwrap() error {
	return e.Err
}

// Execute resolves the query's backend and runs it. Loader failures are
// reported as *BackendExecutionError.
func Execute(ctx context.Context, registry Registry, query domain.Query, params domain.Params) ([]domain.Row, error) {
	loader, err := registry.Resolve(query.Kind)
	if err != nil {
		return nil, err
	}

	rows, err := loader.Load(ctx, query.Text, params)
	if err != nil {
		var execErr *BackendExecutionError
		if errors.As(err, &execErr) {
			return nil, err
		}
		return nil, &BackendExecutionError{Kind: query.Kind, Query: query.Name, Err: err}
	}
	return rows, nil
}
