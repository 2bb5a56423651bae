package extraction

import (
	"context"
	"errors"
	"time"

	"github.com/gitsby/yarg/pkg/loaders"
	"github.com/gitsby/yarg/pkg/models/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Controller turns the rows of one band definition into sibling bands and
// extracts the definition's children below each of them.
type Controller interface {
	Extract(ctx context.Context, ec *Context) ([]domain.BandID, error)
}

// runtime is shared by all controllers of one factory.
type runtime struct {
	loaders  loaders.Registry
	builder  ContextBuilder
	factory  ControllerFactory
	workers  *semaphore.Weighted // nil runs everything inline
	cellFill CellPolicy
}

func newRuntime(registry loaders.Registry, settings Settings) *runtime {
	rt := &runtime{
		loaders:  registry,
		builder:  NewContextBuilder(),
		cellFill: settings.CellPolicy,
	}
	if rt.cellFill == nil {
		rt.cellFill = NullCells
	}
	if settings.Parallelism > 0 {
		rt.workers = semaphore.NewWeighted(int64(settings.Parallelism))
	}
	rt.factory = newControllerFactory(rt)
	return rt
}

// extractBand runs the controller of def below parent. The produced bands are
// not attached to parent; the caller attaches them in definition order.
func (rt *runtime) extractBand(
	ctx context.Context,
	tree *domain.Tree,
	def *domain.BandDefinition,
	parent domain.BandID,
	external domain.Params,
) ([]domain.BandID, error) {
	ids, err := rt.extractUnwrapped(ctx, tree, def, parent, external)
	if err != nil {
		var bandErr *BandError
		if errors.As(err, &bandErr) {
			return nil, err
		}
		return nil, &BandError{Path: append(tree.Path(parent), def.Name), Err: err}
	}
	return ids, nil
}

func (rt *runtime) extractUnwrapped(
	ctx context.Context,
	tree *domain.Tree,
	def *domain.BandDefinition,
	parent domain.BandID,
	external domain.Params,
) ([]domain.BandID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ec, err := rt.builder.Build(def, tree, parent, external)
	if err != nil {
		return nil, err
	}
	ctrl, err := rt.factory.ControllerFor(def.Orientation)
	if err != nil {
		return nil, err
	}
	return ctrl.Extract(ctx, ec)
}

// extractChildren extracts every child definition of ec below the band id.
func (rt *runtime) extractChildren(ctx context.Context, ec *Context, id domain.BandID) error {
	for _, child := range ec.Definition.Children {
		ids, err := rt.extractBand(ctx, ec.Tree, child, id, ec.External)
		if err != nil {
			return err
		}
		ec.Tree.Attach(id, ids...)
	}
	return nil
}

func (rt *runtime) extractChildrenOf(ctx context.Context, ec *Context, ids []domain.BandID) error {
	if len(ec.Definition.Children) == 0 {
		return nil
	}
	return rt.fanOut(ctx, len(ids), func(ctx context.Context, i int) error {
		return rt.extractChildren(ctx, ec, ids[i])
	})
}

// fanOut calls fn for 0..n-1. Calls run on a worker when one is free and
// inline otherwise. The first error cancels the remaining calls.
func (rt *runtime) fanOut(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if rt.workers == nil || n < 2 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < n; i++ {
		i := i
		if gctx.Err() != nil {
			break
		}
		if rt.workers.TryAcquire(1) {
			g.Go(func() error {
				defer rt.workers.Release(1)
				return fn(gctx, i)
			})
			continue
		}
		if err := fn(gctx, i); err != nil {
			cancel(err)
			_ = g.Wait()
			return err
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return context.Cause(ctx)
}

// load runs one query with the given parameters.
func (rt *runtime) load(ctx context.Context, def *domain.BandDefinition, q domain.Query, params domain.Params) ([]domain.Row, error) {
	start := time.Now()
	rows, err := loaders.Execute(ctx, rt.loaders, q, params)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().
		Str("band", def.Name).
		Str("query", q.Name).
		Str("backend", q.Kind).
		Int("rows", len(rows)).
		Dur("took", time.Since(start)).
		Msg("query executed")
	return rows, nil
}

// queryRows evaluates the data queries of a band. The first query's rows are
// the base; rows of later queries are merged into base rows sharing the value
// of the later query's link field.
func (rt *runtime) queryRows(ctx context.Context, ec *Context) ([]domain.Row, error) {
	def := ec.Definition
	queries := def.DataQueries()
	if len(queries) == 0 {
		return nil, &domain.DefinitionError{Band: def.Name, Reason: "band has no data query"}
	}

	base, err := rt.load(ctx, def, queries[0], ec.Params)
	if err != nil {
		return nil, err
	}

	for _, q := range queries[1:] {
		if q.Link == "" {
			return nil, &domain.DefinitionError{Band: def.Name, Reason: "query " + q.Name + " has no link field to join on"}
		}
		rows, err := rt.load(ctx, def, q, ec.Params)
		if err != nil {
			return nil, err
		}
		base = join(base, rows, q.Link)
	}
	return base, nil
}

func join(base, rows []domain.Row, link string) []domain.Row {
	index := make(map[string]domain.Row, len(rows))
	for _, r := range rows {
		v, ok := r.Get(link)
		if !ok {
			continue
		}
		if _, dup := index[v.Key()]; !dup {
			index[v.Key()] = r
		}
	}

	out := make([]domain.Row, len(base))
	for i, r := range base {
		out[i] = r
		v, ok := r.Get(link)
		if !ok {
			continue
		}
		if match, ok := index[v.Key()]; ok {
			out[i] = r.Merge(match)
		}
	}
	return out
}
