package extraction

import (
	"context"
	"errors"
	"time"

	"github.com/gitsby/yarg/pkg/loaders"
	"github.com/gitsby/yarg/pkg/models/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type runIDKey struct{}

// WithRunID fixes the run id logged by ExtractReport.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Extractor materializes report definitions into band trees.
// An Extractor is safe for concurrent use; all extractions share its workers.
type Extractor struct {
	rt *runtime
}

func NewExtractor(registry loaders.Registry, settings Settings) *Extractor {
	return &Extractor{rt: newRuntime(registry, settings)}
}

func (e *Extractor) Controllers() ControllerFactory {
	return e.rt.factory
}

// ExtractReport runs every band of report against the loaders and returns the
// complete tree. No tree is returned when any band fails.
func (e *Extractor) ExtractReport(ctx context.Context, report *domain.Report, params domain.Params) (*domain.Tree, error) {
	if report == nil {
		return nil, errors.New("report is nil")
	}

	runID := RunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := zerolog.Ctx(ctx).With().
		Str("run_id", runID).
		Str("report", report.Name).
		Logger()
	ctx = logger.WithContext(ctx)

	if err := report.Validate(); err != nil {
		return nil, err
	}
	external, err := reportParams(report, params)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	tree := domain.NewTree()
	tree.AddFormats(report.Formats)
	for _, b := range report.Bands {
		tree.AddFirstLevelBand(b.Name)
	}

	results := make([][]domain.BandID, len(report.Bands))
	err = e.rt.fanOut(ctx, len(report.Bands), func(ctx context.Context, i int) error {
		ids, err := e.rt.extractBand(ctx, tree, report.Bands[i], tree.Root(), external)
		if err != nil {
			return err
		}
		results[i] = ids
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("report extraction failed")
		return nil, err
	}
	for _, ids := range results {
		tree.Attach(tree.Root(), ids...)
	}

	logger.Info().
		Int("bands", tree.Len()-1).
		Dur("took", time.Since(start)).
		Msg("report extracted")
	return tree, nil
}

// reportParams applies declared defaults and checks required parameters.
func reportParams(report *domain.Report, params domain.Params) (domain.Params, error) {
	out := params.Clone()
	for _, p := range report.Parameters {
		if v, ok := out[p.Name]; ok && !v.IsNull() {
			continue
		}
		if p.Default != nil {
			out[p.Name] = *p.Default
			continue
		}
		if p.Required {
			return nil, &MissingParameterError{Name: p.Name}
		}
	}
	return out, nil
}
