package report

import (
	"context"
	"errors"
	"time"

	"github.com/gitsby/yarg/pkg/extraction"
	"github.com/gitsby/yarg/pkg/models/api"
	"github.com/gitsby/yarg/pkg/models/domain"
	"github.com/gitsby/yarg/pkg/store/reports"
	"github.com/gitsby/yarg/pkg/store/runs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Extractor interface {
	ExtractReport(ctx context.Context, report *domain.Report, params domain.Params) (*domain.Tree, error)
}

// Controller extracts stored reports and records every run.
type Controller interface {
	ListReports(ctx context.Context) ([]string, error)
	GetReport(ctx context.Context, name string) (*domain.Report, error)
	Extract(ctx context.Context, name string, params domain.Params) (*api.Report, error)
	ListRuns(ctx context.Context, report string, limit int) ([]domain.Run, error)
}

var ErrHistoryDisabled = errors.New("run history is not configured")

type DefaultController struct {
	reports   reports.Store
	runs      runs.Store // nil disables run history
	extractor Extractor
}

func NewController(reportStore reports.Store, runStore runs.Store, extractor Extractor) *DefaultController {
	return &DefaultController{
		reports:   reportStore,
		runs:      runStore,
		extractor: extractor,
	}
}

func (ctrl *DefaultController) ListReports(ctx context.Context) ([]string, error) {
	return ctrl.reports.ListReports(ctx)
}

func (ctrl *DefaultController) GetReport(ctx context.Context, name string) (*domain.Report, error) {
	return ctrl.reports.GetReport(ctx, name)
}

func (ctrl *DefaultController) Extract(ctx context.Context, name string, params domain.Params) (*api.Report, error) {
	report, err := ctrl.reports.GetReport(ctx, name)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = extraction.WithRunID(ctx, runID)
	logger := zerolog.Ctx(ctx)

	if ctrl.runs != nil {
		err := ctrl.runs.CreateRun(ctx, domain.Run{
			ID:        runID,
			Report:    name,
			Params:    params.Native(),
			StartedAt: time.Now(),
		})
		if err != nil {
			return nil, err
		}
	}

	tree, extractErr := ctrl.extractor.ExtractReport(ctx, report, params)

	if ctrl.runs != nil {
		bands := 0
		if tree != nil {
			bands = tree.Len() - 1
		}
		// the request context may already be cancelled
		finishCtx := context.WithoutCancel(ctx)
		if err := ctrl.runs.FinishRun(finishCtx, runID, bands, extractErr); err != nil {
			logger.Warn().Err(err).Str("run_id", runID).Msg("failed to record run result")
		}
	}

	if extractErr != nil {
		return nil, extractErr
	}
	return api.FromTree(report.Name, runID, tree), nil
}

func (ctrl *DefaultController) ListRuns(ctx context.Context, report string, limit int) ([]domain.Run, error) {
	if ctrl.runs == nil {
		return nil, ErrHistoryDisabled
	}
	return ctrl.runs.ListRuns(ctx, report, limit)
}
