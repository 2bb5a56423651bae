package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gitsby/yarg/pkg/definition"
	"github.com/gitsby/yarg/pkg/extraction"
	"github.com/gitsby/yarg/pkg/models/api"
	"github.com/gitsby/yarg/pkg/models/domain"
	"github.com/gitsby/yarg/pkg/runtime/terminal/export"
	"github.com/gitsby/yarg/pkg/services/engine"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Opener builds the engine for one command invocation and returns the
// context carrying its logger.
type Opener func(ctx context.Context) (*engine.Engine, context.Context, error)

type ExtractCmd struct {
	report  string
	params  []string
	format  string
	output  string
	timeout time.Duration
	open    Opener
}

func NewExtractCmd(open Opener) *cobra.Command {
	ec := &ExtractCmd{open: open}
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract the band tree of a report",
		RunE:  ec.run,
	}

	cmd.Flags().StringVar(&ec.report, "report", "", "Report name in the reports directory or path to a definition file")
	cmd.Flags().StringArrayVarP(&ec.params, "param", "p", nil, "Report parameter as key=value, repeatable")
	cmd.Flags().StringVar(&ec.format, "format", export.FormatJSON, "Output format (json, msgpack, text)")
	cmd.Flags().StringVarP(&ec.output, "output", "o", "", "Write the result to a file instead of stdout")
	cmd.Flags().DurationVar(&ec.timeout, "timeout", 0, "Abort the extraction after this duration")

	_ = cmd.MarkFlagRequired("report")

	return cmd
}

func (ec *ExtractCmd) run(cmd *cobra.Command, _ []string) error {
	params, err := ParseParams(ec.params)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if ec.output != "" {
		f, err := os.Create(ec.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	reporter, err := export.NewReporter(ec.format, out)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ec.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ec.timeout)
		defer cancel()
	}

	e, ctx, err := ec.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	var report *api.Report
	if isDefinitionFile(ec.report) {
		report, err = extractFile(ctx, e, ec.report, params)
	} else {
		ctrl, cerr := e.Controller()
		if cerr != nil {
			return cerr
		}
		report, err = ctrl.Extract(ctx, ec.report, params)
	}
	if err != nil {
		return fmt.Errorf("failed to extract report %s: %w", ec.report, err)
	}

	return reporter.Handle(report)
}

// extractFile runs a definition outside the reports directory; such runs
// are not recorded in the history.
func extractFile(ctx context.Context, e *engine.Engine, path string, params domain.Params) (*api.Report, error) {
	report, err := definition.LoadFile(path)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	tree, err := e.Extractor.ExtractReport(extraction.WithRunID(ctx, runID), report, params)
	if err != nil {
		return nil, err
	}
	return api.FromTree(report.Name, runID, tree), nil
}

func isDefinitionFile(report string) bool {
	if _, err := definition.FormatOf(report); err != nil {
		return false
	}
	_, err := os.Stat(report)
	return err == nil
}

// ParseParams converts key=value pairs. Values are read as integer, float,
// boolean, date (2006-01-02) or RFC 3339 timestamp before falling back to text.
func ParseParams(pairs []string) (domain.Params, error) {
	params := make(domain.Params, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", pair)
		}
		params[key] = inferValue(raw)
	}
	return params, nil
}

func inferValue(raw string) domain.Value {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return domain.Integer(i)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return domain.Float(f)
	}
	switch strings.ToLower(raw) {
	case "true":
		return domain.Bool(true)
	case "false":
		return domain.Bool(false)
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return domain.Date(t)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return domain.Date(t)
	}
	return domain.Text(raw)
}
