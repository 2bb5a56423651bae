package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/gitsby/yarg/pkg/models/domain"
	"github.com/spf13/cobra"
)

type RunsCmd struct {
	report string
	limit  int
	open   Opener
}

func NewRunsCmd(open Opener) *cobra.Command {
	rc := &RunsCmd{open: open}
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show the extraction run history",
		RunE:  rc.run,
	}

	cmd.Flags().StringVar(&rc.report, "report", "", "Only show runs of this report")
	cmd.Flags().IntVar(&rc.limit, "limit", 20, "Maximum number of runs to show")

	return cmd
}

func (rc *RunsCmd) run(cmd *cobra.Command, _ []string) error {
	e, ctx, err := rc.open(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	ctrl, err := e.Controller()
	if err != nil {
		return err
	}
	history, err := ctrl.ListRuns(ctx, rc.report, rc.limit)
	if err != nil {
		return err
	}

	if len(history) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREPORT\tBANDS\tSTARTED\tSTATUS\tERROR")
	for _, r := range history {
		msg := ""
		if r.Error != nil {
			msg = *r.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			r.ID, r.Report, r.Bands, r.StartedAt.Format(time.RFC3339), statusColor(r.Status).Sprint(r.Status), msg)
	}
	return w.Flush()
}

func statusColor(status domain.RunStatus) *color.Color {
	switch status {
	case domain.RunStatusFinished:
		return color.New(color.FgGreen)
	case domain.RunStatusFailed:
		return color.New(color.FgRed)
	case domain.RunStatusCancelled:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}
