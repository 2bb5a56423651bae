package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/gitsby/yarg/pkg/definition"
	"github.com/gitsby/yarg/pkg/models/domain"
	"github.com/spf13/cobra"
)

type BandsCmd struct {
	report string
	open   Opener
}

func NewBandsCmd(open Opener) *cobra.Command {
	bc := &BandsCmd{open: open}
	cmd := &cobra.Command{
		Use:   "bands",
		Short: "Print the band definition tree of a report",
		RunE:  bc.run,
	}

	cmd.Flags().StringVar(&bc.report, "report", "", "Report name in the reports directory or path to a definition file")
	_ = cmd.MarkFlagRequired("report")

	return cmd
}

func (bc *BandsCmd) run(cmd *cobra.Command, _ []string) error {
	var report *domain.Report
	if isDefinitionFile(bc.report) {
		r, err := definition.LoadFile(bc.report)
		if err != nil {
			return err
		}
		report = r
	} else {
		e, ctx, err := bc.open(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		store, err := e.Reports()
		if err != nil {
			return err
		}
		if report, err = store.GetReport(ctx, bc.report); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Report: %s\n", report.Name)
	for _, p := range report.Parameters {
		switch {
		case p.Required:
			fmt.Fprintf(out, "Parameter: %s (required)\n", p.Name)
		case p.Default != nil:
			fmt.Fprintf(out, "Parameter: %s = %s\n", p.Name, p.Default.String())
		default:
			fmt.Fprintf(out, "Parameter: %s\n", p.Name)
		}
	}
	for _, b := range report.Bands {
		printBand(out, b, 0)
	}
	return nil
}

func printBand(out io.Writer, b *domain.BandDefinition, depth int) {
	queries := make([]string, 0, len(b.Queries))
	for _, q := range b.Queries {
		desc := q.Name + ":" + q.Kind
		if q.Role != domain.RoleNone {
			desc += "/" + string(q.Role)
		}
		queries = append(queries, desc)
	}

	line := fmt.Sprintf("%s%s [%s] %s", strings.Repeat("  ", depth), b.Name, domain.ParseOrientation(string(b.Orientation)), strings.Join(queries, " "))
	if len(b.LinkFields) > 0 {
		line += " link=" + strings.Join(b.LinkFields, ",")
	}
	fmt.Fprintln(out, line)

	for _, c := range b.Children {
		printBand(out, c, depth+1)
	}
}
