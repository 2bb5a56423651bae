package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gitsby/yarg/pkg/config"
	"github.com/spf13/cobra"
)

type DatasourcesCmd struct {
	load func() (*config.Config, error)
}

func NewDatasourcesCmd(load func() (*config.Config, error)) *cobra.Command {
	dc := &DatasourcesCmd{load: load}
	return &cobra.Command{
		Use:   "datasources",
		Short: "List the configured SQL datasource profiles",
		RunE:  dc.run,
	}
}

func (dc *DatasourcesCmd) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := dc.load()
	if err != nil {
		return err
	}
	if cfg.Datasources == "" {
		return errors.New("no datasources file configured")
	}

	registry, err := config.NewRegistry(cfg.Datasources)
	if err != nil {
		return fmt.Errorf("failed to load datasources: %w", err)
	}
	names, err := registry.GetProfiles(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintf(out, "No datasources found in %s\n", cfg.Datasources)
		return nil
	}
	for _, name := range names {
		profile, err := registry.GetProfile(ctx, name)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("Name: `%s`, Driver: `%s`", profile.Name, profile.Driver)
		if len(profile.Boot) > 0 {
			line += fmt.Sprintf(", Boot: %s", strings.Join(profile.Boot, ", "))
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
