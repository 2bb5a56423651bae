package terminal

import (
	"context"
	"io"
	"os"

	"github.com/gitsby/yarg/pkg/config"
	"github.com/gitsby/yarg/pkg/runtime/terminal/commands"
	"github.com/gitsby/yarg/pkg/services/engine"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// CLI represents the command-line interface
type CLI struct {
	opts       Options
	configPath string
	rootCmd    *cobra.Command
}

// Options contain configuration for the CLI
type Options struct {
	Output io.Writer
	Logs   io.Writer
	// Config replaces the --config file when set.
	Config *config.Config
}

// NewCLI creates a new CLI instance
func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Logs == nil {
		opts.Logs = os.Stderr
	}

	cli := &CLI{opts: opts}
	cli.rootCmd = cli.newRootCmd()
	return cli
}

func (cli *CLI) Execute() error {
	return cli.rootCmd.Execute()
}

// ExecuteContext runs the command line with args instead of os.Args.
func (cli *CLI) ExecuteContext(ctx context.Context, args ...string) error {
	cli.rootCmd.SetArgs(args)
	return cli.rootCmd.ExecuteContext(ctx)
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "yarg",
		Short:         "Report data extraction tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(cli.opts.Output)
	cmd.PersistentFlags().StringVarP(&cli.configPath, "config", "c", "", "Path to the yarg config file")

	cmd.AddCommand(commands.NewExtractCmd(cli.open))
	cmd.AddCommand(commands.NewBandsCmd(cli.open))
	cmd.AddCommand(commands.NewDatasourcesCmd(cli.loadConfig))
	cmd.AddCommand(commands.NewRunsCmd(cli.open))

	return cmd
}

func (cli *CLI) loadConfig() (*config.Config, error) {
	if cli.opts.Config != nil {
		return cli.opts.Config, nil
	}
	return config.LoadConfig(cli.configPath)
}

func (cli *CLI) open(ctx context.Context) (*engine.Engine, context.Context, error) {
	cfg, err := cli.loadConfig()
	if err != nil {
		return nil, ctx, err
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, ctx, err
	}
	logger := zerolog.New(cli.opts.Logs).Level(level).With().Timestamp().Logger()
	ctx = logger.WithContext(ctx)

	e, err := engine.New(ctx, cfg)
	if err != nil {
		return nil, ctx, err
	}
	return e, ctx, nil
}
