package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"
	"github.com/urfave/cli/v3"

	"github.com/saintjustus/windowshell/internal/domain/manifest"
	"github.com/saintjustus/windowshell/internal/infrastructure/config"
	"github.com/saintjustus/windowshell/internal/infrastructure/logging"
)

// Runner holds the dependencies shared by every command
type Runner struct {
	config *config.Config
	log    *logging.Logger
	output io.Writer
}

// RunnerOpts configure a Runner
type RunnerOpts struct {
	Config *config.Config
	Logger *logging.Logger
	Output io.Writer
}

func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{config: opts.Config, log: opts.Logger, output: opts.Output}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range []func(*Runner) *cli.Command{navigateCommand, manifestsCommand, placeCommand} {
		commands = append(commands, fn(r))
	}
	return commands
}

// catalogue is the built-in catalogue overlaid with the manifests in dir
func (r *Runner) catalogue(dir string) (*manifest.Catalogue, error) {
	cat, err := manifest.Builtin()
	if err != nil {
		return nil, fmt.Errorf("builtin manifests: %w", err)
	}
	if dir == "" {
		return cat, nil
	}
	extra, err := manifest.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	cat.Merge(extra)
	return cat, nil
}

func (r *Runner) writeJSON(data any) error {
	out, err := sonic.ConfigStd.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	return r.writePlain("%s\n", out)
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
