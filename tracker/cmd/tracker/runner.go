package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

// Runner holds the dependencies shared by the command actions.
type Runner struct {
	output io.Writer
	logOut io.Writer
}

// RunnerOpts configures a Runner. Zero values mean stdout and stderr.
type RunnerOpts struct {
	Output io.Writer
	LogOut io.Writer
}

// NewRunner creates a Runner.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.LogOut == nil {
		opts.LogOut = os.Stderr
	}
	return &Runner{output: opts.Output, logOut: opts.LogOut}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		runCommand, statusCommand, photosCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

func (r *Runner) writeJSON(data any) error {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if _, err := fmt.Fprintln(r.output, string(out)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeln(format string, args ...any) {
	fmt.Fprintf(r.output, format+"\n", args...)
}
