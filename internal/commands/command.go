// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/go-kit/kit/log"

	"todo/internal/config"
	"todo/internal/exitcode"
	"todo/internal/output"
	"todo/internal/service"
)

// Env is what the dispatcher hands to a command.
type Env struct {
	// Config is always provided (config dir, paths, quiet).
	Config *config.Config

	// Backend is nil unless NeedsBackend or NeedsAuth returns true.
	Backend service.Backend

	// Session is the signed-in session; set only when NeedsAuth returns true.
	Session *service.Session

	// Logger is never nil.
	Logger log.Logger
}

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsBackend returns true if the command talks to the remote store.
	NeedsBackend() bool

	// NeedsAuth returns true if the command requires a signed-in session.
	// It implies NeedsBackend.
	NeedsAuth() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, env Env, args []string, out, errOut io.Writer) int
}

// fail prints e as an error line and returns its exit code.
func fail(errOut io.Writer, e *service.Error) int {
	output.FormatBanner(errOut, e.Error(), false)
	return exitcode.For(e)
}

// ok prints the acknowledgement unless quiet.
func ok(env Env, out io.Writer) {
	if !env.Config.Quiet {
		fmt.Fprintln(out, "ok")
	}
}
