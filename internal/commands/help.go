package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"todo/internal/exitcode"
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string       { return "help" }
func (c *HelpCmd) Aliases() []string  { return nil }
func (c *HelpCmd) Synopsis() string   { return "Print usage" }
func (c *HelpCmd) Usage() string      { return "todo help" }
func (c *HelpCmd) NeedsBackend() bool { return false }
func (c *HelpCmd) NeedsAuth() bool    { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, env Env, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	return exitcode.Success
}

const helpText = `Usage:
  todo                                       List tasks
  todo list [common flags]                   List tasks
  todo add [common flags] <title...>         Create a task
  todo toggle [common flags] <id>            Complete a task, or open it again
  todo rm [common flags] <id>                Delete a task
  todo login [common flags] [--code <code>] <email>
  todo logout [common flags]
  todo whoami [common flags]
  todo shell [common flags] [--metrics-addr <addr>]
  todo help
  todo version

Common flags:
  --config <dir>      Override config directory
  --backend <name>    Remote store: supabase (default) or googletasks
  --quiet             Suppress informational output
  --debug             Print debug logs to stderr
`
