package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"todo/internal/exitcode"
	"todo/internal/output"
	"todo/internal/state"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command. It also handles `todo` with no args.
type ListCmd struct{}

func (c *ListCmd) Name() string       { return "list" }
func (c *ListCmd) Aliases() []string  { return []string{"ls"} }
func (c *ListCmd) Synopsis() string   { return "List tasks" }
func (c *ListCmd) Usage() string      { return "todo list [common flags]" }
func (c *ListCmd) NeedsBackend() bool { return true }
func (c *ListCmd) NeedsAuth() bool    { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ListCmd) Run(ctx context.Context, env Env, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	tasks := state.New(env.Backend, env.Logger)
	defer tasks.Close()

	tasks.FetchAll(ctx)
	st := tasks.Snapshot()
	if st.Err != nil {
		return fail(errOut, st.Err)
	}

	if env.Config.Quiet {
		for _, task := range st.Items {
			output.FormatTask(out, task)
		}
		return exitcode.Success
	}
	output.FormatHeader(out, st.Stats())
	output.FormatTasks(out, st)
	return exitcode.Success
}
