package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"todo/internal/exitcode"
	"todo/internal/output"
	"todo/internal/state"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct{}

func (c *AddCmd) Name() string       { return "add" }
func (c *AddCmd) Aliases() []string  { return []string{"create"} }
func (c *AddCmd) Synopsis() string   { return "Create a task" }
func (c *AddCmd) Usage() string      { return "todo add [common flags] <title...>" }
func (c *AddCmd) NeedsBackend() bool { return true }
func (c *AddCmd) NeedsAuth() bool    { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *AddCmd) Run(ctx context.Context, env Env, args []string, out, errOut io.Writer) int {
	// Join args to form title
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		fmt.Fprintln(errOut, "error: title required")
		return exitcode.UserError
	}

	tasks := state.New(env.Backend, env.Logger)
	defer tasks.Close()

	// The container starts out loading; only the new entry matters here.
	tasks.Add(ctx, title, env.Session.User.ID)
	st := tasks.Snapshot()
	if st.Err != nil {
		return fail(errOut, st.Err)
	}
	if len(st.Items) == 0 {
		fmt.Fprintln(errOut, "error: "+state.MsgAddFailed)
		return exitcode.BackendError
	}

	if !env.Config.Quiet {
		output.FormatTask(out, st.Items[0])
	}
	return exitcode.Success
}
