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
	Register(&ToggleCmd{})
}

// ToggleCmd implements the toggle command: it completes an open task and
// reopens a completed one.
type ToggleCmd struct{}

func (c *ToggleCmd) Name() string       { return "toggle" }
func (c *ToggleCmd) Aliases() []string  { return []string{"done"} }
func (c *ToggleCmd) Synopsis() string   { return "Mark a task completed, or open again" }
func (c *ToggleCmd) Usage() string      { return "todo toggle [common flags] <id>" }
func (c *ToggleCmd) NeedsBackend() bool { return true }
func (c *ToggleCmd) NeedsAuth() bool    { return true }

func (c *ToggleCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ToggleCmd) Run(ctx context.Context, env Env, args []string, out, errOut io.Writer) int {
	id, err := ParseTaskID(args)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	tasks := state.New(env.Backend, env.Logger)
	defer tasks.Close()

	// Toggle needs the current flag, so the list is loaded first.
	tasks.FetchAll(ctx)
	st := tasks.Snapshot()
	if st.Err != nil {
		return fail(errOut, st.Err)
	}
	if _, found := st.Find(id); !found {
		fmt.Fprintf(errOut, "error: task not found: %d\n", id)
		return exitcode.UserError
	}

	tasks.Toggle(ctx, id)
	st = tasks.Snapshot()
	if st.Err != nil {
		return fail(errOut, st.Err)
	}

	if !env.Config.Quiet {
		task, _ := st.Find(id)
		output.FormatTask(out, task)
	}
	return exitcode.Success
}
