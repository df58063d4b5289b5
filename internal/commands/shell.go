package commands

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/oklog/oklog/pkg/group"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"todo/internal/exitcode"
	"todo/internal/output"
	"todo/internal/service"
	"todo/internal/session"
	"todo/internal/state"
)

func init() {
	Register(&ShellCmd{})
}

// ShellCmd implements the interactive shell. The shell keeps one session
// gate for its whole life and one task container per signed-in session.
type ShellCmd struct {
	metricsAddr string

	// In is read for input lines; os.Stdin when nil.
	In io.Reader
}

func (c *ShellCmd) Name() string       { return "shell" }
func (c *ShellCmd) Aliases() []string  { return nil }
func (c *ShellCmd) Synopsis() string   { return "Work with the task list interactively" }
func (c *ShellCmd) Usage() string      { return "todo shell [common flags] [--metrics-addr <addr>]" }
func (c *ShellCmd) NeedsBackend() bool { return true }
func (c *ShellCmd) NeedsAuth() bool    { return false }

func (c *ShellCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.metricsAddr, "metrics-addr", "", "")
}

func (c *ShellCmd) Run(ctx context.Context, env Env, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	in := c.In
	if in == nil {
		in = os.Stdin
	}
	if env.Logger == nil {
		env.Logger = log.NewNopLogger()
	}

	sh := &shell{env: env, out: out, errOut: errOut}
	sh.gate = session.NewGate(env.Backend, env.Logger)
	sh.gate.Watch(sh.onStatus)
	if err := sh.gate.Start(ctx); err != nil {
		fmt.Fprintf(errOut, "error: failed to read session: %v\n", err)
		return exitcode.AuthError
	}
	defer sh.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g group.Group
	{
		g.Add(func() error {
			return sh.loop(ctx, in)
		}, func(error) {
			cancel()
		})
	}
	if c.metricsAddr != "" {
		ln, err := net.Listen("tcp", c.metricsAddr)
		if err != nil {
			fmt.Fprintf(errOut, "error: metrics listener: %v\n", err)
			return exitcode.UserError
		}
		g.Add(func() error {
			level.Info(env.Logger).Log("transport", "HTTP", "addr", ln.Addr().String(), "path", "/metrics")
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			return http.Serve(ln, mux)
		}, func(error) {
			ln.Close()
		})
	}
	{
		// Waits for the interrupt that cancels the parent context.
		g.Add(func() error {
			<-ctx.Done()
			return ctx.Err()
		}, func(error) {
			cancel()
		})
	}

	err := g.Run()
	level.Debug(env.Logger).Log("exit", err)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	return exitcode.Success
}

const shellHelp = `Commands:
  ls                   Reload the list
  add <title...>       Create a task
  toggle <id>          Complete a task, or open it again
  rm <id>              Delete a task
  dismiss              Close the error banner
  login <email>        Request a sign-in code
  verify <email> <code>
  logout
  whoami
  quit
`

// shell is the state of one interactive session.
type shell struct {
	env    Env
	out    io.Writer
	errOut io.Writer
	gate   *session.Gate

	mu    sync.Mutex
	tasks *state.Container
	user  service.User
	fresh bool
}

// onStatus replaces the task container whenever the signed-in user changes.
func (sh *shell) onStatus(status session.Status, s *service.Session) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.tasks != nil {
		sh.tasks.Close()
		sh.tasks = nil
	}
	if status == session.Authenticated {
		sh.tasks = state.New(sh.env.Backend, sh.env.Logger)
		sh.user = s.User
		sh.fresh = true
	}
}

// current returns the container of the signed-in user, loading it on first use.
func (sh *shell) current(ctx context.Context) *state.Container {
	sh.mu.Lock()
	tasks, fresh := sh.tasks, sh.fresh
	sh.fresh = false
	sh.mu.Unlock()

	if tasks != nil && fresh {
		tasks.FetchAll(ctx)
	}
	return tasks
}

func (sh *shell) close() {
	sh.gate.Close()
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.tasks != nil {
		sh.tasks.Close()
		sh.tasks = nil
	}
}

func (sh *shell) loop(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	sh.render(ctx)
	for {
		fmt.Fprint(sh.out, "> ")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(sh.out)
				return nil
			}
			if sh.exec(ctx, line) {
				return nil
			}
		}
	}
}

// exec runs one input line and reports whether the shell should exit.
func (sh *shell) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	name, args := fields[0], fields[1:]

	switch name {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprint(sh.out, shellHelp)
	case "whoami":
		if s := sh.gate.Session(); s != nil {
			output.FormatUser(sh.out, s.User)
		} else {
			fmt.Fprintln(sh.out, "not logged in")
		}
	case "login":
		sh.login(ctx, args)
	case "verify":
		sh.verify(ctx, args)
	case "logout":
		if err := sh.gate.SignOut(ctx); err != nil {
			output.FormatBanner(sh.errOut, service.Describe(err, "failed to sign out").Error(), false)
			return false
		}
		sh.render(ctx)
	case "ls", "list", "add", "toggle", "done", "rm", "delete", "dismiss":
		sh.task(ctx, name, args)
	default:
		fmt.Fprintf(sh.errOut, "error: unknown command: %s (try help)\n", name)
	}
	return false
}

func (sh *shell) task(ctx context.Context, name string, args []string) {
	tasks := sh.current(ctx)
	if tasks == nil {
		fmt.Fprintln(sh.errOut, "error: not logged in (login <email>)")
		return
	}

	switch name {
	case "ls", "list":
		tasks.FetchAll(ctx)
	case "add":
		title := strings.Join(args, " ")
		if strings.TrimSpace(title) == "" {
			fmt.Fprintln(sh.errOut, "error: title required")
			return
		}
		sh.mu.Lock()
		owner := sh.user.ID
		sh.mu.Unlock()
		tasks.Add(ctx, title, owner)
	case "toggle", "done", "rm", "delete":
		id, err := ParseTaskID(args)
		if err != nil {
			fmt.Fprintf(sh.errOut, "error: %v\n", err)
			return
		}
		if name == "toggle" || name == "done" {
			tasks.Toggle(ctx, id)
		} else {
			tasks.Remove(ctx, id)
		}
	case "dismiss":
		tasks.ClearError()
	}
	sh.render(ctx)
}

func (sh *shell) login(ctx context.Context, args []string) {
	if len(args) != 1 || !strings.Contains(args[0], "@") {
		fmt.Fprintln(sh.errOut, "error: usage: login <email>")
		return
	}
	if err := sh.env.Backend.SignInWithEmail(ctx, args[0]); err != nil {
		output.FormatBanner(sh.errOut, service.Describe(err, MsgSignInFailed).Error(), false)
		return
	}
	if sh.gate.Status() == session.Authenticated {
		sh.render(ctx)
		return
	}
	fmt.Fprintln(sh.out, MsgCheckEmail)
}

func (sh *shell) verify(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(sh.errOut, "error: usage: verify <email> <code>")
		return
	}
	if _, err := sh.env.Backend.VerifyEmailCode(ctx, args[0], args[1]); err != nil {
		output.FormatBanner(sh.errOut, service.Describe(err, MsgSignInFailed).Error(), false)
		return
	}
	sh.render(ctx)
}

// render prints the view for the current status.
func (sh *shell) render(ctx context.Context) {
	tasks := sh.current(ctx)
	if tasks == nil {
		fmt.Fprintln(sh.out, "not logged in: login <email>, then verify <email> <code>")
		return
	}
	sh.mu.Lock()
	user := sh.user
	sh.mu.Unlock()

	output.FormatUser(sh.out, user)
	output.FormatView(sh.out, tasks.Snapshot())
}
