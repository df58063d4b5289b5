package commands_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-kit/kit/log"

	"todo/internal/commands"
	"todo/internal/config"
	"todo/internal/exitcode"
	"todo/internal/service"
	"todo/internal/testutil"
)

// runCommand is a helper to run a command against a FakeBackend. The env
// carries the backend's current session, as the dispatcher would.
func runCommand(t *testing.T, cmd commands.Command, backend *testutil.FakeBackend, args []string, quiet bool) (stdout, stderr string, code int) {
	t.Helper()

	var outBuf, errBuf bytes.Buffer

	env := commands.Env{
		Config: &config.Config{
			Dir:     t.TempDir(),
			Backend: config.BackendSupabase,
			Quiet:   quiet,
		},
		Logger: log.NewNopLogger(),
	}
	if backend != nil {
		env.Backend = backend
		env.Session, _ = backend.GetSession(context.Background())
	}

	code = cmd.Run(context.Background(), env, args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

func signedIn() *testutil.FakeBackend {
	backend := testutil.NewFakeBackend()
	backend.SetSession("u1", "u1@example.com")
	return backend
}

// Tests for version command
func TestVersionCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.VersionCmd{}, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "todo 0.1.0\n" {
		t.Errorf("expected version output, got %q", stdout)
	}
}

// Tests for help command
func TestHelpCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.HelpCmd{}, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if !strings.Contains(stdout, "Usage:") {
		t.Error("help output should contain 'Usage:'")
	}
}

// Tests for list command
func TestListCommand_WithTasks(t *testing.T) {
	backend := signedIn()
	backend.AddTask("u1", "Buy milk", false)
	backend.AddTask("u1", "Walk dog", true)
	backend.AddTask("u2", "Not mine", false)

	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, backend, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	testutil.GoldenString(t, "list_with_tasks", stdout)
}

func TestListCommand_Empty(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, signedIn(), nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	testutil.GoldenString(t, "list_empty", stdout)
}

func TestListCommand_Quiet(t *testing.T) {
	backend := signedIn()
	backend.AddTask("u1", "Buy milk", false)

	stdout, _, code := runCommand(t, &commands.ListCmd{}, backend, nil, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	expected := "   1  [ ] Buy milk\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestListCommand_BackendError(t *testing.T) {
	backend := signedIn()
	backend.ListItemsErr = errors.New("connection reset by peer")

	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, backend, nil, false)

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	expected := "error: failed to load tasks\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestListCommand_AuthError(t *testing.T) {
	backend := signedIn()
	backend.ListItemsErr = service.Remote(service.KindAuth, "JWT expired")

	_, stderr, code := runCommand(t, &commands.ListCmd{}, backend, nil, false)

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stderr != "error: JWT expired\n" {
		t.Errorf("expected store message, got %q", stderr)
	}
}

func TestListCommand_UnexpectedArgument(t *testing.T) {
	_, stderr, code := runCommand(t, &commands.ListCmd{}, signedIn(), []string{"Shopping"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: unexpected argument: Shopping\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

// Tests for add command
func TestAddCommand_Success(t *testing.T) {
	backend := signedIn()

	stdout, stderr, code := runCommand(t, &commands.AddCmd{}, backend, []string{"Buy", "milk", " "}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "   1  [ ] Buy milk\n" {
		t.Errorf("expected new task line, got %q", stdout)
	}

	tasks := backend.Tasks()
	if len(tasks) != 1 || tasks[0].Title != "Buy milk" || tasks[0].Owner != "u1" {
		t.Errorf("unexpected stored tasks: %+v", tasks)
	}
	if backend.CallCount("ListItems") != 0 {
		t.Errorf("expected no list call, got %d", backend.CallCount("ListItems"))
	}
}

func TestAddCommand_Quiet(t *testing.T) {
	stdout, _, code := runCommand(t, &commands.AddCmd{}, signedIn(), []string{"Buy milk"}, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "" {
		t.Errorf("expected empty stdout in quiet mode, got %q", stdout)
	}
}

func TestAddCommand_NoTitle(t *testing.T) {
	backend := signedIn()

	_, stderr, code := runCommand(t, &commands.AddCmd{}, backend, []string{"  "}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: title required\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if backend.CallCount("CreateItem") != 0 {
		t.Error("expected no store call for a blank title")
	}
}

func TestAddCommand_StoreRejects(t *testing.T) {
	backend := signedIn()
	backend.CreateItemErr = service.Remote(service.KindValidation, `violates check constraint "todos_title_check"`)

	_, stderr, code := runCommand(t, &commands.AddCmd{}, backend, []string{"x"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.Contains(stderr, "todos_title_check") {
		t.Errorf("expected store message, got %q", stderr)
	}
}

// Tests for toggle command
func TestToggleCommand_CompletesAndReopens(t *testing.T) {
	backend := signedIn()
	task := backend.AddTask("u1", "Buy milk", false)

	stdout, stderr, code := runCommand(t, &commands.ToggleCmd{}, backend, []string{"1"}, false)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (%s)", exitcode.Success, code, stderr)
	}
	if stdout != "   1  [x] Buy milk\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	if !backend.Tasks()[0].Completed {
		t.Error("expected task completed in the store")
	}

	stdout, _, _ = runCommand(t, &commands.ToggleCmd{}, backend, []string{"1"}, false)

	if stdout != "   1  [ ] Buy milk\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	if backend.Tasks()[0].Completed || backend.Tasks()[0].ID != task.ID {
		t.Error("expected task open again")
	}
}

func TestToggleCommand_NotFound(t *testing.T) {
	backend := signedIn()
	backend.AddTask("u1", "Buy milk", false)

	_, stderr, code := runCommand(t, &commands.ToggleCmd{}, backend, []string{"9"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: task not found: 9\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if backend.CallCount("UpdateItem") != 0 {
		t.Error("expected no update call")
	}
}

func TestToggleCommand_NoID(t *testing.T) {
	_, stderr, code := runCommand(t, &commands.ToggleCmd{}, signedIn(), nil, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: task id required\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestToggleCommand_UpdateFails(t *testing.T) {
	backend := signedIn()
	backend.AddTask("u1", "Buy milk", false)
	backend.UpdateItemErr = errors.New("i/o timeout")

	_, stderr, code := runCommand(t, &commands.ToggleCmd{}, backend, []string{"1"}, false)

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if stderr != "error: failed to update task\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

// Tests for rm command
func TestRmCommand_Success(t *testing.T) {
	backend := signedIn()
	backend.AddTask("u1", "Buy milk", false)

	stdout, stderr, code := runCommand(t, &commands.RmCmd{}, backend, []string{"1"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected ok, got %q", stdout)
	}
	if len(backend.Tasks()) != 0 {
		t.Error("expected task deleted")
	}
}

func TestRmCommand_Failure(t *testing.T) {
	backend := signedIn()
	backend.AddTask("u1", "Buy milk", false)
	backend.DeleteItemErr = errors.New("connection refused")

	_, stderr, code := runCommand(t, &commands.RmCmd{}, backend, []string{"1"}, false)

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if stderr != "error: failed to delete task\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if len(backend.Tasks()) != 1 {
		t.Error("expected task kept")
	}
}

func TestRmCommand_InvalidID(t *testing.T) {
	_, stderr, code := runCommand(t, &commands.RmCmd{}, signedIn(), []string{"abc"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: invalid task id: abc\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

// Tests for whoami command
func TestWhoamiCommand(t *testing.T) {
	stdout, _, code := runCommand(t, &commands.WhoamiCmd{}, signedIn(), nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "signed in as u1@example.com\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
}

func TestWhoamiCommand_NotLoggedIn(t *testing.T) {
	_, stderr, code := runCommand(t, &commands.WhoamiCmd{}, testutil.NewFakeBackend(), nil, false)

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if !strings.Contains(stderr, "not logged in") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

// Tests for the registry
func TestRegistry_DuplicateAlias(t *testing.T) {
	r := commands.NewRegistry()
	if err := r.Register(&commands.ToggleCmd{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := r.Register(&doneCmd{})

	if err == nil || !strings.Contains(err.Error(), "done") {
		t.Errorf("expected clash on done, got %v", err)
	}
}

func TestRegistry_AllSortedOnce(t *testing.T) {
	var names []string
	for _, c := range commands.DefaultRegistry.All() {
		names = append(names, c.Name())
	}

	want := "add help list login logout rm shell toggle version whoami"
	if got := strings.Join(names, " "); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

type doneCmd struct{ commands.HelpCmd }

func (doneCmd) Name() string { return "done" }
