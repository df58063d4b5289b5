// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"

	"todo/internal/service"
	"todo/internal/state"
)

const (
	// Separator is the rule printed under the list header.
	Separator = "------------"

	// EmptyMessage is shown when the list has loaded and holds no tasks.
	EmptyMessage = "no tasks yet, add your first one"

	// LoadingMessage is shown while the initial fetch is in flight.
	LoadingMessage = "loading..."
)

// FormatTask formats a task line.
// Format: "{ID:>4}  [x] {TITLE}\n" ("[ ]" for open tasks)
func FormatTask(w io.Writer, task service.Task) {
	mark := " "
	if task.Completed {
		mark = "x"
	}
	fmt.Fprintf(w, "%4d  [%s] %s\n", task.ID, mark, normalizeTitle(task.Title))
}

// FormatStats formats the completed/total counter.
func FormatStats(w io.Writer, st state.Stats) {
	fmt.Fprintf(w, "%d / %d completed\n", st.Completed, st.Total)
}

// FormatHeader formats the list header with its counter.
func FormatHeader(w io.Writer, st state.Stats) {
	fmt.Fprintf(w, "My Tasks  %d / %d completed\n", st.Completed, st.Total)
	fmt.Fprintln(w, Separator)
}

// FormatBanner formats the error banner. dismissible adds the shell hint.
func FormatBanner(w io.Writer, message string, dismissible bool) {
	if dismissible {
		fmt.Fprintf(w, "! %s  (dismiss to close)\n", message)
		return
	}
	fmt.Fprintf(w, "error: %s\n", message)
}

// FormatTasks formats the task list body: loading line, empty message or tasks.
func FormatTasks(w io.Writer, st state.State) {
	switch {
	case st.Loading:
		fmt.Fprintln(w, LoadingMessage)
	case st.Empty():
		fmt.Fprintln(w, EmptyMessage)
	default:
		for _, task := range st.Items {
			FormatTask(w, task)
		}
	}
}

// FormatView formats the whole task view as the shell shows it.
func FormatView(w io.Writer, st state.State) {
	FormatHeader(w, st.Stats())
	if msg := st.ErrorMessage(); msg != "" {
		FormatBanner(w, msg, true)
	}
	FormatTasks(w, st)
}

// FormatUser formats the "signed in as" line.
func FormatUser(w io.Writer, u service.User) {
	email := u.Email
	if email == "" {
		email = "(no email)"
	}
	fmt.Fprintf(w, "signed in as %s\n", email)
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
