package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"todo/internal/config"
	"todo/internal/exitcode"
	"todo/internal/output"
	"todo/internal/service"
)

// Messages of the sign-in view.
const (
	MsgCheckEmail   = "check your email for the sign-in code"
	MsgSignInFailed = "failed to sign in"
)

func init() {
	Register(&LoginCmd{})
}

// LoginCmd implements the login command. Without --code it asks the store to
// start a passwordless sign-in; with --code it completes one.
type LoginCmd struct {
	code string
}

// SetCode sets the verification code (for testing).
func (c *LoginCmd) SetCode(code string) {
	c.code = code
}

func (c *LoginCmd) Name() string       { return "login" }
func (c *LoginCmd) Aliases() []string  { return nil }
func (c *LoginCmd) Synopsis() string   { return "Sign in with your email" }
func (c *LoginCmd) Usage() string      { return "todo login [common flags] [--code <code>] <email>" }
func (c *LoginCmd) NeedsBackend() bool { return true }
func (c *LoginCmd) NeedsAuth() bool    { return false }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.code, "code", "", "")
}

func (c *LoginCmd) Run(ctx context.Context, env Env, args []string, out, errOut io.Writer) int {
	email := strings.TrimSpace(strings.Join(args, " "))
	if email == "" {
		fmt.Fprintln(errOut, "error: email required")
		return exitcode.UserError
	}
	if !strings.Contains(email, "@") {
		fmt.Fprintf(errOut, "error: invalid email: %s\n", email)
		return exitcode.UserError
	}

	if c.code != "" {
		s, err := env.Backend.VerifyEmailCode(ctx, email, c.code)
		if err != nil {
			return loginFailed(errOut, err)
		}
		if !env.Config.Quiet {
			output.FormatUser(out, s.User)
		}
		return exitcode.Success
	}

	if s, err := env.Backend.GetSession(ctx); err == nil && s != nil && strings.EqualFold(s.User.Email, email) {
		if !env.Config.Quiet {
			fmt.Fprintln(out, "already logged in")
		}
		return exitcode.Success
	}

	if err := env.Backend.SignInWithEmail(ctx, email); err != nil {
		return loginFailed(errOut, err)
	}

	// Some stores finish the sign-in right away.
	if s, err := env.Backend.GetSession(ctx); err == nil && s != nil {
		if !env.Config.Quiet {
			output.FormatUser(out, s.User)
		}
		return exitcode.Success
	}

	if !env.Config.Quiet {
		fmt.Fprintln(out, MsgCheckEmail)
		fmt.Fprintf(out, "then run: todo login --code <code> %s\n", email)
	}
	return exitcode.Success
}

func loginFailed(errOut io.Writer, err error) int {
	e := service.Describe(err, MsgSignInFailed)
	output.FormatBanner(errOut, e.Error(), false)
	if e.Kind == service.KindTransport {
		return exitcode.BackendError
	}
	return exitcode.AuthError
}

// PrintOAuthClientHelp explains how to obtain oauth_client.json.
func PrintOAuthClientHelp(errOut io.Writer, cfg *config.Config) {
	fmt.Fprintf(errOut, "error: %s not found in %s\n\n", config.OAuthClientFile, cfg.Dir)
	fmt.Fprintln(errOut, "To sign in with Google Tasks, you need OAuth credentials:")
	fmt.Fprintln(errOut, "")
	fmt.Fprintln(errOut, "1. Go to https://console.cloud.google.com/apis/credentials")
	fmt.Fprintln(errOut, "2. Create a project (or select an existing one)")
	fmt.Fprintln(errOut, "3. Enable the Google Tasks API:")
	fmt.Fprintln(errOut, "   https://console.cloud.google.com/apis/library/tasks.googleapis.com")
	fmt.Fprintln(errOut, "4. Create OAuth 2.0 credentials:")
	fmt.Fprintln(errOut, "   - Click 'Create Credentials' > 'OAuth client ID'")
	fmt.Fprintln(errOut, "   - Choose 'Desktop app' as application type")
	fmt.Fprintln(errOut, "   - Download the JSON file")
	fmt.Fprintln(errOut, "5. Save it as:")
	fmt.Fprintf(errOut, "   %s\n", cfg.OAuthClientPath())
	fmt.Fprintln(errOut, "")
	fmt.Fprintln(errOut, "Then run 'todo login <email>' again.")
}
