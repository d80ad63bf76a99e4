// cmd/authflow/main.go
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/careermate/authflow/internal/application/flow"
	"github.com/careermate/authflow/internal/bootstrap"
	"github.com/careermate/authflow/internal/domain"
	"github.com/careermate/authflow/internal/infrastructure/agent"
	"github.com/careermate/authflow/internal/logger"
)

// authClient defines the surface area the commands need from the flow
// service. Using an interface makes Run() easy to unit-test with a fake
// implementation.
type authClient interface {
	Login(ctx context.Context, p domain.Provider) (*flow.LoginResult, error)
	Logout(ctx context.Context) error
	Status(ctx context.Context) (*flow.Status, error)
	Link(ctx context.Context, p domain.Provider) (*domain.UserAccount, error)
	Unlink(ctx context.Context, p domain.Provider) (*domain.UserAccount, error)
	Providers(ctx context.Context) (*domain.ProviderOverview, error)
	SetPrimaryAuth(ctx context.Context, p domain.Provider) (*domain.UserAccount, error)
}

type buildOptions struct {
	// noBrowser prints authorization links instead of launching a browser.
	noBrowser bool
}

// clientBuilder builds the client and returns a cleanup function.
// In production we wrap bootstrap.NewAppWithDeps(); in tests we can inject a fake.
type clientBuilder func(opts buildOptions) (authClient, func(), error)

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: authflow <command> [flags]

Commands:
  login        Sign in with an OAuth provider
  logout       Sign out and clear the local session
  status       Show the local authentication state
  providers    List linked providers and usable sign-in methods
  link         Link another provider to the signed-in account
  unlink       Remove a linked provider
  set-primary  Change the primary sign-in method

Run "authflow <command> -h" for command flags.
`)
}

func Run(args []string, build clientBuilder, sigCh <-chan os.Signal, lg zerolog.Logger, out, errOut io.Writer) int {
	if len(args) == 0 {
		usage(errOut)
		return 2
	}
	cmd, rest := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(errOut)

	var provider string
	var noBrowser bool
	var asJSON bool

	switch cmd {
	case "login", "link":
		fs.StringVar(&provider, "provider", "", "oauth provider (google or github)")
		fs.BoolVar(&noBrowser, "no-browser", false, "print the authorization link instead of opening a browser")
	case "unlink":
		fs.StringVar(&provider, "provider", "", "linked provider to remove")
	case "set-primary":
		fs.StringVar(&provider, "provider", "", "sign-in method to make primary")
	case "status":
		fs.BoolVar(&asJSON, "json", false, "machine-readable output")
	case "logout", "providers":
		// no flags
	case "help", "-h", "--help":
		usage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command %q\n\n", cmd)
		usage(errOut)
		return 2
	}

	if err := fs.Parse(rest); err != nil {
		return 2
	}

	switch cmd {
	case "login", "link", "unlink", "set-primary":
		if provider == "" {
			fmt.Fprintf(errOut, "%s requires --provider\n", cmd)
			return 2
		}
	}

	client, cleanup, err := build(buildOptions{noBrowser: noBrowser})
	if err != nil {
		lg.Error().Err(err).Msg("bootstrap failed")
		fmt.Fprintf(errOut, "Error: %s\n", err)
		return 1
	}
	defer cleanup()

	// An interrupt cancels the in-flight command; the flow surfaces that as
	// a user cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case sig := <-sigCh:
			lg.Info().Str("signal", sig.String()).Msg("interrupt received; cancelling")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := dispatch(ctx, client, cmd, provider, asJSON, out); err != nil {
		if domain.KindOf(err) == domain.KindCancelled || errors.Is(err, context.Canceled) {
			fmt.Fprintln(errOut, "Cancelled.")
			return 1
		}
		lg.Error().Err(err).Str("command", cmd).Msg("command failed")
		fmt.Fprintf(errOut, "Error: %s\n", friendlyMessage(err))
		return 1
	}
	return 0
}

func dispatch(ctx context.Context, c authClient, cmd, provider string, asJSON bool, out io.Writer) error {
	switch cmd {
	case "login":
		res, err := c.Login(ctx, domain.Provider(provider))
		if err != nil {
			return err
		}
		if res.Switched {
			fmt.Fprintln(out, "Switched to your existing sign-in method. Start a new login to continue.")
			return nil
		}
		fmt.Fprintf(out, "Signed in as %s <%s>\n", res.User.Username, res.User.Email)
		return nil

	case "logout":
		if err := c.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Signed out")
		return nil

	case "status":
		st, err := c.Status(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}
		printStatus(out, st)
		return nil

	case "providers":
		ov, err := c.Providers(ctx)
		if err != nil {
			return err
		}
		printProviders(out, ov)
		return nil

	case "link":
		u, err := c.Link(ctx, domain.Provider(provider))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Linked %s to %s\n", provider, u.Email)
		return nil

	case "unlink":
		u, err := c.Unlink(ctx, domain.Provider(provider))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Unlinked %s from %s\n", provider, u.Email)
		return nil

	case "set-primary":
		u, err := c.SetPrimaryAuth(ctx, domain.Provider(provider))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Primary sign-in method is now %s\n", u.PrimaryAuthMethod)
		return nil
	}
	return fmt.Errorf("unhandled command %q", cmd)
}

func printStatus(out io.Writer, st *flow.Status) {
	switch {
	case st.Authenticated:
		fmt.Fprintf(out, "Signed in as %s <%s>\n", st.User.Username, st.User.Email)
		if st.Session != nil {
			fmt.Fprintf(out, "Provider: %s, session expires %s\n",
				st.Session.Provider, st.Session.ExpiresAt.Format(time.RFC1123))
		}
	case st.Expired:
		fmt.Fprintf(out, "Session for %s has expired; sign in again\n", st.User.Email)
	default:
		fmt.Fprintln(out, "Signed out")
	}
}

func printProviders(out io.Writer, ov *domain.ProviderOverview) {
	if len(ov.Identities) == 0 {
		fmt.Fprintln(out, "No linked providers")
	}
	for _, id := range ov.Identities {
		fmt.Fprintf(out, "%-8s %s (linked %s)\n", id.Provider, id.Email, id.LinkedAt.Format("2006-01-02"))
	}
	if len(ov.LoginMethods) > 0 {
		ms := make([]string, 0, len(ov.LoginMethods))
		for _, m := range ov.LoginMethods {
			ms = append(ms, string(m))
		}
		fmt.Fprintf(out, "Sign-in methods: %s\n", strings.Join(ms, ", "))
	}
}

// friendlyMessage prefers the curated message on classified errors over the
// full wrap chain.
func friendlyMessage(err error) string {
	var de *domain.Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

// buildFromBootstrap wraps bootstrap.NewAppWithDeps() into a clientBuilder.
func buildFromBootstrap(opts buildOptions) (authClient, func(), error) {
	deps := bootstrap.Deps{
		// The conflict dialog talks on stderr so stdout stays parseable.
		Prompt: newTerminalPrompt(bufio.NewReader(os.Stdin), os.Stderr),
	}
	if opts.noBrowser {
		deps.Opener = agent.PrintOpener{W: os.Stderr}
	}

	app, cleanup, err := bootstrap.NewAppWithDeps(deps)
	if err != nil {
		return nil, nil, err
	}
	return app.Flow, cleanup, nil
}

func main() {
	// Initialize zerolog global config and our logger defaults.
	logger.Init()

	// Set up OS signal handling.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// Run the command and exit with the returned code.
	code := Run(os.Args[1:], buildFromBootstrap, sigCh, zlog.Logger, os.Stdout, os.Stderr)
	os.Exit(code)
}
