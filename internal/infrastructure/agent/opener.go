package agent

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"

	"github.com/careermate/authflow/internal/domain"
)

// Opener hands an authorization URL to the user.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// SystemOpener launches the platform's default browser.
type SystemOpener struct{}

func (SystemOpener) Open(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return domain.Wrap(domain.KindInternal, "browser_open_failed", "could not launch the system browser", err)
	}
	// The launcher exits as soon as the browser takes over; reap it so it
	// does not linger as a zombie.
	go func() { _ = cmd.Wait() }()
	return nil
}

// PrintOpener writes the authorization URL to W for the user to open
// themselves. Backs the --no-browser flag and headless sessions.
type PrintOpener struct {
	W io.Writer
}

func (p PrintOpener) Open(_ context.Context, url string) error {
	_, err := fmt.Fprintf(p.W, "Open this link in your browser to continue signing in:\n\n  %s\n\n", url)
	return err
}

// FallbackOpener tries Primary and falls back to Fallback when launching
// fails (no launcher binary on PATH, broken desktop session).
type FallbackOpener struct {
	Primary  Opener
	Fallback Opener
}

func (f FallbackOpener) Open(ctx context.Context, url string) error {
	if err := f.Primary.Open(ctx, url); err != nil {
		return f.Fallback.Open(ctx, url)
	}
	return nil
}
