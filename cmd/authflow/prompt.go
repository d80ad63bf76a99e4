package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/careermate/authflow/internal/domain"
)

// terminalPrompt resolves account conflicts interactively. Reads run on their
// own goroutine so an interrupt still cancels a prompt that is waiting for
// input.
type terminalPrompt struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalPrompt(in *bufio.Reader, out io.Writer) *terminalPrompt {
	return &terminalPrompt{in: in, out: out}
}

func (p *terminalPrompt) Choose(ctx context.Context, cc *domain.ConflictCase) (domain.Resolution, error) {
	existing := make([]string, 0, len(cc.ExistingProviders))
	for _, pr := range cc.ExistingProviders {
		existing = append(existing, string(pr))
	}

	fmt.Fprintf(p.out, "\nAn account for %s already exists (signed in with %s).\n",
		cc.Email, strings.Join(existing, ", "))
	fmt.Fprintf(p.out, "\n  [1] Link %s to the existing account\n", cc.AttemptedProvider)
	fmt.Fprintf(p.out, "  [2] Switch to the existing sign-in method\n")
	fmt.Fprintf(p.out, "  [3] Cancel\n\n")

	for {
		fmt.Fprint(p.out, "Choose an option [1-3]: ")
		line, err := p.readLine(ctx)
		if err != nil {
			return domain.ResolutionCancel, err
		}
		switch strings.TrimSpace(line) {
		case "1", "link":
			return domain.ResolutionLink, nil
		case "2", "switch":
			return domain.ResolutionSwitch, nil
		case "3", "cancel", "":
			return domain.ResolutionCancel, nil
		}
		fmt.Fprintln(p.out, "Please answer 1, 2 or 3.")
	}
}

func (p *terminalPrompt) RetryLink(ctx context.Context, _ *domain.ConflictCase, cause error) bool {
	fmt.Fprintf(p.out, "Linking failed (%v). Try again? [y/N]: ", cause)
	line, err := p.readLine(ctx)
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// readLine reads one line without holding the caller hostage: a cancelled
// context wins over a blocked terminal read. The reading goroutine is left
// behind until stdin closes, which for a CLI process is fine.
func (p *terminalPrompt) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", domain.ErrCancelled()
	case r := <-ch:
		if r.err != nil && r.line == "" {
			// EOF on the prompt means the user walked away.
			return "", domain.ErrCancelled()
		}
		return r.line, nil
	}
}
