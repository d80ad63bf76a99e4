package agent

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/careermate/authflow/internal/domain"
	"github.com/careermate/authflow/internal/infrastructure/security"
)

// helperResult is the JSON document the helper prints on stdout when it
// finishes. Status "cancelled" with exit code 0 is the normal dismissal
// path; a non-zero exit without output means the helper itself broke.
type helperResult struct {
	Status  string `json:"status"` // ok | cancelled | error
	IDToken string `json:"id_token,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NativeAgent drives the platform sign-in helper: a separate binary that
// owns the provider's native SDK session and prints the resulting ID token.
type NativeAgent struct {
	helper string
	lg     zerolog.Logger

	lookPath func(file string) (string, error)
	run      func(ctx context.Context, path string, args ...string) ([]byte, error)
}

func NewNativeAgent(helper string, lg zerolog.Logger) *NativeAgent {
	return &NativeAgent{
		helper:   helper,
		lg:       lg,
		lookPath: exec.LookPath,
		run: func(ctx context.Context, path string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, path, args...).Output()
		},
	}
}

// Available reports whether the helper binary is on PATH.
func (a *NativeAgent) Available() bool {
	if a.helper == "" {
		return false
	}
	_, err := a.lookPath(a.helper)
	return err == nil
}

// Authorize asks the helper to run the provider's native sign-in. Blocks
// until the helper exits; cancelling ctx kills the helper process.
func (a *NativeAgent) Authorize(ctx context.Context, provider domain.Provider) (*domain.Credential, error) {
	out, err := a.invoke(ctx, "authorize", "--provider", string(provider))
	if err != nil {
		return nil, err
	}

	var res helperResult
	if uerr := json.Unmarshal(out, &res); uerr != nil {
		return nil, domain.Wrap(domain.KindInternal, "helper_protocol", "helper output was not understood", uerr)
	}

	switch res.Status {
	case "ok":
		if res.IDToken == "" {
			return nil, domain.ErrInvalidToken(errors.New("helper returned no id_token"))
		}
		profile, perr := security.ProfileFromIDToken(res.IDToken)
		if perr != nil {
			return nil, perr
		}
		return &domain.Credential{
			Provider: provider,
			Kind:     domain.CredentialIDToken,
			IDToken:  res.IDToken,
			Profile:  profile,
		}, nil
	case "cancelled":
		return nil, domain.ErrCancelled()
	case "error":
		return nil, domain.ErrProviderError(res.Error, nil)
	default:
		return nil, domain.New(domain.KindInternal, "helper_protocol", "helper reported unknown status "+res.Status)
	}
}

// SignOut asks the helper to drop its provider session. A missing helper is
// not an error: there is nothing to sign out of.
func (a *NativeAgent) SignOut(ctx context.Context, provider domain.Provider) error {
	if !a.Available() {
		return nil
	}
	_, err := a.invoke(ctx, "signout", "--provider", string(provider))
	return err
}

func (a *NativeAgent) invoke(ctx context.Context, args ...string) ([]byte, error) {
	path, err := a.lookPath(a.helper)
	if err != nil {
		return nil, domain.WithMeta(
			domain.Wrap(domain.KindConfig, "helper_not_found", "native sign-in helper is not installed", err),
			map[string]string{"helper": a.helper},
		)
	}

	a.lg.Debug().Str("helper", path).Strs("args", args).Msg("invoking native helper")
	out, err := a.run(ctx, path, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.ErrCancelled()
		}
		if len(out) == 0 {
			return nil, domain.Wrap(domain.KindInternal, "helper_failed", "native sign-in helper failed", err)
		}
		// Non-zero exit with output: the JSON status carries the real story.
	}
	return out, nil
}
