// Package agent implements the external delivery mechanisms that take a user
// through a provider authorization: the system browser with a loopback
// redirect catch, and the platform native sign-in helper. Both paths return
// the same normalized credential shape.
package agent

import (
	"context"
	"fmt"

	"github.com/careermate/authflow/internal/domain"
)

// Agent routes an authorization to the delivery mechanism chosen for the
// attempt.
type Agent struct {
	browser *BrowserAgent
	native  *NativeAgent
}

func New(browser *BrowserAgent, native *NativeAgent) *Agent {
	return &Agent{browser: browser, native: native}
}

// Authorize runs one external authorization round trip. It blocks until the
// user completes or dismisses the provider's flow, or ctx ends.
func (a *Agent) Authorize(ctx context.Context, provider domain.Provider, method domain.Method) (*domain.Credential, error) {
	switch method {
	case domain.MethodNative:
		return a.native.Authorize(ctx, provider)
	case domain.MethodWeb:
		return a.browser.Authorize(ctx, provider)
	default:
		return nil, domain.New(domain.KindValidation, "unknown_method", fmt.Sprintf("unknown delivery method %q", method))
	}
}

// SignOut drops provider session state held on this device. Only the native
// helper holds any; the system browser's cookies are not ours to clear.
func (a *Agent) SignOut(ctx context.Context, provider domain.Provider) error {
	return a.native.SignOut(ctx, provider)
}
