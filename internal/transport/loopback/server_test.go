package loopback

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/careermate/authflow/internal/domain"
	"github.com/careermate/authflow/internal/infrastructure/memory"
)

var testPorts = []int{38471, 38472, 38473}

func startTestServer(t *testing.T) (*Server, *memory.PendingAuthStore) {
	t.Helper()

	states := memory.NewPendingAuthStore()
	srv, err := Start(states, testPorts, zerolog.Nop())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { srv.Stop(context.Background()) })
	return srv, states
}

func get(t *testing.T, rawURL string) (int, string) {
	t.Helper()

	resp, err := http.Get(rawURL)
	if err != nil {
		t.Fatalf("GET %s: %v", rawURL, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestServer_ValidCallback(t *testing.T) {
	srv, states := startTestServer(t)

	state, err := states.Begin(memory.PendingAuth{Provider: domain.ProviderGoogle, Verifier: "v-1"})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	status, body := get(t, srv.RedirectURI()+"?code=auth-code-1&state="+state)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if !strings.Contains(body, "Sign-in complete") {
		t.Fatalf("unexpected page: %s", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := srv.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.Code != "auth-code-1" || res.Auth.Provider != domain.ProviderGoogle || res.Auth.Verifier != "v-1" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestServer_UnknownStateKeepsWaiting(t *testing.T) {
	srv, states := startTestServer(t)

	status, body := get(t, srv.RedirectURI()+"?code=c&state=never-issued")
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if !strings.Contains(body, "no longer valid") {
		t.Fatalf("unexpected page: %s", body)
	}

	// A later valid callback still completes the attempt.
	state, err := states.Begin(memory.PendingAuth{Provider: domain.ProviderGitHub})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	get(t, srv.RedirectURI()+"?code=real-code&state="+state)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := srv.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.Code != "real-code" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestServer_AccessDenied(t *testing.T) {
	srv, _ := startTestServer(t)

	status, _ := get(t, srv.RedirectURI()+"?error=access_denied&error_description=The+user+denied+access")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200 for the cancelled page", status)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := srv.Wait(ctx)
	if domain.KindOf(err) != domain.KindCancelled {
		t.Fatalf("want cancelled kind, got %v", err)
	}
}

func TestServer_ProviderError(t *testing.T) {
	srv, _ := startTestServer(t)

	get(t, srv.RedirectURI()+"?error=server_error&error_description=boom")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := srv.Wait(ctx)
	if domain.KindOf(err) != domain.KindProvider {
		t.Fatalf("want provider kind, got %v", err)
	}
}

func TestServer_MissingParams(t *testing.T) {
	srv, _ := startTestServer(t)

	status, _ := get(t, srv.RedirectURI())
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}

	// Nothing was delivered; Wait should still be pending.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := srv.Wait(ctx); domain.KindOf(err) != domain.KindCancelled {
		t.Fatalf("expected a still-pending wait to end with ctx cancel, got %v", err)
	}
}

func TestServer_PortFallback(t *testing.T) {
	// Occupy the first port so Start has to fall through.
	ln, err := net.Listen("tcp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(testPorts[0])))
	if err != nil {
		t.Skipf("cannot occupy port %d: %v", testPorts[0], err)
	}
	defer ln.Close()

	srv, _ := startTestServer(t)
	if srv.port == testPorts[0] {
		t.Fatalf("server bound the occupied port %d", srv.port)
	}
	if !strings.Contains(srv.RedirectURI(), strconv.Itoa(srv.port)) {
		t.Fatalf("redirect URI %q does not carry the bound port", srv.RedirectURI())
	}
}

func TestServer_NoPortAvailable(t *testing.T) {
	var listeners []net.Listener
	for _, p := range testPorts {
		ln, err := net.Listen("tcp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(p)))
		if err != nil {
			t.Skipf("cannot occupy port %d: %v", p, err)
		}
		listeners = append(listeners, ln)
	}
	defer func() {
		for _, ln := range listeners {
			ln.Close()
		}
	}()

	_, err := Start(memory.NewPendingAuthStore(), testPorts, zerolog.Nop())
	if err == nil {
		t.Fatal("expected Start to fail with every port occupied")
	}
	if domain.CodeOf(err) != "loopback_bind_failed" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestServer_DuplicateCallbackRejected(t *testing.T) {
	srv, states := startTestServer(t)

	state, err := states.Begin(memory.PendingAuth{Provider: domain.ProviderGoogle})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	first, _ := get(t, srv.RedirectURI()+"?code=c1&state="+state)
	if first != http.StatusOK {
		t.Fatalf("first callback status = %d, want 200", first)
	}

	// Replaying the redirect consumes nothing and is rejected.
	second, body := get(t, srv.RedirectURI()+"?code=c1&state="+state)
	if second != http.StatusBadRequest {
		t.Fatalf("second callback status = %d, want 400", second)
	}
	if !strings.Contains(body, "no longer valid") {
		t.Fatalf("unexpected page: %s", body)
	}
}
