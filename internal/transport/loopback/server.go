// Package loopback runs the short-lived local HTTP server that catches the
// browser redirect of a web authorization. One server serves exactly one
// attempt and delivers at most one result.
package loopback

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/careermate/authflow/internal/domain"
	"github.com/careermate/authflow/internal/infrastructure/memory"
)

// Result is one accepted callback: the authorization code plus the pending
// auth data parked under the consumed state.
type Result struct {
	Code  string
	State string
	Auth  memory.PendingAuth

	// Err is set instead of Code when the agent reported a terminal outcome
	// (user denied, provider error).
	Err error
}

type Server struct {
	states *memory.PendingAuthStore
	lg     zerolog.Logger

	srv  *http.Server
	ln   net.Listener
	port int

	mu        sync.Mutex
	delivered bool
	resultCh  chan Result
}

// Start binds the first free port from ports on the loopback interface and
// begins serving the callback route. The returned server must be stopped.
func Start(states *memory.PendingAuthStore, ports []int, lg zerolog.Logger) (*Server, error) {
	s := &Server{
		states:   states,
		lg:       lg,
		resultCh: make(chan Result, 1),
	}

	var lastErr error
	for _, port := range ports {
		ln, err := net.Listen("tcp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		if err != nil {
			lastErr = err
			continue
		}
		s.ln = ln
		s.port = port
		break
	}
	if s.ln == nil {
		return nil, domain.WithMeta(
			domain.Wrap(domain.KindInternal, "loopback_bind_failed", "no loopback callback port available", lastErr),
			map[string]string{"ports": joinPorts(ports)},
		)
	}

	r := chi.NewRouter()
	r.Get("/callback", s.handleCallback)

	s.srv = &http.Server{Handler: r}
	go func() {
		if err := s.srv.Serve(s.ln); err != nil && err != http.ErrServerClosed {
			s.lg.Debug().Err(err).Msg("loopback server stopped")
		}
	}()

	s.lg.Debug().Int("port", s.port).Msg("loopback callback server listening")
	return s, nil
}

// RedirectURI is the registered redirect target for this attempt.
func (s *Server) RedirectURI() string {
	return fmt.Sprintf("http://127.0.0.1:%d/callback", s.port)
}

// Wait blocks until a callback is accepted or ctx ends. There is no deadline
// here; the user may take arbitrarily long in the browser.
func (s *Server) Wait(ctx context.Context) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, domain.ErrCancelled()
	case res := <-s.resultCh:
		if res.Err != nil {
			return Result{}, res.Err
		}
		return res, nil
	}
}

// Stop shuts the listener down. Safe to call after Wait returned.
func (s *Server) Stop(ctx context.Context) {
	_ = s.srv.Shutdown(ctx)
}

// deliver hands the result to the waiter exactly once.
func (s *Server) deliver(res Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delivered {
		return false
	}
	s.delivered = true
	s.resultCh <- res
	return true
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errCode := q.Get("error"); errCode != "" {
		errDesc := q.Get("error_description")
		s.lg.Debug().Str("error", errCode).Str("description", errDesc).Msg("authorization rejected by agent")

		if errCode == "access_denied" {
			s.deliver(Result{Err: domain.ErrCancelled()})
			s.renderPage(w, http.StatusOK, cancelledPage, nil)
			return
		}
		s.deliver(Result{Err: domain.WithMeta(
			domain.ErrProviderError(errDesc, nil),
			map[string]string{"error_code": errCode},
		)})
		s.renderPage(w, http.StatusBadRequest, errorPage, map[string]string{"Message": "The sign-in could not be completed."})
		return
	}

	code := q.Get("code")
	state := q.Get("state")
	if code == "" || state == "" {
		// Stray request; the attempt keeps waiting.
		s.renderPage(w, http.StatusBadRequest, errorPage, map[string]string{"Message": "Missing code or state parameter."})
		return
	}

	auth, err := s.states.Consume(state)
	if err != nil {
		// Unknown or replayed state. Reject the request, keep waiting.
		s.lg.Warn().Msg("callback with unknown or already used state")
		s.renderPage(w, http.StatusBadRequest, errorPage, map[string]string{"Message": "This sign-in link is no longer valid."})
		return
	}

	if !s.deliver(Result{Code: code, State: state, Auth: auth}) {
		s.renderPage(w, http.StatusConflict, errorPage, map[string]string{"Message": "This sign-in has already completed."})
		return
	}
	s.renderPage(w, http.StatusOK, successPage, nil)
}

func (s *Server) renderPage(w http.ResponseWriter, status int, page string, data any) {
	tmpl := template.Must(template.New("page").Parse(page))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return
	}
	_, _ = w.Write(buf.Bytes())
}

func joinPorts(ports []int) string {
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		parts = append(parts, strconv.Itoa(p))
	}
	return strings.Join(parts, ",")
}

const successPage = `<!DOCTYPE html>
<html>
<head>
  <title>Sign-in Complete</title>
  <style>
    body { font-family: system-ui, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #f5f5f5; }
    .container { text-align: center; padding: 2rem; background: white; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); }
    .check { color: #27ae60; font-size: 2rem; }
  </style>
</head>
<body>
  <div class="container">
    <div class="check">&#10003;</div>
    <h2>Sign-in complete</h2>
    <p>You can close this window and return to the app.</p>
  </div>
</body>
</html>`

const cancelledPage = `<!DOCTYPE html>
<html>
<head>
  <title>Sign-in Cancelled</title>
  <style>
    body { font-family: system-ui, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #f5f5f5; }
    .container { text-align: center; padding: 2rem; background: white; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); }
  </style>
</head>
<body>
  <div class="container">
    <h2>Sign-in cancelled</h2>
    <p>You can close this window.</p>
  </div>
</body>
</html>`

const errorPage = `<!DOCTYPE html>
<html>
<head>
  <title>Sign-in Failed</title>
  <style>
    body { font-family: system-ui, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #f5f5f5; }
    .container { text-align: center; padding: 2rem; background: white; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); max-width: 400px; }
    .error { color: #e74c3c; }
  </style>
</head>
<body>
  <div class="container">
    <h2 class="error">Sign-in failed</h2>
    <p>{{.Message}}</p>
  </div>
</body>
</html>`
