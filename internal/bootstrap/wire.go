package bootstrap

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/careermate/authflow/internal/application/flow"
	"github.com/careermate/authflow/internal/application/platform"
	"github.com/careermate/authflow/internal/audit"
	"github.com/careermate/authflow/internal/config"
	"github.com/careermate/authflow/internal/domain"
	"github.com/careermate/authflow/internal/infrastructure/agent"
	"github.com/careermate/authflow/internal/infrastructure/backend"
	"github.com/careermate/authflow/internal/infrastructure/connectivity"
	"github.com/careermate/authflow/internal/infrastructure/memory"
	"github.com/careermate/authflow/internal/infrastructure/security"
	storage_file "github.com/careermate/authflow/internal/infrastructure/storage/file"
	storage_sqlite "github.com/careermate/authflow/internal/infrastructure/storage/sqlite"
	"github.com/careermate/authflow/internal/logger"
)

/*
========================
 Public entry (prod)
========================
*/

// App is the assembled client: the flow service plus the shared pieces a
// front end needs alongside it.
type App struct {
	Config   *config.Config
	Flow     *flow.Service
	Resolver *platform.Resolver
	Log      zerolog.Logger
}

func NewApp() (*App, func(), error) {
	return newApp(Deps{})
}

// NewAppWithDeps allows injecting dependencies. Constructor slots left nil
// fall back to the production defaults, so callers override only what they
// need (tests, or a front end supplying its own opener and prompt).
func NewAppWithDeps(deps Deps) (*App, func(), error) {
	return newApp(deps)
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	NewDB func(path string) (*sql.DB, error)

	NewBackend func(baseURL string, timeout time.Duration) (flow.Backend, error)

	// Opener hands authorization URLs to the user. Nil selects the system
	// browser with a printed link as the fallback.
	Opener agent.Opener

	// Prompt answers account conflict questions. Nil declines every
	// conflict, the safe default for embedders without a user interface.
	Prompt flow.ConflictPrompt
}

/*
========================
 Core bootstrap logic
========================
*/

func newApp(deps Deps) (*App, func(), error) {
	deps = deps.withDefaults()

	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	lg := logger.Component("authflow")

	cleanupFns := []func(){}

	// 1) external agents; the native helper probe feeds platform resolution
	native := agent.NewNativeAgent(cfg.NativeHelper, lg)

	opener := deps.Opener
	if opener == nil {
		opener = agent.FallbackOpener{
			Primary:  agent.SystemOpener{},
			Fallback: agent.PrintOpener{W: os.Stderr},
		}
	}

	states := memory.NewPendingAuthStore()
	browser := agent.NewBrowserAgent(cfg, states, opener, lg)
	agents := agent.New(browser, native)

	// 2) platform resolution
	resolver := platform.NewResolver(cfg, native.Available)

	// 3) session storage: explicit override, else platform recommendation,
	// degrading file -> sqlite -> memory so a storage problem never blocks
	// sign-in
	kind := domain.StorageKind(cfg.SessionStorage)
	if cfg.SessionStorage == "" {
		kind = resolver.Capabilities(resolver.Detect()).RecommendedStorage
	}

	var store flow.SessionStore

	if kind == domain.StorageFile {
		st, err := openFileVault(cfg)
		if err != nil {
			lg.Warn().Err(err).Msg("file vault unavailable; falling back to sqlite storage")
			kind = domain.StorageSQLite
		} else {
			store = st
		}
	}

	if store == nil && kind == domain.StorageSQLite {
		st, closeDB, err := openSessionDB(deps, cfg)
		if err != nil {
			lg.Warn().Err(err).Msg("session database unavailable; sessions will not survive restarts")
		} else {
			store = st
			cleanupFns = append(cleanupFns, closeDB)
		}
	}

	if store == nil {
		store = memory.NewSessionStore()
		kind = domain.StorageMemory
	}
	lg.Info().Str("storage", string(kind)).Msg("session storage selected")

	// 4) backend client
	be, err := deps.NewBackend(cfg.APIBaseURL, cfg.BackendTimeout)
	if err != nil {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	// 5) connectivity
	monitor := connectivity.NewMonitor(cfg.ConnectivityProbeURL, 0)

	// 6) conflict prompt
	prompt := deps.Prompt
	if prompt == nil {
		prompt = declinePrompt{}
	}

	// 7) flow service
	svc := flow.NewService(store, be, agents, monitor, resolver, prompt, flow.Config{
		ClientIDs: map[domain.Provider]string{
			domain.ProviderGoogle: cfg.GoogleClientID,
			domain.ProviderGitHub: cfg.GitHubClientID,
		},
		MaxAttempts:    cfg.MaxAuthAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
	}, lg)

	svc = svc.WithAudit(audit.New(lg).Event)

	// 8) rehydrate any persisted session so the app starts signed in
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := svc.Restore(ctx); err != nil {
		lg.Warn().Err(err).Msg("session restore failed; starting signed out")
	}

	app := &App{
		Config:   cfg,
		Flow:     svc,
		Resolver: resolver,
		Log:      lg,
	}

	cleanup := func() {
		runCleanup(cleanupFns)
	}

	return app, cleanup, nil
}

/*
========================
 Default deps (prod)
========================
*/

func defaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		NewDB: func(path string) (*sql.DB, error) {
			return config.NewDB(path)
		},
		NewBackend: func(baseURL string, timeout time.Duration) (flow.Backend, error) {
			return backend.NewClient(baseURL, timeout)
		},
	}
}

// withDefaults fills the constructor slots a caller left nil.
func (d Deps) withDefaults() Deps {
	def := defaultDeps()
	if d.LoadConfig == nil {
		d.LoadConfig = def.LoadConfig
	}
	if d.NewDB == nil {
		d.NewDB = def.NewDB
	}
	if d.NewBackend == nil {
		d.NewBackend = def.NewBackend
	}
	return d
}

/*
========================
 helpers
========================
*/

// openFileVault builds the sealed file store. The sealer rejects a missing or
// malformed vault key, which is how the recommended-file path degrades on
// machines that never provisioned one.
func openFileVault(cfg *config.Config) (flow.SessionStore, error) {
	sealer, err := security.NewSealer(cfg.VaultKey)
	if err != nil {
		return nil, err
	}
	return storage_file.New(cfg.StateDir, sealer)
}

// openSessionDB opens the sqlite-backed session store and reports how to
// close it.
func openSessionDB(deps Deps, cfg *config.Config) (flow.SessionStore, func(), error) {
	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		return nil, nil, err
	}
	db, err := deps.NewDB(filepath.Join(cfg.StateDir, "sessions.db"))
	if err != nil {
		return nil, nil, err
	}
	st, err := storage_sqlite.New(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return st, func() { _ = db.Close() }, nil
}

// declinePrompt cancels every conflict case. Resolution then happens on a
// later, interactive attempt.
type declinePrompt struct{}

func (declinePrompt) Choose(context.Context, *domain.ConflictCase) (domain.Resolution, error) {
	return domain.ResolutionCancel, nil
}

func (declinePrompt) RetryLink(context.Context, *domain.ConflictCase, error) bool { return false }

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
