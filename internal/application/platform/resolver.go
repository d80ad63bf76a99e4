// Package platform resolves what the current runtime can do for OAuth
// delivery and session persistence: which platform variant this is, whether
// the native helper and a browser launcher are present, and which storage
// backend is worth recommending.
package platform

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/careermate/authflow/internal/config"
	"github.com/careermate/authflow/internal/domain"
)

// Resolver probes the runtime once and caches the answers. ClearCache resets
// the cache for test isolation; nothing else invalidates it within a process
// lifetime.
type Resolver struct {
	mu   sync.Mutex
	plat domain.Platform
	caps map[domain.Platform]domain.Capabilities

	goos         string
	helperProbe  func() bool
	browserProbe func() bool
	storageProbe func() domain.StorageKind
}

func NewResolver(cfg *config.Config, helperProbe func() bool) *Resolver {
	r := &Resolver{
		caps:        make(map[domain.Platform]domain.Capabilities),
		goos:        runtime.GOOS,
		helperProbe: helperProbe,
	}
	r.browserProbe = func() bool { return launcherPresent(r.goos) }
	r.storageProbe = func() domain.StorageKind { return probeStorage(cfg.StateDir, r.goos) }
	return r
}

// Detect reports the runtime variant. Memoized after the first call.
func (r *Resolver) Detect() domain.Platform {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.plat != "" {
		return r.plat
	}
	switch r.goos {
	case "darwin":
		r.plat = domain.PlatformDarwin
	case "windows":
		r.plat = domain.PlatformWindows
	default:
		r.plat = domain.PlatformLinux
	}
	return r.plat
}

// ClearCache drops the memoized platform and capability answers.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plat = ""
	r.caps = make(map[domain.Platform]domain.Capabilities)
}

// Capabilities probes delivery and storage support for a platform. A probe
// that fails or panics means the capability is absent, never an error.
func (r *Resolver) Capabilities(p domain.Platform) domain.Capabilities {
	r.mu.Lock()
	if c, ok := r.caps[p]; ok {
		r.mu.Unlock()
		return c
	}
	r.mu.Unlock()

	// Probes run outside the lock; they may touch the filesystem and PATH.
	c := domain.Capabilities{
		NativeHelperAvailable:    p.NativeCapable() && probeBool(r.helperProbe),
		BrowserRedirectAvailable: probeBool(r.browserProbe),
		RecommendedStorage:       probeStorageKind(r.storageProbe),
	}

	r.mu.Lock()
	r.caps[p] = c
	r.mu.Unlock()
	return c
}

// NativeAvailable reports whether the provider can be delivered through the
// native helper on this platform. Only google ships a native SDK; github is
// browser-delivered everywhere.
func (r *Resolver) NativeAvailable(provider domain.Provider, p domain.Platform) bool {
	if provider != domain.ProviderGoogle || !p.NativeCapable() {
		return false
	}
	return r.Capabilities(p).NativeHelperAvailable
}

// FlowConfig picks the delivery order for one provider on one platform.
func (r *Resolver) FlowConfig(provider domain.Provider, p domain.Platform) domain.DeliveryPlan {
	if provider == domain.ProviderGoogle && r.NativeAvailable(provider, p) {
		return domain.DeliveryPlan{Preferred: domain.MethodNative, Fallbacks: []domain.Method{domain.MethodWeb}}
	}
	return domain.DeliveryPlan{Preferred: domain.MethodWeb}
}

// ---------- probes ----------

// probeBool runs a capability probe; a missing or panicking probe means the
// capability is absent.
func probeBool(probe func() bool) (ok bool) {
	if probe == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return probe()
}

func probeStorageKind(probe func() domain.StorageKind) (kind domain.StorageKind) {
	kind = domain.StorageMemory
	if probe == nil {
		return kind
	}
	defer func() {
		if recover() != nil {
			kind = domain.StorageMemory
		}
	}()
	if k := probe(); domain.IsValidStorageKind(string(k)) {
		kind = k
	}
	return kind
}

// launcherPresent checks for a URL launcher. The darwin and windows
// launchers ship with the OS; linux needs xdg-open and a display session.
func launcherPresent(goos string) bool {
	switch goos {
	case "darwin", "windows":
		return true
	default:
		if _, err := exec.LookPath("xdg-open"); err != nil {
			return false
		}
		return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
	}
}

// probeStorage recommends where session state should live. The desktop
// platforms get the sealed file vault, linux the sqlite store; without a
// writable state directory only memory is safe.
func probeStorage(stateDir, goos string) domain.StorageKind {
	if stateDir == "" {
		return domain.StorageMemory
	}
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return domain.StorageMemory
	}
	probe := filepath.Join(stateDir, ".probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return domain.StorageMemory
	}
	_ = os.Remove(probe)

	if goos == "darwin" || goos == "windows" {
		return domain.StorageFile
	}
	return domain.StorageSQLite
}
