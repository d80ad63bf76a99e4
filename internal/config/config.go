package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	//App
	Env string // dev / staging / prod

	// Backend API
	APIBaseURL     string `validate:"required,url"`
	BackendTimeout time.Duration

	// Provider client identifiers. Optional at load time: a missing ID only
	// matters when someone starts a flow for that provider, and it surfaces
	// there as a config error.
	GoogleClientID string
	GitHubClientID string

	// Loopback redirect listener
	CallbackPorts []int `validate:"required,min=1,dive,gt=0,lt=65536"`

	// Retry policy
	MaxAuthAttempts int           `validate:"required,gte=1,lte=10"`
	RetryBaseDelay  time.Duration `validate:"required"`

	// Session storage
	StateDir       string
	SessionStorage string `validate:"omitempty,oneof=sqlite file memory"`
	VaultKey       string `validate:"omitempty,len=64,hexadecimal"`

	// Native provider helper binary, looked up on PATH.
	NativeHelper string

	// Connectivity probing. Defaults to the API base URL.
	ConnectivityProbeURL string `validate:"omitempty,url"`
}

func Load() (*Config, error) {
	// Local .env is a convenience for dev machines; absence is fine.
	_ = godotenv.Load()

	cfg := &Config{
		Env:          getEnv("ENV", "dev"),
		NativeHelper: getEnv("NATIVE_HELPER", "careermate-auth-helper"),
	}

	// required values
	cfg.APIBaseURL = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("missing required env var: API_BASE_URL")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_OAUTH_CLIENT_ID")
	cfg.GitHubClientID = os.Getenv("GITHUB_OAUTH_CLIENT_ID")

	bt, err := getDuration("BACKEND_TIMEOUT", 8*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.BackendTimeout = bt

	ports, err := getPorts("OAUTH_CALLBACK_PORTS", []int{8765, 8766, 8767})
	if err != nil {
		return nil, err
	}
	cfg.CallbackPorts = ports

	ma, err := getInt("MAX_AUTH_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	cfg.MaxAuthAttempts = ma

	rd, err := getDuration("RETRY_BASE_DELAY", time.Second)
	if err != nil {
		return nil, err
	}
	cfg.RetryBaseDelay = rd

	cfg.StateDir = os.Getenv("STATE_DIR")
	if cfg.StateDir == "" {
		// Fall back to the user config dir; a failure there leaves StateDir
		// empty and the storage probe recommends memory.
		if base, err := os.UserConfigDir(); err == nil {
			cfg.StateDir = filepath.Join(base, "careermate")
		}
	}

	cfg.SessionStorage = os.Getenv("SESSION_STORAGE")
	cfg.VaultKey = os.Getenv("VAULT_KEY")
	if cfg.SessionStorage == "file" && cfg.VaultKey == "" {
		return nil, fmt.Errorf("SESSION_STORAGE=file requires VAULT_KEY")
	}

	cfg.ConnectivityProbeURL = getEnv("CONNECTIVITY_PROBE_URL", cfg.APIBaseURL)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ClientID returns the configured client identifier for an OAuth provider.
func (c *Config) ClientID(provider string) string {
	switch provider {
	case "google":
		return c.GoogleClientID
	case "github":
		return c.GitHubClientID
	default:
		return ""
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q: %w", key, v, err)
	}
	return n, nil
}

func getPorts(key string, def []int) ([]int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	var ports []int
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid port list for %s: %q: %w", key, v, err)
		}
		ports = append(ports, p)
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("invalid port list for %s: %q", key, v)
	}
	return ports, nil
}
