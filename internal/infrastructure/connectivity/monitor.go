// Package connectivity answers one question: can this device reach the
// backend right now. The flow consults it before starting an attempt and
// parks in a waiting state while offline.
package connectivity

import (
	"context"
	"net/http"
	"time"

	"github.com/careermate/authflow/internal/domain"
)

const (
	probeTimeout    = 3 * time.Second
	defaultInterval = 2 * time.Second
)

type Monitor struct {
	probeURL string
	httpc    *http.Client
	interval time.Duration
}

// NewMonitor probes probeURL to detect connectivity. The interval paces the
// re-checks while waiting; zero selects the default.
func NewMonitor(probeURL string, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Monitor{
		probeURL: probeURL,
		httpc:    &http.Client{Timeout: probeTimeout},
		interval: interval,
	}
}

// Online performs a single probe. Any HTTP response counts as online; only a
// transport failure means offline.
func (m *Monitor) Online(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := m.httpc.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// WaitOnline blocks until a probe succeeds or ctx is cancelled. Cancellation
// surfaces as the quiet cancelled error so callers can treat an aborted wait
// like any other user abort.
func (m *Monitor) WaitOnline(ctx context.Context) error {
	if m.Online(ctx) {
		return nil
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return domain.ErrCancelled()
		case <-ticker.C:
			if m.Online(ctx) {
				return nil
			}
		}
	}
}
