package flow

import (
	"testing"
	"time"
)

func TestRetrySchedule_DoublesFromBase(t *testing.T) {
	t.Parallel()

	svc, _, _, _, _, _, _, _ := newSvcForTest(t)
	svc.cfg.RetryBaseDelay = time.Second

	sched := svc.retrySchedule()
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := sched.NextBackOff(); got != w {
			t.Fatalf("wait %d: expected %s, got %s", i+1, w, got)
		}
	}
}

func TestRetrySchedule_CapsSingleWait(t *testing.T) {
	t.Parallel()

	svc, _, _, _, _, _, _, _ := newSvcForTest(t)
	svc.cfg.RetryBaseDelay = 20 * time.Second

	sched := svc.retrySchedule()
	want := []time.Duration{20 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, w := range want {
		if got := sched.NextBackOff(); got != w {
			t.Fatalf("wait %d: expected %s, got %s", i+1, w, got)
		}
	}
}
