package flow

import (
	"testing"

	"github.com/careermate/authflow/internal/domain"
)

func TestMachine_HappyPath(t *testing.T) {
	t.Parallel()

	var seen []domain.FlowState
	m := NewMachine(domain.ProviderGoogle, &domain.OAuthAttempt{ID: "a1"}, func(from, to domain.FlowState, ev domain.Event) {
		seen = append(seen, to)
	})

	steps := []domain.EventKind{
		domain.EventBegin,
		domain.EventAgentOpened,
		domain.EventCredentialReceived,
		domain.EventExchangeSucceeded,
	}
	for _, k := range steps {
		if err := m.Transition(domain.Event{Kind: k}); err != nil {
			t.Fatalf("transition %s: %v", k, err)
		}
	}

	want := []domain.FlowState{
		domain.StateInitiating,
		domain.StateAwaitingExternal,
		domain.StateExchanging,
		domain.StateSuccess,
	}
	if len(seen) != len(want) {
		t.Fatalf("expected %d transitions, saw %d", len(want), len(seen))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("step %d: expected %s, got %s", i, want[i], seen[i])
		}
	}
	if !m.State().Terminal() {
		t.Fatalf("expected terminal state, got %s", m.State())
	}
}

func TestMachine_IllegalTransitionRejected(t *testing.T) {
	t.Parallel()

	m := NewMachine(domain.ProviderGoogle, &domain.OAuthAttempt{ID: "a1"}, nil)

	err := m.Transition(domain.Event{Kind: domain.EventCredentialReceived})
	requireErrCode(t, err, "illegal_transition")
	requireKind(t, err, domain.KindInternal)
	if m.State() != domain.StateIdle {
		t.Fatalf("state moved on illegal transition: %s", m.State())
	}
}

func TestMachine_RetryLoop(t *testing.T) {
	t.Parallel()

	m := NewMachine(domain.ProviderGitHub, &domain.OAuthAttempt{ID: "a1"}, nil)
	for _, k := range []domain.EventKind{
		domain.EventBegin,
		domain.EventAgentOpened,
		domain.EventCredentialReceived,
		domain.EventRetryScheduled,
		domain.EventRetryElapsed,
		domain.EventRetryScheduled,
		domain.EventRetryElapsed,
		domain.EventExchangeSucceeded,
	} {
		if err := m.Transition(domain.Event{Kind: k}); err != nil {
			t.Fatalf("transition %s: %v", k, err)
		}
	}
	if m.State() != domain.StateSuccess {
		t.Fatalf("expected SUCCESS, got %s", m.State())
	}
}

func TestMachine_ConflictEdges(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		ev   domain.EventKind
		want domain.FlowState
	}{
		{"linked", domain.EventConflictLinked, domain.StateSuccess},
		{"switched", domain.EventConflictSwitched, domain.StateIdle},
		{"cancelled", domain.EventConflictCancelled, domain.StateCancelled},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := NewMachine(domain.ProviderGoogle, &domain.OAuthAttempt{ID: "a1"}, nil)
			for _, k := range []domain.EventKind{
				domain.EventBegin,
				domain.EventAgentOpened,
				domain.EventCredentialReceived,
				domain.EventConflictDetected,
			} {
				if err := m.Transition(domain.Event{Kind: k}); err != nil {
					t.Fatalf("transition %s: %v", k, err)
				}
			}
			if err := m.Transition(domain.Event{Kind: tc.ev}); err != nil {
				t.Fatalf("conflict edge %s: %v", tc.ev, err)
			}
			if m.State() != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, m.State())
			}
		})
	}
}

func TestMachine_RecordsLastError(t *testing.T) {
	t.Parallel()

	att := &domain.OAuthAttempt{ID: "a1"}
	m := NewMachine(domain.ProviderGoogle, att, nil)

	if err := m.Transition(domain.Event{Kind: domain.EventBegin}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	de := domain.ErrNetwork(nil)
	if err := m.Transition(domain.Event{Kind: domain.EventFlowFailed, Err: de}); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if att.LastError == nil || att.LastError.Code != "network_error" {
		t.Fatalf("expected last error recorded, got %+v", att.LastError)
	}
}
