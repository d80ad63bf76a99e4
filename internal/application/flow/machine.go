package flow

import (
	"fmt"

	"github.com/careermate/authflow/internal/domain"
)

// Machine drives one attempt through the legal state table. Not safe for
// concurrent use; each attempt owns its machine for its whole life.
type Machine struct {
	provider domain.Provider
	state    domain.FlowState
	attempt  *domain.OAuthAttempt
	observe  func(from, to domain.FlowState, ev domain.Event)
}

// NewMachine starts a machine at IDLE for one provider's attempt.
func NewMachine(provider domain.Provider, attempt *domain.OAuthAttempt, observe func(from, to domain.FlowState, ev domain.Event)) *Machine {
	return &Machine{
		provider: provider,
		state:    domain.StateIdle,
		attempt:  attempt,
		observe:  observe,
	}
}

func (m *Machine) State() domain.FlowState { return m.state }

func (m *Machine) Attempt() *domain.OAuthAttempt { return m.attempt }

// Transition applies one event. An event with no edge from the current state
// is a programming error: the machine stays put and reports it instead of
// guessing a destination.
func (m *Machine) Transition(ev domain.Event) error {
	next, ok := domain.NextState(m.state, ev.Kind)
	if !ok {
		return domain.New(domain.KindInternal, "illegal_transition",
			fmt.Sprintf("event %q is not legal in state %q", ev.Kind, m.state))
	}
	from := m.state
	m.state = next
	if ev.Err != nil && m.attempt != nil {
		m.attempt.LastError = ev.Err
	}
	if m.observe != nil {
		m.observe(from, next, ev)
	}
	return nil
}
