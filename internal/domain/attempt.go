package domain

import "time"

// FlowState is the orchestrator state for one authentication attempt.
type FlowState string

const (
	StateIdle                 FlowState = "IDLE"
	StateInitiating           FlowState = "INITIATING"
	StateWaitingConnectivity  FlowState = "WAITING_FOR_CONNECTIVITY"
	StateAwaitingExternal     FlowState = "AWAITING_EXTERNAL_RESPONSE"
	StateExchanging           FlowState = "EXCHANGING"
	StateRetryWait            FlowState = "RETRY_WAIT"
	StateConflict             FlowState = "CONFLICT"
	StateSuccess              FlowState = "SUCCESS"
	StateFailed               FlowState = "FAILED"
	StateCancelled            FlowState = "CANCELLED"
)

// Terminal reports whether the orchestrator performs no further automatic
// transitions from s for the current attempt.
func (s FlowState) Terminal() bool {
	return s == StateSuccess || s == StateFailed || s == StateCancelled
}

// EventKind names the occurrences that drive state transitions. Every async
// completion maps to exactly one event.
type EventKind string

const (
	EventBegin                EventKind = "begin"
	EventOffline              EventKind = "offline"
	EventConnectivityRestored EventKind = "connectivity_restored"
	EventAgentOpened          EventKind = "agent_opened"
	EventCredentialReceived   EventKind = "credential_received"
	EventUserCancelled        EventKind = "user_cancelled"
	EventExchangeSucceeded    EventKind = "exchange_succeeded"
	EventConflictDetected     EventKind = "conflict_detected"
	EventRetryScheduled       EventKind = "retry_scheduled"
	EventRetryElapsed         EventKind = "retry_elapsed"
	EventFlowFailed           EventKind = "flow_failed"
	EventConflictLinked       EventKind = "conflict_linked"
	EventConflictSwitched     EventKind = "conflict_switched"
	EventConflictCancelled    EventKind = "conflict_cancelled"
)

// Event carries an occurrence and its payload into the state machine.
type Event struct {
	Kind       EventKind
	Credential *Credential
	User       *UserAccount
	Conflict   *ConflictCase
	Err        *Error
}

// transitions is the legal state/event table. Anything absent is a
// programming error surfaced by the machine, never silently ignored.
var transitions = map[FlowState]map[EventKind]FlowState{
	StateIdle: {
		EventBegin: StateInitiating,
	},
	StateInitiating: {
		EventOffline:       StateWaitingConnectivity,
		EventAgentOpened:   StateAwaitingExternal,
		EventUserCancelled: StateCancelled,
		EventFlowFailed:    StateFailed,
	},
	StateWaitingConnectivity: {
		EventConnectivityRestored: StateInitiating,
		EventUserCancelled:        StateCancelled,
		EventFlowFailed:           StateFailed,
	},
	StateAwaitingExternal: {
		EventCredentialReceived: StateExchanging,
		EventUserCancelled:      StateCancelled,
		EventFlowFailed:         StateFailed,
	},
	StateExchanging: {
		EventExchangeSucceeded: StateSuccess,
		EventConflictDetected:  StateConflict,
		EventRetryScheduled:    StateRetryWait,
		EventFlowFailed:        StateFailed,
	},
	StateRetryWait: {
		EventRetryElapsed:  StateExchanging,
		EventUserCancelled: StateCancelled,
		EventFlowFailed:    StateFailed,
	},
	StateConflict: {
		EventConflictLinked:    StateSuccess,
		EventConflictSwitched:  StateIdle,
		EventConflictCancelled: StateCancelled,
	},
}

// NextState resolves the transition table for one state/event pair.
func NextState(from FlowState, ev EventKind) (FlowState, bool) {
	to, ok := transitions[from][ev]
	return to, ok
}

// OAuthAttempt describes one in-flight authentication try. Created at
// initiation, discarded at terminal state. Never persisted.
type OAuthAttempt struct {
	ID            string
	Provider      Provider
	Method        Method
	StartedAt     time.Time
	AttemptNumber int
	MaxAttempts   int
	LastError     *Error
}
