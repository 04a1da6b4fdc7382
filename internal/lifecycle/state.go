package lifecycle

import "github.com/airweave-core/airweave-core/internal/core"

// Event names a state machine input — an action the Manager performs
// rather than a Source Connection field — so transition() can be tested
// exhaustively against every arrow in the lifecycle diagram independent
// of any storage or transport concern.
type Event string

const (
	EventAuthDirectOrToken Event = "auth_direct_or_token" // direct/token/auth_provider creation
	EventStartBrowserFlow  Event = "start_browser_flow"   // browser/BYOC creation
	EventCallbackSuccess   Event = "callback_success"
	EventSessionExpired    Event = "session_expired"
	EventProvisioned       Event = "provisioned" // sync + schedule created
	EventRun               Event = "run"
	EventRunFinished       Event = "run_finished"
	EventDelete            Event = "delete"
)

// transition is the lifecycle state table (spec §4.1's diagram): from a
// state plus an event, the next state, or ok=false if that arrow doesn't
// exist. monotonic: callback_success/provisioned never return to an
// earlier state (§8 property 5).
func transition(from core.ConnectionState, ev Event) (core.ConnectionState, bool) {
	switch from {
	case core.StateCreating:
		switch ev {
		case EventAuthDirectOrToken:
			return core.StateAuthed, true
		case EventStartBrowserFlow:
			return core.StatePendingAuth, true
		}
	case core.StatePendingAuth:
		switch ev {
		case EventCallbackSuccess:
			return core.StateAuthed, true
		case EventSessionExpired:
			return core.StateExpired, true
		case EventDelete:
			return core.StateDeleted, true
		}
	case core.StateAuthed:
		switch ev {
		case EventProvisioned:
			return core.StateScheduled, true
		}
	case core.StateScheduled:
		switch ev {
		case EventRun:
			return core.StateRunning, true
		case EventDelete:
			return core.StateDeleted, true
		}
	case core.StateRunning:
		switch ev {
		case EventRunFinished:
			return core.StateScheduled, true
		}
	}
	return "", false
}
