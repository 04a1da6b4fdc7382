package lifecycle

import (
	"testing"

	"github.com/airweave-core/airweave-core/internal/core"
)

func TestTransition_EveryArrowInTheDiagram(t *testing.T) {
	cases := []struct {
		from core.ConnectionState
		ev   Event
		want core.ConnectionState
	}{
		{core.StateCreating, EventAuthDirectOrToken, core.StateAuthed},
		{core.StateCreating, EventStartBrowserFlow, core.StatePendingAuth},
		{core.StatePendingAuth, EventCallbackSuccess, core.StateAuthed},
		{core.StatePendingAuth, EventSessionExpired, core.StateExpired},
		{core.StatePendingAuth, EventDelete, core.StateDeleted},
		{core.StateAuthed, EventProvisioned, core.StateScheduled},
		{core.StateScheduled, EventRun, core.StateRunning},
		{core.StateScheduled, EventDelete, core.StateDeleted},
		{core.StateRunning, EventRunFinished, core.StateScheduled},
	}

	for _, c := range cases {
		got, ok := transition(c.from, c.ev)
		if !ok {
			t.Errorf("transition(%s, %s) = not ok, want %s", c.from, c.ev, c.want)
			continue
		}
		if got != c.want {
			t.Errorf("transition(%s, %s) = %s, want %s", c.from, c.ev, got, c.want)
		}
	}
}

func TestTransition_RejectsUndefinedArrows(t *testing.T) {
	cases := []struct {
		from core.ConnectionState
		ev   Event
	}{
		{core.StateCreating, EventCallbackSuccess},
		{core.StateAuthed, EventRun},
		{core.StateExpired, EventRun},
		{core.StateDeleted, EventRun},
		{core.StateRunning, EventDelete},
	}

	for _, c := range cases {
		if _, ok := transition(c.from, c.ev); ok {
			t.Errorf("transition(%s, %s) = ok, want rejected", c.from, c.ev)
		}
	}
}

func TestTransition_NeverRevisitsAnEarlierState(t *testing.T) {
	// Walk the happy path and confirm the state sequence is strictly
	// forward through Creating -> PendingAuth -> Authed -> Scheduled ->
	// Running -> Scheduled, never back to Creating/PendingAuth.
	seen := map[core.ConnectionState]bool{core.StateCreating: true}
	state := core.StateCreating

	steps := []Event{EventStartBrowserFlow, EventCallbackSuccess, EventProvisioned, EventRun, EventRunFinished}
	forbidden := []core.ConnectionState{core.StateCreating, core.StatePendingAuth}

	for _, ev := range steps {
		next, ok := transition(state, ev)
		if !ok {
			t.Fatalf("transition(%s, %s) unexpectedly rejected", state, ev)
		}
		for _, f := range forbidden {
			if next == f && seen[f] {
				t.Fatalf("state %s revisited after leaving it", f)
			}
		}
		seen[next] = true
		state = next
	}
}
