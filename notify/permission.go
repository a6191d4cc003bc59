package notify

import (
	"log"
	"sync"
)

// PermissionState is the browser's notification permission as reported by a
// connected page.
type PermissionState int

const (
	PermissionUnrequested PermissionState = iota
	PermissionGranted
	PermissionDenied
)

func (s PermissionState) String() string {
	switch s {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "unrequested"
	}
}

// ParsePermissionState maps the Notification.permission strings sent by the
// browser ("granted", "denied", "default") onto a PermissionState.
func ParsePermissionState(s string) PermissionState {
	switch s {
	case "granted":
		return PermissionGranted
	case "denied":
		return PermissionDenied
	default:
		return PermissionUnrequested
	}
}

// Gate tracks permission for the current session and gates every delivery
// attempt. Transitions only move forward: unrequested may become granted or
// denied, and denial is sticky until the process restarts.
type Gate struct {
	mu    sync.Mutex
	state PermissionState
}

func NewGate() *Gate {
	return &Gate{state: PermissionUnrequested}
}

// Report records a permission state reported by a page. Reports that would
// move the state backwards (to unrequested, or out of denied) are ignored.
func (g *Gate) Report(state PermissionState) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if state == PermissionUnrequested || g.state == state {
		return
	}
	if g.state == PermissionDenied {
		// Sticky for the session; the platform suppresses re-prompts anyway.
		return
	}

	log.Printf("[NOTIFY] permission %s -> %s", g.state, state)
	g.state = state
}

func (g *Gate) State() PermissionState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Allow reports whether delivery attempts may proceed.
func (g *Gate) Allow() bool {
	return g.State() == PermissionGranted
}
