package notify

import "testing"

func TestParsePermissionState(t *testing.T) {
	tests := []struct {
		in   string
		want PermissionState
	}{
		{"granted", PermissionGranted},
		{"denied", PermissionDenied},
		{"default", PermissionUnrequested},
		{"", PermissionUnrequested},
		{"garbage", PermissionUnrequested},
	}
	for _, tt := range tests {
		if got := ParsePermissionState(tt.in); got != tt.want {
			t.Errorf("ParsePermissionState(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGateStartsUnrequested(t *testing.T) {
	g := NewGate()
	if g.State() != PermissionUnrequested {
		t.Errorf("State() = %v, want unrequested", g.State())
	}
	if g.Allow() {
		t.Error("Allow() = true before any grant")
	}
}

func TestGateGrant(t *testing.T) {
	g := NewGate()
	g.Report(PermissionGranted)
	if !g.Allow() {
		t.Error("Allow() = false after grant")
	}
}

func TestGateDenialIsSticky(t *testing.T) {
	g := NewGate()
	g.Report(PermissionDenied)
	g.Report(PermissionGranted)
	if g.State() != PermissionDenied {
		t.Errorf("State() = %v, want denied to stick", g.State())
	}
	if g.Allow() {
		t.Error("Allow() = true after denial")
	}
}

func TestGateIgnoresUnrequestedReports(t *testing.T) {
	g := NewGate()
	g.Report(PermissionGranted)
	g.Report(PermissionUnrequested)
	if g.State() != PermissionGranted {
		t.Errorf("State() = %v, want granted to survive an unrequested report", g.State())
	}
}
