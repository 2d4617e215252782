package session

import (
	"os"
	"path/filepath"
	"testing"
	"testing/quick"
)

// A PID far above any realistic pid_max, so it is never running.
const deadPID = 1 << 30

func TestCreateAndReadMarker(t *testing.T) {
	dir := t.TempDir()
	pid := os.Getpid()

	if err := CreateMarker(dir, RolePanel, pid); err != nil {
		t.Fatalf("CreateMarker failed: %v", err)
	}
	m, err := ReadMarker(dir, RolePanel, pid)
	if err != nil {
		t.Fatalf("ReadMarker failed: %v", err)
	}
	if m.PID != pid || m.Role != RolePanel || m.Timestamp.IsZero() {
		t.Errorf("unexpected marker: %+v", m)
	}

	if err := RemoveMarker(dir, RolePanel, pid); err != nil {
		t.Fatal(err)
	}
	if err := RemoveMarker(dir, RolePanel, pid); err != nil {
		t.Errorf("removing a missing marker should succeed: %v", err)
	}
}

// Property: for any pid, a created marker can be read back with the same
// pid and role.
func TestPropertyMarkerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	property := func(n uint16, agent bool) bool {
		pid := int(n) + 1
		role := RolePanel
		if agent {
			role = RoleAgent
		}
		if err := CreateMarker(dir, role, pid); err != nil {
			return false
		}
		defer RemoveMarker(dir, role, pid)
		m, err := ReadMarker(dir, role, pid)
		return err == nil && m.PID == pid && m.Role == role
	}
	if err := quick.Check(property, nil); err != nil {
		t.Error(err)
	}
}

func TestLiveInstances_CleansStaleMarkers(t *testing.T) {
	dir := t.TempDir()
	self := os.Getpid()

	CreateMarker(dir, RolePanel, self)
	CreateMarker(dir, RolePanel, deadPID)
	CreateMarker(dir, RoleAgent, deadPID)
	os.WriteFile(filepath.Join(dir, "panel-abc"), []byte("{}"), 0600)
	os.WriteFile(filepath.Join(dir, "config.json"), []byte("{}"), 0600)

	live, err := LiveInstances(dir, RolePanel, self)
	if err != nil {
		t.Fatal(err)
	}
	if len(live) != 0 {
		t.Errorf("expected no other live panels, got %v", live)
	}
	for _, name := range []string{"panel-abc", "panel-1073741824"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", name)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "agent-1073741824")); err != nil {
		t.Error("markers of other roles must be left alone")
	}
	if _, err := os.Stat(filepath.Join(dir, "config.json")); err != nil {
		t.Error("unrelated files must be left alone")
	}

	// From a different pid's view, this process is a live panel.
	live, _ = LiveInstances(dir, RolePanel, deadPID)
	if len(live) != 1 || live[0] != self {
		t.Errorf("expected this process to be live, got %v", live)
	}
}

func TestLiveInstances_MissingDir(t *testing.T) {
	live, err := LiveInstances(filepath.Join(t.TempDir(), "missing"), RoleAgent, 1)
	if err != nil || live != nil {
		t.Errorf("missing dir should be empty, got %v, %v", live, err)
	}
}

func TestAcquire(t *testing.T) {
	dir := t.TempDir()
	self := os.Getpid()

	// A live holder (this test process) blocks another pid.
	release, err := Acquire(dir, RolePanel, self)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if _, err := Acquire(dir, RolePanel, deadPID); err == nil {
		t.Error("second instance should be refused while the first is live")
	}

	release()
	release2, err := Acquire(dir, RolePanel, deadPID)
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	release2()
}

func TestIsProcessRunning(t *testing.T) {
	if !IsProcessRunning(os.Getpid()) {
		t.Error("current process should be running")
	}
	if IsProcessRunning(deadPID) {
		t.Error("pid far beyond pid_max should not be running")
	}
}
