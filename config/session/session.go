// Package session tracks running aicoder processes with marker files next
// to the config file: one per panel instance and one per background agent.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Role names the kind of process a marker belongs to
type Role string

const (
	RolePanel Role = "panel"
	RoleAgent Role = "agent"
)

// Marker represents a process marker file
type Marker struct {
	PID       int       `json:"pid"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

func markerPath(dir string, role Role, pid int) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%d", role, pid))
}

// CreateMarker writes the marker of process pid
func CreateMarker(dir string, role Role, pid int) error {
	marker := Marker{
		PID:       pid,
		Role:      role,
		Timestamp: time.Now(),
	}

	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize %s marker: %w", role, err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create marker directory: %w", err)
	}
	if err := os.WriteFile(markerPath(dir, role, pid), data, 0600); err != nil {
		return fmt.Errorf("failed to write %s marker: %w", role, err)
	}
	return nil
}

// RemoveMarker removes the marker of process pid
func RemoveMarker(dir string, role Role, pid int) error {
	err := os.Remove(markerPath(dir, role, pid))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s marker: %w", role, err)
	}
	return nil
}

// ReadMarker reads the marker of process pid
func ReadMarker(dir string, role Role, pid int) (Marker, error) {
	var m Marker
	data, err := os.ReadFile(markerPath(dir, role, pid))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("invalid %s marker: %w", role, err)
	}
	return m, nil
}

// LiveInstances returns the PIDs of running processes holding a marker of
// role, excluding self. Markers of dead processes and malformed marker
// names are removed along the way.
func LiveInstances(dir string, role Role, self int) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read marker directory: %w", err)
	}

	prefix := string(role) + "-"
	var live []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}

		pid, err := strconv.Atoi(strings.TrimPrefix(name, prefix))
		if err != nil || pid <= 0 {
			os.Remove(filepath.Join(dir, name))
			continue
		}
		if pid == self {
			continue
		}
		if IsProcessRunning(pid) {
			live = append(live, pid)
		} else {
			os.Remove(filepath.Join(dir, name))
		}
	}
	return live, nil
}

// Acquire claims the single instance of role for pid. It fails when another
// live process already holds a marker; the returned release removes ours.
func Acquire(dir string, role Role, pid int) (release func(), err error) {
	live, err := LiveInstances(dir, role, pid)
	if err != nil {
		return nil, err
	}
	if len(live) > 0 {
		return nil, fmt.Errorf("another %s is already running (pid %d)", role, live[0])
	}
	if err := CreateMarker(dir, role, pid); err != nil {
		return nil, err
	}
	return func() { _ = RemoveMarker(dir, role, pid) }, nil
}

// IsProcessRunning checks if a process with the given PID is still running
func IsProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix FindProcess always succeeds; signal 0 probes for existence.
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
