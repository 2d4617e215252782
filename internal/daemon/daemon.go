// Package daemon runs the background agent: it follows the config file,
// answers queries on a unix socket and performs quick model switches the
// same way the tray menu does.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"aicoder/config"
	"aicoder/config/models"
	"aicoder/config/session"
	"aicoder/internal/broadcast"
	"aicoder/internal/logging"
)

const (
	SocketName = "aicoder.sock"
	PIDName    = "agent.pid"

	connTimeout = 5 * time.Second
)

// RuntimeDir returns the per-user directory holding the socket and PID file
func RuntimeDir() string {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, fmt.Sprintf("aicoder-%d", os.Getuid()))
}

// Daemon is the background agent
type Daemon struct {
	store      *config.Store
	log        logging.Logger
	socketPath string
	pidPath    string
	markerDir  string

	mu            sync.RWMutex
	snap          models.Snapshot
	configVersion int64

	listener    net.Listener
	unsubscribe broadcast.Unsubscribe
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	stopOnce    sync.Once
}

// New creates an agent for store using runtimeDir for its socket and PID
// file. Session markers go next to the config file.
func New(store *config.Store, runtimeDir string, log logging.Logger) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		store:         store,
		log:           log,
		socketPath:    filepath.Join(runtimeDir, SocketName),
		pidPath:       filepath.Join(runtimeDir, PIDName),
		markerDir:     store.SessionDir(),
		configVersion: time.Now().Unix(),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

// SocketPath returns the socket the agent listens on
func (d *Daemon) SocketPath() string {
	return d.socketPath
}

// Start loads the config, starts watching it and opens the socket. It
// returns once the agent is serving.
func (d *Daemon) Start() error {
	if err := d.cleanupSocket(); err != nil {
		return fmt.Errorf("failed to cleanup socket: %w", err)
	}
	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	if err := session.CreateMarker(d.markerDir, session.RoleAgent, os.Getpid()); err != nil {
		d.log.Warnf("Failed to create agent marker: %v", err)
	}

	d.setSnapshot(d.store.Load())
	d.unsubscribe = d.store.Subscribe(d.setSnapshot)

	go func() {
		if err := d.store.Watch(d.ctx); err != nil {
			d.log.Errorf("Config watch stopped: %v", err)
		}
	}()

	if err := d.startSocketServer(); err != nil {
		d.Stop()
		return fmt.Errorf("failed to start socket server: %w", err)
	}
	return nil
}

// Wait blocks until the agent stops
func (d *Daemon) Wait() {
	<-d.done
}

// Stop closes the socket, stops the watch and removes the runtime files.
// It is safe to call more than once.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		d.log.Infof("Stopping agent...")
		d.cancel()
		if d.listener != nil {
			d.listener.Close()
		}
		if d.unsubscribe != nil {
			d.unsubscribe()
		}
		d.cleanup()
		close(d.done)
		d.log.Infof("Agent stopped")
	})
}

func (d *Daemon) setSnapshot(snap models.Snapshot) {
	d.mu.Lock()
	d.snap = snap.Clone()
	d.configVersion++
	version := d.configVersion
	d.mu.Unlock()
	d.log.Debugf("Config updated: tool=%s version=%d", snap.ActiveTool, version)
}

func (d *Daemon) snapshot() (models.Snapshot, int64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap.Clone(), d.configVersion
}

func (d *Daemon) cleanupSocket() error {
	if _, err := os.Stat(d.socketPath); err == nil {
		if err := os.Remove(d.socketPath); err != nil {
			return err
		}
	}
	return os.MkdirAll(filepath.Dir(d.socketPath), 0700)
}

func (d *Daemon) writePIDFile() error {
	if err := os.MkdirAll(filepath.Dir(d.pidPath), 0700); err != nil {
		return err
	}
	return os.WriteFile(d.pidPath, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func (d *Daemon) startSocketServer() error {
	listener, err := net.Listen("unix", d.socketPath)
	if err != nil {
		return err
	}
	d.listener = listener

	if err := os.Chmod(d.socketPath, 0600); err != nil {
		return err
	}

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if d.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				d.log.Warnf("Accept error: %v", err)
				continue
			}
			go d.handleConnection(conn)
		}
	}()

	d.log.Infof("Agent listening on %s", d.socketPath)
	return nil
}

func (d *Daemon) handleConnection(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(connTimeout))

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		d.log.Debugf("Read error: %v", err)
		return
	}

	response := d.processCommand(strings.TrimSpace(string(buf[:n])))
	if _, err := conn.Write([]byte(response)); err != nil {
		d.log.Debugf("Write error: %v", err)
	}
}

func (d *Daemon) processCommand(command string) string {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "ERROR: empty command"
	}

	switch strings.ToUpper(parts[0]) {
	case "PING":
		return "PONG"
	case "VERSION":
		_, version := d.snapshot()
		return strconv.FormatInt(version, 10)
	case "GET":
		return d.handleGet()
	case "LIST":
		return d.handleList()
	case "RELOAD":
		d.setSnapshot(d.store.Load())
		return "OK"
	case "SWITCH":
		if len(parts) < 3 {
			return "ERROR: usage: SWITCH <tool> <model>"
		}
		return d.handleSwitch(parts[1], strings.Join(parts[2:], " "))
	default:
		return fmt.Sprintf("ERROR: unknown command: %s", parts[0])
	}
}

// Status is the GET reply
type Status struct {
	ActiveTool  string `json:"active_tool"`
	Model       string `json:"model"`
	Endpoint    string `json:"endpoint,omitempty"`
	HasKey      bool   `json:"has_key"`
	Project     string `json:"project"`
	ProjectPath string `json:"project_path"`
	YoloMode    bool   `json:"yolo_mode"`
}

// ModelEntry is one model in the LIST reply
type ModelEntry struct {
	Name    string `json:"name"`
	HasKey  bool   `json:"has_key"`
	Current bool   `json:"current"`
}

func (d *Daemon) handleGet() string {
	snap, _ := d.snapshot()
	cfg := snap.Tool(snap.ActiveTool)
	st := Status{
		ActiveTool: snap.ActiveTool.String(),
		Model:      cfg.CurrentModel,
	}
	if m, ok := cfg.Model(cfg.CurrentModel); ok {
		st.Endpoint = m.ModelURL
		st.HasKey = m.Credentialed()
	}
	if p, ok := snap.ResolvedProject(); ok {
		st.Project = p.Name
		st.ProjectPath = p.Path
		st.YoloMode = p.YoloMode
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	return string(data)
}

func (d *Daemon) handleList() string {
	snap, _ := d.snapshot()
	out := make(map[string][]ModelEntry, len(models.ToolKinds))
	for _, kind := range models.ToolKinds {
		cfg := snap.Tool(kind)
		entries := make([]ModelEntry, 0, len(cfg.Models))
		for _, m := range cfg.Models {
			entries = append(entries, ModelEntry{
				Name:    m.ModelName,
				HasKey:  m.Credentialed(),
				Current: m.ModelName == cfg.CurrentModel,
			})
		}
		out[kind.String()] = entries
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	return string(data)
}

func (d *Daemon) handleSwitch(tool, model string) string {
	kind, err := models.ParseToolKind(tool)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	if _, err := d.store.SwitchModel(kind, model); err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	d.log.Infof("Switched %s to %s", kind.DisplayName(), model)
	return "OK"
}

// HandleSignals reloads on SIGHUP and stops on SIGINT or SIGTERM
func (d *Daemon) HandleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		defer signal.Stop(sigChan)
		for {
			select {
			case sig := <-sigChan:
				switch sig {
				case syscall.SIGHUP:
					d.log.Infof("Received SIGHUP, reloading config...")
					d.setSnapshot(d.store.Load())
				default:
					d.log.Infof("Received %v, shutting down...", sig)
					d.Stop()
					return
				}
			case <-d.ctx.Done():
				return
			}
		}
	}()
}

func (d *Daemon) cleanup() {
	os.Remove(d.socketPath)
	os.Remove(d.pidPath)
	if err := session.RemoveMarker(d.markerDir, session.RoleAgent, os.Getpid()); err != nil {
		d.log.Debugf("Failed to remove agent marker: %v", err)
	}
}

// Running reports the PID of the agent owning runtimeDir, if it is alive
func Running(runtimeDir string) (int, bool) {
	data, err := os.ReadFile(filepath.Join(runtimeDir, PIDName))
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return pid, session.IsProcessRunning(pid)
}

// Send delivers one command to the agent at socketPath and returns its
// reply. Replies starting with "ERROR: " are returned as errors.
func Send(socketPath, command string) (string, error) {
	conn, err := net.DialTimeout("unix", socketPath, connTimeout)
	if err != nil {
		return "", fmt.Errorf("agent not reachable: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(connTimeout))

	if _, err := conn.Write([]byte(command + "\n")); err != nil {
		return "", fmt.Errorf("failed to send command: %w", err)
	}
	reply, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("failed to read reply: %w", err)
	}
	resp := string(reply)
	if msg, ok := strings.CutPrefix(resp, "ERROR: "); ok {
		return "", errors.New(msg)
	}
	return resp, nil
}
