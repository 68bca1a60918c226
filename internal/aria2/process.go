package aria2

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
)

// Process manages a locally spawned aria2c
type Process struct {
	path   string
	port   int
	logger *slog.Logger

	// fallback is run by Kill when no spawned process is known
	fallback []string

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewProcess creates a manager for the aria2c binary at path listening on port
func NewProcess(path string, port int) *Process {
	fallback := []string{"killall", "aria2c"}
	if runtime.GOOS == "windows" {
		fallback = []string{"taskkill", "/F", "/IM", "aria2c.exe"}
	}

	return &Process{
		path:     path,
		port:     port,
		logger:   slog.Default(),
		fallback: fallback,
	}
}

// Args returns the command line used to start the engine
func (p *Process) Args() []string {
	return []string{
		"--no-conf",
		"--enable-rpc",
		"--rpc-listen-port=" + strconv.Itoa(p.port),
		"--rpc-allow-origin-all",
		"--quiet=true",
	}
}

// Start launches aria2c in the background
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return nil
	}

	cmd := exec.Command(p.path, p.Args()...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", p.path, err)
	}
	p.cmd = cmd
	p.logger.Info("Started download engine", "path", p.path, "port", p.port, "pid", cmd.Process.Pid)

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		if p.cmd == cmd {
			p.cmd = nil
		}
		p.mu.Unlock()
		p.logger.Info("Download engine exited", "error", err)
	}()

	return nil
}

// Running reports whether a spawned engine is still alive
func (p *Process) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cmd != nil
}

// Kill terminates the engine. Without a spawned process it falls back to killing every aria2c by name.
func (p *Process) Kill() error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()

	if cmd != nil {
		p.logger.Warn("Killing download engine", "pid", cmd.Process.Pid)
		if err := cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to kill download engine: %w", err)
		}
		return nil
	}

	if len(p.fallback) == 0 {
		return nil
	}

	p.logger.Warn("Killing download engine by name", "command", p.fallback)
	if err := exec.Command(p.fallback[0], p.fallback[1:]...).Run(); err != nil {
		return fmt.Errorf("failed to run %s: %w", p.fallback[0], err)
	}
	return nil
}
