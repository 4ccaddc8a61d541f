package workflow

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"letterpod/internal/config"
	"letterpod/internal/logging"
	"letterpod/internal/notifications"
	"letterpod/internal/services"
	"letterpod/internal/stage"
)

// ErrBusy reports a run request while another run is active in this process.
var ErrBusy = fmt.Errorf("%w: a run is already active", services.ErrConflict)

// Manager runs the pipeline one run at a time.
type Manager struct {
	c      Collaborators
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	running bool
	state   stage.Name
	current string
	last    *RunSummary
}

// NewManager constructs a manager. A nil notifier publishes nothing.
func NewManager(c Collaborators, opts Options, logger *slog.Logger) *Manager {
	if c.Notifier == nil {
		c.Notifier = notifications.NewService(nil)
	}
	return &Manager{
		c:      c,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "workflow"),
		now:    time.Now,
		state:  stage.Idle,
	}
}

// OptionsFromConfig derives run options from configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Window:      cfg.Window(),
		TargetWords: cfg.TargetWords(),
		Policy:      cfg.RetryPolicy(),
	}
}

// Busy reports whether a run is active.
func (m *Manager) Busy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Manager) begin(runID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return false
	}
	m.running = true
	m.current = runID
	m.state = stage.Idle
	return true
}

func (m *Manager) finish(summary RunSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	m.current = ""
	m.state = stage.Idle
	last := summary
	m.last = &last
}

func (m *Manager) currentState() stage.Name {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}
