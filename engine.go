package authflow

import (
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/authflow/internal/audit"
	"github.com/MrEthical07/authflow/internal/messages"
	"github.com/MrEthical07/authflow/jwt"
)

// Engine is the client-side authentication coordinator. It owns one request
// Machine shared by Login, Register and the password-reset steps, the
// logged-in session, and the ResetController.
//
// Build an Engine with New().…Build(). All methods are safe for concurrent
// use; see Machine for the latest-wins contract.
type Engine struct {
	config  Config
	service AuthService
	tokens  *jwt.Manager
	catalog *messages.Catalog
	logger  *slog.Logger
	metrics *Metrics
	audit   *audit.Dispatcher
	now     func() time.Time

	machine *Machine
	reset   *ResetController

	mu      sync.RWMutex
	session *SessionInfo
}

// Close stops the audit dispatcher, flushing buffered events, and terminates
// every open subscription.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.machine != nil {
		e.machine.closeAll()
	}
}

// Machine returns the request channel the presentation layer observes.
func (e *Engine) Machine() *Machine {
	return e.machine
}

// State is shorthand for Machine().Current().
func (e *Engine) State() RequestState {
	return e.machine.Current()
}

// Subscribe is shorthand for Machine().Subscribe().
func (e *Engine) Subscribe() *Subscription {
	return e.machine.Subscribe()
}

// TakeResult is shorthand for Machine().TakeResult().
func (e *Engine) TakeResult() (Outcome, bool) {
	return e.machine.TakeResult()
}

// PasswordReset returns the reset controller bound to this engine.
func (e *Engine) PasswordReset() *ResetController {
	return e.reset
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return emptySnapshot()
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

func (e *Engine) text(id string, data map[string]any) string {
	return e.catalog.Text(id, data)
}
