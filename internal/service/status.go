package service

import (
	"sync"
	"time"
)

// Status represents the state of a service
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// ServiceStatus tracks the lifecycle of one service. A service moves through
// it on every start and stop, so the counters survive restarts.
type ServiceStatus struct {
	mu        sync.RWMutex
	name      string
	status    Status
	since     time.Time
	startedAt time.Time
	err       error
	starts    int
	errors    int
}

// StatusReport is a point-in-time copy of a ServiceStatus, safe to serialize
type StatusReport struct {
	Name   string        `json:"name"`
	Status Status        `json:"status"`
	Since  time.Time     `json:"since"`
	Uptime time.Duration `json:"uptime_ns"`
	Starts int           `json:"starts"`
	Errors int           `json:"errors"`
	Error  string        `json:"error,omitempty"`
}

// NewServiceStatus creates a stopped status for the named service
func NewServiceStatus(name string) *ServiceStatus {
	return &ServiceStatus{
		name:   name,
		status: StatusStopped,
		since:  time.Now(),
	}
}

// Name returns the service name
func (ss *ServiceStatus) Name() string {
	return ss.name
}

// SetStatus records a transition. Entering StatusRunning clears the last
// error and restarts the uptime clock.
func (ss *ServiceStatus) SetStatus(status Status) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	now := time.Now()
	if status == StatusRunning && ss.status != StatusRunning {
		ss.startedAt = now
		ss.starts++
		ss.err = nil
	}
	if status != ss.status {
		ss.since = now
	}
	ss.status = status
}

// SetError moves the service into StatusError
func (ss *ServiceStatus) SetError(err error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.status != StatusError {
		ss.since = time.Now()
	}
	ss.status = StatusError
	ss.err = err
	ss.errors++
}

// GetStatus returns the current status
func (ss *ServiceStatus) GetStatus() Status {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.status
}

// GetError returns the error recorded by the last SetError, if the service
// has not been running since
func (ss *ServiceStatus) GetError() error {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.err
}

// IsRunning returns true if the service is running
func (ss *ServiceStatus) IsRunning() bool {
	return ss.GetStatus() == StatusRunning
}

// Uptime is the time since the service last entered StatusRunning, or zero
// when it is not running
func (ss *ServiceStatus) Uptime() time.Duration {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.uptimeLocked()
}

func (ss *ServiceStatus) uptimeLocked() time.Duration {
	if ss.status != StatusRunning || ss.startedAt.IsZero() {
		return 0
	}
	return time.Since(ss.startedAt)
}

// Report returns a serializable snapshot
func (ss *ServiceStatus) Report() StatusReport {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	r := StatusReport{
		Name:   ss.name,
		Status: ss.status,
		Since:  ss.since,
		Uptime: ss.uptimeLocked(),
		Starts: ss.starts,
		Errors: ss.errors,
	}
	if ss.err != nil {
		r.Error = ss.err.Error()
	}
	return r
}
