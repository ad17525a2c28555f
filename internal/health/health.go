package health

import (
	"context"
	"sync"
	"time"

	"github.com/vzahanych/barcode-scanner/internal/logger"
	"github.com/vzahanych/barcode-scanner/internal/service"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check represents a health check
type Check struct {
	Name      string                 `json:"name"`
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Report represents the overall health report
type Report struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    time.Duration          `json:"uptime_ns"`
	Checks    map[string]Check       `json:"checks"`
	Services  []service.StatusReport `json:"services,omitempty"`
}

// Checker is an interface for health checkers
type Checker interface {
	Name() string
	Check(ctx context.Context) Check
}

// StatusSource reports the status of every registered service
type StatusSource interface {
	GetAllStatuses() []service.StatusReport
}

// Manager runs the registered checkers on demand
type Manager struct {
	logger       *logger.Logger
	checkers     []Checker
	services     StatusSource
	startTime    time.Time
	checkTimeout time.Duration
	mu           sync.RWMutex
}

// NewManager creates a new health check manager. services may be nil.
func NewManager(log *logger.Logger, services StatusSource) *Manager {
	return &Manager{
		logger:       log,
		services:     services,
		startTime:    time.Now(),
		checkTimeout: 2 * time.Second,
	}
}

// RegisterChecker registers a health checker
func (m *Manager) RegisterChecker(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
}

// Check performs all health checks. A service that is not running degrades
// the report; an unhealthy check makes it unhealthy.
func (m *Manager) Check(ctx context.Context) Report {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	report := Report{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Uptime:    time.Since(m.startTime),
		Checks:    make(map[string]Check, len(checkers)),
	}

	for _, checker := range checkers {
		checkCtx, cancel := context.WithTimeout(ctx, m.checkTimeout)
		check := checker.Check(checkCtx)
		cancel()

		report.Checks[check.Name] = check
		report.Status = worst(report.Status, check.Status)
		if check.Status != StatusHealthy {
			m.logger.Debug("Health check not healthy", "check", check.Name, "status", check.Status, "message", check.Message)
		}
	}

	if m.services != nil {
		report.Services = m.services.GetAllStatuses()
		for _, svc := range report.Services {
			if svc.Status != service.StatusRunning {
				report.Status = worst(report.Status, StatusDegraded)
			}
		}
	}

	return report
}

func worst(a, b Status) Status {
	rank := func(s Status) int {
		switch s {
		case StatusUnhealthy:
			return 2
		case StatusDegraded:
			return 1
		}
		return 0
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
