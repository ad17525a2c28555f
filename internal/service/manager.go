package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vzahanych/barcode-scanner/internal/logger"
)

// Manager manages the lifecycle of all services
type Manager struct {
	logger      *logger.Logger
	services    []Service
	statuses    map[string]*ServiceStatus
	eventBus    *EventBus
	mu          sync.RWMutex
	started     []Service
	stopTimeout time.Duration
}

// Service represents a service that can be started and stopped
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Name() string
}

// ServiceWithEvents is a service that can publish events
type ServiceWithEvents interface {
	Service
	SetEventBus(bus *EventBus)
}

// ServiceWithStatus exposes its own status tracker; the manager reuses it
// instead of allocating one
type ServiceWithStatus interface {
	Service
	GetStatus() *ServiceStatus
}

// NewManager creates a new service manager
func NewManager(log *logger.Logger) *Manager {
	return &Manager{
		logger:      log,
		statuses:    make(map[string]*ServiceStatus),
		eventBus:    NewEventBus(100),
		stopTimeout: 10 * time.Second,
	}
}

// GetEventBus returns the event bus for inter-service communication
func (m *Manager) GetEventBus() *EventBus {
	return m.eventBus
}

// Register registers a service with the manager
func (m *Manager) Register(svc Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, svc)

	if withStatus, ok := svc.(ServiceWithStatus); ok {
		m.statuses[svc.Name()] = withStatus.GetStatus()
	} else {
		m.statuses[svc.Name()] = NewServiceStatus(svc.Name())
	}

	if withEvents, ok := svc.(ServiceWithEvents); ok {
		withEvents.SetEventBus(m.eventBus)
	}
}

// Start starts services in registration order. The first failure stops the
// services already started and is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Starting services", "count", len(m.services))

	for _, svc := range m.services {
		status := m.statuses[svc.Name()]
		status.SetStatus(StatusStarting)

		if err := svc.Start(ctx); err != nil {
			status.SetError(err)
			m.logger.Error("Service failed to start", "service", svc.Name(), "error", err)
			m.eventBus.Publish(Event{
				Type:   EventTypeServiceError,
				Source: svc.Name(),
				Data:   map[string]interface{}{"error": err.Error()},
			})
			m.stopServices(ctx, m.takeStarted())
			return fmt.Errorf("failed to start %s: %w", svc.Name(), err)
		}

		status.SetStatus(StatusRunning)
		m.started = append(m.started, svc)
		m.logger.Info("Service started", "service", svc.Name())
		m.eventBus.Publish(Event{
			Type:   EventTypeServiceStarted,
			Source: "manager",
			Data:   map[string]interface{}{"service": svc.Name()},
		})
	}

	return nil
}

// Shutdown stops services in reverse start order, then closes the event bus
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Shutting down services", "count", len(m.started))

	started := m.takeStarted()
	done := make(chan struct{})
	go func() {
		m.stopServices(ctx, started)
		close(done)
	}()

	select {
	case <-done:
		m.eventBus.Close()
		m.logger.Info("All services stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

func (m *Manager) takeStarted() []Service {
	started := m.started
	m.started = nil
	return started
}

// stopServices stops the given services in reverse order. Statuses carry
// their own locks so this may outlive the caller's hold on m.mu.
func (m *Manager) stopServices(ctx context.Context, started []Service) {
	for i := len(started) - 1; i >= 0; i-- {
		svc := started[i]
		status := m.statuses[svc.Name()]
		status.SetStatus(StatusStopping)

		stopCtx, cancel := context.WithTimeout(ctx, m.stopTimeout)
		if err := svc.Stop(stopCtx); err != nil {
			status.SetError(err)
			m.logger.Error("Error stopping service", "service", svc.Name(), "error", err)
		} else {
			status.SetStatus(StatusStopped)
			m.logger.Info("Service stopped", "service", svc.Name())
		}
		cancel()

		m.eventBus.Publish(Event{
			Type:   EventTypeServiceStopped,
			Source: "manager",
			Data:   map[string]interface{}{"service": svc.Name()},
		})
	}
}

// GetServiceCount returns the number of registered services
func (m *Manager) GetServiceCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.services)
}

// GetServiceStatus returns the status of a service
func (m *Manager) GetServiceStatus(serviceName string) *ServiceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statuses[serviceName]
}

// GetAllStatuses returns a report for every registered service
func (m *Manager) GetAllStatuses() []StatusReport {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reports := make([]StatusReport, 0, len(m.services))
	for _, svc := range m.services {
		reports = append(reports, m.statuses[svc.Name()].Report())
	}
	return reports
}
