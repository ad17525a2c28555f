package service

import (
	"github.com/vzahanych/barcode-scanner/internal/logger"
)

// ServiceBase is embedded by every long-running component. It carries the
// service name, its status tracker, the optional event bus and a logger
// already scoped with the service name.
type ServiceBase struct {
	name   string
	log    *logger.Logger
	bus    *EventBus
	status *ServiceStatus
}

// NewServiceBase creates a stopped service base
func NewServiceBase(name string, log *logger.Logger) *ServiceBase {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ServiceBase{
		name:   name,
		log:    log.With("service", name),
		status: NewServiceStatus(name),
	}
}

// Name returns the service name
func (sb *ServiceBase) Name() string {
	return sb.name
}

// SetEventBus is called by Manager.Register
func (sb *ServiceBase) SetEventBus(bus *EventBus) {
	sb.bus = bus
}

// GetEventBus returns the attached bus, or nil
func (sb *ServiceBase) GetEventBus() *EventBus {
	return sb.bus
}

// GetStatus returns the status tracker shared with the Manager
func (sb *ServiceBase) GetStatus() *ServiceStatus {
	return sb.status
}

// PublishEvent is a no-op until a bus is attached
func (sb *ServiceBase) PublishEvent(eventType EventType, data map[string]interface{}) {
	if sb.bus == nil {
		return
	}
	sb.bus.Publish(Event{
		Type:   eventType,
		Source: sb.name,
		Data:   data,
	})
}

func (sb *ServiceBase) LogInfo(msg string, fields ...interface{}) {
	sb.log.Info(msg, fields...)
}

func (sb *ServiceBase) LogWarn(msg string, fields ...interface{}) {
	sb.log.Warn(msg, fields...)
}

// LogError logs msg with err under the "error" key
func (sb *ServiceBase) LogError(msg string, err error, fields ...interface{}) {
	sb.log.Error(msg, append([]interface{}{"error", err}, fields...)...)
}

func (sb *ServiceBase) LogDebug(msg string, fields ...interface{}) {
	sb.log.Debug(msg, fields...)
}
