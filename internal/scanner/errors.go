package scanner

import (
	"errors"

	"github.com/vzahanych/barcode-scanner/internal/camera"
)

// ErrorKind is the failure reported to onError
type ErrorKind string

const (
	PermissionDenied         ErrorKind = "permission_denied"
	DeviceNotFound           ErrorKind = "device_not_found"
	DeviceUnavailable        ErrorKind = "device_unavailable"
	ConstraintsUnsatisfiable ErrorKind = "constraints_unsatisfiable"
	// DecoderUnavailable means neither decoding strategy could be started
	DecoderUnavailable ErrorKind = "decoder_unavailable"

	// AccelerationInitFailed and DecodeTransientFailure are recovered inside
	// a session and only appear in logs.
	AccelerationInitFailed ErrorKind = "acceleration_init_failed"
	DecodeTransientFailure ErrorKind = "decode_transient_failure"
)

var (
	// ErrStopped is returned by Activate after the controller has been stopped
	ErrStopped = errors.New("scanner stopped")
	// ErrTorchUnavailable is returned by ToggleTorch when there is no torch to switch
	ErrTorchUnavailable = errors.New("torch unavailable")
)

// Message returns a short human-readable status for a failure
func (k ErrorKind) Message() string {
	switch k {
	case PermissionDenied:
		return "Camera access was denied"
	case DeviceNotFound:
		return "No camera was found"
	case DeviceUnavailable:
		return "The camera is in use or not responding"
	case ConstraintsUnsatisfiable:
		return "The camera does not support the required resolution"
	case DecoderUnavailable:
		return "Barcode decoding is not available"
	}
	return "Scanning failed"
}

// kindFromAcquisition maps a camera acquisition failure onto an ErrorKind
func kindFromAcquisition(err error) ErrorKind {
	switch camera.KindOf(err) {
	case camera.PermissionDenied:
		return PermissionDenied
	case camera.DeviceNotFound:
		return DeviceNotFound
	case camera.ConstraintsUnsatisfiable:
		return ConstraintsUnsatisfiable
	}
	return DeviceUnavailable
}
