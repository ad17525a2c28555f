package camera

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"syscall"
)

// ErrorKind classifies acquisition failures
type ErrorKind string

const (
	PermissionDenied         ErrorKind = "permission_denied"
	DeviceNotFound           ErrorKind = "device_not_found"
	DeviceUnavailable        ErrorKind = "device_unavailable"
	ConstraintsUnsatisfiable ErrorKind = "constraints_unsatisfiable"
)

// AcquisitionError is returned by Manager.Acquire
type AcquisitionError struct {
	Kind ErrorKind
	Err  error
}

func (e *AcquisitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("camera acquisition failed: %s", e.Kind)
	}
	return fmt.Sprintf("camera acquisition failed: %s: %v", e.Kind, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of an acquisition error, or "" if err is not one
func KindOf(err error) ErrorKind {
	var acqErr *AcquisitionError
	if errors.As(err, &acqErr) {
		return acqErr.Kind
	}
	return ""
}

func newAcquisitionError(kind ErrorKind, err error) *AcquisitionError {
	return &AcquisitionError{Kind: kind, Err: err}
}

// classify maps a back-end error onto an ErrorKind
func classify(err error) *AcquisitionError {
	var acqErr *AcquisitionError
	if errors.As(err, &acqErr) {
		return acqErr
	}

	switch {
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return newAcquisitionError(PermissionDenied, err)
	case errors.Is(err, syscall.EBUSY):
		return newAcquisitionError(DeviceUnavailable, err)
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENODEV), errors.Is(err, syscall.ENXIO):
		return newAcquisitionError(DeviceNotFound, err)
	}

	// drivers and subprocesses report errors as text only
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission denied"), strings.Contains(msg, "operation not permitted"):
		return newAcquisitionError(PermissionDenied, err)
	case strings.Contains(msg, "device or resource busy"), strings.Contains(msg, "in use"):
		return newAcquisitionError(DeviceUnavailable, err)
	case strings.Contains(msg, "failed to find the best driver"),
		strings.Contains(msg, "constraint"),
		strings.Contains(msg, "invalid argument"):
		return newAcquisitionError(ConstraintsUnsatisfiable, err)
	case strings.Contains(msg, "no such file"),
		strings.Contains(msg, "no such device"),
		strings.Contains(msg, "not found"):
		return newAcquisitionError(DeviceNotFound, err)
	}
	return newAcquisitionError(DeviceUnavailable, err)
}
