// Package probe decides whether a platform-native barcode detector is usable.
package probe

import (
	"os/exec"
	"strings"
)

// Mode values accepted in Environment.Mode
const (
	ModeAuto = "auto"
	ModeOn   = "on"
	ModeOff  = "off"
)

// Environment describes what the host exposes. It holds no resources.
type Environment struct {
	Mode         string
	DetectorPath string
	LookPath     func(file string) (string, error)
}

// HostEnvironment returns an Environment backed by the process PATH
func HostEnvironment(mode, detectorPath string) Environment {
	return Environment{
		Mode:         mode,
		DetectorPath: detectorPath,
		LookPath:     exec.LookPath,
	}
}

// Accelerated reports whether an accelerated detector is present. "on" and
// "off" force the answer; "auto" looks the detector binary up.
func Accelerated(env Environment) bool {
	switch strings.ToLower(env.Mode) {
	case ModeOff:
		return false
	case ModeOn:
		return true
	}

	if env.DetectorPath == "" || env.LookPath == nil {
		return false
	}
	_, err := env.LookPath(env.DetectorPath)
	return err == nil
}
