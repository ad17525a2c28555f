package scanner

import (
	"github.com/looplab/fsm"
)

// State is a lifecycle state of the controller
type State string

const (
	StateIdle       State = "idle"
	StateAcquiring  State = "acquiring"
	StateScanning   State = "scanning"
	StateCompleting State = "completing"
	StateErroring   State = "erroring"
)

const (
	eventAcquire  = "acquire"
	eventScan     = "scan"
	eventComplete = "complete"
	eventFail     = "fail"
	eventReset    = "reset"
)

// newLifecycle builds the transition table. No callbacks are registered;
// all work happens in the controller outside the machine.
func newLifecycle() *fsm.FSM {
	idle := string(StateIdle)
	acquiring := string(StateAcquiring)
	scanning := string(StateScanning)
	completing := string(StateCompleting)
	erroring := string(StateErroring)

	return fsm.NewFSM(
		idle,
		fsm.Events{
			{Name: eventAcquire, Src: []string{idle}, Dst: acquiring},
			{Name: eventScan, Src: []string{acquiring}, Dst: scanning},
			{Name: eventComplete, Src: []string{scanning}, Dst: completing},
			{Name: eventFail, Src: []string{acquiring, scanning, completing}, Dst: erroring},
			{Name: eventReset, Src: []string{acquiring, scanning, completing, erroring}, Dst: idle},
		},
		fsm.Callbacks{},
	)
}
