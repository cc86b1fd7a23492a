package exporter

// State is a step of an export invocation
type State int

const (
	StateIdle State = iota
	StateValidating
	StateRendering
	StateWaitingReady
	StateExtracting
	StateCollected
	StateInstanceFailed
	StateSerializing
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:           "idle",
	StateValidating:     "validating",
	StateRendering:      "rendering",
	StateWaitingReady:   "waiting_ready",
	StateExtracting:     "extracting",
	StateCollected:      "collected",
	StateInstanceFailed: "instance_failed",
	StateSerializing:    "serializing",
	StateDone:           "done",
	StateFailed:         "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition can follow s
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
