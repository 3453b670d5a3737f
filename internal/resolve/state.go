package resolve

// State is a step of the resolution state machine.
type State int

const (
	StateIdle State = iota
	StateSubmitted
	StateProcessing
	StateSucceeded
	StateFailed
	StateTimedOut
	StateCanceled
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateSubmitted:  "submitted",
	StateProcessing: "processing",
	StateSucceeded:  "succeeded",
	StateFailed:     "failed",
	StateTimedOut:   "timed_out",
	StateCanceled:   "canceled",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s >= StateSucceeded
}
