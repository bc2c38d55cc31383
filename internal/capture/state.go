package capture

// State is the phase the controller is in.
type State int32

const (
	Idle State = iota
	Capturing
	Detecting
	Measuring
	Rendering
	Cleanup
	Stopped
)

var stateNames = [...]string{
	Idle:      "idle",
	Capturing: "capturing",
	Detecting: "detecting",
	Measuring: "measuring",
	Rendering: "rendering",
	Cleanup:   "cleanup",
	Stopped:   "stopped",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
