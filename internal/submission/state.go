package submission

// State is a step of the submission state machine.
type State int

const (
	Idle State = iota
	Validating
	Enriching
	Serializing
	Submitting
	Redirecting
	Failed
)

var stateNames = [...]string{
	Idle:        "idle",
	Validating:  "validating",
	Enriching:   "enriching",
	Serializing: "serializing",
	Submitting:  "submitting",
	Redirecting: "redirecting",
	Failed:      "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ProgressEvent reports a state transition.
type ProgressEvent struct {
	State   State  `json:"state"`
	Message string `json:"message"`
	Content any    `json:"content,omitempty"`
}

// ProgressCallback is called on every state transition.
type ProgressCallback func(event ProgressEvent)
