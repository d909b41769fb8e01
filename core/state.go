package core

// State is a stage of the App lifecycle. An App moves strictly forward
// through the states and never revisits one.
type State int32

const (
	StateIdle State = iota
	StatePreparing
	StateRunning
	StateShuttingDown
	StateDrained
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateDrained:
		return "drained"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
