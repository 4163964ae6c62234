package worker

// State is the worker loop's current phase.
type State int32

const (
	StateIdle        State = iota // created, not started
	StateWaiting                  // blocked on wake, poll timer or stop
	StateDraining                 // dequeuing the next request
	StateDispatching              // inside Interface.Work
	StateStopped                  // loop has exited
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateDraining:
		return "draining"
	case StateDispatching:
		return "dispatching"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
