package session

// State is the local client's view of the call attempt. Transitions are
// monotonic toward StateTerminated; nothing ever re-enters StateIdle short
// of a full teardown and a fresh session.
type State int32

const (
	StateIdle State = iota
	StateAwaitingMedia
	StateJoining
	StateNegotiating
	StateConnected
	StateDisconnected
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingMedia:
		return "awaiting-media"
	case StateJoining:
		return "joining"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool {
	return s == StateTerminated
}
