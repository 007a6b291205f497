package broker

// State describes the connection lifecycle. While a pipeline is alive the
// states cycle Disconnected → Connecting → Connected → Disconnected; Closed
// is terminal and reached only on explicit shutdown.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
