package session

// Status is where the local user stands with respect to the room.
type Status int

const (
	Disconnected Status = iota
	AttemptingJoin
	Joined
	ConnectionFailed
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case AttemptingJoin:
		return "attempting-join"
	case Joined:
		return "joined"
	case ConnectionFailed:
		return "connection-failed"
	default:
		return "unknown"
	}
}
