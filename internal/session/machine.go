package session

import (
	"github.com/ehrlich-b/codesync/internal/notify"
	"github.com/ehrlich-b/codesync/internal/profile"
)

// EventKind is an input to the transition table.
type EventKind int

const (
	SubmitJoin EventKind = iota
	JoinAccepted
	UsernameExists
	RouteChange
	TransportFailed
	TransportDropped
	Retry
)

func (k EventKind) String() string {
	switch k {
	case SubmitJoin:
		return "submit-join"
	case JoinAccepted:
		return "join-accepted"
	case UsernameExists:
		return "username-exists"
	case RouteChange:
		return "route-change"
	case TransportFailed:
		return "transport-failed"
	case TransportDropped:
		return "transport-dropped"
	case Retry:
		return "retry"
	default:
		return "unknown"
	}
}

// Event is one input. Err carries the validation failure for SubmitJoin.
type Event struct {
	Kind EventKind
	Err  error
}

// Env is the outside state a transition may depend on.
type Env struct {
	Connected bool
	Redirect  bool
	Profile   profile.Profile
}

// Effect is a side effect requested by Transition and carried out by Session.
type Effect interface {
	isEffect()
}

type (
	EffectConnect    struct{}
	EffectDisconnect struct{}
	// EffectEmitJoin sends the join request now, or on the next connect when
	// Deferred.
	EffectEmitJoin      struct{ Deferred bool }
	EffectSetRedirect   struct{}
	EffectClearRedirect struct{}
	EffectNavigate      struct{ Route Route }
	EffectNotify        struct {
		Level notify.Level
		Msg   string
	}
	// EffectCancelPending drops any deferred join still waiting for a connect.
	EffectCancelPending struct{}
)

func (EffectConnect) isEffect()       {}
func (EffectDisconnect) isEffect()    {}
func (EffectEmitJoin) isEffect()      {}
func (EffectSetRedirect) isEffect()   {}
func (EffectClearRedirect) isEffect() {}
func (EffectNavigate) isEffect()      {}
func (EffectNotify) isEffect()        {}
func (EffectCancelPending) isEffect() {}

// Route is a navigation target.
type Route struct {
	Path     string
	RoomID   string
	Username string
}

func HomeRoute(pendingRoomID string) Route {
	return Route{Path: "/", RoomID: pendingRoomID}
}

func RoomRoute(p profile.Profile) Route {
	return Route{Path: "/editor/" + p.RoomID, RoomID: p.RoomID, Username: p.Username}
}

// User-facing notices.
const (
	MsgJoining          = "Joining room..."
	MsgConnecting       = "Connecting to server..."
	MsgJoined           = "Joined the room"
	MsgUsernameTaken    = "The username is already taken"
	MsgConnectionFailed = "Failed to connect to the server"
	MsgConnectionLost   = "Connection to the server was lost"
)

func notice(level notify.Level, msg string) EffectNotify {
	return EffectNotify{Level: level, Msg: msg}
}

// Transition is the whole session state machine. It has no side effects.
func Transition(s Status, ev Event, env Env) (Status, []Effect) {
	switch ev.Kind {
	case SubmitJoin:
		if s != Disconnected {
			return s, nil
		}
		if ev.Err != nil {
			return s, []Effect{notice(notify.LevelError, ev.Err.Error())}
		}
		if env.Connected {
			return AttemptingJoin, []Effect{
				notice(notify.LevelLoading, MsgJoining),
				EffectEmitJoin{},
			}
		}
		return AttemptingJoin, []Effect{
			notice(notify.LevelLoading, MsgJoining),
			notice(notify.LevelLoading, MsgConnecting),
			EffectEmitJoin{Deferred: true},
			EffectConnect{},
		}

	case JoinAccepted:
		if s != AttemptingJoin {
			return s, nil
		}
		return Joined, []Effect{notice(notify.LevelSuccess, MsgJoined)}

	case UsernameExists:
		if s != AttemptingJoin {
			return s, nil
		}
		return Disconnected, []Effect{
			EffectCancelPending{},
			notice(notify.LevelError, MsgUsernameTaken),
		}

	case RouteChange:
		switch {
		case s == Disconnected && !env.Connected:
			return s, []Effect{EffectConnect{}}
		case s == Joined && !env.Redirect:
			return s, []Effect{EffectSetRedirect{}, EffectNavigate{Route: RoomRoute(env.Profile)}}
		case s == Joined && env.Redirect:
			// Returning to an already-redirected session forces a fresh
			// connection; the server then sees a new socket for this user.
			return Disconnected, []Effect{EffectClearRedirect{}, EffectDisconnect{}, EffectConnect{}}
		}
		return s, nil

	case TransportFailed:
		if s == ConnectionFailed {
			return s, nil
		}
		return ConnectionFailed, []Effect{
			EffectCancelPending{},
			notice(notify.LevelError, MsgConnectionFailed),
		}

	case TransportDropped:
		switch s {
		case Disconnected:
			if !env.Connected {
				return s, []Effect{EffectConnect{}}
			}
		case AttemptingJoin:
			// The server forgot the request along with the socket; ask again
			// once the gateway is back.
			return s, []Effect{EffectEmitJoin{Deferred: true}}
		case Joined:
			return Disconnected, []Effect{
				notice(notify.LevelError, MsgConnectionLost),
				EffectConnect{},
			}
		}
		return s, nil

	case Retry:
		if s != ConnectionFailed {
			return s, nil
		}
		if env.Connected {
			return Disconnected, nil
		}
		return Disconnected, []Effect{EffectConnect{}}
	}
	return s, nil
}
