// Package session drives the room-session lifecycle: connecting, the join
// handshake, the one-time redirect into the room and recovery after a lost
// connection. Every other feature asks Session whether it may operate.
package session

import (
	"sync"

	"github.com/ehrlich-b/codesync/internal/logger"
	"github.com/ehrlich-b/codesync/internal/notify"
	"github.com/ehrlich-b/codesync/internal/profile"
	"github.com/ehrlich-b/codesync/internal/redirect"
	"github.com/ehrlich-b/codesync/internal/roomid"
	"github.com/ehrlich-b/codesync/internal/ws"
)

// Gateway is the connection surface the session needs. *ws.Gateway
// implements it.
type Gateway interface {
	Connect()
	Disconnect()
	Emit(t ws.MsgType, payload any) error
	On(event string, h ws.Handler) func()
	Once(event string, h ws.Handler) func()
	Connected() bool
	Epoch() uint64
}

// Navigator moves the user between the home form and the room view.
type Navigator interface {
	Navigate(r Route)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(Route)

func (f NavigatorFunc) Navigate(r Route) { f(r) }

type Options struct {
	Gateway   Gateway
	Profile   *profile.Store
	Redirect  *redirect.Guard
	Navigator Navigator
	Notifier  notify.Notifier

	// OnStatus, if set, is called after every status change, before the
	// change's effects run.
	OnStatus func(prev, next Status)
}

type joinKey struct {
	roomID string
	epoch  uint64
}

// Session owns the status of one user's room session. Events from the
// gateway, user calls and navigation are applied one at a time in arrival
// order; an event raised while another is being applied is queued behind it.
type Session struct {
	gw       Gateway
	profile  *profile.Store
	redirect *redirect.Guard
	nav      Navigator
	notifier notify.Notifier
	onStatus func(prev, next Status)

	qmu      sync.Mutex
	queue    []func()
	draining bool

	mu            sync.RWMutex
	status        Status
	users         []ws.RoomUser
	joining       profile.Profile // profile as validated by the last accepted submit
	attempt       uint64          // id of the join attempt a deferred emit belongs to
	pendingCancel func()
	emitted       map[joinKey]bool

	unsubscribe []func()
}

// New wires a session to its gateway. Call Close to detach it.
func New(opts Options) *Session {
	s := &Session{
		gw:       opts.Gateway,
		profile:  opts.Profile,
		redirect: opts.Redirect,
		nav:      opts.Navigator,
		notifier: opts.Notifier,
		onStatus: opts.OnStatus,
		emitted:  make(map[joinKey]bool),
	}
	if s.profile == nil {
		s.profile = profile.NewStore(profile.Profile{})
	}
	if s.redirect == nil {
		s.redirect = redirect.NewGuard(redirect.NewMemoryStore())
	}
	if s.nav == nil {
		s.nav = NavigatorFunc(func(Route) {})
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}

	s.unsubscribe = []func(){
		s.gw.On(ws.EventDisconnect, func(ev ws.Event) {
			s.dispatch(func() { s.step(Event{Kind: TransportDropped, Err: ev.Err}) })
		}),
		s.gw.On(ws.EventConnectFailed, func(ev ws.Event) {
			s.dispatch(func() { s.step(Event{Kind: TransportFailed, Err: ev.Err}) })
		}),
		s.gw.On(string(ws.MsgJoinAccepted), s.onJoinAccepted),
		s.gw.On(string(ws.MsgUsernameExists), func(ev ws.Event) {
			s.dispatch(func() {
				if s.step(Event{Kind: UsernameExists}) {
					s.forgetJoin(ev.Epoch)
				}
			})
		}),
		s.gw.On(string(ws.MsgUserJoined), s.onUserJoined),
		s.gw.On(string(ws.MsgUserDisconnected), s.onUserDisconnected),
		s.gw.On(string(ws.MsgError), func(ev ws.Event) {
			var p ws.ErrorMsg
			if err := ev.Msg.ParsePayload(&p); err == nil {
				logger.Warn("room server error", "message", p.Message)
			}
		}),
	}
	return s
}

// Close detaches the session from the gateway and drops any pending join.
func (s *Session) Close() {
	for _, u := range s.unsubscribe {
		u()
	}
	s.dispatch(s.cancelPending)
}

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// CanOperate reports whether room features (chat, workspace, presence) may run.
func (s *Session) CanOperate() bool {
	return s.Status() == Joined
}

// Users returns the room members known since the last accepted join.
func (s *Session) Users() []ws.RoomUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ws.RoomUser, len(s.users))
	copy(out, s.users)
	return out
}

func (s *Session) Profile() *profile.Store {
	return s.profile
}

// SubmitJoin validates the profile and, if valid, starts joining its room.
// A submit while a join is in flight is ignored.
func (s *Session) SubmitJoin() {
	s.dispatch(func() {
		p := s.profile.Get()
		s.step(Event{Kind: SubmitJoin, Err: roomid.Validate(p.Username, p.RoomID)})
	})
}

// RouteChanged is called by the navigation layer whenever the visible route
// settles.
func (s *Session) RouteChanged() {
	s.dispatch(func() { s.step(Event{Kind: RouteChange}) })
}

// Retry leaves ConnectionFailed and reconnects.
func (s *Session) Retry() {
	s.dispatch(func() { s.step(Event{Kind: Retry}) })
}

// OpenRoom handles direct entry into a room view. Without a username the
// user is sent home with the room id kept for the form; with one the
// profile is filled in and the join proceeds as if submitted. Nothing
// happens once the profile already has a username.
func (s *Session) OpenRoom(roomID, username string) {
	s.dispatch(func() {
		if s.profile.Get().Username != "" {
			return
		}
		if username == "" {
			s.nav.Navigate(HomeRoute(roomID))
			return
		}
		if roomID == "" {
			return
		}
		if err := s.profile.Set(profile.Profile{Username: username, RoomID: roomID}); err != nil {
			logger.Warn("open room", "room", roomID, "error", err)
			return
		}
		s.step(Event{Kind: SubmitJoin, Err: roomid.Validate(username, roomID)})
	})
}

// AdoptPendingRoomID pre-fills an empty room id, for example one carried
// home by OpenRoom. It never starts a join.
func (s *Session) AdoptPendingRoomID(roomID string) {
	s.dispatch(func() {
		if !s.profile.AdoptPendingRoomID(roomID) {
			return
		}
		if s.profile.Get().Username == "" {
			s.notifier.Notify(notify.LevelSuccess, roomid.ErrUsernameRequired.Error())
		}
	})
}

// GenerateRoomID puts a fresh room id into the profile.
func (s *Session) GenerateRoomID() (string, error) {
	id := roomid.Generate()
	if err := s.profile.SetField("roomId", id); err != nil {
		return "", err
	}
	s.notifier.Notify(notify.LevelSuccess, "Created a new Room Id")
	return id, nil
}

// dispatch runs fn after every event queued before it. The goroutine that
// finds the queue idle drains it, including anything fn itself enqueues.
func (s *Session) dispatch(fn func()) {
	s.qmu.Lock()
	s.queue = append(s.queue, fn)
	if s.draining {
		s.qmu.Unlock()
		return
	}
	s.draining = true
	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.qmu.Unlock()
		next()
		s.qmu.Lock()
	}
	s.draining = false
	s.qmu.Unlock()
}

func (s *Session) env() Env {
	set, err := s.redirect.IsSet()
	if err != nil {
		logger.Warn("redirect flag unreadable, treating as unset", "error", err)
	}
	return Env{
		Connected: s.gw.Connected(),
		Redirect:  set,
		Profile:   s.profile.Get(),
	}
}

// step applies one event and reports whether the status changed. Only called
// from inside dispatch.
func (s *Session) step(ev Event) bool {
	env := s.env()
	s.mu.Lock()
	prev := s.status
	next, effects := Transition(prev, ev, env)
	s.status = next
	if ev.Kind == SubmitJoin && prev != AttemptingJoin && next == AttemptingJoin {
		s.joining = env.Profile
	}
	if prev == Joined && next != Joined {
		s.users = nil
	}
	s.mu.Unlock()

	if next != prev {
		logger.Debug("session transition", "event", ev.Kind, "from", prev, "to", next)
		switch {
		case next == Joined:
			s.profile.Freeze()
		case prev == Joined:
			s.profile.Unfreeze()
		}
		if s.onStatus != nil {
			s.onStatus(prev, next)
		}
	}
	for _, e := range effects {
		s.apply(e)
	}
	return next != prev
}

func (s *Session) apply(e Effect) {
	switch e := e.(type) {
	case EffectConnect:
		s.gw.Connect()
	case EffectDisconnect:
		s.gw.Disconnect()
	case EffectEmitJoin:
		if e.Deferred {
			s.deferJoin()
		} else if !s.emitJoin(s.gw.Epoch()) {
			// Lost the connection between the check and the write.
			s.deferJoin()
			s.gw.Connect()
		}
	case EffectSetRedirect:
		if err := s.redirect.Mark(); err != nil {
			logger.Warn("set redirect flag", "error", err)
		}
	case EffectClearRedirect:
		if _, err := s.redirect.Consume(); err != nil {
			logger.Warn("clear redirect flag", "error", err)
		}
	case EffectNavigate:
		s.nav.Navigate(e.Route)
	case EffectNotify:
		s.notifier.Notify(e.Level, e.Msg)
	case EffectCancelPending:
		s.cancelPending()
	}
}

// deferJoin arranges for the join request to go out on the next connect, or
// at once when the gateway is already up. It must run before Connect. A newer
// attempt, a cancel or leaving AttemptingJoin makes it a no-op.
func (s *Session) deferJoin() {
	s.cancelPending()
	s.mu.Lock()
	s.attempt++
	id := s.attempt
	s.mu.Unlock()

	cancel := s.gw.Once(ws.EventConnect, func(ev ws.Event) {
		s.dispatch(func() {
			s.mu.Lock()
			live := s.attempt == id && s.status == AttemptingJoin
			if live {
				s.pendingCancel = nil
			}
			s.mu.Unlock()
			if !live {
				logger.Debug("dropping stale join", "attempt", id)
				return
			}
			s.emitJoin(ev.Epoch)
		})
	})

	s.mu.Lock()
	s.pendingCancel = cancel
	s.mu.Unlock()

	// The dial may have finished before the subscription existed.
	if s.gw.Connected() {
		s.cancelPending()
		if !s.emitJoin(s.gw.Epoch()) {
			s.deferJoin()
		}
	}
}

func (s *Session) cancelPending() {
	s.mu.Lock()
	s.attempt++
	cancel := s.pendingCancel
	s.pendingCancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// emitJoin sends the join request for the submitted profile unless one
// already went out for this room on this connection. It reports false when
// the request could not be written.
func (s *Session) emitJoin(epoch uint64) bool {
	s.mu.Lock()
	p := s.joining
	key := joinKey{roomID: p.RoomID, epoch: epoch}
	dup := s.emitted[key]
	s.mu.Unlock()
	if dup {
		logger.Debug("join already sent on this connection", "room", p.RoomID, "epoch", epoch)
		return true
	}

	if err := s.gw.Emit(ws.MsgJoinRequest, ws.JoinRequest{Username: p.Username, RoomID: p.RoomID}); err != nil {
		logger.Warn("join request not sent", "room", p.RoomID, "error", err)
		return false
	}
	s.mu.Lock()
	s.emitted[key] = true
	s.mu.Unlock()
	logger.Info("join requested", "room", p.RoomID, "user", p.Username, "epoch", epoch)
	return true
}

// forgetJoin clears the record of a join the server turned down, so a
// corrected profile can ask again on the same connection.
func (s *Session) forgetJoin(epoch uint64) {
	s.mu.Lock()
	delete(s.emitted, joinKey{roomID: s.joining.RoomID, epoch: epoch})
	s.mu.Unlock()
}

func (s *Session) onJoinAccepted(ev ws.Event) {
	var p ws.JoinAccepted
	if err := ev.Msg.ParsePayload(&p); err != nil {
		logger.Warn("bad join-accepted payload", "error", err)
	}
	s.dispatch(func() {
		s.step(Event{Kind: JoinAccepted})
		if s.Status() == Joined {
			s.mu.Lock()
			s.users = append([]ws.RoomUser(nil), p.Users...)
			s.mu.Unlock()
		}
		s.step(Event{Kind: RouteChange})
	})
}

func (s *Session) onUserJoined(ev ws.Event) {
	var p ws.UserJoined
	if err := ev.Msg.ParsePayload(&p); err != nil {
		logger.Warn("bad user-joined payload", "error", err)
		return
	}
	s.dispatch(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.status != Joined {
			return
		}
		for i, u := range s.users {
			if u.Username == p.User.Username {
				s.users[i] = p.User
				return
			}
		}
		s.users = append(s.users, p.User)
	})
}

func (s *Session) onUserDisconnected(ev ws.Event) {
	var p ws.UserDisconnected
	if err := ev.Msg.ParsePayload(&p); err != nil {
		logger.Warn("bad user-disconnected payload", "error", err)
		return
	}
	s.dispatch(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, u := range s.users {
			if u.Username == p.User.Username {
				s.users = append(s.users[:i:i], s.users[i+1:]...)
				return
			}
		}
	})
}
