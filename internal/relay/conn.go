package relay

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ehrlich-b/codesync/internal/logger"
	"github.com/ehrlich-b/codesync/internal/roomid"
	"github.com/ehrlich-b/codesync/internal/ws"
)

// peer is one client connection. user.RoomID is empty until a join succeeds.
type peer struct {
	conn *websocket.Conn
	user ws.RoomUser
}

func (p *peer) send(ctx context.Context, t ws.MsgType, replyTo string, payload any) {
	msg, err := ws.NewMessage(t, payload)
	if err != nil {
		logger.Warn("relay: build message", "type", t, "error", err)
		return
	}
	msg.ReplyTo = replyTo
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := p.conn.Write(wctx, websocket.MessageText, data); err != nil {
		logger.Debug("relay: write failed", "socket", p.user.SocketID, "error", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		logger.Warn("relay: websocket accept", "error", err)
		return
	}
	conn.SetReadLimit(readLimit)
	defer conn.CloseNow()

	// Writes to other peers must outlive this request's context.
	ctx := r.Context()
	p := &peer{conn: conn, user: ws.RoomUser{SocketID: uuid.NewString(), Status: "online"}}
	lim := rate.NewLimiter(s.MsgRate, s.MsgBurst)
	logger.Debug("relay: peer connected", "socket", p.user.SocketID)

	defer s.part(p)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			logger.Debug("relay: peer gone", "socket", p.user.SocketID, "error", err)
			return
		}
		if !lim.Allow() {
			p.send(ctx, ws.MsgError, "", ws.ErrorMsg{Message: "rate limited"})
			continue
		}

		var msg ws.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			p.send(ctx, ws.MsgError, "", ws.ErrorMsg{Message: "invalid message"})
			continue
		}

		switch msg.Type {
		case ws.MsgJoinRequest:
			s.handleJoin(ctx, p, &msg)
		default:
			p.send(ctx, ws.MsgError, msg.ID, ws.ErrorMsg{Message: "unknown message type: " + string(msg.Type)})
		}
	}
}

func (s *Server) handleJoin(ctx context.Context, p *peer, msg *ws.Message) {
	var req ws.JoinRequest
	if err := msg.ParsePayload(&req); err != nil {
		p.send(ctx, ws.MsgError, msg.ID, ws.ErrorMsg{Message: "invalid join request"})
		return
	}
	if err := roomid.Validate(req.Username, req.RoomID); err != nil {
		p.send(ctx, ws.MsgError, msg.ID, ws.ErrorMsg{Message: err.Error()})
		return
	}
	if p.user.RoomID == req.RoomID && p.user.Username == req.Username {
		// Already in; answer again without announcing twice.
		p.send(ctx, ws.MsgJoinAccepted, msg.ID, ws.JoinAccepted{User: p.user, Users: s.Rooms.Users(req.RoomID)})
		return
	}
	s.part(p)

	// p is in no room here, so nobody else reads p.user while it changes.
	p.user.Username = req.Username
	p.user.RoomID = req.RoomID
	others, ok := s.Rooms.join(req.RoomID, p)
	if !ok {
		p.user.Username = ""
		p.user.RoomID = ""
		p.send(ctx, ws.MsgUsernameExists, msg.ID, nil)
		return
	}
	logger.Info("relay: joined", "room", req.RoomID, "user", req.Username, "socket", p.user.SocketID)

	p.send(ctx, ws.MsgJoinAccepted, msg.ID, ws.JoinAccepted{User: p.user, Users: s.Rooms.Users(req.RoomID)})
	for _, o := range others {
		o.send(context.Background(), ws.MsgUserJoined, "", ws.UserJoined{User: p.user})
	}
}

// part removes p from its room, if any, and tells the others.
func (s *Server) part(p *peer) {
	if p.user.RoomID == "" {
		return
	}
	room := p.user.RoomID
	rest := s.Rooms.leave(room, p)
	left := p.user
	left.Status = "offline"
	p.user.RoomID = ""
	p.user.Username = ""
	logger.Info("relay: left", "room", room, "user", left.Username)
	for _, o := range rest {
		o.send(context.Background(), ws.MsgUserDisconnected, "", ws.UserDisconnected{User: left})
	}
}
