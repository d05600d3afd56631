package session

import (
	"encoding/json"
	"sync"

	"github.com/ehrlich-b/codesync/internal/ws"
)

type emitted struct {
	Type    ws.MsgType
	Payload ws.JoinRequest
	Epoch   uint64
}

type sub struct {
	id   int
	fn   ws.Handler
	once bool
}

// fakeGateway records calls and lets tests play the server. Connect only
// counts; establish completes a dial.
type fakeGateway struct {
	mu          sync.Mutex
	connected   bool
	epoch       uint64
	connects    int
	disconnects int
	emits       []emitted
	subs        map[string][]*sub
	nextID      int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{subs: make(map[string][]*sub)}
}

func (g *fakeGateway) Connect() {
	g.mu.Lock()
	g.connects++
	g.mu.Unlock()
}

func (g *fakeGateway) Disconnect() {
	g.mu.Lock()
	g.disconnects++
	was := g.connected
	g.connected = false
	epoch := g.epoch
	g.mu.Unlock()
	if was {
		g.fire(ws.Event{Name: ws.EventDisconnect, Epoch: epoch, Reason: "client"})
	}
}

func (g *fakeGateway) Emit(t ws.MsgType, payload any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.connected {
		return ws.ErrNotConnected
	}
	req, _ := payload.(ws.JoinRequest)
	g.emits = append(g.emits, emitted{Type: t, Payload: req, Epoch: g.epoch})
	return nil
}

func (g *fakeGateway) On(event string, h ws.Handler) func() {
	return g.subscribe(event, h, false)
}

func (g *fakeGateway) Once(event string, h ws.Handler) func() {
	return g.subscribe(event, h, true)
}

func (g *fakeGateway) subscribe(event string, h ws.Handler, once bool) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	id := g.nextID
	g.subs[event] = append(g.subs[event], &sub{id: id, fn: h, once: once})
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		list := g.subs[event]
		for i, s := range list {
			if s.id == id {
				g.subs[event] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

func (g *fakeGateway) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

func (g *fakeGateway) Epoch() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.epoch
}

func (g *fakeGateway) fire(ev ws.Event) {
	g.mu.Lock()
	var run []ws.Handler
	var keep []*sub
	for _, s := range g.subs[ev.Name] {
		run = append(run, s.fn)
		if !s.once {
			keep = append(keep, s)
		}
	}
	g.subs[ev.Name] = keep
	g.mu.Unlock()
	for _, h := range run {
		h(ev)
	}
}

// establish completes a dial and starts a new epoch.
func (g *fakeGateway) establish() {
	g.mu.Lock()
	g.connected = true
	g.epoch++
	epoch := g.epoch
	g.mu.Unlock()
	g.fire(ws.Event{Name: ws.EventConnect, Epoch: epoch})
}

// drop loses the connection without the client asking.
func (g *fakeGateway) drop() {
	g.mu.Lock()
	was := g.connected
	g.connected = false
	epoch := g.epoch
	g.mu.Unlock()
	if was {
		g.fire(ws.Event{Name: ws.EventDisconnect, Epoch: epoch, Reason: "transport"})
	}
}

func (g *fakeGateway) fail() {
	g.mu.Lock()
	g.connected = false
	epoch := g.epoch
	g.mu.Unlock()
	g.fire(ws.Event{Name: ws.EventConnectFailed, Epoch: epoch, Err: ws.ErrReconnectExhausted})
}

// send delivers a server message.
func (g *fakeGateway) send(t ws.MsgType, payload any) {
	data, _ := json.Marshal(payload)
	g.fire(ws.Event{
		Name:  string(t),
		Epoch: g.Epoch(),
		Msg:   &ws.Message{Type: t, Payload: data},
	})
}

func (g *fakeGateway) joins() []emitted {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []emitted
	for _, e := range g.emits {
		if e.Type == ws.MsgJoinRequest {
			out = append(out, e)
		}
	}
	return out
}

func (g *fakeGateway) counts() (connects, disconnects int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connects, g.disconnects
}

func (g *fakeGateway) pending(event string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, s := range g.subs[event] {
		if s.once {
			n++
		}
	}
	return n
}
