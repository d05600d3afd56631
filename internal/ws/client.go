package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/ehrlich-b/codesync/internal/logger"
)

var (
	// ErrAuthRejected is returned when the server rejects the WebSocket handshake with 401.
	ErrAuthRejected = errors.New("server rejected connection (401)")
	// ErrNotConnected is returned by Emit when there is no live connection. The message is dropped.
	ErrNotConnected = errors.New("not connected")
	// ErrReconnectExhausted is reported with connect_failed after too many failed dials.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
	readLimit    = 512 * 1024

	DefaultReconnectAttempts = 5
	DefaultBaseDelay         = time.Second
	DefaultMaxDelay          = 10 * time.Second
)

// Event is delivered to subscribers. Lifecycle events carry Epoch and, for
// disconnect/connect_failed, Err. Server messages carry Msg.
type Event struct {
	Name   string
	Epoch  uint64
	Msg    *Message
	Err    error
	Reason string // disconnect only: "client" or "transport"
}

type Handler func(Event)

type subscription struct {
	id   uint64
	fn   Handler
	once bool
}

// Gateway owns the single room connection. Other components talk to the
// server only through Connect, Disconnect, Emit, On and Once.
type Gateway struct {
	URL    string
	Header http.Header

	ReconnectAttempts int // consecutive failed dials before connect_failed
	BaseDelay         time.Duration
	MaxDelay          time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	running   bool   // a run loop is dialing or connected
	gen       uint64 // bumps on every Connect so stale loops can tell they were replaced
	epoch     uint64 // bumps on every successful dial
	cancel    context.CancelFunc
	handlers  map[string][]*subscription
	nextSubID uint64
}

func NewGateway(url string) *Gateway {
	return &Gateway{
		URL:               url,
		ReconnectAttempts: DefaultReconnectAttempts,
		BaseDelay:         DefaultBaseDelay,
		MaxDelay:          DefaultMaxDelay,
	}
}

// Connect starts establishing the connection in the background. It is a no-op
// while connected or while a dial is already in flight. Completion is signalled
// by a connect event.
func (g *Gateway) Connect() {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	g.running = true
	g.cancel = cancel
	g.gen++
	gen := g.gen
	g.mu.Unlock()

	go g.run(ctx, gen)
}

// Disconnect closes the connection and stops reconnecting. Safe to call when
// already disconnected.
func (g *Gateway) Disconnect() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	g.cancel()
	conn := g.conn
	g.conn = nil
	epoch := g.epoch
	g.mu.Unlock()

	if conn == nil {
		return
	}
	conn.Close(websocket.StatusNormalClosure, "client disconnect")
	g.fire(Event{Name: EventDisconnect, Epoch: epoch, Reason: "client"})
}

// Connected reports whether a connection is currently open.
func (g *Gateway) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conn != nil
}

// Epoch is the number of successful connections so far. Each reconnect starts
// a new epoch.
func (g *Gateway) Epoch() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.epoch
}

// Emit sends one message. It does not wait for a connection: when offline the
// message is dropped and ErrNotConnected returned.
func (g *Gateway) Emit(t MsgType, payload any) error {
	msg, err := NewMessage(t, payload)
	if err != nil {
		return err
	}
	if err := g.writeJSON(context.Background(), msg); err != nil {
		logger.Debug("emit dropped", "type", t, "error", err)
		return err
	}
	logger.Debug("emit", "type", t, "id", msg.ID)
	return nil
}

// On subscribes to every occurrence of event. The returned func unsubscribes.
func (g *Gateway) On(event string, h Handler) func() {
	return g.subscribe(event, h, false)
}

// Once subscribes to the next occurrence of event only.
func (g *Gateway) Once(event string, h Handler) func() {
	return g.subscribe(event, h, true)
}

func (g *Gateway) subscribe(event string, h Handler, once bool) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.handlers == nil {
		g.handlers = make(map[string][]*subscription)
	}
	g.nextSubID++
	sub := &subscription{id: g.nextSubID, fn: h, once: once}
	g.handlers[event] = append(g.handlers[event], sub)
	return func() { g.unsubscribe(event, sub.id) }
}

func (g *Gateway) unsubscribe(event string, id uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	subs := g.handlers[event]
	for i, s := range subs {
		if s.id == id {
			g.handlers[event] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// fire runs the handlers for ev.Name in subscription order. One-shot handlers
// are removed before any handler runs, so a handler that triggers the same
// event again cannot re-enter them. Handlers run without g.mu held.
func (g *Gateway) fire(ev Event) {
	g.mu.Lock()
	subs := g.handlers[ev.Name]
	var keep []*subscription
	run := make([]Handler, 0, len(subs))
	for _, s := range subs {
		run = append(run, s.fn)
		if !s.once {
			keep = append(keep, s)
		}
	}
	g.handlers[ev.Name] = keep
	g.mu.Unlock()

	for _, h := range run {
		h(ev)
	}
}

// current reports whether gen is still the active run loop.
func (g *Gateway) current(gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running && g.gen == gen
}

func (g *Gateway) run(ctx context.Context, gen uint64) {
	bo := NewBackoff(g.BaseDelay, g.MaxDelay, g.ReconnectAttempts)
	for {
		connected, err := g.connectAndServe(ctx, gen)
		if ctx.Err() != nil || !g.current(gen) {
			return
		}
		delay := bo.Base
		if connected {
			bo.Reset()
		} else {
			delay = bo.Fail()
		}

		if isAuthError(err) {
			g.fail(gen, ErrAuthRejected)
			return
		}
		if bo.Exhausted() {
			g.fail(gen, fmt.Errorf("%w: %v", ErrReconnectExhausted, err))
			return
		}

		logger.Warn("room server unreachable, retrying", "error", err, "delay", delay, "failures", bo.Failures())
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// fail stops the loop and reports a terminal failure.
func (g *Gateway) fail(gen uint64, err error) {
	g.mu.Lock()
	if !g.running || g.gen != gen {
		g.mu.Unlock()
		return
	}
	g.running = false
	g.cancel()
	epoch := g.epoch
	g.mu.Unlock()

	logger.Error("room connection failed", "error", err)
	g.fire(Event{Name: EventConnectFailed, Epoch: epoch, Err: err})
}

// isAuthError returns true if the error indicates a 401 handshake rejection.
func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "401")
}

func (g *Gateway) connectAndServe(ctx context.Context, gen uint64) (connected bool, err error) {
	opts := &websocket.DialOptions{HTTPHeader: g.Header}
	conn, _, dialErr := websocket.Dial(ctx, g.URL, opts)
	if dialErr != nil {
		return false, fmt.Errorf("dial: %w", dialErr)
	}
	conn.SetReadLimit(readLimit)
	defer conn.CloseNow()

	g.mu.Lock()
	if !g.running || g.gen != gen {
		g.mu.Unlock()
		return false, ctx.Err()
	}
	g.conn = conn
	g.epoch++
	epoch := g.epoch
	g.mu.Unlock()
	connected = true

	logger.Info("connected to room server", "url", g.URL, "epoch", epoch)
	g.fire(Event{Name: EventConnect, Epoch: epoch})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go g.pingLoop(pingCtx, conn)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			g.dropped(gen, conn, epoch, err)
			return connected, fmt.Errorf("read: %w", err)
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("bad message", "error", err)
			continue
		}
		if msg.Type == "" {
			continue
		}
		g.fire(Event{Name: string(msg.Type), Epoch: epoch, Msg: &msg})
	}
}

// dropped clears a connection lost without Disconnect and reports it.
func (g *Gateway) dropped(gen uint64, conn *websocket.Conn, epoch uint64, err error) {
	g.mu.Lock()
	if g.gen != gen || g.conn != conn {
		g.mu.Unlock()
		return
	}
	g.conn = nil
	g.mu.Unlock()

	logger.Warn("room connection dropped", "epoch", epoch, "error", err)
	g.fire(Event{Name: EventDisconnect, Epoch: epoch, Err: err, Reason: "transport"})
}

func (g *Gateway) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				logger.Debug("ping failed", "error", err)
				conn.Close(websocket.StatusGoingAway, "ping timeout")
				return
			}
		}
	}
}

func (g *Gateway) writeJSON(ctx context.Context, v any) error {
	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
