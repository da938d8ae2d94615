package signerrpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Manta-Network/manta-signer/internal/zero"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Frames sent to the UI.
const (
	uiFramePrompt   = "prompt"
	uiFramePassword = "password"
	uiFrameSuccess  = "success"
)

// uiWriteTimeout bounds a single frame write to the UI.
const uiWriteTimeout = 10 * time.Second

// ErrUIClosed is returned when the authorizer is closed while waiting for
// the UI.
var ErrUIClosed = errors.New("ui authorizer closed")

// uiFrame is a message to the UI.  Summary is set on prompts for
// transactions.
type uiFrame struct {
	Type    string   `json:"type"`
	Prompt  *Prompt  `json:"prompt,omitempty"`
	Summary *Summary `json:"summary,omitempty"`
}

// uiReply is a message from the UI answering a password frame.  The
// password travels base64 encoded so it decodes into a buffer that can be
// wiped.
type uiReply struct {
	Password []byte `json:"password,omitempty"`
	Decline  bool   `json:"decline,omitempty"`
}

func (r *uiReply) zero() {
	zero.Bytes(r.Password)
}

// UIAuthorizer is an Authorizer backed by a local UI connected to the
// service's /authorizer websocket.  Only the most recent connection is
// used.
type UIAuthorizer struct {
	upgrader websocket.Upgrader

	mtx     sync.Mutex
	conn    *websocket.Conn
	ready   chan struct{} // closed when conn is set
	closed  bool
	quit    chan struct{}
	replies chan uiReply

	writeMtx sync.Mutex
}

// NewUIAuthorizer returns an authorizer waiting for a UI to connect.
func NewUIAuthorizer() *UIAuthorizer {
	return &UIAuthorizer{
		ready:   make(chan struct{}),
		quit:    make(chan struct{}),
		replies: make(chan uiReply, 1),
	}
}

// serveWS upgrades the request and reads replies until the UI disconnects.
func (a *UIAuthorizer) serveWS(c echo.Context) error {
	conn, err := a.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already replied.
		log.Warnf("Unable to upgrade authorizer connection: %v", err)
		return nil
	}

	a.mtx.Lock()
	if a.closed {
		a.mtx.Unlock()
		conn.Close()
		return nil
	}
	if a.conn != nil {
		log.Infof("Replacing connected authorizer UI")
		a.conn.Close()
	} else {
		close(a.ready)
	}
	a.conn = conn
	a.mtx.Unlock()

	log.Infof("Authorizer UI connected from %s", c.RealIP())
	a.readReplies(conn)
	return nil
}

func (a *UIAuthorizer) readReplies(conn *websocket.Conn) {
	defer a.disconnect(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure,
				websocket.CloseGoingAway) {
				log.Debugf("Authorizer UI read: %v", err)
			}
			return
		}

		var reply uiReply
		err = json.Unmarshal(data, &reply)
		zero.Bytes(data)
		if err != nil {
			log.Debugf("Malformed authorizer UI reply: %v", err)
			continue
		}

		select {
		case a.replies <- reply:
		default:
			reply.zero()
			log.Debugf("Dropping unsolicited authorizer UI reply")
		}
	}
}

func (a *UIAuthorizer) disconnect(conn *websocket.Conn) {
	conn.Close()

	a.mtx.Lock()
	defer a.mtx.Unlock()
	if a.conn == conn {
		a.conn = nil
		a.ready = make(chan struct{})
		log.Infof("Authorizer UI disconnected")
	}
}

// waitConn returns the connected UI, waiting for one to connect.
func (a *UIAuthorizer) waitConn(ctx context.Context) (*websocket.Conn, error) {
	for {
		a.mtx.Lock()
		conn, ready, closed := a.conn, a.ready, a.closed
		a.mtx.Unlock()

		switch {
		case closed:
			return nil, ErrUIClosed
		case conn != nil:
			return conn, nil
		}

		select {
		case <-ready:
		case <-a.quit:
			return nil, ErrUIClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (a *UIAuthorizer) send(ctx context.Context, frame *uiFrame) error {
	conn, err := a.waitConn(ctx)
	if err != nil {
		return err
	}

	a.writeMtx.Lock()
	defer a.writeMtx.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(uiWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(frame)
}

// Wake shows the prompt in the UI.
func (a *UIAuthorizer) Wake(ctx context.Context, p *Prompt) error {
	frame := &uiFrame{Type: uiFramePrompt, Prompt: p}
	if s, ok := p.Summary(); ok {
		frame.Summary = &s
	}
	return a.send(ctx, frame)
}

// Password asks the UI for the password and waits for the answer.  The
// caller owns the returned buffer and wipes it.
func (a *UIAuthorizer) Password(ctx context.Context) ([]byte, error) {
	// Drop a reply nobody asked for.
	select {
	case stale := <-a.replies:
		stale.zero()
	default:
	}

	if err := a.send(ctx, &uiFrame{Type: uiFramePassword}); err != nil {
		return nil, err
	}

	select {
	case reply := <-a.replies:
		if reply.Decline {
			reply.zero()
			return nil, ErrRejected
		}
		return reply.Password, nil
	case <-a.quit:
		return nil, ErrUIClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Success tells the UI the password was accepted.
func (a *UIAuthorizer) Success(ctx context.Context) error {
	return a.send(ctx, &uiFrame{Type: uiFrameSuccess})
}

// Close disconnects the UI and fails pending calls.
func (a *UIAuthorizer) Close() error {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	close(a.quit)
	if a.conn != nil {
		a.writeMtx.Lock()
		_ = a.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second))
		a.writeMtx.Unlock()
		return a.conn.Close()
	}
	return nil
}

var _ Authorizer = (*UIAuthorizer)(nil)
var _ http.Handler = (*Server)(nil)
