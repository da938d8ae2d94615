package signerrpc

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialUI(t *testing.T, s *Server) (*websocket.Conn, func()) {
	t.Helper()

	ts := httptest.NewServer(s)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/authorizer"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		ts.Close()
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) uiFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	var frame uiFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestUIAuthorizer(t *testing.T) {
	t.Parallel()

	ui := NewUIAuthorizer()
	defer ui.Close()
	s := newTestServer(t, ui)
	conn, cleanup := dialUI(t, s)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	type result struct {
		password []byte
		err      error
	}
	results := make(chan result, 1)
	prompt := &Prompt{Type: PromptReclaim, Amount: "3", CurrencySymbol: "KSM"}
	go func() {
		if err := ui.Wake(ctx, prompt); err != nil {
			results <- result{err: err}
			return
		}
		pass, err := ui.Password(ctx)
		results <- result{pass, err}
	}()

	frame := readFrame(t, conn)
	require.Equal(t, uiFramePrompt, frame.Type)
	require.Equal(t, prompt, frame.Prompt)
	require.NotNil(t, frame.Summary)
	require.Equal(t, TxTypeWithdraw, frame.Summary.TransactionType)

	require.Equal(t, uiFramePassword, readFrame(t, conn).Type)
	// The password is a base64 string on the wire.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"password":"aHVudGVyMg=="}`)))
	res := <-results
	require.NoError(t, res.err)
	require.Equal(t, "hunter2", string(res.password))

	require.NoError(t, ui.Success(ctx))
	require.Equal(t, uiFrameSuccess, readFrame(t, conn).Type)

	// Declining answers the next password request.
	go func() {
		pass, err := ui.Password(ctx)
		results <- result{pass, err}
	}()
	require.Equal(t, uiFramePassword, readFrame(t, conn).Type)
	require.NoError(t, conn.WriteJSON(&uiReply{Decline: true}))
	res = <-results
	require.ErrorIs(t, res.err, ErrRejected)
}

func TestUIAuthorizerWipesStaleReply(t *testing.T) {
	t.Parallel()

	ui := NewUIAuthorizer()
	defer ui.Close()
	s := newTestServer(t, ui)
	conn, cleanup := dialUI(t, s)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// A reply that arrived before any password request.
	stale := []byte("old secret")
	ui.replies <- uiReply{Password: stale}

	results := make(chan []byte, 1)
	go func() {
		pass, err := ui.Password(ctx)
		if err != nil {
			pass = nil
		}
		results <- pass
	}()

	require.Equal(t, uiFramePassword, readFrame(t, conn).Type)
	require.NoError(t, conn.WriteJSON(&uiReply{Password: []byte("hunter2")}))
	require.Equal(t, "hunter2", string(<-results))

	// The stale password was dropped and wiped.
	require.Equal(t, make([]byte, len(stale)), stale)
}

func TestUIAuthorizerWaitsForUI(t *testing.T) {
	t.Parallel()

	ui := NewUIAuthorizer()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Nobody connected.
	_, err := ui.Password(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, ui.Close())
	err = ui.Wake(context.Background(), NewPrompt(PromptMint))
	require.ErrorIs(t, err, ErrUIClosed)
}
