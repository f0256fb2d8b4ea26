package chat_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AirChat/module/chat/model"
	"AirChat/module/chat/reconcile"
	"AirChat/module/chat/store"
	"AirChat/service/chat"
	"AirChat/service/chat/handlers"
	"AirChat/tools/errs"
	"AirChat/tools/security"
)

const channelID = "c1"

type fakeTyping struct{ users []model.User }

func (f fakeTyping) Typing(context.Context, model.ChannelID) ([]model.User, error) {
	return f.users, nil
}

type gateway struct {
	srv *chat.Server
	ts  *httptest.Server
}

func newGateway(t *testing.T, typing chat.TypingLister) *gateway {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mem := store.NewMemory()
	_, err := store.Seed(context.Background(), mem, model.Channel{ID: channelID, Name: "Chat"}, model.User{ID: "seed-me", Name: "Me"})
	require.NoError(t, err)

	srv := chat.NewServer(chat.Options{
		ChannelID:  channelID,
		Backend:    mem,
		JWT:        security.DefaultOptions([]byte("test-secret")),
		Typing:     typing,
		KnownUsers: []model.User{{ID: "seed-me", Name: "Me"}},
	})
	handlers.RegisterDefaults(srv.Disp())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return &gateway{srv: srv, ts: ts}
}

func (g *gateway) token(t *testing.T, name string) (string, model.User) {
	t.Helper()
	resp, err := http.Post(g.ts.URL+"/v1/token", "application/json", strings.NewReader(`{"name":"`+name+`"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.Token, out.User
}

func (g *gateway) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(g.ts.URL, "http") + "/v1/ws?token=" + token
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

type frame struct {
	Type   chat.FrameType   `json:"type"`
	Seq    int64            `json:"seq"`
	ID     string           `json:"id"`
	View   *reconcile.View  `json:"view"`
	Notice *chat.NoticeBody `json:"notice"`
	Error  *errs.CodeError  `json:"error"`
	User   *model.User      `json:"user"`
}

// next reads frames until match accepts one.
func next(t *testing.T, ws *websocket.Conn, match func(frame) bool) frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		var f frame
		require.NoError(t, json.Unmarshal(data, &f))
		if match(f) {
			return f
		}
	}
}

func send(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(v))
}

func TestSessionLifecycle(t *testing.T) {
	g := newGateway(t, nil)
	tok, me := g.token(t, "Ann")
	ws := g.dial(t, tok)

	hello := next(t, ws, func(f frame) bool { return f.Type == chat.FrameHello })
	require.NotNil(t, hello.User)
	assert.Equal(t, me, *hello.User)

	loaded := next(t, ws, func(f frame) bool {
		return f.Type == chat.FrameView && !f.View.Loading && len(f.View.Items) == 9
	})
	assert.Equal(t, "Chat", loaded.View.Channel.Name)

	send(t, ws, map[string]any{"type": "send", "seq": 1, "text": "hi"})
	ack := next(t, ws, func(f frame) bool { return f.Type == chat.FrameAck && f.Seq == 1 })
	require.NotEmpty(t, ack.ID)

	next(t, ws, func(f frame) bool {
		if f.Type != chat.FrameView {
			return false
		}
		it, ok := f.View.Find(ack.ID)
		return ok && it.State == reconcile.Normal && it.Mine && it.Message.Text == "hi"
	})

	send(t, ws, map[string]any{"type": "delete", "seq": 2, "id": ack.ID})
	next(t, ws, func(f frame) bool { return f.Type == chat.FrameAck && f.Seq == 2 })
	next(t, ws, func(f frame) bool {
		if f.Type != chat.FrameView {
			return false
		}
		_, ok := f.View.Find(ack.ID)
		return !ok && len(f.View.Items) == 9
	})

	send(t, ws, map[string]any{"type": "resend", "seq": 3, "id": "nope"})
	e := next(t, ws, func(f frame) bool { return f.Type == chat.FrameError && f.Seq == 3 })
	assert.Equal(t, errs.RejectedError, e.Error.Code)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{")))
	e = next(t, ws, func(f frame) bool { return f.Type == chat.FrameError })
	assert.Equal(t, errs.ArgsError, e.Error.Code)

	send(t, ws, map[string]any{"type": "fly", "seq": 4})
	e = next(t, ws, func(f frame) bool { return f.Type == chat.FrameError && f.Seq == 4 })
	assert.Equal(t, errs.NotSupportedError, e.Error.Code)

	send(t, ws, map[string]any{"type": "ping", "seq": 5})
	next(t, ws, func(f frame) bool { return f.Type == chat.FramePong && f.Seq == 5 })

	send(t, ws, map[string]any{"type": "typing", "typing": true})
	send(t, ws, map[string]any{"type": "reload", "seq": 6})
	next(t, ws, func(f frame) bool { return f.Type == chat.FrameAck && f.Seq == 6 })

	assert.Equal(t, 1, g.srv.Registry().Len())
	assert.Len(t, g.srv.Registry().ListByUser(me.ID), 1)

	require.NoError(t, ws.Close())
	assert.Eventually(t, func() bool { return g.srv.Registry().Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestKnownUserOwnsSeededMessages(t *testing.T) {
	g := newGateway(t, nil)
	tok, me := g.token(t, "me")
	assert.Equal(t, "seed-me", me.ID)
	ws := g.dial(t, tok)
	v := next(t, ws, func(f frame) bool {
		return f.Type == chat.FrameView && !f.View.Loading && len(f.View.Items) == 9
	}).View
	assert.True(t, v.Items[0].Mine)
	assert.False(t, v.Items[1].Mine)
}

func TestTwoSessionsSeeEachOther(t *testing.T) {
	g := newGateway(t, nil)
	tokA, _ := g.token(t, "Ann")
	tokB, _ := g.token(t, "Bob")
	a := g.dial(t, tokA)
	b := g.dial(t, tokB)
	ready := func(f frame) bool { return f.Type == chat.FrameView && !f.View.Loading && len(f.View.Items) == 9 }
	next(t, a, ready)
	next(t, b, ready)

	send(t, a, map[string]any{"type": "send", "seq": 1, "text": "from a"})
	ack := next(t, a, func(f frame) bool { return f.Type == chat.FrameAck })

	// b has no feed, so it only learns about the message on reload.
	send(t, b, map[string]any{"type": "reload", "seq": 1})
	next(t, b, func(f frame) bool {
		if f.Type != chat.FrameView {
			return false
		}
		it, ok := f.View.Find(ack.ID)
		return ok && !it.Mine
	})
}

func TestHTTPEndpoints(t *testing.T) {
	g := newGateway(t, fakeTyping{users: []model.User{{ID: "u2", Name: "Bob"}}})
	tok, _ := g.token(t, "Ann")

	resp, err := http.Post(g.ts.URL+"/v1/token", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	u := "ws" + strings.TrimPrefix(g.ts.URL, "http") + "/v1/ws"
	_, resp, err = websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, g.ts.URL+"/v1/channels/c1/typing", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var typing struct {
		Typing []model.User `json:"typing"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&typing))
	resp.Body.Close()
	assert.Equal(t, "Bob", typing.Typing[0].Name)

	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err = http.Get(g.ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestTypingDisabled(t *testing.T) {
	g := newGateway(t, nil)
	tok, _ := g.token(t, "Ann")
	req, _ := http.NewRequest(http.MethodGet, g.ts.URL+"/v1/channels/c1/typing?token="+tok, nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestParseFrame(t *testing.T) {
	f, err := chat.ParseFrameJSON([]byte(`{"type":"send","seq":3,"text":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, chat.InFrame{Type: chat.FrameSend, Seq: 3, Text: "x"}, f)

	_, err = chat.ParseFrameJSON([]byte(`{"seq":3}`))
	assert.ErrorIs(t, err, errs.ErrArgs)

	e := chat.BuildError(1, assert.AnError)
	assert.Equal(t, errs.ServerInternalError, e.Error.Code)
}
