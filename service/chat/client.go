package chat

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"AirChat/module/chat/channel"
	"AirChat/module/chat/model"
	"AirChat/module/chat/reconcile"
)

const (
	pingInterval = 25 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	maxFrameSize = 16 << 10
)

// Session is one websocket connection: a channel reference and the engine
// reconciling it, plus a single writer goroutine.
type Session struct {
	ID   string
	User model.User

	ws  *websocket.Conn
	ref channel.Reference
	eng *reconcile.Engine
	log *zap.Logger

	// Views coalesce: the writer only ever sends the latest one.
	view   atomic.Pointer[reconcile.View]
	viewCh chan struct{}
	send   chan []byte

	typingMu sync.Mutex
	typing   bool

	closeOnce sync.Once
	done      chan struct{}
	writerOut chan struct{}
}

func newSession(id string, u model.User, ws *websocket.Conn, queue int, log *zap.Logger) *Session {
	return &Session{
		ID:        id,
		User:      u,
		ws:        ws,
		log:       log.With(zap.String("session", id), zap.String("user", u.ID)),
		viewCh:    make(chan struct{}, 1),
		send:      make(chan []byte, queue),
		done:      make(chan struct{}),
		writerOut: make(chan struct{}),
	}
}

func (s *Session) Engine() *reconcile.Engine    { return s.eng }
func (s *Session) Reference() channel.Reference { return s.ref }

// Reply queues f; it reports false when the queue is full or the session
// is closing.
func (s *Session) Reply(f OutFrame) bool {
	data, err := json.Marshal(f)
	if err != nil {
		s.log.Error("marshal frame", zap.Error(err))
		return false
	}
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		s.log.Warn("send queue full, dropping frame", zap.String("type", string(f.Type)))
		return false
	}
}

func (s *Session) pushView(v reconcile.View) {
	s.view.Store(&v)
	select {
	case s.viewCh <- struct{}{}:
	default:
	}
}

func (s *Session) pushNotice(n reconcile.Notice) {
	s.Reply(BuildNotice(n))
}

// SetTyping forwards a typing transition; repeats of the current state are
// dropped.
func (s *Session) SetTyping(ctx context.Context, on bool) {
	s.typingMu.Lock()
	if s.typing == on {
		s.typingMu.Unlock()
		return
	}
	s.typing = on
	s.typingMu.Unlock()

	ev := model.StoppedTyping(s.User)
	if on {
		ev = model.StartedTyping(s.User)
	}
	s.ref.SendTypingEvent(ctx, ev, func(err error) {
		if err != nil {
			s.log.Warn("typing event", zap.Error(err))
		}
	})
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = s.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = s.ws.Close()
		close(s.writerOut)
	}()
	write := func(data []byte) bool {
		_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			s.log.Debug("write failed", zap.Error(err))
			return false
		}
		return true
	}
	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			if !write(data) {
				return
			}
		case <-s.viewCh:
			v := s.view.Load()
			if v == nil {
				continue
			}
			data, err := json.Marshal(BuildView(*v))
			if err != nil {
				s.log.Error("marshal view", zap.Error(err))
				continue
			}
			if !write(data) {
				return
			}
		case <-ticker.C:
			if err := s.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
				s.log.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}

// readLoop runs on the connection goroutine until the peer goes away.
func (s *Session) readLoop(ctx context.Context, d *Dispatcher) {
	s.ws.SetReadLimit(maxFrameSize)
	_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		mt, data, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) {
				s.log.Debug("peer closed")
			} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
				s.log.Info("read timeout")
			} else {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		f, err := ParseFrameJSON(data)
		if err != nil {
			s.Reply(BuildError(0, err))
			continue
		}
		if err := d.Dispatch(ctx, s, f); err != nil {
			s.Reply(BuildError(f.Seq, err))
		}
	}
}

// close stops the engine and the reference, then the writer.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		if s.eng != nil {
			s.eng.Close()
		}
		if s.ref != nil {
			s.ref.Close()
		}
		close(s.done)
		<-s.writerOut
	})
}
