// Package chat is the websocket gateway in front of the reconciliation
// engine: every connection gets its own channel reference and engine, and
// receives the engine's views and notices as JSON frames.
package chat

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"AirChat/logger"
	mid "AirChat/middleware"
	midsec "AirChat/middleware/security"
	"AirChat/module/chat/channel"
	"AirChat/module/chat/model"
	"AirChat/module/chat/reconcile"
	"AirChat/module/chat/store"
	"AirChat/tools/ids"
	"AirChat/tools/safe"
	"AirChat/tools/security"
)

type Options struct {
	ChannelID      model.ChannelID
	Backend        store.Backend
	ClientOptions  []channel.ClientOption
	JWT            security.Options
	AllowedOrigins []string
	Typing         TypingLister // optional
	// KnownUsers keep a stable id across logins, matched by display name.
	KnownUsers []model.User
	SendQueue  int
}

type Server struct {
	opts     Options
	reg      *Registry
	disp     *Dispatcher
	mids     *mid.MiddlewareManager
	auth     *midsec.Options
	upgrader websocket.Upgrader
	engine   *gin.Engine
	log      *zap.Logger
}

func NewServer(opts Options) *Server {
	safe.MustNotNil(opts.Backend, "backend")
	if opts.SendQueue <= 0 {
		opts.SendQueue = 64
	}
	s := &Server{
		opts: opts,
		reg:  NewRegistry(),
		disp: NewDispatcher(),
		mids: mid.NewManager(),
		auth: midsec.DefaultOptions(opts.JWT),
		log:  logger.Named("gateway"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return mid.AllowOrigin(opts.AllowedOrigins, r.Header.Get("Origin"))
		},
	}
	s.engine = s.routes()
	return s
}

func (s *Server) Disp() *Dispatcher                  { return s.disp }
func (s *Server) Registry() *Registry                { return s.reg }
func (s *Server) Middleware() *mid.MiddlewareManager { return s.mids }
func (s *Server) Handler() http.Handler              { return s.engine }

// Run serves addr until ctx is done, then drains within grace.
func (s *Server) Run(ctx context.Context, addr string, grace time.Duration) error {
	hs := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("gateway listening", zap.String("addr", addr))
		errCh <- hs.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	err := hs.Shutdown(sctx)
	s.Close()
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// Close ends every live session. Hijacked websocket connections are not
// covered by http.Server.Shutdown.
func (s *Server) Close() {
	for _, sess := range s.reg.ListAll() {
		sess.close()
	}
}

// open wires a reference and an engine for u on ws.
func (s *Server) open(u model.User, ws *websocket.Conn) *Session {
	sess := newSession(ids.GenerateString(), u, ws, s.opts.SendQueue, s.log)
	client := channel.NewClient(u, s.opts.Backend, s.opts.ClientOptions...)
	sess.ref = client.ChannelReference(s.opts.ChannelID)
	sess.eng = reconcile.New(sess.ref,
		reconcile.WithOnChange(sess.pushView),
		reconcile.WithOnNotice(sess.pushNotice),
		reconcile.WithLogger(sess.log),
	)
	s.reg.add(sess)
	sess.Reply(BuildHello(sess.ID, u))
	go sess.writeLoop()
	sess.eng.Start()
	return sess
}

func (s *Server) HandleWS(c *gin.Context) {
	u, ok := midsec.UserFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Info("upgrade websocket", zap.Error(err))
		return
	}
	sess := s.open(u, ws)
	s.log.Info("session opened", zap.String("session", sess.ID), zap.String("user", u.ID))
	defer func() {
		s.reg.remove(sess)
		sess.close()
		s.log.Info("session closed", zap.String("session", sess.ID))
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sess.readLoop(ctx, s.disp)
}
