package chat

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mid "AirChat/middleware"
	midsec "AirChat/middleware/security"
	"AirChat/module/chat/model"
	"AirChat/tools/errs"
	"AirChat/tools/security"
)

type tokenReq struct {
	Name string `json:"name" binding:"required"`
}

type tokenResp struct {
	Token    string     `json:"token"`
	User     model.User `json:"user"`
	ExpireAt int64      `json:"expire_at"`
}

func (s *Server) routes() *gin.Engine {
	e := gin.New()
	e.Use(mid.Recover(), mid.AccessLog(), s.mids.Use())
	s.mids.Add(mid.Origin("/v1/ws", s.opts.AllowedOrigins))

	rt := mid.Router{R: e, Auth: midsec.Middleware(s.auth)}
	rt.POST("/v1/token", s.issueToken, mid.RouteOpt{})
	rt.GET("/v1/ws", s.HandleWS, mid.RouteOpt{IsAuth: true})
	rt.GET("/v1/channels/:id/typing", s.typing, mid.RouteOpt{IsAuth: true})
	rt.GET("/healthz", s.health, mid.RouteOpt{})
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return e
}

// issueToken is a development login: any display name gets a fresh user.
func (s *Server) issueToken(c *gin.Context) {
	var req tokenReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail("name required"))
		return
	}
	u := s.userFor(strings.TrimSpace(req.Name))
	tok, exp, err := security.Generate(s.opts.JWT, u)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errs.ErrInternalServer.WithDetail(err.Error()))
		return
	}
	c.JSON(http.StatusOK, tokenResp{Token: tok, User: u, ExpireAt: exp.UnixMilli()})
}

func (s *Server) userFor(name string) model.User {
	for _, k := range s.opts.KnownUsers {
		if strings.EqualFold(k.Name, name) {
			return k
		}
	}
	return model.User{ID: uuid.NewString(), Name: name}
}

func (s *Server) typing(c *gin.Context) {
	if s.opts.Typing == nil {
		c.JSON(http.StatusNotImplemented, errs.ErrNotSupported.WithDetail("typing presence disabled"))
		return
	}
	users, err := s.opts.Typing.Typing(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, errs.ErrInternalServer.WithDetail(err.Error()))
		return
	}
	if users == nil {
		users = []model.User{}
	}
	c.JSON(http.StatusOK, gin.H{"channel_id": c.Param("id"), "typing": users})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.reg.Len()})
}
