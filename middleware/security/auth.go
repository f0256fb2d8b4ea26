package security

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"AirChat/module/chat/model"
	"AirChat/tools/errs"
	tokens "AirChat/tools/security"
)

const (
	CtxUserKey  = "airchat.user"
	CtxTokenKey = "authorization"
)

type Options struct {
	HeaderToken               string // default "authorization"
	QueryToken                string // default "token"; browsers cannot set headers on websocket upgrades
	EnableAuthorizationBearer bool
	JWT                       tokens.Options
}

func DefaultOptions(jwt tokens.Options) *Options {
	return &Options{
		HeaderToken:               CtxTokenKey,
		QueryToken:                "token",
		EnableAuthorizationBearer: true,
		JWT:                       jwt,
	}
}

// TokenFrom extracts the raw token from c.
func TokenFrom(c *gin.Context, opts *Options) string {
	token := strings.TrimSpace(c.GetHeader(opts.HeaderToken))
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = ""
	}
	if token == "" && opts.EnableAuthorizationBearer {
		if authz := strings.TrimSpace(c.GetHeader("Authorization")); len(authz) > 7 &&
			strings.EqualFold(authz[:7], "bearer ") {
			token = strings.TrimSpace(authz[7:])
		}
	}
	if token == "" && opts.QueryToken != "" {
		token = strings.TrimSpace(c.Query(opts.QueryToken))
	}
	return token
}

// Middleware verifies the token and stores the user under CtxUserKey.
func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFrom(c, opts)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenInvalid.WithDetail("missing token"))
			return
		}
		claims, err := tokens.Verify(opts.JWT, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenInvalid.WithDetail("verify failed"))
			return
		}
		c.Set(CtxTokenKey, token)
		c.Set(CtxUserKey, claims.User())
		c.Next()
	}
}

// UserFrom returns the user stored by Middleware.
func UserFrom(c *gin.Context) (model.User, bool) {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return model.User{}, false
	}
	u, ok := v.(model.User)
	return u, ok
}
