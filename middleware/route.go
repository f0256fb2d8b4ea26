package middleware

import (
	"github.com/gin-gonic/gin"
)

type RouteOpt struct {
	IsAuth bool
}

// Router registers routes, prefixing Auth when a route asks for it.
type Router struct {
	R    gin.IRoutes
	Auth gin.HandlerFunc
}

func (rt Router) handlers(h gin.HandlerFunc, opt RouteOpt) []gin.HandlerFunc {
	if opt.IsAuth && rt.Auth != nil {
		return []gin.HandlerFunc{rt.Auth, h}
	}
	return []gin.HandlerFunc{h}
}

func (rt Router) POST(path string, h gin.HandlerFunc, opt RouteOpt) {
	rt.R.POST(path, rt.handlers(h, opt)...)
}

func (rt Router) GET(path string, h gin.HandlerFunc, opt RouteOpt) {
	rt.R.GET(path, rt.handlers(h, opt)...)
}
