package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"AirChat/logger"
	"AirChat/tools/errs"
)

// MiddlewareManager holds a mutable chain mounted once on the engine.
type MiddlewareManager struct {
	mu   sync.RWMutex
	mids []gin.HandlerFunc
}

func NewManager() *MiddlewareManager {
	return &MiddlewareManager{}
}

func (m *MiddlewareManager) Add(h ...gin.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = append(m.mids, h...)
}

func (m *MiddlewareManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = nil
}

func (m *MiddlewareManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.mids)
}

// Use returns the handler that runs the current chain snapshot.
func (m *MiddlewareManager) Use() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.mu.RLock()
		handlers := append([]gin.HandlerFunc{}, m.mids...)
		m.mu.RUnlock()

		for _, h := range handlers {
			h(c)
			if c.IsAborted() {
				return
			}
		}
		c.Next()
	}
}

// AccessLog logs one line per request.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("cost", time.Since(start)))
	}
}

// Recover turns handler panics into a 500 with the internal error body.
func Recover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("http panic", zap.Error(errs.ErrPanic(r)), zap.String("path", c.Request.URL.Path))
				c.AbortWithStatusJSON(500, errs.ErrInternalServer)
			}
		}()
		c.Next()
	}
}
