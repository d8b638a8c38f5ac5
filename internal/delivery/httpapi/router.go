// Package httpapi exposes tracked products, checks and the live alert feed
// over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// NewRouter registers every route. hub may be nil, in which case the alert
// feed is not served.
func NewRouter(h *Handlers, hub *Hub, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(requestID(), requestLogger(logger), recovery(logger))

	r.GET("/healthz", h.Health)

	api := r.Group("/api")
	api.GET("/products", h.ListProducts)
	api.POST("/products", h.AddProduct)
	api.DELETE("/products/:id", h.RemoveProduct)
	api.PUT("/products/:id/target", h.SetTarget)
	api.GET("/products/:id/history", h.History)
	api.POST("/products/:id/check", h.CheckProduct)
	api.POST("/check", h.CheckAll)

	if hub != nil {
		r.GET("/ws/alerts", hub.ServeWS)
	}
	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info(
			"http request",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.String("request_id", c.GetString("request_id")), zap.Any("panic", r))
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal_error"})
			}
		}()
		c.Next()
	}
}

type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown failed", zap.Error(err))
		}
	}()

	s.logger.Info("http server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
