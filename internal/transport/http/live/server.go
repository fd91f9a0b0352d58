package livehttp

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"quantguard/internal/logger"
)

const shutdownTimeout = 5 * time.Second

// Server 提供展示层使用的 /api/live 拉取接口。
type Server struct {
	addr   string
	router *gin.Engine
	log    *slog.Logger
}

// ServerConfig 描述 live HTTP 服务依赖。
type ServerConfig struct {
	Addr      string
	Positions PositionReader
	Prices    PriceReader
	Watchlist WatchlistStore
	Journal   JournalReader
	Pool      []string
	Logger    *slog.Logger
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Positions == nil {
		return nil, errors.New("live http server requires a position reader")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	log := logger.OrDiscard(cfg.Logger).With("component", "http")
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	live := &Router{
		Positions: cfg.Positions,
		Prices:    cfg.Prices,
		Watchlist: cfg.Watchlist,
		Journal:   cfg.Journal,
		Pool:      cfg.Pool,
		log:       log,
	}
	live.Register(router.Group("/api/live"))
	return &Server{addr: cfg.Addr, router: router, log: log}, nil
}

// requestLogger 记录接口调用，便于追踪展示层刷新频率。
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path += "?" + q
		}
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"ip", c.ClientIP(),
			"dur", time.Since(start),
		)
	}
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler 暴露路由，主要供测试使用。
func (s *Server) Handler() http.Handler { return s.router }

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve 在已有 listener 上运行，ctx 结束时优雅关闭。
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("live http listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
