package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lhdbsbz/deskbot/internal/bot"
	"github.com/lhdbsbz/deskbot/internal/config"
	"github.com/lhdbsbz/deskbot/internal/cron"
	"github.com/lhdbsbz/deskbot/internal/dispatch"
	"github.com/lhdbsbz/deskbot/internal/llm"
)

const shutdownTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// BatchHandler processes the events of one webhook delivery.
type BatchHandler interface {
	HandleBatch(ctx context.Context, events []bot.Event)
}

// Stats are optional sources for /api/health.
type Stats struct {
	Usage     *llm.UsageTracker
	Scheduler *cron.Scheduler
	KBEntries func() int
	Pending   func() int
	Dedup     func() int
}

// Server is the deskbot gateway: LINE webhook, health and the ops tap.
type Server struct {
	Config  *config.Config
	Handler BatchHandler
	Stats   Stats
	Conns   *ConnManager
	Logger  *slog.Logger

	engine  *gin.Engine
	httpSrv *http.Server
	startAt time.Time

	// batches run on baseCtx, not the request context, so they outlive the
	// webhook response.
	baseCtx  context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

func NewServer(cfg *config.Config, handler BatchHandler, stats Stats, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		Config:  cfg,
		Handler: handler,
		Stats:   stats,
		Conns:   NewConnManager(),
		Logger:  logger,
		startAt: time.Now(),
		baseCtx: ctx,
		cancel:  cancel,
	}
	s.engine = s.buildEngine()
	return s
}

func (s *Server) buildEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", s.ginHealth)
	engine.POST(s.webhookPath(), s.ginWebhook)
	engine.GET("/ws", s.ginWebSocket)
	s.registerAPIRoutes(engine)
	return engine
}

func (s *Server) webhookPath() string {
	if p := s.Config.Gateway.WebhookPath; p != "" {
		return p
	}
	return "/webhook"
}

// HTTPHandler exposes the router, mainly for tests.
func (s *Server) HTTPHandler() http.Handler {
	return s.engine
}

// Observe forwards dispatcher events to tap connections. It never blocks.
func (s *Server) Observe(evt dispatch.Event) {
	if s.Conns.Count(RoleTap) == 0 {
		return
	}
	s.Conns.BroadcastToRole(RoleTap, EventDispatch, evt)
}

// Start listens until ctx is cancelled, then shuts down and waits for
// in-flight batches.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.Config.Gateway.Port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.Logger.Info("deskbot gateway starting", "port", s.Config.Gateway.Port, "webhook", s.webhookPath())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.cancel()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		s.Logger.Warn("http shutdown", "error", err)
	}
	s.Conns.CloseAll()
	return s.Drain(shutdownCtx)
}

// Drain waits for in-flight batches. When ctx expires first the remaining
// batches are cancelled.
func (s *Server) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return fmt.Errorf("drain batches: %w", ctx.Err())
	}
}

// Close cancels in-flight batches and waits for them.
func (s *Server) Close() {
	s.cancel()
	s.inflight.Wait()
	s.Conns.CloseAll()
}

func (s *Server) ginHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startAt).String(),
	})
}

func (s *Server) ginWebSocket(c *gin.Context) {
	if !s.authenticate(c.Query("token")) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Error("websocket upgrade failed", "error", err)
		return
	}

	conn := NewConn("conn_"+uuid.NewString(), RoleTap, ws)
	defer conn.Close()
	go conn.writeLoop()

	s.Conns.Add(conn)
	defer s.Conns.Remove(conn.ID)

	s.Logger.Info("tap connected", "id", conn.ID)
	conn.Send(EventFrame(EventHello, 0, gin.H{"connId": conn.ID, "protocol": 1}))

	// The tap is push-only. Reading keeps the close handshake flowing; only
	// a read error ends the connection, malformed frames are skipped.
	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			s.Logger.Debug("tap closed", "id", conn.ID, "error", err)
			return
		}
		var frame Frame
		if err := json.Unmarshal(msg, &frame); err != nil {
			s.Logger.Debug("tap frame ignored", "id", conn.ID, "error", err)
			continue
		}
		if frame.Type == "req" {
			conn.Send(ResErr(frame.ID, "UNKNOWN_METHOD", "the tap is read-only; use HTTP /api"))
		}
	}
}

func (s *Server) authenticate(token string) bool {
	expected := s.Config.Gateway.Auth.Token
	if expected == "" {
		return true // no auth configured
	}
	return token == expected
}
