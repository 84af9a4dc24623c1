package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lhdbsbz/deskbot/internal/config"
)

const apiPrefix = "/api"

func (s *Server) apiAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if !s.authenticate(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

func (s *Server) registerAPIRoutes(engine *gin.Engine) {
	api := engine.Group(apiPrefix, s.apiAuthMiddleware())
	api.GET("/health", s.ginAPIHealth)
	api.GET("/config", s.ginAPIConfig)
	api.GET("/cron/runs", s.ginAPICronRuns)
	api.POST("/cron/jobs/:id/run", s.ginAPICronRunNow)
}

func (s *Server) ginAPIHealth(c *gin.Context) {
	resp := gin.H{
		"status": "ok",
		"uptime": time.Since(s.startAt).String(),
		"taps":   s.Conns.Count(RoleTap),
	}
	if s.Stats.Usage != nil {
		resp["usage"] = s.Stats.Usage.Totals()
	}
	if s.Stats.KBEntries != nil {
		resp["kbEntries"] = s.Stats.KBEntries()
	}
	if s.Stats.Pending != nil {
		resp["pendingImages"] = s.Stats.Pending()
	}
	if s.Stats.Dedup != nil {
		resp["dedupEntries"] = s.Stats.Dedup()
	}
	if s.Stats.Scheduler != nil {
		resp["cronJobs"] = len(s.Stats.Scheduler.List())
	}
	c.JSON(http.StatusOK, resp)
}

// ginAPIConfig returns the live config with secrets masked.
func (s *Server) ginAPIConfig(c *gin.Context) {
	cfg := config.Get()
	if cfg == nil {
		cfg = s.Config
	}
	c.JSON(http.StatusOK, redact(cfg))
}

func (s *Server) ginAPICronRuns(c *gin.Context) {
	if s.Stats.Scheduler == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": s.Stats.Scheduler.List(), "runs": s.Stats.Scheduler.Runs()})
}

func redact(cfg *config.Config) config.Config {
	out := *cfg
	out.Gateway.Auth.Token = mask(out.Gateway.Auth.Token)
	out.Line.ChannelAccessToken = mask(out.Line.ChannelAccessToken)
	out.Line.ChannelSecret = mask(out.Line.ChannelSecret)
	out.Payment.SecretKey = mask(out.Payment.SecretKey)
	out.Cache.Redis.Password = mask(out.Cache.Redis.Password)
	providers := make(map[string]config.ProviderConfig, len(out.Providers))
	for name, p := range out.Providers {
		p.APIKey = mask(p.APIKey)
		providers[name] = p
	}
	out.Providers = providers
	return out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "***"
}

// ginAPICronRunNow runs a housekeeping job synchronously, e.g. a KB reload
// after an edit on a host without file events.
func (s *Server) ginAPICronRunNow(c *gin.Context) {
	if s.Stats.Scheduler == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no scheduler"})
		return
	}
	id := c.Param("id")
	if err := s.Stats.Scheduler.RunNow(id); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"id": id, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "ok": true})
}
