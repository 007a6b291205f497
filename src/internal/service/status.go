package service

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"mqttlog/src/internal/config"

	"github.com/lixenwraith/log"
	"github.com/valyala/fasthttp"
)

// StatusServer exposes registry and pipeline statistics over a local HTTP
// endpoint: GET /status for everything, GET /status?pipeline=NAME for one.
type StatusServer struct {
	service *Service
	server  *fasthttp.Server
	port    int64
	logger  *log.Logger

	// Statistics
	startTime     time.Time
	totalRequests atomic.Uint64
}

// NewStatusServer creates a status server bound to the registry.
func NewStatusServer(svc *Service, cfg config.StatusConfig, logger *log.Logger) *StatusServer {
	s := &StatusServer{
		service:   svc,
		port:      cfg.Port,
		logger:    logger,
		startTime: time.Now(),
	}
	s.server = &fasthttp.Server{
		Handler:         s.requestHandler,
		CloseOnShutdown: true,
	}
	return s
}

// Start begins serving in the background.
func (s *StatusServer) Start() error {
	addr := fmt.Sprintf(":%d", s.port)

	go func() {
		s.logger.Info("msg", "Status server starting",
			"component", "status_server",
			"port", s.port)

		if err := s.server.ListenAndServe(addr); err != nil {
			s.logger.Error("msg", "Status server failed",
				"component", "status_server",
				"port", s.port,
				"error", err)
		}
	}()

	return nil
}

// Shutdown stops the server.
func (s *StatusServer) Shutdown() {
	if err := s.server.Shutdown(); err != nil {
		s.logger.Warn("msg", "Status server shutdown error",
			"component", "status_server",
			"error", err)
	}
}

func (s *StatusServer) requestHandler(ctx *fasthttp.RequestCtx) {
	s.totalRequests.Add(1)

	if string(ctx.Path()) != "/status" {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}
	if !ctx.IsGet() {
		ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
		return
	}

	var payload any
	if name := string(ctx.QueryArgs().Peek("pipeline")); name != "" {
		pipeline, err := s.service.Get(name)
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			ctx.SetContentType("application/json")
			fmt.Fprintf(ctx, `{"error":%q}`, err.Error())
			return
		}
		payload = pipeline.GetStats()
	} else {
		stats := s.service.GetGlobalStats()
		stats["uptime_seconds"] = int(time.Since(s.startTime).Seconds())
		stats["status_requests"] = s.totalRequests.Load()
		payload = stats
	}

	body, err := json.Marshal(payload)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}

	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}
