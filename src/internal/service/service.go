package service

import (
	"context"
	"fmt"
	"sync"

	"mqttlog/src/internal/broker"
	"mqttlog/src/internal/config"

	"github.com/lixenwraith/log"
)

// Service is the process-wide pipeline registry: at most one pipeline (and
// therefore one broker connection) exists per name at any time.
type Service struct {
	pipelines map[string]*Pipeline
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *log.Logger

	// Transport construction, replaceable in tests
	newTransport func(config.BrokerConfig) broker.Transport
}

// New creates a new, empty registry.
func New(ctx context.Context, logger *log.Logger) *Service {
	serviceCtx, cancel := context.WithCancel(ctx)
	s := &Service{
		pipelines: make(map[string]*Pipeline),
		ctx:       serviceCtx,
		cancel:    cancel,
		logger:    logger,
	}
	s.newTransport = func(cfg config.BrokerConfig) broker.Transport {
		return broker.NewConnManager(cfg, logger)
	}
	return s
}

// GetOrCreate returns the pipeline registered under cfg.Name, constructing
// and starting it first if absent. First writer wins: when the name already
// exists the supplied config is ignored, matching the singleton logger
// contract.
func (s *Service) GetOrCreate(cfg config.PipelineConfig) (*Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.pipelines[cfg.Name]; ok {
		s.logger.Debug("msg", "Returning existing pipeline, supplied config ignored",
			"component", "service",
			"pipeline", cfg.Name)
		return existing, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	s.logger.Debug("msg", "Creating pipeline", "pipeline", cfg.Name)

	pipeline, err := newPipeline(cfg, s.newTransport(cfg.Broker), s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline %q: %w", cfg.Name, err)
	}

	if err := pipeline.start(s.ctx); err != nil {
		return nil, fmt.Errorf("failed to start pipeline %q: %w", cfg.Name, err)
	}

	s.pipelines[cfg.Name] = pipeline
	s.logger.Info("msg", "Pipeline created",
		"pipeline", cfg.Name,
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"topic_template", cfg.TopicTemplate)
	return pipeline, nil
}

// Get returns a registered pipeline by name.
func (s *Service) Get(name string) (*Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pipeline, exists := s.pipelines[name]
	if !exists {
		return nil, fmt.Errorf("pipeline %q not found", name)
	}
	return pipeline, nil
}

// List returns the names of all registered pipelines.
func (s *Service) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.pipelines))
	for name := range s.pipelines {
		names = append(names, name)
	}
	return names
}

// Shutdown flushes and stops one pipeline, then removes it from the
// registry.
func (s *Service) Shutdown(name string) error {
	s.mu.Lock()
	pipeline, exists := s.pipelines[name]
	if exists {
		delete(s.pipelines, name)
	}
	s.mu.Unlock()

	if !exists {
		err := fmt.Errorf("pipeline %q not found", name)
		s.logger.Warn("msg", "Cannot shut down non-existent pipeline",
			"component", "service",
			"pipeline", name,
			"error", err)
		return err
	}

	s.logger.Info("msg", "Shutting down pipeline", "pipeline", name)
	pipeline.Shutdown()
	return nil
}

// ShutdownAll gracefully stops every registered pipeline. Used at process
// exit.
func (s *Service) ShutdownAll() {
	s.logger.Info("msg", "Registry shutdown initiated")

	s.mu.Lock()
	pipelines := make([]*Pipeline, 0, len(s.pipelines))
	for _, pipeline := range s.pipelines {
		pipelines = append(pipelines, pipeline)
	}
	s.pipelines = make(map[string]*Pipeline)
	s.mu.Unlock()

	// Stop all pipelines concurrently
	var wg sync.WaitGroup
	for _, pipeline := range pipelines {
		wg.Add(1)
		go func(p *Pipeline) {
			defer wg.Done()
			p.Shutdown()
		}(pipeline)
	}
	wg.Wait()

	s.cancel()

	s.logger.Info("msg", "Registry shutdown complete")
}

// GetGlobalStats returns statistics for all pipelines.
func (s *Service) GetGlobalStats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	pipelineStats := make(map[string]any, len(s.pipelines))
	for name, pipeline := range s.pipelines {
		pipelineStats[name] = pipeline.GetStats()
	}

	return map[string]any{
		"total_pipelines": len(s.pipelines),
		"pipelines":       pipelineStats,
	}
}
