package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mqttlog/src/internal/broker"
	"mqttlog/src/internal/config"
	"mqttlog/src/internal/core"
	"mqttlog/src/internal/flow"
	"mqttlog/src/internal/format"
	"mqttlog/src/internal/queue"

	"github.com/lixenwraith/log"
)

// Bound on the final flush during shutdown.
const shutdownFlushTimeout = 5 * time.Second

// Pipeline forwards log records for one logger name: encoder → bounded
// queue → delivery worker → broker connection. Submitting never blocks on
// network I/O; all blocking happens inside the worker goroutine.
type Pipeline struct {
	cfg       config.PipelineConfig
	encoder   *format.Encoder
	queue     *queue.Queue
	transport broker.Transport
	limiter   *flow.RateLimiter
	logger    *log.Logger

	// Wakes the worker when the queue becomes non-empty
	notify chan struct{}

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	startTime time.Time

	// Statistics
	totalSubmitted   atomic.Uint64
	encodingFailures atomic.Uint64
	totalDelivered   atomic.Uint64
	droppedExhausted atomic.Uint64
	totalBatches     atomic.Uint64
	failedBatches    atomic.Uint64
	lastSubmitted    atomic.Value // time.Time
	lastDelivered    atomic.Value // time.Time
}

func newPipeline(cfg config.PipelineConfig, transport broker.Transport, logger *log.Logger) (*Pipeline, error) {
	encoder, err := format.NewEncoder(&cfg, logger)
	if err != nil {
		return nil, err
	}

	policy, err := queue.ParsePolicy(cfg.OverflowPolicy)
	if err != nil {
		return nil, err
	}

	q, err := queue.New(int(cfg.QueueCapacity), policy)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:       cfg,
		encoder:   encoder,
		queue:     q,
		transport: transport,
		limiter:   flow.NewRateLimiter(cfg.RateLimit),
		logger:    logger,
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
		startTime: time.Now(),
	}
	p.lastSubmitted.Store(time.Time{})
	p.lastDelivered.Store(time.Time{})

	return p, nil
}

func (p *Pipeline) start(ctx context.Context) error {
	if err := p.transport.Start(ctx); err != nil {
		return err
	}

	p.wg.Add(1)
	go p.worker(ctx)

	p.logger.Info("msg", "Pipeline started",
		"component", "pipeline",
		"pipeline", p.cfg.Name,
		"queue_capacity", p.queue.Capacity(),
		"overflow_policy", p.queue.Policy().String(),
		"batch_size", p.cfg.BatchSize,
		"format", p.encoder.FormatterName(),
		"topic", p.topicPreview())
	return nil
}

// Name returns the pipeline's registered name.
func (p *Pipeline) Name() string {
	return p.cfg.Name
}

// Log builds a record from the pipeline's logger name and submits it.
func (p *Pipeline) Log(level core.Level, message string, attrs map[string]string) {
	p.Submit(core.LogRecord{
		Time:    time.Now(),
		Level:   level,
		Logger:  p.cfg.Name,
		Message: message,
		Attrs:   attrs,
	})
}

// Submit encodes a record and enqueues it for delivery. Never blocks and
// never returns an error: encoding failures and queue overflow are counted
// and logged locally only.
func (p *Pipeline) Submit(record core.LogRecord) {
	select {
	case <-p.done:
		return
	default:
	}

	p.totalSubmitted.Add(1)
	p.lastSubmitted.Store(time.Now())

	if !p.limiter.Allow() {
		return
	}

	msg, err := p.encoder.Encode(record)
	if err != nil {
		p.encodingFailures.Add(1)
		p.logger.Warn("msg", "Dropped unencodable log record",
			"component", "pipeline",
			"pipeline", p.cfg.Name,
			"error", err)
		return
	}

	p.queue.Push(msg)

	// Wake the worker; a pending signal already covers this push
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Shutdown stops the worker, attempts one time-boxed final flush, then
// closes the broker connection regardless of outcome. Idempotent; never
// blocks indefinitely.
func (p *Pipeline) Shutdown() {
	p.closeOnce.Do(func() {
		p.logger.Info("msg", "Shutting down pipeline",
			"component", "pipeline",
			"pipeline", p.cfg.Name)

		close(p.done)
		p.wg.Wait()

		p.finalFlush()
		p.transport.Close()

		p.logger.Info("msg", "Pipeline shutdown complete",
			"component", "pipeline",
			"pipeline", p.cfg.Name,
			"total_submitted", p.totalSubmitted.Load(),
			"total_delivered", p.totalDelivered.Load(),
			"dropped_overflow", p.queue.DroppedTotal(),
			"dropped_exhausted", p.droppedExhausted.Load(),
			"encoding_failures", p.encodingFailures.Load())
	})
}

// finalFlush drains whatever the queue still holds and publishes it without
// retries, bounded by shutdownFlushTimeout. Records still queued when the
// flush is abandoned count as dropped, so the shutdown summary reflects the
// real loss.
func (p *Pipeline) finalFlush() {
	deadline := time.Now().Add(shutdownFlushTimeout)

	for p.queue.Len() > 0 {
		if !time.Now().Before(deadline) {
			p.abandonFlush("flush deadline exceeded", nil)
			return
		}
		if p.transport.State() != broker.StateConnected {
			p.abandonFlush("broker not connected", nil)
			return
		}

		batch := p.queue.Drain(int(p.cfg.BatchSize))
		if n, err := p.publishBatch(batch); err != nil {
			p.droppedExhausted.Add(uint64(len(batch) - n))
			p.failedBatches.Add(1)
			p.abandonFlush("publish failed", err)
			return
		}
	}
}

// abandonFlush counts the records the final flush leaves behind.
func (p *Pipeline) abandonFlush(reason string, err error) {
	remaining := uint64(p.queue.Len())
	p.droppedExhausted.Add(remaining)
	p.logger.Warn("msg", "Abandoning final flush",
		"component", "pipeline",
		"pipeline", p.cfg.Name,
		"reason", reason,
		"dropped", remaining,
		"error", err)
}

// GetStats returns pipeline statistics.
func (p *Pipeline) GetStats() map[string]any {
	lastSub, _ := p.lastSubmitted.Load().(time.Time)
	lastDel, _ := p.lastDelivered.Load().(time.Time)

	return map[string]any{
		"name":              p.cfg.Name,
		"uptime_seconds":    int(time.Since(p.startTime).Seconds()),
		"total_submitted":   p.totalSubmitted.Load(),
		"total_delivered":   p.totalDelivered.Load(),
		"total_batches":     p.totalBatches.Load(),
		"failed_batches":    p.failedBatches.Load(),
		"dropped_exhausted": p.droppedExhausted.Load(),
		"encoding_failures": p.encodingFailures.Load(),
		"last_submitted":    lastSub,
		"last_delivered":    lastDel,
		"queue":             p.queue.GetStats(),
		"rate_limiter":      p.limiter.GetStats(),
		"connection":        p.transport.GetStats(),
	}
}

// topicPreview renders the effective topic for the pipeline's own name at
// INFO, used in startup logging.
func (p *Pipeline) topicPreview() string {
	return strings.TrimSpace(p.encoder.Topic(core.LogRecord{
		Logger: p.cfg.Name,
		Level:  core.LevelInfo,
	}))
}
