package service

import (
	"context"
	"errors"
	"time"

	"mqttlog/src/internal/broker"
	"mqttlog/src/internal/core"
)

// worker is the pipeline's single delivery goroutine. It wakes when the
// queue becomes non-empty or the batch interval elapses, drains up to
// batchSize messages, and publishes them with retry. Delivery failures are
// never fatal; exhausted batches are dropped and counted.
func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()

	interval := time.Duration(p.cfg.BatchIntervalMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-p.notify:
		case <-ticker.C:
		}

		p.drain(ctx)
	}
}

// drain empties the queue in batches while connected. When the broker is
// down, messages stay queued; the ticker retries once the connection
// manager has reconnected.
func (p *Pipeline) drain(ctx context.Context) {
	for p.queue.Len() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		default:
		}

		if p.transport.State() != broker.StateConnected {
			return
		}

		batch := p.queue.Drain(int(p.cfg.BatchSize))
		if len(batch) == 0 {
			return
		}
		p.sendBatch(ctx, batch)
	}
}

// sendBatch publishes a batch, retrying up to MaxRetries times with the
// connection manager's backoff schedule. Messages already acknowledged are
// not re-published on retry.
func (p *Pipeline) sendBatch(ctx context.Context, batch []core.EncodedMessage) {
	p.totalBatches.Add(1)

	base := time.Duration(p.cfg.Broker.BackoffBaseMS) * time.Millisecond
	maxDelay := time.Duration(p.cfg.Broker.BackoffCapMS) * time.Millisecond

	var lastErr error
	for attempt := int64(0); attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := broker.Backoff(base, maxDelay, int(attempt-1))
			select {
			case <-ctx.Done():
				p.dropBatch(batch, lastErr)
				return
			case <-p.done:
				p.dropBatch(batch, lastErr)
				return
			case <-time.After(delay):
			}
		}

		n, err := p.publishBatch(batch)
		batch = batch[n:]
		if err == nil {
			return
		}
		lastErr = err

		if errors.Is(err, broker.ErrNotConnected) {
			p.logger.Debug("msg", "Connection dropped mid-batch",
				"component", "pipeline",
				"pipeline", p.cfg.Name,
				"remaining", len(batch),
				"attempt", attempt+1)
		} else {
			p.logger.Warn("msg", "Batch publish failed",
				"component", "pipeline",
				"pipeline", p.cfg.Name,
				"remaining", len(batch),
				"attempt", attempt+1,
				"max_retries", p.cfg.MaxRetries,
				"error", err)
		}
	}

	p.dropBatch(batch, lastErr)
}

// publishBatch publishes messages in FIFO order, stopping at the first
// failure. Returns how many were delivered.
func (p *Pipeline) publishBatch(batch []core.EncodedMessage) (int, error) {
	for i, msg := range batch {
		if err := p.transport.Publish(msg); err != nil {
			return i, err
		}
		p.totalDelivered.Add(1)
		p.lastDelivered.Store(time.Now())
	}
	return len(batch), nil
}

// dropBatch records a batch abandoned after retry exhaustion or shutdown.
func (p *Pipeline) dropBatch(batch []core.EncodedMessage, err error) {
	if len(batch) == 0 {
		return
	}
	p.failedBatches.Add(1)
	p.droppedExhausted.Add(uint64(len(batch)))
	p.logger.Error("msg", "Dropped batch after exhausting retries",
		"component", "pipeline",
		"pipeline", p.cfg.Name,
		"dropped", len(batch),
		"max_retries", p.cfg.MaxRetries,
		"last_error", err)
}
