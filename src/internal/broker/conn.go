package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"mqttlog/src/internal/config"
	"mqttlog/src/internal/core"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/lixenwraith/log"
)

// ErrNotConnected is returned by Publish outside the connected state. The
// delivery worker checks state before draining, so hitting this mid-batch
// means the connection dropped underneath it.
var ErrNotConnected = errors.New("not connected to broker")

// Transport is the broker connection used by a pipeline's delivery worker.
type Transport interface {
	// Start launches the connect/reconnect loop
	Start(ctx context.Context) error

	// State returns the current connection state
	State() State

	// Publish sends one encoded message; requires StateConnected
	Publish(msg core.EncodedMessage) error

	// Close tears the connection down; the state becomes StateClosed
	Close()

	// GetStats returns connection statistics
	GetStats() map[string]any
}

// ConnManager owns one MQTT client connection: connect, reconnect with
// exponential backoff, and liveness tracking via the client keep-alive.
// Auto-reconnect in the client is disabled; this state machine owns the
// schedule.
type ConnManager struct {
	cfg    config.BrokerConfig
	client mqtt.Client
	state  atomic.Int32
	lost   chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
	logger *log.Logger

	// Reconnection state, touched only by the run loop
	connectTime time.Time

	// Statistics
	totalConnects  atomic.Uint64
	connectErrors  atomic.Uint64
	totalPublished atomic.Uint64
	publishErrors  atomic.Uint64
	lastError      atomic.Value // string
}

// NewConnManager creates a connection manager for one pipeline.
func NewConnManager(cfg config.BrokerConfig, logger *log.Logger) *ConnManager {
	m := &ConnManager{
		cfg:    cfg,
		lost:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
	m.lastError.Store("")

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)).
		SetClientID(cfg.ClientID).
		SetKeepAlive(time.Duration(cfg.KeepAliveSeconds) * time.Second).
		SetConnectTimeout(time.Duration(cfg.ConnectTimeoutMS) * time.Millisecond).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOrderMatters(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			m.onConnectionLost(err)
		})

	m.client = mqtt.NewClient(opts)
	return m
}

// Start launches the connect/reconnect loop.
func (m *ConnManager) Start(ctx context.Context) error {
	m.wg.Add(1)
	go m.run(ctx)

	m.logger.Info("msg", "Connection manager started",
		"component", "conn_manager",
		"broker", fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port))
	return nil
}

// State returns the current connection state.
func (m *ConnManager) State() State {
	return State(m.state.Load())
}

// Publish sends one message and waits for the client acknowledgement
// appropriate to its QoS.
func (m *ConnManager) Publish(msg core.EncodedMessage) error {
	if m.State() != StateConnected {
		return ErrNotConnected
	}

	token := m.client.Publish(msg.Topic, msg.QoS, msg.Retain, msg.Payload)
	timeout := time.Duration(m.cfg.PublishTimeoutMS) * time.Millisecond
	if !token.WaitTimeout(timeout) {
		m.publishErrors.Add(1)
		return fmt.Errorf("publish to %q timed out after %s", msg.Topic, timeout)
	}
	if err := token.Error(); err != nil {
		m.publishErrors.Add(1)
		return fmt.Errorf("publish to %q failed: %w", msg.Topic, err)
	}

	m.totalPublished.Add(1)
	return nil
}

// Close stops the reconnect loop and disconnects. Terminal: the manager
// cannot be restarted.
func (m *ConnManager) Close() {
	select {
	case <-m.done:
		return
	default:
	}

	close(m.done)
	m.wg.Wait()

	if m.client.IsConnectionOpen() {
		m.client.Disconnect(250)
	}
	m.state.Store(int32(StateClosed))

	m.logger.Info("msg", "Connection manager closed",
		"component", "conn_manager",
		"total_connects", m.totalConnects.Load(),
		"total_published", m.totalPublished.Load(),
		"publish_errors", m.publishErrors.Load())
}

// GetStats returns connection statistics.
func (m *ConnManager) GetStats() map[string]any {
	lastErr, _ := m.lastError.Load().(string)
	return map[string]any{
		"broker":          fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port),
		"state":           m.State().String(),
		"total_connects":  m.totalConnects.Load(),
		"connect_errors":  m.connectErrors.Load(),
		"total_published": m.totalPublished.Load(),
		"publish_errors":  m.publishErrors.Load(),
		"last_error":      lastErr,
	}
}

// run cycles connect → connected → lost until shutdown. The attempt counter
// resets once a connection survives longer than the backoff delay that
// preceded it.
func (m *ConnManager) run(ctx context.Context) {
	defer m.wg.Done()

	attempt := 0
	delay := Backoff(m.baseDelay(), m.capDelay(), 0)

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		default:
		}

		m.state.Store(int32(StateConnecting))
		if err := m.connect(); err != nil {
			m.state.Store(int32(StateDisconnected))
			m.connectErrors.Add(1)
			m.lastError.Store(err.Error())
			delay = Backoff(m.baseDelay(), m.capDelay(), attempt)
			attempt++

			m.logger.Warn("msg", "Failed to connect to broker",
				"component", "conn_manager",
				"broker", fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port),
				"error", err,
				"retry_delay", delay)

			select {
			case <-ctx.Done():
				return
			case <-m.done:
				return
			case <-time.After(delay):
			}
			continue
		}

		// Connected
		m.connectTime = time.Now()
		m.totalConnects.Add(1)
		m.lastError.Store("")

		// Discard a stale lost signal from the previous connection
		select {
		case <-m.lost:
		default:
		}
		m.state.Store(int32(StateConnected))

		m.logger.Info("msg", "Connected to broker",
			"component", "conn_manager",
			"broker", fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port),
			"client_id", m.cfg.ClientID)

		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-m.lost:
		}

		m.state.Store(int32(StateDisconnected))

		uptime := time.Since(m.connectTime)
		if uptime > delay {
			attempt = 0
			delay = Backoff(m.baseDelay(), m.capDelay(), 0)
		}

		m.logger.Warn("msg", "Lost connection to broker",
			"component", "conn_manager",
			"broker", fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port),
			"uptime", uptime)
	}
}

func (m *ConnManager) connect() error {
	token := m.client.Connect()
	timeout := time.Duration(m.cfg.ConnectTimeoutMS) * time.Millisecond
	// WaitTimeout with margin over the client's own connect timeout
	if !token.WaitTimeout(timeout + time.Second) {
		return fmt.Errorf("connect timed out after %s", timeout)
	}
	return token.Error()
}

// onConnectionLost is invoked by the client's keep-alive machinery.
func (m *ConnManager) onConnectionLost(err error) {
	if err != nil {
		m.lastError.Store(err.Error())
	}
	select {
	case m.lost <- struct{}{}:
	default:
	}
}

func (m *ConnManager) baseDelay() time.Duration {
	return time.Duration(m.cfg.BackoffBaseMS) * time.Millisecond
}

func (m *ConnManager) capDelay() time.Duration {
	return time.Duration(m.cfg.BackoffCapMS) * time.Millisecond
}
