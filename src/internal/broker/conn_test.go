package broker

import (
	"testing"

	"mqttlog/src/internal/config"
	"mqttlog/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
)

func testBrokerConfig() config.BrokerConfig {
	return config.BrokerConfig{
		Host:             "localhost",
		Port:             1883,
		ClientID:         "mqttlog-test",
		KeepAliveSeconds: 60,
		ConnectTimeoutMS: 100,
		PublishTimeoutMS: 100,
		BackoffBaseMS:    1,
		BackoffCapMS:     10,
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "closed", StateClosed.String())
}

func TestPublishRequiresConnected(t *testing.T) {
	m := NewConnManager(testBrokerConfig(), log.NewLogger())

	assert.Equal(t, StateDisconnected, m.State())

	err := m.Publish(core.EncodedMessage{Topic: "t", Payload: []byte("x")})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestCloseIsTerminalAndIdempotent(t *testing.T) {
	m := NewConnManager(testBrokerConfig(), log.NewLogger())

	m.Close()
	assert.Equal(t, StateClosed, m.State())

	// Second close must not panic or block
	m.Close()
	assert.Equal(t, StateClosed, m.State())

	err := m.Publish(core.EncodedMessage{Topic: "t"})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestGetStatsShape(t *testing.T) {
	m := NewConnManager(testBrokerConfig(), log.NewLogger())

	stats := m.GetStats()
	assert.Equal(t, "localhost:1883", stats["broker"])
	assert.Equal(t, "disconnected", stats["state"])
	assert.Equal(t, uint64(0), stats["total_published"])
}
