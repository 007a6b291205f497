package main

import (
	"context"
	"testing"
	"time"

	"mqttlog/src/internal/config"
	"mqttlog/src/internal/core"
	"mqttlog/src/internal/service"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMainPipelineConfig(name string) config.PipelineConfig {
	cfg := config.DefaultPipelineConfig(name)
	// No broker is listening in tests; keep the connect loop cheap
	cfg.Broker.Port = 59999
	cfg.Broker.ConnectTimeoutMS = 50
	cfg.Broker.BackoffBaseMS = 10
	cfg.Broker.BackoffCapMS = 50
	cfg.BatchIntervalMS = 10
	return cfg
}

func stdinRecord(msg string) core.LogRecord {
	return core.LogRecord{
		Time:    time.Now(),
		Level:   core.LevelInfo,
		Logger:  "stdin",
		Message: msg,
	}
}

func TestForwardRecordsReachesEveryPipeline(t *testing.T) {
	logger = log.NewLogger()

	svc := service.New(context.Background(), logger)
	defer svc.ShutdownAll()

	alpha, err := svc.GetOrCreate(testMainPipelineConfig("alpha"))
	require.NoError(t, err)
	beta, err := svc.GetOrCreate(testMainPipelineConfig("beta"))
	require.NoError(t, err)

	// One subscription channel per pipeline, as bootstrap wires them
	for _, pipeline := range []*service.Pipeline{alpha, beta} {
		records := make(chan core.LogRecord, 2)
		records <- stdinRecord("one")
		records <- stdinRecord("two")
		close(records)

		forwardRecords(records, pipeline)
	}

	for _, pipeline := range []*service.Pipeline{alpha, beta} {
		stats := pipeline.GetStats()
		assert.Equal(t, uint64(2), stats["total_submitted"], "pipeline %s", pipeline.Name())
		assert.Equal(t, uint64(0), stats["encoding_failures"], "pipeline %s", pipeline.Name())
	}
}
