package main

import (
	"context"
	"fmt"
	"strings"

	"mqttlog/src/internal/config"
	"mqttlog/src/internal/core"
	"mqttlog/src/internal/service"
	"mqttlog/src/internal/source"
	"mqttlog/src/internal/version"

	"github.com/lixenwraith/log"
)

// bootstrap creates the pipeline registry, starts every configured
// pipeline, wires stdin into them, and starts the status endpoint.
func bootstrap(ctx context.Context, cfg *config.Config) (*service.Service, *service.StatusServer, *source.StdinSource, error) {
	svc := service.New(ctx, logger)

	var started []*service.Pipeline
	for _, pipelineCfg := range cfg.Pipelines {
		logger.Info("msg", "Initializing pipeline", "pipeline", pipelineCfg.Name)

		pipeline, err := svc.GetOrCreate(pipelineCfg)
		if err != nil {
			logger.Error("msg", "Failed to create pipeline",
				"pipeline", pipelineCfg.Name,
				"error", err)
			continue
		}
		started = append(started, pipeline)
	}

	if len(started) == 0 {
		return nil, nil, nil, fmt.Errorf("no pipelines successfully started (attempted %d)", len(cfg.Pipelines))
	}

	// Fan stdin out to every started pipeline. Subscriptions are wired
	// before Start so no line is lost to a late subscriber.
	stdinSrc := source.NewStdinSource(started[0].Name(), int(cfg.Pipelines[0].QueueCapacity), logger)
	for _, pipeline := range started {
		go forwardRecords(stdinSrc.Subscribe(), pipeline)
	}
	if err := stdinSrc.Start(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to start stdin source: %w", err)
	}

	var statusServer *service.StatusServer
	if cfg.Status.Enabled {
		statusServer = service.NewStatusServer(svc, cfg.Status, logger)
		if err := statusServer.Start(); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to start status server: %w", err)
		}
	}

	logger.Info("msg", "mqttlog started",
		"version", version.Short(),
		"pipelines", len(started))

	return svc, statusServer, stdinSrc, nil
}

// forwardRecords submits records from a source subscription to one pipeline,
// attributing each copy to the pipeline's own logger name.
func forwardRecords(records <-chan core.LogRecord, pipeline *service.Pipeline) {
	for record := range records {
		record.Logger = pipeline.Name()
		pipeline.Submit(record)
	}
}

// initializeLogger sets up the logger based on configuration
func initializeLogger(cfg *config.Config, flagCfg *flagConfig) error {
	logger = log.NewLogger()

	var configArgs []string

	if flagCfg.Quiet {
		// In quiet mode, disable ALL logging output
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=false",
			"level=255")

		if err := logger.ApplyConfigString(configArgs...); err != nil {
			return err
		}
		return logger.Start()
	}

	levelValue, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	configArgs = append(configArgs, fmt.Sprintf("level=%d", levelValue))

	switch cfg.Logging.Output {
	case "none":
		configArgs = append(configArgs, "disable_file=true", "enable_stdout=false")

	case "stdout":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=true",
			"stdout_target=stdout")

	case "stderr":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=true",
			"stdout_target=stderr")

	case "file":
		configArgs = append(configArgs, "enable_stdout=false")
		configureFileLogging(&configArgs, cfg)

	case "both":
		configArgs = append(configArgs, "enable_stdout=true")
		configureFileLogging(&configArgs, cfg)
		if cfg.Logging.Console != nil && cfg.Logging.Console.Target != "" {
			configArgs = append(configArgs, fmt.Sprintf("stdout_target=%s", cfg.Logging.Console.Target))
		}

	default:
		return fmt.Errorf("invalid log output mode: %s", cfg.Logging.Output)
	}

	if cfg.Logging.Console != nil && cfg.Logging.Console.Format != "" {
		configArgs = append(configArgs, fmt.Sprintf("format=%s", cfg.Logging.Console.Format))
	}

	if err := logger.ApplyConfigString(configArgs...); err != nil {
		return err
	}
	return logger.Start()
}

// configureFileLogging sets up file-based logging parameters
func configureFileLogging(configArgs *[]string, cfg *config.Config) {
	if cfg.Logging.File != nil {
		*configArgs = append(*configArgs,
			fmt.Sprintf("directory=%s", cfg.Logging.File.Directory),
			fmt.Sprintf("name=%s", cfg.Logging.File.Name),
			fmt.Sprintf("max_size_mb=%d", cfg.Logging.File.MaxSizeMB),
			fmt.Sprintf("max_total_size_mb=%d", cfg.Logging.File.MaxTotalSizeMB))

		if cfg.Logging.File.RetentionHours > 0 {
			*configArgs = append(*configArgs,
				fmt.Sprintf("retention_period_hrs=%.1f", cfg.Logging.File.RetentionHours))
		}
	}
}

func parseLogLevel(level string) (int, error) {
	switch strings.ToLower(level) {
	case "debug":
		return int(log.LevelDebug), nil
	case "info":
		return int(log.LevelInfo), nil
	case "warn", "warning":
		return int(log.LevelWarn), nil
	case "error":
		return int(log.LevelError), nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", level)
	}
}
