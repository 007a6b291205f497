package main

import (
	"flag"
	"fmt"
	"os"
)

// Command-line flags
var (
	configFile  = flag.String("config", "", "Config file path")
	showVersion = flag.Bool("version", false, "Show version information")
	quiet       = flag.Bool("quiet", false, "Suppress all internal logging output")
)

type flagConfig struct {
	ConfigFile  string
	ShowVersion bool
	Quiet       bool
}

func init() {
	flag.Usage = customUsage
}

func customUsage() {
	fmt.Fprintf(os.Stderr, "mqttlog - Log-to-MQTT Forwarding Service\n\n")
	fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Options:\n")
	fmt.Fprintf(os.Stderr, "  -config string\n\tConfig file path\n")
	fmt.Fprintf(os.Stderr, "  -version\n\tShow version information\n")
	fmt.Fprintf(os.Stderr, "  -quiet\n\tSuppress all internal logging output\n")

	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  # Forward stdin to the default broker\n")
	fmt.Fprintf(os.Stderr, "  tail -f app.log | %s\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  # Run with a custom config\n")
	fmt.Fprintf(os.Stderr, "  %s --config /etc/mqttlog.toml\n\n", os.Args[0])

	fmt.Fprintf(os.Stderr, "Environment Variables:\n")
	fmt.Fprintf(os.Stderr, "  MQTTLOG_CONFIG_FILE  Config file path\n")
	fmt.Fprintf(os.Stderr, "  MQTTLOG_CONFIG_DIR   Config directory\n")
}

func parseFlags() (*flagConfig, error) {
	flag.Parse()

	return &flagConfig{
		ConfigFile:  *configFile,
		ShowVersion: *showVersion,
		Quiet:       *quiet,
	}, nil
}
