package main

import (
	"flag"
	"fmt"
	"os"
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	ConfigPath  string
	LogLevel    string
	LogFormat   string
	ShowVersion bool
	Validate    bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("SPOTSTREAM_CONFIG", ""),
		"Path to configuration file, empty for built-in defaults (env: SPOTSTREAM_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("SPOTSTREAM_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: SPOTSTREAM_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("SPOTSTREAM_LOG_FORMAT", "json"),
		"Log format: json, text (env: SPOTSTREAM_LOG_FORMAT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Print version and exit")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = printUsage
	flag.Parse()

	return cfg
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", appName)
	fmt.Fprintf(os.Stderr, "Streams reverse beacon network spots through configured filters\n")
	fmt.Fprintf(os.Stderr, "into bounded per-filter storage with an HTTP retrieval API.\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
