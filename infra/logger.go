package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger 依 ENV 與 log level 設定全域 zerolog，需在 LoadConfig 之後呼叫
func InitLogger() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.DurationFieldUnit = time.Millisecond

	env := getEnvironment()

	var out io.Writer = os.Stdout
	if env != "production" {
		out = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "2006-01-02 15:04:05",
		}
	}

	log.Logger = zerolog.New(out).
		With().
		Timestamp().
		Str("service", ServiceName).
		Str("version", AppConfig.App.AppVersion).
		Str("environment", env).
		Str("hostname", getHostname()).
		Logger()

	zerolog.SetGlobalLevel(resolveLogLevel(os.Getenv("LOG_LEVEL"), AppConfig.App.LogLevel))
}

func getEnvironment() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "development"
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

// resolveLogLevel 依序採用第一個可解析的值，都無效時為 info
func resolveLogLevel(candidates ...string) zerolog.Level {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if level, err := zerolog.ParseLevel(c); err == nil {
			return level
		}
	}
	return zerolog.InfoLevel
}
