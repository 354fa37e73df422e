// Package logger configures the shared zerolog logger for Navigator and
// hands out component-scoped children, the same pattern the teacher
// codebase uses for its HTTP/database/websocket loggers.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the global logger instance, configured by Initialize.
var Log zerolog.Logger

func init() {
	// Sane default so packages that log before Initialize don't panic
	// or silently discard output (useful for tests and library consumers
	// that never call Initialize explicitly).
	Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "navigator").Logger().Level(zerolog.InfoLevel)
}

// Initialize configures the global logger's level and output format.
func Initialize(level string, pretty bool) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	var writer zerolog.ConsoleWriter
	if pretty {
		writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = log.Output(writer)
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	Log = log.With().Str("service", "navigator").Logger()
	Log.Info().Str("level", logLevel.String()).Bool("pretty", pretty).Msg("logger initialized")
}

func scoped(component string) zerolog.Logger {
	return Log.With().Str("component", component).Logger()
}

// Bus returns the EventBus-scoped logger.
func Bus() zerolog.Logger { return scoped("eventbus") }

// Store returns the Store-scoped logger.
func Store() zerolog.Logger { return scoped("store") }

// Core returns the NavigatorCore-scoped logger.
func Core() zerolog.Logger { return scoped("core") }

// History returns the UserSessionHistory-scoped logger.
func History() zerolog.Logger { return scoped("history") }

// State returns the AppState-scoped logger.
func State() zerolog.Logger { return scoped("state") }

// Cognitive returns the CognitiveModel-scoped logger.
func Cognitive() zerolog.Logger { return scoped("cognitive") }

// Intent returns the IntentPredictor-scoped logger.
func Intent() zerolog.Logger { return scoped("intent") }

// DevBridge returns the devbridge-scoped logger.
func DevBridge() zerolog.Logger { return scoped("devbridge") }
