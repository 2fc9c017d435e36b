/*-------------------------------------------------------------------------
 *
 * logger.go
 *    Structured logging for NeuronDynamic
 *
 * Thin wrapper over zerolog that keeps the message + fields calling
 * convention used across the server. Output defaults to stderr because
 * stdout carries the stdio transport.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/logging/logger.go
 *
 *-------------------------------------------------------------------------
 */

package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/neurondb/NeuronDynamic/internal/config"
	"github.com/rs/zerolog"
)

/* Logger provides structured logging */
type Logger struct {
	zl zerolog.Logger
}

/* NewLogger creates a logger from the logging configuration */
func NewLogger(cfg config.LoggingConfig) *Logger {
	var out io.Writer = os.Stderr
	switch cfg.Output {
	case "", "stderr":
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v, using stderr\n", cfg.Output, err)
		} else {
			out = f
		}
	}
	return NewWithWriter(out, cfg.Level, cfg.Format)
}

/* NewWithWriter creates a logger writing to w */
func NewWithWriter(w io.Writer, level, format string) *Logger {
	if format == "text" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	zl := zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

/* Nop returns a logger that discards everything */
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

/* With returns a child logger carrying the given fields on every entry */
func (l *Logger) With(fields map[string]interface{}) *Logger {
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

/* Debug logs a debug message */
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.zl.Debug().Fields(fields).Msg(message)
}

/* Info logs an info message */
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.zl.Info().Fields(fields).Msg(message)
}

/* Warn logs a warning message */
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.zl.Warn().Fields(fields).Msg(message)
}

/* Error logs an error message */
func (l *Logger) Error(message string, err error, fields map[string]interface{}) {
	l.zl.Error().Err(err).Fields(fields).Msg(message)
}
