package logging

import (
	"io"
	"log"
	"os"
	"strings"

	"aifiles/internal/config"

	"gopkg.in/natefinch/lumberjack.v2"
)

var debugEnabled = strings.EqualFold(os.Getenv("AIFILES_DEBUG"), "1")

// Setup points the standard logger at stderr and, when configured, a rotating log file.
// The returned closer flushes the file; it is a no-op without one.
func Setup(cfg config.LogConfig, prefix string) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if prefix != "" {
		log.SetPrefix("[" + prefix + "] ")
	}
	if cfg.File == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}
	}
	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB, // megabytes
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays, // days
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, file))
	return file
}

// Debugf logs only when AIFILES_DEBUG=1.
func Debugf(format string, args ...interface{}) {
	if debugEnabled {
		log.Printf(format, args...)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
