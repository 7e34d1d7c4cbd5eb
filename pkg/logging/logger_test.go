package logging

import (
	"testing"
)

func TestNewZapLoggerLevels(t *testing.T) {
	for _, level := range []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL", "bogus", ""} {
		logger, err := NewZapLogger(level)
		if err != nil {
			t.Fatalf("NewZapLogger(%q) failed: %v", level, err)
		}
		if logger == nil {
			t.Fatalf("NewZapLogger(%q) returned nil", level)
		}
	}
}

func TestLoggerFields(t *testing.T) {
	logger, err := NewZapLogger("DEBUG")
	if err != nil {
		t.Fatalf("Zap logger creation failed: %v", err)
	}

	// Structured variants must not panic, including odd argument counts.
	logger.Info("message", "key", "value")
	logger.Debug("message", "dangling-key")
	logger.Warn("message", 42, "non-string key")

	child := logger.WithField("component", "test").
		WithFields(map[string]interface{}{"venue": "cex", "attempt": 1})
	child.Info("child message")

	_ = logger.Sync() // stdout may not support sync in some environments
}

func TestGlobalLogger(t *testing.T) {
	if GetGlobalLogger() == nil {
		t.Fatal("global logger must be initialized at package load")
	}

	logger, _ := NewZapLogger("INFO")
	SetGlobalLogger(logger)
	if GetGlobalLogger() != logger {
		t.Error("SetGlobalLogger did not replace the instance")
	}

	Info("global convenience", "key", "value")
}
