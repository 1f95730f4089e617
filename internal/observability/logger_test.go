package observability

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNamedLoggerTagsComponent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := &Logger{sugar: zap.New(core).Sugar()}

	log.Named("chat").Info("turn stored", "owner", "user-1")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if entries[0].LoggerName != "chat" {
		t.Fatalf("expected logger name chat, got %q", entries[0].LoggerName)
	}
	if entries[0].ContextMap()["owner"] != "user-1" {
		t.Fatalf("expected owner field, got %v", entries[0].ContextMap())
	}
}
