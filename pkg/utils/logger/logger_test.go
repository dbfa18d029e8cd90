package logger

import (
	"context"
	"testing"

	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/contextkey"
)

func TestExtractFieldsFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), contextkey.TraceID, "t-1")
	ctx = context.WithValue(ctx, contextkey.JobID, "j-9")

	fields := extractFieldsFromContext(ctx)
	if len(fields) != 2 {
		t.Fatalf("extracted %d fields, want 2", len(fields))
	}
	if fields[0].Key != "trace_id" || fields[0].String != "t-1" {
		t.Fatalf("first field %s=%s", fields[0].Key, fields[0].String)
	}
	if fields[1].Key != "job_id" || fields[1].String != "j-9" {
		t.Fatalf("second field %s=%s", fields[1].Key, fields[1].String)
	}
}

func TestExtractFieldsEmptyContext(t *testing.T) {
	if fields := extractFieldsFromContext(context.Background()); len(fields) != 0 {
		t.Fatalf("extracted %d fields from empty context", len(fields))
	}
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	if _, err := NewLogger(Config{Level: "loud"}); err == nil {
		t.Fatal("bad level accepted")
	}
}

func TestNewLoggerDefaultsToStdout(t *testing.T) {
	l, err := NewLogger(Config{Level: "info", Format: "json"})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	l.WithContext(context.Background()).Info("started")
}

func TestNewLoggerWritesToFile(t *testing.T) {
	path := t.TempDir() + "/app.log"
	l, err := NewLogger(Config{Level: "debug", Format: "json", OutputPath: path, ErrorPath: path + ".err"})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	l.WithContext(context.Background()).Error("boom")
	_ = l.Sync()
}
