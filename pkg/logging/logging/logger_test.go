package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestFromContextReturnsAttachedLogger(t *testing.T) {
	t.Parallel()

	l := zaptest.NewLogger(t)
	ctx := WithLogger(context.Background(), l)

	if got := FromContext(ctx); got != l {
		t.Fatalf("expected attached logger, got %p", got)
	}
}

func TestBuildWritesToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gateway.log")
	l, err := Build(Options{Env: "production", Level: "info", File: path})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	l.Info("hello", zap.String("k", "v"))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected log file to contain entries")
	}
}
