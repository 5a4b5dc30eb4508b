// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestNew_FileLoggingWritesJSON(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Level: LevelDebug, LogDir: dir, Service: "explorer"})
	logger.Info("frame applied", "nodes", 12)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	name := "explorer_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}

	line := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)[0]
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		t.Fatalf("file output is not JSON: %v", err)
	}
	if record["msg"] != "frame applied" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record["service"] != "explorer" {
		t.Errorf("service = %v", record["service"])
	}
	if record["nodes"] != float64(12) {
		t.Errorf("nodes = %v", record["nodes"])
	}
}

func TestLogger_CloseIsIdempotent(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Service: "x"})
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestLogger_WithAttachesAttributes(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir, Service: "explorer"})
	child := logger.With("session_id", "abc123")
	child.Info("hello")
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	name := "explorer_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "abc123") {
		t.Error("derived logger attribute missing from output")
	}
}

func TestNew_BadLogDirDegradesToStderr(t *testing.T) {
	file := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// LogDir pointing at an existing file cannot be created as a dir.
	logger := New(Config{LogDir: filepath.Join(file, "logs"), Service: "x"})
	logger.Info("still works")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestDefault_ReturnsUsableLogger(t *testing.T) {
	logger := Default()
	logger.Debug("suppressed at info level")
	logger.Info("visible")
	if logger.Slog() == nil {
		t.Fatal("Slog() returned nil")
	}
}
