package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kataras/golog"

	"presenca/internal/config"
)

func TestRing_KeepsLastLines(t *testing.T) {
	r := NewRing(3)
	for _, s := range []string{"a\n", "b\nc\n", "d\n"} {
		if _, err := r.Write([]byte(s)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	lines := r.Lines()
	want := []string{"b", "c", "d"}
	if len(lines) != len(want) {
		t.Fatalf("Expected %d lines, got %d (%v)", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestSetup_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presenca.log")
	ring := NewRing(10)

	closer, err := Setup(config.LogConfig{Level: "debug", File: path}, ring)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer func() { _ = closer.Close() }()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected log file to exist: %v", err)
	}
}

func TestSetup_BadPath(t *testing.T) {
	_, err := Setup(config.LogConfig{File: filepath.Join(t.TempDir(), "missing", "x.log")})
	if err == nil {
		t.Fatal("Expected error for unwritable path")
	}
	if !strings.Contains(err.Error(), "ログファイル") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSetupTerminal_RingOnly(t *testing.T) {
	ring := NewRing(10)
	closer, err := SetupTerminal(config.LogConfig{Level: "info"}, ring)
	if err != nil {
		t.Fatalf("SetupTerminal failed: %v", err)
	}
	defer func() { _ = closer.Close() }()
	defer golog.SetOutput(os.Stderr)

	golog.Info("câmera pronta")

	lines := ring.Lines()
	if len(lines) == 0 || !strings.Contains(lines[len(lines)-1], "câmera pronta") {
		t.Errorf("Expected log line in ring, got %v", lines)
	}
}
