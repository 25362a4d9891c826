package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingWriterRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	w, err := NewRotatingWriter(path, 16)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer w.Close()

	w.Write([]byte("first line that overflows\n"))
	w.Write([]byte("second\n"))

	backup, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("expected backup file: %v", err)
	}
	if !strings.Contains(string(backup), "first line") {
		t.Errorf("backup missing first write: %q", backup)
	}

	current, _ := os.ReadFile(path)
	if string(current) != "second\n" {
		t.Errorf("unexpected current log %q", current)
	}
}

func TestRotatingWriterTruncatesOversizedOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	os.WriteFile(path, []byte(strings.Repeat("x", 64)), 0644)

	w, err := NewRotatingWriter(path, 32)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer w.Close()

	info, _ := os.Stat(path)
	if info.Size() != 0 {
		t.Fatalf("expected truncated log, got %d bytes", info.Size())
	}
}
