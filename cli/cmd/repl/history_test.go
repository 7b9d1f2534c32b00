package repl

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHistory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), HistoryFile)

	h := NewHistory(path)
	if err := h.Load(); err != nil {
		t.Fatalf("Load() on missing file failed: %v", err)
	}

	for _, e := range []HistoryEntry{
		{Line: "1 + 2", Mode: modeEval},
		{Line: "list", Mode: modeCtrl},
		{Line: "  1 + 2  ", Mode: modeEval}, // duplicate, moved to end
		{Line: "list", Mode: modeEval},
		{Line: "list", Mode: modeEval}, // repeat of last, ignored
		{Line: "   ", Mode: modeEval},
	} {
		if err := h.Add(e.Line, e.Mode); err != nil {
			t.Fatalf("Add(%q) failed: %v", e.Line, err)
		}
	}

	want := []HistoryEntry{
		{Line: "list", Mode: modeCtrl},
		{Line: "1 + 2", Mode: modeEval},
		{Line: "list", Mode: modeEval},
	}

	if diff := cmp.Diff(want, h.Entries()); diff != "" {
		t.Errorf("Entries() mismatch (-want +got):\n%s", diff)
	}

	src, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff("C:list\nE:1 + 2\nE:list\n", string(src)); diff != "" {
		t.Errorf("history file mismatch (-want +got):\n%s", diff)
	}

	reloaded := NewHistory(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if diff := cmp.Diff(want, reloaded.Entries()); diff != "" {
		t.Errorf("reloaded Entries() mismatch (-want +got):\n%s", diff)
	}

	if _, err := reloaded.Entry(3); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Entry(3) error = %v, want ErrOutOfBounds", err)
	}
}

func TestHistoryLegacyLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), HistoryFile)
	if err := os.WriteFile(path, []byte("plain\n\nC:quit\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	h := NewHistory(path)
	if err := h.Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	want := []HistoryEntry{
		{Line: "plain", Mode: modeEval},
		{Line: "quit", Mode: modeCtrl},
	}

	if diff := cmp.Diff(want, h.Entries()); diff != "" {
		t.Errorf("Entries() mismatch (-want +got):\n%s", diff)
	}
}

func TestHistoryInMemory(t *testing.T) {
	t.Parallel()

	h := NewHistory("")
	if err := h.Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if err := h.Add("x", modeEval); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	if h.Len() != 1 {
		t.Errorf("Len() = %d, want 1", h.Len())
	}
}
