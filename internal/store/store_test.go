package store

import (
	"path/filepath"
	"testing"
)

func TestLoadBeforeAnySaveReturnsZeroState(t *testing.T) {
	t.Parallel()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	state, err := s.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if state != (State{}) {
		t.Errorf("Load before Save = %+v, want zero value", state)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	t.Parallel()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	want := State{Halted: true, Simulate: true, LastBid: 100.5, LastAsk: 101.5, WaitingInfo: "balance below limit"}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestSaveOverwritesPreviousState(t *testing.T) {
	t.Parallel()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := s.Save(State{LastBid: 1}); err != nil {
		t.Fatalf("first Save returned error: %v", err)
	}
	if err := s.Save(State{LastBid: 2}); err != nil {
		t.Fatalf("second Save returned error: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got.LastBid != 2 {
		t.Errorf("LastBid = %v, want 2 after overwrite", got.LastBid)
	}
}

func TestSaveLeavesNoTmpFileBehind(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := s.Save(State{Halted: true}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("expected no leftover .tmp files after Save, found %v", matches)
	}
}

func TestNewCreatesDirectory(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "nested", "store")
	if _, err := New(dir); err != nil {
		t.Fatalf("New returned error: %v", err)
	}
}
