//go:build profile

package prof

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSession(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		CPU:   filepath.Join(dir, "cpu.prof"),
		Heap:  filepath.Join(dir, "heap.prof"),
		Block: filepath.Join(dir, "block.prof"),
		Mutex: filepath.Join(dir, "mutex.prof"),
	}

	s, err := Start(cfg)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := Start(Config{}); !errors.Is(err, ErrActive) {
		t.Errorf("second Start() error = %v, want %v", err, ErrActive)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}

	for _, path := range []string{cfg.CPU, cfg.Heap, cfg.Block, cfg.Mutex} {
		if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
			t.Errorf("%s: not written (%v)", filepath.Base(path), err)
		}
	}
}

func TestStartInvalidPath(t *testing.T) {
	_, err := Start(Config{CPU: filepath.Join(t.TempDir(), "missing", "cpu.prof")})
	if err == nil {
		t.Fatal("Start() error = nil, want error for invalid path")
	}

	// A failed start leaves no session behind.
	s, err := Start(Config{})
	if err != nil {
		t.Fatalf("Start() after failure error = %v", err)
	}
	s.Stop()
}
