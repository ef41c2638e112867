//go:build profile

package prof

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
)

// Enabled reports whether profiling is compiled in.
const Enabled = true

var (
	mutex  sync.Mutex
	active *Session
)

// Session is a running set of profiles.
type Session struct {
	cfg Config
	cpu *os.File
}

// Start begins collecting the profiles named by cfg.
func Start(cfg Config) (*Session, error) {
	mutex.Lock()
	defer mutex.Unlock()

	if active != nil {
		return nil, ErrActive
	}

	s := &Session{cfg: cfg}
	if cfg.CPU != "" {
		f, err := os.Create(cfg.CPU)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, err
		}
		s.cpu = f
	}
	if cfg.Block != "" {
		runtime.SetBlockProfileRate(1)
	}
	if cfg.Mutex != "" {
		runtime.SetMutexProfileFraction(1)
	}

	active = s
	return s, nil
}

// Stop ends CPU sampling and writes the snapshot profiles. Stopping a
// stopped session does nothing.
func (s *Session) Stop() error {
	mutex.Lock()
	defer mutex.Unlock()

	if s == nil || active != s {
		return nil
	}
	active = nil

	var errs []error
	if s.cpu != nil {
		pprof.StopCPUProfile()
		errs = append(errs, s.cpu.Close())
		s.cpu = nil
	}
	if s.cfg.Heap != "" {
		runtime.GC()
		errs = append(errs, writeSnapshot("heap", s.cfg.Heap))
	}
	if s.cfg.Block != "" {
		errs = append(errs, writeSnapshot("block", s.cfg.Block))
		runtime.SetBlockProfileRate(0)
	}
	if s.cfg.Mutex != "" {
		errs = append(errs, writeSnapshot("mutex", s.cfg.Mutex))
		runtime.SetMutexProfileFraction(0)
	}
	return errors.Join(errs...)
}

func writeSnapshot(name, path string) error {
	p := pprof.Lookup(name)
	if p == nil {
		return fmt.Errorf("%s: %w", name, ErrInvalidProfile)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := p.WriteTo(f, 0); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
