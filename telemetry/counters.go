package telemetry

import (
	"fmt"
	"os"

	perf "github.com/hodgesds/perf-utils"
)

// Counters holds hardware event counts gathered around one profiled
// call, from the kernel perf_event interface.
type Counters struct {
	Cycles       uint64
	Instructions uint64
	CacheMisses  uint64
}

// ProfileCounters runs fn with hardware counter collection around it.
// The error from fn is returned as-is; counter collection failures
// (no perf_event permission, unsupported PMU) are reported as a
// telemetry error after fn has run, so the profiled work is never
// lost to an observability problem.
func (s *Session) ProfileCounters(fn func() error) (*Counters, error) {
	s.mu.Lock()
	open := s.open
	s.mu.Unlock()
	if !open {
		if err := fn(); err != nil {
			return nil, err
		}
		return nil, ErrNotInitialized
	}

	hwProf, profErr := perf.NewHardwareProfiler(os.Getpid(), -1, perf.AllHardwareProfilers)
	if profErr != nil && (hwProf == nil || !hwProf.HasProfilers()) {
		if err := fn(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("hardware counters unavailable: %w", profErr)
	}
	defer hwProf.Close()

	if err := hwProf.Start(); err != nil {
		if ferr := fn(); ferr != nil {
			return nil, ferr
		}
		return nil, fmt.Errorf("hardware counters unavailable: %w", err)
	}
	fnErr := fn()
	profile := &perf.HardwareProfile{}
	readErr := hwProf.Profile(profile)
	hwProf.Stop()
	if fnErr != nil {
		return nil, fnErr
	}
	if readErr != nil {
		return nil, fmt.Errorf("hardware counter read failed: %w", readErr)
	}

	c := &Counters{}
	if profile.CPUCycles != nil {
		c.Cycles = *profile.CPUCycles
	}
	if profile.Instructions != nil {
		c.Instructions = *profile.Instructions
	}
	if profile.CacheMisses != nil {
		c.CacheMisses = *profile.CacheMisses
	}
	return c, nil
}
