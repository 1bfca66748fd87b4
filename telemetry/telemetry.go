/*
Package telemetry reports device memory and utilization around
operator applications. It is purely observational: nothing here can
affect the numerical path, and every failure is reported as a status
error rather than a fatal condition.

State is held in an explicit Session with an open/close lifecycle; a
session that was never opened, or was closed, answers every query with
ErrNotInitialized instead of fabricating values.
*/
package telemetry

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

var ErrNotInitialized = errors.New("telemetry session not initialized")

// MemoryStats is one device's memory occupancy at sample time.
type MemoryStats struct {
	Device int
	Used   uint64 // bytes
	Total  uint64 // bytes
}

// BusyStats is one device's utilization at sample time.
type BusyStats struct {
	Device  int
	Percent float64
}

// Backend answers per device queries. The host backend is the default;
// accelerator backends plug in through the same interface.
type Backend interface {
	Devices() int
	Memory(device int) (used, total uint64, err error)
	Busy(device int) (percent float64, err error)
}

// Options configures a session. Rank tags every report with the
// caller's distributed process rank; Backend defaults to the host
// backend when nil.
type Options struct {
	Rank    int
	Backend Backend
}

type Session struct {
	mu      sync.Mutex
	rank    int
	backend Backend
	open    bool
}

// Open starts a telemetry session.
func Open(opts Options) (*Session, error) {
	be := opts.Backend
	if be == nil {
		be = NewHostBackend()
	}
	return &Session{rank: opts.Rank, backend: be, open: true}, nil
}

// Close ends the session. Further queries return ErrNotInitialized.
// Closing twice is harmless.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

func (s *Session) Rank() int { return s.rank }

// Memory samples memory used and total for every monitored device.
func (s *Session) Memory() ([]MemoryStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil, ErrNotInitialized
	}
	stats := make([]MemoryStats, 0, s.backend.Devices())
	for d := 0; d < s.backend.Devices(); d++ {
		used, total, err := s.backend.Memory(d)
		if err != nil {
			return nil, fmt.Errorf("memory query for device %d: %w", d, err)
		}
		stats = append(stats, MemoryStats{Device: d, Used: used, Total: total})
	}
	return stats, nil
}

// Busy samples the utilization percentage of every monitored device.
func (s *Session) Busy() ([]BusyStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil, ErrNotInitialized
	}
	stats := make([]BusyStats, 0, s.backend.Devices())
	for d := 0; d < s.backend.Devices(); d++ {
		pct, err := s.backend.Busy(d)
		if err != nil {
			return nil, fmt.Errorf("busy query for device %d: %w", d, err)
		}
		stats = append(stats, BusyStats{Device: d, Percent: pct})
	}
	return stats, nil
}

// Report writes one line per device with memory and utilization,
// tagged with the caller supplied label and the session rank. Query
// failures are written as status lines, never returned as hard
// errors.
func (s *Session) Report(w io.Writer, label string) {
	mem, err := s.Memory()
	if err != nil {
		fmt.Fprintf(w, "%s Rank %d telemetry unavailable: %v\n", label, s.rank, err)
		return
	}
	busy, err := s.Busy()
	if err != nil {
		fmt.Fprintf(w, "%s Rank %d telemetry unavailable: %v\n", label, s.rank, err)
		return
	}
	for i, m := range mem {
		fmt.Fprintf(w, "%s Rank %d Device %d memory used %d / %d bytes, busy %.1f%%\n",
			label, s.rank, m.Device, m.Used, m.Total, busy[i].Percent)
	}
}
