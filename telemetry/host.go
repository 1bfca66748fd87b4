package telemetry

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// HostBackend treats the host as a single monitored device, sampling
// memory from /proc/meminfo and utilization from /proc/stat deltas.
type HostBackend struct {
	// SamplePeriod separates the two /proc/stat reads of a busy
	// query.
	SamplePeriod time.Duration
}

func NewHostBackend() *HostBackend {
	return &HostBackend{SamplePeriod: 50 * time.Millisecond}
}

func (hb *HostBackend) Devices() int { return 1 }

func (hb *HostBackend) Memory(device int) (used, total uint64, err error) {
	if device != 0 {
		return 0, 0, fmt.Errorf("host backend has no device %d", device)
	}
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	var memTotal, memAvailable uint64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		kb, perr := strconv.ParseUint(fields[1], 10, 64)
		if perr != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			memTotal = kb * 1024
		case "MemAvailable:":
			memAvailable = kb * 1024
		}
	}
	if err = sc.Err(); err != nil {
		return 0, 0, err
	}
	if memTotal == 0 {
		return 0, 0, fmt.Errorf("no MemTotal in /proc/meminfo")
	}
	return memTotal - memAvailable, memTotal, nil
}

func (hb *HostBackend) Busy(device int) (percent float64, err error) {
	if device != 0 {
		return 0, fmt.Errorf("host backend has no device %d", device)
	}
	busy0, total0, err := readCPUTicks()
	if err != nil {
		return 0, err
	}
	time.Sleep(hb.SamplePeriod)
	busy1, total1, err := readCPUTicks()
	if err != nil {
		return 0, err
	}
	if total1 == total0 {
		return 0, nil
	}
	return 100. * float64(busy1-busy0) / float64(total1-total0), nil
}

// readCPUTicks parses the aggregate cpu line of /proc/stat. Busy is
// everything but idle and iowait.
func readCPUTicks() (busy, total uint64, err error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}
		for i, fs := range fields[1:] {
			v, perr := strconv.ParseUint(fs, 10, 64)
			if perr != nil {
				return 0, 0, perr
			}
			total += v
			if i != 3 && i != 4 { // idle, iowait
				busy += v
			}
		}
		return busy, total, nil
	}
	if err = sc.Err(); err != nil {
		return 0, 0, err
	}
	return 0, 0, fmt.Errorf("no cpu line in /proc/stat")
}
