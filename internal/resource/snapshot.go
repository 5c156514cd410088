// Package resource samples host capacity and turns it into scheduling
// advice: how many workers the host can sustain, which resources are
// under pressure, and whether a task's predicted footprint fits.
//
// Sampling reads procfs directly. On hosts without procfs the snapshot
// carries whatever could be gathered and zero values elsewhere;
// advisory outputs degrade accordingly instead of failing.
package resource

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// PerWorkerFootprintMB is the assumed memory cost of one worker,
// used to bound worker counts against available memory.
const PerWorkerFootprintMB = 512.0

// CPUInfo describes processor capacity and current usage.
type CPUInfo struct {
	Cores    int
	SpeedMHz float64
	// Usage is the fraction of non-idle ticks since the previous
	// sample, in [0,1]. Zero until two samples exist.
	Usage float64
}

// MemoryInfo describes memory capacity in megabytes.
type MemoryInfo struct {
	TotalMB     float64
	FreeMB      float64
	AvailableMB float64
	UsedMB      float64
}

// NetworkInfo describes the host's network interfaces.
type NetworkInfo struct {
	Interfaces []string
	// EstimatedBandwidthMbps is a coarse estimate from interface count;
	// procfs exposes no direct link-speed signal.
	EstimatedBandwidthMbps float64
}

// DiskInfo describes disk pressure as a utilization fraction.
type DiskInfo struct {
	Usage float64
}

// Snapshot is a point-in-time view of host capacity.
type Snapshot struct {
	CPU     CPUInfo
	Memory  MemoryInfo
	Network NetworkInfo
	Disk    DiskInfo
	Taken   time.Time
}

// cpuTicks holds the aggregate tick counters from /proc/stat.
type cpuTicks struct {
	idle  uint64
	total uint64
}

func readCPUTicks() (cpuTicks, error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return cpuTicks{}, fmt.Errorf("reading cpu ticks: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}
		var ticks cpuTicks
		for i, field := range fields[1:] {
			v, err := strconv.ParseUint(field, 10, 64)
			if err != nil {
				continue
			}
			ticks.total += v
			// idle and iowait count as idle time.
			if i == 3 || i == 4 {
				ticks.idle += v
			}
		}
		return ticks, nil
	}
	return cpuTicks{}, fmt.Errorf("reading cpu ticks: no aggregate cpu line")
}

// cpuUsageBetween computes the non-idle fraction between two samples.
func cpuUsageBetween(prev, cur cpuTicks) float64 {
	dt := cur.total - prev.total
	if prev.total == 0 || dt == 0 {
		return 0
	}
	di := cur.idle - prev.idle
	usage := 1 - float64(di)/float64(dt)
	if usage < 0 {
		return 0
	}
	if usage > 1 {
		return 1
	}
	return usage
}

func readCPUSpeedMHz() float64 {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "cpu MHz") {
			continue
		}
		if _, value, ok := strings.Cut(line, ":"); ok {
			if mhz, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
				return mhz
			}
		}
	}
	return 0
}

func readMemoryInfo() MemoryInfo {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return MemoryInfo{}
	}
	defer f.Close()

	values := make(map[string]float64, 4)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, rest, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		kb, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			continue
		}
		values[key] = kb / 1024
	}

	info := MemoryInfo{
		TotalMB:     values["MemTotal"],
		FreeMB:      values["MemFree"],
		AvailableMB: values["MemAvailable"],
	}
	if info.AvailableMB == 0 {
		info.AvailableMB = info.FreeMB
	}
	info.UsedMB = info.TotalMB - info.AvailableMB
	if info.UsedMB < 0 {
		info.UsedMB = 0
	}
	return info
}

func readNetworkInfo() NetworkInfo {
	var info NetworkInfo
	ifaces, err := net.Interfaces()
	if err != nil {
		return info
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		info.Interfaces = append(info.Interfaces, iface.Name)
	}
	info.EstimatedBandwidthMbps = float64(len(info.Interfaces)) * 1000
	return info
}

// takeSnapshot gathers a snapshot given the previous cpu tick sample.
func takeSnapshot(prev cpuTicks) (Snapshot, cpuTicks) {
	snap := Snapshot{
		CPU: CPUInfo{
			Cores:    runtime.NumCPU(),
			SpeedMHz: readCPUSpeedMHz(),
		},
		Memory:  readMemoryInfo(),
		Network: readNetworkInfo(),
		Disk:    DiskInfo{Usage: readDiskUsage()},
		Taken:   time.Now(),
	}
	cur, err := readCPUTicks()
	if err == nil {
		snap.CPU.Usage = cpuUsageBetween(prev, cur)
	} else {
		cur = prev
	}
	return snap, cur
}
