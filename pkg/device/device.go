// Package device collects a best-effort summary of the host the proxy and
// its model server run on. The summary is informational only; every field
// may be empty on platforms where it cannot be read.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// GPU describes one graphics adapter. No portable probe exists, so the list
// is usually empty.
type GPU struct {
	Name        string `json:"name"`
	MemoryTotal uint64 `json:"memory_total"`
}

// Info is the host summary returned by /info/device.
type Info struct {
	Detected bool `json:"detected"`

	CPUBrand   string  `json:"cpu_brand"`
	CPUName    string  `json:"cpu_name"`
	CPUFreqMHz float64 `json:"cpu_freq"`
	CPUThreads int     `json:"cpu_threads"`
	CPUCores   int     `json:"cpu_cores"`
	CPUArch    string  `json:"cpu_arch"`

	RAMInstalled uint64 `json:"ram_installed"`
	RAMAvailable uint64 `json:"ram_available"`

	HDDTotal uint64 `json:"hdd_total"`
	HDDUsed  uint64 `json:"hdd_used"`
	HDDFree  uint64 `json:"hdd_free"`

	GPUs []GPU `json:"gpus"`

	OSName    string `json:"os_name"`
	OSVersion string `json:"os_version"`
	OSDetails string `json:"os_details"`
	Hostname  string `json:"hostname"`

	CollectMillis int64  `json:"collect_ms"`
	Description   string `json:"description"`
}

// Collect reads the host summary. Individual probe failures are logged at
// debug level and leave their fields empty; Detected is false only when no
// probe succeeded.
func Collect(ctx context.Context, logger *slog.Logger) Info {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	info := Info{
		CPUArch: runtime.GOARCH,
		GPUs:    []GPU{},
	}
	probes := 0

	if stats, err := cpu.InfoWithContext(ctx); err == nil && len(stats) > 0 {
		info.CPUBrand = stats[0].VendorID
		info.CPUName = strings.TrimSpace(stats[0].ModelName)
		info.CPUFreqMHz = stats[0].Mhz
		probes++
	} else if err != nil {
		logger.Debug("cpu info unavailable", "error", err)
	}

	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.CPUThreads = n
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		info.CPUCores = n
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.RAMInstalled = vm.Total
		info.RAMAvailable = vm.Available
		probes++
	} else {
		logger.Debug("memory info unavailable", "error", err)
	}

	if usage, err := disk.UsageWithContext(ctx, rootPath()); err == nil {
		info.HDDTotal = usage.Total
		info.HDDUsed = usage.Used
		info.HDDFree = usage.Free
		probes++
	} else {
		logger.Debug("disk info unavailable", "error", err)
	}

	if h, err := host.InfoWithContext(ctx); err == nil {
		info.OSName = h.OS
		info.OSVersion = strings.TrimSpace(h.Platform + " " + h.PlatformVersion)
		info.OSDetails = fmt.Sprintf("%s %s (%s)", h.OS, h.KernelVersion, h.KernelArch)
		info.Hostname = h.Hostname
		probes++
	} else {
		info.OSName = runtime.GOOS
		logger.Debug("host info unavailable", "error", err)
	}

	info.Detected = probes > 0
	info.CollectMillis = time.Since(start).Milliseconds()
	info.Description = Describe(info)

	return info
}

func rootPath() string {
	if runtime.GOOS == "windows" {
		return `C:\`
	}
	return "/"
}

// Describe renders a short multi-line summary of info.
func Describe(info Info) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "CPU: %s - %s %d threads\n", orUnknown(info.CPUName), FormatFrequency(info.CPUFreqMHz), info.CPUThreads)
	fmt.Fprintf(&sb, "RAM: %s\n", humanize.IBytes(info.RAMInstalled))
	fmt.Fprintf(&sb, "HDD: Total: %s Free: %s\n", humanize.IBytes(info.HDDTotal), humanize.IBytes(info.HDDFree))

	if len(info.GPUs) == 0 {
		sb.WriteString("GPU: none detected\n")
	} else {
		gpu := info.GPUs[0]
		fmt.Fprintf(&sb, "GPU: %s (%s)\n", gpu.Name, humanize.IBytes(gpu.MemoryTotal))
	}

	fmt.Fprintf(&sb, "OS: %s %s", orUnknown(info.OSName), info.OSVersion)

	return strings.TrimSpace(sb.String())
}

// FormatFrequency formats a frequency given in MHz.
func FormatFrequency(mhz float64) string {
	switch {
	case mhz <= 0:
		return "unknown frequency"
	case mhz >= 1000:
		return fmt.Sprintf("%.2f GHz", mhz/1000)
	default:
		return fmt.Sprintf("%.0f MHz", mhz)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// Inventory caches the host summary. The first Get collects it; every later
// call returns the same value.
type Inventory struct {
	once    sync.Once
	info    Info
	collect func(ctx context.Context) Info
}

// NewInventory creates an inventory backed by Collect.
func NewInventory(logger *slog.Logger) *Inventory {
	return NewInventoryFunc(func(ctx context.Context) Info { return Collect(ctx, logger) })
}

// NewInventoryFunc creates an inventory backed by an arbitrary collector.
func NewInventoryFunc(collect func(ctx context.Context) Info) *Inventory {
	return &Inventory{collect: collect}
}

// Get returns the cached summary, collecting it on first use.
func (inv *Inventory) Get(ctx context.Context) Info {
	inv.once.Do(func() {
		inv.info = inv.collect(ctx)
	})
	return inv.info
}
