// Package sysinfo describes the host a solve ran on.
package sysinfo

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"

	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
)

var (
	once   sync.Once
	cached model.SysInfo
)

// Current returns the host's platform, CPU model and RAM. Probes that fail fall back to
// runtime values; the result is computed once per process.
func Current() model.SysInfo {
	once.Do(func() { cached = probe() })
	return cached
}

func probe() model.SysInfo {
	info := model.SysInfo{Platform: runtime.GOOS, CPU: runtime.GOARCH, RAM: "unknown"}
	if h, err := host.Info(); err == nil && h.Platform != "" {
		info.Platform = h.Platform
		if h.PlatformVersion != "" {
			info.Platform += " " + h.PlatformVersion
		}
	}
	if c, err := cpu.Info(); err == nil && len(c) > 0 && c[0].ModelName != "" {
		info.CPU = c[0].ModelName
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.RAM = FormatRAM(vm.Total)
	}
	return info
}

// FormatRAM renders a byte count as whole gigabytes.
func FormatRAM(total uint64) string {
	return fmt.Sprintf("%d GB", total/1024/1024/1024)
}
