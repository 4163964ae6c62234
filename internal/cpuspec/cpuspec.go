// Package cpuspec reports the host CPU for benchmark output and spin-wait
// planning.
package cpuspec

import (
	"fmt"
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// CPUSpec contains information about CPU specifications
type CPUSpec struct {
	BrandName     string
	VendorID      string
	PhysicalCores int
	LogicalCores  int
	// AvailableCPUs is what the Go scheduler may use, which is lower than
	// LogicalCores inside containers and VMs with CPU limits.
	AvailableCPUs int
	Hybrid        bool
}

// GetCPUSpec returns the specifications of the CPU the process runs on.
func GetCPUSpec() CPUSpec {
	return newCPUSpec(cpuid.CPU, runtime.GOMAXPROCS(0))
}

func newCPUSpec(info cpuid.CPUInfo, available int) CPUSpec {
	spec := CPUSpec{
		BrandName:     info.BrandName,
		VendorID:      info.VendorID.String(),
		PhysicalCores: info.PhysicalCores,
		LogicalCores:  info.LogicalCores,
		AvailableCPUs: available,
		Hybrid:        info.Supports(cpuid.HYBRID_CPU),
	}
	if spec.BrandName == "" {
		spec.BrandName = "unknown"
	}
	// cpuid reports zero on platforms it cannot probe
	if spec.LogicalCores <= 0 {
		spec.LogicalCores = available
	}
	if spec.PhysicalCores <= 0 {
		spec.PhysicalCores = spec.LogicalCores
	}
	return spec
}

// SupportsSpin reports whether a busy-polling worker can run without
// starving the audio goroutine. It needs at least two schedulable CPUs.
func (c CPUSpec) SupportsSpin() bool {
	return min(c.LogicalCores, c.AvailableCPUs) > 1
}

// String formats the spec as a single human readable line.
func (c CPUSpec) String() string {
	s := fmt.Sprintf("%s (%d cores, %d threads, %d available)",
		c.BrandName, c.PhysicalCores, c.LogicalCores, c.AvailableCPUs)
	if c.Hybrid {
		s += " hybrid"
	}
	return s
}
