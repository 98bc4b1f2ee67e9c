// Package sysinfo reports the processor and memory resources available for
// denoising runs.
package sysinfo

import (
	"fmt"
	"runtime"

	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"
)

// Info describes the host
type Info struct {
	CPU           string `json:"cpu"`
	PhysicalCores int    `json:"physicalCores"`
	LogicalCores  int    `json:"logicalCores"`
	AVX2          bool   `json:"avx2"`
	MemoryMB      int    `json:"memoryMB"`
	MaxThreads    int    `json:"maxThreads"`
}

// Detect queries cpuid and the operating system.
func Detect() Info {
	return Info{
		CPU:           cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		AVX2:          cpuid.CPU.AVX2(),
		MemoryMB:      int(memory.TotalMemory() / 1024 / 1024),
		MaxThreads:    runtime.GOMAXPROCS(0),
	}
}

// DefaultWorkers returns the number of worker goroutines to use when the
// configuration leaves it open: the logical core count, capped by GOMAXPROCS.
func (i Info) DefaultWorkers() int {
	workers := i.LogicalCores
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if i.MaxThreads > 0 && workers > i.MaxThreads {
		workers = i.MaxThreads
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// CheckBuffers returns an error when n float64 pixels would take more than
// 70% of physical memory. A host that does not report its memory passes.
func (i Info) CheckBuffers(pixels int) error {
	if i.MemoryMB <= 0 {
		return nil
	}
	neededMB := pixels * 8 / 1024 / 1024
	budgetMB := i.MemoryMB * 7 / 10
	if neededMB > budgetMB {
		return fmt.Errorf("denoising needs about %d MiB of buffers, only %d MiB of %d MiB are available",
			neededMB, budgetMB, i.MemoryMB)
	}
	return nil
}

func (i Info) String() string {
	return fmt.Sprintf("%s, %d physical / %d logical cores, AVX2=%v, %d MiB RAM, GOMAXPROCS=%d",
		i.CPU, i.PhysicalCores, i.LogicalCores, i.AVX2, i.MemoryMB, i.MaxThreads)
}
