// internal/sysinfo/sysinfo.go
package sysinfo

import "runtime"

// Threads resolves a user thread request; 0 means all CPUs.
func Threads(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// DefaultRAMGB picks a memory budget for the assembler when the user gave
// none: three quarters of physical RAM, with a floor of 2 GB.
func DefaultRAMGB() int {
	total, ok := totalRAMGB()
	if !ok {
		return 2
	}
	gb := total * 3 / 4
	if gb < 2 {
		gb = 2
	}
	return gb
}
