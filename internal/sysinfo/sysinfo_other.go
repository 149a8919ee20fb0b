//go:build !linux

package sysinfo

func totalRAMGB() (int, bool) { return 0, false }
