//go:build linux

package sysinfo

import "golang.org/x/sys/unix"

func totalRAMGB() (int, bool) {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return 0, false
	}
	total := uint64(si.Totalram) * uint64(si.Unit)
	return int(total >> 30), true
}
