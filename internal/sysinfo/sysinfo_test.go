package sysinfo

import "testing"

func TestThreads(t *testing.T) {
	if got := Threads(6); got != 6 {
		t.Errorf("Threads(6) = %d", got)
	}
	if got := Threads(0); got < 1 {
		t.Errorf("Threads(0) = %d, want at least one CPU", got)
	}
	if got := Threads(-3); got < 1 {
		t.Errorf("Threads(-3) = %d, want at least one CPU", got)
	}
}

func TestDefaultRAMGBFloor(t *testing.T) {
	if got := DefaultRAMGB(); got < 2 {
		t.Errorf("DefaultRAMGB() = %d, want >= 2", got)
	}
}
