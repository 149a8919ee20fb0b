// internal/kmer/kmer.go
package kmer

import (
	"errors"
	"fmt"
)

const (
	// MinK anchors the ladder; assembling below this k wastes time on
	// low-complexity repeats.
	MinK = 21
	// MaxK is the assembler's hard upper bound for k.
	MaxK = 127
)

// ErrDegenerateRange means the reads are too short to fit even one k value
// between the floor and the length-derived cap.
var ErrDegenerateRange = errors.New("degenerate k-mer range")

// Cap is the exclusive upper bound for auto-selected k: 80% of the read
// length, never above MaxK.
func Cap(readLen int) int {
	c := readLen * 8 / 10
	if c > MaxK {
		c = MaxK
	}
	return c
}

// Select derives the odd-k ladder for a read length and CPU count. The
// ladder starts at MinK and climbs by an even stride sized so that more
// CPUs yield more rungs, stopping strictly below Cap(readLen).
func Select(readLen, cpus int) ([]int, error) {
	kn := cpus
	if kn < 4 {
		kn = 4
	}
	ks := (readLen - MinK) / kn
	if ks < 5 {
		ks = 5
	}
	if ks%2 == 1 {
		ks++
	}

	var ladder []int
	for k := MinK; k < Cap(readLen); k += ks {
		ladder = append(ladder, k)
	}
	if len(ladder) == 0 {
		return nil, fmt.Errorf("%w: reads of %d bp cap k at %d", ErrDegenerateRange, readLen, Cap(readLen))
	}
	return ladder, nil
}
