// internal/genomesize/genomesize.go
package genomesize

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	logging "github.com/op/go-logging"

	"shearwater/internal/execx"
)

var log = logging.MustGetLogger("shearwater")

var (
	// ErrInvalidSizeFormat rejects explicit genome sizes that are not a
	// number with an optional metric suffix.
	ErrInvalidSizeFormat = errors.New("invalid genome size format")
	// ErrEstimationFailed means the k-mer estimator produced no usable rows.
	ErrEstimationFailed = errors.New("genome size estimation failed")
)

var sizeRe = regexp.MustCompile(`^([0-9]*\.?[0-9]+)([kKmMgG]?)$`)

// Parse normalizes a genome size like "4.1M" or "3500000" to base pairs.
func Parse(s string) (int64, error) {
	m := sizeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSizeFormat, s)
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSizeFormat, s)
	}
	switch strings.ToLower(m[2]) {
	case "k":
		val *= 1e3
	case "m":
		val *= 1e6
	case "g":
		val *= 1e9
	}
	if val < 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSizeFormat, s)
	}
	return int64(math.Round(val)), nil
}

// Estimator derives a genome size from k-mer count distributions using the
// external counter and its companion estimator script.
type Estimator struct {
	Run    execx.Runner
	Stderr io.Writer
}

// estimateColumn is the estimator output column holding the per-k genome
// size estimate.
const estimateColumn = "G"

// Estimate counts k-mers for every k in ladder across the read files, feeds
// the table to the estimator, and reduces the per-k sizes to their median.
func (e *Estimator) Estimate(ctx context.Context, ladder []int, threads int, countsPath, estPath string, reads ...string) (int64, error) {
	ks := make([]string, len(ladder))
	for i, k := range ladder {
		ks[i] = strconv.Itoa(k)
	}
	argv := []string{"KmerStream", "-k", strings.Join(ks, ","), "-t", strconv.Itoa(threads), "--tsv", "-o", countsPath}
	argv = append(argv, reads...)
	if err := e.Run.Run(ctx, execx.Spec{Argv: argv, Stderr: e.Stderr}); err != nil {
		return 0, err
	}

	est, err := os.Create(estPath)
	if err != nil {
		return 0, err
	}
	runErr := e.Run.Run(ctx, execx.Spec{
		Argv:   []string{"KmerStreamEstimate.py", countsPath},
		Stdout: est,
		Stderr: e.Stderr,
	})
	if err := est.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return 0, runErr
	}

	f, err := os.Open(estPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	size, err := medianColumn(f, estimateColumn)
	if err != nil {
		return 0, err
	}
	log.Infof("Estimated genome size: %d bp", size)
	return size, nil
}

// medianColumn reduces the named column of a header-led table to the median
// of its finite positive values. A median that rounds below one base pair is
// rejected rather than returned as zero.
func medianColumn(r io.Reader, column string) (int64, error) {
	sc := bufio.NewScanner(r)
	col := -1
	var vals []float64
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if col < 0 {
			for i, name := range fields {
				if name == column {
					col = i
					break
				}
			}
			if col < 0 {
				return 0, fmt.Errorf("%w: no %q column in estimator output", ErrEstimationFailed, column)
			}
			continue
		}
		if col >= len(fields) {
			continue
		}
		v, err := strconv.ParseFloat(fields[col], 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			continue
		}
		vals = append(vals, v)
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return 0, fmt.Errorf("%w: no usable estimates", ErrEstimationFailed)
	}

	sort.Float64s(vals)
	mid := len(vals) / 2
	med := vals[mid]
	if len(vals)%2 == 0 {
		med = (vals[mid-1] + vals[mid]) / 2
	}
	size := int64(math.Round(med))
	if size < 1 {
		return 0, fmt.Errorf("%w: median %g is below 1 bp", ErrEstimationFailed, med)
	}
	return size, nil
}
