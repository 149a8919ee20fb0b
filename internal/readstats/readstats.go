// internal/readstats/readstats.go
package readstats

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/snappy"
	logging "github.com/op/go-logging"

	"shearwater/internal/execx"
)

var log = logging.MustGetLogger("shearwater")

// ErrEmptySample means the sampler produced no reads, so no assembly
// parameter can be derived from the input.
var ErrEmptySample = errors.New("read sample is empty")

// Stats summarizes a sampled slice of a read file.
type Stats struct {
	Reads  int
	MaxLen int
}

// Sampler wraps the external toolkit used to inspect read files.
type Sampler struct {
	Run    execx.Runner
	Stderr io.Writer // external tool chatter
}

// Sample draws up to n reads from reads with the external sampler and scans
// the 4-line records for the longest sequence. The raw sample is retained
// compressed at keepPath for later inspection.
func (s *Sampler) Sample(ctx context.Context, reads string, n int, keepPath string) (Stats, error) {
	keep, err := os.Create(keepPath)
	if err != nil {
		return Stats{}, err
	}
	zw := snappy.NewBufferedWriter(keep)

	type scanned struct {
		stats Stats
		err   error
	}
	pr, pw := io.Pipe()
	done := make(chan scanned, 1)
	go func() {
		st, err := Scan(pr)
		// Drain so the producing side never blocks after a scan error.
		_, _ = io.Copy(io.Discard, pr)
		done <- scanned{st, err}
	}()

	runErr := s.Run.Run(ctx, execx.Spec{
		Argv:   []string{"seqtk", "sample", reads, strconv.Itoa(n)},
		Stdout: io.MultiWriter(pw, zw),
		Stderr: s.Stderr,
	})
	_ = pw.Close()
	res := <-done

	if err := zw.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("retain sample %s: %w", keepPath, err)
	}
	if err := keep.Close(); err != nil && runErr == nil {
		runErr = err
	}
	switch {
	case runErr != nil:
		return Stats{}, runErr
	case res.err != nil:
		return Stats{}, res.err
	case res.stats.Reads == 0:
		return Stats{}, fmt.Errorf("%w: %s", ErrEmptySample, reads)
	}
	log.Infof("Sampled %d reads, longest is %d bp", res.stats.Reads, res.stats.MaxLen)
	return res.stats, nil
}

// Scan walks 4-line FASTQ records and reports the count and longest
// sequence line.
func Scan(r io.Reader) (Stats, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	var st Stats
	for line := 0; sc.Scan(); line++ {
		if line%4 != 1 {
			continue
		}
		st.Reads++
		b := sc.Bytes()
		n := len(b)
		if n > 0 && b[n-1] == '\r' {
			n--
		}
		if n > st.MaxLen {
			st.MaxLen = n
		}
	}
	if err := sc.Err(); err != nil {
		return Stats{}, err
	}
	return st, nil
}

// TotalBases reports the base count of a read file by parsing the ALL row
// of the external composition summary.
func (s *Sampler) TotalBases(ctx context.Context, reads string) (int64, error) {
	var out bytes.Buffer
	err := s.Run.Run(ctx, execx.Spec{
		Argv:   []string{"seqtk", "fqchk", reads},
		Stdout: &out,
		Stderr: s.Stderr,
	})
	if err != nil {
		return 0, err
	}
	return parseTotalBases(&out)
}

func parseTotalBases(r io.Reader) (int64, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && fields[0] == "ALL" {
			n, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return 0, fmt.Errorf("parse base count %q: %w", fields[1], err)
			}
			return n, nil
		}
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, errors.New("composition summary has no ALL row")
}
