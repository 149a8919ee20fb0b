package genomesize

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shearwater/internal/execx"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"3500000", 3500000},
		{"500000", 500000},
		{"4.1M", 4100000},
		{"4.1m", 4100000},
		{"0.5M", 500000},
		{"460k", 460000},
		{"10K", 10000},
		{"2G", 2000000000},
		{"3.2G", 3200000000},
		{" 2M ", 2000000},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if err != nil {
			t.Errorf("Parse(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "5X", "12Q", "-5M", "4.1.2M", "0", "M"} {
		if _, err := Parse(in); !errors.Is(err, ErrInvalidSizeFormat) {
			t.Errorf("Parse(%q): want ErrInvalidSizeFormat, got %v", in, err)
		}
	}
}

func TestMedianColumn(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int64
	}{
		{
			"odd row count",
			"Q\tk\tF0\tf1\tF1\tG\n" +
				"0\t21\t1\t2\t3\t4000000\n" +
				"0\t41\t1\t2\t3\t4200000\n" +
				"0\t61\t1\t2\t3\t3900000\n",
			4000000,
		},
		{
			"even row count averages middles",
			"Q\tk\tG\n" +
				"0\t21\t100\n" +
				"0\t41\t200\n" +
				"0\t61\t300\n" +
				"0\t81\t400\n",
			250,
		},
		{
			"skips unusable rows",
			"Q\tk\tG\n" +
				"0\t21\tnan\n" +
				"0\t41\t0\n" +
				"0\t61\t5000\n",
			5000,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := medianColumn(strings.NewReader(tc.in), "G")
			if err != nil {
				t.Fatalf("median: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestMedianColumnMissing(t *testing.T) {
	_, err := medianColumn(strings.NewReader("Q\tk\tF1\n0\t21\t5\n"), "G")
	if !errors.Is(err, ErrEstimationFailed) {
		t.Fatalf("want ErrEstimationFailed, got %v", err)
	}
}

func TestMedianColumnNoUsableRows(t *testing.T) {
	_, err := medianColumn(strings.NewReader("Q\tk\tG\n0\t21\tnan\n"), "G")
	if !errors.Is(err, ErrEstimationFailed) {
		t.Fatalf("want ErrEstimationFailed, got %v", err)
	}
}

func TestMedianColumnRejectsSubBaseMedian(t *testing.T) {
	in := "Q\tk\tG\n" +
		"0\t21\t0.2\n" +
		"0\t41\t0.3\n" +
		"0\t61\t0.4\n"
	got, err := medianColumn(strings.NewReader(in), "G")
	if !errors.Is(err, ErrEstimationFailed) {
		t.Fatalf("want ErrEstimationFailed, got size=%d err=%v", got, err)
	}
}

// estimatorFake plays both external tools: the counter only gets recorded,
// the estimator emits a canned table.
type estimatorFake struct {
	table string
	calls []string
}

func (f *estimatorFake) Run(_ context.Context, spec execx.Spec) error {
	f.calls = append(f.calls, spec.String())
	if spec.Argv[0] == "KmerStreamEstimate.py" && spec.Stdout != nil {
		_, _ = io.WriteString(spec.Stdout, f.table)
	}
	return nil
}

func (f *estimatorFake) RunPipe(context.Context, ...execx.Spec) error {
	return errors.New("no pipes expected")
}

func (f *estimatorFake) LookPath(prog string) (string, error) { return prog, nil }

func TestEstimate(t *testing.T) {
	dir := t.TempDir()
	counts := filepath.Join(dir, "kmers.tsv")
	est := filepath.Join(dir, "kmers_est.tsv")
	fake := &estimatorFake{table: "Q\tk\tG\n0\t21\t4100000\n0\t41\t4000000\n0\t61\t4300000\n"}

	e := &Estimator{Run: fake}
	size, err := e.Estimate(context.Background(), []int{21, 41, 61}, 4, counts, est, "R1.fq", "R2.fq")
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if size != 4100000 {
		t.Errorf("size = %d, want median 4100000", size)
	}

	if len(fake.calls) != 2 {
		t.Fatalf("want counter then estimator, got %v", fake.calls)
	}
	if !strings.Contains(fake.calls[0], "KmerStream -k 21,41,61 -t 4 --tsv") ||
		!strings.Contains(fake.calls[0], "R1.fq R2.fq") {
		t.Errorf("counter argv: %s", fake.calls[0])
	}
	if !strings.HasPrefix(fake.calls[1], "KmerStreamEstimate.py ") {
		t.Errorf("estimator argv: %s", fake.calls[1])
	}

	data, err := os.ReadFile(est)
	if err != nil {
		t.Fatalf("estimator table not retained: %v", err)
	}
	if !strings.Contains(string(data), "4100000") {
		t.Errorf("retained table looks wrong:\n%s", data)
	}
}
