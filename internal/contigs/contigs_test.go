package contigs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadUnwrapsAndStripsPolishSuffix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draft.fa")
	fasta := ">NODE_1_length_12_cov_3.0_pilon\nACGTAC\nGTACGT\n>NODE_2_length_4_cov_1.0\nTTTT\n"
	if err := os.WriteFile(path, []byte(fasta), 0644); err != nil {
		t.Fatal(err)
	}

	seqs, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(seqs) != 2 {
		t.Fatalf("loaded %d records, want 2", len(seqs))
	}
	if got := seqs["NODE_1_length_12_cov_3.0"]; got != "ACGTACGTACGT" {
		t.Errorf("wrapped sequence = %q", got)
	}
	if got := seqs["NODE_2_length_4_cov_1.0"]; got != "TTTT" {
		t.Errorf("second sequence = %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.fa")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestProcessRanksFiltersRenames(t *testing.T) {
	seqs := map[string]string{
		"NODE_3": strings.Repeat("A", 200),
		"NODE_1": strings.Repeat("C", 500),
		"NODE_2": strings.Repeat("G", 500),
		"NODE_4": strings.Repeat("T", 90),
	}
	out := Process(seqs, 100, "contig%05d")
	if len(out) != 3 {
		t.Fatalf("kept %d contigs, want 3", len(out))
	}
	want := []struct {
		name, origin string
		length       int
	}{
		{"contig00001", "NODE_1", 500},
		{"contig00002", "NODE_2", 500},
		{"contig00003", "NODE_3", 200},
	}
	for i, w := range want {
		c := out[i]
		if c.Name != w.name || c.Origin != w.origin || len(c.Seq) != w.length {
			t.Errorf("rank %d = {%s %s %d}, want %+v", i+1, c.Name, c.Origin, len(c.Seq), w)
		}
	}
}

func TestProcessFilterAndTotals(t *testing.T) {
	seqs := map[string]string{
		"a": strings.Repeat("A", 50),
		"b": strings.Repeat("C", 200),
		"c": strings.Repeat("G", 10),
		"d": strings.Repeat("T", 500),
	}
	out := Process(seqs, 100, "contig%05d")
	if len(out) != 2 || out[0].Name != "contig00001" || out[1].Name != "contig00002" {
		t.Fatalf("survivors = %+v", out)
	}
	if len(out[0].Seq) != 500 || len(out[1].Seq) != 200 {
		t.Errorf("rank order = %d, %d", len(out[0].Seq), len(out[1].Seq))
	}
	if st := Summarize(out); st.TotalBP != 700 {
		t.Errorf("total bases = %d, want 700", st.TotalBP)
	}
}

func TestProcessCustomNameFormat(t *testing.T) {
	out := Process(map[string]string{"n": "ACGT"}, 0, "ctg_%d")
	if len(out) != 1 || out[0].Name != "ctg_1" {
		t.Fatalf("got %+v", out)
	}
}

func TestWriteSingleLineRecords(t *testing.T) {
	var sb strings.Builder
	err := Write(&sb, []Contig{
		{Name: "contig00001", Origin: "NODE_1", Seq: "ACGTACGT"},
		{Name: "contig00002", Origin: "NODE_2", Seq: "TT"},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	want := ">contig00001 NODE_1\nACGTACGT\n>contig00002 NODE_2\nTT\n"
	if sb.String() != want {
		t.Errorf("output:\n%q\nwant:\n%q", sb.String(), want)
	}
}

func TestSummarize(t *testing.T) {
	mk := func(lens ...int) []Contig {
		var list []Contig
		for _, n := range lens {
			list = append(list, Contig{Seq: strings.Repeat("A", n)})
		}
		return list
	}
	cases := []struct {
		name string
		list []Contig
		want Stats
	}{
		{"single", mk(500), Stats{Count: 1, TotalBP: 500, N50: 500, Largest: 500}},
		{"half at first", mk(500, 300, 200), Stats{Count: 3, TotalBP: 1000, N50: 500, Largest: 500}},
		{"accumulates", mk(5, 4, 3, 2), Stats{Count: 4, TotalBP: 14, N50: 4, Largest: 5}},
		{"empty", nil, Stats{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Summarize(tc.list); got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestRoundTripThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contigs.fa")
	in := []Contig{{Name: "contig00001", Origin: "NODE_1", Seq: "ACGTACGTACGT"}}
	if err := WriteFile(path, in); err != nil {
		t.Fatalf("write file: %v", err)
	}
	seqs, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := seqs["contig00001"]; got != "ACGTACGTACGT" {
		t.Errorf("round trip = %q", got)
	}
}
