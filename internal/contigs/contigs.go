// internal/contigs/contigs.go
package contigs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
)

// polishSuffix is appended to sequence names by the polisher; stripping it
// restores the assembler's identifiers.
const polishSuffix = "_pilon"

// Contig is one renamed output sequence.
type Contig struct {
	Name   string // rank-derived name, e.g. contig00001
	Origin string // assembler identifier the sequence came from
	Seq    string
}

// Stats summarizes an assembly.
type Stats struct {
	Count   int
	TotalBP int
	N50     int
	Largest int
}

// Load reads a FASTA assembly into a map keyed by original identifier.
func Load(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tmpl := linear.NewSeq("", nil, alphabet.DNA)
	sc := seqio.NewScanner(fasta.NewReader(f, tmpl))
	seqs := make(map[string]string)
	for sc.Next() {
		s := sc.Seq().(*linear.Seq)
		id := strings.TrimSuffix(s.Name(), polishSuffix)
		seqs[id] = s.Seq.String()
	}
	if err := sc.Error(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return seqs, nil
}

// Process ranks sequences by descending length (ties broken by identifier),
// drops those shorter than minLen, and renames survivors with nameFormat
// applied to their 1-based rank. Short sequences always rank below long
// ones, so survivor numbering stays consecutive.
func Process(seqs map[string]string, minLen int, nameFormat string) []Contig {
	ids := make([]string, 0, len(seqs))
	for id := range seqs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := seqs[ids[i]], seqs[ids[j]]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return ids[i] < ids[j]
	})

	var out []Contig
	for _, id := range ids {
		s := seqs[id]
		if len(s) < minLen {
			continue
		}
		out = append(out, Contig{
			Name:   fmt.Sprintf(nameFormat, len(out)+1),
			Origin: id,
			Seq:    s,
		})
	}
	return out
}

// Write emits records as ">name origin" headers with the whole sequence on
// a single line.
func Write(w io.Writer, list []Contig) error {
	for _, c := range list {
		if _, err := fmt.Fprintf(w, ">%s %s\n%s\n", c.Name, c.Origin, c.Seq); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes the final assembly to path.
func WriteFile(path string, list []Contig) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := Write(w, list); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Summarize computes count, span, N50 and largest contig length.
func Summarize(list []Contig) Stats {
	st := Stats{Count: len(list)}
	lens := make([]int, 0, len(list))
	for _, c := range list {
		n := len(c.Seq)
		st.TotalBP += n
		if n > st.Largest {
			st.Largest = n
		}
		lens = append(lens, n)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(lens)))
	var acc int
	for _, n := range lens {
		acc += n
		if acc >= st.TotalBP/2 {
			st.N50 = n
			break
		}
	}
	return st
}
