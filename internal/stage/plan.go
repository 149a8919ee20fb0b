// internal/stage/plan.go
package stage

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"shearwater/internal/workspace"
)

// corrKmer is the fixed k the read corrector indexes with, independent of
// the assembler ladder.
const corrKmer = 32

// Params carries everything needed to render a run's command script.
type Params struct {
	R1, R2        string // staged read file names
	Kmers         []int
	GenomeSize    int64
	ReadLen       int
	CPUs          int
	RAMGB         int
	Downsample    float64 // sampling fraction; outside (0,1) disables
	NoReadCorr    bool    // skip the read-correction stage
	NoPolish      bool    // skip the whole post-assembly polish chain
	Variant       string  // assembler output variant
	Scratch       string  // absolute path to disposable fast storage
	AssemblerOpts string  // extra assembler options, passed through verbatim
}

// Plan renders the pre-assembly and polish scripts for p. The split lets
// the orchestrator verify the draft assembly before polishing begins.
func Plan(p Params) (pre, polish []Descriptor) {
	cpus := strconv.Itoa(p.CPUs)
	r1, r2 := p.R1, p.R2

	if p.Downsample > 0 && p.Downsample < 1 {
		frac := strconv.FormatFloat(p.Downsample, 'f', 4, 64)
		pre = append(pre,
			Descriptor{
				Name:     "downsample-r1",
				Desc:     fmt.Sprintf("Subsampling %s by %s to cap depth", r1, frac),
				Commands: [][]string{{"seqtk", "sample", r1, frac}},
				Inputs:   []string{r1},
				Outputs:  []string{workspace.SubR1},
				StdoutTo: workspace.SubR1,
			},
			Descriptor{
				Name:     "downsample-r2",
				Desc:     fmt.Sprintf("Subsampling %s by %s to cap depth", r2, frac),
				Commands: [][]string{{"seqtk", "sample", r2, frac}},
				Inputs:   []string{r2},
				Outputs:  []string{workspace.SubR2},
				StdoutTo: workspace.SubR2,
			},
		)
		r1, r2 = workspace.SubR1, workspace.SubR2
	}

	if !p.NoReadCorr {
		cor1, cor2 := workspace.CorrectedName(r1), workspace.CorrectedName(r2)
		pre = append(pre, Descriptor{
			Name: "correct",
			Desc: "Correcting sequencing errors in the reads",
			Commands: [][]string{{
				"lighter", "-od", ".", "-r", r1, "-r", r2,
				"-K", strconv.Itoa(corrKmer), strconv.FormatInt(p.GenomeSize, 10),
				"-t", cpus, "-maxcor", "1",
			}},
			Inputs:  []string{r1, r2},
			Outputs: []string{cor1, cor2},
		})
		r1, r2 = cor1, cor2
	}

	merged := "flash.extendedFrags.fastq.gz"
	un1 := "flash.notCombined_1.fastq.gz"
	un2 := "flash.notCombined_2.fastq.gz"
	pre = append(pre, Descriptor{
		Name: "merge",
		Desc: "Merging overlapping read pairs",
		Commands: [][]string{{
			"flash", "-m", "20", "-M", strconv.Itoa(p.ReadLen),
			"-d", ".", "-o", "flash", "-z", "-t", cpus, r1, r2,
		}},
		Inputs:  []string{r1, r2},
		Outputs: []string{merged, un1, un2},
	})

	draft := filepath.Join(workspace.AssemblerDir, p.Variant+".fasta")
	asm := []string{
		"spades.py", "-1", un1, "-2", un2, "--merged", merged,
		"--only-assembler", "--threads", cpus, "--memory", strconv.Itoa(p.RAMGB),
		"-o", workspace.AssemblerDir, "--tmp-dir", p.Scratch,
		"-k", joinInts(p.Kmers),
	}
	if opts := strings.Fields(p.AssemblerOpts); len(opts) > 0 {
		asm = append(asm, opts...)
	}
	pre = append(pre, Descriptor{
		Name:     "assemble",
		Desc:     "Assembling the reads with SPAdes",
		Commands: [][]string{asm},
		Inputs:   []string{merged, un1, un2},
		Outputs:  []string{draft},
	})

	if p.NoPolish {
		return pre, nil
	}

	st := sortThreads(p.CPUs)
	polish = []Descriptor{
		{
			Name:     "index-draft",
			Desc:     "Indexing the draft assembly",
			Commands: [][]string{{"bwa", "index", draft}},
			Inputs:   []string{draft},
		},
		{
			Name: "align",
			Desc: "Aligning the reads back to the draft",
			Commands: [][]string{
				{"bwa", "mem", "-v", "3", "-x", "intractg", "-t", cpus, draft, r1, r2},
				{
					"samtools", "sort",
					"--threads", strconv.Itoa(st),
					"-m", fmt.Sprintf("%dm", sortMemMB(p.RAMGB, st)),
					"--reference", draft,
					"-T", filepath.Join(p.Scratch, "samtools"),
					"-o", workspace.BAMFile,
				},
			},
			Inputs:  []string{draft, r1, r2},
			Outputs: []string{workspace.BAMFile},
		},
		{
			Name:     "index-bam",
			Desc:     "Indexing the alignments",
			Commands: [][]string{{"samtools", "index", workspace.BAMFile}},
			Inputs:   []string{workspace.BAMFile},
			Outputs:  []string{workspace.BAMFile + ".bai"},
		},
		{
			Name: "polish",
			Desc: "Polishing the draft with Pilon",
			Commands: [][]string{{
				"pilon", "--genome", draft, "--frags", workspace.BAMFile,
				"--minmq", "60", "--minqual", "3", "--fix", "bases",
				"--output", "pilon", "--threads", cpus,
				"--changes", "--mindepth", "0.25",
			}},
			Inputs:  []string{draft, workspace.BAMFile, workspace.BAMFile + ".bai"},
			Outputs: []string{workspace.PolishedFile, workspace.ChangesFile},
		},
	}
	return pre, polish
}

// sortThreads keeps the coordinate sort from starving the aligner feeding
// it: a quarter of the CPU budget, floor of one.
func sortThreads(cpus int) int {
	n := cpus / 4
	if n < 1 {
		n = 1
	}
	return n
}

// sortMemMB splits half the memory budget across the sort threads.
func sortMemMB(ramGB, threads int) int {
	mb := ramGB * 1024 / 2 / threads
	if mb < 256 {
		mb = 256
	}
	return mb
}

func joinInts(ks []int) string {
	parts := make([]string, len(ks))
	for i, k := range ks {
		parts[i] = strconv.Itoa(k)
	}
	return strings.Join(parts, ",")
}
