// internal/workspace/workspace.go
package workspace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("shearwater")

var (
	// ErrFolderExists guards against clobbering a previous run's results.
	ErrFolderExists = errors.New("output folder already exists")
	// ErrMissingDraft means the assembler finished without writing the
	// draft assembly the rest of the pipeline builds on.
	ErrMissingDraft = errors.New("draft assembly not found")
)

// Fixed file names inside the output folder.
const (
	LogFile         = "shearwater.log"
	ConfigFile      = "shearwater.toml"
	SummaryFile     = "summary.json"
	JournalFile     = "shearwater.db"
	SampleFile      = "sample.fq.sz"
	CountsFile      = "kmers.tsv"
	EstimateFile    = "kmers_est.tsv"
	SubR1           = "R1.sub.fq"
	SubR2           = "R2.sub.fq"
	AssemblerDir    = "spades"
	BAMFile         = "shearwater.bam"
	PolishedFile    = "pilon.fasta"
	ChangesFile     = "pilon.changes"
	CorrectionsFile = "shearwater.corrections"
	FinalFile       = "contigs.fa"
)

// Workspace is a run's output folder plus the names of the staged reads.
type Workspace struct {
	Dir string
	R1  string // staged first read file (R1.fq or R1.fq.gz)
	R2  string
}

// Create makes the run's output folder. An existing folder is refused
// unless force is set, in which case it is reused in place.
func Create(dir string, force bool) (*Workspace, error) {
	if st, err := os.Stat(dir); err == nil {
		if !st.IsDir() {
			return nil, fmt.Errorf("%s exists and is not a directory", dir)
		}
		if !force {
			return nil, fmt.Errorf("%w: %s (rerun with --force to reuse it)", ErrFolderExists, dir)
		}
		log.Warningf("Reusing existing folder: %s", dir)
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Workspace{Dir: dir}, nil
}

// Path resolves a file name inside the folder.
func (w *Workspace) Path(name string) string { return filepath.Join(w.Dir, name) }

// StageReads links the input read files into the folder under fixed names,
// falling back to a copy where symlinks cannot reach. Staged names keep the
// .gz suffix for gzipped sources so suffix-sniffing tools stay honest.
func (w *Workspace) StageReads(r1, r2 string) error {
	n1, err := w.stage(r1, "R1")
	if err != nil {
		return err
	}
	n2, err := w.stage(r2, "R2")
	if err != nil {
		return err
	}
	w.R1, w.R2 = n1, n2
	log.Infof("Staged reads as %s and %s", n1, n2)
	return nil
}

func (w *Workspace) stage(src, label string) (string, error) {
	gz, err := isGzip(src)
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", src, err)
	}
	name := label + ".fq"
	if gz {
		name += ".gz"
	}
	abs, err := filepath.Abs(src)
	if err != nil {
		return "", err
	}
	dst := w.Path(name)
	_ = os.Remove(dst) // leftover from a forced rerun
	if err := os.Symlink(abs, dst); err != nil {
		if err := copyFile(abs, dst); err != nil {
			return "", fmt.Errorf("stage %s: %w", src, err)
		}
	}
	return name, nil
}

// isGzip sniffs the two-byte gzip magic rather than trusting the suffix.
func isGzip(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	var magic [2]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, err
	}
	return magic[0] == 0x1f && magic[1] == 0x8b, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// CorrectedName maps a read file name to the corrector's output name for
// it: R1.fq becomes R1.cor.fq, R1.fq.gz becomes R1.cor.fq.gz.
func CorrectedName(name string) string {
	return strings.Replace(name, ".fq", ".cor.fq", 1)
}

// DraftPath returns the assembler output selected by variant.
func (w *Workspace) DraftPath(variant string) string {
	return filepath.Join(w.Dir, AssemblerDir, variant+".fasta")
}

// CheckDraft verifies the assembler delivered a non-empty selected variant.
func (w *Workspace) CheckDraft(variant string) error {
	p := w.DraftPath(variant)
	st, err := os.Stat(p)
	if err != nil || st.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrMissingDraft, p)
	}
	return nil
}

// PromotePolished swaps the polished sequences in for the draft, keeping
// the original under an .unpolished suffix, and files the polisher's change
// report under a permanent name.
func (w *Workspace) PromotePolished(variant string) error {
	draft := w.DraftPath(variant)
	if _, err := os.Stat(draft); err != nil {
		return fmt.Errorf("%w: %s", ErrMissingDraft, draft)
	}
	polished := w.Path(PolishedFile)
	if _, err := os.Stat(polished); err != nil {
		return fmt.Errorf("polished assembly missing: %w", err)
	}
	if err := os.Rename(draft, draft+".unpolished"); err != nil {
		return err
	}
	if err := os.Rename(polished, draft); err != nil {
		return err
	}
	if err := os.Rename(w.Path(ChangesFile), w.Path(CorrectionsFile)); err != nil {
		log.Warningf("keep change report: %v", err)
	}
	return nil
}

// keepNames are the top-level artifacts a finished run leaves behind; the
// cleaner never touches them.
var keepNames = map[string]bool{
	FinalFile:       true,
	LogFile:         true,
	ConfigFile:      true,
	SummaryFile:     true,
	JournalFile:     true,
	CountsFile:      true,
	EstimateFile:    true,
	CorrectionsFile: true,
}

// removeNames are the run's own top-level intermediates: staged reads in
// both plain and gzipped form, the retained sample, subsampled and corrected
// read files, the merger outputs, alignments and the polisher files left
// behind when promotion did not consume them. Unlisted entries are never
// touched.
var removeNames = []string{
	"R1.fq", "R1.fq.gz", "R2.fq", "R2.fq.gz",
	SampleFile,
	SubR1, SubR2,
	"R1.cor.fq", "R2.cor.fq",
	"R1.cor.fq.gz", "R2.cor.fq.gz",
	"R1.sub.cor.fq", "R2.sub.cor.fq",
	"flash.extendedFrags.fastq.gz",
	"flash.notCombined_1.fastq.gz",
	"flash.notCombined_2.fastq.gz",
	"flash.hist", "flash.histogram",
	BAMFile, BAMFile + ".bai",
	PolishedFile, ChangesFile,
}

// scratchSuffixes mark files next to the draft assembly that only matter
// during the run: aligner index pieces, the pre-polish draft copy, and the
// assembler's graph and path dumps.
var scratchSuffixes = []string{
	".bwt", ".pac", ".ann", ".amb", ".sa", ".fai",
	".unpolished", ".paths", ".fastg", ".gfa", ".info", ".yaml",
}

// Clean prunes bulky intermediates after a successful run: staged and
// derived read files, alignments, aligner indexes and the assembler's
// per-k working directories. Only the pipeline's own named artifacts are
// removed, so a reused folder keeps whatever else it held. Removal is best
// effort; failures are logged, not fatal.
func (w *Workspace) Clean() {
	for _, name := range removeNames {
		if keepNames[name] {
			continue
		}
		p := w.Path(name)
		if _, err := os.Lstat(p); err != nil {
			continue
		}
		remove(p)
	}
	if _, err := os.Stat(w.Path(AssemblerDir)); err == nil {
		w.cleanAssemblerDir()
	}
}

// cleanAssemblerDir drops the assembler's working subdirectories and
// scratch files but keeps its sequence outputs and log.
func (w *Workspace) cleanAssemblerDir() {
	dir := w.Path(AssemblerDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warningf("clean %s: %v", dir, err)
		return
	}
	for _, ent := range entries {
		if ent.IsDir() {
			remove(filepath.Join(dir, ent.Name()))
			continue
		}
		for _, suffix := range scratchSuffixes {
			if strings.HasSuffix(ent.Name(), suffix) {
				remove(filepath.Join(dir, ent.Name()))
				break
			}
		}
	}
}

func remove(path string) {
	log.Debugf("Removing %s", path)
	if err := os.RemoveAll(path); err != nil {
		log.Warningf("remove %s: %v", path, err)
	}
}

// Scratch creates a disposable uniquely named directory under base for
// external tools that want fast local temp space. The returned cleanup is
// best effort.
func Scratch(base string) (string, func(), error) {
	dir := filepath.Join(base, "shearwater-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", nil, err
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warningf("scratch cleanup: %v", err)
		}
	}, nil
}
