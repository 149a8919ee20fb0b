// internal/cli/options.go
package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"shearwater/internal/genomesize"
	"shearwater/internal/version"
)

// Assembler output variants
const (
	VariantContigs   = "contigs"
	VariantScaffolds = "scaffolds"
	VariantBeforeRR  = "before_rr"
)

// Options holds all CLI flags and arguments. The toml tags mirror the flag
// names, so a run's resolved config snapshot can be fed back via --conf.
type Options struct {
	// Input / output
	R1     string `toml:"r1"`
	R2     string `toml:"r2"`
	OutDir string `toml:"outdir"`
	Force  bool   `toml:"force"`

	// Resources
	CPUs   int    `toml:"cpus"`
	RAMGB  int    `toml:"ram"`
	TmpDir string `toml:"tmpdir"`

	// Assembly parameters
	GenomeSize string `toml:"gsize"`
	Kmers      []int  `toml:"kmers"`
	MinLen     int    `toml:"minlen"`
	Depth      int    `toml:"depth"`

	Variant       string `toml:"asm"`
	NameFormat    string `toml:"namefmt"`
	AssemblerOpts string `toml:"opts"`

	// Stage toggles; --nocorr keeps the original tool's name for skipping
	// the post-assembly polish.
	NoReadCorr bool `toml:"noreadcorr"`
	NoPolish   bool `toml:"nocorr"`
	KeepFiles  bool `toml:"keepfiles"`

	ConfFile string `toml:"-"`
	Profile  bool   `toml:"-"`
	Version  bool   `toml:"-"`
}

// NewFlagSet returns a configured FlagSet with custom usage/help.
func NewFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			`%s: de novo assembly pipeline for paired-end Illumina reads

License: MIT
Version: %s

Usage of %s:
`, name, version.Version, name)
		fs.PrintDefaults()
	}
	return fs
}

var nameFmtRe = regexp.MustCompile(`^[^%]*%0?[0-9]*d[^%]*$`)

// ParseArgs registers and parses all flags, returns an Options struct.
func ParseArgs(fs *flag.FlagSet, argv []string) (Options, error) {
	var opt Options
	var help bool
	var kmerCSV string

	// Input / output
	fs.StringVar(&opt.R1, "r1", "", "first (R1) FASTQ read file, optionally gzipped [*]")
	fs.StringVar(&opt.R2, "r2", "", "second (R2) FASTQ read file [*]")
	fs.StringVar(&opt.OutDir, "outdir", "", "output folder for the assembly [*]")
	fs.BoolVar(&opt.Force, "force", false, "reuse the output folder if it already exists [false]")

	// Resources
	fs.IntVar(&opt.CPUs, "cpus", 0, "CPU budget shared by every stage (0 = all CPUs) [0]")
	fs.IntVar(&opt.RAMGB, "ram", 0, "RAM budget in GB for assembly and sorting (0 = auto) [0]")
	fs.StringVar(&opt.TmpDir, "tmpdir", "", "fast scratch space for external tools [system temp]")

	// Assembly parameters
	fs.StringVar(&opt.GenomeSize, "gsize", "", "genome size, e.g. 4.2M (blank = estimate from the reads) []")
	fs.StringVar(&kmerCSV, "kmers", "", "comma-separated assembler k sizes (blank = derive from the reads) []")
	fs.IntVar(&opt.MinLen, "minlen", 0, "minimum final contig length (0 = read length) [0]")
	fs.IntVar(&opt.Depth, "depth", 150, "downsample the input to this depth (0 = keep everything) [150]")
	fs.StringVar(&opt.Variant, "asm", VariantContigs, "assembler output to use: contigs | scaffolds | before_rr ["+VariantContigs+"]")
	fs.StringVar(&opt.NameFormat, "namefmt", "contig%05d", "printf format for renamed contigs [contig%05d]")
	fs.StringVar(&opt.AssemblerOpts, "opts", "", "extra assembler options, passed through verbatim []")

	// Stage toggles
	fs.BoolVar(&opt.NoPolish, "nocorr", false, "skip the post-assembly correction (polish) stages [false]")
	fs.BoolVar(&opt.NoReadCorr, "noreadcorr", false, "skip the read error correction stage [false]")
	fs.BoolVar(&opt.KeepFiles, "keepfiles", false, "keep all intermediate files in the output folder [false]")

	fs.StringVar(&opt.ConfFile, "conf", "", "TOML file with defaults for any of these flags []")
	fs.BoolVar(&opt.Profile, "profile", false, "write a CPU profile for this run [false]")
	fs.BoolVar(&opt.Version, "v", false, "print version and exit (shorthand) [false]")
	fs.BoolVar(&opt.Version, "version", false, "print version and exit [false]")
	fs.BoolVar(&help, "h", false, "show this help message (shorthand) [false]")

	if err := fs.Parse(argv); err != nil {
		return opt, err
	}
	if help {
		fs.Usage()
		return opt, flag.ErrHelp
	}
	if opt.Version {
		return opt, nil
	}
	if kmerCSV != "" {
		ks, err := parseKmerList(kmerCSV)
		if err != nil {
			return opt, err
		}
		opt.Kmers = ks
	}
	if opt.ConfFile != "" {
		if err := applyFileDefaults(fs, &opt, opt.ConfFile); err != nil {
			return opt, err
		}
	}

	// Validation
	switch {
	case opt.R1 == "":
		return opt, errors.New("--r1 is required")
	case opt.R2 == "":
		return opt, errors.New("--r2 is required")
	case opt.OutDir == "":
		return opt, errors.New("--outdir is required")
	}
	for _, in := range []struct{ flag, path string }{{"--r1", opt.R1}, {"--r2", opt.R2}} {
		if err := readable(in.path); err != nil {
			return opt, fmt.Errorf("%s: %w", in.flag, err)
		}
	}
	if opt.CPUs < 0 {
		return opt, errors.New("--cpus must be ≥ 0")
	}
	if opt.RAMGB < 0 {
		return opt, errors.New("--ram must be ≥ 0")
	}
	if opt.MinLen < 0 {
		return opt, errors.New("--minlen must be ≥ 0")
	}
	if opt.Depth < 0 {
		return opt, errors.New("--depth must be ≥ 0")
	}
	switch opt.Variant {
	case VariantContigs, VariantScaffolds, VariantBeforeRR:
	default:
		return opt, fmt.Errorf("invalid --asm %q", opt.Variant)
	}
	if !nameFmtRe.MatchString(opt.NameFormat) {
		return opt, fmt.Errorf("--namefmt needs exactly one %%d-style verb, got %q", opt.NameFormat)
	}
	if opt.GenomeSize != "" {
		if _, err := genomesize.Parse(opt.GenomeSize); err != nil {
			return opt, err
		}
	}
	return opt, nil
}

// readable rejects unreadable inputs before any output is created.
func readable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

func parseKmerList(csv string) ([]int, error) {
	parts := strings.Split(csv, ",")
	ks := make([]int, 0, len(parts))
	for _, p := range parts {
		k, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || k < 1 {
			return nil, fmt.Errorf("invalid --kmers entry %q", p)
		}
		ks = append(ks, k)
	}
	return ks, nil
}

// applyFileDefaults layers a TOML defaults file between the built-in
// defaults and the flags the user set explicitly: flag beats file beats
// default.
func applyFileDefaults(fs *flag.FlagSet, opt *Options, path string) error {
	var file Options
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		return fmt.Errorf("--conf %s: %w", path, err)
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	for _, d := range []struct {
		key   string
		apply func()
	}{
		{"r1", func() { opt.R1 = file.R1 }},
		{"r2", func() { opt.R2 = file.R2 }},
		{"outdir", func() { opt.OutDir = file.OutDir }},
		{"force", func() { opt.Force = file.Force }},
		{"cpus", func() { opt.CPUs = file.CPUs }},
		{"ram", func() { opt.RAMGB = file.RAMGB }},
		{"tmpdir", func() { opt.TmpDir = file.TmpDir }},
		{"gsize", func() { opt.GenomeSize = file.GenomeSize }},
		{"kmers", func() { opt.Kmers = file.Kmers }},
		{"minlen", func() { opt.MinLen = file.MinLen }},
		{"depth", func() { opt.Depth = file.Depth }},
		{"asm", func() { opt.Variant = file.Variant }},
		{"namefmt", func() { opt.NameFormat = file.NameFormat }},
		{"opts", func() { opt.AssemblerOpts = file.AssemblerOpts }},
		{"noreadcorr", func() { opt.NoReadCorr = file.NoReadCorr }},
		{"nocorr", func() { opt.NoPolish = file.NoPolish }},
		{"keepfiles", func() { opt.KeepFiles = file.KeepFiles }},
	} {
		if md.IsDefined(d.key) && !set[d.key] {
			d.apply()
		}
	}
	return nil
}
