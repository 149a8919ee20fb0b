// internal/pipeline/config.go
package pipeline

// Config is the resolved run configuration. The cli package builds one from
// flags; New fills in the machine-derived defaults.
type Config struct {
	R1     string `toml:"r1"`
	R2     string `toml:"r2"`
	OutDir string `toml:"outdir"`
	Force  bool   `toml:"force"`

	CPUs   int    `toml:"cpus"`
	RAMGB  int    `toml:"ram"`
	TmpDir string `toml:"tmpdir"`

	GenomeSize string `toml:"gsize"`
	Kmers      []int  `toml:"kmers"`
	MinLen     int    `toml:"minlen"`
	Depth      int    `toml:"depth"`

	Variant       string `toml:"asm"`
	NameFormat    string `toml:"namefmt"`
	AssemblerOpts string `toml:"opts"`

	// NoPolish maps to --nocorr: the original tool calls the pilon pass
	// "post-assembly correction".
	NoReadCorr bool `toml:"noreadcorr"`
	NoPolish   bool `toml:"nocorr"`
	KeepFiles  bool `toml:"keepfiles"`

	// Invocation is the original command line, kept for the journal.
	Invocation string `toml:"-"`
}
