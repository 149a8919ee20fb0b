// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	logging "github.com/op/go-logging"

	"shearwater/internal/contigs"
	"shearwater/internal/deps"
	"shearwater/internal/execx"
	"shearwater/internal/genomesize"
	"shearwater/internal/journal"
	"shearwater/internal/kmer"
	"shearwater/internal/logutil"
	"shearwater/internal/readstats"
	"shearwater/internal/stage"
	"shearwater/internal/sysinfo"
	"shearwater/internal/workspace"
)

var log = logging.MustGetLogger("shearwater")

// sampleReads is how many reads the probe draws to gauge read length.
const sampleReads = 10000

// Result captures what a finished run produced.
type Result struct {
	RunID      string  `json:"run_id"`
	ReadLen    int     `json:"read_length"`
	Kmers      []int   `json:"kmers"`
	GenomeSize int64   `json:"genome_size"`
	Depth      int     `json:"estimated_depth,omitempty"`
	MinLen     int     `json:"min_contig_length"`
	Contigs    int     `json:"contigs"`
	TotalBP    int     `json:"total_bp"`
	N50        int     `json:"n50"`
	Largest    int     `json:"largest_contig"`
	Polished   bool    `json:"polished"`
	WallSecs   float64 `json:"wall_seconds"`
	Assembly   string  `json:"assembly"`
}

// Pipeline wires a validated configuration to the collaborating tools.
type Pipeline struct {
	cfg    Config
	exec   execx.Runner
	stderr io.Writer
}

// New fills machine-derived defaults and returns a runnable pipeline. The
// exec runner may be a fake when testing orchestration.
func New(cfg Config, exec execx.Runner, stderr io.Writer) *Pipeline {
	cfg.CPUs = sysinfo.Threads(cfg.CPUs)
	if cfg.RAMGB <= 0 {
		cfg.RAMGB = sysinfo.DefaultRAMGB()
	}
	if cfg.TmpDir == "" {
		cfg.TmpDir = os.TempDir()
	}
	if cfg.Variant == "" {
		cfg.Variant = "contigs"
	}
	if cfg.NameFormat == "" {
		cfg.NameFormat = "contig%05d"
	}
	return &Pipeline{cfg: cfg, exec: exec, stderr: stderr}
}

// Run drives a complete assembly: tool probe, workspace setup, parameter
// derivation, the external stage script, post-processing and cleanup.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if err := deps.Check(p.exec.LookPath); err != nil {
		return nil, err
	}
	ws, err := workspace.Create(p.cfg.OutDir, p.cfg.Force)
	if err != nil {
		return nil, err
	}
	sink, closeLog, err := logutil.Attach(p.stderr, ws.Path(workspace.LogFile))
	if err != nil {
		return nil, err
	}
	defer func() { _ = closeLog() }()
	log.Infof("Writing run files to %s", ws.Dir)

	jr, err := journal.Open(ws.Path(workspace.JournalFile))
	if err != nil {
		log.Warningf("journal disabled: %v", err)
		jr = nil
	}
	defer func() { _ = jr.Close() }()

	runID := uuid.New().String()
	log.Infof("Run id: %s", runID)
	if err := jr.BeginRun(runID, p.cfg.Invocation); err != nil {
		log.Warningf("journal: %v", err)
	}

	res, err := p.assemble(ctx, ws, jr, runID, sink)
	if err != nil {
		_ = jr.EndRun(runID, "failed", err.Error())
		return nil, err
	}
	_ = jr.EndRun(runID, "ok", "")
	return res, nil
}

func (p *Pipeline) assemble(ctx context.Context, ws *workspace.Workspace, jr *journal.Journal, runID string, sink io.Writer) (*Result, error) {
	cfg := p.cfg
	start := time.Now()

	if err := ws.StageReads(cfg.R1, cfg.R2); err != nil {
		return nil, err
	}
	if err := p.snapshotConfig(ws); err != nil {
		return nil, err
	}
	scratch, dropScratch, err := workspace.Scratch(cfg.TmpDir)
	if err != nil {
		return nil, err
	}
	defer dropScratch()

	sampler := &readstats.Sampler{Run: p.exec, Stderr: sink}
	st, err := sampler.Sample(ctx, ws.Path(ws.R1), sampleReads, ws.Path(workspace.SampleFile))
	if err != nil {
		return nil, err
	}

	ladder := cfg.Kmers
	if len(ladder) == 0 {
		if ladder, err = kmer.Select(st.MaxLen, cfg.CPUs); err != nil {
			return nil, err
		}
	}
	log.Infof("Assembler k ladder: %v", ladder)

	var gsize int64
	if cfg.GenomeSize != "" {
		if gsize, err = genomesize.Parse(cfg.GenomeSize); err != nil {
			return nil, err
		}
		log.Infof("Using supplied genome size: %d bp", gsize)
	} else {
		est := &genomesize.Estimator{Run: p.exec, Stderr: sink}
		gsize, err = est.Estimate(ctx, ladder, cfg.CPUs,
			ws.Path(workspace.CountsFile), ws.Path(workspace.EstimateFile),
			ws.Path(ws.R1), ws.Path(ws.R2))
		if err != nil {
			return nil, err
		}
	}

	var frac float64
	var depth int
	if cfg.Depth > 0 {
		b1, err := sampler.TotalBases(ctx, ws.Path(ws.R1))
		if err != nil {
			return nil, err
		}
		b2, err := sampler.TotalBases(ctx, ws.Path(ws.R2))
		if err != nil {
			return nil, err
		}
		depth = int((b1 + b2) / gsize)
		log.Infof("Estimated sequencing depth: %dx", depth)
		if depth > cfg.Depth {
			frac = float64(cfg.Depth) / float64(depth)
			log.Infof("Subsampling reads from %dx to %dx", depth, cfg.Depth)
		}
	}

	pre, polish := stage.Plan(stage.Params{
		R1: ws.R1, R2: ws.R2,
		Kmers: ladder, GenomeSize: gsize, ReadLen: st.MaxLen,
		CPUs: cfg.CPUs, RAMGB: cfg.RAMGB,
		Downsample: frac,
		NoReadCorr: cfg.NoReadCorr, NoPolish: cfg.NoPolish,
		Variant: cfg.Variant, Scratch: scratch,
		AssemblerOpts: cfg.AssemblerOpts,
	})
	runner := &stage.Runner{
		Exec: p.exec, Dir: ws.Dir, Sink: sink,
		Obs: &journalObserver{jr: jr, runID: runID},
	}
	if err := runner.RunAll(ctx, pre); err != nil {
		return nil, err
	}
	if err := ws.CheckDraft(cfg.Variant); err != nil {
		return nil, err
	}
	polished := false
	if len(polish) > 0 {
		if err := runner.RunAll(ctx, polish); err != nil {
			return nil, err
		}
		if err := ws.PromotePolished(cfg.Variant); err != nil {
			return nil, err
		}
		polished = true
	}

	seqs, err := contigs.Load(ws.DraftPath(cfg.Variant))
	if err != nil {
		return nil, err
	}
	minLen := cfg.MinLen
	if minLen <= 0 {
		minLen = st.MaxLen
	}
	final := contigs.Process(seqs, minLen, cfg.NameFormat)
	if err := contigs.WriteFile(ws.Path(workspace.FinalFile), final); err != nil {
		return nil, err
	}
	cs := contigs.Summarize(final)
	log.Infof("Kept %d contigs totalling %d bp (N50 %d, largest %d)", cs.Count, cs.TotalBP, cs.N50, cs.Largest)

	res := &Result{
		RunID: runID, ReadLen: st.MaxLen, Kmers: ladder, GenomeSize: gsize,
		Depth: depth, MinLen: minLen,
		Contigs: cs.Count, TotalBP: cs.TotalBP, N50: cs.N50, Largest: cs.Largest,
		Polished: polished,
		WallSecs: time.Since(start).Seconds(),
		Assembly: ws.Path(workspace.FinalFile),
	}
	if err := p.writeSummary(ws, res); err != nil {
		return nil, err
	}

	if cfg.KeepFiles {
		log.Infof("Keeping all intermediate files in %s", ws.Dir)
	} else {
		ws.Clean()
	}
	return res, nil
}

// snapshotConfig records the resolved configuration next to the results so
// a run can be reproduced later.
func (p *Pipeline) snapshotConfig(ws *workspace.Workspace) error {
	f, err := os.Create(ws.Path(workspace.ConfigFile))
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(p.cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (p *Pipeline) writeSummary(ws *workspace.Workspace, res *Result) error {
	f, err := os.Create(ws.Path(workspace.SummaryFile))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// journalObserver mirrors stage lifecycle events into the run journal.
type journalObserver struct {
	jr    *journal.Journal
	runID string
	cur   int64 // open stage row id, 0 when no row was inserted
}

func (o *journalObserver) StageStarted(d stage.Descriptor) {
	id, err := o.jr.BeginStage(o.runID, d.Name, d.Command())
	if err != nil {
		log.Warningf("journal: %v", err)
		o.cur = 0
		return
	}
	o.cur = id
}

func (o *journalObserver) StageEnded(d stage.Descriptor, code int, err error, elapsed time.Duration) {
	if o.cur != 0 {
		status := "ok"
		if err != nil {
			status = "failed"
		}
		if jerr := o.jr.EndStage(o.cur, code, status); jerr != nil {
			log.Warningf("journal: %v", jerr)
		}
		o.cur = 0
	}
	if err == nil {
		log.Infof("Stage %s finished in %.1fs", d.Name, elapsed.Seconds())
	}
}
