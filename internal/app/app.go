// internal/app/app.go
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	logging "github.com/op/go-logging"
	"github.com/pkg/profile"

	"shearwater/internal/cli"
	"shearwater/internal/execx"
	"shearwater/internal/logutil"
	"shearwater/internal/pipeline"
	"shearwater/internal/version"
)

var log = logging.MustGetLogger("shearwater")

// RunContext parses argv, assembles, and returns the process exit code.
func RunContext(parent context.Context, argv []string, stdout, stderr io.Writer) int {
	return run(parent, argv, stdout, stderr, execx.System{})
}

func run(ctx context.Context, argv []string, stdout, stderr io.Writer, exec execx.Runner) int {
	fs := cli.NewFlagSet("shearwater")
	fs.SetOutput(io.Discard)

	if len(argv) == 0 {
		fs.SetOutput(stderr)
		fs.Usage()
		return 1
	}

	opts, err := cli.ParseArgs(fs, argv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(stdout)
			fs.Usage()
			return 0
		}
		_, _ = fmt.Fprintln(stderr, err)
		fs.SetOutput(stderr)
		fs.Usage()
		return 1
	}
	if opts.Version {
		_, _ = fmt.Fprintf(stdout, "shearwater %s\n", version.Version)
		return 0
	}

	logutil.Setup(stderr)
	log.Infof("This is shearwater %s", version.Version)

	if opts.Profile {
		defer profile.Start(profile.ProfilePath(".")).Stop()
	}

	cfg := pipeline.Config{
		R1: opts.R1, R2: opts.R2, OutDir: opts.OutDir, Force: opts.Force,
		CPUs: opts.CPUs, RAMGB: opts.RAMGB, TmpDir: opts.TmpDir,
		GenomeSize: opts.GenomeSize, Kmers: opts.Kmers,
		MinLen: opts.MinLen, Depth: opts.Depth,
		Variant: opts.Variant, NameFormat: opts.NameFormat, AssemblerOpts: opts.AssemblerOpts,
		NoReadCorr: opts.NoReadCorr, NoPolish: opts.NoPolish, KeepFiles: opts.KeepFiles,
		Invocation: "shearwater " + strings.Join(argv, " "),
	}
	res, err := pipeline.New(cfg, exec, stderr).Run(ctx)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}
	log.Infof("Final assembly in %s", res.Assembly)
	log.Infof("It contains %d contigs totalling %d bp", res.Contigs, res.TotalBP)
	log.Infof("Walltime used: %.1f sec", res.WallSecs)
	log.Info("Done!")
	return 0
}

func Run(argv []string, stdout, stderr io.Writer) int {
	return RunContext(context.Background(), argv, stdout, stderr)
}
