package stage

import (
	"strings"
	"testing"
)

func names(script []Descriptor) []string {
	var out []string
	for _, d := range script {
		out = append(out, d.Name)
	}
	return out
}

func find(t *testing.T, script []Descriptor, name string) Descriptor {
	t.Helper()
	for _, d := range script {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("no stage %q in %v", name, names(script))
	return Descriptor{}
}

func baseParams() Params {
	return Params{
		R1: "R1.fq", R2: "R2.fq",
		Kmers: []int{21, 33, 55}, GenomeSize: 4100000, ReadLen: 150,
		CPUs: 8, RAMGB: 16,
		Variant: "contigs", Scratch: "/tmp/shearwater-x",
	}
}

func TestPlanFullScript(t *testing.T) {
	p := baseParams()
	p.Downsample = 0.5
	pre, polish := Plan(p)

	wantPre := []string{"downsample-r1", "downsample-r2", "correct", "merge", "assemble"}
	if got := strings.Join(names(pre), " "); got != strings.Join(wantPre, " ") {
		t.Errorf("pre script = %v", names(pre))
	}
	wantPolish := []string{"index-draft", "align", "index-bam", "polish"}
	if got := strings.Join(names(polish), " "); got != strings.Join(wantPolish, " ") {
		t.Errorf("polish script = %v", names(polish))
	}

	correct := find(t, pre, "correct")
	if got := correct.Command(); !strings.Contains(got, "-r R1.sub.fq -r R2.sub.fq") {
		t.Errorf("corrector should consume subsampled reads: %s", got)
	}
	if got := correct.Command(); !strings.Contains(got, "-K 32 4100000") {
		t.Errorf("corrector should get the fixed k and genome size: %s", got)
	}

	merge := find(t, pre, "merge")
	if got := merge.Command(); !strings.Contains(got, "-M 150") {
		t.Errorf("merger max overlap should be the read length: %s", got)
	}
	if got := merge.Command(); !strings.Contains(got, "R1.sub.cor.fq R2.sub.cor.fq") {
		t.Errorf("merger should consume corrected subsampled reads: %s", got)
	}

	asm := find(t, pre, "assemble")
	for _, want := range []string{"-k 21,33,55", "--memory 16", "--threads 8", "--only-assembler", "--tmp-dir /tmp/shearwater-x"} {
		if !strings.Contains(asm.Command(), want) {
			t.Errorf("assembler command missing %q: %s", want, asm.Command())
		}
	}
}

func TestPlanDefaultSkipsDownsample(t *testing.T) {
	pre, _ := Plan(baseParams())
	if got := strings.Join(names(pre), " "); got != "correct merge assemble" {
		t.Errorf("pre script = %v", names(pre))
	}
}

func TestPlanNoReadCorr(t *testing.T) {
	p := baseParams()
	p.NoReadCorr = true
	pre, _ := Plan(p)
	merge := find(t, pre, "merge")
	if got := merge.Command(); !strings.Contains(got, "R1.fq R2.fq") {
		t.Errorf("merger should consume staged reads directly: %s", got)
	}
	for _, d := range pre {
		if d.Name == "correct" {
			t.Error("correct stage should be absent")
		}
	}
}

func TestPlanPreservesGzipNames(t *testing.T) {
	p := baseParams()
	p.R1, p.R2 = "R1.fq.gz", "R2.fq.gz"
	pre, _ := Plan(p)
	correct := find(t, pre, "correct")
	if got := correct.Outputs; got[0] != "R1.cor.fq.gz" || got[1] != "R2.cor.fq.gz" {
		t.Errorf("corrected names = %v", got)
	}
}

func TestPlanNoPolish(t *testing.T) {
	p := baseParams()
	p.NoPolish = true
	_, polish := Plan(p)
	if len(polish) != 0 {
		t.Errorf("polish script should be empty, got %v", names(polish))
	}
}

func TestPlanAlignPipe(t *testing.T) {
	pre, polish := Plan(baseParams())
	_ = pre
	align := find(t, polish, "align")
	if len(align.Commands) != 2 {
		t.Fatalf("align should be a two-command pipe, got %d", len(align.Commands))
	}
	if align.Commands[0][0] != "bwa" || align.Commands[1][0] != "samtools" {
		t.Errorf("pipe order = %s | %s", align.Commands[0][0], align.Commands[1][0])
	}
	cmd := align.Command()
	for _, want := range []string{"-x intractg", "--threads 2", "-o shearwater.bam", " | "} {
		if !strings.Contains(cmd, want) {
			t.Errorf("align command missing %q: %s", want, cmd)
		}
	}

	pilon := find(t, polish, "polish")
	for _, want := range []string{"--frags shearwater.bam", "--fix bases", "--output pilon"} {
		if !strings.Contains(pilon.Command(), want) {
			t.Errorf("polish command missing %q: %s", want, pilon.Command())
		}
	}
}

func TestSortThreadFloor(t *testing.T) {
	if got := sortThreads(1); got != 1 {
		t.Errorf("sortThreads(1) = %d", got)
	}
	if got := sortThreads(16); got != 4 {
		t.Errorf("sortThreads(16) = %d", got)
	}
}

func TestSortMemFloor(t *testing.T) {
	if got := sortMemMB(1, 1); got != 512 {
		t.Errorf("sortMemMB(1,1) = %d", got)
	}
	if got := sortMemMB(1, 4); got != 256 {
		t.Errorf("sortMemMB(1,4) = %d, want the floor", got)
	}
	if got := sortMemMB(16, 4); got != 2048 {
		t.Errorf("sortMemMB(16,4) = %d", got)
	}
}
