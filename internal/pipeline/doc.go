// Package pipeline orchestrates a complete assembly run: it probes the
// external toolchain, derives assembly parameters from the reads, executes
// the stage script in order, and post-processes the draft into the final
// contig set.
//
// All process execution goes through execx.Runner, so the orchestration is
// testable end to end with a fake runner.
package pipeline
