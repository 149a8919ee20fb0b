// internal/deps/deps.go
package deps

import (
	"errors"
	"fmt"

	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("shearwater")

// ErrMissingDependency marks a required external tool absent from PATH.
var ErrMissingDependency = errors.New("missing external dependency")

// Tools is the full set of external programs a run may invoke. The whole
// set is probed up front, regardless of which stages the flags skip.
var Tools = []string{
	"seqtk",
	"KmerStream",
	"KmerStreamEstimate.py",
	"lighter",
	"flash",
	"spades.py",
	"bwa",
	"samtools",
	"pilon",
}

// Check resolves every required tool through look, logging the discovered
// locations. The first unresolvable tool aborts the run.
func Check(look func(string) (string, error)) error {
	for _, tool := range Tools {
		path, err := look(tool)
		if err != nil {
			return fmt.Errorf("%w: %s (not found on $PATH)", ErrMissingDependency, tool)
		}
		log.Infof("Using %s - %s", tool, path)
	}
	return nil
}
