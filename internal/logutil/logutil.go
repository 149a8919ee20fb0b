// internal/logutil/logutil.go
package logutil

import (
	"io"
	"os"

	logging "github.com/op/go-logging"
)

// All packages log through the same module name so backends apply globally.
const module = "shearwater"

var (
	consoleFormat = logging.MustStringFormatter(`%{color}[%{time:15:04:05}]%{color:reset} %{message}`)
	fileFormat    = logging.MustStringFormatter(`[%{time:2006-01-02 15:04:05}] %{level:.4s} %{message}`)
)

// Logger returns the shared pipeline logger.
func Logger() *logging.Logger { return logging.MustGetLogger(module) }

// Setup routes log records to the console stream only. Called once at
// startup, before the output folder (and therefore the log file) exists.
func Setup(console io.Writer) {
	logging.SetBackend(consoleBackend(console))
}

// Attach adds a persistent log file alongside the console backend. It
// returns a writer that duplicates raw external-tool output to both sinks,
// and a closer for the file. Records logged before Attach only reach the
// console.
func Attach(console io.Writer, path string) (io.Writer, func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	file := logging.NewBackendFormatter(logging.NewLogBackend(f, "", 0), fileFormat)
	logging.SetBackend(consoleBackend(console), file)
	return io.MultiWriter(console, f), f.Close, nil
}

func consoleBackend(w io.Writer) logging.Backend {
	return logging.NewBackendFormatter(logging.NewLogBackend(w, "", 0), consoleFormat)
}
