// Package logger configures the process wide charmbracelet logger. Components
// take a prefixed child with New after Init has run.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// Params configures the root logger. File, when set, receives a copy of
// every record.
type Params struct {
	Debug bool   `yaml:"debug"`
	File  string `yaml:"file"`
}

var (
	mu   sync.Mutex
	root = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Level: log.InfoLevel})
	file *os.File
)

// Init replaces the root logger. It returns a close function for the log file.
func Init(params Params) (func() error, error) {
	mu.Lock()
	defer mu.Unlock()

	level := log.InfoLevel
	if params.Debug {
		level = log.DebugLevel
	}

	var w io.Writer = os.Stderr
	if params.File != "" {
		f, err := os.OpenFile(params.File, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, err
		}
		file = f
		w = io.MultiWriter(os.Stderr, f)
	}
	root = log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
	return closeFile, nil
}

func closeFile() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

// New returns a child of the root logger tagged with prefix.
func New(prefix string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	return root.WithPrefix(prefix)
}
