package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func TestInitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.log")
	closeLog, err := Init(Params{Debug: true, File: path})
	assert.NilError(t, err)

	New("Main").Debug("building model", "steps", 3)
	assert.NilError(t, closeLog())

	b, err := os.ReadFile(path)
	assert.NilError(t, err)
	out := string(b)
	assert.Assert(t, strings.Contains(out, "Main"), out)
	assert.Assert(t, strings.Contains(out, "building model"), out)
	assert.Assert(t, strings.Contains(out, "steps=3"), out)

	_, err = Init(Params{})
	assert.NilError(t, err)
}
