// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/leapstack-labs/queryrunner/internal/cli/output"
	"gopkg.in/yaml.v3"
)

// DataSource is a data source entry written by SetupTestConfig.
type DataSource struct {
	Type    string         `yaml:"type"`
	Options map[string]any `yaml:"options"`
}

// SetupTestConfig writes a queryrunner.yaml with the given data sources into
// a temporary directory and returns its path.
func SetupTestConfig(t *testing.T, sources map[string]DataSource) string {
	t.Helper()

	content, err := yaml.Marshal(map[string]any{"data_sources": sources})
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}

	path := filepath.Join(t.TempDir(), "queryrunner.yaml")
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}
