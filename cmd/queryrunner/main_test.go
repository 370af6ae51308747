// Package main provides tests for the queryrunner CLI.
package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/leapstack-labs/queryrunner/internal/cli"
)

func TestVersionCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(buf.String(), "queryrunner v") {
		t.Errorf("expected version output, got: %s", buf.String())
	}
}

func TestHelpCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("help command failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"query", "tables", "status", "runners"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output should mention %q", want)
		}
	}
}
