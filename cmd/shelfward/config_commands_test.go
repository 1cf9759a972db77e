package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("output missing target path: %q", out)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("sample config missing: %v", err)
	}
	if !strings.Contains(string(data), "naming_pattern") {
		t.Fatalf("sample config lacks naming_pattern: %q", data)
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := writeFile(target, "# existing"); err != nil {
		t.Fatal(err)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected refusal without --overwrite")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

func TestConfigSetPatternValid(t *testing.T) {
	out, err := runCommand(t, "config", "set-pattern", "{Author}/{Title}.m4b")
	if err != nil {
		t.Fatalf("set-pattern: %v", err)
	}
	if !strings.Contains(out, "Terry Goodkind") {
		t.Fatalf("sample rendering missing: %q", out)
	}
}

func TestConfigSetPatternRejectsMissingTitle(t *testing.T) {
	if _, err := runCommand(t, "config", "set-pattern", "{Author}/book.m4b"); err == nil {
		t.Fatal("expected rejection of pattern without {Title}")
	}
}
