package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shelfward/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != path {
		t.Errorf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Download.Concurrency != 3 {
		t.Errorf("Download.Concurrency = %d, want 3", cfg.Download.Concurrency)
	}
	if cfg.Download.RetryAttempts != 3 || cfg.Download.RetryDelaySeconds != 5 {
		t.Errorf("retry policy = %d/%ds", cfg.Download.RetryAttempts, cfg.Download.RetryDelaySeconds)
	}
	if !strings.Contains(cfg.Library.NamingPattern, "{Title}") {
		t.Errorf("default pattern missing {Title}: %q", cfg.Library.NamingPattern)
	}
	if cfg.Dedup.SimilarityThreshold != 0.85 {
		t.Errorf("Dedup.SimilarityThreshold = %v", cfg.Dedup.SimilarityThreshold)
	}
	if cfg.FFmpegBinary() != "ffmpeg" {
		t.Errorf("FFmpegBinary() = %q", cfg.FFmpegBinary())
	}
}

func TestLoadParsesAndExpands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
staging_dir = "` + dir + `/staging"
log_dir = "` + dir + `/logs"

[library]
roots = ["` + dir + `/books", "` + dir + `/books"]
naming_pattern = "{Author}/{Title}/{Title}.m4b"

[download]
concurrency = 5
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Download.Concurrency != 5 {
		t.Errorf("Download.Concurrency = %d, want 5", cfg.Download.Concurrency)
	}
	if len(cfg.Library.Roots) != 1 {
		t.Errorf("duplicate roots not collapsed: %v", cfg.Library.Roots)
	}
	if cfg.PrimaryLibraryRoot() != filepath.Join(dir, "books") {
		t.Errorf("PrimaryLibraryRoot() = %q", cfg.PrimaryLibraryRoot())
	}
}

func TestLoadRejectsBadPattern(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[library]
naming_pattern = "{Author}/{Title}/{Title}.mp3"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for pattern without .m4b extension")
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(dir, "staging")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Library.Roots = []string{filepath.Join(dir, "books")}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, p := range []string{cfg.Paths.StagingDir, cfg.Paths.LogDir, cfg.Library.Roots[0]} {
		if info, err := os.Stat(p); err != nil || !info.IsDir() {
			t.Errorf("expected directory at %s", p)
		}
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[library]") {
		t.Error("sample missing [library] section")
	}
}
