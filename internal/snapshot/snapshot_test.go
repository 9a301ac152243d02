package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestIsIgnored(t *testing.T) {
	tests := []struct {
		name     string
		relPath  string
		patterns []string
		want     bool
	}{
		{"vendor directory", "vendor/foo/bar.go", []string{"vendor/**"}, true},
		{"vendor dir itself", "vendor", []string{"vendor/**"}, true},
		{"nested node_modules", "web/node_modules/react/index.js", []string{"node_modules/**"}, true},
		{"git directory", ".git/HEAD", []string{".git/**"}, true},
		{"double star basename", "assets/app.min.js", []string{"**/*.min.js"}, true},
		{"non-matching file", "src/main.go", []string{"**/*_test.go"}, false},
		{"prefix is not a segment", "vendored/x.go", []string{"vendor/**"}, false},
		{"exact glob", "Makefile", []string{"Makefile"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsIgnored(tt.relPath, tt.patterns); got != tt.want {
				t.Errorf("IsIgnored(%q, %v) = %v, want %v", tt.relPath, tt.patterns, got, tt.want)
			}
		})
	}
}

func TestBuild_ListsAndIgnores(t *testing.T) {
	dir := writeRepo(t, map[string]string{
		"README.md":                "# demo",
		"cmd/app/main.go":          "package main",
		"node_modules/x/index.js":  "module.exports = 1",
		"internal/store/store.go":  "package store",
	})

	s, err := Build(context.Background(), dir, Options{Ignore: []string{"node_modules/**"}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(s.Files()) != 3 {
		t.Fatalf("expected 3 files, got %d: %v", len(s.Files()), s.Files())
	}
	if !s.Has("cmd/app/main.go") {
		t.Error("expected slash-separated relative path")
	}
	if s.Has("node_modules/x/index.js") {
		t.Error("ignored file listed")
	}

	data, err := s.ReadFile("README.md")
	if err != nil || string(data) != "# demo" {
		t.Errorf("ReadFile = %q, %v", data, err)
	}
	// second read served from cache
	if _, err := s.ReadFile("README.md"); err != nil {
		t.Errorf("cached ReadFile: %v", err)
	}
	if _, err := s.ReadFile("node_modules/x/index.js"); err == nil {
		t.Error("expected error reading unlisted file")
	}

	dirs := strings.Join(s.Dirs(), ",")
	if dirs != "cmd,cmd/app,internal,internal/store" {
		t.Errorf("Dirs() = %s", dirs)
	}
}

func TestBuild_SkipsLargeFilesWithWarning(t *testing.T) {
	dir := writeRepo(t, map[string]string{
		"small.txt": "ok",
		"big.bin":   strings.Repeat("x", 2048),
	})
	s, err := Build(context.Background(), dir, Options{MaxFileSize: 1024})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if s.Has("big.bin") {
		t.Error("oversized file should be skipped")
	}
	if s.TotalSize() != 2 {
		t.Errorf("TotalSize() = %d, want only the listed file", s.TotalSize())
	}
	if len(s.Warnings()) != 1 || s.Warnings()[0].File != "big.bin" {
		t.Errorf("Warnings() = %v", s.Warnings())
	}
}

func TestBuild_RepoSizeLimit(t *testing.T) {
	dir := writeRepo(t, map[string]string{"a.txt": strings.Repeat("a", 600), "b.txt": strings.Repeat("b", 600)})

	_, err := Build(context.Background(), dir, Options{MaxRepoSize: 1000})
	if !errors.Is(err, ErrRepoTooLarge) {
		t.Fatalf("expected ErrRepoTooLarge, got %v", err)
	}
	if _, err := Build(context.Background(), dir, Options{MaxRepoSize: 1000, AllowLarge: true}); err != nil {
		t.Errorf("override should allow large repo: %v", err)
	}
}

func TestBuild_InaccessiblePath(t *testing.T) {
	if _, err := Build(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestFingerprint(t *testing.T) {
	a := NewMemory(map[string]string{"x.go": "package x", "y.go": "package y"})
	b := NewMemory(map[string]string{"y.go": "package y", "x.go": "package x"})
	c := NewMemory(map[string]string{"x.go": "package x", "y.go": "package z"})
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprint should not depend on insertion order")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("fingerprint should change with content")
	}
}

func TestLanguage(t *testing.T) {
	tests := map[string]string{
		"main.go":        "Go",
		"app/views.py":   "Python",
		"web/App.tsx":    "TypeScript",
		"lib/index.mjs":  "JavaScript",
		"README.md":      "",
		"build/Main.kt":  "Kotlin",
	}
	for path, want := range tests {
		if got := Language(path); got != want {
			t.Errorf("Language(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestIsTestFile(t *testing.T) {
	tests := map[string]bool{
		"engine/engine_test.go":   true,
		"tests/test_api.py":       true,
		"src/app.spec.ts":         true,
		"src/__tests__/a.js":      true,
		"src/app.ts":              false,
		"internal/testutil/x.go":  false,
	}
	for path, want := range tests {
		if got := IsTestFile(path); got != want {
			t.Errorf("IsTestFile(%q) = %v, want %v", path, got, want)
		}
	}
}
