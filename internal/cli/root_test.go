package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/sprite-ai/auditor/internal/review"
	"github.com/sprite-ai/auditor/internal/service"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"serve", "status", "mark", "transform", "show", "comment", "priority", "dashboard", "version"} {
		if !names[want] {
			t.Errorf("root command missing subcommand %q", want)
		}
	}
}

func TestVersionOutput(t *testing.T) {
	// version vars are set via ldflags; in tests they have their defaults
	if version != "dev" {
		t.Errorf("expected default version %q, got %q", "dev", version)
	}
}

func TestParseLine(t *testing.T) {
	if n, err := parseLine("1"); err != nil || n != 0 {
		t.Errorf("parseLine(1) = %d, %v", n, err)
	}
	for _, bad := range []string{"0", "-3", "x", ""} {
		if _, err := parseLine(bad); err == nil {
			t.Errorf("parseLine(%q) should fail", bad)
		}
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"\n", 0},
		{"a", 1},
		{"a\nb\n", 2},
		{"a\n\nb", 3},
	}
	for _, tt := range tests {
		if got := len(splitLines(tt.in)); got != tt.want {
			t.Errorf("splitLines(%q) has %d lines, want %d", tt.in, got, tt.want)
		}
	}
}

func TestOverallPercent(t *testing.T) {
	info := []service.FileInfo{
		{Summary: review.Summary{Reviewed: 5, Total: 10}},
		{Summary: review.Summary{Ignored: 10, Total: 10}},
	}
	if got := overallPercent(info); got != 75 {
		t.Errorf("expected 75, got %v", got)
	}
	if got := overallPercent(nil); got != 0 {
		t.Errorf("expected 0 for no files, got %v", got)
	}
}

func TestOutputFormats(t *testing.T) {
	info := []service.FileInfo{
		{FileName: "a.go", Stale: true, Summary: review.Summary{Reviewed: 1, Total: 4}},
	}

	var text bytes.Buffer
	outputText(&text, info)
	if !strings.Contains(text.String(), "a.go") || !strings.Contains(text.String(), "(stale)") {
		t.Errorf("unexpected text output:\n%s", text.String())
	}

	var md bytes.Buffer
	outputMarkdown(&md, info)
	if !strings.Contains(md.String(), "| `a.go` (stale) | 1 |") {
		t.Errorf("unexpected markdown output:\n%s", md.String())
	}

	var empty bytes.Buffer
	outputText(&empty, nil)
	if !strings.Contains(empty.String(), "No tracked files.") {
		t.Errorf("unexpected empty output %q", empty.String())
	}
}

func initRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := wt.Add(name); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestMarkAndStatus(t *testing.T) {
	dir := initRepo(t, map[string]string{"main.go": "package main\n\nfunc main() {\n}\n"})
	common := []string{"--repo", dir, "--store", "sqlite", "--db", filepath.Join(t.TempDir(), "auditor.db"), "--log-level", "error"}

	out, err := run(t, append([]string{"mark", "main.go", "1", "2", "reviewed"}, common...)...)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if !strings.Contains(out, "main.go: lines 1-2 Reviewed (50.0% reviewed)") {
		t.Errorf("unexpected mark output %q", out)
	}

	out, err = run(t, append([]string{"status", "--format", "json"}, common...)...)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var report struct {
		Overall float64            `json:"overall_percent"`
		Files   []service.FileInfo `json:"files"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decoding status: %v\n%s", err, out)
	}
	if len(report.Files) != 1 || report.Files[0].FileName != "main.go" {
		t.Fatalf("unexpected files %+v", report.Files)
	}
	if report.Overall != 50 || report.Files[0].Stale {
		t.Errorf("unexpected report %+v", report)
	}

	_, err = run(t, append([]string{"status", "--format", "text", "--fail-under", "80"}, common...)...)
	if !errors.Is(err, ErrBelowThreshold) {
		t.Errorf("expected threshold failure, got %v", err)
	}
}
