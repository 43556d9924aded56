package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBlockProfilerFileNaming(t *testing.T) {
	base := filepath.Join(t.TempDir(), "run")
	p, err := StartBlockProfiler(base, map[string]string{"part": "tick", "mode": "call"})
	if err != nil {
		t.Fatalf("StartBlockProfiler: %v", err)
	}

	want := base + "_mode_call_part_tick.pprof"
	if p.FilePath() != want {
		t.Fatalf("FilePath() = %q, want %q", p.FilePath(), want)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("profile file missing: %v", err)
	}
}

func TestBlockProfilerNoTags(t *testing.T) {
	base := filepath.Join(t.TempDir(), "bare")
	p, err := StartBlockProfiler(base, nil)
	if err != nil {
		t.Fatalf("StartBlockProfiler: %v", err)
	}
	defer p.Stop()
	if p.FilePath() != base+".pprof" {
		t.Fatalf("FilePath() = %q", p.FilePath())
	}
}
