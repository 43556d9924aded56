package core

import (
	"path/filepath"
	"testing"
)

func TestScenarioDefaults(t *testing.T) {
	s := NewScenario(ScenarioConfig{})
	if s.Name() != "scenario" {
		t.Fatalf("Name() = %q", s.Name())
	}
	if s.Root() == nil || s.Root().Path() != "/scenario" {
		t.Fatalf("Root() path = %q", s.Root().Path())
	}
	if s.FileName() != "" || s.FileDir() != "" {
		t.Fatalf("unsaved scenario reports file name %q dir %q", s.FileName(), s.FileDir())
	}
	if s.ProfileBasePath() != "scenario" {
		t.Fatalf("ProfileBasePath() = %q", s.ProfileBasePath())
	}
	if s.Anim().Enabled() {
		t.Fatalf("animation on by default")
	}
}

func TestScenarioFilePaths(t *testing.T) {
	s := NewScenario(ScenarioConfig{Name: "depot"})
	s.SetFilePath(filepath.Join("data", "runs", "depot_v2.scen"))

	if s.FileName() != "depot_v2" {
		t.Fatalf("FileName() = %q", s.FileName())
	}
	if s.FileDir() != filepath.Join("data", "runs") {
		t.Fatalf("FileDir() = %q", s.FileDir())
	}
	if s.ProfileBasePath() != filepath.Join("data", "runs", "depot_v2") {
		t.Fatalf("ProfileBasePath() = %q", s.ProfileBasePath())
	}
}
