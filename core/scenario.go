package core

import (
	"path/filepath"
	"strings"

	"github.com/signalsfoundry/scenario-engine/internal/debug"
	"github.com/signalsfoundry/scenario-engine/internal/logging"
	"github.com/signalsfoundry/scenario-engine/internal/observability"
	"github.com/signalsfoundry/scenario-engine/model"
)

// ScenarioConfig wires a scenario's collaborators. Log defaults to noop,
// Metrics and Debugger may be nil (no metrics, no debugging), Scheduler is
// required before any part is signaled or queues events.
type ScenarioConfig struct {
	Name      string
	FilePath  string
	Log       logging.Logger
	Metrics   *observability.ScriptCollector
	Debugger  *debug.Debugger
	Scheduler Scheduler
}

// Scenario is the container every scripted part lives in: the root actor of
// the part hierarchy, the shared import registry, and the collaborators
// (scheduler, debugger, logger, metrics, animation switch) that part
// sandboxes draw from.
type Scenario struct {
	name     string
	filePath string

	root      *model.ActorPart
	imports   *ImportRegistry
	scheduler Scheduler
	debugger  *debug.Debugger
	log       logging.Logger
	metrics   *observability.ScriptCollector
	anim      *AnimationMode
}

func NewScenario(cfg ScenarioConfig) *Scenario {
	log := cfg.Log
	if log == nil {
		log = logging.Noop()
	}
	name := cfg.Name
	if name == "" {
		name = "scenario"
	}
	return &Scenario{
		name:      name,
		filePath:  cfg.FilePath,
		root:      model.NewRootActor(name),
		imports:   NewImportRegistry(log),
		scheduler: cfg.Scheduler,
		debugger:  cfg.Debugger,
		log:       log,
		metrics:   cfg.Metrics,
		anim:      &AnimationMode{},
	}
}

func (s *Scenario) Name() string { return s.name }

// FilePath is where the scenario is saved, or "" when it never was.
func (s *Scenario) FilePath() string { return s.filePath }

func (s *Scenario) SetFilePath(path string) { s.filePath = path }

// FileName is the scenario's file name without extension, "" when unsaved.
func (s *Scenario) FileName() string {
	if s.filePath == "" {
		return ""
	}
	base := filepath.Base(s.filePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FileDir is the directory holding the scenario file, "" when unsaved.
func (s *Scenario) FileDir() string {
	if s.filePath == "" {
		return ""
	}
	return filepath.Dir(s.filePath)
}

// ProfileBasePath is the stem profiler output files are named after.
func (s *Scenario) ProfileBasePath() string {
	if s.filePath == "" {
		return s.name
	}
	return strings.TrimSuffix(s.filePath, filepath.Ext(s.filePath))
}

func (s *Scenario) Root() *model.ActorPart { return s.root }

func (s *Scenario) Imports() *ImportRegistry { return s.imports }

func (s *Scenario) Scheduler() Scheduler { return s.scheduler }

func (s *Scenario) Debugger() *debug.Debugger { return s.debugger }

func (s *Scenario) Log() logging.Logger { return s.log }

func (s *Scenario) Metrics() *observability.ScriptCollector { return s.metrics }

// Anim is the scenario-wide animation switch. Off by default: batch runs
// skip observer notifications.
func (s *Scenario) Anim() *AnimationMode { return s.anim }
