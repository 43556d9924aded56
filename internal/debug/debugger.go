// Package debug provides the cooperative script debugger: a breakpoint store
// keyed by shadow-file path and line, a command channel driven by the user
// interface, and the per-line suspension protocol scripted parts call into
// while executing in debug mode.
package debug

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/signalsfoundry/scenario-engine/internal/logging"
)

// ErrQuit is returned from OnLine when the user stops the debug run. The
// caller must abort script execution and swallow the error: a user stop is
// not a script failure.
var ErrQuit = errors.New("debug run stopped by user")

// Command is a debugger resume instruction.
type Command int

const (
	CmdStepOver Command = iota
	CmdStepIn
	CmdStepOut
	CmdContinue
	CmdStop
)

func (c Command) String() string {
	switch c {
	case CmdStepOver:
		return "step-over"
	case CmdStepIn:
		return "step-in"
	case CmdStepOut:
		return "step-out"
	case CmdContinue:
		return "continue"
	case CmdStop:
		return "stop"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// State is the debugger's execution state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateAtBreakpoint
	StateStepping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateAtBreakpoint:
		return "at-breakpoint"
	case StateStepping:
		return "stepping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// RegisteredPart is the debugger's view of a scripted part: enough to map a
// shadow file back to the part and to validate breakpoint lines.
type RegisteredPart interface {
	Path() string
	DebugFilePath() string
	DebugLineOffset() int
	// ScriptLine returns the raw text of the given 1-based shadow-file line,
	// or "" when out of range.
	ScriptLine(line int) string
}

// Debugger suspends scripted-part execution at breakpoints and on stepping,
// and resumes on user commands. One debugger serves a whole scenario; at
// most one script executes at a time, so suspension state is singular.
type Debugger struct {
	mu     sync.Mutex
	breaks map[string]map[int]bool       // canonic file -> shadow line -> set
	parts  map[string]RegisteredPart     // canonic file -> part

	// userAction is pumped while suspended so the embedding application can
	// service its event loop.
	userAction func()
	cmds       chan Command

	state    State
	stepping bool
	active   bool

	curFile string
	curLine int

	log logging.Logger
}

// New builds a debugger. userAction may be nil.
func New(userAction func(), log logging.Logger) *Debugger {
	if log == nil {
		log = logging.Noop()
	}
	return &Debugger{
		breaks:     map[string]map[int]bool{},
		parts:      map[string]RegisteredPart{},
		userAction: userAction,
		cmds:       make(chan Command, 1),
		log:        log,
	}
}

// Canonic normalizes a shadow-file path so breakpoint lookups are exact.
func Canonic(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(abs)
}

// RegisterPart associates a shadow file with its part.
func (d *Debugger) RegisterPart(p RegisteredPart) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.parts[Canonic(p.DebugFilePath())] = p
}

// UnregisterPart drops a part and its breakpoints.
func (d *Debugger) UnregisterPart(p RegisteredPart) {
	d.mu.Lock()
	defer d.mu.Unlock()
	file := Canonic(p.DebugFilePath())
	delete(d.parts, file)
	delete(d.breaks, file)
}

// PartForFile returns the part registered for a shadow file, or nil.
func (d *Debugger) PartForFile(file string) RegisteredPart {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.parts[Canonic(file)]
}

// SetBreak sets a breakpoint at a 1-based shadow-file line. The line is
// verified against the registered part's script: blank and comment lines
// cannot break.
func (d *Debugger) SetBreak(file string, line int) error {
	file = Canonic(file)
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.parts[file]
	if !ok {
		return fmt.Errorf("no scripted part registered for file %q", file)
	}
	if !breakableLine(p.ScriptLine(line)) {
		return fmt.Errorf("line %d of part %q is not a breakable statement", line, p.Path())
	}
	lines, ok := d.breaks[file]
	if !ok {
		lines = map[int]bool{}
		d.breaks[file] = lines
	}
	lines[line] = true
	return nil
}

// ClearBreak removes a single breakpoint.
func (d *Debugger) ClearBreak(file string, line int) {
	file = Canonic(file)
	d.mu.Lock()
	defer d.mu.Unlock()
	if lines, ok := d.breaks[file]; ok {
		delete(lines, line)
		if len(lines) == 0 {
			delete(d.breaks, file)
		}
	}
}

// ClearAllFileBreaks removes every breakpoint in a shadow file.
func (d *Debugger) ClearAllFileBreaks(file string) {
	file = Canonic(file)
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.breaks, file)
}

// FileBreaks returns the sorted set of shadow-file lines carrying
// breakpoints.
func (d *Debugger) FileBreaks(file string) []int {
	file = Canonic(file)
	d.mu.Lock()
	defer d.mu.Unlock()
	lines := make([]int, 0, len(d.breaks[file]))
	for line := range d.breaks[file] {
		lines = append(lines, line)
	}
	for i := 1; i < len(lines); i++ {
		for j := i; j > 0 && lines[j-1] > lines[j]; j-- {
			lines[j-1], lines[j] = lines[j], lines[j-1]
		}
	}
	return lines
}

func breakableLine(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "//") {
		return false
	}
	return true
}

// State reports the current execution state.
func (d *Debugger) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Location reports where execution is suspended (canonic shadow file plus
// 1-based line); only meaningful while suspended.
func (d *Debugger) Location() (string, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.curFile, d.curLine
}

// User commands. Each resumes a suspended script (or arms stepping for the
// next line). Commands sent while nothing is suspended are buffered; a
// buffered command applies to the next suspension.
func (d *Debugger) StepOver() { d.send(CmdStepOver) }
func (d *Debugger) StepIn()   { d.send(CmdStepIn) }
func (d *Debugger) StepOut()  { d.send(CmdStepOut) }
func (d *Debugger) Continue() { d.send(CmdContinue) }
func (d *Debugger) Stop()     { d.send(CmdStop) }

func (d *Debugger) send(c Command) {
	select {
	case d.cmds <- c:
	default:
		// replace a stale buffered command
		select {
		case <-d.cmds:
		default:
		}
		d.cmds <- c
	}
}

// DebugCall activates the debugger around a script execution. Line hooks
// fire only between activation and return.
func (d *Debugger) DebugCall(fn func() error) error {
	d.mu.Lock()
	d.active = true
	d.state = StateRunning
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.active = false
		if d.state != StateStopped {
			d.state = StateIdle
		}
		d.curFile, d.curLine = "", 0
		d.mu.Unlock()
	}()

	return fn()
}

// OnLine is called by instrumented scripts before each statement line.
// It suspends when the line carries a breakpoint or stepping is armed,
// pumps the user-action callback while suspended, and consumes exactly one
// resume command. Returns ErrQuit when the user stops the run.
func (d *Debugger) OnLine(file string, line int) error {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return nil
	}
	file = Canonic(file)
	suspend := d.stepping || d.breaks[file][line]
	if !suspend {
		d.mu.Unlock()
		return nil
	}
	if d.stepping {
		d.state = StateStepping
	} else {
		d.state = StateAtBreakpoint
	}
	d.curFile, d.curLine = file, line
	if p := d.parts[file]; p != nil {
		d.log.Debug(context.Background(), "script suspended",
			logging.String("part", p.Path()),
			logging.Int("line", line-p.DebugLineOffset()))
	}
	d.mu.Unlock()

	cmd := d.waitForCommand()

	d.mu.Lock()
	defer d.mu.Unlock()
	switch cmd {
	case CmdStop:
		d.state = StateStopped
		d.stepping = false
		return ErrQuit
	case CmdContinue:
		d.state = StateRunning
		d.stepping = false
	default:
		// Step granularity is the statement line; over, in and out all
		// suspend at the next executed line.
		d.state = StateRunning
		d.stepping = true
	}
	return nil
}

func (d *Debugger) waitForCommand() Command {
	for {
		if d.userAction != nil {
			d.userAction()
		}
		select {
		case cmd := <-d.cmds:
			return cmd
		case <-time.After(5 * time.Millisecond):
		}
	}
}
