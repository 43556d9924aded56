package core

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/signalsfoundry/scenario-engine/model"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var nonIdentRe = regexp.MustCompile(`[^A-Za-z0-9_]`)

// FunctionPart holds a user script wrapped into a named function with
// user-defined parameters. Calling or signaling the part runs the script
// body with the arguments bound to the parameters.
//
// The script the user edits is the function body; the sandbox compiles a
// wrapped form with one header line prepended, so debug and error line
// numbers are shifted by one.
type FunctionPart struct {
	*model.BasePart
	*Executable
	*Sandbox

	script   string
	params   []string
	funcName string
}

func NewFunctionPart(parent model.Part, name string, scen *Scenario) (*FunctionPart, error) {
	p := &FunctionPart{}
	p.BasePart = model.NewBasePart(p, parent, "function", name)
	p.funcName = FuncNamePrefix + nonIdentRe.ReplaceAllString(name, "_")

	sb, err := NewSandbox(p, scen)
	if err != nil {
		return nil, err
	}
	p.Sandbox = sb

	p.Executable = NewExecutable(ExecutableConfig{
		Self:      p,
		Owner:     p,
		Scheduler: scen.Scheduler(),
		Log:       scen.Log(),
		Metrics:   scen.Metrics(),
		Anim:      scen.Anim(),
	})
	p.Executable.Bind(p.execScript)

	if err := p.refreshWholeScript(); err != nil {
		return nil, err
	}
	return p, nil
}

// DebugLineOffset is the number of wrapper lines before the user's first
// script line.
func (p *FunctionPart) DebugLineOffset() int { return 1 }

func (p *FunctionPart) Script() string { return p.script }

// SetScript replaces the script body. The next execution recompiles.
func (p *FunctionPart) SetScript(script string) error {
	p.script = script
	return p.refreshWholeScript()
}

func (p *FunctionPart) Parameters() []string {
	out := make([]string, len(p.params))
	copy(out, p.params)
	return out
}

// SetParameters replaces the part's call signature. Each parameter must be
// a valid identifier.
func (p *FunctionPart) SetParameters(params ...string) error {
	for _, param := range params {
		if !identRe.MatchString(param) {
			return fmt.Errorf("invalid parameter name %q for part %q", param, p.Path())
		}
	}
	p.params = params
	return p.refreshWholeScript()
}

// refreshWholeScript rebuilds the wrapped script the sandbox compiles:
//
//	function func_<name>(<params>) {
//	    <body>
//	}
func (p *FunctionPart) refreshWholeScript() error {
	var b strings.Builder
	b.WriteString("function ")
	b.WriteString(p.funcName)
	b.WriteString("(")
	b.WriteString(strings.Join(p.params, ", "))
	b.WriteString(") {\n")
	for _, line := range strings.Split(p.script, "\n") {
		if line != "" {
			b.WriteString("    ")
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	b.WriteString("}")
	return p.UpdateDebuggableScript(b.String())
}

func (p *FunctionPart) execScript(ctx context.Context, debugMode, asSignal bool, args ...any) (any, error) {
	if _, err := p.CheckCompileAndExec(ctx); err != nil {
		return nil, err
	}
	fn, err := p.GetFromNamespace(p.funcName)
	if err != nil {
		return nil, &CallError{Msg: fmt.Sprintf(
			"part %q script did not define its callable: %v", p.Path(), err)}
	}
	return p.CallFunc(ctx, fn, debugMode, args...)
}

// Close releases the sandbox (debugger registration and shadow file).
func (p *FunctionPart) Close() { p.Sandbox.Close() }
