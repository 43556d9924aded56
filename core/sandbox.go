package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/dop251/goja"

	"github.com/signalsfoundry/scenario-engine/internal/debug"
	"github.com/signalsfoundry/scenario-engine/internal/logging"
	"github.com/signalsfoundry/scenario-engine/internal/observability"
	"github.com/signalsfoundry/scenario-engine/model"
)

// lineHookName is the namespace name of the debugger line hook injected
// into instrumented scripts.
const lineHookName = "__line__"

// Sandbox compiles and executes one part's script. It owns the script
// namespace (the runtime's global object), rebuilds it from scratch on
// demand, compiles the script at most once per source/namespace change, and
// mediates debugging through a shadow file when a debugger is present.
//
// A scripted part embeds a *Sandbox, calls UpdateDebuggableScript when its
// script changes, CheckCompileAndExec before using the namespace, and
// CallFunc to invoke a callable from the namespace.
type Sandbox struct {
	owner    model.Part
	scenario *Scenario
	log      logging.Logger
	metrics  *observability.ScriptCollector
	debugger *debug.Debugger

	vm      *goja.Runtime
	proxy   *LinkProxy
	imports *ImportSet

	autoNames   map[string]bool
	extraNames  map[string]any // names added by the part kind, re-applied on rebuild
	wholeScript string
	srcFilePath string
	needCompile bool

	dbgPart *sandboxDebugPart
}

// sandboxDebugPart adapts a sandbox for debugger registration and error
// reporting.
type sandboxDebugPart struct {
	sb *Sandbox
}

func (p *sandboxDebugPart) Path() string          { return p.sb.owner.Path() }
func (p *sandboxDebugPart) DebugFilePath() string { return p.sb.srcFilePath }
func (p *sandboxDebugPart) DebugLineOffset() int  { return p.sb.owner.DebugLineOffset() }
func (p *sandboxDebugPart) ScriptLine(line int) string {
	return p.sb.ScriptLine(line)
}

// NewSandbox builds the execution sandbox for a scripted part. When the
// scenario carries a debugger the script is shadowed to a temp file and the
// part is registered with the debugger; otherwise the shadow-file name is a
// unique in-memory identifier used in stack traces.
func NewSandbox(owner model.Part, scen *Scenario) (*Sandbox, error) {
	sb := &Sandbox{
		owner:      owner,
		scenario:   scen,
		log:        scen.Log(),
		metrics:    scen.Metrics(),
		debugger:   scen.Debugger(),
		autoNames:  map[string]bool{},
		extraNames: map[string]any{},
	}
	sb.proxy = NewLinkProxy(owner, sb.log, sb.metrics)
	sb.imports = NewImportSet(scen.Imports(), sb.log)
	sb.dbgPart = &sandboxDebugPart{sb: sb}

	if sb.debugger == nil {
		sb.srcFilePath = fmt.Sprintf("%s_%s", owner.Name(), owner.SessionID())
	} else {
		f, err := os.CreateTemp("", "part_script_*.js")
		if err != nil {
			return nil, fmt.Errorf("create script shadow file for part %q: %w", owner.Path(), err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("close script shadow file for part %q: %w", owner.Path(), err)
		}
		sb.srcFilePath = debug.Canonic(f.Name())
		sb.debugger.RegisterPart(sb.dbgPart)
	}

	sb.setupNamespace()
	return sb, nil
}

// Close releases debugger registration and the shadow file.
func (sb *Sandbox) Close() {
	if sb.debugger != nil {
		sb.debugger.UnregisterPart(sb.dbgPart)
		os.Remove(sb.srcFilePath)
	}
}

func (sb *Sandbox) Proxy() *LinkProxy { return sb.proxy }

// DebugFilePath is the shadow-file path (or in-memory identifier) the
// script compiles under.
func (sb *Sandbox) DebugFilePath() string { return sb.srcFilePath }

// WholeScript returns the current script source.
func (sb *Sandbox) WholeScript() string { return sb.wholeScript }

// ScriptLine returns the raw text of a 1-based script line, or "".
func (sb *Sandbox) ScriptLine(line int) string {
	lines := strings.Split(sb.wholeScript, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	return lines[line-1]
}

// UpdateDebuggableScript replaces the script source. The next
// CheckCompileAndExec recompiles. When a debugger is present the shadow
// file is rewritten; it must not contain carriage returns or the debugger's
// line accounting breaks.
func (sb *Sandbox) UpdateDebuggableScript(wholeScript string) error {
	sb.needCompile = true
	wholeScript = strings.ReplaceAll(wholeScript, "\r", "")
	if sb.debugger != nil {
		if err := os.WriteFile(sb.srcFilePath, []byte(wholeScript), 0o644); err != nil {
			return fmt.Errorf("write script shadow file for part %q: %w", sb.owner.Path(), err)
		}
	}
	sb.wholeScript = wholeScript
	return nil
}

// CheckCompileAndExec compiles and executes the whole script if needed.
// Returns true when a (re)compile happened, false when the script was
// already compiled and executed successfully with no intervening change.
// After return the namespace holds whatever the script defined.
func (sb *Sandbox) CheckCompileAndExec(ctx context.Context) (bool, error) {
	if !sb.needCompile {
		return false, nil
	}

	source := sb.wholeScript
	if sb.debugger != nil {
		source = debug.Instrument(source, lineHookName)
	}

	program, err := goja.Compile(sb.srcFilePath, source, false)
	if err != nil {
		sb.metrics.ObserveCompilation(false)
		return false, newCompileError(err, sb.dbgPart)
	}
	sb.metrics.ObserveCompilation(true)

	if _, err := sb.vm.RunProgram(program); err != nil {
		if swallowed, werr := sb.wrapScriptError(ctx, err); !swallowed {
			return false, werr
		}
		return false, nil
	}

	sb.needCompile = false
	return true, nil
}

// CallFunc invokes a callable from the namespace. The callee is validated
// before the call: not-a-function and missing required arguments yield
// CallError without running the body; failures inside the body yield
// RunError. A debug-mode run stopped by the user returns (nil, nil).
func (sb *Sandbox) CallFunc(ctx context.Context, fn goja.Value, debugMode bool, args ...any) (any, error) {
	if debugMode && sb.debugger == nil {
		return nil, fmt.Errorf("no debugger available, can't run part %q in debug mode", sb.owner.Path())
	}

	callable, ok := goja.AssertFunction(fn)
	if !ok {
		return nil, &CallError{Msg: fmt.Sprintf(
			"part %q script callable is not a function", sb.owner.Path())}
	}

	declared := int64(0)
	if obj := fn.ToObject(sb.vm); obj != nil {
		declared = obj.Get("length").ToInteger()
	}
	if int64(len(args)) < declared {
		return nil, &CallError{Msg: fmt.Sprintf(
			"invalid call into part %q script callable: missing required arguments (declared %d, got %d)",
			sb.owner.Path(), declared, len(args))}
	}

	jsArgs := make([]goja.Value, len(args))
	for i, a := range args {
		jsArgs[i] = sb.toScriptValue(a)
	}

	var result goja.Value
	run := func() error {
		var err error
		result, err = callable(goja.Undefined(), jsArgs...)
		return err
	}

	var err error
	if debugMode {
		err = sb.debugger.DebugCall(run)
	} else {
		err = run()
	}
	if err != nil {
		swallowed, werr := sb.wrapScriptError(ctx, err)
		if swallowed {
			return nil, nil
		}
		return nil, werr
	}
	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return nil, nil
	}
	return result.Export(), nil
}

// wrapScriptError classifies a failure out of the script engine. The
// swallowed return is true for a user-initiated debug stop, which aborts
// execution without being an error.
func (sb *Sandbox) wrapScriptError(ctx context.Context, err error) (swallowed bool, _ error) {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if quit, ok := interrupted.Value().(error); ok && errors.Is(quit, debug.ErrQuit) {
			sb.vm.ClearInterrupt()
			sb.log.Debug(ctx, "script execution aborted by user",
				logging.String("part", sb.owner.Path()))
			return true, nil
		}
		return false, newRunError(err, sb.dbgPart, interrupted.String(), sb.resolver())
	}
	if errors.Is(err, debug.ErrQuit) {
		sb.log.Debug(ctx, "script execution aborted by user",
			logging.String("part", sb.owner.Path()))
		return true, nil
	}

	var ex *goja.Exception
	if errors.As(err, &ex) {
		cause := sb.exceptionCause(ex)
		return false, newRunError(cause, sb.dbgPart, ex.String(), sb.resolver())
	}
	return false, newRunError(err, sb.dbgPart, "", sb.resolver())
}

// exceptionCause recovers the underlying error of a thrown value. Nested
// part calls panic with the wrapped Go error, so cross-part chains keep
// their types; plain script throws become the first line of the exception
// text.
func (sb *Sandbox) exceptionCause(ex *goja.Exception) error {
	if v := ex.Value(); v != nil {
		if inner, ok := v.Export().(error); ok {
			return inner
		}
	}
	first := ex.String()
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	return errors.New(strings.TrimSpace(first))
}

func (sb *Sandbox) resolver() partResolver {
	if sb.debugger == nil {
		return nil
	}
	return func(file string) scriptedPart {
		if p := sb.debugger.PartForFile(file); p != nil {
			if sp, ok := p.(scriptedPart); ok {
				return sp
			}
		}
		return nil
	}
}

// ---- namespace ----

// setupNamespace discards the runtime and builds a fresh one carrying the
// auto names every script sees, the part-kind extras, and the resolved
// import symbols. Any previous compile is invalidated.
func (sb *Sandbox) setupNamespace() {
	sb.needCompile = true
	sb.vm = goja.New()
	sb.autoNames = map[string]bool{}

	set := func(name string, v any) {
		sb.vm.Set(name, v)
		sb.autoNames[name] = true
	}

	set("self", sb.toScriptValue(sb.owner.AsLinkTargetValue()))
	set("_self_", sb.toScriptValue(sb.owner.Frame()))
	set("link", sb.vm.NewDynamicObject(&linkObject{sb: sb}))

	set("print", sb.scriptPrint())
	set("log", map[string]any{
		"debug": func(msg string) { sb.log.Debug(context.Background(), msg) },
		"info":  func(msg string) { sb.log.Info(context.Background(), msg) },
		"print": func(msg string) { sb.log.Print(context.Background(), msg) },
		"warn":  func(msg string) { sb.log.Warn(context.Background(), msg) },
		"error": func(msg string) { sb.log.Error(context.Background(), msg) },
	})

	for _, mod := range []string{"math", "random", "path"} {
		if values, ok := LookupModule(mod); ok {
			set(mod, values)
		}
	}

	set("get_scenario_name", func() goja.Value {
		if name := sb.scenario.FileName(); name != "" {
			return sb.vm.ToValue(name)
		}
		return goja.Null()
	})
	set("get_scenario_path", func() goja.Value {
		if dir := sb.scenario.FileDir(); dir != "" {
			return sb.vm.ToValue(dir)
		}
		return goja.Null()
	})

	set("profiler", sb.scriptProfiler())

	if sb.debugger != nil {
		sb.vm.Set(lineHookName, func(call goja.FunctionCall) goja.Value {
			line := int(call.Argument(0).ToInteger())
			if err := sb.debugger.OnLine(sb.srcFilePath, line); err != nil {
				sb.vm.Interrupt(err)
			}
			return goja.Undefined()
		})
		sb.autoNames[lineHookName] = true
	}

	for name, v := range sb.extraNames {
		sb.vm.Set(name, sb.toScriptValue(v))
		sb.autoNames[name] = true
	}

	for name, v := range sb.imports.SymbolValues() {
		sb.vm.Set(name, sb.toScriptValue(v))
	}
}

// scriptPrint joins its arguments with "," and routes them to the PRINT
// log. Scripts never write to process stdout.
func (sb *Sandbox) scriptPrint() func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = a.String()
		}
		sb.log.Print(context.Background(), strings.Join(parts, ","),
			logging.String("part", sb.owner.Path()))
		return goja.Undefined()
	}
}

// scriptProfiler exposes profiler(tags): starts a CPU profile named after
// the scenario file plus the sorted tag pairs, returning {stop: fn}.
func (sb *Sandbox) scriptProfiler() func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		tags := map[string]string{}
		if len(call.Arguments) > 0 {
			if m, ok := call.Argument(0).Export().(map[string]any); ok {
				for k, v := range m {
					tags[k] = fmt.Sprint(v)
				}
			}
		}
		p, err := StartBlockProfiler(sb.scenario.ProfileBasePath(), tags)
		if err != nil {
			panic(sb.vm.ToValue(err))
		}
		return sb.vm.ToValue(map[string]any{
			"stop": func() {
				if err := p.Stop(); err != nil {
					sb.log.Warn(context.Background(), "profiler stop failed",
						logging.Err(err))
				}
			},
		})
	}
}

// AddToNamespace adds a name to the script namespace. auto marks it as an
// engine-provided name that survives namespace rebuilds and is excluded
// from NamespaceNames(false).
func (sb *Sandbox) AddToNamespace(name string, value any, auto bool) {
	sb.vm.Set(name, sb.toScriptValue(value))
	if auto {
		sb.autoNames[name] = true
		sb.extraNames[name] = value
	}
}

// GetFromNamespace fetches a name defined in the script's namespace.
func (sb *Sandbox) GetFromNamespace(name string) (goja.Value, error) {
	v := sb.vm.GlobalObject().Get(name)
	if v == nil || goja.IsUndefined(v) {
		return nil, fmt.Errorf("part script %q does not define a variable named %q",
			sb.owner.Path(), name)
	}
	return v, nil
}

// NamespaceHas reports whether the namespace currently holds the name.
func (sb *Sandbox) NamespaceHas(name string) bool {
	if sb.needCompile {
		sb.log.Debug(context.Background(), "namespace queried while out of date",
			logging.String("part", sb.owner.Path()))
	}
	v := sb.vm.GlobalObject().Get(name)
	return v != nil && !goja.IsUndefined(v)
}

// NamespaceNames lists namespace names, sorted; withAuto false filters out
// the engine-provided ones.
func (sb *Sandbox) NamespaceNames(withAuto bool) []string {
	keys := sb.vm.GlobalObject().Keys()
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		if !withAuto && sb.autoNames[k] {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ---- imports ----

// AddImport registers an import symbol and rebuilds the namespace.
func (sb *Sandbox) AddImport(src ImportSource, alias string) {
	sb.imports.AddSymbol(src, alias)
	sb.setupNamespace()
}

// SetAllImports replaces the part's imports and rebuilds the namespace.
func (sb *Sandbox) SetAllImports(imports map[string]ImportSource) {
	sb.imports.ClearAllSymbols()
	for alias, src := range imports {
		sb.imports.AddSymbol(src, alias)
	}
	sb.setupNamespace()
}

func (sb *Sandbox) AllImports() map[string]ImportSource { return sb.imports.AllSymbols() }

func (sb *Sandbox) ResolvedImports() map[string]ImportSource { return sb.imports.ResolvedSymbols() }

func (sb *Sandbox) MissingImports() map[string]MissingReason { return sb.imports.MissingSymbols() }

// UnreferencedImports lists resolved import symbols the script never
// mentions.
func (sb *Sandbox) UnreferencedImports() []string {
	var unreferenced []string
	for name := range sb.ResolvedImports() {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
		if !re.MatchString(sb.wholeScript) {
			unreferenced = append(unreferenced, name)
		}
	}
	sort.Strings(unreferenced)
	return unreferenced
}

// ---- breakpoints ----

// SetBreakpoint sets a breakpoint at a 1-based user script line. Header
// lines the part kind prepends are accounted for.
func (sb *Sandbox) SetBreakpoint(line int) error {
	if sb.debugger == nil {
		return errors.New("no debugger available, can't set breakpoints")
	}
	return sb.debugger.SetBreak(sb.srcFilePath, line+sb.owner.DebugLineOffset())
}

func (sb *Sandbox) UnsetBreakpoint(line int) error {
	if sb.debugger == nil {
		return errors.New("no debugger available, can't unset breakpoints")
	}
	sb.debugger.ClearBreak(sb.srcFilePath, line+sb.owner.DebugLineOffset())
	return nil
}

func (sb *Sandbox) ClearAllBreakpoints() error {
	if sb.debugger == nil {
		return errors.New("no debugger available, can't clear breakpoints")
	}
	sb.debugger.ClearAllFileBreaks(sb.srcFilePath)
	return nil
}

// Breakpoints lists the current breakpoints in user script lines, sorted.
func (sb *Sandbox) Breakpoints() ([]int, error) {
	if sb.debugger == nil {
		return nil, errors.New("no debugger available, can't list breakpoints")
	}
	raw := sb.debugger.FileBreaks(sb.srcFilePath)
	lines := make([]int, len(raw))
	for i, l := range raw {
		lines[i] = l - sb.owner.DebugLineOffset()
	}
	return lines, nil
}

// SetBreakpoints replaces all breakpoints, then verifies the set took.
func (sb *Sandbox) SetBreakpoints(lines []int) error {
	if err := sb.ClearAllBreakpoints(); err != nil {
		return err
	}
	for _, line := range lines {
		if err := sb.SetBreakpoint(line); err != nil {
			return err
		}
	}
	want := map[int]bool{}
	for _, line := range lines {
		want[line] = true
	}
	got, err := sb.Breakpoints()
	if err != nil {
		return err
	}
	if len(got) != len(want) {
		return fmt.Errorf("breakpoints set mismatch in part %q: requested %v, active %v",
			sb.owner.Path(), lines, got)
	}
	for _, line := range got {
		if !want[line] {
			return fmt.Errorf("breakpoints set mismatch in part %q: requested %v, active %v",
				sb.owner.Path(), lines, got)
		}
	}
	return nil
}

// ---- link-change forwarding (the owning part's frame notifies us) ----

func (sb *Sandbox) OnOutgoingLinkAdded(l *model.Link) {}

func (sb *Sandbox) OnOutgoingLinkRemoved(l *model.Link) {
	sb.proxy.InvalidateLinkCache(l.Name())
}

func (sb *Sandbox) OnOutgoingLinkRenamed(oldName, newName string) {
	sb.proxy.InvalidateLinkCache(oldName)
}

func (sb *Sandbox) OnLinkTargetChanged(l *model.Link) {
	sb.proxy.InvalidateTargetCache(l)
}

// ---- script value mapping ----

// toScriptValue maps an engine value into the runtime. Frames, hubs, data
// parts and the link proxy become dynamic objects; executable parts become
// callables (with a .signal method) whose failures re-surface as wrapped Go
// errors so cross-part error chains keep their types.
func (sb *Sandbox) toScriptValue(v any) goja.Value {
	switch val := v.(type) {
	case nil:
		return goja.Null()
	case goja.Value:
		return val
	case *model.Frame:
		return sb.vm.NewDynamicObject(&frameObject{sb: sb, frame: val})
	case *model.HubProxy:
		return sb.vm.NewDynamicObject(&hubObject{sb: sb, proxy: val})
	case *model.DataPart:
		return sb.vm.NewDynamicObject(&dataObject{sb: sb, data: val})
	case Runnable:
		return sb.runnableValue(val)
	default:
		return sb.vm.ToValue(v)
	}
}

// runnableValue wraps an executable part as a script function: calling it
// calls the part, and .signal(...) queues nothing but signals it directly.
func (sb *Sandbox) runnableValue(r Runnable) goja.Value {
	callFn := func(call goja.FunctionCall) goja.Value {
		args := exportArgs(call.Arguments)
		result, err := r.Call(context.Background(), args...)
		if err != nil {
			panic(sb.vm.ToValue(err))
		}
		return sb.toScriptValue(result)
	}
	fn := sb.vm.ToValue(callFn)
	obj, ok := fn.(*goja.Object)
	if !ok {
		return fn
	}
	obj.Set("signal", func(call goja.FunctionCall) goja.Value {
		args := exportArgs(call.Arguments)
		if err := r.Signal(context.Background(), args...); err != nil {
			panic(sb.vm.ToValue(err))
		}
		return goja.Undefined()
	})
	return obj
}

func exportArgs(args []goja.Value) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a.Export()
	}
	return out
}

// linkObject exposes the link proxy attribute-style: link.name reads
// through the named link, link.name = v assigns through it.
type linkObject struct {
	sb *Sandbox
}

func (o *linkObject) Get(key string) goja.Value {
	v, err := o.sb.proxy.Resolve(key)
	if err != nil {
		panic(o.sb.vm.ToValue(err))
	}
	return o.sb.toScriptValue(v)
}

func (o *linkObject) Set(key string, val goja.Value) bool {
	if err := o.sb.proxy.Assign(key, val.Export()); err != nil {
		panic(o.sb.vm.ToValue(err))
	}
	return true
}

func (o *linkObject) Has(key string) bool    { return o.sb.proxy.Has(key) }
func (o *linkObject) Delete(key string) bool { return false }
func (o *linkObject) Keys() []string         { return o.sb.proxy.Names() }

// hubObject exposes a hub's outgoing links attribute-style.
type hubObject struct {
	sb    *Sandbox
	proxy *model.HubProxy
}

func (o *hubObject) Get(key string) goja.Value {
	v, err := o.proxy.Resolve(key)
	if err != nil {
		panic(o.sb.vm.ToValue(err))
	}
	return o.sb.toScriptValue(v)
}

func (o *hubObject) Set(key string, val goja.Value) bool {
	if err := o.proxy.Assign(key, val.Export()); err != nil {
		panic(o.sb.vm.ToValue(err))
	}
	return true
}

func (o *hubObject) Has(key string) bool    { return o.proxy.Has(key) }
func (o *hubObject) Delete(key string) bool { return false }
func (o *hubObject) Keys() []string         { return o.proxy.Names() }

// frameObject exposes a part frame to scripts: its name and the part it
// bounds.
type frameObject struct {
	sb    *Sandbox
	frame *model.Frame
}

func (o *frameObject) Get(key string) goja.Value {
	switch key {
	case "name":
		return o.sb.vm.ToValue(o.frame.Name())
	case "part":
		return o.sb.toScriptValue(o.frame.Part().AsLinkTargetValue())
	default:
		return goja.Undefined()
	}
}

func (o *frameObject) Set(key string, val goja.Value) bool { return false }
func (o *frameObject) Has(key string) bool                 { return key == "name" || key == "part" }
func (o *frameObject) Delete(key string) bool              { return false }
func (o *frameObject) Keys() []string                      { return []string{"name", "part"} }

// dataObject exposes a data part's fields attribute-style.
type dataObject struct {
	sb   *Sandbox
	data *model.DataPart
}

func (o *dataObject) Get(key string) goja.Value {
	v, ok := o.data.GetField(key)
	if !ok {
		return goja.Undefined()
	}
	return o.sb.toScriptValue(v)
}

func (o *dataObject) Set(key string, val goja.Value) bool {
	if err := o.data.SetField(key, val.Export()); err != nil {
		panic(o.sb.vm.ToValue(err))
	}
	return true
}

func (o *dataObject) Has(key string) bool {
	_, ok := o.data.GetField(key)
	return ok
}

func (o *dataObject) Delete(key string) bool { return o.data.DeleteField(key) }
func (o *dataObject) Keys() []string         { return o.data.FieldNames() }
