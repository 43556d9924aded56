package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/signalsfoundry/scenario-engine/internal/observability"
	"github.com/signalsfoundry/scenario-engine/model"
)

func sandboxFixture(t *testing.T) (*Sandbox, *Scenario) {
	t.Helper()
	scen := NewScenario(ScenarioConfig{Name: "test"})
	owner := model.NewVariablePart(scen.Root(), "owner")
	sb, err := NewSandbox(owner, scen)
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	return sb, scen
}

func TestCompileHappensOnce(t *testing.T) {
	sb, _ := sandboxFixture(t)
	ctx := context.Background()

	if err := sb.UpdateDebuggableScript("var x = 41 + 1;"); err != nil {
		t.Fatalf("UpdateDebuggableScript: %v", err)
	}
	compiled, err := sb.CheckCompileAndExec(ctx)
	if err != nil {
		t.Fatalf("CheckCompileAndExec: %v", err)
	}
	if !compiled {
		t.Fatalf("first CheckCompileAndExec did not compile")
	}

	compiled, err = sb.CheckCompileAndExec(ctx)
	if err != nil {
		t.Fatalf("CheckCompileAndExec (second): %v", err)
	}
	if compiled {
		t.Fatalf("second CheckCompileAndExec recompiled unchanged script")
	}

	v, err := sb.GetFromNamespace("x")
	if err != nil {
		t.Fatalf("GetFromNamespace(x): %v", err)
	}
	if got := v.Export(); got != int64(42) {
		t.Fatalf("x = %v, want 42", got)
	}
}

func TestScriptUpdateForcesRecompile(t *testing.T) {
	sb, _ := sandboxFixture(t)
	ctx := context.Background()

	sb.UpdateDebuggableScript("var x = 1;")
	if _, err := sb.CheckCompileAndExec(ctx); err != nil {
		t.Fatalf("CheckCompileAndExec: %v", err)
	}

	sb.UpdateDebuggableScript("var x = 2;")
	compiled, err := sb.CheckCompileAndExec(ctx)
	if err != nil {
		t.Fatalf("CheckCompileAndExec after update: %v", err)
	}
	if !compiled {
		t.Fatalf("script update did not force a recompile")
	}
	v, _ := sb.GetFromNamespace("x")
	if got := v.Export(); got != int64(2) {
		t.Fatalf("x = %v, want 2", got)
	}
}

func TestCompileErrorReportsUserLine(t *testing.T) {
	sb, _ := sandboxFixture(t)
	sb.UpdateDebuggableScript("var ok = 1;\nvar bad = ;")

	_, err := sb.CheckCompileAndExec(context.Background())
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("CheckCompileAndExec = %v, want CompileError", err)
	}
	if ce.Line != 2 {
		t.Fatalf("CompileError.Line = %d, want 2", ce.Line)
	}
	if ce.Stmt != "var bad = ;" {
		t.Fatalf("CompileError.Stmt = %q", ce.Stmt)
	}
	if ce.PartPath != "/test/owner" {
		t.Fatalf("CompileError.PartPath = %q", ce.PartPath)
	}
}

func TestNamespaceAccess(t *testing.T) {
	sb, _ := sandboxFixture(t)
	sb.UpdateDebuggableScript("var counter = 0;")
	if _, err := sb.CheckCompileAndExec(context.Background()); err != nil {
		t.Fatalf("CheckCompileAndExec: %v", err)
	}

	if !sb.NamespaceHas("counter") {
		t.Fatalf("NamespaceHas(counter) = false")
	}
	if sb.NamespaceHas("missing") {
		t.Fatalf("NamespaceHas(missing) = true")
	}

	_, err := sb.GetFromNamespace("missing")
	if err == nil {
		t.Fatalf("GetFromNamespace(missing) succeeded")
	}
	want := `part script "/test/owner" does not define a variable named "missing"`
	if err.Error() != want {
		t.Fatalf("error = %q, want %q", err.Error(), want)
	}

	names := sb.NamespaceNames(false)
	for _, n := range names {
		if n == "self" || n == "link" || n == "print" {
			t.Fatalf("NamespaceNames(false) leaked auto name %q", n)
		}
	}
	var sawCounter bool
	for _, n := range names {
		if n == "counter" {
			sawCounter = true
		}
	}
	if !sawCounter {
		t.Fatalf("NamespaceNames(false) = %v, missing counter", names)
	}
}

func TestAddToNamespace(t *testing.T) {
	sb, _ := sandboxFixture(t)
	sb.AddToNamespace("answer", 42, false)
	v, err := sb.GetFromNamespace("answer")
	if err != nil {
		t.Fatalf("GetFromNamespace(answer): %v", err)
	}
	if got := v.Export(); got != int64(42) {
		t.Fatalf("answer = %v, want 42", got)
	}
}

func TestCallFuncRejectsNonFunction(t *testing.T) {
	sb, _ := sandboxFixture(t)
	sb.UpdateDebuggableScript("var x = 5;")
	if _, err := sb.CheckCompileAndExec(context.Background()); err != nil {
		t.Fatalf("CheckCompileAndExec: %v", err)
	}

	v, _ := sb.GetFromNamespace("x")
	_, err := sb.CallFunc(context.Background(), v, false)
	var le *CallError
	if !errors.As(err, &le) {
		t.Fatalf("CallFunc on non-function = %v, want CallError", err)
	}
	if !strings.Contains(le.Msg, "is not a function") {
		t.Fatalf("CallError.Msg = %q", le.Msg)
	}
}

func TestCallFuncRejectsMissingArguments(t *testing.T) {
	sb, _ := sandboxFixture(t)
	sb.UpdateDebuggableScript("function f(a, b) { return a + b; }")
	if _, err := sb.CheckCompileAndExec(context.Background()); err != nil {
		t.Fatalf("CheckCompileAndExec: %v", err)
	}

	fn, _ := sb.GetFromNamespace("f")
	_, err := sb.CallFunc(context.Background(), fn, false, 1)
	var le *CallError
	if !errors.As(err, &le) {
		t.Fatalf("CallFunc with missing args = %v, want CallError", err)
	}
	if !strings.Contains(le.Msg, "missing required arguments") {
		t.Fatalf("CallError.Msg = %q", le.Msg)
	}

	got, err := sb.CallFunc(context.Background(), fn, false, 1, 2)
	if err != nil {
		t.Fatalf("CallFunc with full args = %v", err)
	}
	if got != int64(3) {
		t.Fatalf("CallFunc = %v, want 3", got)
	}
}

func TestCallFuncDebugModeNeedsDebugger(t *testing.T) {
	sb, _ := sandboxFixture(t)
	sb.UpdateDebuggableScript("function f() {}")
	sb.CheckCompileAndExec(context.Background())
	fn, _ := sb.GetFromNamespace("f")

	if _, err := sb.CallFunc(context.Background(), fn, true); err == nil {
		t.Fatalf("debug-mode call without a debugger succeeded")
	}
}

func TestBreakpointOpsNeedDebugger(t *testing.T) {
	sb, _ := sandboxFixture(t)

	if err := sb.SetBreakpoint(1); err == nil {
		t.Fatalf("SetBreakpoint without a debugger succeeded")
	}
	if err := sb.UnsetBreakpoint(1); err == nil {
		t.Fatalf("UnsetBreakpoint without a debugger succeeded")
	}
	if err := sb.ClearAllBreakpoints(); err == nil {
		t.Fatalf("ClearAllBreakpoints without a debugger succeeded")
	}
	if _, err := sb.Breakpoints(); err == nil {
		t.Fatalf("Breakpoints without a debugger succeeded")
	}
	if err := sb.SetBreakpoints([]int{1}); err == nil {
		t.Fatalf("SetBreakpoints without a debugger succeeded")
	}
}

func TestModuleAutosAvailable(t *testing.T) {
	sb, _ := sandboxFixture(t)
	sb.UpdateDebuggableScript("var r = math.floor(math.pi);")
	if _, err := sb.CheckCompileAndExec(context.Background()); err != nil {
		t.Fatalf("CheckCompileAndExec: %v", err)
	}
	v, err := sb.GetFromNamespace("r")
	if err != nil {
		t.Fatalf("GetFromNamespace(r): %v", err)
	}
	if got := v.ToFloat(); got != 3 {
		t.Fatalf("math.floor(math.pi) = %v, want 3", got)
	}
}

func TestUnreferencedImports(t *testing.T) {
	sb, _ := sandboxFixture(t)
	sb.AddImport(ImportSource{Module: "math", Attr: "pi"}, "")
	sb.AddImport(ImportSource{Module: "math", Attr: "e"}, "")
	sb.UpdateDebuggableScript("var twoPi = pi * 2;")

	got := sb.UnreferencedImports()
	if len(got) != 1 || got[0] != "e" {
		t.Fatalf("UnreferencedImports() = %v, want [e]", got)
	}
}

func TestImportSymbolVisibleToScript(t *testing.T) {
	sb, _ := sandboxFixture(t)
	sb.AddImport(ImportSource{Module: "math", Attr: "pi"}, "")
	sb.UpdateDebuggableScript("var twoPi = pi * 2;")
	if _, err := sb.CheckCompileAndExec(context.Background()); err != nil {
		t.Fatalf("CheckCompileAndExec: %v", err)
	}
	v, err := sb.GetFromNamespace("twoPi")
	if err != nil {
		t.Fatalf("GetFromNamespace(twoPi): %v", err)
	}
	got, ok := v.Export().(float64)
	if !ok || got < 6.28 || got > 6.29 {
		t.Fatalf("twoPi = %v, want ~6.283", v.Export())
	}
}

func TestCompileMetricOutcomeSplitsFromRunFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := observability.NewScriptCollector(reg)
	if err != nil {
		t.Fatalf("NewScriptCollector: %v", err)
	}
	scen := NewScenario(ScenarioConfig{Name: "test", Metrics: collector})
	owner := model.NewVariablePart(scen.Root(), "owner")
	sb, err := NewSandbox(owner, scen)
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}

	sb.UpdateDebuggableScript("throw new Error('at top level');")
	if _, err := sb.CheckCompileAndExec(context.Background()); err == nil {
		t.Fatalf("CheckCompileAndExec with throwing top level succeeded")
	}

	if got := testutil.ToFloat64(collector.Compilations.WithLabelValues("ok")); got != 1 {
		t.Fatalf("script_compilations_total{outcome=ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Compilations.WithLabelValues("error")); got != 0 {
		t.Fatalf("script_compilations_total{outcome=error} = %v, want 0", got)
	}

	sb.UpdateDebuggableScript("var x = ;")
	if _, err := sb.CheckCompileAndExec(context.Background()); err == nil {
		t.Fatalf("CheckCompileAndExec with syntax error succeeded")
	}
	if got := testutil.ToFloat64(collector.Compilations.WithLabelValues("error")); got != 1 {
		t.Fatalf("script_compilations_total{outcome=error} = %v, want 1", got)
	}
}
