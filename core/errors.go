package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FuncNamePrefix prefixes the wrapper function a function part compiles its
// body into. Error messages suppress the wrapper name: the user never wrote
// it.
const FuncNamePrefix = "func_"

// scriptedPart is the error builders' view of a scripted part.
type scriptedPart interface {
	Path() string
	DebugFilePath() string
	DebugLineOffset() int
	// ScriptLine returns the raw text of a 1-based shadow-file line, or "".
	ScriptLine(line int) string
}

// partResolver maps a shadow-file path to its scripted part, or nil.
type partResolver func(file string) scriptedPart

// CompileError reports a script that failed to compile. Line and Stmt are in
// the user's coordinates: header lines the engine prepends are subtracted
// out.
type CompileError struct {
	PartPath string
	Line     int
	Stmt     string
	Msg      string
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("script compilation error in part %q at line %d, statement %q: %s",
			e.PartPath, e.Line, e.Stmt, e.Msg)
	}
	return fmt.Sprintf("script compilation error in part %q: %s", e.PartPath, e.Msg)
}

var compileLineRe = regexp.MustCompile(`Line (\d+):(\d+)`)

// newCompileError parses the engine's compile failure into user coordinates.
func newCompileError(err error, part scriptedPart) *CompileError {
	msg := err.Error()
	ce := &CompileError{PartPath: part.Path(), Msg: strings.TrimSpace(msg)}
	if m := compileLineRe.FindStringSubmatch(msg); m != nil {
		raw, _ := strconv.Atoi(m[1])
		ce.Line = raw - part.DebugLineOffset()
		ce.Stmt = strings.TrimSpace(part.ScriptLine(raw))
	}
	return ce
}

// CallError reports an invalid call into a part's script callable: the
// callee is not a function, or required parameters are missing. The body
// never ran.
type CallError struct {
	Msg string
}

func (e *CallError) Error() string { return e.Msg }

// RunError reports a script that compiled and was called correctly but
// failed while running. The message carries the chain of scenario parts
// involved, innermost failure first.
type RunError struct {
	messageStack []string
	msg          string
}

func (e *RunError) Error() string { return e.msg }

// MessageStack returns the chain messages, innermost first.
func (e *RunError) MessageStack() []string {
	out := make([]string, len(e.messageStack))
	copy(out, e.messageStack)
	return out
}

// newRunError chains a failure out of a part's script. cause is whatever the
// execution raised; stackText is the script engine's stack trace for the
// failure; resolve maps shadow files to parts (nil without a debugger).
func newRunError(cause error, raisingPart scriptedPart, stackText string, resolve partResolver) *RunError {
	re := &RunError{}

	var prefix string
	switch inner := cause.(type) {
	case *CompileError:
		// a nested part's script would not compile
		re.messageStack = append(re.messageStack, inner.Error())
		prefix = "-> Required by "
	case *CallError:
		re.messageStack = append(re.messageStack, inner.Error())
		prefix = "-> From invalid call into part script callable at "
	case *RunError:
		re.messageStack = append(re.messageStack, inner.messageStack...)
		prefix = "-> Nested call from "
	default:
		re.messageStack = append(re.messageStack, cause.Error())
		prefix = "-> Called from "
	}

	re.messageStack = append(re.messageStack, prefix+findFrameInfo(stackText, raisingPart, resolve))

	re.msg = fmt.Sprintf("script execution error: %s\n%s",
		re.messageStack[0], strings.Join(re.messageStack[1:], "\n"))
	return re
}

// stackFrame is one parsed engine stack entry.
type stackFrame struct {
	funcName string
	file     string
	line     int
}

// parseStackFrames extracts (func, file, line) from the engine's stack
// text, innermost frame first. Lines that do not look like frames are
// skipped.
func parseStackFrames(stackText string) []stackFrame {
	var frames []stackFrame
	for _, line := range strings.Split(stackText, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "at ") {
			continue
		}
		entry := strings.TrimSpace(strings.TrimPrefix(trimmed, "at "))

		var name, pos string
		if i := strings.Index(entry, " ("); i >= 0 && strings.HasSuffix(entry, ")") {
			name = entry[:i]
			pos = entry[i+2 : len(entry)-1]
		} else {
			pos = entry
		}
		// position is file:line:col with an optional trailing (pc)
		if i := strings.LastIndex(pos, "("); i >= 0 {
			pos = strings.TrimSpace(pos[:i])
		}
		parts := strings.Split(pos, ":")
		if len(parts) < 3 {
			continue
		}
		lineNum, err := strconv.Atoi(parts[len(parts)-2])
		if err != nil {
			continue
		}
		frames = append(frames, stackFrame{
			funcName: name,
			file:     strings.Join(parts[:len(parts)-2], ":"),
			line:     lineNum,
		})
	}
	return frames
}

// findFrameInfo locates the innermost stack frame that belongs to a scenario
// part and renders it for the user. Falls back to the raising part's own
// shadow file, then to the raw frame.
func findFrameInfo(stackText string, raisingPart scriptedPart, resolve partResolver) string {
	frames := parseStackFrames(stackText)
	for _, f := range frames {
		if resolve != nil {
			if p := resolve(f.file); p != nil {
				return frameInfoForPart(p, f)
			}
		}
		if raisingPart != nil && f.file == raisingPart.DebugFilePath() {
			return frameInfoForPart(raisingPart, f)
		}
	}
	if len(frames) > 0 {
		f := frames[0]
		return fmt.Sprintf("line %d of %s, in %s", f.line, f.file, displayFuncName(f.funcName))
	}
	if raisingPart != nil {
		return fmt.Sprintf("part %q", raisingPart.Path())
	}
	return "unknown location"
}

func frameInfoForPart(p scriptedPart, f stackFrame) string {
	lineNum := f.line - p.DebugLineOffset()
	msg := fmt.Sprintf("line %d of part %q", lineNum, p.Path())
	if stmt := strings.TrimSpace(p.ScriptLine(f.line)); stmt != "" {
		msg += fmt.Sprintf(", statement %q", stmt)
	}
	// the wrapper function a function part compiles into is not the user's:
	// suppress it, the part path already identifies the script
	if !strings.HasPrefix(f.funcName, FuncNamePrefix) {
		msg += ", in " + displayFuncName(f.funcName)
	}
	return msg
}

// displayFuncName maps the engine's top-level frame (no function name) to
// "<script>"; named functions get call parens.
func displayFuncName(name string) string {
	if name == "" || name == "<anonymous>" {
		return "<script>"
	}
	return name + "()"
}

// InvalidLinkingError is raised when a multiplier part is linked to a part
// that cannot be called or signaled.
type InvalidLinkingError struct {
	PartPath   string
	TargetPath string
}

func (e *InvalidLinkingError) Error() string {
	return fmt.Sprintf("invalid part linking: multiplier part %q should not be linked to part %q: "+
		"multiplier parts should only be linked to executable parts", e.PartPath, e.TargetPath)
}
