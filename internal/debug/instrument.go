package debug

import (
	"strconv"
	"strings"
)

// Instrument prefixes each statement line of a script with a call to the
// named hook function, passing the 1-based line number. The output has
// exactly the same number of lines as the input, so stack traces and
// breakpoints keep their coordinates.
//
// Lines that are blank, comments, continuations of a previous statement,
// inside a string or template literal, inside an unclosed parenthesis or
// object literal, or that begin with a token that cannot start a statement
// are left untouched. The scan is conservative: skipping an instrumentable
// line only costs a missed suspension point, while instrumenting a
// non-statement line breaks the script.
func Instrument(src, hook string) string {
	lines := strings.Split(src, "\n")
	out := make([]string, len(lines))

	st := scanState{}
	for i, line := range lines {
		prevOpen := st.openContext()
		continuation := st.continuation

		instrument := !prevOpen && !continuation && isStatementStart(line)

		st.scanLine(line)

		if instrument {
			indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
			body := line[len(indent):]
			out[i] = indent + hook + "(" + strconv.Itoa(i+1) + ");" + body
		} else {
			out[i] = line
		}
	}
	return strings.Join(out, "\n")
}

// isStatementStart reports whether a trimmed line can begin a new statement.
func isStatementStart(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "*") {
		return false
	}
	switch trimmed[0] {
	case '}', ')', ']', '{', '.', ',', '?', ':', '+', '-', '*', '/', '%', '=', '&', '|', '<', '>':
		return false
	}
	for _, kw := range []string{"else", "case ", "default:", "catch", "finally"} {
		if trimmed == strings.TrimSuffix(kw, " ") || strings.HasPrefix(trimmed, kw) {
			return false
		}
	}
	return true
}

// scanState tracks multi-line lexical context across the source.
type scanState struct {
	inBlockComment bool
	inTemplate     bool
	parenDepth     int
	continuation   bool

	// braces holds one entry per open brace: true when it opened an object
	// literal (expression position), false for a statement block.
	braces []bool
	// prevSig and word are the last significant code character and the
	// trailing identifier, used to classify an opening brace.
	prevSig byte
	word    string
}

// openContext reports whether the next line starts inside an unfinished
// lexical construct and so cannot begin a statement.
func (st *scanState) openContext() bool {
	if st.inBlockComment || st.inTemplate || st.parenDepth > 0 {
		return true
	}
	for _, expr := range st.braces {
		if expr {
			return true
		}
	}
	return false
}

func (st *scanState) scanLine(line string) {
	inString := byte(0) // ' or " while inside a single-line string
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case st.inBlockComment:
			if c == '*' && i+1 < len(line) && line[i+1] == '/' {
				st.inBlockComment = false
				i++
			}
		case st.inTemplate:
			if c == '\\' {
				i++
			} else if c == '`' {
				st.inTemplate = false
				st.mark(c)
			}
		case inString != 0:
			if c == '\\' {
				i++
			} else if c == inString {
				inString = 0
				st.mark(c)
			}
		default:
			switch c {
			case '/':
				if i+1 < len(line) {
					if line[i+1] == '/' {
						i = len(line)
						continue
					}
					if line[i+1] == '*' {
						st.inBlockComment = true
						i++
						break
					}
				}
				st.mark(c)
			case '\'', '"':
				inString = c
			case '`':
				st.inTemplate = true
			case '(', '[':
				st.parenDepth++
				st.mark(c)
			case ')', ']':
				if st.parenDepth > 0 {
					st.parenDepth--
				}
				st.mark(c)
			case '{':
				st.braces = append(st.braces, st.braceIsExpression())
				st.mark(c)
			case '}':
				if len(st.braces) > 0 {
					st.braces = st.braces[:len(st.braces)-1]
				}
				st.mark(c)
			default:
				if c != ' ' && c != '\t' {
					st.mark(c)
				}
			}
		}
		i++
	}

	st.continuation = st.continuationAfter(line, inString)
}

// mark records the last significant code character and maintains the
// trailing identifier.
func (st *scanState) mark(c byte) {
	if isWordChar(c) {
		st.word += string(c)
	} else {
		st.word = ""
	}
	st.prevSig = c
}

func isWordChar(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// braceIsExpression classifies an opening brace: after an operator, an
// opener, a separator, or a keyword like `return`, the brace starts an
// object literal rather than a block. Function bodies after `=>` are
// classified as literals too, which only skips suspension points inside
// them.
func (st *scanState) braceIsExpression() bool {
	switch st.word {
	case "return", "in", "of", "typeof", "case":
		return true
	}
	switch st.prevSig {
	case '=', '(', '[', ',', ':', '?', '&', '|', '+', '-', '*', '/', '%', '<', '>', '!':
		return true
	}
	return false
}

// continuationAfter reports whether the next line continues the statement
// ended (or not ended) by this one.
func (st *scanState) continuationAfter(line string, inString byte) bool {
	if st.openContext() || inString != 0 {
		// handled by the open-context check on the next line
		return false
	}
	code := stripTrailingComment(line)
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return st.continuation
	}
	last := trimmed[len(trimmed)-1]
	switch last {
	case ',', '+', '-', '*', '/', '%', '=', '&', '|', '<', '>', '?', ':', '.':
		return true
	}
	// A control-flow header whose parenthesized clause just closed starts
	// its (possibly brace-less) body on the next line; prefixing that body
	// would split it into two statements.
	if last == ')' {
		for _, kw := range []string{"if", "for", "while", "switch"} {
			if strings.HasPrefix(trimmed, kw+" ") || strings.HasPrefix(trimmed, kw+"(") {
				return true
			}
		}
	}
	if trimmed == "else" || trimmed == "do" {
		return true
	}
	return false
}

func stripTrailingComment(line string) string {
	inString := byte(0)
	for i := 0; i < len(line); i++ {
		c := line[i]
		if inString != 0 {
			if c == '\\' {
				i++
			} else if c == inString {
				inString = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			inString = c
		case '/':
			if i+1 < len(line) && line[i+1] == '/' {
				return line[:i]
			}
		}
	}
	return line
}
