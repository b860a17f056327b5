// Package instrument rewrites untrusted JavaScript before it enters the
// sandbox, injecting calls to the guest guard object so every loop iteration
// and tracked function entry is counted. The rewriter is a byte scanner, not
// a parser: it guards every site it can prove safe and leaves the rest to
// the external watchdog, which is the second protection layer precisely
// because source-level injection cannot reach everything.
package instrument

import (
	"sort"
	"strings"
)

// Guard call sites compiled into the rewritten source. The __sv object is
// installed by the guest runtime before user code runs.
const (
	loopGuard  = "__sv.loop();"
	enterGuard = "__sv.enter();try{"
	exitGuard  = "}finally{__sv.exit();}"
)

// Result is the rewritten source plus the number of guard sites of each
// kind, for logging and tests.
type Result struct {
	Source        string
	LoopSites     int
	FunctionSites int
}

// Inject instruments src. Loop guards are inserted at the top of every
// for/while/do body; function guards wrap every function and braced arrow
// body in an enter/exit pair so recursion depth survives exceptions.
// Braceless loop bodies are wrapped in braces when their end is provable,
// and skipped otherwise. Disabling both layers returns src unchanged.
func Inject(src string, loops, recursion bool) Result {
	if !loops && !recursion {
		return Result{Source: src}
	}

	in := &injector{src: src, mask: codeMask(src), skipWhile: map[int]bool{}}
	// Loops run first: when a braceless loop ends exactly where a function
	// body closes, the loop's brace must land before the finally block.
	if loops {
		in.guardLoops()
	}
	if recursion {
		in.wrapFunctions()
	}
	return Result{Source: in.apply(), LoopSites: in.loopSites, FunctionSites: in.funcSites}
}

type edit struct {
	pos  int
	text string
}

type injector struct {
	src   string
	mask  []bool
	edits []edit

	// while keywords that are the tail of a do-while, not loop heads.
	skipWhile map[int]bool

	loopSites int
	funcSites int
}

func (in *injector) guardLoops() {
	for p := 0; p < len(in.src); p++ {
		if !in.mask[p] {
			continue
		}
		switch {
		case in.keywordAt(p, "for"), in.keywordAt(p, "while"):
			if in.skipWhile[p] {
				continue
			}
			q := p + 3
			if in.src[p] == 'w' {
				q = p + 5
			}
			if aw := in.nextSig(q); aw != -1 && in.keywordAt(aw, "await") {
				q = aw + 5
			}
			open := in.nextSig(q)
			if open == -1 || in.src[open] != '(' {
				continue
			}
			cl := in.matchParen(open)
			if cl == -1 {
				continue
			}
			in.guardBody(cl + 1)

		case in.keywordAt(p, "do"):
			body := in.nextSig(p + 2)
			if body == -1 || in.src[body] != '{' {
				continue
			}
			in.edits = append(in.edits, edit{body + 1, loopGuard})
			in.loopSites++
			// The closing while of a do-while is not a loop head.
			if end := in.matchBrace(body); end != -1 {
				if w := in.nextSig(end + 1); w != -1 && in.keywordAt(w, "while") {
					in.skipWhile[w] = true
				}
			}
		}
	}
}

// guardBody injects the loop guard into the body that starts at or after
// from. A braced body gets the guard after its opening brace; a braceless
// body is wrapped in braces up to its terminating semicolon.
func (in *injector) guardBody(from int) {
	body := in.nextSig(from)
	if body == -1 {
		return
	}
	if in.src[body] == '{' {
		in.edits = append(in.edits, edit{body + 1, loopGuard})
		in.loopSites++
		return
	}
	end := in.statementEnd(body)
	if end == -1 {
		return
	}
	in.edits = append(in.edits, edit{body, "{" + loopGuard})
	in.edits = append(in.edits, edit{end + 1, "}"})
	in.loopSites++
}

func (in *injector) wrapFunctions() {
	for p := 0; p < len(in.src); p++ {
		if !in.mask[p] {
			continue
		}
		if in.keywordAt(p, "function") {
			q := in.nextSig(p + 8)
			if q == -1 {
				continue
			}
			if in.src[q] == '*' {
				q = in.nextSig(q + 1)
				if q == -1 {
					continue
				}
			}
			for q < len(in.src) && in.mask[q] && isWordByte(in.src[q]) {
				q++
			}
			open := in.nextSig(q)
			if open == -1 || in.src[open] != '(' {
				continue
			}
			cl := in.matchParen(open)
			if cl == -1 {
				continue
			}
			body := in.nextSig(cl + 1)
			if body == -1 || in.src[body] != '{' {
				continue
			}
			in.wrapBody(body)
			continue
		}
		// Braced arrow bodies. Expression-bodied arrows are left alone; a
		// runaway chain of those still trips the loop guard or watchdog.
		if in.src[p] == '=' && p+1 < len(in.src) && in.src[p+1] == '>' && in.mask[p+1] {
			if body := in.nextSig(p + 2); body != -1 && in.src[body] == '{' {
				in.wrapBody(body)
			}
		}
	}
}

func (in *injector) wrapBody(open int) {
	end := in.matchBrace(open)
	if end == -1 {
		return
	}
	in.edits = append(in.edits, edit{open + 1, enterGuard})
	in.edits = append(in.edits, edit{end, exitGuard})
	in.funcSites++
}

// keywordAt reports whether kw occurs at p as a standalone keyword: fully
// code-masked, word-bounded on both sides, and not a property name.
func (in *injector) keywordAt(p int, kw string) bool {
	if p+len(kw) > len(in.src) || in.src[p:p+len(kw)] != kw {
		return false
	}
	for q := p; q < p+len(kw); q++ {
		if !in.mask[q] {
			return false
		}
	}
	if p > 0 && isWordByte(in.src[p-1]) {
		return false
	}
	if e := p + len(kw); e < len(in.src) && isWordByte(in.src[e]) {
		return false
	}
	if q := in.prevSig(p); q >= 0 && in.src[q] == '.' {
		return false
	}
	return true
}

// nextSig returns the position of the next significant code byte at or
// after p, skipping whitespace, comments, and literal bodies.
func (in *injector) nextSig(p int) int {
	for q := p; q < len(in.src); q++ {
		if !in.mask[q] {
			continue
		}
		switch in.src[q] {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return q
	}
	return -1
}

func (in *injector) prevSig(p int) int {
	for q := p - 1; q >= 0; q-- {
		if !in.mask[q] {
			continue
		}
		switch in.src[q] {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return q
	}
	return -1
}

func (in *injector) matchParen(open int) int {
	depth := 0
	for q := open; q < len(in.src); q++ {
		if !in.mask[q] {
			continue
		}
		switch in.src[q] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return q
			}
		}
	}
	return -1
}

func (in *injector) matchBrace(open int) int {
	depth := 0
	for q := open; q < len(in.src); q++ {
		if !in.mask[q] {
			continue
		}
		switch in.src[q] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return q
			}
		}
	}
	return -1
}

// statementEnd finds the semicolon terminating the statement that starts at
// from, at nesting depth zero. It returns -1 when the statement ends by
// newline or enclosing brace instead; such bodies are left unguarded.
func (in *injector) statementEnd(from int) int {
	depth := 0
	for q := from; q < len(in.src); q++ {
		if !in.mask[q] {
			continue
		}
		switch in.src[q] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				return -1
			}
			depth--
		case ';':
			if depth == 0 {
				return q
			}
		}
	}
	return -1
}

func (in *injector) apply() string {
	if len(in.edits) == 0 {
		return in.src
	}
	es := append([]edit{}, in.edits...)
	sort.SliceStable(es, func(i, j int) bool { return es[i].pos < es[j].pos })

	var b strings.Builder
	b.Grow(len(in.src) + 24*len(es))
	last := 0
	for _, e := range es {
		b.WriteString(in.src[last:e.pos])
		b.WriteString(e.text)
		last = e.pos
	}
	b.WriteString(in.src[last:])
	return b.String()
}
