package scope

import (
	"fmt"
	"strings"

	"pyscope/internal/engine/lexer"
)

type frame struct {
	node  *Node
	level int
}

type pendingHeader struct {
	node      *Node
	headerEnd int
}

type parser struct {
	tree       *Tree
	level      int
	frames     []frame
	pending    *pendingHeader
	decorators []string
	lastLine   int
	final      int
	atEOF      bool
	line       []lexer.Token
}

// Parse builds the scope tree for a tokenized source text.
//   - A header opens a scope when the following logical line is indented.
//   - A Dedent back to the header's level closes it at the last significant
//     line seen, so trailing blank and comment lines are excluded.
//   - End of input closes every open scope, and any pending header, at the
//     final line of the text.
func Parse(res *lexer.Result) *Tree {
	p := &parser{tree: NewTree(res.Lines)}
	p.final = p.tree.Root.EndLine
	eof := trailingRun(res.Tokens)
	for i, tok := range res.Tokens {
		if i == eof {
			p.reachEOF()
		}
		switch tok.Kind {
		case lexer.KindComment:
		case lexer.KindIndent:
			p.indent()
		case lexer.KindDedent:
			p.settle()
			if p.level > 0 {
				p.level--
			}
			p.closeFrames(p.level)
		case lexer.KindNewline:
			p.flush()
		case lexer.KindEndOfInput:
			p.flush()
			p.finish()
		default:
			p.line = append(p.line, tok)
			if tok.EndLine > p.lastLine {
				p.lastLine = tok.EndLine
			}
		}
	}
	_ = p.tree.Check()
	return p.tree
}

// indent opens the pending header. Indented blocks of other statements only
// move the level.
func (p *parser) indent() {
	p.level++
	if p.pending == nil {
		return
	}
	p.frames = append(p.frames, frame{node: p.pending.node, level: p.level})
	p.pending = nil
}

// settle closes a header that never received an indented body.
func (p *parser) settle() {
	if p.pending == nil {
		return
	}
	p.pending.node.EndLine = p.pending.headerEnd
	if p.atEOF {
		p.pending.node.EndLine = p.final
	}
	p.pending = nil
}

// reachEOF is called before the closing Dedent and EndOfInput tokens. No
// significant token follows, so everything still open ends at the final line.
func (p *parser) reachEOF() {
	p.flush()
	p.atEOF = true
	if p.final > p.lastLine {
		p.lastLine = p.final
	}
}

// trailingRun returns the index where the closing Dedent and EndOfInput
// tokens begin.
func trailingRun(tokens []lexer.Token) int {
	i := len(tokens)
	for i > 0 && (tokens[i-1].Kind == lexer.KindDedent || tokens[i-1].Kind == lexer.KindEndOfInput) {
		i--
	}
	return i
}

func (p *parser) closeFrames(level int) {
	for len(p.frames) > 0 && p.frames[len(p.frames)-1].level > level {
		top := p.frames[len(p.frames)-1]
		top.node.EndLine = p.lastLine
		p.frames = p.frames[:len(p.frames)-1]
	}
}

func (p *parser) finish() {
	if !p.atEOF {
		p.reachEOF()
	}
	p.settle()
	p.closeFrames(-1)
	if p.lastLine > p.tree.Root.EndLine {
		p.tree.Root.EndLine = p.lastLine
	}
}

func (p *parser) current() *Node {
	if len(p.frames) == 0 {
		return p.tree.Root
	}
	return p.frames[len(p.frames)-1].node
}

func (p *parser) flush() {
	if len(p.line) == 0 {
		return
	}
	p.statement(p.line)
	p.line = p.line[:0]
}

func (p *parser) statement(line []lexer.Token) {
	p.settle()

	if line[0].Is(lexer.KindPunctuation, "@") {
		p.decorators = append(p.decorators, joinTokens(line[1:]))
		return
	}

	i := 0
	async := false
	if line[0].Is(lexer.KindKeyword, lexer.KeywordAsync) && len(line) > 1 && line[1].Is(lexer.KindKeyword, lexer.KeywordDef) {
		async, i = true, 1
	}
	switch {
	case line[i].Is(lexer.KindKeyword, lexer.KeywordClass):
		p.header(line, i, KindClass, false)
	case line[i].Is(lexer.KindKeyword, lexer.KeywordDef):
		p.header(line, i, KindFunction, async)
	default:
		p.decorators = nil
	}
}

func (p *parser) header(line []lexer.Token, i int, kind Kind, async bool) {
	decorators := p.decorators
	p.decorators = nil

	if i+1 >= len(line) || line[i+1].Kind != lexer.KindIdentifier {
		p.anomaly(line[i].Line, fmt.Sprintf("%s header without a name", kind))
		return
	}
	node := &Node{
		Name:       line[i+1].Text,
		Kind:       kind,
		Async:      async,
		Decorators: decorators,
		StartLine:  line[0].Line,
	}

	j := i + 2
	if j < len(line) && line[j].Is(lexer.KindPunctuation, "[") {
		j = skipGroup(line, j)
	}
	if kind == KindClass && j < len(line) && line[j].Is(lexer.KindPunctuation, "(") {
		node.Bases, j = splitBases(line, j)
	}

	headerEnd := line[len(line)-1].EndLine
	p.current().AddChild(node)

	colon := colonAt(line, j)
	switch {
	case colon < 0:
		p.anomaly(node.StartLine, fmt.Sprintf("%s %q header has no trailing colon", kind, node.Name))
		p.pending = &pendingHeader{node: node, headerEnd: headerEnd}
	case colon == len(line)-1:
		p.pending = &pendingHeader{node: node, headerEnd: headerEnd}
	default:
		node.EndLine = headerEnd
	}
}

func (p *parser) anomaly(line int, msg string) {
	p.tree.Anomalies = append(p.tree.Anomalies, lexer.Anomaly{Kind: lexer.AnomalyStructural, Line: line, Message: msg})
}

func isOpen(tok lexer.Token) bool {
	if tok.Kind != lexer.KindPunctuation {
		return false
	}
	switch tok.Text {
	case "(", "[", "{":
		return true
	}
	return false
}

func isClose(tok lexer.Token) bool {
	if tok.Kind != lexer.KindPunctuation {
		return false
	}
	switch tok.Text {
	case ")", "]", "}":
		return true
	}
	return false
}

// skipGroup returns the index just past the bracket group opened at line[j].
func skipGroup(line []lexer.Token, j int) int {
	depth := 0
	for k := j; k < len(line); k++ {
		switch {
		case isOpen(line[k]):
			depth++
		case isClose(line[k]):
			depth--
			if depth == 0 {
				return k + 1
			}
		}
	}
	return len(line)
}

// splitBases reads the parenthesized base list opened at line[j]. Entries are
// split on commas at the outer level and kept as raw expression text.
func splitBases(line []lexer.Token, j int) ([]string, int) {
	bases := []string{}
	depth := 0
	start := j + 1
	for k := j; k < len(line); k++ {
		tok := line[k]
		switch {
		case isOpen(tok):
			depth++
		case isClose(tok):
			depth--
			if depth == 0 {
				if text := joinTokens(line[start:k]); text != "" {
					bases = append(bases, text)
				}
				return bases, k + 1
			}
		case depth == 1 && tok.Is(lexer.KindPunctuation, ","):
			if text := joinTokens(line[start:k]); text != "" {
				bases = append(bases, text)
			}
			start = k + 1
		}
	}
	if text := joinTokens(line[start:]); text != "" {
		bases = append(bases, text)
	}
	return bases, len(line)
}

// colonAt finds the first ':' outside brackets at or after index j.
func colonAt(line []lexer.Token, j int) int {
	depth := 0
	for k := j; k < len(line); k++ {
		tok := line[k]
		switch {
		case isOpen(tok):
			depth++
		case isClose(tok):
			if depth > 0 {
				depth--
			}
		case depth == 0 && tok.Is(lexer.KindPunctuation, ":"):
			return k
		}
	}
	return -1
}

// joinTokens rebuilds source text from tokens, collapsing any gap between
// neighbours to a single space.
func joinTokens(tokens []lexer.Token) string {
	var b strings.Builder
	for i, tok := range tokens {
		if i > 0 && tok.Offset > tokens[i-1].End() {
			b.WriteByte(' ')
		}
		b.WriteString(tok.Text)
	}
	return b.String()
}
