// Package lexer turns `#`-comment, indentation-delimited source text into a
// flat token stream. It never fails: malformed input is recovered locally and
// reported through Result.Anomalies.
package lexer

import (
	"fmt"
	"strings"
)

type mode int

const (
	modeNormal mode = iota
	modeSingleQuote
	modeDoubleQuote
	modeTripleQuote
)

func (m mode) String() string {
	switch m {
	case modeNormal:
		return "Normal"
	case modeSingleQuote:
		return "InSingleQuoteString"
	case modeDoubleQuote:
		return "InDoubleQuoteString"
	case modeTripleQuote:
		return "InTripleQuoteString"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Options tunes indentation measurement.
type Options struct {
	// TabWidth is the column multiple a tab advances to.
	TabWidth int
}

func DefaultOptions() Options {
	return Options{TabWidth: 8}
}

// Result is the output of a single Tokenize call.
type Result struct {
	Tokens    []Token
	Comments  []Comment
	Anomalies []Anomaly
	// Lines is the number of physical lines in the input.
	Lines int
}

type lexer struct {
	src  string
	opts Options
	res  *Result

	pos       int
	line      int
	lineStart int

	mode     mode
	quote    byte
	strStart int
	strLine  int
	strCol   int

	tracker      *Tracker
	atLineStart  bool
	lineDepth    int
	logicalOpen  bool
	physHasToken bool
	joined       bool
	lastLine     int

	brackets     int
	bracketLine  int
	bracketDepth int
}

// Tokenize scans src and returns its tokens, comments and anomalies.
// The token stream always ends with Newline (when a logical line is open),
// one Dedent per open indentation level, and EndOfInput.
func Tokenize(src string, opts Options) *Result {
	if opts.TabWidth <= 0 {
		opts.TabWidth = DefaultOptions().TabWidth
	}
	l := &lexer{
		src:         src,
		opts:        opts,
		res:         &Result{Tokens: make([]Token, 0, len(src)/4+1), Comments: []Comment{}, Anomalies: []Anomaly{}},
		line:        1,
		tracker:     NewTracker(),
		atLineStart: true,
	}
	l.run()
	return l.res
}

func (l *lexer) run() {
	for l.pos < len(l.src) {
		switch l.mode {
		case modeNormal:
			l.lexNormal()
		case modeSingleQuote, modeDoubleQuote:
			l.lexShortString()
		case modeTripleQuote:
			l.lexLongString()
		}
	}
	if l.mode != modeNormal {
		l.closeString(true)
	}
	l.finish()
}

func (l *lexer) lexNormal() {
	if l.atLineStart {
		l.beginPhysicalLine()
		return
	}
	c := l.src[l.pos]
	switch {
	case c == '\n':
		l.endPhysicalLine()
	case c == ' ' || c == '\t' || c == '\f' || c == '\r' || c == '\v':
		l.pos++
	case c == '#':
		l.lexComment()
	case c == '\\':
		l.lexBackslash()
	case c == '"' || c == '\'':
		l.openString(l.pos, l.pos)
	case isDigit(c) || (c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		l.lexNumber()
	case isIdentStart(c):
		l.lexWord()
	default:
		l.lexPunct()
	}
}

// beginPhysicalLine measures leading whitespace. Only lines that start a new
// logical line update lineDepth; bracket and backslash continuations do not.
func (l *lexer) beginPhysicalLine() {
	l.atLineStart = false
	l.physHasToken = false
	depth := l.measureIndent()

	if l.joined {
		l.joined = false
		return
	}
	if l.brackets > 0 {
		if depth > l.bracketDepth || !l.startsHeader() {
			return
		}
		l.anomaly(AnomalyLexical, l.bracketLine, fmt.Sprintf("unclosed bracket, resynchronized at line %d", l.line))
		l.brackets = 0
		l.closeLogicalLine("", l.pos)
	}
	l.lineDepth = depth
}

func (l *lexer) measureIndent() int {
	depth := 0
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ':
			depth++
		case '\t':
			depth = (depth/l.opts.TabWidth + 1) * l.opts.TabWidth
		case '\f':
			depth = 0
		default:
			return depth
		}
		l.pos++
	}
	return depth
}

// startsHeader reports whether a class or def header begins at pos.
func (l *lexer) startsHeader() bool {
	word := l.wordAt(l.pos)
	switch word {
	case KeywordClass, KeywordDef:
		return true
	case KeywordAsync:
		i := l.pos + len(word)
		for i < len(l.src) && (l.src[i] == ' ' || l.src[i] == '\t') {
			i++
		}
		return l.wordAt(i) == KeywordDef
	}
	return false
}

func (l *lexer) wordAt(i int) string {
	if i >= len(l.src) || !isIdentStart(l.src[i]) {
		return ""
	}
	j := i
	for j < len(l.src) && isIdentByte(l.src[j]) {
		j++
	}
	return l.src[i:j]
}

func (l *lexer) endPhysicalLine() {
	if l.brackets == 0 && l.logicalOpen {
		l.closeLogicalLine("\n", l.pos)
	}
	l.pos++
	l.newPhysicalLine()
	l.atLineStart = true
}

func (l *lexer) newPhysicalLine() {
	l.line++
	l.lineStart = l.pos
}

func (l *lexer) closeLogicalLine(text string, offset int) {
	if !l.logicalOpen {
		return
	}
	tok := Token{Kind: KindNewline, Text: text, Line: l.lastLine, Column: 1, EndLine: l.lastLine, Offset: offset}
	if text != "" {
		tok.Line, tok.EndLine, tok.Column = l.line, l.line, offset-l.lineStart+1
	}
	l.res.Tokens = append(l.res.Tokens, tok)
	l.logicalOpen = false
}

func (l *lexer) lexComment() {
	start := l.pos
	for l.pos < len(l.src) && l.src[l.pos] != '\n' {
		l.pos++
	}
	text := strings.TrimRight(l.src[start:l.pos], " \t\r\f\v")
	l.res.Tokens = append(l.res.Tokens, Token{
		Kind:    KindComment,
		Text:    text,
		Line:    l.line,
		Column:  start - l.lineStart + 1,
		EndLine: l.line,
		Offset:  start,
	})
	l.res.Comments = append(l.res.Comments, Comment{Text: text, Line: l.line, Inline: l.physHasToken})
}

func (l *lexer) lexBackslash() {
	if l.pos+1 < len(l.src) && l.src[l.pos+1] == '\n' {
		l.pos += 2
		l.newPhysicalLine()
		l.joined = true
		l.atLineStart = true
		return
	}
	start, col := l.pos, l.col()
	l.pos++
	l.emit(KindPunctuation, start, l.line, col, false)
}

func (l *lexer) lexWord() {
	start, col := l.pos, l.col()
	for l.pos < len(l.src) && isIdentByte(l.src[l.pos]) {
		l.pos++
	}
	word := l.src[start:l.pos]
	if l.pos < len(l.src) && isQuote(l.src[l.pos]) && isStringPrefix(word) {
		l.openString(start, l.pos)
		return
	}
	kind := KindIdentifier
	switch word {
	case KeywordClass, KeywordDef, KeywordAsync:
		kind = KindKeyword
	}
	l.emit(kind, start, l.line, col, false)
}

func (l *lexer) lexNumber() {
	start, col := l.pos, l.col()
	hex := strings.HasPrefix(l.src[start:], "0x") || strings.HasPrefix(l.src[start:], "0X")
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if isIdentByte(c) || c == '.' {
			l.pos++
			continue
		}
		if (c == '+' || c == '-') && !hex && l.pos > start {
			if prev := l.src[l.pos-1]; prev == 'e' || prev == 'E' {
				l.pos++
				continue
			}
		}
		break
	}
	l.emit(KindNumber, start, l.line, col, false)
}

var operators = []string{
	"**=", "//=", ">>=", "<<=", "...",
	"**", "//", "==", "!=", "<=", ">=", ":=", "->", "<<", ">>",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=",
}

func (l *lexer) lexPunct() {
	start, col := l.pos, l.col()
	width := 1
	for _, op := range operators {
		if strings.HasPrefix(l.src[l.pos:], op) {
			width = len(op)
			break
		}
	}
	l.pos += width
	text := l.src[start:l.pos]
	if width == 1 {
		switch text[0] {
		case '(', '[', '{':
			if l.brackets == 0 {
				l.bracketLine = l.line
				l.bracketDepth = l.lineDepth
			}
			l.brackets++
		case ')', ']', '}':
			if l.brackets > 0 {
				l.brackets--
			}
		}
	}
	l.emit(KindPunctuation, start, l.line, col, false)
}

func (l *lexer) openString(start, quotePos int) {
	q := l.src[quotePos]
	l.strStart, l.strLine, l.strCol = start, l.line, start-l.lineStart+1
	l.quote = q
	if strings.HasPrefix(l.src[quotePos:], strings.Repeat(string(q), 3)) {
		l.pos = quotePos + 3
		l.mode = modeTripleQuote
		return
	}
	l.pos = quotePos + 1
	if q == '\'' {
		l.mode = modeSingleQuote
	} else {
		l.mode = modeDoubleQuote
	}
}

func (l *lexer) lexShortString() {
	for l.pos < len(l.src) {
		switch c := l.src[l.pos]; c {
		case '\\':
			l.pos++
			l.consumeEscaped()
		case '\n':
			l.closeString(true)
			return
		case l.quote:
			l.pos++
			l.closeString(false)
			return
		default:
			l.pos++
		}
	}
}

func (l *lexer) lexLongString() {
	closing := strings.Repeat(string(l.quote), 3)
	for l.pos < len(l.src) {
		switch c := l.src[l.pos]; {
		case c == '\\':
			l.pos++
			l.consumeEscaped()
		case c == '\n':
			l.pos++
			l.newPhysicalLine()
		case c == l.quote && strings.HasPrefix(l.src[l.pos:], closing):
			l.pos += len(closing)
			l.closeString(false)
			return
		default:
			l.pos++
		}
	}
}

func (l *lexer) consumeEscaped() {
	if l.pos >= len(l.src) {
		return
	}
	if l.src[l.pos] == '\n' {
		l.pos++
		l.newPhysicalLine()
		return
	}
	l.pos++
}

func (l *lexer) closeString(unterminated bool) {
	if unterminated {
		msg := "unterminated string literal"
		if l.mode == modeTripleQuote {
			msg = "unterminated triple-quoted string runs to end of input"
		}
		l.anomaly(AnomalyLexical, l.strLine, msg)
	}
	l.mode = modeNormal
	l.emit(KindStringLiteral, l.strStart, l.strLine, l.strCol, unterminated)
}

// emit appends a significant token. The first one on a logical line settles
// its indentation with the tracker.
func (l *lexer) emit(kind Kind, start, line, col int, unterminated bool) {
	if !l.logicalOpen {
		l.openLogicalLine(start, line)
	}
	endLine := l.line
	if l.pos > start && l.src[l.pos-1] == '\n' && endLine > line {
		endLine--
	}
	l.res.Tokens = append(l.res.Tokens, Token{
		Kind:         kind,
		Text:         l.src[start:l.pos],
		Line:         line,
		Column:       col,
		EndLine:      endLine,
		Offset:       start,
		Unterminated: unterminated,
	})
	l.physHasToken = true
	l.lastLine = endLine
}

func (l *lexer) openLogicalLine(offset, line int) {
	ev := l.tracker.Observe(l.lineDepth)
	if ev.RoundedDown {
		l.anomaly(AnomalyStructural, line, fmt.Sprintf("dedent to depth %d matches no enclosing level, using depth %d", l.lineDepth, l.tracker.Depth()))
	}
	for i := 0; i < ev.Dedents; i++ {
		l.res.Tokens = append(l.res.Tokens, Token{Kind: KindDedent, Line: line, Column: 1, EndLine: line, Offset: offset})
	}
	for i := 0; i < ev.Indents; i++ {
		l.res.Tokens = append(l.res.Tokens, Token{Kind: KindIndent, Line: line, Column: 1, EndLine: line, Offset: offset})
	}
	l.logicalOpen = true
}

func (l *lexer) finish() {
	if l.brackets > 0 {
		l.anomaly(AnomalyLexical, l.bracketLine, "unclosed bracket at end of input")
		l.brackets = 0
	}
	l.closeLogicalLine("", l.pos)

	l.res.Lines = countLines(l.src)
	last := l.res.Lines
	if last == 0 {
		last = 1
	}
	for n := l.tracker.Close(); n > 0; n-- {
		l.res.Tokens = append(l.res.Tokens, Token{Kind: KindDedent, Line: last, Column: 1, EndLine: last, Offset: len(l.src)})
	}
	l.res.Tokens = append(l.res.Tokens, Token{Kind: KindEndOfInput, Line: last, Column: 1, EndLine: last, Offset: len(l.src)})
}

func (l *lexer) anomaly(kind AnomalyKind, line int, msg string) {
	l.res.Anomalies = append(l.res.Anomalies, Anomaly{Kind: kind, Line: line, Message: msg})
}

func (l *lexer) col() int {
	return l.pos - l.lineStart + 1
}

func countLines(src string) int {
	if src == "" {
		return 0
	}
	n := strings.Count(src, "\n")
	if !strings.HasSuffix(src, "\n") {
		n++
	}
	return n
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isQuote(c byte) bool { return c == '\'' || c == '"' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isStringPrefix(word string) bool {
	switch strings.ToLower(word) {
	case "r", "b", "f", "u", "rb", "br", "fr", "rf", "t", "tr", "rt":
		return true
	}
	return false
}
