package lexer

import "fmt"

// Kind classifies a lexical token.
type Kind int

const (
	KindEndOfInput Kind = iota
	KindIdentifier
	KindKeyword
	KindComment
	KindStringLiteral
	KindNumber
	KindPunctuation
	KindNewline
	KindIndent
	KindDedent
)

var kindNames = map[Kind]string{
	KindEndOfInput:    "EndOfInput",
	KindIdentifier:    "Identifier",
	KindKeyword:       "Keyword",
	KindComment:       "Comment",
	KindStringLiteral: "StringLiteral",
	KindNumber:        "Number",
	KindPunctuation:   "Punctuation",
	KindNewline:       "Newline",
	KindIndent:        "Indent",
	KindDedent:        "Dedent",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Structural keywords. Every other word is an opaque identifier.
const (
	KeywordClass = "class"
	KeywordDef   = "def"
	KeywordAsync = "async"
)

// Token is a lexical unit pointing back into the source.
//   - Line and Column are 1-based; Column counts bytes.
//   - EndLine differs from Line only for tokens spanning physical lines
//     (triple-quoted strings, strings continued with a backslash).
type Token struct {
	Kind         Kind
	Text         string
	Line         int
	Column       int
	EndLine      int
	Offset       int
	Unterminated bool
}

// End returns the byte offset just past the token.
func (t Token) End() int {
	return t.Offset + len(t.Text)
}

// Is reports whether the token has the given kind and text.
func (t Token) Is(kind Kind, text string) bool {
	return t.Kind == kind && t.Text == text
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Kind, t.Text, t.Line, t.Column)
}

// Comment is a `#` comment found outside string literals.
type Comment struct {
	Text   string `json:"text"`
	Line   int    `json:"line"`
	Inline bool   `json:"is_inline"`
}

// AnomalyKind groups recoverable problems found while reading source text.
type AnomalyKind string

const (
	AnomalyLexical    AnomalyKind = "lexical"
	AnomalyStructural AnomalyKind = "structural"
)

// Anomaly records a malformed construct that was recovered locally.
type Anomaly struct {
	Kind    AnomalyKind `json:"kind"`
	Line    int         `json:"line"`
	Message string      `json:"message"`
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%s anomaly at line %d: %s", a.Kind, a.Line, a.Message)
}
