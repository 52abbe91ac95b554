// Package treesitter is a grammar-backed engine that produces the same scope
// tree and comment list as the native engine. It is used to cross-check the
// native engine on well-formed input.
package treesitter

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"pyscope/internal/core/errors"
	"pyscope/internal/engine/analyzer"
	"pyscope/internal/engine/lexer"
	"pyscope/internal/engine/scope"
)

const EngineName = "treesitter"

type Engine struct {
	opts analyzer.Options
	lang *sitter.Language
}

var _ analyzer.Engine = (*Engine)(nil)

func New(opts analyzer.Options) *Engine {
	return &Engine{
		opts: opts,
		lang: sitter.NewLanguage(tree_sitter_python.Language()),
	}
}

func (e *Engine) Name() string { return EngineName }

func (e *Engine) Analyze(filename string, text []byte) (*analyzer.Report, error) {
	start := time.Now()
	src, err := analyzer.Prepare(filename, text, e.opts.MaxBytes)
	if err != nil {
		return nil, err
	}
	content := []byte(src)

	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(e.lang); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "load python grammar")
	}

	tsTree := parser.Parse(content, nil)
	if tsTree == nil {
		return nil, errors.New(errors.CodeInternal, "parse failed")
	}
	defer tsTree.Close()

	b := &builder{
		source:  content,
		tree:    scope.NewTree(countLines(src)),
		comment: []located{},
	}
	b.walk(tsTree.RootNode(), b.tree.Root)
	b.closeAtEOF(b.tree.Root.EndLine)
	_ = b.tree.Check()

	sort.SliceStable(b.comment, func(i, j int) bool { return b.comment[i].offset < b.comment[j].offset })
	comments := make([]lexer.Comment, 0, len(b.comment))
	for _, c := range b.comment {
		comments = append(comments, c.Comment)
	}

	report := &analyzer.Report{
		Filename:  filename,
		Engine:    EngineName,
		Tree:      b.tree,
		Comments:  comments,
		Anomalies: b.tree.Anomalies,
		Lines:     countLines(src),
	}
	analyzer.Record(report, time.Since(start))
	return report, nil
}

type located struct {
	lexer.Comment
	offset uint
}

type builder struct {
	source  []byte
	tree    *scope.Tree
	comment []located
	// blocks holds scopes whose body starts on a later line than the header.
	blocks   []*scope.Node
	lastLine int
}

func (b *builder) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(b.source[n.StartByte():n.EndByte()])
}

func (b *builder) walk(n *sitter.Node, parent *scope.Node) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "class_definition":
		if node := b.definition(n, scope.KindClass); node != nil {
			parent.AddChild(node)
			parent = node
		}
	case "function_definition":
		if node := b.definition(n, scope.KindFunction); node != nil {
			parent.AddChild(node)
			parent = node
		}
	case "comment":
		b.addComment(n)
	case "ERROR":
		b.tree.Anomalies = append(b.tree.Anomalies, lexer.Anomaly{
			Kind:    lexer.AnomalyStructural,
			Line:    int(n.StartPosition().Row) + 1,
			Message: "syntax error",
		})
	}
	if n.ChildCount() == 0 && n.Kind() != "comment" && n.EndByte() > n.StartByte() {
		if end := endLine(n); end > b.lastLine {
			b.lastLine = end
		}
	}
	if n.IsMissing() {
		b.tree.Anomalies = append(b.tree.Anomalies, lexer.Anomaly{
			Kind:    lexer.AnomalyStructural,
			Line:    int(n.StartPosition().Row) + 1,
			Message: fmt.Sprintf("missing %s", n.Kind()),
		})
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		b.walk(n.Child(i), parent)
	}
}

func (b *builder) definition(n *sitter.Node, kind scope.Kind) *scope.Node {
	name := b.text(n.ChildByFieldName("name"))
	if name == "" {
		return nil
	}
	node := &scope.Node{
		Name:       name,
		Kind:       kind,
		Decorators: b.decorators(n),
		StartLine:  int(n.StartPosition().Row) + 1,
		EndLine:    endLine(n),
	}
	if body := n.ChildByFieldName("body"); body != nil {
		if prev := body.PrevSibling(); prev == nil || body.StartPosition().Row > prev.EndPosition().Row {
			b.blocks = append(b.blocks, node)
		}
	}
	if kind == scope.KindFunction && n.ChildCount() > 0 && n.Child(0).Kind() == "async" {
		node.Async = true
	}
	if kind == scope.KindClass {
		if supers := n.ChildByFieldName("superclasses"); supers != nil {
			node.Bases = []string{}
			for i := uint(0); i < supers.NamedChildCount(); i++ {
				arg := supers.NamedChild(i)
				if arg.Kind() == "comment" {
					continue
				}
				node.Bases = append(node.Bases, collapse(b.text(arg)))
			}
		}
	}
	return node
}

// closeAtEOF extends every block scope that no significant token follows to
// the final line, including trailing comment and blank lines.
func (b *builder) closeAtEOF(final int) {
	for _, node := range b.blocks {
		if node.EndLine >= b.lastLine && final > node.EndLine {
			node.EndLine = final
		}
	}
}

func (b *builder) decorators(n *sitter.Node) []string {
	parent := n.Parent()
	if parent == nil || parent.Kind() != "decorated_definition" {
		return nil
	}
	var out []string
	for i := uint(0); i < parent.ChildCount(); i++ {
		child := parent.Child(i)
		if child.Kind() != "decorator" {
			continue
		}
		dec := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(b.text(child)), "@"))
		if dec != "" {
			out = append(out, collapse(dec))
		}
	}
	return out
}

func (b *builder) addComment(n *sitter.Node) {
	start := n.StartByte()
	lineStart := uint(bytes.LastIndexByte(b.source[:start], '\n') + 1)
	before := strings.TrimSpace(string(b.source[lineStart:start]))
	b.comment = append(b.comment, located{
		Comment: lexer.Comment{
			Text:   strings.TrimRight(b.text(n), " \t\f\v"),
			Line:   int(n.StartPosition().Row) + 1,
			Inline: before != "",
		},
		offset: start,
	})
}

// endLine converts tree-sitter's exclusive end point to a 1-based
// inclusive line.
func endLine(n *sitter.Node) int {
	start, end := n.StartPosition(), n.EndPosition()
	if end.Column == 0 && end.Row > start.Row {
		return int(end.Row)
	}
	return int(end.Row) + 1
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
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
