// Package scope reconstructs class and function nesting from a token stream.
package scope

import (
	"errors"
	"fmt"
	"strings"

	"pyscope/internal/engine/lexer"
)

// Kind is the type of a scope node.
type Kind int

const (
	KindGlobal Kind = iota
	KindClass
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindGlobal:
		return "global"
	case KindClass:
		return "class"
	case KindFunction:
		return "function"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// GlobalName is the name carried by every tree root.
const GlobalName = "<global>"

// Node is a class, function or the global root.
type Node struct {
	Name       string   `json:"name"`
	Kind       Kind     `json:"kind"`
	Bases      []string `json:"bases,omitempty"`
	Decorators []string `json:"decorators,omitempty"`
	Async      bool     `json:"async,omitempty"`
	// StartLine is the line of the header keyword, not of its decorators.
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Children  []*Node `json:"children,omitempty"`
	// Parent is a lookup-only back reference; the parent owns its children.
	Parent *Node `json:"-"`
}

// AddChild appends c to n and sets its back reference.
func (n *Node) AddChild(c *Node) {
	c.Parent = n
	n.Children = append(n.Children, c)
}

// Path returns the dotted name from the outermost enclosing scope down to n.
func (n *Node) Path() string {
	var parts []string
	for cur := n; cur != nil && cur.Kind != KindGlobal; cur = cur.Parent {
		parts = append(parts, cur.Name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// Tree is the scope forest of one source text.
type Tree struct {
	Root      *Node
	Anomalies []lexer.Anomaly
	// Malformed is set when the tree breaks its own nesting invariants.
	Malformed bool
}

// NewTree returns a tree whose root spans lines 1..lines.
func NewTree(lines int) *Tree {
	if lines < 1 {
		lines = 1
	}
	return &Tree{
		Root:      &Node{Name: GlobalName, Kind: KindGlobal, StartLine: 1, EndLine: lines},
		Anomalies: []lexer.Anomaly{},
	}
}

// Walk visits every non-root node in source order. Returning false from fn
// skips the node's children.
func (t *Tree) Walk(fn func(*Node) bool) {
	if t == nil || t.Root == nil {
		return
	}
	stack := make([]*Node, 0, 16)
	for i := len(t.Root.Children) - 1; i >= 0; i-- {
		stack = append(stack, t.Root.Children[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(n) {
			continue
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

var errNesting = errors.New("scope nesting violated")

// Check verifies line ranges and parent links and marks the tree malformed
// when they are inconsistent.
func (t *Tree) Check() error {
	if t == nil || t.Root == nil {
		return errNesting
	}
	var bad *Node
	t.Walk(func(n *Node) bool {
		if bad != nil {
			return false
		}
		p := n.Parent
		if p == nil || n.StartLine > n.EndLine || n.StartLine < p.StartLine || n.EndLine > p.EndLine {
			bad = n
			return false
		}
		return true
	})
	if bad != nil {
		t.Malformed = true
		return fmt.Errorf("%w: %s %q lines %d-%d", errNesting, bad.Kind, bad.Name, bad.StartLine, bad.EndLine)
	}
	return nil
}
