// Package query answers structural questions about a parsed scope tree.
// Every function is a single pass over the tree and never mutates it.
package query

import (
	"errors"

	"pyscope/internal/engine/lexer"
	"pyscope/internal/engine/scope"
)

// GlobalBucket is the FunctionsByScope key for module-level functions.
const GlobalBucket = "Global_Functions"

var ErrMalformedTree = errors.New("scope tree is malformed")

// ClassInfo pairs a class with its declared bases.
type ClassInfo struct {
	ClassName     string   `json:"class_name"`
	ParentClasses []string `json:"parent_classes"`
}

// Bucket is one entry of the ordered function grouping.
type Bucket struct {
	Scope     string   `json:"scope"`
	Functions []string `json:"functions"`
}

func usable(tree *scope.Tree) error {
	if tree == nil || tree.Root == nil || tree.Malformed {
		return ErrMalformedTree
	}
	return nil
}

// ListClasses returns every class name in source order, nested ones included.
func ListClasses(tree *scope.Tree) ([]string, error) {
	if err := usable(tree); err != nil {
		return nil, err
	}
	out := []string{}
	tree.Walk(func(n *scope.Node) bool {
		if n.Kind == scope.KindClass {
			out = append(out, n.Name)
		}
		return true
	})
	return out, nil
}

// ClassInheritance returns each class with its bases in declaration order.
func ClassInheritance(tree *scope.Tree) ([]ClassInfo, error) {
	if err := usable(tree); err != nil {
		return nil, err
	}
	out := []ClassInfo{}
	tree.Walk(func(n *scope.Node) bool {
		if n.Kind == scope.KindClass {
			bases := make([]string, len(n.Bases))
			copy(bases, n.Bases)
			out = append(out, ClassInfo{ClassName: n.Name, ParentClasses: bases})
		}
		return true
	})
	return out, nil
}

// ListFunctions returns every function name in source order, including
// methods and nested functions.
func ListFunctions(tree *scope.Tree) ([]string, error) {
	if err := usable(tree); err != nil {
		return nil, err
	}
	out := []string{}
	tree.Walk(func(n *scope.Node) bool {
		if n.Kind == scope.KindFunction {
			out = append(out, n.Name)
		}
		return true
	})
	return out, nil
}

// GroupFunctions returns the buckets in first-seen order: GlobalBucket first,
// then one per class name. A bucket holds only direct function children;
// classes sharing a name share a bucket.
func GroupFunctions(tree *scope.Tree) ([]Bucket, error) {
	if err := usable(tree); err != nil {
		return nil, err
	}
	buckets := []Bucket{{Scope: GlobalBucket, Functions: directFunctions(tree.Root, nil)}}
	index := map[string]int{GlobalBucket: 0}
	tree.Walk(func(n *scope.Node) bool {
		if n.Kind != scope.KindClass {
			return true
		}
		i, ok := index[n.Name]
		if !ok {
			i = len(buckets)
			index[n.Name] = i
			buckets = append(buckets, Bucket{Scope: n.Name, Functions: []string{}})
		}
		buckets[i].Functions = directFunctions(n, buckets[i].Functions)
		return true
	})
	return buckets, nil
}

// FunctionsByScope is GroupFunctions keyed by scope name.
func FunctionsByScope(tree *scope.Tree) (map[string][]string, error) {
	buckets, err := GroupFunctions(tree)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(buckets))
	for _, b := range buckets {
		out[b.Scope] = b.Functions
	}
	return out, nil
}

func directFunctions(n *scope.Node, dst []string) []string {
	if dst == nil {
		dst = []string{}
	}
	for _, c := range n.Children {
		if c.Kind == scope.KindFunction {
			dst = append(dst, c.Name)
		}
	}
	return dst
}

// ListComments returns the comments in source order. The slice is a copy.
func ListComments(comments []lexer.Comment) []lexer.Comment {
	out := make([]lexer.Comment, len(comments))
	copy(out, comments)
	return out
}
