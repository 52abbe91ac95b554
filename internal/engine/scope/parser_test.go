package scope

import (
	"reflect"
	"strings"
	"testing"

	"pyscope/internal/engine/lexer"
)

func parse(src string) *Tree {
	return Parse(lexer.Tokenize(src, lexer.DefaultOptions()))
}

type flat struct {
	path  string
	kind  Kind
	start int
	end   int
}

func flatten(tree *Tree) []flat {
	var out []flat
	tree.Walk(func(n *Node) bool {
		out = append(out, flat{path: n.Path(), kind: n.Kind, start: n.StartLine, end: n.EndLine})
		return true
	})
	return out
}

func TestParse_Nested(t *testing.T) {
	src := strings.Join([]string{
		"class Outer:",
		"    class Inner:",
		"        def method(self):",
		"            pass",
		"    def outer_method(self):",
		"        pass",
		"",
		"def top():",
		"    return 1",
		"",
	}, "\n")
	tree := parse(src)
	want := []flat{
		{"Outer", KindClass, 1, 6},
		{"Outer.Inner", KindClass, 2, 4},
		{"Outer.Inner.method", KindFunction, 3, 4},
		{"Outer.outer_method", KindFunction, 5, 6},
		{"top", KindFunction, 8, 9},
	}
	if got := flatten(tree); !reflect.DeepEqual(got, want) {
		t.Fatalf("scopes mismatch\n got: %+v\nwant: %+v", got, want)
	}
	if tree.Malformed || len(tree.Anomalies) != 0 {
		t.Fatalf("unexpected malformed=%v anomalies=%+v", tree.Malformed, tree.Anomalies)
	}
	inner := tree.Root.Children[0].Children[0]
	if inner.Parent != tree.Root.Children[0] {
		t.Fatalf("parent link not set")
	}
}

func TestParse_Bases(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{"class Dog(Animal):\n    pass\n", []string{"Animal"}},
		{"class A(B, C):\n    pass\n", []string{"B", "C"}},
		{"class A(mod.Base, Generic[T], metaclass=ABCMeta):\n    pass\n", []string{"mod.Base", "Generic[T]", "metaclass=ABCMeta"}},
		{"class A(make_base(1, 2)):\n    pass\n", []string{"make_base(1, 2)"}},
		{"class A(\n    B,\n    C,\n):\n    pass\n", []string{"B", "C"}},
		{"class A():\n    pass\n", []string{}},
		{"class A:\n    pass\n", nil},
		{"class A[T](Base[T]):\n    pass\n", []string{"Base[T]"}},
	}
	for _, tt := range tests {
		tree := parse(tt.src)
		if len(tree.Root.Children) != 1 {
			t.Fatalf("%q: expected one class, got %d", tt.src, len(tree.Root.Children))
		}
		if got := tree.Root.Children[0].Bases; !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("%q: bases mismatch got %q want %q", tt.src, got, tt.want)
		}
	}
}

func TestParse_Decorators(t *testing.T) {
	src := strings.Join([]string{
		"@dataclass",
		"# comment between",
		"@register(name='x')",
		"class Point:",
		"    @property",
		"    def x(self):",
		"        return self._x",
		"",
		"@cache",
		"value = 1",
		"def plain():",
		"    pass",
		"",
	}, "\n")
	tree := parse(src)
	point := tree.Root.Children[0]
	if !reflect.DeepEqual(point.Decorators, []string{"dataclass", "register(name='x')"}) {
		t.Fatalf("unexpected class decorators %q", point.Decorators)
	}
	if point.StartLine != 4 {
		t.Fatalf("expected header line 4, got %d", point.StartLine)
	}
	if !reflect.DeepEqual(point.Children[0].Decorators, []string{"property"}) {
		t.Fatalf("unexpected method decorators %q", point.Children[0].Decorators)
	}
	plain := tree.Root.Children[1]
	if plain.Name != "plain" || len(plain.Decorators) != 0 {
		t.Fatalf("decorator leaked across a statement: %+v", plain)
	}
}

func TestParse_AsyncAndOneLiners(t *testing.T) {
	src := "async def fetch(): return 1\nclass Empty: pass\ndef after():\n    pass\n"
	tree := parse(src)
	got := flatten(tree)
	want := []flat{
		{"fetch", KindFunction, 1, 1},
		{"Empty", KindClass, 2, 2},
		{"after", KindFunction, 3, 4},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("scopes mismatch\n got: %+v\nwant: %+v", got, want)
	}
	if !tree.Root.Children[0].Async {
		t.Fatalf("expected async flag")
	}
}

func TestParse_DedentCloseSkipsTrailingComments(t *testing.T) {
	src := "class A:\n    def f(self):\n        pass\n\n        # trailing\n\nx = 1\n"
	tree := parse(src)
	a := tree.Root.Children[0]
	if a.EndLine != 3 || a.Children[0].EndLine != 3 {
		t.Fatalf("expected scopes to end at line 3, got %d and %d", a.EndLine, a.Children[0].EndLine)
	}
}

func TestParse_EndOfInputClosesAtFinalLine(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []flat
	}{
		{"trailing comment and blank line", "def f():\n    pass\n# trailing\n\n", []flat{{"f", KindFunction, 1, 4}}},
		{"nested scopes", "class A:\n    def m(self):\n        pass\n    # end of A\n", []flat{
			{"A", KindClass, 1, 4},
			{"A.m", KindFunction, 2, 4},
		}},
		{"colon-less header", "class A(B\n\n# note\n", []flat{{"A", KindClass, 1, 3}}},
		{"header without body", "class A:\n    def g(self):\n\n", []flat{
			{"A", KindClass, 1, 3},
			{"A.g", KindFunction, 2, 3},
		}},
		{"one-liner keeps its line", "class A:\n    def g(self): return 1\n\n", []flat{
			{"A", KindClass, 1, 3},
			{"A.g", KindFunction, 2, 2},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := flatten(parse(tt.src)); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("scopes mismatch\n got: %+v\nwant: %+v", got, tt.want)
			}
		})
	}
}

func TestParse_MissingColonAtEOF(t *testing.T) {
	tree := parse("def ok():\n    pass\nclass Broken(Base)\n")
	if len(tree.Root.Children) != 2 {
		t.Fatalf("expected two scopes, got %d", len(tree.Root.Children))
	}
	broken := tree.Root.Children[1]
	if broken.Name != "Broken" || broken.StartLine != 3 || broken.EndLine != 3 {
		t.Fatalf("unexpected best-effort scope %+v", broken)
	}
	if !reflect.DeepEqual(broken.Bases, []string{"Base"}) {
		t.Fatalf("unexpected bases %q", broken.Bases)
	}
	if len(tree.Anomalies) != 1 || tree.Anomalies[0].Kind != lexer.AnomalyStructural {
		t.Fatalf("expected one structural anomaly, got %+v", tree.Anomalies)
	}
}

func TestParse_MissingColonWithBody(t *testing.T) {
	tree := parse("class A\n    def m(self):\n        pass\n")
	a := tree.Root.Children[0]
	if a.EndLine != 3 || len(a.Children) != 1 || a.Children[0].Name != "m" {
		t.Fatalf("expected body to attach to colon-less header, got %+v", a)
	}
}

func TestParse_NamelessHeaderIgnored(t *testing.T) {
	tree := parse("class :\n    pass\ndef real():\n    pass\n")
	if len(tree.Root.Children) != 1 || tree.Root.Children[0].Name != "real" {
		t.Fatalf("unexpected scopes %+v", flatten(tree))
	}
	if len(tree.Anomalies) != 1 {
		t.Fatalf("expected one anomaly, got %+v", tree.Anomalies)
	}
}

func TestParse_HeadersInsideBlocks(t *testing.T) {
	src := strings.Join([]string{
		"if TYPE_CHECKING:",
		"    class Hidden:",
		"        pass",
		"else:",
		"    def fallback():",
		"        pass",
		"class Visible:",
		"    for x in range(3):",
		"        pass",
		"    def method(self):",
		"        pass",
		"",
	}, "\n")
	got := flatten(parse(src))
	want := []flat{
		{"Hidden", KindClass, 2, 3},
		{"fallback", KindFunction, 5, 6},
		{"Visible", KindClass, 7, 11},
		{"Visible.method", KindFunction, 10, 11},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("scopes mismatch\n got: %+v\nwant: %+v", got, want)
	}
}

func TestParse_InconsistentDedentRoundsDown(t *testing.T) {
	// Depth 4 matches no open level, so the line rounds down to depth 0.
	src := "class A:\n        def f(self):\n            pass\n    def g(self):\n        pass\n"
	got := flatten(parse(src))
	want := []flat{
		{"A", KindClass, 1, 3},
		{"A.f", KindFunction, 2, 3},
		{"g", KindFunction, 4, 5},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("scopes mismatch\n got: %+v\nwant: %+v", got, want)
	}
}

func TestParse_Duplicates(t *testing.T) {
	tree := parse("def f():\n    pass\ndef f():\n    pass\n")
	if len(tree.Root.Children) != 2 {
		t.Fatalf("expected duplicates preserved, got %d", len(tree.Root.Children))
	}
}

func TestParse_Empty(t *testing.T) {
	tree := parse("")
	if len(tree.Root.Children) != 0 || tree.Malformed {
		t.Fatalf("unexpected tree for empty input")
	}
}

func TestParse_DocstringWithHeaderText(t *testing.T) {
	src := "def f():\n    \"\"\"\nclass NotReal:\n    \"\"\"\n    return 1\n"
	tree := parse(src)
	if got := flatten(tree); len(got) != 1 || got[0].path != "f" || got[0].end != 5 {
		t.Fatalf("unexpected scopes %+v", got)
	}
}

func TestCheckFlagsBadRanges(t *testing.T) {
	tree := NewTree(10)
	child := &Node{Name: "x", Kind: KindFunction, StartLine: 5, EndLine: 3}
	tree.Root.AddChild(child)
	if err := tree.Check(); err == nil || !tree.Malformed {
		t.Fatalf("expected malformed tree, err=%v", err)
	}
}

func TestKindMarshalText(t *testing.T) {
	b, err := KindClass.MarshalText()
	if err != nil || string(b) != "class" {
		t.Fatalf("unexpected %q %v", b, err)
	}
}
