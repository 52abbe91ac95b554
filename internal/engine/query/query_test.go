package query

import (
	"errors"
	"reflect"
	"testing"

	"pyscope/internal/engine/lexer"
	"pyscope/internal/engine/scope"
)

func build(src string) (*scope.Tree, *lexer.Result) {
	res := lexer.Tokenize(src, lexer.DefaultOptions())
	return scope.Parse(res), res
}

const sample = `import os

def global_function():
    pass

class TestClass:
    def class_method(self):
        pass

class Dog(Animal):
    class Collar:
        def fasten(self):
            def helper():
                pass
    def bark(self):
        pass
`

func TestListClasses(t *testing.T) {
	tree, _ := build(sample)
	got, err := ListClasses(tree)
	if err != nil {
		t.Fatalf("ListClasses: %v", err)
	}
	if want := []string{"TestClass", "Dog", "Collar"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestClassInheritance(t *testing.T) {
	tree, _ := build(sample)
	got, err := ClassInheritance(tree)
	if err != nil {
		t.Fatalf("ClassInheritance: %v", err)
	}
	want := []ClassInfo{
		{ClassName: "TestClass", ParentClasses: []string{}},
		{ClassName: "Dog", ParentClasses: []string{"Animal"}},
		{ClassName: "Collar", ParentClasses: []string{}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestListFunctions(t *testing.T) {
	tree, _ := build(sample)
	got, err := ListFunctions(tree)
	if err != nil {
		t.Fatalf("ListFunctions: %v", err)
	}
	want := []string{"global_function", "class_method", "fasten", "helper", "bark"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestFunctionsByScope(t *testing.T) {
	tree, _ := build("def global_function():\n    pass\n\nclass TestClass:\n    def class_method(self):\n        pass\n")
	got, err := FunctionsByScope(tree)
	if err != nil {
		t.Fatalf("FunctionsByScope: %v", err)
	}
	want := map[string][]string{
		"Global_Functions": {"global_function"},
		"TestClass":        {"class_method"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestGroupFunctions_DirectChildrenOnly(t *testing.T) {
	tree, _ := build(sample)
	got, err := GroupFunctions(tree)
	if err != nil {
		t.Fatalf("GroupFunctions: %v", err)
	}
	want := []Bucket{
		{Scope: GlobalBucket, Functions: []string{"global_function"}},
		{Scope: "TestClass", Functions: []string{"class_method"}},
		{Scope: "Dog", Functions: []string{"bark"}},
		{Scope: "Collar", Functions: []string{"fasten"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestGroupFunctions_DuplicateClassesMerge(t *testing.T) {
	src := "class A:\n    def one(self): pass\nclass A:\n    def two(self): pass\nclass Empty:\n    x = 1\n"
	tree, _ := build(src)
	got, err := FunctionsByScope(tree)
	if err != nil {
		t.Fatalf("FunctionsByScope: %v", err)
	}
	if !reflect.DeepEqual(got["A"], []string{"one", "two"}) {
		t.Fatalf("expected merged bucket, got %v", got["A"])
	}
	if empty, ok := got["Empty"]; !ok || len(empty) != 0 {
		t.Fatalf("expected empty bucket for Empty, got %v ok=%v", empty, ok)
	}
	if g := got[GlobalBucket]; g == nil || len(g) != 0 {
		t.Fatalf("expected empty global bucket, got %v", g)
	}
}

func TestListComments(t *testing.T) {
	_, res := build("# header\nx = 5  # inline\ns = '# not me'\n")
	got := ListComments(res.Comments)
	want := []lexer.Comment{
		{Text: "# header", Line: 1, Inline: false},
		{Text: "# inline", Line: 2, Inline: true},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestEmptyInput(t *testing.T) {
	tree, res := build("")
	classes, _ := ListClasses(tree)
	funcs, _ := ListFunctions(tree)
	inherit, _ := ClassInheritance(tree)
	grouped, _ := FunctionsByScope(tree)
	if classes == nil || len(classes) != 0 || funcs == nil || len(funcs) != 0 || inherit == nil || len(inherit) != 0 {
		t.Fatalf("expected empty non-nil results")
	}
	if len(grouped) != 1 || len(grouped[GlobalBucket]) != 0 {
		t.Fatalf("expected only an empty global bucket, got %v", grouped)
	}
	if comments := ListComments(res.Comments); len(comments) != 0 {
		t.Fatalf("expected no comments, got %v", comments)
	}
}

func TestMalformedTree(t *testing.T) {
	tree := scope.NewTree(1)
	tree.Malformed = true
	if _, err := ListClasses(tree); !errors.Is(err, ErrMalformedTree) {
		t.Fatalf("expected ErrMalformedTree, got %v", err)
	}
	if _, err := FunctionsByScope(nil); !errors.Is(err, ErrMalformedTree) {
		t.Fatalf("expected ErrMalformedTree for nil tree, got %v", err)
	}
}

func TestQueriesAreIdempotent(t *testing.T) {
	tree, _ := build(sample)
	first, _ := GroupFunctions(tree)
	second, _ := GroupFunctions(tree)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated queries differ")
	}
}
