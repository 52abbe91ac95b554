package lexer

// IndentEvent is the tracker's answer for one logical line.
type IndentEvent struct {
	Indents int
	Dedents int
	// RoundedDown is set when the observed depth matched no stacked depth
	// and the line was attached to the nearest shallower level instead.
	RoundedDown bool
}

// Tracker converts leading-whitespace depths into indent/dedent events.
// The stack always holds 0 at the bottom and strictly increasing depths above it.
type Tracker struct {
	stack []int
}

func NewTracker() *Tracker {
	return &Tracker{stack: []int{0}}
}

// Observe feeds the depth of a logical line start.
func (t *Tracker) Observe(depth int) IndentEvent {
	if depth < 0 {
		depth = 0
	}
	top := t.stack[len(t.stack)-1]
	switch {
	case depth > top:
		t.stack = append(t.stack, depth)
		return IndentEvent{Indents: 1}
	case depth == top:
		return IndentEvent{}
	}

	var ev IndentEvent
	for len(t.stack) > 1 && t.stack[len(t.stack)-1] > depth {
		t.stack = t.stack[:len(t.stack)-1]
		ev.Dedents++
	}
	if t.stack[len(t.stack)-1] != depth {
		ev.RoundedDown = true
	}
	return ev
}

// Close pops every open level and returns the number of dedents produced.
func (t *Tracker) Close() int {
	n := len(t.stack) - 1
	t.stack = t.stack[:1]
	return n
}

// Level is the number of open indentation levels above column zero.
func (t *Tracker) Level() int {
	return len(t.stack) - 1
}

// Depth returns the depth at the top of the stack.
func (t *Tracker) Depth() int {
	return t.stack[len(t.stack)-1]
}
