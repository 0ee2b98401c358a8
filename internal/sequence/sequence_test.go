package sequence

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func next[T any](s *Sequence[T], n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = s.Next()
	}
	return out
}

func TestSequence_Loops(t *testing.T) {
	def, err := Values("so", "much", "magic")
	require.NoError(t, err)

	seq := def.New()
	assert.Equal(t, []string{"so", "much", "magic", "so", "much", "magic", "so"}, next(seq, 7))
	assert.Equal(t, int64(3), seq.Iteration())
}

func TestSequence_Forward(t *testing.T) {
	def, err := NewDefinition(
		Value("only"),
		func(ctx *Context, nav *Navigator) string {
			if ctx.Iteration() == 1 {
				nav.Forward(4)
			}
			return "you"
		},
		Value("can"),
		Value("fill"),
		Value("those"),
		Value("spaces"),
	)
	require.NoError(t, err)

	seq := def.New()
	assert.Equal(t, []string{"only", "spaces", "only", "you", "can"}, next(seq, 5))
}

func TestSequence_Back(t *testing.T) {
	def, err := NewDefinition(
		Value("shift"),
		Value("in"),
		Value("the"),
		func(ctx *Context, nav *Navigator) string {
			if ctx.Iteration() == 1 {
				nav.Back(3)
			}
			return "unconscious"
		},
	)
	require.NoError(t, err)

	seq := def.New()
	assert.Equal(t,
		[]string{"shift", "in", "the", "shift", "in", "the", "unconscious"},
		next(seq, 7))
}

func TestSequence_RedirectIncrementsIteration(t *testing.T) {
	var seen []int64
	def, err := NewDefinition(
		func(ctx *Context, nav *Navigator) int64 {
			seen = append(seen, ctx.Iteration())
			return ctx.Iteration()
		},
		func(ctx *Context, nav *Navigator) int64 {
			if ctx.Iteration() == 1 {
				nav.Forward(1)
			}
			return -1
		},
		func(ctx *Context, nav *Navigator) int64 {
			return ctx.Iteration() * 10
		},
	)
	require.NoError(t, err)

	seq := def.New()
	// step 1 redirects to step 2 during iteration 1, which bumps the
	// iteration to 2 before step 2 runs
	assert.Equal(t, []int64{1, 20, 3, -1, 30}, next(seq, 5))
	assert.Equal(t, []int64{1, 3}, seen)
}

func TestSequence_DemoScript(t *testing.T) {
	def, err := NewDefinition(
		Value("hello"),
		func(ctx *Context, nav *Navigator) string {
			return fmt.Sprintf("world %d", ctx.Iteration())
		},
		func(ctx *Context, nav *Navigator) string {
			if ctx.Iteration()%2 == 0 {
				nav.Back(1)
			}
			return "goodbye"
		},
	)
	require.NoError(t, err)

	seq := def.New()
	assert.Equal(t, []string{
		"hello", "world 1", "goodbye",
		"hello", "world 2", "world 3", "goodbye",
		"hello", "world 4", "world 5", "goodbye",
	}, next(seq, 11))
}

func TestSequence_ContextSharesDataBetweenSteps(t *testing.T) {
	def, err := NewDefinition(
		func(ctx *Context, nav *Navigator) string {
			ctx.Set("user", fmt.Sprintf("user-%d", ctx.Iteration()))
			return "login"
		},
		func(ctx *Context, nav *Navigator) string {
			v, ok := ctx.Get("user")
			if !ok {
				return "missing"
			}
			return v.(string)
		},
		func(ctx *Context, nav *Navigator) string {
			ctx.Reset()
			_, ok := ctx.Get("user")
			return fmt.Sprintf("reset %v", ok)
		},
	)
	require.NoError(t, err)

	seq := def.New()
	assert.Equal(t, []string{"login", "user-1", "reset false", "login", "user-2"}, next(seq, 5))
}

func TestSequence_ContextSeededFromOutside(t *testing.T) {
	def, err := NewDefinition(func(ctx *Context, nav *Navigator) string {
		v, _ := ctx.Get("worker")
		return fmt.Sprintf("worker %v", v)
	})
	require.NoError(t, err)

	seq := def.New()
	seq.Context().Set("worker", 3)
	assert.Equal(t, "worker 3", seq.Next())
}

func TestSequence_IndependentInstances(t *testing.T) {
	def, err := Values(1, 2, 3)
	require.NoError(t, err)

	a := def.New()
	b := def.New()

	assert.Equal(t, []int{1, 2}, next(a, 2))
	assert.Equal(t, []int{1}, next(b, 1))
	assert.Equal(t, 3, a.Next())
	assert.Equal(t, 2, b.Next())
}

func TestSequence_All(t *testing.T) {
	def, err := Values("a", "b")
	require.NoError(t, err)

	var got []string
	for v := range def.New().All() {
		got = append(got, v)
		if len(got) == 5 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b", "a", "b", "a"}, got)
}

func TestNavigator(t *testing.T) {
	tests := []struct {
		name     string
		start    int
		move     func(n *Navigator) int
		expected int
	}{
		{"forward", 1, func(n *Navigator) int { return n.Forward(2) }, 3},
		{"forward wraps", 3, func(n *Navigator) int { return n.Forward(2) }, 0},
		{"forward full cycle", 2, func(n *Navigator) int { return n.Forward(5) }, 2},
		{"back", 3, func(n *Navigator) int { return n.Back(2) }, 1},
		{"back to start", 3, func(n *Navigator) int { return n.Back(3) }, 0},
		{"back underflow clamps to start", 1, func(n *Navigator) int { return n.Back(3) }, 0},
		{"back past a full cycle clamps to start", 2, func(n *Navigator) int { return n.Back(5) }, 0},
		{"back by a multiple of the cycle", 4, func(n *Navigator) int { return n.Back(9) }, 0},
		{"back from far position", 4, func(n *Navigator) int { return n.Back(1) }, 3},
		{"negative forward clamps to start", 1, func(n *Navigator) int { return n.Forward(-3) }, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav := &Navigator{current: tt.start, stepsPerCycle: 5}
			got := tt.move(nav)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.expected, nav.Position())
			assert.True(t, nav.skipped)
		})
	}
}

func TestNewDefinition_Errors(t *testing.T) {
	_, err := NewDefinition[string]()
	assert.ErrorIs(t, err, ErrEmptyDefinition)

	_, err = Values[int]()
	assert.ErrorIs(t, err, ErrEmptyDefinition)

	_, err = NewDefinition[string](Value("a"), nil)
	assert.Error(t, err)
}

func TestDefinition_Len(t *testing.T) {
	def, err := Values("a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, 3, def.Len())
	assert.Equal(t, 3, def.New().nav.StepsPerCycle())
}
