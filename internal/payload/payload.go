// Package payload builds the scripted payload sequences workers send.
//
// A script is a list of steps from the configuration. Each worker gets its
// own sequence of the script, so iteration counters and context values are
// never shared between workers.
package payload

import (
	"errors"
	"fmt"
	"slices"

	"k8s.io/klog/v2"

	"github.com/wesleyorama2/waveshaper/internal/config"
	"github.com/wesleyorama2/waveshaper/internal/sequence"
	"github.com/wesleyorama2/waveshaper/pkg/jsonpath"
)

// ErrEndlessJump is returned when a chain of jumps can redirect forever
// without reaching a step that produces a value.
var ErrEndlessJump = errors.New("jumps never reach a producing step")

// DefaultScript is the script used when none is configured.
//
// It produces hello, world <iteration>, goodbye, and on every second
// iteration goodbye jumps back to world instead.
func DefaultScript() []config.StepConfig {
	return []config.StepConfig{
		{Name: "greet", Value: "hello"},
		{Name: "world", Template: "world {{iteration}}"},
		{Name: "farewell", Value: "goodbye", Jump: &config.JumpConfig{Direction: "back", Steps: 1, Every: 2}},
	}
}

// Build turns step configurations into a sequence definition. An empty list
// builds DefaultScript.
func Build(steps []config.StepConfig) (*sequence.Definition[string], error) {
	if len(steps) == 0 {
		steps = DefaultScript()
	}

	if err := checkJumps(steps); err != nil {
		return nil, err
	}

	built := make([]sequence.Step[string], len(steps))
	for i, sc := range steps {
		built[i] = buildStep(i, sc)
	}

	return sequence.NewDefinition(built...)
}

func buildStep(index int, sc config.StepConfig) sequence.Step[string] {
	name := sc.Name
	if name == "" {
		name = fmt.Sprintf("step %d", index)
	}

	setKeys := make([]string, 0, len(sc.Set))
	for k := range sc.Set {
		setKeys = append(setKeys, k)
	}
	slices.Sort(setKeys)

	return func(ctx *sequence.Context, nav *sequence.Navigator) string {
		for _, k := range setKeys {
			ctx.Set(k, Render(sc.Set[k], ctx, nav))
		}

		if ex := sc.Extract; ex != nil {
			extract(name, ex, ctx)
		}

		if j := sc.Jump; j != nil && jumps(j, ctx.Iteration()) {
			var to int
			if j.Direction == "back" {
				to = nav.Back(j.Steps)
			} else {
				to = nav.Forward(j.Steps)
			}
			klog.V(5).Infof("%s: iteration %d jumps %s %d to position %d", name, ctx.Iteration(), j.Direction, j.Steps, to)
			return ""
		}

		if sc.Template != "" {
			return Render(sc.Template, ctx, nav)
		}
		return sc.Value
	}
}

func extract(step string, ex *config.ExtractConfig, ctx *sequence.Context) {
	doc, ok := ctx.Get(ex.From)
	if !ok {
		klog.V(4).Infof("%s: nothing stored under %q to extract from", step, ex.From)
		return
	}

	value, err := jsonpath.Extract(toString(doc), ex.Path)
	if err != nil {
		klog.V(4).Infof("%s: extract %s from %q: %v", step, ex.Path, ex.From, err)
		return
	}
	ctx.Set(ex.Into, value)
}

// jumps reports whether a jump applies during iteration.
func jumps(j *config.JumpConfig, iteration int64) bool {
	switch {
	case j.When > 0:
		return iteration == j.When
	case j.Every > 0:
		return iteration%j.Every == 0
	default:
		return true
	}
}

// maxJumpStates bounds the state space checkJumps walks.
const maxJumpStates = 1 << 20

// ErrJumpPeriods is returned when the every values of a script are too
// large, together, for its jumps to be checked.
var ErrJumpPeriods = errors.New("jump periods are too large to check")

// checkJumps rejects scripts in which Next can redirect forever.
//
// Iterations only grow, so a redirect loop without end eventually runs past
// every when jump and only every jumps and unconditional jumps fire. Whether
// those fire depends on the step and on the iteration modulo the least common
// multiple of the every values. checkJumps follows each (position, residue)
// state the way Sequence.Next does: a redirect adds one to the iteration and
// landing on the first step adds one more.
func checkJumps(steps []config.StepConfig) error {
	n := len(steps)

	period := int64(1)
	for _, sc := range steps {
		if j := sc.Jump; j != nil && j.When == 0 && j.Every > 1 {
			period = lcm(period, j.Every)
			if period*int64(n) > maxJumpStates {
				return ErrJumpPeriods
			}
		}
	}

	const (
		unvisited = iota
		onPath
		produces
	)
	state := make([]uint8, n*int(period))
	index := func(pos int, r int64) int { return pos*int(period) + int(r) }

	for start := range n {
		for r0 := range period {
			pos, r := start, r0
			var path []int
			for {
				i := index(pos, r)
				if state[i] == produces {
					break
				}
				if state[i] == onPath {
					return fmt.Errorf("step %d: %w", start, ErrEndlessJump)
				}
				j := steps[pos].Jump
				if !firesForever(j, r) {
					state[i] = produces
					break
				}
				state[i] = onPath
				path = append(path, i)

				pos = target(pos, n, j)
				r++
				if pos == 0 {
					r++
				}
				r %= period
			}
			for _, i := range path {
				state[i] = produces
			}
		}
	}
	return nil
}

// firesForever reports whether j jumps on an iteration congruent to r once
// the iteration is past every when value.
func firesForever(j *config.JumpConfig, r int64) bool {
	switch {
	case j == nil || j.When > 0:
		return false
	case j.Every > 1:
		return r%j.Every == 0
	default:
		return true
	}
}

func lcm(a, b int64) int64 {
	x, y := a, b
	for y != 0 {
		x, y = y, x%y
	}
	return a / x * b
}

// target mirrors sequence.Navigator arithmetic.
func target(pos, n int, j *config.JumpConfig) int {
	var to int
	if j.Direction == "back" {
		to = (pos - j.Steps) % n
	} else {
		to = (pos + j.Steps) % n
	}
	return max(to, 0)
}
