// Package sequence builds infinite, navigable data generators.
//
// A Definition is an immutable list of steps shared by every producer. Each
// producer builds its own Sequence from it with New; a Sequence is not safe for
// concurrent use.
package sequence

import (
	"errors"
	"iter"
	"slices"
)

// ErrEmptyDefinition is returned when a definition has no steps.
var ErrEmptyDefinition = errors.New("sequence definition has no steps")

// Step produces one value of a sequence. It may read the iteration, stash data
// in the Context for later steps, and redirect the Navigator.
type Step[T any] func(ctx *Context, nav *Navigator) T

// Value returns a step that always produces v.
func Value[T any](v T) Step[T] {
	return func(*Context, *Navigator) T { return v }
}

// Definition is a fixed, ordered list of steps.
type Definition[T any] struct {
	steps []Step[T]
}

// NewDefinition creates a definition from the given steps.
func NewDefinition[T any](steps ...Step[T]) (*Definition[T], error) {
	if len(steps) == 0 {
		return nil, ErrEmptyDefinition
	}
	for _, s := range steps {
		if s == nil {
			return nil, errors.New("sequence step cannot be nil")
		}
	}
	return &Definition[T]{steps: slices.Clone(steps)}, nil
}

// Values creates a definition of literal values.
func Values[T any](values ...T) (*Definition[T], error) {
	steps := make([]Step[T], len(values))
	for i, v := range values {
		steps[i] = Value(v)
	}
	return NewDefinition(steps...)
}

// Len returns the number of steps per cycle.
func (d *Definition[T]) Len() int {
	return len(d.steps)
}

// New returns an independent sequence positioned at the first step.
func (d *Definition[T]) New() *Sequence[T] {
	return &Sequence[T]{
		steps: d.steps,
		nav:   &Navigator{stepsPerCycle: len(d.steps)},
		ctx:   newContext(),
	}
}

// Sequence loops over the steps of a Definition forever.
type Sequence[T any] struct {
	steps      []Step[T]
	nav        *Navigator
	ctx        *Context
	iterations int64
}

// Next produces the next value.
//
// A new iteration begins whenever the sequence is at the first step. When a
// step redirects the navigator its value is discarded, the iteration count is
// incremented, and the step at the new position is produced instead.
func (s *Sequence[T]) Next() T {
	for {
		if s.nav.current == 0 {
			s.nextIteration()
		}

		result := s.steps[s.nav.current](s.ctx, s.nav)
		if !s.nav.skipped {
			s.nav.advance()
			return result
		}

		s.nav.skipped = false
		s.nextIteration()
	}
}

// All returns an iterator over the sequence. It never ends on its own.
func (s *Sequence[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			if !yield(s.Next()) {
				return
			}
		}
	}
}

// Iteration returns the current iteration, starting at 1 once Next is called.
func (s *Sequence[T]) Iteration() int64 {
	return s.iterations
}

// Position returns the index of the step that the next call to Next starts at.
func (s *Sequence[T]) Position() int {
	return s.nav.current
}

// Context returns the data shared between the steps of this sequence.
func (s *Sequence[T]) Context() *Context {
	return s.ctx
}

func (s *Sequence[T]) nextIteration() {
	s.iterations++
	s.ctx.iteration = s.iterations
}

// Navigator moves the step pointer of a Sequence.
type Navigator struct {
	current       int
	stepsPerCycle int
	skipped       bool
}

// Forward moves the pointer ahead by steps, wrapping around the end, and
// returns the new position.
func (n *Navigator) Forward(steps int) int {
	return n.jump((n.current + steps) % n.stepsPerCycle)
}

// Back moves the pointer back by steps and returns the new position. Moving
// before the first step clamps to position 0 rather than wrapping.
func (n *Navigator) Back(steps int) int {
	return n.jump((n.current - steps) % n.stepsPerCycle)
}

// Position returns the current step index.
func (n *Navigator) Position() int {
	return n.current
}

// StepsPerCycle returns the number of steps in the sequence.
func (n *Navigator) StepsPerCycle() int {
	return n.stepsPerCycle
}

func (n *Navigator) jump(position int) int {
	if position < 0 {
		position = 0
	}
	n.current = position
	n.skipped = true
	return n.current
}

func (n *Navigator) advance() {
	n.current = (n.current + 1) % n.stepsPerCycle
	n.skipped = false
}

// Context carries the iteration number and data shared between the steps of a
// Sequence.
type Context struct {
	iteration int64
	data      map[string]any
}

func newContext() *Context {
	return &Context{data: make(map[string]any)}
}

// Iteration returns the current iteration.
func (c *Context) Iteration() int64 {
	return c.iteration
}

// Set stores a value under key.
func (c *Context) Set(key string, value any) {
	c.data[key] = value
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.data[key]
	return v, ok
}

// Reset removes all stored values. The iteration is kept.
func (c *Context) Reset() {
	clear(c.data)
}
