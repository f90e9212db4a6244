// Package loop implements the engine's fixed-timestep frame scheduler.
package loop

import (
	"errors"
	"fmt"
	"log/slog"
)

// DefaultStep is the simulation step in seconds.
const DefaultStep = 1.0 / 60.0

// ErrNilUpdate is returned by Run when no update callback is supplied.
var ErrNilUpdate = errors.New("loop: nil update callback")

// Platform is the windowing layer seen by the scheduler.
type Platform interface {
	// ShouldClose reports whether the loop must stop.
	ShouldClose() bool
	// PollEvents processes queued window and input events without blocking.
	PollEvents()
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the monotonic system clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithStep sets the fixed simulation step in seconds.
// Non-positive values are ignored.
func WithStep(seconds float64) Option {
	return func(s *Scheduler) {
		if seconds > 0 {
			s.step = seconds
		}
	}
}

// WithMaxCatchUpSteps bounds the number of updates run in one iteration.
// When the bound is hit the remaining accumulated time is dropped.
// Zero, the default, means unbounded.
func WithMaxCatchUpSteps(n int) Option {
	return func(s *Scheduler) {
		if n >= 0 {
			s.maxSteps = n
		}
	}
}

// WithLogger sets the logger used for catch-up diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// Scheduler decouples the simulation rate from the display rate.
//
// Each iteration adds the elapsed wall time to an accumulator, polls
// events, runs one update per whole step in the accumulator, then renders
// exactly once. The close signal is checked once per iteration, at the top.
//
// A Scheduler is driven from a single goroutine.
type Scheduler struct {
	platform Platform
	clock    Clock
	step     float64
	maxSteps int
	log      *slog.Logger

	accumulator float64
	ticks       uint64
	frames      uint64
	dropped     float64
}

// New creates a scheduler for the given platform.
func New(platform Platform, opts ...Option) *Scheduler {
	s := &Scheduler{
		platform: platform,
		clock:    MonotonicClock{},
		step:     DefaultStep,
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drives the loop until the platform asks to close or render fails.
// update receives the fixed step; render is called once per iteration.
// A render error ends the loop and is returned.
func (s *Scheduler) Run(update func(dt float64), render func() error) error {
	if update == nil {
		return ErrNilUpdate
	}
	previous := s.clock.Now()
	s.accumulator = 0

	for !s.platform.ShouldClose() {
		now := s.clock.Now()
		s.accumulator += now.Sub(previous).Seconds()
		previous = now

		s.platform.PollEvents()
		s.drain(update)

		s.frames++
		if render == nil {
			continue
		}
		if err := render(); err != nil {
			return fmt.Errorf("loop: render frame %d: %w", s.frames, err)
		}
	}
	return nil
}

// drain runs one update per whole step held in the accumulator.
func (s *Scheduler) drain(update func(dt float64)) {
	steps := 0
	for s.accumulator >= s.step {
		if s.maxSteps > 0 && steps == s.maxSteps {
			s.dropped += s.accumulator
			s.log.Debug("loop: catch-up limit reached",
				"steps", steps, "dropped_seconds", s.accumulator)
			s.accumulator = 0
			return
		}
		update(s.step)
		s.accumulator -= s.step
		s.ticks++
		steps++
	}
}

// Step returns the fixed simulation step in seconds.
func (s *Scheduler) Step() float64 { return s.step }

// Accumulator returns the time carried into the next iteration, in seconds.
func (s *Scheduler) Accumulator() float64 { return s.accumulator }

// Ticks returns the number of update calls made so far.
func (s *Scheduler) Ticks() uint64 { return s.ticks }

// Frames returns the number of completed iterations.
func (s *Scheduler) Frames() uint64 { return s.frames }

// Dropped returns the total simulation time discarded by the catch-up limit.
func (s *Scheduler) Dropped() float64 { return s.dropped }
