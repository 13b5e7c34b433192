package sim

import (
	"math"
	"time"

	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

// DaysPerYear converts between days and the year length ages and annual
// rates are expressed in.
const DaysPerYear = 365.25

// Clock advances simulated time in fixed increments between the configured
// start and end dates. A step may be a fraction of a day.
type Clock struct {
	start    time.Time
	end      time.Time
	stepDays float64
	stepSize time.Duration
	now      time.Time
	step     int
}

// NewClock builds a clock from the time section of a model specification.
func NewClock(cfg spec.TimeConfig) *Clock {
	start := cfg.Start.Time()
	return &Clock{
		start:    start,
		end:      cfg.End.Time(),
		stepDays: cfg.StepSize,
		stepSize: time.Duration(cfg.StepSize * 24 * float64(time.Hour)),
		now:      start,
	}
}

// Now returns the current simulated time.
func (c *Clock) Now() time.Time { return c.now }

// Start returns the first instant of the simulation.
func (c *Clock) Start() time.Time { return c.start }

// End returns the simulation horizon. The step whose start reaches the
// horizon does not run.
func (c *Clock) End() time.Time { return c.end }

// StepDays returns the step size in days.
func (c *Clock) StepDays() float64 { return c.stepDays }

// StepSize returns the step size as a duration.
func (c *Clock) StepSize() time.Duration { return c.stepSize }

// Step returns the number of completed steps.
func (c *Clock) Step() int { return c.step }

// StepEnd returns the instant the current step completes. Events observe
// this time.
func (c *Clock) StepEnd() time.Time { return c.now.Add(c.stepSize) }

// Done reports whether the horizon has been reached.
func (c *Clock) Done() bool { return !c.now.Before(c.end) }

// DaysInto returns how many days after the simulation start t falls.
func (c *Clock) DaysInto(t time.Time) float64 {
	return t.Sub(c.start).Hours() / 24
}

// TimeAt returns the instant the given number of days after the
// simulation start.
func (c *Clock) TimeAt(days float64) time.Time {
	return c.start.Add(time.Duration(days * 24 * float64(time.Hour)))
}

// TotalSteps returns how many steps the clock will run.
func (c *Clock) TotalSteps() int {
	span := c.end.Sub(c.start)
	return int(math.Ceil(float64(span) / float64(c.stepSize)))
}

// Advance moves the clock one step forward. Panics if the step size would
// not move time, which would hang the simulation loop.
func (c *Clock) Advance() {
	next := c.now.Add(c.stepSize)
	if !next.After(c.now) {
		panic("sim: clock step does not advance time")
	}
	c.now = next
	c.step++
}
