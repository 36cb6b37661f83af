// Package clock schedules instruction cycles and 60 Hz timer ticks from wall
// time. The two rates are tracked by separate accumulators so a change of CPU
// speed never changes how fast the timers count down.
package clock

import (
	"context"
	"errors"
	"time"

	"gochip8/pkg/cpu"
)

const (
	DefaultCPUHz   = 700
	DefaultTimerHz = 60
)

var ErrInvalidRate = errors.New("clock rate must be positive")

// Machine is what the scheduler drives. *cpu.CPU satisfies it.
type Machine interface {
	Step() (cpu.State, error)
	TickTimers()
}

// Hooks let a front end observe the run loop. Nil hooks are skipped.
type Hooks struct {
	// Frame runs after each scheduler tick. A non-nil error stops Run.
	Frame func() error
	// StepError decides what to do with a failed cycle. Returning nil keeps
	// running; without the hook every error stops Run.
	StepError func(err error) error
}

type Clock struct {
	CPUHz   int
	TimerHz int

	cycleAcc time.Duration
	timerAcc time.Duration
	frameAcc int
}

func New(cpuHz, timerHz int) (*Clock, error) {
	if cpuHz <= 0 || timerHz <= 0 {
		return nil, ErrInvalidRate
	}
	return &Clock{CPUHz: cpuHz, TimerHz: timerHz}, nil
}

// Advance adds elapsed wall time and returns the cycles and timer ticks now
// owed. Fractions carry over to the next call.
func (c *Clock) Advance(elapsed time.Duration) (cycles, ticks int) {
	if elapsed <= 0 {
		return 0, 0
	}
	cycles = owed(&c.cycleAcc, elapsed, c.CPUHz)
	ticks = owed(&c.timerAcc, elapsed, c.TimerHz)
	return cycles, ticks
}

// owed accumulates elapsed*hz in nanosecond units so no rounding error builds up.
func owed(acc *time.Duration, elapsed time.Duration, hz int) int {
	*acc += elapsed * time.Duration(hz)
	n := *acc / time.Second
	*acc -= n * time.Second
	return int(n)
}

// Tick advances by exactly one timer period and returns the cycles owed for
// it. Front ends with their own fixed-rate loop use this instead of Advance.
func (c *Clock) Tick() int {
	c.frameAcc += c.CPUHz
	n := c.frameAcc / c.TimerHz
	c.frameAcc -= n * c.TimerHz
	return n
}

// Reset drops any partial cycle or tick.
func (c *Clock) Reset() {
	c.cycleAcc = 0
	c.timerAcc = 0
	c.frameAcc = 0
}

// Frame returns the ticker period, one timer tick.
func (c *Clock) Frame() time.Duration {
	return time.Second / time.Duration(c.TimerHz)
}

// Run drives m until ctx is cancelled, the machine halts or a hook fails.
// Timer ticks are delivered before the cycles of the same frame. A machine
// waiting for a key gets one retry per frame.
func (c *Clock) Run(ctx context.Context, m Machine, hooks Hooks) error {
	ticker := time.NewTicker(c.Frame())
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			cycles, ticks := c.Advance(now.Sub(last))
			last = now

			for i := 0; i < ticks; i++ {
				m.TickTimers()
			}

			halted, err := c.runCycles(m, cycles, hooks)
			if err != nil {
				return err
			}
			if hooks.Frame != nil {
				if err := hooks.Frame(); err != nil {
					return err
				}
			}
			if halted {
				return nil
			}
		}
	}
}

func (c *Clock) runCycles(m Machine, cycles int, hooks Hooks) (bool, error) {
	for i := 0; i < cycles; i++ {
		state, err := m.Step()
		if err != nil {
			if hooks.StepError == nil {
				return false, err
			}
			if err := hooks.StepError(err); err != nil {
				return false, err
			}
			continue
		}
		switch state {
		case cpu.Halted:
			return true, nil
		case cpu.AwaitingKey:
			return false, nil
		}
	}
	return false, nil
}
