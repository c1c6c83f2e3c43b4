package timer

import (
	"github.com/ardnew/softmcu/wake"
)

// TaskContext is the slice of the executor task handle the time driver
// needs to suspend a task. *executor.Context satisfies it.
type TaskContext interface {
	// Waker returns a waker targeting the calling task.
	Waker() wake.Waker

	// Suspend parks the calling task until its waker fires. It returns
	// ErrCancelled if the task was cancelled while suspended.
	Suspend() error
}

// Sleep suspends the calling task for at least d ticks.
func (drv *Driver) Sleep(tc TaskContext, d uint32) error {
	return drv.SleepUntil(tc, drv.Now().Add(d))
}

// SleepUntil suspends the calling task until the given deadline has been
// reached. A deadline at or before the current tick returns immediately.
// Wakes from other sources are absorbed; the task stays suspended until
// the deadline. If the task is cancelled, the alarm is retracted and
// ErrCancelled is returned.
func (drv *Driver) SleepUntil(tc TaskContext, deadline Tick) error {
	if TickReached(drv.Now(), deadline) {
		return nil
	}
	h, err := drv.Schedule(deadline, tc.Waker())
	if err != nil {
		return err
	}
	for !TickReached(drv.Now(), deadline) {
		if err := tc.Suspend(); err != nil {
			drv.Cancel(h)
			return err
		}
	}
	return nil
}

// Ticker delivers periodic wake-ups at a fixed tick interval. Missed
// intervals are not compressed: each Wait targets the deadline one period
// after the previous one, so a slow consumer fires back-to-back until it
// catches up.
type Ticker struct {
	drv    *Driver
	period uint32
	next   Tick
}

// NewTicker creates a ticker whose first deadline is one period from now.
func (drv *Driver) NewTicker(period uint32) *Ticker {
	return &Ticker{
		drv:    drv,
		period: period,
		next:   drv.Now().Add(period),
	}
}

// Wait suspends the calling task until the next periodic deadline.
func (t *Ticker) Wait(tc TaskContext) error {
	if err := t.drv.SleepUntil(tc, t.next); err != nil {
		return err
	}
	t.next = t.next.Add(t.period)
	return nil
}
