package executor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ardnew/softmcu/cosync"
	"github.com/ardnew/softmcu/executor"
	"github.com/ardnew/softmcu/timer"
	timersim "github.com/ardnew/softmcu/timer/hal/sim"
)

// TestTimerSignalChannelPipeline runs three cooperating tasks end to
// end: one sleeps and raises a signal, one waits on the signal and
// forwards a message through a capacity-1 channel, and one receives
// the message. The test goroutine plays the role of the hardware tick.
func TestTimerSignalChannelPipeline(t *testing.T) {
	counter := timersim.New(0)
	drv := timer.NewDriver(counter)
	exec := executor.New()

	sig := cosync.NewSignal[uint32]()
	ch := cosync.NewChannel[string](1)

	var received []string

	sleeper, err := exec.Register("sleeper", func(tc *executor.Context) error {
		if err := drv.Sleep(tc, 50); err != nil {
			return err
		}
		sig.Signal(uint32(drv.Now()))
		return nil
	})
	require.NoError(t, err)

	sender, err := exec.Register("sender", func(tc *executor.Context) error {
		tick, err := sig.Wait(tc)
		if err != nil {
			return err
		}
		require.GreaterOrEqual(t, tick, uint32(50))
		return ch.Send(tc, "alarm fired")
	})
	require.NoError(t, err)

	receiver, err := exec.Register("receiver", func(tc *executor.Context) error {
		msg, err := ch.Receive(tc)
		if err != nil {
			return err
		}
		received = append(received, msg)
		return nil
	})
	require.NoError(t, err)

	// All three park on their first poll: the sleeper on the alarm,
	// the sender on the signal, the receiver on the empty channel.
	exec.RunUntilIdle()
	require.Equal(t, executor.StateWaiting, exec.State(sleeper))
	require.Equal(t, executor.StateWaiting, exec.State(sender))
	require.Equal(t, executor.StateWaiting, exec.State(receiver))
	require.Empty(t, received)

	// Ticks short of the deadline wake nothing.
	counter.Advance(49)
	exec.RunUntilIdle()
	require.Equal(t, 3, exec.Remaining())

	// Crossing the deadline unwinds the whole pipeline.
	counter.Advance(1)
	exec.RunUntilIdle()

	require.Equal(t, executor.StateCompleted, exec.State(sleeper))
	require.Equal(t, executor.StateCompleted, exec.State(sender))
	require.Equal(t, executor.StateCompleted, exec.State(receiver))
	require.Equal(t, []string{"alarm fired"}, received)

	stats := exec.Stats()
	require.Equal(t, 3, stats.Tasks)
	require.Equal(t, 0, stats.Remaining)
	require.Equal(t, uint64(3), stats.Completions)
	require.Zero(t, stats.Faults)
}
