package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openpgp-hw/tokencore/token"
)

func TestHandleEventRoundRobin(t *testing.T) {
	f := newFixture(t)

	f.dev.handleEvent(token.Event{Kind: token.InterfaceStarted})
	require.Equal(t, []string{"home"}, f.stack.joined())
	require.Equal(t, "home", f.dev.selector.Current().Name)
	require.False(t, f.dev.Link().IsUp())

	f.dev.handleEvent(token.Event{Kind: token.AddressAcquired})
	require.True(t, f.dev.Link().IsUp())
	require.Equal(t, int32(1), f.inval.n.Load())

	last, ok := f.link.lastSet()
	require.True(t, ok)
	require.True(t, last)

	f.dev.handleEvent(token.Event{Kind: token.Disconnected})
	require.False(t, f.dev.Link().IsUp())
	require.Equal(t, int32(2), f.inval.n.Load())
	require.Equal(t, []string{"home", "lab"}, f.stack.joined())
	require.Equal(t, "lab", f.dev.selector.Current().Name)

	// a failed join reports another disconnect: the selection keeps rotating
	// and state is invalidated again even though the link was already down
	f.dev.handleEvent(token.Event{Kind: token.Disconnected})
	require.Equal(t, int32(3), f.inval.n.Load())
	require.Equal(t, []string{"home", "lab", "home"}, f.stack.joined())
	require.Equal(t, "home", f.dev.selector.Current().Name)
}

func TestHandleEventInvalidatesBeforeSessionWakes(t *testing.T) {
	f := newFixture(t)

	observed := make(chan int32, 1)
	go func() {
		_ = f.dev.Link().WaitUp(context.Background())
		observed <- f.inval.n.Load()
	}()

	// let the waiter park before the event arrives
	time.Sleep(10 * time.Millisecond)
	f.dev.handleEvent(token.Event{Kind: token.AddressAcquired})

	require.GreaterOrEqual(t, <-observed, int32(1))
}

func TestRunStartsTasksAndCloseStopsThem(t *testing.T) {
	f := newFixture(t)
	f.flags.values["initialized"] = true

	require.NoError(t, f.dev.Run())
	require.Equal(t, 3, f.dev.taskMgr.TaskCount())
	require.Equal(t, 1, f.bringup.restoreCalls)

	// the stack handler was registered; a started interface joins the first
	// candidate
	f.dev.handleEvent(token.Event{Kind: token.InterfaceStarted})
	require.Equal(t, []string{"home"}, f.stack.joined())

	require.NoError(t, f.dev.Close())
	require.Equal(t, 0, f.dev.taskMgr.TaskCount())
}
