package actorutil

import (
	"errors"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/require"
)

type taskOutcome struct {
	value string
	err   error
}

type startTask struct {
	fn      func() (*string, error)
	timeout time.Duration
}

func runTask(t *testing.T, msg startTask) taskOutcome {
	as := actor.NewActorSystem()
	defer as.Shutdown()

	outcome := make(chan taskOutcome, 1)
	props := actor.PropsFromFunc(func(ctx actor.Context) {
		switch m := ctx.Message().(type) {
		case startTask:
			NewBackgroundTask(ctx, m.fn).WithTimeout(m.timeout).OnError(func(err error) {
				outcome <- taskOutcome{err: err}
			}).PipeTo(ctx.Self())
		case string:
			outcome <- taskOutcome{value: m}
		}
	})
	pid := as.Root.Spawn(props)
	as.Root.Send(pid, msg)

	select {
	case o := <-outcome:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("background task did not complete")
		return taskOutcome{}
	}
}

func TestBackgroundTaskPipesValue(t *testing.T) {
	o := runTask(t, startTask{fn: func() (*string, error) {
		v := "open"
		return &v, nil
	}})
	require.NoError(t, o.err)
	require.Equal(t, "open", o.value)
}

func TestBackgroundTaskError(t *testing.T) {
	failure := errors.New("no such interface")
	o := runTask(t, startTask{fn: func() (*string, error) {
		return nil, failure
	}})
	require.ErrorIs(t, o.err, failure)
}

func TestBackgroundTaskTimeout(t *testing.T) {
	o := runTask(t, startTask{fn: func() (*string, error) {
		time.Sleep(time.Second)
		v := "late"
		return &v, nil
	}, timeout: 50 * time.Millisecond})
	require.Error(t, o.err)
	require.Empty(t, o.value)
}
