package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunnerWaitAggregates(t *testing.T) {
	errOther := errors.New("other")
	r := NewRunner().Go(
		RunFunc(func(context.Context) error { return errBoom }),
		RunFunc(func(context.Context) error { return errOther }),
		RunFunc(func(context.Context) error { return nil }),
	)
	err := r.Wait()
	require.Error(t, err)
	require.True(t, errors.Is(err, errBoom))
	require.True(t, errors.Is(err, errOther))
}

func TestRunnerIgnore(t *testing.T) {
	r := NewRunner().Ignore(errBoom).Go(
		RunFunc(func(context.Context) error { return errBoom }),
		NamedRun("blocker", RunFunc(blockUntilDone)),
	)
	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Stop()
	}()
	require.NoError(t, r.Wait())
}

func TestRunnerWaitAny(t *testing.T) {
	r := NewRunner().Go(
		RunFunc(blockUntilDone),
		RunFunc(func(context.Context) error { return errBoom }),
		RunFunc(blockUntilDone),
	)
	done := make(chan error, 1)
	go func() { done <- r.WaitAny() }()
	select {
	case err := <-done:
		require.Equal(t, errBoom, err)
	case <-time.After(time.Second):
		t.Fatal("WaitAny timeout")
	}
	require.Error(t, r.Context.Err())
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Aggregate())
	errs.Add(nil, errBoom)
	require.Equal(t, errBoom, errs.Aggregate())
	errs.Add(errors.New("second"))
	require.Equal(t, "Multiple errors:\nboom\nsecond", errs.Aggregate().Error())
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestRunWithContextCloser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	unblock := make(chan struct{})
	closed := 0
	closer := closerFunc(func() error {
		closed++
		close(unblock)
		return nil
	})
	go cancel()
	err := RunWithContextCloser(ctx, closer, func() error {
		<-unblock
		return errBoom
	})
	require.Equal(t, context.Canceled, err)
	require.Equal(t, 1, closed)

	closed = 0
	unblock = make(chan struct{})
	err = RunWithContextCloser(context.Background(), closer, func() error { return errBoom })
	require.Equal(t, errBoom, err)
	require.Equal(t, 1, closed)
}
