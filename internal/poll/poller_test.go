package poll_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ChinmayIngle26/antigravity-pharmacy/internal/poll"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// gatedFetch hands each in-flight fetch to the test so completion order can
// be controlled exactly.
type fetchCall struct {
	reply chan string
}

func gatedFetch(calls chan fetchCall) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		c := fetchCall{reply: make(chan string)}
		calls <- c
		return <-c.reply, nil
	}
}

func TestPoller_FetchesImmediatelyOnStart(t *testing.T) {
	updates := make(chan int, 1)
	p := poll.New(func(ctx context.Context) (int, error) { return 42, nil }, 0, zap.NewNop())
	p.OnUpdate(func(v int) { updates <- v })
	p.Start(context.Background())
	defer p.Stop()

	require.Equal(t, 42, <-updates)
	v, ok := p.Snapshot()
	require.True(t, ok)
	require.Equal(t, 42, v)
}

func TestPoller_RepeatsOnInterval(t *testing.T) {
	var calls atomic.Int32
	p := poll.New(func(ctx context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}, 5*time.Millisecond, zap.NewNop())
	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestPoller_LastWriterWinsByIssuanceOrder(t *testing.T) {
	calls := make(chan fetchCall)
	updates := make(chan string, 4)
	p := poll.New(gatedFetch(calls), 0, zap.NewNop())
	p.OnUpdate(func(v string) { updates <- v })
	p.Start(context.Background())
	defer p.Stop()

	first := <-calls // fetch issued by Start, held open
	p.Refresh()
	second := <-calls // fetch issued later, resolves first

	second.reply <- "fresh"
	require.Equal(t, "fresh", <-updates)

	// The earlier-issued fetch resolving late must not clobber the snapshot.
	first.reply <- "stale"
	select {
	case v := <-updates:
		t.Fatalf("stale fetch published %q", v)
	case <-time.After(100 * time.Millisecond):
	}
	v, ok := p.Snapshot()
	require.True(t, ok)
	require.Equal(t, "fresh", v)
}

// gatedResultFetch is gatedFetch with a controllable error per call.
type gatedResult struct {
	value string
	err   error
}

func gatedResultFetch(calls chan chan gatedResult) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		c := make(chan gatedResult)
		calls <- c
		r := <-c
		return r.value, r.err
	}
}

func TestPoller_StaleFailureDoesNotMaskFresherSuccess(t *testing.T) {
	calls := make(chan chan gatedResult)
	updates := make(chan string, 2)
	p := poll.New(gatedResultFetch(calls), 0, zap.NewNop())
	p.OnUpdate(func(v string) { updates <- v })
	p.Start(context.Background())
	defer p.Stop()

	first := <-calls // held open
	p.Refresh()
	second := <-calls

	second <- gatedResult{value: "fresh"}
	require.Equal(t, "fresh", <-updates)

	// The earlier-issued fetch failing late must not set an error state:
	// the latest-issued fetch succeeded.
	first <- gatedResult{err: errors.New("slow network")}
	require.Never(t, func() bool { return p.LastError() != nil }, 100*time.Millisecond, 5*time.Millisecond)
	require.False(t, p.Degraded())
}

func TestPoller_StopDiscardsInFlightResult(t *testing.T) {
	calls := make(chan fetchCall)
	updates := make(chan string, 1)
	p := poll.New(gatedFetch(calls), 0, zap.NewNop())
	p.OnUpdate(func(v string) { updates <- v })
	p.Start(context.Background())

	inFlight := <-calls
	p.Stop()
	inFlight.reply <- "ghost"

	select {
	case v := <-updates:
		t.Fatalf("published %q after Stop", v)
	case <-time.After(100 * time.Millisecond):
	}
	_, ok := p.Snapshot()
	require.False(t, ok)
}

func TestPoller_FailedFetchKeepsPreviousSnapshot(t *testing.T) {
	var fail atomic.Bool
	updates := make(chan int, 2)
	p := poll.New(func(ctx context.Context) (int, error) {
		if fail.Load() {
			return 0, errors.New("network down")
		}
		return 7, nil
	}, 0, zap.NewNop())
	p.OnUpdate(func(v int) { updates <- v })
	p.Start(context.Background())
	defer p.Stop()

	require.Equal(t, 7, <-updates)

	fail.Store(true)
	p.Refresh()
	require.Eventually(t, func() bool { return p.LastError() != nil }, time.Second, time.Millisecond)

	v, ok := p.Snapshot()
	require.True(t, ok)
	require.Equal(t, 7, v)
	require.False(t, p.Degraded())
}

func TestPoller_DegradedWhenNeverSucceeded(t *testing.T) {
	p := poll.New(func(ctx context.Context) (int, error) {
		return 0, errors.New("unreachable")
	}, 0, zap.NewNop())
	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, p.Degraded, time.Second, time.Millisecond)
	_, ok := p.Snapshot()
	require.False(t, ok)
}
