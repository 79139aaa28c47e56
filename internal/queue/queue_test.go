package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nvyas/linkpilot/internal/action"
	"github.com/nvyas/linkpilot/internal/logger"
)

// fakePerformer records the order requests arrive in and fails the
// targets it is told to.
type fakePerformer struct {
	mu      sync.Mutex
	order   []string
	failing map[string]error
	active  int
	maxSeen int
}

func (p *fakePerformer) Perform(ctx context.Context, req action.Request) action.Result {
	p.mu.Lock()
	p.active++
	if p.active > p.maxSeen {
		p.maxSeen = p.active
	}
	p.order = append(p.order, req.Target)
	err := p.failing[req.Target]
	p.mu.Unlock()

	time.Sleep(time.Millisecond)

	p.mu.Lock()
	p.active--
	p.mu.Unlock()

	res := action.Result{ID: req.ID, Kind: req.Kind, Target: req.Target, Outcome: action.OutcomeCompleted}
	if err != nil {
		res.Outcome = action.OutcomeFailed
		res.Err = err
	}
	return res
}

func TestQueueDrainsInOrder(t *testing.T) {
	p := &fakePerformer{}
	q := New(context.Background(), p, logger.Nop())

	for _, target := range []string{"a", "b", "c"} {
		id, ok := q.Enqueue(action.Request{Kind: action.KindConnect, Target: target})
		require.True(t, ok)
		require.NotEmpty(t, id)
	}
	q.Stop()
	q.Wait()

	require.Equal(t, []string{"a", "b", "c"}, p.order)
	require.Zero(t, q.Len())
}

func TestQueueIsolatesFailures(t *testing.T) {
	p := &fakePerformer{failing: map[string]error{"b": errors.New("page exploded")}}

	var mu sync.Mutex
	var results []action.Result
	q := New(context.Background(), p, logger.Nop(), WithResultHook(func(res action.Result) {
		mu.Lock()
		results = append(results, res)
		mu.Unlock()
	}))

	for _, target := range []string{"a", "b", "c"} {
		q.Enqueue(action.Request{Kind: action.KindConnect, Target: target})
	}
	q.Stop()
	q.Wait()

	require.Len(t, results, 3)
	require.Equal(t, action.OutcomeCompleted, results[0].Outcome)
	require.Equal(t, action.OutcomeFailed, results[1].Outcome)
	require.Equal(t, action.OutcomeCompleted, results[2].Outcome)
}

func TestQueueSingleDrainGoroutine(t *testing.T) {
	p := &fakePerformer{}
	q := New(context.Background(), p, logger.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(action.Request{Kind: action.KindConnect, Target: "x"})
		}()
	}
	wg.Wait()
	q.Stop()
	q.Wait()

	require.Len(t, p.order, 10)
	require.Equal(t, 1, p.maxSeen)
}

func TestQueueRejectsAfterStop(t *testing.T) {
	q := New(context.Background(), &fakePerformer{}, logger.Nop())
	q.Stop()

	_, ok := q.Enqueue(action.Request{Kind: action.KindConnect, Target: "late"})
	require.False(t, ok)
	q.Wait()
}

func TestQueueAssignsIDs(t *testing.T) {
	p := &fakePerformer{}
	q := New(context.Background(), p, logger.Nop())

	id1, _ := q.Enqueue(action.Request{Kind: action.KindConnect, Target: "a"})
	id2, _ := q.Enqueue(action.Request{Kind: action.KindConnect, Target: "b", ID: "preset"})
	q.Stop()
	q.Wait()

	require.NotEmpty(t, id1)
	require.Equal(t, "preset", id2)
}

func TestQueueSkipsDelayAfterLastRequest(t *testing.T) {
	p := &fakePerformer{}
	q := New(context.Background(), p, logger.Nop(), WithDelay(2*time.Second))

	start := time.Now()
	q.Enqueue(action.Request{Kind: action.KindConnect, Target: "only"})
	q.Stop()
	q.Wait()

	// The pause belongs between requests; a lone request drains
	// without it.
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, []string{"only"}, p.order)
}

func TestQueueDelaysBetweenRequests(t *testing.T) {
	p := &fakePerformer{}
	q := New(context.Background(), p, logger.Nop(), WithDelay(50*time.Millisecond))

	start := time.Now()
	for _, target := range []string{"a", "b", "c"} {
		q.Enqueue(action.Request{Kind: action.KindConnect, Target: target})
	}
	q.Stop()
	q.Wait()

	// Two inter-request pauses of at least the base delay each.
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	require.Equal(t, []string{"a", "b", "c"}, p.order)
}

func TestQueueCancelledContextFailsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var mu sync.Mutex
	var results []action.Result
	q := New(ctx, &fakePerformer{}, logger.Nop(), WithResultHook(func(res action.Result) {
		mu.Lock()
		results = append(results, res)
		mu.Unlock()
	}))

	q.Enqueue(action.Request{Kind: action.KindConnect, Target: "a"})
	q.Stop()
	q.Wait()

	require.Len(t, results, 1)
	require.Equal(t, action.OutcomeFailed, results[0].Outcome)
	require.ErrorIs(t, results[0].Err, context.Canceled)
}
