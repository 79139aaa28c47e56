// Package queue serializes action requests onto a single browser
// session. Requests drain strictly in arrival order; one request's
// failure never touches its neighbors.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nvyas/linkpilot/internal/action"
	"github.com/nvyas/linkpilot/internal/stealth"
)

// Performer executes one request. Satisfied by *action.Machine.
type Performer interface {
	Perform(ctx context.Context, req action.Request) action.Result
}

// Queue owns the ordering of action requests. The browser session
// admits exactly one interaction flow at a time, so at most one drain
// goroutine runs regardless of how many producers enqueue.
type Queue struct {
	performer Performer
	log       *zap.SugaredLogger

	ctx   context.Context
	delay time.Duration

	// onResult, when set, observes every finished request.
	onResult func(action.Result)

	mu       sync.Mutex
	items    []action.Request
	draining bool
	stopped  bool

	wg sync.WaitGroup
}

// Option configures a Queue.
type Option func(*Queue)

// WithDelay sets the base pause inserted between consecutive requests.
// The actual pause is jittered up to half again the base so request
// timing never falls into a fixed cadence.
func WithDelay(d time.Duration) Option {
	return func(q *Queue) { q.delay = d }
}

// WithResultHook registers a callback invoked after every request,
// regardless of outcome. The callback runs on the drain goroutine.
func WithResultHook(fn func(action.Result)) Option {
	return func(q *Queue) { q.onResult = fn }
}

// New returns an empty Queue draining into performer. ctx bounds all
// request execution; cancelling it abandons the drain.
func New(ctx context.Context, performer Performer, log *zap.SugaredLogger, opts ...Option) *Queue {
	q := &Queue{
		performer: performer,
		log:       log,
		ctx:       ctx,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends req and returns its assigned ID. A zero-ID request
// gets a fresh one; requests arriving after Stop are rejected with
// ok=false.
func (q *Queue) Enqueue(req action.Request) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return "", false
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	q.items = append(q.items, req)
	q.log.Debugw("request enqueued", "id", req.ID, "kind", req.Kind, "target", req.Target, "depth", len(q.items))

	if !q.draining {
		q.draining = true
		q.wg.Add(1)
		go q.drain()
	}
	return req.ID, true
}

// drain pops and performs requests until the queue empties. It is the
// only goroutine that touches the performer.
func (q *Queue) drain() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		req := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		if q.ctx.Err() != nil {
			q.finish(action.Result{
				ID: req.ID, Kind: req.Kind, Target: req.Target,
				Outcome: action.OutcomeFailed, Err: q.ctx.Err(), Detail: q.ctx.Err().Error(),
			})
			continue
		}

		res := q.performer.Perform(q.ctx, req)
		q.finish(res)

		q.mu.Lock()
		pending := len(q.items) > 0
		q.mu.Unlock()
		if pending && q.delay > 0 {
			select {
			case <-time.After(stealth.RandomDelay(q.delay, q.delay+q.delay/2)):
			case <-q.ctx.Done():
			}
		}
	}
}

func (q *Queue) finish(res action.Result) {
	if res.Err != nil {
		q.log.Warnw("request failed", "id", res.ID, "kind", res.Kind, "target", res.Target, "error", res.Err)
	} else {
		q.log.Infow("request finished", "id", res.ID, "kind", res.Kind, "target", res.Target, "outcome", res.Outcome)
	}
	if q.onResult != nil {
		q.onResult(res)
	}
}

// Stop rejects further enqueues. Requests already accepted still
// complete; use Wait to observe that.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
}

// Wait blocks until the drain goroutine has finished all accepted
// requests.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Len reports how many requests are waiting, excluding the one in
// flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
