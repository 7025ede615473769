// Package exec provides per-dictionary serial task queues. All reads,
// writes, reloads and compactions against one dictionary identity run on
// that identity's single goroutine, so dictionary state never needs locks;
// different identities proceed fully in parallel.
package exec

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sourcegraph/conc"
)

const queueCapacity = 128

type task struct {
	fn  func() any
	out chan any

	// superseding tasks carry a key and the sequence current at enqueue
	// time; a stale sequence means a newer equivalent replaced this one
	key string
	seq uint64
}

type queue struct {
	tasks chan task

	mu  sync.Mutex
	seq map[string]uint64

	largeTask        atomic.Bool
	lastWrite        atomic.Int64
	lastWriteRequest atomic.Int64
}

// Registry maps dictionary identities to their task queues. Construct one
// per facilitator and pass it down; queues are created on first use and
// live until Shutdown.
type Registry struct {
	mu     sync.Mutex
	queues map[string]*queue
	wg     conc.WaitGroup
	closed bool
}

func NewRegistry() *Registry {
	return &Registry{queues: make(map[string]*queue)}
}

func (r *Registry) queueFor(id string) *queue {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	q, ok := r.queues[id]
	if !ok {
		q = &queue{
			tasks: make(chan task, queueCapacity),
			seq:   make(map[string]uint64),
		}
		r.queues[id] = q
		r.wg.Go(q.run)
	}
	return q
}

func (q *queue) run() {
	for t := range q.tasks {
		if t.key != "" {
			q.mu.Lock()
			stale := t.seq != q.seq[t.key]
			q.mu.Unlock()
			if stale {
				continue
			}
		}
		res := t.fn()
		q.lastWrite.Store(time.Now().UnixNano())
		if t.out != nil {
			t.out <- res
		}
	}
}

// Execute enqueues a fire-and-forget task for id. Failures inside the task
// must be absorbed and logged by the task itself; a full queue drops the
// task with a warning rather than blocking the caller.
func (r *Registry) Execute(id string, fn func()) {
	q := r.queueFor(id)
	if q == nil {
		return
	}
	q.lastWriteRequest.Store(time.Now().UnixNano())
	select {
	case q.tasks <- task{fn: func() any { fn(); return nil }}:
	default:
		log.Warnf("exec: queue for %q full, dropping task", id)
	}
}

// ExecuteSync enqueues fn and waits up to timeout for its result. A timeout,
// a full queue or an in-progress large task yields (nil, false) so the
// caller can degrade to an empty result instead of stalling.
func (r *Registry) ExecuteSync(id string, timeout time.Duration, fn func() any) (any, bool) {
	q := r.queueFor(id)
	if q == nil {
		return nil, false
	}
	if q.largeTask.Load() {
		return nil, false
	}
	t := task{fn: fn, out: make(chan any, 1)}
	select {
	case q.tasks <- t:
	default:
		return nil, false
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-t.out:
		return res, true
	case <-timer.C:
		log.Debugf("exec: query against %q timed out after %v", id, timeout)
		return nil, false
	}
}

// ExecuteSuperseding enqueues fn under key, replacing any still-pending task
// with the same key on the same identity. Used to coalesce repeated flush
// requests.
func (r *Registry) ExecuteSuperseding(id, key string, fn func()) {
	q := r.queueFor(id)
	if q == nil {
		return
	}
	q.mu.Lock()
	q.seq[key]++
	seq := q.seq[key]
	q.mu.Unlock()

	q.lastWriteRequest.Store(time.Now().UnixNano())
	select {
	case q.tasks <- task{fn: func() any { fn(); return nil }, key: key, seq: seq}:
	default:
		log.Warnf("exec: queue for %q full, dropping %q task", id, key)
	}
}

// SetLargeTask flags id as running a bulk load or compaction. While set,
// ExecuteSync short-circuits instead of queueing behind it.
func (r *Registry) SetLargeTask(id string, on bool) {
	if q := r.queueFor(id); q != nil {
		q.largeTask.Store(on)
	}
}

// LastWrite returns when the most recent task against id finished, and
// LastWriteRequest when the most recent mutation was enqueued. Zero times
// mean the identity has no history.
func (r *Registry) LastWrite(id string) time.Time {
	return r.stamp(id, func(q *queue) int64 { return q.lastWrite.Load() })
}

func (r *Registry) LastWriteRequest(id string) time.Time {
	return r.stamp(id, func(q *queue) int64 { return q.lastWriteRequest.Load() })
}

func (r *Registry) stamp(id string, get func(*queue) int64) time.Time {
	r.mu.Lock()
	q := r.queues[id]
	r.mu.Unlock()
	if q == nil {
		return time.Time{}
	}
	ns := get(q)
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Shutdown stops accepting work, drains every queue and waits for the
// workers to exit.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	queues := r.queues
	r.queues = nil
	r.mu.Unlock()

	for _, q := range queues {
		close(q.tasks)
	}
	r.wg.Wait()
}
