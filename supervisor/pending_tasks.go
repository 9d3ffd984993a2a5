package supervisor

import (
	"container/heap"
	"time"

	"github.com/thrasher-corp/fcs/types"
)

// PendingTasks tracks tasks awaiting dispatch, ordered by deadline. It
// combines a min-heap with a pause flag: while paused, nothing is ever
// reported ready, which is how the supervisor stalls dispatching when every
// worker is busy or the cluster is empty.
//
// The queue holds derived state only; after a supervisor restart it is
// rebuilt from the database backlog
type PendingTasks struct {
	tasks  pendingHeap
	active bool
}

// NewPendingTasks returns an empty queue. It starts paused; dispatching
// begins once a worker makes itself known and the supervisor resumes it
func NewPendingTasks() *PendingTasks {
	return &PendingTasks{}
}

// Push enqueues a task. The deadline is scheduledAt interpreted as a delay
// from now; a nil or non-positive delay means ready immediately
func (p *PendingTasks) Push(id types.TaskID, scheduledAt *time.Time, now time.Time) {
	var deadline *time.Time
	if scheduledAt != nil {
		if delay := scheduledAt.Sub(now); delay > 0 {
			at := now.Add(delay)
			deadline = &at
		}
	}
	heap.Push(&p.tasks, pendingTask{deadline: deadline, id: id})
}

// Pause stops the queue from reporting ready tasks until Resume is called
func (p *PendingTasks) Pause() {
	p.active = false
}

// Resume lifts a pause
func (p *PendingTasks) Resume() {
	p.active = true
}

// WakeAfter returns how long until the head task becomes ready. The second
// return is false when the queue is paused or empty, i.e. there is nothing
// to wait for
func (p *PendingTasks) WakeAfter(now time.Time) (time.Duration, bool) {
	if !p.active || p.tasks.Len() == 0 {
		return 0, false
	}
	head := p.tasks.entries[0]
	if head.deadline == nil {
		return 0, true
	}
	if wait := head.deadline.Sub(now); wait > 0 {
		return wait, true
	}
	return 0, true
}

// PopReady removes and returns the head task if its deadline has elapsed.
// The head is only removed here, never while merely waiting, so an
// abandoned wait leaves the queue intact
func (p *PendingTasks) PopReady(now time.Time) (types.TaskID, bool) {
	if !p.active || p.tasks.Len() == 0 {
		return types.TaskID{}, false
	}
	head := p.tasks.entries[0]
	if head.deadline != nil && head.deadline.After(now) {
		return types.TaskID{}, false
	}
	heap.Pop(&p.tasks)
	return head.id, true
}

// Len returns the number of queued tasks
func (p *PendingTasks) Len() int {
	return p.tasks.Len()
}

type pendingTask struct {
	// deadline is nil for dispatch-as-soon-as-possible tasks, which sort
	// before any deadline
	deadline *time.Time
	id       types.TaskID
}

// less orders by deadline ascending with nil first; ties break on id so the
// order stays total
func (t pendingTask) less(other pendingTask) bool {
	switch {
	case t.deadline == nil && other.deadline == nil:
		return t.id.Less(other.id)
	case t.deadline == nil:
		return true
	case other.deadline == nil:
		return false
	case t.deadline.Equal(*other.deadline):
		return t.id.Less(other.id)
	default:
		return t.deadline.Before(*other.deadline)
	}
}

type pendingHeap struct {
	entries []pendingTask
}

func (h *pendingHeap) Len() int { return len(h.entries) }

func (h *pendingHeap) Less(i, j int) bool {
	return h.entries[i].less(h.entries[j])
}

func (h *pendingHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
}

func (h *pendingHeap) Push(x interface{}) {
	h.entries = append(h.entries, x.(pendingTask))
}

func (h *pendingHeap) Pop() interface{} {
	old := h.entries
	n := len(old)
	entry := old[n-1]
	h.entries = old[:n-1]
	return entry
}
