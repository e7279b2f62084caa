package ingestion

// Queue is the single-flight FIFO that admits one item into processing at a time.
//
// Queue holds no lock; the Pipeline serializes every call under its own mutex
// together with chunk store mutations.
//
// Each Reset starts a new epoch. A completion reported for an older epoch is
// ignored, so a processing step that outlives a reset can never release the
// slot held by work from the new epoch.
type Queue[T any] struct {
	pending []T
	busy    bool
	epoch   uint64
}

// NewQueue creates an idle queue at epoch 0.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Enqueue admits item and returns the current epoch.
// When the queue was idle it becomes busy and start is true: the caller must
// begin processing item now and later call Complete with the returned epoch.
// Otherwise item waits in the FIFO and start is false.
func (q *Queue[T]) Enqueue(item T) (epoch uint64, start bool) {
	if !q.busy {
		q.busy = true
		return q.epoch, true
	}
	q.pending = append(q.pending, item)
	return q.epoch, false
}

// Complete finishes the in-flight item of the given epoch.
// If another item is pending it is popped and returned with ok set, and the
// queue stays busy; the caller must process it next. Otherwise the queue
// becomes idle. Completions from an earlier epoch change nothing.
func (q *Queue[T]) Complete(epoch uint64) (next T, ok bool) {
	if epoch != q.epoch || !q.busy {
		return next, false
	}
	if len(q.pending) == 0 {
		q.busy = false
		return next, false
	}
	next = q.pending[0]
	var zero T
	q.pending[0] = zero
	q.pending = q.pending[1:]
	return next, true
}

// Reset drops every pending item, forces the queue idle and advances the epoch.
// The dropped items are returned in FIFO order so the caller can report them.
func (q *Queue[T]) Reset() []T {
	dropped := q.pending
	q.pending = nil
	q.busy = false
	q.epoch++
	return dropped
}

// Busy reports whether an item of the current epoch is in flight.
func (q *Queue[T]) Busy() bool {
	return q.busy
}

// Pending returns the number of items waiting behind the in-flight one.
func (q *Queue[T]) Pending() int {
	return len(q.pending)
}

// Epoch returns the current epoch.
func (q *Queue[T]) Epoch() uint64 {
	return q.epoch
}
