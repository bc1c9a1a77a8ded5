package cyphal

import (
	"sync"
	"time"
)

const (
	// DefaultTransferIDTimeout is how long in-progress transfer may wait for its next frame before it is discarded.
	DefaultTransferIDTimeout = 2 * time.Second
	// DefaultMaxPending is maximum number of in-progress transfers. One for each transfer id value.
	DefaultMaxPending = TransferIDMax + 1
)

type pendingTransfer struct {
	frames                []Frame
	lastReceivedFrameTime time.Time
}

// Reassembler groups received frames by transfer id into complete transfers.
//
// Frames of multi-frame transfer are held as pending until frame with end-of-transfer flag arrives. Completed
// transfers wait in complete set until taken with TakeComplete. Reassembler does not check toggle bits or CRC, that
// is done when completed frames are decoded into Transfer.
type Reassembler struct {
	// TransferIDTimeout is maximum age of the last received frame of pending transfer. Older pending transfers are
	// discarded. Zero disables eviction by age.
	TransferIDTimeout time.Duration
	// MaxPending limits number of pending transfers. When limit is reached the oldest pending transfer is discarded to
	// make room for new one. Zero means no limit.
	MaxPending int

	pending  map[TransferID]*pendingTransfer
	complete map[TransferID][]Frame

	now  func() time.Time
	lock sync.Mutex
}

// NewReassembler creates reassembler with default timeout and capacity.
func NewReassembler() *Reassembler {
	return &Reassembler{
		TransferIDTimeout: DefaultTransferIDTimeout,
		MaxPending:        DefaultMaxPending,

		pending:  make(map[TransferID]*pendingTransfer),
		complete: make(map[TransferID][]Frame),
		now:      time.Now,
	}
}

// Push adds received frame to its transfer. Returns transfer id of the frame and true when that transfer is now
// complete and can be taken with TakeComplete.
//
// Frames that can not be attributed to any transfer are dropped silently: empty frames, end or middle frames with no
// pending transfer started before them. Frames of pending transfer are appended in arrival order without any checks.
func (r *Reassembler) Push(frame Frame) (TransferID, bool) {
	tail, ok := frame.Tail()
	if !ok {
		return 0, false
	}
	tid := tail.TransferID()

	r.lock.Lock()
	defer r.lock.Unlock()

	now := r.now()
	r.evictStale(now)

	if tail.IsSingleFrame() {
		// NB: pending multi-frame transfer with same id is left untouched
		r.complete[tid] = []Frame{frame}
		return tid, true
	}

	p, isPending := r.pending[tid]
	if !isPending {
		if !tail.IsStart() {
			return tid, false // no start seen for this transfer
		}
		r.makeRoom()
		p = &pendingTransfer{}
		r.pending[tid] = p
	}
	// NB: start frame for already pending transfer is appended as is. DecodeTransfer rejects such sequence.

	p.frames = append(p.frames, frame)
	p.lastReceivedFrameTime = now
	if !tail.IsEnd() {
		return tid, false
	}
	delete(r.pending, tid)
	r.complete[tid] = p.frames
	return tid, true
}

// TakeComplete removes and returns frames of completed transfer. Returns false when transfer with given id is not
// complete (yet).
func (r *Reassembler) TakeComplete(tid TransferID) ([]Frame, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	frames, ok := r.complete[tid]
	if !ok {
		return nil, false
	}
	delete(r.complete, tid)
	return frames, true
}

// Reset discards pending and completed frames of given transfer id.
func (r *Reassembler) Reset(tid TransferID) {
	r.lock.Lock()
	defer r.lock.Unlock()

	delete(r.pending, tid)
	delete(r.complete, tid)
}

// Pending returns number of transfers that have started but not yet ended.
func (r *Reassembler) Pending() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return len(r.pending)
}

func (r *Reassembler) evictStale(now time.Time) {
	if r.TransferIDTimeout <= 0 {
		return
	}
	threshold := now.Add(-r.TransferIDTimeout)
	for tid, p := range r.pending {
		if p.lastReceivedFrameTime.Before(threshold) {
			delete(r.pending, tid)
		}
	}
}

func (r *Reassembler) makeRoom() {
	if r.MaxPending <= 0 || len(r.pending) < r.MaxPending {
		return
	}
	var oldestTID TransferID
	var oldest *pendingTransfer
	for tid, p := range r.pending {
		if oldest == nil || p.lastReceivedFrameTime.Before(oldest.lastReceivedFrameTime) {
			oldest = p
			oldestTID = tid
		}
	}
	delete(r.pending, oldestTID)
}
