package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/camden-git/photoingest/brackets"
	"github.com/camden-git/photoingest/models"
	"github.com/camden-git/photoingest/repository"
)

// ErrSerializerStopped is returned when a write is enqueued after Stop.
var ErrSerializerStopped = errors.New("write serializer stopped")

const defaultWriteQueueSize = 256

type writeKind int

const (
	writeUpsert writeKind = iota
	writeGroup
	writeLocation
	writeBarrier
)

type writeOp struct {
	kind    writeKind
	photo   *models.Photo
	groupID string
	members []string
	path    string
	lat     float64
	lng     float64
	done    chan struct{} // closed by the writer when a barrier is reached
}

// key is the path a failed write is reported under.
func (op writeOp) key() string {
	switch op.kind {
	case writeUpsert:
		return op.photo.Path
	case writeGroup:
		return op.groupID
	default:
		return op.path
	}
}

// WriteSerializer applies store writes on a single goroutine in the order
// they were enqueued. Producers return as soon as the write is queued; a
// full queue blocks them until the writer catches up.
type WriteSerializer struct {
	store repository.PhotoRepositoryInterface
	queue chan writeOp
	log   *zap.Logger

	// OnWriteError, when set before Start, is called on the writer goroutine
	// for every write the store rejects.
	OnWriteError func(path string, err error)

	mu      sync.RWMutex // guards started/stopped against sends on a closed queue
	started bool
	stopped bool
	wg      sync.WaitGroup

	applied atomic.Int64
	failed  atomic.Int64
}

func NewWriteSerializer(store repository.PhotoRepositoryInterface, queueSize int, log *zap.Logger) *WriteSerializer {
	if queueSize <= 0 {
		queueSize = defaultWriteQueueSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WriteSerializer{
		store: store,
		queue: make(chan writeOp, queueSize),
		log:   log,
	}
}

// Start launches the writer goroutine.
func (ws *WriteSerializer) Start() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.stopped {
		return ErrSerializerStopped
	}
	if ws.started {
		return fmt.Errorf("write serializer already started")
	}
	ws.started = true

	ws.wg.Add(1)
	go ws.writer()
	ws.log.Debug("write serializer started", zap.Int("queue_size", cap(ws.queue)))
	return nil
}

func (ws *WriteSerializer) writer() {
	defer ws.wg.Done()
	for op := range ws.queue {
		if op.kind == writeBarrier {
			close(op.done)
			continue
		}
		if err := ws.apply(op); err != nil {
			ws.failed.Add(1)
			ws.log.Error("write failed", zap.String("path", op.key()), zap.Error(err))
			if ws.OnWriteError != nil {
				ws.OnWriteError(op.key(), err)
			}
			continue
		}
		ws.applied.Add(1)
	}
	ws.log.Debug("write serializer queue drained")
}

// apply runs one write. A panic inside the store is turned into an error so
// the writer keeps going.
func (ws *WriteSerializer) apply(op writeOp) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during write: %v", r)
		}
	}()

	ctx := context.Background()
	switch op.kind {
	case writeUpsert:
		return ws.store.Upsert(ctx, op.photo)
	case writeGroup:
		return ws.store.ReplaceBracketGroup(ctx, op.groupID, op.members)
	case writeLocation:
		return ws.store.SetLocation(ctx, op.path, op.lat, op.lng)
	}
	return fmt.Errorf("unknown write kind %d", op.kind)
}

func (ws *WriteSerializer) enqueue(op writeOp) error {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	if ws.stopped {
		return ErrSerializerStopped
	}
	if !ws.started {
		return fmt.Errorf("write serializer not started")
	}
	ws.queue <- op
	return nil
}

// EnqueueUpsert queues the insert-or-replace of photo.
func (ws *WriteSerializer) EnqueueUpsert(photo *models.Photo) error {
	if photo == nil || photo.Path == "" {
		return fmt.Errorf("upsert requires a photo with a path")
	}
	return ws.enqueue(writeOp{kind: writeUpsert, photo: photo})
}

// EnqueueGroup queues the membership of one bracket group. The group id is
// derived from the member file names.
func (ws *WriteSerializer) EnqueueGroup(members []string) error {
	if len(members) == 0 {
		return fmt.Errorf("bracket group has no members")
	}
	m := append([]string(nil), members...)
	return ws.enqueue(writeOp{kind: writeGroup, groupID: brackets.GroupID(m), members: m})
}

// EnqueueLocation queues a coordinate update of an existing record.
func (ws *WriteSerializer) EnqueueLocation(path string, lat, lng float64) error {
	return ws.enqueue(writeOp{kind: writeLocation, path: path, lat: lat, lng: lng})
}

// Flush blocks until every write enqueued before the call has been applied.
func (ws *WriteSerializer) Flush() error {
	done := make(chan struct{})
	if err := ws.enqueue(writeOp{kind: writeBarrier, done: done}); err != nil {
		return err
	}
	<-done
	return nil
}

// Stop closes the queue, waits for the writer to apply everything still
// queued and then flushes the store. Later enqueues fail with
// ErrSerializerStopped. Stop is idempotent.
func (ws *WriteSerializer) Stop() error {
	ws.mu.Lock()
	if ws.stopped {
		ws.mu.Unlock()
		return nil
	}
	ws.stopped = true
	started := ws.started
	close(ws.queue)
	ws.mu.Unlock()

	if started {
		ws.wg.Wait()
	}
	ws.log.Info("write serializer stopped",
		zap.Int64("applied", ws.applied.Load()),
		zap.Int64("failed", ws.failed.Load()))

	if err := ws.store.Flush(context.Background()); err != nil {
		return fmt.Errorf("flushing store: %w", err)
	}
	return nil
}

// Stats returns the number of applied and rejected writes so far.
func (ws *WriteSerializer) Stats() (applied, failed int64) {
	return ws.applied.Load(), ws.failed.Load()
}
