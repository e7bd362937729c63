package workers

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/photoingest/database"
	"github.com/camden-git/photoingest/media"
	"github.com/camden-git/photoingest/repository"
)

var baseTime = time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) repository.PhotoRepositoryInterface {
	t.Helper()
	db, err := database.OpenPhotoStore(filepath.Join(t.TempDir(), "photos.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("OpenPhotoStore: %v", err)
	}
	t.Cleanup(func() { database.ClosePhotoStore(db) })
	return repository.NewLockedPhotoRepository(repository.NewPhotoRepository(db))
}

// fakeExtractor returns canned metadata keyed by file name. Unknown names
// get a plain record captured at baseTime.
type fakeExtractor struct {
	meta map[string]media.Metadata
	fail map[string]error

	mu    sync.Mutex
	calls map[string]int
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		meta:  map[string]media.Metadata{},
		fail:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeExtractor) Extract(ctx context.Context, path string) (*media.Metadata, error) {
	f.mu.Lock()
	f.calls[path]++
	f.mu.Unlock()

	name := filepath.Base(path)
	if err, ok := f.fail[name]; ok {
		return nil, err
	}
	kind, err := media.KindForPath(path)
	if err != nil {
		return nil, err
	}

	m := media.Metadata{CapturedAt: baseTime, Tags: map[string]string{}, BracketShotCount: 1}
	if canned, ok := f.meta[name]; ok {
		m = canned
		if m.Tags == nil {
			m.Tags = map[string]string{}
		}
	}
	m.Path, m.Kind = path, kind
	return &m, nil
}

func (f *fakeExtractor) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeExtractor) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fixedResolver struct{ lat, lng float64 }

func (r fixedResolver) Resolve(time.Time) (float64, float64, error) {
	return r.lat, r.lng, nil
}

// eventLog collects scan events. The orchestrator serializes calls; the
// mutex covers reads from the test goroutine while a watcher is running.
type eventLog struct {
	mu     sync.Mutex
	events []Progress
}

func (l *eventLog) record(p Progress) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, p)
}

func (l *eventLog) count(ev Event) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, p := range l.events {
		if p.Event == ev {
			n++
		}
	}
	return n
}

func (l *eventLog) all() []Progress {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Progress(nil), l.events...)
}

func touch(t *testing.T, path string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
