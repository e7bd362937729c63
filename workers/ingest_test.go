package workers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/camden-git/photoingest/media"
	"github.com/camden-git/photoingest/models"
	"github.com/camden-git/photoingest/repository"
)

func testOptions() Options {
	return Options{NumWorkers: 4, WriteQueueSize: 2, DetectBrackets: true, BracketMaxDuration: 5 * time.Second}
}

func TestSetDirectoriesFiltersAndDedups(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, filepath.Join(dir, "IMG_0001.JPG"))
	b := touch(t, filepath.Join(dir, "IMG_0002.cr2"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "IMG_0003.xmp"))
	c := touch(t, filepath.Join(dir, "sub", "deeper", "IMG_0004.jpeg"))

	orch := NewOrchestrator(newTestStore(t), newFakeExtractor(), nil, testOptions(), nil)
	if err := orch.SetDirectories([]string{dir}); err != nil {
		t.Fatal(err)
	}
	// the same tree again through a non-clean path
	if err := orch.SetDirectories([]string{filepath.Join(dir, "sub", "..")}); err != nil {
		t.Fatal(err)
	}

	if n := orch.TotalFileCount(); n != 3 {
		t.Fatalf("TotalFileCount = %d, want 3: %v", n, orch.Files())
	}
	want := []string{a, b, c}
	if got := orch.Files(); !reflect.DeepEqual(got, want) {
		t.Errorf("Files = %v, want %v", got, want)
	}

	orch.Reset()
	if orch.TotalFileCount() != 0 {
		t.Error("Reset did not clear the candidate list")
	}
}

func TestSetDirectoriesCustomExtensions(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.JPG"))
	touch(t, filepath.Join(dir, "b.nef"))

	opts := testOptions()
	opts.Extensions = []string{"NEF"}
	orch := NewOrchestrator(newTestStore(t), newFakeExtractor(), nil, opts, nil)
	if err := orch.SetDirectories([]string{dir}); err != nil {
		t.Fatal(err)
	}
	if files := orch.Files(); len(files) != 1 || filepath.Base(files[0]) != "b.nef" {
		t.Errorf("Files = %v", files)
	}
}

func TestSetDirectoriesMissingDirectory(t *testing.T) {
	orch := NewOrchestrator(newTestStore(t), newFakeExtractor(), nil, testOptions(), nil)
	if err := orch.SetDirectories([]string{filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}

func scanDir(t *testing.T, n int) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	var files []string
	for i := 1; i <= n; i++ {
		files = append(files, touch(t, filepath.Join(dir, fmt.Sprintf("IMG_%04d.JPG", i))))
	}
	return dir, files
}

func TestScanPartialFailureAndDrain(t *testing.T) {
	dir, files := scanDir(t, 10)
	store := newTestStore(t)
	ext := newFakeExtractor()
	ext.fail["IMG_0004.JPG"] = fmt.Errorf("%w: truncated file", media.ErrExtractionFailed)

	orch := NewOrchestrator(store, ext, nil, testOptions(), nil)
	if err := orch.SetDirectories([]string{dir}); err != nil {
		t.Fatal(err)
	}

	log := &eventLog{}
	summary, err := orch.Scan(context.Background(), false, log.record)
	if err != nil {
		t.Fatal(err)
	}

	events := log.all()
	last := events[len(events)-1]
	if last.Event != EventDone || last.Path != "" {
		t.Errorf("last event = %+v, want done with empty path", last)
	}
	if n := log.count(EventDone); n != 1 {
		t.Errorf("done emitted %d times", n)
	}
	if n := log.count(EventError); n != 1 {
		t.Errorf("error events = %d, want 1", n)
	}
	if n := log.count(EventEnd); n != 9 {
		t.Errorf("end events = %d, want 9", n)
	}
	if n := log.count(EventStart); n != 10 {
		t.Errorf("start events = %d, want 10", n)
	}

	// everything is queryable as soon as Scan returns
	paths, err := store.ListPaths(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 9 {
		t.Errorf("stored %d records, want 9", len(paths))
	}
	for _, p := range paths {
		if p == files[3] {
			t.Errorf("failed file %s was stored", p)
		}
	}

	if summary.Total != 10 || summary.Processed != 9 || summary.Failed != 1 || summary.Skipped != 0 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if len(summary.Errors) != 1 || summary.Errors[0].Category != CategoryExtractionFailure || summary.Errors[0].Path != files[3] {
		t.Errorf("unexpected errors %+v", summary.Errors)
	}

	run, err := store.GetRun(context.Background(), summary.RunID)
	if err != nil {
		t.Fatalf("run record: %v", err)
	}
	if run.Processed != 9 || run.Failed != 1 || run.TotalFiles != 10 {
		t.Errorf("unexpected run record %+v", run)
	}
}

// upsertFailingStore rejects upserts of one file name.
type upsertFailingStore struct {
	repository.PhotoRepositoryInterface
	name string
}

func (s upsertFailingStore) Upsert(ctx context.Context, photo *models.Photo) error {
	if filepath.Base(photo.Path) == s.name {
		return errors.New("disk I/O error")
	}
	return s.PhotoRepositoryInterface.Upsert(ctx, photo)
}

func TestScanWriteFailureIsNotCountedAsProcessed(t *testing.T) {
	dir, files := scanDir(t, 5)
	store := upsertFailingStore{PhotoRepositoryInterface: newTestStore(t), name: "IMG_0002.JPG"}

	orch := NewOrchestrator(store, newFakeExtractor(), nil, testOptions(), nil)
	if err := orch.SetDirectories([]string{dir}); err != nil {
		t.Fatal(err)
	}
	log := &eventLog{}
	summary, err := orch.Scan(context.Background(), false, log.record)
	if err != nil {
		t.Fatal(err)
	}

	if summary.Processed != 4 || summary.Failed != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if len(summary.Errors) != 1 || summary.Errors[0].Category != CategoryWriteFailure || summary.Errors[0].Path != files[1] {
		t.Errorf("unexpected errors %+v", summary.Errors)
	}
	run, err := store.GetRun(context.Background(), summary.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Processed != 4 || run.Failed != 1 {
		t.Errorf("unexpected run record %+v", run)
	}
}

func TestProgressWriteFailureEitherOrder(t *testing.T) {
	writeErr := &FileError{Path: "/p/a.jpg", Category: CategoryWriteFailure, Err: errors.New("boom")}
	tests := []struct {
		name   string
		events []Progress
	}{
		{"after end", []Progress{
			{Path: "/p/a.jpg", Event: EventEnd},
			{Path: "/p/a.jpg", Event: EventError, Err: writeErr},
		}},
		{"before end", []Progress{
			{Path: "/p/a.jpg", Event: EventError, Err: writeErr},
			{Path: "/p/a.jpg", Event: EventEnd},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := &ScanSummary{}
			progress := &serializedProgress{summary: summary}
			progress.emit(Progress{Path: "/p/b.jpg", Event: EventEnd})
			for _, p := range tt.events {
				progress.emit(p)
			}
			if summary.Processed != 1 || summary.Failed != 1 {
				t.Errorf("processed=%d failed=%d, want 1 and 1", summary.Processed, summary.Failed)
			}
		})
	}
}

func TestScanIsIdempotent(t *testing.T) {
	dir, files := scanDir(t, 5)
	store := newTestStore(t)
	ext := newFakeExtractor()
	orch := NewOrchestrator(store, ext, nil, testOptions(), nil)
	if err := orch.SetDirectories([]string{dir}); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := orch.Scan(ctx, false, nil); err != nil {
		t.Fatal(err)
	}
	before, err := store.ListAll(ctx)
	if err != nil {
		t.Fatal(err)
	}

	log := &eventLog{}
	summary, err := orch.Scan(ctx, false, log.record)
	if err != nil {
		t.Fatal(err)
	}
	if n := log.count(EventAlreadyProcessed); n != 5 {
		t.Errorf("already_processed = %d, want 5", n)
	}
	if log.count(EventEnd) != 0 {
		t.Error("second scan processed files again")
	}
	if summary.Skipped != 5 {
		t.Errorf("summary.Skipped = %d", summary.Skipped)
	}
	for _, f := range files {
		if n := ext.callCount(f); n != 1 {
			t.Errorf("%s extracted %d times", f, n)
		}
	}

	after, err := store.ListAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Error("store changed on an idempotent re-scan")
	}
}

func TestScanReprocess(t *testing.T) {
	dir, files := scanDir(t, 3)
	store := newTestStore(t)
	ext := newFakeExtractor()
	orch := NewOrchestrator(store, ext, nil, testOptions(), nil)
	if err := orch.SetDirectories([]string{dir}); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := orch.Scan(ctx, false, nil); err != nil {
		t.Fatal(err)
	}
	// the camera clock was wrong the first time round
	ext.meta[filepath.Base(files[0])] = media.Metadata{CapturedAt: baseTime.Add(time.Hour), BracketShotCount: 1}

	if _, err := orch.Scan(ctx, true, nil); err != nil {
		t.Fatal(err)
	}
	if n := ext.totalCalls(); n != 6 {
		t.Errorf("extractor called %d times, want 6", n)
	}
	paths, _ := store.ListPaths(ctx)
	if len(paths) != 3 {
		t.Errorf("reprocess changed the record count to %d", len(paths))
	}
	got, err := store.GetByPath(ctx, files[0])
	if err != nil {
		t.Fatal(err)
	}
	if got.CapturedAt != baseTime.Add(time.Hour).UnixMilli() {
		t.Errorf("record not replaced on reprocess")
	}
}

func TestScanResolvesLocation(t *testing.T) {
	dir, files := scanDir(t, 2)
	ext := newFakeExtractor()
	ext.meta[filepath.Base(files[0])] = media.Metadata{
		CapturedAt:       baseTime,
		BracketShotCount: 1,
		Tags: map[string]string{
			media.TagGPSLatitude: "10", media.TagGPSLatitudeRef: "S",
			media.TagGPSLongitude: "20", media.TagGPSLongitudeRef: "W",
		},
	}
	store := newTestStore(t)
	orch := NewOrchestrator(store, ext, fixedResolver{lat: 1, lng: 2}, testOptions(), nil)
	if err := orch.SetDirectories([]string{dir}); err != nil {
		t.Fatal(err)
	}
	if _, err := orch.Scan(context.Background(), false, nil); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path     string
		lat, lng float64
	}{
		{files[0], -10, -20},
		{files[1], 1, 2},
	}
	for _, tt := range tests {
		p, err := store.GetByPath(context.Background(), tt.path)
		if err != nil {
			t.Fatal(err)
		}
		if !p.HasLocation() || *p.Latitude != tt.lat || *p.Longitude != tt.lng {
			t.Errorf("%s location = %v,%v, want %v,%v", tt.path, p.Latitude, p.Longitude, tt.lat, tt.lng)
		}
	}
}

func TestScanWithoutLocationHistory(t *testing.T) {
	dir, _ := scanDir(t, 2)
	store := newTestStore(t)
	orch := NewOrchestrator(store, newFakeExtractor(), nil, testOptions(), nil)
	if err := orch.SetDirectories([]string{dir}); err != nil {
		t.Fatal(err)
	}
	log := &eventLog{}
	if _, err := orch.Scan(context.Background(), false, log.record); err != nil {
		t.Fatal(err)
	}
	if log.count(EventError) != 0 {
		t.Error("a missing location must not be reported as a file error")
	}
	missing, err := store.ListMissingLocation(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 2 {
		t.Errorf("expected both records without a location, got %d", len(missing))
	}
}

func TestScanDetectsBrackets(t *testing.T) {
	dir := t.TempDir()
	ext := newFakeExtractor()
	evs := []float64{0, 1, -1}
	var bracket []string
	for i, ev := range evs {
		name := fmt.Sprintf("IMG_%04d.CR2", i+1)
		bracket = append(bracket, touch(t, filepath.Join(dir, name)))
		ext.meta[name] = media.Metadata{
			CapturedAt:           baseTime.Add(time.Duration(i) * 2 * time.Second),
			BracketMode:          1,
			BracketShotCount:     3,
			BracketExposureValue: ev,
		}
	}
	// same pattern, too slow to be one sequence
	for i, ev := range evs {
		name := fmt.Sprintf("IMG_%04d.CR2", i+10)
		touch(t, filepath.Join(dir, name))
		ext.meta[name] = media.Metadata{
			CapturedAt:           baseTime.Add(time.Hour + time.Duration(i)*10*time.Second),
			BracketMode:          1,
			BracketShotCount:     3,
			BracketExposureValue: ev,
		}
	}

	store := newTestStore(t)
	orch := NewOrchestrator(store, ext, nil, testOptions(), nil)
	if err := orch.SetDirectories([]string{dir}); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	summary, err := orch.Scan(ctx, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if summary.GroupsFound != 1 {
		t.Errorf("GroupsFound = %d, want 1", summary.GroupsFound)
	}

	groups, err := store.ListBracketGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 {
		t.Fatalf("stored groups = %+v", groups)
	}
	if groups[0].GroupID != "IMG_0001.CR2-IMG_0002.CR2-IMG_0003.CR2" || !reflect.DeepEqual(groups[0].Members, bracket) {
		t.Errorf("unexpected group %+v", groups[0])
	}

	// a re-scan finds the same group without duplicating it
	if _, err := orch.Scan(ctx, true, nil); err != nil {
		t.Fatal(err)
	}
	again, err := store.ListBracketGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(groups, again) {
		t.Errorf("groups changed on re-scan: %+v vs %+v", groups, again)
	}
}

func TestScanUnsupportedFile(t *testing.T) {
	dir := t.TempDir()
	txt := touch(t, filepath.Join(dir, "notes.txt"))
	jpg := touch(t, filepath.Join(dir, "a.JPG"))

	orch := NewOrchestrator(newTestStore(t), newFakeExtractor(), nil, testOptions(), nil)
	orch.AddFiles([]string{txt, jpg, jpg})
	if orch.TotalFileCount() != 2 {
		t.Fatalf("AddFiles did not dedup: %v", orch.Files())
	}

	summary, err := orch.Scan(context.Background(), false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Errors) != 1 || summary.Errors[0].Category != CategoryUnsupportedFileType {
		t.Errorf("unexpected errors %+v", summary.Errors)
	}
	if summary.Processed != 1 {
		t.Errorf("processed = %d, want 1", summary.Processed)
	}
}

func TestScanCancelled(t *testing.T) {
	dir, _ := scanDir(t, 20)
	store := newTestStore(t)
	orch := NewOrchestrator(store, newFakeExtractor(), nil, testOptions(), nil)
	if err := orch.SetDirectories([]string{dir}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	log := &eventLog{}
	if _, err := orch.Scan(ctx, false, log.record); err != nil {
		t.Fatal(err)
	}
	if log.count(EventDone) != 1 {
		t.Error("a cancelled scan must still finish with done")
	}
	paths, err := store.ListPaths(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != log.count(EventEnd) {
		t.Errorf("%d records stored but %d end events", len(paths), log.count(EventEnd))
	}
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCategory
	}{
		{fmt.Errorf("x: %w", media.ErrUnsupportedFileType), CategoryUnsupportedFileType},
		{fmt.Errorf("x: %w", media.ErrExtractionFailed), CategoryExtractionFailure},
		{ErrSerializerStopped, CategoryWriteFailure},
		{errors.New("boom"), CategoryUnknown},
	}
	for _, tt := range tests {
		fe := CategorizeError("/p/a.jpg", tt.err)
		if fe.Category != tt.want {
			t.Errorf("CategorizeError(%v) = %s, want %s", tt.err, fe.Category, tt.want)
		}
		if !errors.Is(fe, tt.err) {
			t.Errorf("FileError does not unwrap to %v", tt.err)
		}
	}
	if CategorizeError("/p/a.jpg", nil) != nil {
		t.Error("nil error should stay nil")
	}
}
