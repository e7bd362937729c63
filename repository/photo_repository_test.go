package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/camden-git/photoingest/database"
	"github.com/camden-git/photoingest/models"
)

func newTestRepo(t *testing.T) *PhotoRepository {
	t.Helper()
	db, err := database.OpenPhotoStore(filepath.Join(t.TempDir(), "photos.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("OpenPhotoStore: %v", err)
	}
	t.Cleanup(func() { database.ClosePhotoStore(db) })
	return NewPhotoRepository(db)
}

func testPhoto(path string, capturedAt int64) *models.Photo {
	return &models.Photo{
		Path:             path,
		FileKind:         models.FileKindJPEG,
		CapturedAt:       capturedAt,
		Tags:             map[string]string{"Model": "Canon EOS R6"},
		BracketShotCount: 1,
	}
}

func mustUpsert(t *testing.T, repo PhotoRepositoryInterface, photos ...*models.Photo) {
	t.Helper()
	for _, p := range photos {
		if err := repo.Upsert(context.Background(), p); err != nil {
			t.Fatalf("Upsert %s: %v", p.Path, err)
		}
	}
}

func TestUpsertReplacesRecord(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := testPhoto("/p/a.jpg", 1000)
	lat, lng := 1.5, 2.5
	first.Latitude, first.Longitude = &lat, &lng
	first.Thumbnail = []byte{0xff, 0xd8}
	mustUpsert(t, repo, first)

	second := testPhoto("/p/a.jpg", 2000)
	second.Tags = map[string]string{"Model": "Canon EOS R5"}
	second.BracketMode = 1
	second.BracketShotCount = 3
	second.BracketExposureValue = -1
	mustUpsert(t, repo, second)

	paths, err := repo.ListPaths(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected one record, got %v", paths)
	}

	got, err := repo.GetByPath(ctx, "/p/a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if got.CapturedAt != 2000 || got.Tags["Model"] != "Canon EOS R5" {
		t.Errorf("record not replaced: %+v", got)
	}
	if got.BracketMode != 1 || got.BracketShotCount != 3 || got.BracketExposureValue != -1 {
		t.Errorf("bracket fields not replaced: %+v", got)
	}
	if got.HasLocation() || got.Thumbnail != nil {
		t.Errorf("replacement kept stale fields: lat=%v thumb=%v", got.Latitude, got.Thumbnail)
	}
}

func TestExistsAndGetByPath(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustUpsert(t, repo, testPhoto("/p/a.jpg", 1))

	ok, err := repo.Exists(ctx, "/p/a.jpg")
	if err != nil || !ok {
		t.Errorf("Exists(a) = %v, %v", ok, err)
	}
	ok, err = repo.Exists(ctx, "/p/b.jpg")
	if err != nil || ok {
		t.Errorf("Exists(b) = %v, %v", ok, err)
	}
	if _, err := repo.GetByPath(ctx, "/p/b.jpg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetLocation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustUpsert(t, repo, testPhoto("/p/a.jpg", 1), testPhoto("/p/b.jpg", 2))

	if err := repo.SetLocation(ctx, "/p/a.jpg", -33.9, 18.4); err != nil {
		t.Fatal(err)
	}
	missing, err := repo.ListMissingLocation(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 1 || missing[0].Path != "/p/b.jpg" {
		t.Errorf("ListMissingLocation = %v", missing)
	}
	if missing[0].Tags["Model"] == "" {
		t.Error("ListMissingLocation should load tags")
	}

	if err := repo.SetLocation(ctx, "/p/nope.jpg", 1, 2); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListQueries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	raw := testPhoto("/p/IMG_2.CR2", 300)
	raw.FileKind = models.FileKindRAW
	raw.BracketMode = 1
	raw.BracketShotCount = 3
	jpeg := testPhoto("/p/IMG_1.JPG", 100)
	other := testPhoto("/p/IMG_3.JPG", 200)
	other.BracketMode = 2
	other.BracketShotCount = 3
	mustUpsert(t, repo, raw, jpeg, other)

	rawPaths, err := repo.ListRawPaths(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(rawPaths, []string{"/p/IMG_2.CR2"}) {
		t.Errorf("ListRawPaths = %v", rawPaths)
	}

	inRange, err := repo.ListByCaptureRange(ctx, 150, 300)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(inRange, []string{"/p/IMG_3.JPG", "/p/IMG_2.CR2"}) {
		t.Errorf("ListByCaptureRange = %v", inRange)
	}

	candidates, err := repo.ListBracketCandidates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 2 || candidates[0].Path != "/p/IMG_3.JPG" || candidates[1].Path != "/p/IMG_2.CR2" {
		t.Errorf("ListBracketCandidates = %v", candidates)
	}

	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("ListAll returned %d photos", len(all))
	}
}

func TestReplaceBracketGroup(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustUpsert(t, repo,
		testPhoto("/p/a.jpg", 1), testPhoto("/p/b.jpg", 2),
		testPhoto("/p/c.jpg", 3), testPhoto("/p/d.jpg", 4))

	members := []string{"/p/a.jpg", "/p/b.jpg", "/p/c.jpg"}
	for i := 0; i < 2; i++ {
		if err := repo.ReplaceBracketGroup(ctx, "a-b-c", members); err != nil {
			t.Fatalf("ReplaceBracketGroup (pass %d): %v", i, err)
		}
	}
	g, err := repo.GetBracketGroup(ctx, "a-b-c")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(g.Members, members) {
		t.Errorf("members = %v, want %v", g.Members, members)
	}

	// c moves to another group, so a-b-c no longer exists
	if err := repo.ReplaceBracketGroup(ctx, "c-d", []string{"/p/c.jpg", "/p/d.jpg"}); err != nil {
		t.Fatal(err)
	}
	groups, err := repo.ListBracketGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []models.BracketGroup{
		{GroupID: "c-d", Members: []string{"/p/c.jpg", "/p/d.jpg"}},
	}
	if !reflect.DeepEqual(groups, want) {
		t.Errorf("groups = %+v, want %+v", groups, want)
	}

	if _, err := repo.GetBracketGroup(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReplaceBracketGroupRequiresPersistedMembers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustUpsert(t, repo, testPhoto("/p/a.jpg", 1))

	err := repo.ReplaceBracketGroup(ctx, "a-ghost", []string{"/p/a.jpg", "/p/ghost.jpg"})
	if err == nil {
		t.Fatal("expected a foreign key violation")
	}
	groups, err := repo.ListBracketGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 0 {
		t.Errorf("failed replacement left rows behind: %+v", groups)
	}
}

func TestUpsertKeepsGroupMembership(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustUpsert(t, repo, testPhoto("/p/a.jpg", 1), testPhoto("/p/b.jpg", 2))
	if err := repo.ReplaceBracketGroup(ctx, "a-b", []string{"/p/a.jpg", "/p/b.jpg"}); err != nil {
		t.Fatal(err)
	}

	mustUpsert(t, repo, testPhoto("/p/a.jpg", 5))
	if _, err := repo.GetBracketGroup(ctx, "a-b"); err != nil {
		t.Errorf("reprocessing a member dropped its group: %v", err)
	}
}

func TestSaveAndGetRun(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	run := &models.IngestRun{ID: "run-1", StartedAt: 10, FinishedAt: 20, TotalFiles: 3, Processed: 2, Failed: 1}
	if err := repo.SaveRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if *got != *run {
		t.Errorf("GetRun = %+v, want %+v", got, run)
	}
	if _, err := repo.GetRun(ctx, "run-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Flush(ctx); err != nil {
		t.Errorf("Flush: %v", err)
	}
}

func TestLockedRepositoryConcurrentUse(t *testing.T) {
	repo := NewLockedPhotoRepository(newTestRepo(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				path := fmt.Sprintf("/p/%d-%d.jpg", w, i)
				if err := repo.Upsert(ctx, testPhoto(path, int64(i))); err != nil {
					t.Errorf("Upsert %s: %v", path, err)
				}
				if ok, err := repo.Exists(ctx, path); err != nil || !ok {
					t.Errorf("Exists %s = %v, %v", path, ok, err)
				}
			}
		}(w)
	}
	wg.Wait()

	paths, err := repo.ListPaths(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 80 {
		t.Errorf("got %d records, want 80", len(paths))
	}
}
