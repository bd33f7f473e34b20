package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/timmy/kinflick/internal/domain"
	"github.com/timmy/kinflick/internal/repository"
)

// stubGenerator captions each photo with its own ID.
type stubGenerator struct {
	err      error
	got      [][]domain.PhotoRef
	mu       sync.Mutex
	delay    time.Duration
	inFlight int32
	maxSeen  int32
}

func (g *stubGenerator) Generate(ctx context.Context, photos []domain.PhotoRef, onProgress ProgressFunc) (domain.CaptionBatch, error) {
	n := atomic.AddInt32(&g.inFlight, 1)
	defer atomic.AddInt32(&g.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&g.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&g.maxSeen, seen, n) {
			break
		}
	}
	time.Sleep(g.delay)

	g.mu.Lock()
	g.got = append(g.got, photos)
	g.mu.Unlock()

	if g.err != nil {
		return nil, g.err
	}
	out := make(domain.CaptionBatch, len(photos))
	for i, p := range photos {
		out[i] = domain.Caption{Punchline: "about " + p.ID, Description: p.Name}
	}
	if onProgress != nil {
		onProgress(domain.ProgressEvent{CurrentPhoto: len(photos), TotalPhotos: len(photos), PercentComplete: 100, Status: domain.ProgressComplete})
	}
	return out, nil
}

type diaryFixture struct {
	svc    *DiaryService
	photos *repository.PhotoRepository
	gen    *stubGenerator
}

func newDiaryFixture(t *testing.T, maxBatches int) *diaryFixture {
	t.Helper()
	db := newTestDB(t)
	photos := repository.NewPhotoRepository(db)
	gen := &stubGenerator{}
	svc := NewDiaryService(repository.NewDiaryRepository(db), photos, gen, quietLogger(), &DiaryConfig{MaxConcurrentBatches: maxBatches})

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, p := range []domain.Photo{
		{ID: "p1", UserID: "alice", Filename: "one.jpg", StorageKey: "photos/alice/p1.jpg"},
		{ID: "p2", UserID: "alice", Filename: "two.png", StorageKey: "photos/alice/p2.png"},
		{ID: "p3", UserID: "alice", Filename: "three.jpg", StorageKey: "photos/alice/p3.jpg"},
		{ID: "b1", UserID: "bob", Filename: "bob.jpg", StorageKey: "photos/bob/b1.jpg"},
	} {
		p.UploadedAt = base.Add(time.Duration(i) * time.Minute)
		if err := photos.Create(context.Background(), &p); err != nil {
			t.Fatalf("create photo: %v", err)
		}
	}
	return &diaryFixture{svc: svc, photos: photos, gen: gen}
}

func TestDiaryService_CreateKeepsRequestOrder(t *testing.T) {
	f := newDiaryFixture(t, 2)
	ctx := context.Background()

	var events int
	view, err := f.svc.Create(ctx, "alice", []string{"p3", "missing", "p1", "b1", "p3"}, "", func(domain.ProgressEvent) { events++ })
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if got := []string(view.PhotoIDs); len(got) != 2 || got[0] != "p3" || got[1] != "p1" {
		t.Fatalf("PhotoIDs = %v, want [p3 p1]", got)
	}
	if len(view.Content) != 2 || view.Content[0].Punchline != "about p3" || view.Content[1].Punchline != "about p1" {
		t.Errorf("content not aligned with photos: %+v", view.Content)
	}
	if len(view.Photos) != 2 || view.Photos[0].ID != "p3" {
		t.Errorf("photos not populated in order: %+v", view.Photos)
	}
	if view.ContentType != domain.DiaryContentPanel {
		t.Errorf("default content type = %q", view.ContentType)
	}
	if events == 0 {
		t.Error("progress callback was not forwarded")
	}

	refs := f.gen.got[0]
	if refs[0].StorageKey != "photos/alice/p3.jpg" || refs[0].Name != "three.jpg" {
		t.Errorf("unexpected ref %+v", refs[0])
	}

	stored, err := f.svc.Get(ctx, "alice", view.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(stored.Content) != 2 || stored.Content[1] != view.Content[1] {
		t.Errorf("stored content differs: %+v", stored.Content)
	}
}

func TestDiaryService_CreateErrors(t *testing.T) {
	f := newDiaryFixture(t, 1)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, "alice", nil, "", nil); !errors.Is(err, ErrNoPhotos) {
		t.Errorf("expected ErrNoPhotos, got %v", err)
	}
	if _, err := f.svc.Create(ctx, "alice", []string{"b1", "nope"}, "", nil); !errors.Is(err, ErrNoValidPhotos) {
		t.Errorf("expected ErrNoValidPhotos, got %v", err)
	}
	if _, err := f.svc.Create(ctx, "alice", []string{"p1"}, "comic", nil); !errors.Is(err, ErrInvalidContentType) {
		t.Errorf("expected ErrInvalidContentType, got %v", err)
	}

	f.gen.err = ErrConfiguration
	if _, err := f.svc.Create(ctx, "alice", []string{"p1"}, "", nil); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
	list, err := f.svc.List(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("failed generation stored %d pages", len(list))
	}
}

func TestDiaryService_OwnershipAndDelete(t *testing.T) {
	f := newDiaryFixture(t, 1)
	ctx := context.Background()

	view, err := f.svc.Create(ctx, "alice", []string{"p1", "p2"}, domain.DiaryContentDiary, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := f.svc.Get(ctx, "bob", view.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if err := f.svc.Delete(ctx, "bob", view.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden on delete, got %v", err)
	}
	if _, err := f.svc.Get(ctx, "alice", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// a deleted photo disappears from the populated view but the captions stay
	if err := f.photos.Delete(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	got, err := f.svc.Get(ctx, "alice", view.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Photos) != 1 || got.Photos[0].ID != "p2" || len(got.Content) != 2 {
		t.Errorf("unexpected view after photo delete: %+v", got)
	}

	if err := f.svc.Delete(ctx, "alice", view.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, "alice", view.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDiaryService_ListNewestFirst(t *testing.T) {
	f := newDiaryFixture(t, 1)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, "alice", []string{"p1"}, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	second, err := f.svc.Create(ctx, "alice", []string{"p2", "p3"}, "", nil)
	if err != nil {
		t.Fatal(err)
	}

	list, err := f.svc.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("unexpected order: %v", list)
	}
	if len(list[0].Photos) != 2 || list[0].Photos[0].ID != "p2" {
		t.Errorf("photos not populated: %+v", list[0].Photos)
	}

	bobs, err := f.svc.List(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(bobs) != 0 {
		t.Errorf("bob sees %d pages", len(bobs))
	}
}

func TestDiaryService_BoundsConcurrentBatches(t *testing.T) {
	f := newDiaryFixture(t, 1)
	f.gen.delay = 20 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Create(context.Background(), "alice", []string{"p1"}, "", nil); err != nil {
				t.Errorf("Create: %v", err)
			}
		}()
	}
	wg.Wait()

	if peak := atomic.LoadInt32(&f.gen.maxSeen); peak != 1 {
		t.Errorf("saw %d concurrent batches, want 1", peak)
	}
}
