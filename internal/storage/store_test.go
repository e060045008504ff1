package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/idaholeg/mediaportal/internal/domain"
)

func newTestSQLite(t *testing.T) domain.MediaStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "media.db"))
	if err != nil {
		t.Fatalf("opening sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestBolt(t *testing.T) domain.MediaStore {
	t.Helper()
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "media.bolt"))
	if err != nil {
		t.Fatalf("opening bolt store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// backends runs the shared semantic suite against both physical stores.
func backends(t *testing.T, fn func(t *testing.T, store domain.MediaStore)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) { fn(t, newTestSQLite(t)) })
	t.Run("bolt", func(t *testing.T) { fn(t, newTestBolt(t)) })
}

func testItem(filePath string) *domain.MediaItem {
	return domain.UpsertParams{
		Year:        "2025",
		Category:    "House Chambers",
		SessionName: "Morning Session",
		FileName:    filepath.Base(filePath),
		FilePath:    filePath,
	}.NewItem(time.Now())
}

func TestInsertIsIdempotentByPath(t *testing.T) {
	backends(t, func(t *testing.T, store domain.MediaStore) {
		ctx := context.Background()

		first, err := store.Insert(ctx, testItem("/media/2025/session.mp4"))
		if err != nil {
			t.Fatalf("Insert() error = %v", err)
		}

		second, err := store.Insert(ctx, testItem("/media/2025/session.mp4"))
		if err != nil {
			t.Fatalf("second Insert() error = %v", err)
		}

		if first.ID != second.ID {
			t.Errorf("duplicate insert returned ID %q, want existing %q", second.ID, first.ID)
		}

		all, err := store.FindAll(ctx)
		if err != nil {
			t.Fatalf("FindAll() error = %v", err)
		}
		if len(all) != 1 {
			t.Errorf("FindAll() count = %d, want 1 record", len(all))
		}
	})
}

func TestFindByPath(t *testing.T) {
	backends(t, func(t *testing.T, store domain.MediaStore) {
		ctx := context.Background()

		if _, err := store.FindByPath(ctx, "/media/missing.mp4"); !errors.Is(err, domain.ErrMediaNotFound) {
			t.Errorf("FindByPath() error = %v, want ErrMediaNotFound", err)
		}

		inserted, err := store.Insert(ctx, testItem("/media/2025/hearing.mp3"))
		if err != nil {
			t.Fatalf("Insert() error = %v", err)
		}

		found, err := store.FindByPath(ctx, "/media/2025/hearing.mp3")
		if err != nil {
			t.Fatalf("FindByPath() error = %v", err)
		}
		if found.ID != inserted.ID {
			t.Errorf("FindByPath() ID = %q, want %q", found.ID, inserted.ID)
		}
		if found.MediaType != domain.MediaTypeAudio {
			t.Errorf("MediaType = %q, want audio", found.MediaType)
		}
	})
}

func TestUpdateStatus(t *testing.T) {
	backends(t, func(t *testing.T, store domain.MediaStore) {
		ctx := context.Background()
		path := "/media/2025/minutes.pdf"

		if _, err := store.Insert(ctx, testItem(path)); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}

		processed := true
		updated, err := store.UpdateStatus(ctx, path, domain.StatusUpdate{Processed: &processed})
		if err != nil {
			t.Fatalf("UpdateStatus() error = %v", err)
		}
		if !updated.Processed {
			t.Error("Processed not applied")
		}
		if updated.Uploaded {
			t.Error("Uploaded changed by a partial update")
		}
		if updated.UpdatedAt.Before(updated.CreatedAt) {
			t.Error("UpdatedAt must never precede CreatedAt")
		}

		uploaded := true
		uploadPath := "gs://bucket/minutes.pdf"
		updated, err = store.UpdateStatus(ctx, path, domain.StatusUpdate{
			Uploaded:   &uploaded,
			UploadPath: &uploadPath,
		})
		if err != nil {
			t.Fatalf("UpdateStatus() error = %v", err)
		}
		if updated.UploadDate == nil {
			t.Fatal("setting uploaded=true must stamp UploadDate")
		}
		firstUploadDate := *updated.UploadDate

		// Upload history is preserved when uploaded flips back to false.
		uploaded = false
		updated, err = store.UpdateStatus(ctx, path, domain.StatusUpdate{Uploaded: &uploaded})
		if err != nil {
			t.Fatalf("UpdateStatus() error = %v", err)
		}
		if updated.Uploaded {
			t.Error("Uploaded not cleared")
		}
		if updated.UploadDate == nil || !updated.UploadDate.Equal(firstUploadDate) {
			t.Errorf("UploadDate = %v, want preserved %v", updated.UploadDate, firstUploadDate)
		}
		if updated.UploadPath == nil || *updated.UploadPath != uploadPath {
			t.Errorf("UploadPath = %v, want untouched %q", updated.UploadPath, uploadPath)
		}
	})
}

func TestUpdateStatusMissingPath(t *testing.T) {
	backends(t, func(t *testing.T, store domain.MediaStore) {
		processed := true
		_, err := store.UpdateStatus(context.Background(), "/media/nope.mp4", domain.StatusUpdate{
			Processed: &processed,
		})
		if !errors.Is(err, domain.ErrMediaNotFound) {
			t.Errorf("UpdateStatus() error = %v, want ErrMediaNotFound", err)
		}
	})
}

func TestStatusQueries(t *testing.T) {
	backends(t, func(t *testing.T, store domain.MediaStore) {
		ctx := context.Background()
		paths := []string{
			"/media/2025/a.mp4",
			"/media/2025/b.mp3",
			"/media/2025/c.pdf",
		}
		for _, p := range paths {
			if _, err := store.Insert(ctx, testItem(p)); err != nil {
				t.Fatalf("Insert(%s) error = %v", p, err)
			}
		}

		processed := true
		if _, err := store.UpdateStatus(ctx, paths[0], domain.StatusUpdate{Processed: &processed}); err != nil {
			t.Fatalf("UpdateStatus() error = %v", err)
		}
		uploaded := true
		if _, err := store.UpdateStatus(ctx, paths[1], domain.StatusUpdate{Processed: &processed, Uploaded: &uploaded}); err != nil {
			t.Fatalf("UpdateStatus() error = %v", err)
		}

		unprocessed, err := store.FindUnprocessed(ctx)
		if err != nil {
			t.Fatalf("FindUnprocessed() error = %v", err)
		}
		if len(unprocessed) != 1 || unprocessed[0].FilePath != paths[2] {
			t.Errorf("FindUnprocessed() = %v, want only %s", unprocessed, paths[2])
		}

		pending, err := store.FindProcessedNotUploaded(ctx)
		if err != nil {
			t.Fatalf("FindProcessedNotUploaded() error = %v", err)
		}
		if len(pending) != 1 || pending[0].FilePath != paths[0] {
			t.Errorf("FindProcessedNotUploaded() = %v, want only %s", pending, paths[0])
		}
	})
}

func TestDerivedMediaType(t *testing.T) {
	backends(t, func(t *testing.T, store domain.MediaStore) {
		ctx := context.Background()
		tests := []struct {
			path string
			want domain.MediaType
		}{
			{"/media/floor.MP4", domain.MediaTypeVideo},
			{"/media/floor.wav", domain.MediaTypeAudio},
			{"/media/floor.docx", domain.MediaTypeTranscript},
			{"/media/floor.xyz", domain.MediaTypeUnknown},
		}

		for _, tt := range tests {
			inserted, err := store.Insert(ctx, testItem(tt.path))
			if err != nil {
				t.Fatalf("Insert(%s) error = %v", tt.path, err)
			}
			if inserted.MediaType != tt.want {
				t.Errorf("MediaType(%s) = %q, want %q", tt.path, inserted.MediaType, tt.want)
			}
		}
	})
}

func TestSQLiteConcurrentUpsertsSamePath(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Insert(ctx, testItem("/media/2025/contested.mp4")); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Insert() error = %v", err)
	}

	all, err := store.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("FindAll() count = %d, want exactly one record for the path", len(all))
	}
}

func TestBoltDocumentIDIsDeterministic(t *testing.T) {
	item := testItem("/media/2025/Morning (Floor) Session.mp4")
	got := deriveDocID(item)
	want := "2025_House_Chambers_Morning_Session_video_Morning_Floor_Session.mp4"
	if got != want {
		t.Errorf("deriveDocID() = %q, want %q", got, want)
	}
}
