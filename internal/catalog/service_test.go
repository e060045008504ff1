package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/idaholeg/mediaportal/internal/domain"
	"github.com/idaholeg/mediaportal/internal/resilience"
	"github.com/idaholeg/mediaportal/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := storage.NewBoltStore(filepath.Join(t.TempDir(), "media.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return New(store, resilience.RetryPolicy{
		MaxAttempts: 2,
		Delay:       time.Millisecond,
		Backoff:     2.0,
		Retryable:   []domain.Kind{domain.KindStorage},
	})
}

func params(filePath, year, category string) domain.UpsertParams {
	return domain.UpsertParams{
		Year:        year,
		Category:    category,
		SessionName: "Morning Session",
		FileName:    filepath.Base(filePath),
		FilePath:    filePath,
	}
}

func seed(t *testing.T, svc *Service, filePath, year, category string) *domain.MediaItem {
	t.Helper()
	item, err := svc.Upsert(context.Background(), params(filePath, year, category))
	require.NoError(t, err)
	return item
}

func TestUpsertIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Upsert(ctx, params("/media/2025/floor.mp4", "2025", "House Chambers"))
	require.NoError(t, err)

	second, err := svc.Upsert(ctx, params("/media/2025/floor.mp4", "2025", "House Chambers"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.Processed)
	assert.False(t, second.Uploaded)
	assert.Len(t, svc.ListAll(ctx, domain.Filters{}), 1)
}

func TestUpsertValidatesRequiredFields(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Upsert(context.Background(), domain.UpsertParams{FilePath: "/media/x.mp4"})
	require.Error(t, err)
	assert.Equal(t, domain.KindProcessing, domain.KindOf(err))
}

func TestFindByPathAbsentIsNotAnError(t *testing.T) {
	svc := newTestService(t)

	item, err := svc.FindByPath(context.Background(), "/media/unknown.mp4")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestUpdateStatusStampsAndPreservesUploadDate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seed(t, svc, "/media/2025/floor.mp4", "2025", "House Chambers")

	uploaded := true
	item, err := svc.UpdateStatus(ctx, "/media/2025/floor.mp4", domain.StatusUpdate{Uploaded: &uploaded})
	require.NoError(t, err)
	require.NotNil(t, item)
	require.NotNil(t, item.UploadDate)
	stamped := *item.UploadDate

	uploaded = false
	item, err = svc.UpdateStatus(ctx, "/media/2025/floor.mp4", domain.StatusUpdate{Uploaded: &uploaded})
	require.NoError(t, err)
	require.NotNil(t, item.UploadDate)
	assert.True(t, item.UploadDate.Equal(stamped), "UploadDate history must be preserved")
	assert.False(t, item.Uploaded)
}

func TestUpdateStatusMissingReturnsNil(t *testing.T) {
	svc := newTestService(t)

	processed := true
	item, err := svc.UpdateStatus(context.Background(), "/media/none.mp4", domain.StatusUpdate{Processed: &processed})
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestListAllFilterConjunction(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seed(t, svc, "/media/2025/house.mp4", "2025", "House Chambers")
	seed(t, svc, "/media/2025/senate.mp4", "2025", "Senate Chambers")
	seed(t, svc, "/media/2024/house.mp4", "2024", "House Chambers")

	byYear := svc.ListAll(ctx, domain.Filters{Year: "2025"})
	both := svc.ListAll(ctx, domain.Filters{Year: "2025", Category: "House Chambers"})

	assert.Len(t, byYear, 2)
	require.Len(t, both, 1)
	assert.Equal(t, "/media/2025/house.mp4", both[0].FilePath)

	// Conjunctive filtering is always a subset of the looser query.
	yearPaths := make(map[string]bool)
	for _, item := range byYear {
		yearPaths[item.FilePath] = true
	}
	for _, item := range both {
		assert.True(t, yearPaths[item.FilePath])
	}
}

func TestListAllSearchTerm(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seed(t, svc, "/media/2025/house.mp4", "2025", "House Chambers")
	seed(t, svc, "/media/2025/senate.mp4", "2025", "Senate Chambers")

	matched := svc.ListAll(ctx, domain.Filters{SearchTerm: "senate"})
	require.Len(t, matched, 1)
	assert.Equal(t, "Senate Chambers", matched[0].Category)

	assert.Len(t, svc.ListAll(ctx, domain.Filters{SearchTerm: "morning"}), 2,
		"search must also match session names, case-insensitively")
}

func TestListAllMediaTypeFilter(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seed(t, svc, "/media/2025/floor.mp4", "2025", "House Chambers")
	seed(t, svc, "/media/2025/floor.mp3", "2025", "House Chambers")

	videos := svc.ListAll(ctx, domain.Filters{MediaType: domain.MediaTypeVideo})
	require.Len(t, videos, 1)
	assert.Equal(t, domain.MediaTypeVideo, videos[0].MediaType)
}

func TestStatisticsPartition(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seed(t, svc, "/media/a.mp4", "2025", "House Chambers")
	seed(t, svc, "/media/b.mov", "2025", "House Chambers")
	seed(t, svc, "/media/c.mp3", "2025", "House Chambers")
	seed(t, svc, "/media/d.pdf", "2025", "House Chambers")
	seed(t, svc, "/media/e.bin", "2025", "House Chambers")

	stats := svc.Statistics(ctx)

	assert.Equal(t, 2, stats.Videos)
	assert.Equal(t, 1, stats.Audio)
	assert.Equal(t, 1, stats.Transcripts)
	assert.Equal(t, 1, stats.Other)
	assert.Equal(t, stats.Total, stats.Videos+stats.Audio+stats.Transcripts+stats.Other)
}

func TestFilterOptionsSortedDistinct(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seed(t, svc, "/media/a.mp4", "2025", "Senate Chambers")
	seed(t, svc, "/media/b.mp4", "2024", "House Chambers")
	seed(t, svc, "/media/c.mp4", "2025", "House Chambers")

	options := svc.FilterOptions(ctx)

	assert.Equal(t, []string{"2024", "2025"}, options.Years)
	assert.Equal(t, []string{"House Chambers", "Senate Chambers"}, options.Categories)
}

type failingStore struct {
	calls int
}

func (f *failingStore) fail() error {
	f.calls++
	return domain.NewStorageError("backend unavailable", nil)
}

func (f *failingStore) Insert(context.Context, *domain.MediaItem) (*domain.MediaItem, error) {
	return nil, f.fail()
}
func (f *failingStore) FindByPath(context.Context, string) (*domain.MediaItem, error) {
	return nil, f.fail()
}
func (f *failingStore) UpdateStatus(context.Context, string, domain.StatusUpdate) (*domain.MediaItem, error) {
	return nil, f.fail()
}
func (f *failingStore) FindUnprocessed(context.Context) ([]domain.MediaItem, error) {
	return nil, f.fail()
}
func (f *failingStore) FindProcessedNotUploaded(context.Context) ([]domain.MediaItem, error) {
	return nil, f.fail()
}
func (f *failingStore) FindAll(context.Context) ([]domain.MediaItem, error) {
	return nil, f.fail()
}
func (f *failingStore) Close() error { return nil }

func TestReadPathsDegradeOnBackendFailure(t *testing.T) {
	store := &failingStore{}
	svc := New(store, resilience.RetryPolicy{
		MaxAttempts: 3,
		Delay:       time.Millisecond,
		Backoff:     2.0,
		Retryable:   []domain.Kind{domain.KindStorage},
	})
	ctx := context.Background()

	stats := svc.Statistics(ctx)
	assert.Zero(t, stats.Total, "statistics must degrade to zero counts")
	assert.Equal(t, 3, store.calls, "document-backend reads retry up to MaxAttempts")

	assert.Empty(t, svc.ListUnprocessed(ctx))
	assert.Empty(t, svc.ListProcessedNotUploaded(ctx))

	// Write paths surface the failure instead of degrading.
	_, err := svc.Upsert(ctx, params("/media/a.mp4", "2025", "House Chambers"))
	require.Error(t, err)
	assert.Equal(t, domain.KindStorage, domain.KindOf(err))
}

func TestLegacyViewCarriesCollectionTag(t *testing.T) {
	svc := newTestService(t)
	legacy := NewLegacyService(svc)
	ctx := context.Background()

	tests := []struct {
		path string
		want string
	}{
		{"/media/a.mp4", "videos"},
		{"/media/a.mp3", "audio"},
		{"/media/a.pdf", "transcripts"},
		{"/media/a.bin", "other"},
	}
	for _, tt := range tests {
		item, err := legacy.AddMediaItem(ctx, "video", "2025", "House Chambers", "Morning Session",
			filepath.Base(tt.path), tt.path, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, tt.want, item.Collection, tt.path)
	}

	all := legacy.GetAllItems(ctx)
	assert.Len(t, all, 4)

	found, err := legacy.GetMediaByPath(ctx, "/media/a.mp4")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "videos", found.Collection)
}
