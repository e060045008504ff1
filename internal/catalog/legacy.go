package catalog

import (
	"context"
	"time"

	"github.com/idaholeg/mediaportal/internal/domain"
	log "github.com/sirupsen/logrus"
)

// LegacyMediaItem is the canonical record augmented with the derived
// collection tag, for callers written against the older document-centric
// shape.
type LegacyMediaItem struct {
	domain.MediaItem
	Collection string `json:"collection"`
}

// LegacyView maps a canonical item onto the legacy shape.
func LegacyView(item *domain.MediaItem) *LegacyMediaItem {
	if item == nil {
		return nil
	}
	return &LegacyMediaItem{
		MediaItem:  *item,
		Collection: item.MediaType.Collection(),
	}
}

func legacyViews(items []domain.MediaItem) []LegacyMediaItem {
	views := make([]LegacyMediaItem, 0, len(items))
	for i := range items {
		views = append(views, *LegacyView(&items[i]))
	}
	return views
}

// LegacyService exposes the catalog operations under their older names.
type LegacyService struct {
	catalog *Service
}

func NewLegacyService(catalog *Service) *LegacyService {
	return &LegacyService{catalog: catalog}
}

// AddMediaItem keeps the historical signature, which passed the media type
// explicitly. The type is still derived from the path; a disagreeing caller
// is noted at debug level and the derived value wins.
func (l *LegacyService) AddMediaItem(ctx context.Context, mediaType, year, category, sessionName, fileName, filePath string, fileSize *float64, lastModified *time.Time) (*LegacyMediaItem, error) {
	if derived := domain.MediaTypeFromPath(filePath); string(derived) != mediaType {
		log.WithFields(log.Fields{
			"file_path": filePath,
			"requested": mediaType,
			"derived":   derived,
		}).Debug("ignoring caller-supplied media type")
	}

	item, err := l.catalog.Upsert(ctx, domain.UpsertParams{
		Year:         year,
		Category:     category,
		SessionName:  sessionName,
		FileName:     fileName,
		FilePath:     filePath,
		FileSize:     fileSize,
		LastModified: lastModified,
	})
	if err != nil {
		return nil, err
	}
	return LegacyView(item), nil
}

func (l *LegacyService) GetMediaByPath(ctx context.Context, filePath string) (*LegacyMediaItem, error) {
	item, err := l.catalog.FindByPath(ctx, filePath)
	if err != nil {
		return nil, err
	}
	return LegacyView(item), nil
}

func (l *LegacyService) UpdateMediaStatus(ctx context.Context, filePath string, update domain.StatusUpdate) (*LegacyMediaItem, error) {
	item, err := l.catalog.UpdateStatus(ctx, filePath, update)
	if err != nil {
		return nil, err
	}
	return LegacyView(item), nil
}

func (l *LegacyService) GetUnprocessedItems(ctx context.Context) []LegacyMediaItem {
	return legacyViews(l.catalog.ListUnprocessed(ctx))
}

func (l *LegacyService) GetProcessedNotUploadedItems(ctx context.Context) []LegacyMediaItem {
	return legacyViews(l.catalog.ListProcessedNotUploaded(ctx))
}

func (l *LegacyService) GetAllItems(ctx context.Context) []LegacyMediaItem {
	return legacyViews(l.catalog.ListAll(ctx, domain.Filters{}))
}
