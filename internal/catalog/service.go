package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/idaholeg/mediaportal/internal/domain"
	"github.com/idaholeg/mediaportal/internal/resilience"
	log "github.com/sirupsen/logrus"
)

// Service is the single entry point consumed by callers. Every method is
// backend-agnostic: the concrete store is chosen once at startup and all
// filtering and derivation happens here, identically for both backends.
type Service struct {
	store  domain.MediaStore
	policy resilience.RetryPolicy
}

// New wires the service to the active backend. The retry policy encodes the
// failure-handling posture: relational stores get a single-attempt policy
// (local, fast, propagate immediately), document stores get retry-with-backoff.
func New(store domain.MediaStore, policy resilience.RetryPolicy) *Service {
	return &Service{store: store, policy: policy}
}

// Upsert catalogs a file path, idempotently. If the path is already present
// the existing item is returned unchanged.
func (s *Service) Upsert(ctx context.Context, params domain.UpsertParams) (*domain.MediaItem, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.FindByPath(ctx, params.FilePath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.WithField("file_path", params.FilePath).Debug("media item already cataloged")
		return existing, nil
	}

	item := params.NewItem(time.Now())
	var created *domain.MediaItem
	err = s.policy.Do(ctx, "upsert_media", func() error {
		var insertErr error
		created, insertErr = s.store.Insert(ctx, item)
		return insertErr
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"media_type": created.MediaType,
		"file_path":  created.FilePath,
	}).Info("cataloged new media item")
	return created, nil
}

// FindByPath returns the item for filePath, or nil when absent.
func (s *Service) FindByPath(ctx context.Context, filePath string) (*domain.MediaItem, error) {
	var found *domain.MediaItem
	err := s.policy.Do(ctx, "find_media_by_path", func() error {
		var findErr error
		found, findErr = s.store.FindByPath(ctx, filePath)
		return findErr
	})
	if errors.Is(err, domain.ErrMediaNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return found, nil
}

// UpdateStatus applies a partial status mutation to the item at filePath and
// returns the updated item, or nil when the path is not cataloged.
func (s *Service) UpdateStatus(ctx context.Context, filePath string, update domain.StatusUpdate) (*domain.MediaItem, error) {
	var updated *domain.MediaItem
	err := s.policy.Do(ctx, "update_media_status", func() error {
		var updateErr error
		updated, updateErr = s.store.UpdateStatus(ctx, filePath, update)
		return updateErr
	})
	if errors.Is(err, domain.ErrMediaNotFound) {
		log.WithField("file_path", filePath).Warn("media item not found for status update")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListUnprocessed returns items with processed=false. Read failures degrade
// to an empty result.
func (s *Service) ListUnprocessed(ctx context.Context) []domain.MediaItem {
	return s.guardedList(ctx, "list_unprocessed_media", s.store.FindUnprocessed)
}

// ListProcessedNotUploaded returns items with processed=true, uploaded=false.
func (s *Service) ListProcessedNotUploaded(ctx context.Context) []domain.MediaItem {
	return s.guardedList(ctx, "list_media_pending_upload", s.store.FindProcessedNotUploaded)
}

// ListAll returns every item matching the conjunction of the given filters.
func (s *Service) ListAll(ctx context.Context, filters domain.Filters) []domain.MediaItem {
	items := s.guardedList(ctx, "list_all_media", s.store.FindAll)
	return filterItems(items, filters)
}

func (s *Service) guardedList(ctx context.Context, op string, find func(context.Context) ([]domain.MediaItem, error)) []domain.MediaItem {
	var items []domain.MediaItem
	resilience.Guard(op, log.ErrorLevel, func() error {
		return s.policy.Do(ctx, op, func() error {
			var err error
			items, err = find(ctx)
			return err
		})
	})
	return items
}

// Statistics partitions the whole catalog by derived media type. Backend
// failures degrade to zero counts.
func (s *Service) Statistics(ctx context.Context) domain.Statistics {
	var stats domain.Statistics
	for _, item := range s.ListAll(ctx, domain.Filters{}) {
		stats.Total++
		switch item.MediaType {
		case domain.MediaTypeVideo:
			stats.Videos++
		case domain.MediaTypeAudio:
			stats.Audio++
		case domain.MediaTypeTranscript:
			stats.Transcripts++
		default:
			stats.Other++
		}
	}
	return stats
}

// FilterOptions returns the sorted distinct years and categories present in
// the catalog.
func (s *Service) FilterOptions(ctx context.Context) domain.FilterOptions {
	years := make(map[string]struct{})
	categories := make(map[string]struct{})
	for _, item := range s.ListAll(ctx, domain.Filters{}) {
		if item.Year != "" {
			years[item.Year] = struct{}{}
		}
		if item.Category != "" {
			categories[item.Category] = struct{}{}
		}
	}
	return domain.FilterOptions{
		Years:      sortedKeys(years),
		Categories: sortedKeys(categories),
	}
}

// Close releases the underlying backend.
func (s *Service) Close() error {
	return s.store.Close()
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func filterItems(items []domain.MediaItem, filters domain.Filters) []domain.MediaItem {
	matched := make([]domain.MediaItem, 0, len(items))
	for _, item := range items {
		if matchesFilters(item, filters) {
			matched = append(matched, item)
		}
	}
	return matched
}

func matchesFilters(item domain.MediaItem, filters domain.Filters) bool {
	if filters.Year != "" && item.Year != filters.Year {
		return false
	}
	if filters.Category != "" && item.Category != filters.Category {
		return false
	}
	if filters.MediaType != "" && item.MediaType != filters.MediaType {
		return false
	}
	if filters.SearchTerm != "" {
		term := strings.ToLower(filters.SearchTerm)
		if !strings.Contains(strings.ToLower(item.SessionName), term) &&
			!strings.Contains(strings.ToLower(item.Category), term) {
			return false
		}
	}
	return true
}
