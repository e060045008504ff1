package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/idaholeg/mediaportal/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// mediaRecord is the single relational table. The media type is never stored;
// it is derived from the file path on every read so both backends report
// identically.
type mediaRecord struct {
	ID                  uint   `gorm:"primaryKey"`
	Year                string `gorm:"not null"`
	Category            string `gorm:"not null"`
	SessionName         string `gorm:"not null"`
	FileName            string `gorm:"not null"`
	FilePath            string `gorm:"uniqueIndex;not null"`
	FileSize            *float64
	LastModified        *time.Time
	Processed           bool `gorm:"default:false"`
	Uploaded            bool `gorm:"default:false"`
	UploadPath          *string
	UploadDate          *time.Time
	ErrorMessage        *string
	RelatedVideoID      *string
	RelatedAudioID      *string
	RelatedTranscriptID *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (mediaRecord) TableName() string { return "media_items" }

type sqliteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (and lazily migrates) the embedded relational backend.
func NewSQLiteStore(path string) (domain.MediaStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, domain.NewStorageError("creating database directory", err).WithDetail("dir", dir)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, domain.NewStorageError("opening sqlite database", err).WithDetail("path", path)
	}

	if err := db.AutoMigrate(&mediaRecord{}); err != nil {
		return nil, domain.NewStorageError("migrating media schema", err)
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Insert(ctx context.Context, item *domain.MediaItem) (*domain.MediaItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := recordFromItem(item)
	var out mediaRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			if !isUniqueViolation(err) {
				return err
			}
			// Duplicate path resolves to the existing row, never an error.
			return tx.Where("file_path = ?", item.FilePath).First(&out).Error
		}
		out = *rec
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("inserting media item", err).WithDetail("file_path", item.FilePath)
	}
	return out.toItem(), nil
}

func (s *sqliteStore) FindByPath(ctx context.Context, filePath string) (*domain.MediaItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec mediaRecord
	err := s.db.WithContext(ctx).Where("file_path = ?", filePath).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMediaNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("finding media by path", err).WithDetail("file_path", filePath)
	}
	return rec.toItem(), nil
}

func (s *sqliteStore) UpdateStatus(ctx context.Context, filePath string, update domain.StatusUpdate) (*domain.MediaItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out mediaRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec mediaRecord
		if err := tx.Where("file_path = ?", filePath).First(&rec).Error; err != nil {
			return err
		}

		item := rec.toItem()
		update.Apply(item, time.Now())
		applyItemToRecord(item, &rec)

		if err := tx.Save(&rec).Error; err != nil {
			return err
		}
		out = rec
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMediaNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("updating media status", err).WithDetail("file_path", filePath)
	}
	return out.toItem(), nil
}

func (s *sqliteStore) FindUnprocessed(ctx context.Context) ([]domain.MediaItem, error) {
	return s.findWhere(ctx, "finding unprocessed media", map[string]interface{}{"processed": false})
}

func (s *sqliteStore) FindProcessedNotUploaded(ctx context.Context) ([]domain.MediaItem, error) {
	return s.findWhere(ctx, "finding processed media pending upload", map[string]interface{}{
		"processed": true,
		"uploaded":  false,
	})
}

func (s *sqliteStore) FindAll(ctx context.Context) ([]domain.MediaItem, error) {
	return s.findWhere(ctx, "finding all media", nil)
}

func (s *sqliteStore) findWhere(ctx context.Context, op string, conds map[string]interface{}) ([]domain.MediaItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Order("file_path")
	if len(conds) > 0 {
		query = query.Where(conds)
	}

	var recs []mediaRecord
	if err := query.Find(&recs).Error; err != nil {
		return nil, domain.NewStorageError(op, err)
	}

	items := make([]domain.MediaItem, 0, len(recs))
	for i := range recs {
		items = append(items, *recs[i].toItem())
	}
	return items, nil
}

func (s *sqliteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting sql connection: %w", err)
	}
	return sqlDB.Close()
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func recordFromItem(item *domain.MediaItem) *mediaRecord {
	return &mediaRecord{
		Year:                item.Year,
		Category:            item.Category,
		SessionName:         item.SessionName,
		FileName:            item.FileName,
		FilePath:            item.FilePath,
		FileSize:            item.FileSize,
		LastModified:        item.LastModified,
		Processed:           item.Processed,
		Uploaded:            item.Uploaded,
		UploadPath:          item.UploadPath,
		UploadDate:          item.UploadDate,
		ErrorMessage:        item.ErrorMessage,
		RelatedVideoID:      item.RelatedVideoID,
		RelatedAudioID:      item.RelatedAudioID,
		RelatedTranscriptID: item.RelatedTranscriptID,
		CreatedAt:           item.CreatedAt,
		UpdatedAt:           item.UpdatedAt,
	}
}

func applyItemToRecord(item *domain.MediaItem, rec *mediaRecord) {
	rec.Processed = item.Processed
	rec.Uploaded = item.Uploaded
	rec.UploadPath = item.UploadPath
	rec.UploadDate = item.UploadDate
	rec.ErrorMessage = item.ErrorMessage
	rec.RelatedVideoID = item.RelatedVideoID
	rec.RelatedAudioID = item.RelatedAudioID
	rec.RelatedTranscriptID = item.RelatedTranscriptID
	rec.UpdatedAt = item.UpdatedAt
}

func (r *mediaRecord) toItem() *domain.MediaItem {
	return &domain.MediaItem{
		ID:                  strconv.FormatUint(uint64(r.ID), 10),
		MediaType:           domain.MediaTypeFromPath(r.FilePath),
		Year:                r.Year,
		Category:            r.Category,
		SessionName:         r.SessionName,
		FileName:            r.FileName,
		FilePath:            r.FilePath,
		FileSize:            r.FileSize,
		LastModified:        r.LastModified,
		Processed:           r.Processed,
		Uploaded:            r.Uploaded,
		UploadPath:          r.UploadPath,
		UploadDate:          r.UploadDate,
		ErrorMessage:        r.ErrorMessage,
		RelatedVideoID:      r.RelatedVideoID,
		RelatedAudioID:      r.RelatedAudioID,
		RelatedTranscriptID: r.RelatedTranscriptID,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}
