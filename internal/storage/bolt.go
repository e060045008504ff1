package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/idaholeg/mediaportal/internal/domain"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/bolthold"
)

const (
	errBoltDuplicateKey = "This Key already exists in this bolthold for this type"

	// maxScanDocuments caps listing queries so a listing never turns into an
	// unbounded full-collection scan.
	maxScanDocuments = 10000

	boltFilePermissions = 0o666
)

// mediaDocument is the document backend record. Collection carries the
// media-type collection name (videos, audio, transcripts, other); bolthold
// buckets are per Go type, so the collection lives as an indexed field with
// the same observable semantics.
type mediaDocument struct {
	DocID               string
	Collection          string `boltholdIndex:"Collection"`
	Year                string
	Category            string
	SessionName         string
	FileName            string
	FilePath            string `boltholdIndex:"FilePath"`
	FileSize            *float64
	LastModified        *time.Time
	Processed           bool
	Uploaded            bool
	UploadPath          *string
	UploadDate          *time.Time
	ErrorMessage        *string
	RelatedVideoID      *string
	RelatedAudioID      *string
	RelatedTranscriptID *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type boltStore struct {
	store *bolthold.Store
}

// NewBoltStore opens the embedded document backend.
func NewBoltStore(path string) (domain.MediaStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, domain.NewStorageError("creating database directory", err).WithDetail("dir", dir)
		}
	}

	store, err := bolthold.Open(path, boltFilePermissions, nil)
	if err != nil {
		return nil, domain.NewStorageError("opening document store", err).WithDetail("path", path)
	}
	return &boltStore{store: store}, nil
}

func (s *boltStore) Insert(ctx context.Context, item *domain.MediaItem) (*domain.MediaItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Path uniqueness needs a query-then-write round trip here; concurrent
	// duplicate-path writers observe the last write rather than strict
	// first-write-wins.
	existing, err := s.findDocByPath(item.FilePath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing.toItem(), nil
	}

	doc := documentFromItem(item)
	if err := s.store.Insert(doc.DocID, doc); err != nil {
		if strings.Contains(err.Error(), errBoltDuplicateKey) {
			return s.resolveDuplicate(item.FilePath, doc.DocID)
		}
		return nil, domain.NewStorageError("inserting media document", err).WithDetail("file_path", item.FilePath)
	}

	log.WithFields(log.Fields{
		"collection": doc.Collection,
		"file_path":  item.FilePath,
	}).Info("added media document")
	return doc.toItem(), nil
}

func (s *boltStore) resolveDuplicate(filePath, docID string) (*domain.MediaItem, error) {
	existing, err := s.findDocByPath(filePath)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.NewStorageError("document id collision", domain.ErrDuplicateKey).
			WithDetail("doc_id", docID)
	}
	return existing.toItem(), nil
}

func (s *boltStore) FindByPath(ctx context.Context, filePath string) (*domain.MediaItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := s.findDocByPath(filePath)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrMediaNotFound
	}
	return doc.toItem(), nil
}

func (s *boltStore) findDocByPath(filePath string) (*mediaDocument, error) {
	var doc mediaDocument
	err := s.store.FindOne(&doc, bolthold.Where("FilePath").Eq(filePath).Index("FilePath"))
	if errors.Is(err, bolthold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewStorageError("finding media document by path", err).WithDetail("file_path", filePath)
	}
	return &doc, nil
}

func (s *boltStore) UpdateStatus(ctx context.Context, filePath string, update domain.StatusUpdate) (*domain.MediaItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := s.findDocByPath(filePath)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrMediaNotFound
	}

	item := doc.toItem()
	update.Apply(item, time.Now())
	applyItemToDocument(item, doc)

	if err := s.store.Update(doc.DocID, doc); err != nil {
		return nil, domain.NewStorageError("updating media document", err).WithDetail("file_path", filePath)
	}
	return doc.toItem(), nil
}

func (s *boltStore) FindUnprocessed(ctx context.Context) ([]domain.MediaItem, error) {
	return s.find(ctx, "finding unprocessed media documents",
		bolthold.Where("Processed").Eq(false).Limit(maxScanDocuments))
}

func (s *boltStore) FindProcessedNotUploaded(ctx context.Context) ([]domain.MediaItem, error) {
	return s.find(ctx, "finding media documents pending upload",
		bolthold.Where("Processed").Eq(true).And("Uploaded").Eq(false).Limit(maxScanDocuments))
}

func (s *boltStore) FindAll(ctx context.Context) ([]domain.MediaItem, error) {
	return s.find(ctx, "finding all media documents",
		bolthold.Where("DocID").Ne("").Limit(maxScanDocuments))
}

func (s *boltStore) find(ctx context.Context, op string, query *bolthold.Query) ([]domain.MediaItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var docs []mediaDocument
	if err := s.store.Find(&docs, query); err != nil {
		return nil, domain.NewStorageError(op, err)
	}

	items := make([]domain.MediaItem, 0, len(docs))
	for i := range docs {
		items = append(items, *docs[i].toItem())
	}
	return items, nil
}

func (s *boltStore) Close() error {
	return s.store.Close()
}

// deriveDocID builds the deterministic document identifier used as the
// bolthold key, sanitized the same way the portal has always done.
func deriveDocID(item *domain.MediaItem) string {
	raw := fmt.Sprintf("%s_%s_%s_%s_%s",
		item.Year, item.Category, item.SessionName, item.MediaType, filepath.Base(item.FilePath))
	return strings.NewReplacer("/", "_", " ", "_", "(", "", ")", "").Replace(raw)
}

func documentFromItem(item *domain.MediaItem) *mediaDocument {
	return &mediaDocument{
		DocID:               deriveDocID(item),
		Collection:          item.MediaType.Collection(),
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

func applyItemToDocument(item *domain.MediaItem, doc *mediaDocument) {
	doc.Processed = item.Processed
	doc.Uploaded = item.Uploaded
	doc.UploadPath = item.UploadPath
	doc.UploadDate = item.UploadDate
	doc.ErrorMessage = item.ErrorMessage
	doc.RelatedVideoID = item.RelatedVideoID
	doc.RelatedAudioID = item.RelatedAudioID
	doc.RelatedTranscriptID = item.RelatedTranscriptID
	doc.UpdatedAt = item.UpdatedAt
}

func (d *mediaDocument) toItem() *domain.MediaItem {
	return &domain.MediaItem{
		ID:                  d.DocID,
		MediaType:           domain.MediaTypeFromPath(d.FilePath),
		Year:                d.Year,
		Category:            d.Category,
		SessionName:         d.SessionName,
		FileName:            d.FileName,
		FilePath:            d.FilePath,
		FileSize:            d.FileSize,
		LastModified:        d.LastModified,
		Processed:           d.Processed,
		Uploaded:            d.Uploaded,
		UploadPath:          d.UploadPath,
		UploadDate:          d.UploadDate,
		ErrorMessage:        d.ErrorMessage,
		RelatedVideoID:      d.RelatedVideoID,
		RelatedAudioID:      d.RelatedAudioID,
		RelatedTranscriptID: d.RelatedTranscriptID,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}
