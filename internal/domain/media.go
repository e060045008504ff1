package domain

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// MediaType classifies a catalog entry. It is always derived from the file
// extension and never set independently.
type MediaType string

const (
	MediaTypeVideo      MediaType = "video"
	MediaTypeAudio      MediaType = "audio"
	MediaTypeTranscript MediaType = "transcript"
	MediaTypeUnknown    MediaType = "unknown"
)

// MediaTypeFromPath derives the media type from the extension of filePath.
func MediaTypeFromPath(filePath string) MediaType {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".mp4", ".avi", ".mov":
		return MediaTypeVideo
	case ".mp3", ".wav", ".m4a":
		return MediaTypeAudio
	case ".txt", ".pdf", ".docx", ".md":
		return MediaTypeTranscript
	default:
		return MediaTypeUnknown
	}
}

// Collection maps a media type to its document collection name.
func (t MediaType) Collection() string {
	switch t {
	case MediaTypeVideo:
		return "videos"
	case MediaTypeAudio:
		return "audio"
	case MediaTypeTranscript:
		return "transcripts"
	default:
		return "other"
	}
}

// MediaItem is the canonical catalog entity returned by every backend.
type MediaItem struct {
	ID                  string     `json:"id"`
	MediaType           MediaType  `json:"media_type"`
	Year                string     `json:"year"`
	Category            string     `json:"category"`
	SessionName         string     `json:"session_name"`
	FileName            string     `json:"file_name"`
	FilePath            string     `json:"file_path"`
	FileSize            *float64   `json:"file_size,omitempty"`
	LastModified        *time.Time `json:"last_modified,omitempty"`
	Processed           bool       `json:"processed"`
	Uploaded            bool       `json:"uploaded"`
	UploadPath          *string    `json:"upload_path,omitempty"`
	UploadDate          *time.Time `json:"upload_date,omitempty"`
	ErrorMessage        *string    `json:"error_message,omitempty"`
	RelatedVideoID      *string    `json:"related_video_id,omitempty"`
	RelatedAudioID      *string    `json:"related_audio_id,omitempty"`
	RelatedTranscriptID *string    `json:"related_transcript_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// UpsertParams carries the fields needed to catalog a newly discovered file.
type UpsertParams struct {
	Year         string     `json:"year"`
	Category     string     `json:"category"`
	SessionName  string     `json:"session_name"`
	FileName     string     `json:"file_name"`
	FilePath     string     `json:"file_path"`
	FileSize     *float64   `json:"file_size,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// Validate checks that all required classification fields are present.
func (p UpsertParams) Validate() error {
	var missing []string
	for _, field := range []struct {
		name  string
		value string
	}{
		{"year", p.Year},
		{"category", p.Category},
		{"session_name", p.SessionName},
		{"file_name", p.FileName},
		{"file_path", p.FilePath},
	} {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return NewProcessingError("missing required media fields", nil).
			WithDetail("missing", missing)
	}
	return nil
}

// NewItem builds the canonical item for a first discovery.
func (p UpsertParams) NewItem(now time.Time) *MediaItem {
	return &MediaItem{
		MediaType:    MediaTypeFromPath(p.FilePath),
		Year:         p.Year,
		Category:     p.Category,
		SessionName:  p.SessionName,
		FileName:     p.FileName,
		FilePath:     p.FilePath,
		FileSize:     p.FileSize,
		LastModified: p.LastModified,
		Processed:    false,
		Uploaded:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// StatusUpdate describes a partial status mutation. Nil fields leave the
// stored value untouched.
type StatusUpdate struct {
	Processed           *bool   `json:"processed,omitempty"`
	Uploaded            *bool   `json:"uploaded,omitempty"`
	UploadPath          *string `json:"upload_path,omitempty"`
	ErrorMessage        *string `json:"error_message,omitempty"`
	RelatedVideoID      *string `json:"related_video_id,omitempty"`
	RelatedAudioID      *string `json:"related_audio_id,omitempty"`
	RelatedTranscriptID *string `json:"related_transcript_id,omitempty"`
}

// Apply mutates item in place. Setting Uploaded to true stamps UploadDate;
// setting it back to false preserves the existing UploadDate.
func (u StatusUpdate) Apply(item *MediaItem, now time.Time) {
	if u.Processed != nil {
		item.Processed = *u.Processed
	}
	if u.Uploaded != nil {
		item.Uploaded = *u.Uploaded
		if *u.Uploaded {
			uploadDate := now
			item.UploadDate = &uploadDate
		}
	}
	if u.UploadPath != nil {
		item.UploadPath = u.UploadPath
	}
	if u.ErrorMessage != nil {
		item.ErrorMessage = u.ErrorMessage
	}
	if u.RelatedVideoID != nil {
		item.RelatedVideoID = u.RelatedVideoID
	}
	if u.RelatedAudioID != nil {
		item.RelatedAudioID = u.RelatedAudioID
	}
	if u.RelatedTranscriptID != nil {
		item.RelatedTranscriptID = u.RelatedTranscriptID
	}
	item.UpdatedAt = now
}

// Filters narrows ListAll results. All set fields must match.
type Filters struct {
	Year       string
	Category   string
	SearchTerm string
	MediaType  MediaType
}

// Statistics partitions the catalog population by derived media type.
type Statistics struct {
	Total       int `json:"total"`
	Videos      int `json:"videos"`
	Audio       int `json:"audio"`
	Transcripts int `json:"transcripts"`
	Other       int `json:"other"`
}

// FilterOptions lists the distinct classification values present in the
// catalog, sorted ascending.
type FilterOptions struct {
	Years      []string `json:"years"`
	Categories []string `json:"categories"`
}

// MediaStore is the capability interface implemented by each storage backend.
// Callers go through the catalog service, which applies identical filtering
// and derivation logic regardless of the concrete store.
type MediaStore interface {
	Insert(ctx context.Context, item *MediaItem) (*MediaItem, error)
	FindByPath(ctx context.Context, filePath string) (*MediaItem, error)
	UpdateStatus(ctx context.Context, filePath string, update StatusUpdate) (*MediaItem, error)
	FindUnprocessed(ctx context.Context) ([]MediaItem, error)
	FindProcessedNotUploaded(ctx context.Context) ([]MediaItem, error)
	FindAll(ctx context.Context) ([]MediaItem, error)
	Close() error
}
