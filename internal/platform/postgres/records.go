package postgres

import (
	"database/sql"
	"time"

	"github.com/gs-labs/stories-service/internal/domain"
)

// StoryRecord is the storage-shaped representation of a story, as
// persisted in the story table. Pages carries the owned page records:
// nil means not loaded, an empty slice means the story has no pages.
type StoryRecord struct {
	ID        int64
	Name      string
	StoryType string
	Delay     sql.NullInt64

	IsDisabled   bool
	IsBlocking   bool
	IsPreview    bool
	IsRepetitive bool
	IsAutoscroll bool

	PublicationStartTime sql.NullTime
	PublicationEndTime   sql.NullTime

	CreatedAt  time.Time
	ModifiedAt time.Time

	Pages []PageRecord
}

// PageRecord is the storage-shaped representation of a page, as
// persisted in the page table.
type PageRecord struct {
	ID         int64
	StoryID    int64
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// MapEntityToStoryRecord translates a domain story into its storage
// record. Unset optional fields become SQL NULLs; storage-assigned
// timestamps are carried over only when present.
func MapEntityToStoryRecord(entity *domain.StoryEntity) StoryRecord {
	rec := StoryRecord{
		ID:           entity.ID,
		Name:         entity.Name,
		StoryType:    string(entity.StoryType),
		IsDisabled:   entity.IsDisabled,
		IsBlocking:   entity.IsBlocking,
		IsPreview:    entity.IsPreview,
		IsRepetitive: entity.IsRepetitive,
		IsAutoscroll: entity.IsAutoscroll,
	}

	if entity.Delay != nil {
		rec.Delay = sql.NullInt64{Int64: int64(*entity.Delay), Valid: true}
	}
	if entity.PublicationStartTime != nil {
		rec.PublicationStartTime = sql.NullTime{Time: *entity.PublicationStartTime, Valid: true}
	}
	if entity.PublicationEndTime != nil {
		rec.PublicationEndTime = sql.NullTime{Time: *entity.PublicationEndTime, Valid: true}
	}
	if entity.CreatedAt != nil {
		rec.CreatedAt = *entity.CreatedAt
	}
	if entity.ModifiedAt != nil {
		rec.ModifiedAt = *entity.ModifiedAt
	}
	if entity.Pages != nil {
		rec.Pages = make([]PageRecord, 0, len(entity.Pages))
		for _, page := range entity.Pages {
			rec.Pages = append(rec.Pages, MapEntityToPageRecord(page))
		}
	}

	return rec
}

// MapStoryRecordToEntity translates a storage record back into the
// domain story, nested page collection included.
func MapStoryRecordToEntity(rec StoryRecord) *domain.StoryEntity {
	entity := &domain.StoryEntity{
		ID:           rec.ID,
		Name:         rec.Name,
		StoryType:    domain.StoryType(rec.StoryType),
		IsDisabled:   rec.IsDisabled,
		IsBlocking:   rec.IsBlocking,
		IsPreview:    rec.IsPreview,
		IsRepetitive: rec.IsRepetitive,
		IsAutoscroll: rec.IsAutoscroll,
		CreatedAt:    timePtr(rec.CreatedAt),
		ModifiedAt:   timePtr(rec.ModifiedAt),
	}

	if rec.Delay.Valid {
		delay := int(rec.Delay.Int64)
		entity.Delay = &delay
	}
	if rec.PublicationStartTime.Valid {
		start := rec.PublicationStartTime.Time
		entity.PublicationStartTime = &start
	}
	if rec.PublicationEndTime.Valid {
		end := rec.PublicationEndTime.Time
		entity.PublicationEndTime = &end
	}
	if rec.Pages != nil {
		entity.Pages = make([]domain.PageEntity, 0, len(rec.Pages))
		for _, page := range rec.Pages {
			entity.Pages = append(entity.Pages, MapPageRecordToEntity(page))
		}
	}

	return entity
}

// MapEntityToPageRecord translates a domain page into its storage record.
func MapEntityToPageRecord(entity domain.PageEntity) PageRecord {
	rec := PageRecord{
		ID:      entity.ID,
		StoryID: entity.StoryID,
	}
	if entity.CreatedAt != nil {
		rec.CreatedAt = *entity.CreatedAt
	}
	if entity.ModifiedAt != nil {
		rec.ModifiedAt = *entity.ModifiedAt
	}
	return rec
}

// MapPageRecordToEntity translates a page storage record back into the
// domain page.
func MapPageRecordToEntity(rec PageRecord) domain.PageEntity {
	return domain.PageEntity{
		ID:         rec.ID,
		StoryID:    rec.StoryID,
		CreatedAt:  timePtr(rec.CreatedAt),
		ModifiedAt: timePtr(rec.ModifiedAt),
	}
}

// timePtr returns nil for the zero time so storage-unassigned timestamps
// round-trip as "not set".
func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
