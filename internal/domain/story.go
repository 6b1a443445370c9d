package domain

import (
	"errors"
	"time"
)

// StoryType classifies how a story is presented to the client.
type StoryType string

// Possible story type values
const (
	StoryTypeInstall StoryType = "install"
	StoryTypeUpdate  StoryType = "update"
	StoryTypeInfo    StoryType = "info"
)

// Common validation errors for Story
var (
	ErrEmptyStoryName    = errors.New("story name cannot be empty")
	ErrInvalidStoryType  = errors.New("invalid story type")
	ErrNegativeDelay     = errors.New("story delay cannot be negative")
	ErrUnassignedStoryID = errors.New("story ID is not assigned")
)

// PageEntity represents one page of a story. Pages are exclusively owned
// by their story and are deleted together with it.
type PageEntity struct {
	ID         int64      `json:"id"`
	StoryID    int64      `json:"story_id"`
	CreatedAt  *time.Time `json:"created_at"`
	ModifiedAt *time.Time `json:"modified_at"`
}

// StoryEntity is the domain representation of a story record.
//
// An ID of zero means the entity has not been persisted yet; storage
// assigns the identifier on insert and it is immutable afterwards.
// CreatedAt and ModifiedAt are set by storage: CreatedAt once on insert,
// ModifiedAt on every update.
//
// Pages carries the story's ordered page collection. A nil slice means the
// pages were not loaded; an empty slice means the story has no pages. When
// loaded, the collection is always fully materialized in insertion order.
type StoryEntity struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	StoryType StoryType `json:"story_type"`
	Delay     *int      `json:"delay"`

	IsDisabled   bool `json:"is_disabled"`
	IsBlocking   bool `json:"is_blocking"`
	IsPreview    bool `json:"is_preview"`
	IsRepetitive bool `json:"is_repetitive"`
	IsAutoscroll bool `json:"is_autoscroll"`

	PublicationStartTime *time.Time `json:"publication_start_time"`
	PublicationEndTime   *time.Time `json:"publication_end_time"`

	CreatedAt  *time.Time `json:"created_at"`
	ModifiedAt *time.Time `json:"modified_at"`

	Pages []PageEntity `json:"pages"`
}

// EntityID returns the story's assigned identifier (zero when unassigned).
func (s *StoryEntity) EntityID() int64 {
	return s.ID
}

// EntityID returns the page's assigned identifier (zero when unassigned).
func (p *PageEntity) EntityID() int64 {
	return p.ID
}

// Persisted reports whether storage has assigned an identifier yet.
func (s *StoryEntity) Persisted() bool {
	return s.ID != 0
}

// Validate checks if the StoryEntity has valid data.
// Returns an error if any field fails validation.
//
// No ordering is enforced between the publication times: callers may set
// the end before the start and this layer accepts it.
func (s *StoryEntity) Validate() error {
	if s.Name == "" {
		return ErrEmptyStoryName
	}

	if !IsValidStoryType(s.StoryType) {
		return ErrInvalidStoryType
	}

	if s.Delay != nil && *s.Delay < 0 {
		return ErrNegativeDelay
	}

	return nil
}

// IsValidStoryType checks if the given type is a valid StoryType.
func IsValidStoryType(t StoryType) bool {
	switch t {
	case StoryTypeInstall, StoryTypeUpdate, StoryTypeInfo:
		return true
	default:
		return false
	}
}
