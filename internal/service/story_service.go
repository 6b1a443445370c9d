// Package service contains the transport-independent business operations
// over the Story domain.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gs-labs/stories-service/internal/domain"
	"github.com/gs-labs/stories-service/internal/store"
)

// CreateStoryRequest carries the validated fields of a story creation,
// as supplied by the boundary layer.
type CreateStoryRequest struct {
	Name      string
	StoryType domain.StoryType
	Delay     *int

	IsDisabled   bool
	IsBlocking   bool
	IsPreview    bool
	IsRepetitive bool
	IsAutoscroll bool

	PublicationStartTime *time.Time
	PublicationEndTime   *time.Time
}

// UpdateStoryRequest carries the full mutable field set of a story
// update. The page collection is intentionally not part of this request:
// pages are never overwritten through the update path.
type UpdateStoryRequest struct {
	ID        int64
	Name      string
	StoryType domain.StoryType
	Delay     *int

	IsDisabled   bool
	IsBlocking   bool
	IsPreview    bool
	IsRepetitive bool
	IsAutoscroll bool

	PublicationStartTime *time.Time
	PublicationEndTime   *time.Time
}

// StoryRepository defines the repository surface the service needs.
// The postgres implementation satisfies it; tests supply function-field
// mocks.
type StoryRepository interface {
	// Add inserts a new story and returns it fully hydrated.
	Add(ctx context.Context, entity *domain.StoryEntity) (*domain.StoryEntity, error)

	// Update strictly overwrites an existing story.
	Update(ctx context.Context, entity *domain.StoryEntity) (*domain.StoryEntity, error)

	// RemoveByID deletes a story, failing with NotFoundError when absent.
	RemoveByID(ctx context.Context, id int64) error

	// GetByID loads a story, failing with NotFoundError when absent.
	GetByID(ctx context.Context, id int64) (*domain.StoryEntity, error)

	// GetAll returns every story in storage-default order.
	GetAll(ctx context.Context) ([]*domain.StoryEntity, error)
}

// RepositoryFactory builds a StoryRepository bound to the given
// transaction. The service constructs a fresh repository inside every
// scoped transaction; neither holds state beyond the borrowed handle.
type RepositoryFactory func(db store.DBTX) StoryRepository

// StoryService provides story-related operations, independent of
// transport.
type StoryService interface {
	// GetStory retrieves a story by its identifier.
	GetStory(ctx context.Context, id int64) (*domain.StoryEntity, error)

	// GetAllStories retrieves every story, ordered by identifier.
	GetAllStories(ctx context.Context) ([]*domain.StoryEntity, error)

	// CreateStory builds a new story from the request and persists it.
	CreateStory(ctx context.Context, req CreateStoryRequest) (*domain.StoryEntity, error)

	// UpdateStory overwrites every mutable field of an existing story.
	UpdateStory(ctx context.Context, req UpdateStoryRequest) (*domain.StoryEntity, error)

	// DeleteStory removes a story and, by cascade, all its pages.
	DeleteStory(ctx context.Context, id int64) error
}

// StoryServiceError wraps errors from the story service with context.
type StoryServiceError struct {
	// Operation is the operation that failed (e.g., "create_story").
	Operation string
	// Message is a human-readable description of the error.
	Message string
	// Err is the underlying error that caused the failure.
	Err error
}

// Error implements the error interface for StoryServiceError.
func (e *StoryServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("story service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("story service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoryServiceError) Unwrap() error {
	return e.Err
}

// newStoryServiceError wraps err unless it is a not-found condition or a
// business error, both of which propagate to the boundary unchanged.
func newStoryServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if store.IsNotFoundError(err) {
		return err
	}

	var ble *domain.BusinessLogicError
	if errors.As(err, &ble) {
		return err
	}

	return &StoryServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// storyServiceImpl implements the StoryService interface. Every
// operation runs in exactly one scoped transaction obtained from the
// session manager, with a repository constructed fresh for that scope.
type storyServiceImpl struct {
	sessions *store.SessionManager
	repos    RepositoryFactory
	logger   *slog.Logger
}

// NewStoryService creates a StoryService over the given session manager
// and repository factory. If logger is nil, the default logger is used.
func NewStoryService(
	sessions *store.SessionManager,
	repos RepositoryFactory,
	logger *slog.Logger,
) StoryService {
	if sessions == nil {
		panic("sessions cannot be nil")
	}
	if repos == nil {
		panic("repository factory cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &storyServiceImpl{
		sessions: sessions,
		repos:    repos,
		logger:   logger.With(slog.String("component", "story_service")),
	}
}

// GetStory implements StoryService.GetStory.
func (s *storyServiceImpl) GetStory(ctx context.Context, id int64) (*domain.StoryEntity, error) {
	var story *domain.StoryEntity

	err := s.sessions.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		story, err = s.repos(tx).GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, newStoryServiceError("get_story", "failed to load story", err)
	}
	return story, nil
}

// GetAllStories implements StoryService.GetAllStories.
func (s *storyServiceImpl) GetAllStories(ctx context.Context) ([]*domain.StoryEntity, error) {
	var stories []*domain.StoryEntity

	err := s.sessions.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		stories, err = s.repos(tx).GetAll(ctx)
		return err
	})
	if err != nil {
		return nil, newStoryServiceError("get_all_stories", "failed to list stories", err)
	}
	return stories, nil
}

// CreateStory implements StoryService.CreateStory. The new entity starts
// with an unassigned identifier and an empty page collection; storage
// assigns identity and timestamps on insert.
func (s *storyServiceImpl) CreateStory(ctx context.Context, req CreateStoryRequest) (*domain.StoryEntity, error) {
	entity := &domain.StoryEntity{
		Name:                 req.Name,
		StoryType:            req.StoryType,
		Delay:                req.Delay,
		IsDisabled:           req.IsDisabled,
		IsBlocking:           req.IsBlocking,
		IsPreview:            req.IsPreview,
		IsRepetitive:         req.IsRepetitive,
		IsAutoscroll:         req.IsAutoscroll,
		PublicationStartTime: req.PublicationStartTime,
		PublicationEndTime:   req.PublicationEndTime,
		Pages:                []domain.PageEntity{},
	}

	if err := entity.Validate(); err != nil {
		return nil, newStoryServiceError("create_story", "invalid story", err)
	}

	var created *domain.StoryEntity
	err := s.sessions.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		created, err = s.repos(tx).Add(ctx, entity)
		return err
	})
	if err != nil {
		return nil, newStoryServiceError("create_story", "failed to persist story", err)
	}

	s.logger.Info("story created",
		slog.Int64("story_id", created.ID),
		slog.String("story_type", string(created.StoryType)))
	return created, nil
}

// UpdateStory implements StoryService.UpdateStory. The current entity is
// loaded, every mutable field is overwritten from the request, and the
// result is persisted with strict update semantics — all inside one
// scoped transaction.
func (s *storyServiceImpl) UpdateStory(ctx context.Context, req UpdateStoryRequest) (*domain.StoryEntity, error) {
	var updated *domain.StoryEntity

	err := s.sessions.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		repo := s.repos(tx)

		entity, err := repo.GetByID(ctx, req.ID)
		if err != nil {
			return err
		}

		entity.Name = req.Name
		entity.StoryType = req.StoryType
		entity.Delay = req.Delay
		entity.IsDisabled = req.IsDisabled
		entity.IsBlocking = req.IsBlocking
		entity.IsPreview = req.IsPreview
		entity.IsRepetitive = req.IsRepetitive
		entity.IsAutoscroll = req.IsAutoscroll
		entity.PublicationStartTime = req.PublicationStartTime
		entity.PublicationEndTime = req.PublicationEndTime

		if err := entity.Validate(); err != nil {
			return err
		}

		updated, err = repo.Update(ctx, entity)
		return err
	})
	if err != nil {
		return nil, newStoryServiceError("update_story", "failed to update story", err)
	}

	s.logger.Info("story updated", slog.Int64("story_id", updated.ID))
	return updated, nil
}

// DeleteStory implements StoryService.DeleteStory.
func (s *storyServiceImpl) DeleteStory(ctx context.Context, id int64) error {
	err := s.sessions.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.repos(tx).RemoveByID(ctx, id)
	})
	if err != nil {
		return newStoryServiceError("delete_story", "failed to delete story", err)
	}

	s.logger.Info("story deleted", slog.Int64("story_id", id))
	return nil
}
