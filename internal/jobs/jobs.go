// Package jobs contains the background job handlers and the dependency
// container they run against.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gs-labs/stories-service/internal/domain"
	"github.com/gs-labs/stories-service/internal/queue"
	"github.com/gs-labs/stories-service/internal/service"
	"github.com/gs-labs/stories-service/internal/store"
)

// Job names as they appear on the broker.
const (
	JobRefreshAllStories = "refresh_all_stories"
	JobRefreshStory      = "refresh_story"
)

// RefreshStoryPayload is the payload of a refresh_story job.
type RefreshStoryPayload struct {
	StoryID int64 `json:"story_id"`
}

// Deps holds everything the job handlers need. It is built explicitly
// by the worker startup hook and torn down by the shutdown hook; the
// handlers never reach for process-wide state.
type Deps struct {
	stories service.StoryService
	queue   *queue.Queue
	timeout time.Duration
	logger  *slog.Logger
}

// NewDeps creates the handler dependency container. timeout bounds each
// fanned-out refresh_story job. If logger is nil, the default logger is
// used.
func NewDeps(stories service.StoryService, q *queue.Queue, timeout time.Duration, logger *slog.Logger) *Deps {
	if stories == nil {
		panic("story service cannot be nil")
	}
	if q == nil {
		panic("queue cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Deps{
		stories: stories,
		queue:   q,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "jobs")),
	}
}

// RefreshAllStories fans the periodic refresh out: one refresh_story
// job per stored story, in listing order. Execution order across
// workers is unspecified.
func (d *Deps) RefreshAllStories(ctx context.Context, job queue.Job) error {
	stories, err := d.stories.GetAllStories(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stories for refresh: %w", err)
	}

	for _, story := range stories {
		payload := RefreshStoryPayload{StoryID: story.ID}
		if _, err := d.queue.Enqueue(ctx, JobRefreshStory, payload, d.timeout); err != nil {
			return fmt.Errorf("failed to enqueue refresh for story %d: %w", story.ID, err)
		}
	}

	d.logger.Info("story refresh fanned out",
		slog.Int("stories", len(stories)))
	return nil
}

// RefreshStory refreshes a single story. A story deleted between
// fan-out and execution completes as a no-op; every other failure
// surfaces to the worker.
func (d *Deps) RefreshStory(ctx context.Context, job queue.Job) error {
	var payload RefreshStoryPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode refresh payload: %w", err)
	}

	story, err := d.stories.GetStory(ctx, payload.StoryID)
	if err != nil {
		if store.IsNotFoundError(err) {
			d.logger.Debug("skipping refresh of deleted story",
				slog.Int64("story_id", payload.StoryID))
			return nil
		}
		return fmt.Errorf("failed to load story %d for refresh: %w", payload.StoryID, err)
	}

	return d.refreshStoryContent(ctx, story)
}

// refreshStoryContent is where per-story refresh work goes once a
// content source exists. It intentionally does nothing today.
func (d *Deps) refreshStoryContent(ctx context.Context, story *domain.StoryEntity) error {
	d.logger.Debug("story refreshed",
		slog.Int64("story_id", story.ID),
		slog.String("story_type", string(story.StoryType)))
	return nil
}
