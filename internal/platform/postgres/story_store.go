package postgres

import (
	"context"
	"log/slog"

	"github.com/gs-labs/stories-service/internal/domain"
	"github.com/gs-labs/stories-service/internal/platform/logger"
	"github.com/gs-labs/stories-service/internal/store"
)

// storyColumns is the scan order shared by every story SELECT.
const storyColumns = `id, name, story_type, delay,
		is_disabled, is_blocking, is_preview, is_repetitive, is_autoscroll,
		publication_start_time, publication_end_time, created_at, modified_at`

// StoryOps implements store.RecordOps[StoryRecord]: the raw SQL behind
// the generic repository. It holds no state beyond a logger and runs
// against whatever DBTX the caller passes in, so it participates in the
// caller's transaction.
type StoryOps struct {
	logger *slog.Logger
}

// NewStoryOps creates the record-level SQL operations for stories.
// If logger is nil, a default logger is used.
func NewStoryOps(logger *slog.Logger) *StoryOps {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoryOps{
		logger: logger.With(slog.String("component", "story_ops")),
	}
}

// Ensure StoryOps implements store.RecordOps[StoryRecord]
var _ store.RecordOps[StoryRecord] = (*StoryOps)(nil)

// Insert stores a new story, letting the database assign the identifier
// and both timestamps, and inserts any owned pages with it.
func (o *StoryOps) Insert(ctx context.Context, db store.DBTX, rec StoryRecord) (StoryRecord, error) {
	log := logger.FromContextOrDefault(ctx, o.logger)

	query := `
		INSERT INTO story (name, story_type, delay,
			is_disabled, is_blocking, is_preview, is_repetitive, is_autoscroll,
			publication_start_time, publication_end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, modified_at
	`
	err := db.QueryRowContext(
		ctx,
		query,
		rec.Name,
		rec.StoryType,
		rec.Delay,
		rec.IsDisabled,
		rec.IsBlocking,
		rec.IsPreview,
		rec.IsRepetitive,
		rec.IsAutoscroll,
		rec.PublicationStartTime,
		rec.PublicationEndTime,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.ModifiedAt)
	if err != nil {
		log.Error("failed to insert story", slog.String("error", err.Error()))
		return StoryRecord{}, MapError(err)
	}

	pages, err := o.insertPages(ctx, db, rec.ID, rec.Pages)
	if err != nil {
		return StoryRecord{}, err
	}
	rec.Pages = pages

	log.Debug("story inserted", slog.Int64("story_id", rec.ID))
	return rec, nil
}

// Update overwrites the story with the record's identifier. Strict:
// returns store.ErrNotFound when the identifier does not exist. The page
// collection is left untouched; the returned record carries the stored
// pages.
func (o *StoryOps) Update(ctx context.Context, db store.DBTX, rec StoryRecord) (StoryRecord, error) {
	log := logger.FromContextOrDefault(ctx, o.logger)

	query := `
		UPDATE story
		SET name = $2, story_type = $3, delay = $4,
			is_disabled = $5, is_blocking = $6, is_preview = $7,
			is_repetitive = $8, is_autoscroll = $9,
			publication_start_time = $10, publication_end_time = $11,
			modified_at = now()
		WHERE id = $1
		RETURNING created_at, modified_at
	`
	err := db.QueryRowContext(
		ctx,
		query,
		rec.ID,
		rec.Name,
		rec.StoryType,
		rec.Delay,
		rec.IsDisabled,
		rec.IsBlocking,
		rec.IsPreview,
		rec.IsRepetitive,
		rec.IsAutoscroll,
		rec.PublicationStartTime,
		rec.PublicationEndTime,
	).Scan(&rec.CreatedAt, &rec.ModifiedAt)
	if err != nil {
		return StoryRecord{}, MapError(err)
	}

	pages, err := o.loadPages(ctx, db, rec.ID)
	if err != nil {
		return StoryRecord{}, err
	}
	rec.Pages = pages

	log.Debug("story updated", slog.Int64("story_id", rec.ID))
	return rec, nil
}

// Upsert inserts the story or, when its identifier already exists,
// overwrites the stored row. A record without an identifier falls back
// to a plain insert.
func (o *StoryOps) Upsert(ctx context.Context, db store.DBTX, rec StoryRecord) (StoryRecord, error) {
	if rec.ID == 0 {
		return o.Insert(ctx, db, rec)
	}

	log := logger.FromContextOrDefault(ctx, o.logger)

	query := `
		INSERT INTO story (id, name, story_type, delay,
			is_disabled, is_blocking, is_preview, is_repetitive, is_autoscroll,
			publication_start_time, publication_end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, story_type = EXCLUDED.story_type,
			delay = EXCLUDED.delay, is_disabled = EXCLUDED.is_disabled,
			is_blocking = EXCLUDED.is_blocking, is_preview = EXCLUDED.is_preview,
			is_repetitive = EXCLUDED.is_repetitive, is_autoscroll = EXCLUDED.is_autoscroll,
			publication_start_time = EXCLUDED.publication_start_time,
			publication_end_time = EXCLUDED.publication_end_time,
			modified_at = now()
		RETURNING id, created_at, modified_at
	`
	err := db.QueryRowContext(
		ctx,
		query,
		rec.ID,
		rec.Name,
		rec.StoryType,
		rec.Delay,
		rec.IsDisabled,
		rec.IsBlocking,
		rec.IsPreview,
		rec.IsRepetitive,
		rec.IsAutoscroll,
		rec.PublicationStartTime,
		rec.PublicationEndTime,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.ModifiedAt)
	if err != nil {
		log.Error("failed to upsert story",
			slog.Int64("story_id", rec.ID),
			slog.String("error", err.Error()))
		return StoryRecord{}, MapError(err)
	}

	pages, err := o.loadPages(ctx, db, rec.ID)
	if err != nil {
		return StoryRecord{}, err
	}
	rec.Pages = pages

	return rec, nil
}

// Get loads the story with the given identifier, its page collection
// fully materialized in insertion order.
func (o *StoryOps) Get(ctx context.Context, db store.DBTX, id int64) (StoryRecord, error) {
	query := `SELECT ` + storyColumns + ` FROM story WHERE id = $1`

	var rec StoryRecord
	err := db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&rec.Name,
		&rec.StoryType,
		&rec.Delay,
		&rec.IsDisabled,
		&rec.IsBlocking,
		&rec.IsPreview,
		&rec.IsRepetitive,
		&rec.IsAutoscroll,
		&rec.PublicationStartTime,
		&rec.PublicationEndTime,
		&rec.CreatedAt,
		&rec.ModifiedAt,
	)
	if err != nil {
		return StoryRecord{}, MapError(err)
	}

	pages, err := o.loadPages(ctx, db, rec.ID)
	if err != nil {
		return StoryRecord{}, err
	}
	rec.Pages = pages

	return rec, nil
}

// Delete removes the story with the given identifier. Owned pages go
// with it through the cascading foreign key.
func (o *StoryOps) Delete(ctx context.Context, db store.DBTX, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM story WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, "story")
}

// List loads every story ordered by identifier, each with its page
// collection fully materialized. Pages for all stories are fetched in
// one query and grouped.
func (o *StoryOps) List(ctx context.Context, db store.DBTX) ([]StoryRecord, error) {
	query := `SELECT ` + storyColumns + ` FROM story ORDER BY id`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var records []StoryRecord
	for rows.Next() {
		var rec StoryRecord
		err := rows.Scan(
			&rec.ID,
			&rec.Name,
			&rec.StoryType,
			&rec.Delay,
			&rec.IsDisabled,
			&rec.IsBlocking,
			&rec.IsPreview,
			&rec.IsRepetitive,
			&rec.IsAutoscroll,
			&rec.PublicationStartTime,
			&rec.PublicationEndTime,
			&rec.CreatedAt,
			&rec.ModifiedAt,
		)
		if err != nil {
			return nil, MapError(err)
		}
		rec.Pages = []PageRecord{}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	if len(records) == 0 {
		return records, nil
	}

	pageRows, err := db.QueryContext(ctx,
		`SELECT id, story_id, created_at, modified_at FROM page ORDER BY story_id, id`)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = pageRows.Close() }()

	byStory := make(map[int64]int, len(records))
	for i, rec := range records {
		byStory[rec.ID] = i
	}

	for pageRows.Next() {
		var page PageRecord
		if err := pageRows.Scan(&page.ID, &page.StoryID, &page.CreatedAt, &page.ModifiedAt); err != nil {
			return nil, MapError(err)
		}
		if i, ok := byStory[page.StoryID]; ok {
			records[i].Pages = append(records[i].Pages, page)
		}
	}
	if err := pageRows.Err(); err != nil {
		return nil, MapError(err)
	}

	return records, nil
}

// loadPages fetches the full page collection of one story, ordered by
// insertion (identifier).
func (o *StoryOps) loadPages(ctx context.Context, db store.DBTX, storyID int64) ([]PageRecord, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, story_id, created_at, modified_at FROM page WHERE story_id = $1 ORDER BY id`,
		storyID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	pages := []PageRecord{}
	for rows.Next() {
		var page PageRecord
		if err := rows.Scan(&page.ID, &page.StoryID, &page.CreatedAt, &page.ModifiedAt); err != nil {
			return nil, MapError(err)
		}
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return pages, nil
}

// insertPages stores the given pages under the story, returning the
// stored records in insertion order.
func (o *StoryOps) insertPages(ctx context.Context, db store.DBTX, storyID int64, pages []PageRecord) ([]PageRecord, error) {
	stored := []PageRecord{}
	for range pages {
		var rec PageRecord
		err := db.QueryRowContext(ctx,
			`INSERT INTO page (story_id) VALUES ($1) RETURNING id, story_id, created_at, modified_at`,
			storyID,
		).Scan(&rec.ID, &rec.StoryID, &rec.CreatedAt, &rec.ModifiedAt)
		if err != nil {
			return nil, MapError(err)
		}
		stored = append(stored, rec)
	}
	return stored, nil
}

// StoryMapper is the entity/record mapper pair injected into the generic
// repository.
var StoryMapper = store.Mapper[*domain.StoryEntity, StoryRecord]{
	ToRecord: MapEntityToStoryRecord,
	ToEntity: MapStoryRecordToEntity,
}

// StoryRepository is the story-bound generic repository plus the
// full-table list operation the fan-out job needs.
type StoryRepository struct {
	*store.Repository[*domain.StoryEntity, StoryRecord]

	db  store.DBTX
	ops *StoryOps
}

// NewStoryRepository creates a StoryRepository bound to the given
// connection or transaction.
func NewStoryRepository(db store.DBTX, logger *slog.Logger) *StoryRepository {
	ops := NewStoryOps(logger)
	return &StoryRepository{
		Repository: store.NewRepository("Story", db, ops, StoryMapper, logger),
		db:         db,
		ops:        ops,
	}
}

// WithTx returns a StoryRepository bound to the given transaction.
func (r *StoryRepository) WithTx(db store.DBTX) *StoryRepository {
	return &StoryRepository{
		Repository: r.Repository.WithTx(db),
		db:         db,
		ops:        r.ops,
	}
}

// GetAll returns every story in storage-default order (by identifier).
func (r *StoryRepository) GetAll(ctx context.Context) ([]*domain.StoryEntity, error) {
	records, err := r.ops.List(ctx, r.db)
	if err != nil {
		return nil, err
	}

	entities := make([]*domain.StoryEntity, 0, len(records))
	for _, rec := range records {
		entities = append(entities, MapStoryRecordToEntity(rec))
	}
	return entities, nil
}
