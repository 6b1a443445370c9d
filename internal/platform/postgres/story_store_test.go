package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gs-labs/stories-service/internal/domain"
	"github.com/gs-labs/stories-service/internal/store"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func storyRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "story_type", "delay",
		"is_disabled", "is_blocking", "is_preview", "is_repetitive", "is_autoscroll",
		"publication_start_time", "publication_end_time", "created_at", "modified_at",
	})
}

func pageRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "story_id", "created_at", "modified_at"})
}

func TestStoryOps_Insert(t *testing.T) {
	db, mock := newMockDB(t)
	ops := NewStoryOps(nil)

	now := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO story").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "modified_at"}).
			AddRow(int64(1), now, now))

	rec, err := ops.Insert(context.Background(), db, StoryRecord{
		Name:         "Welcome",
		StoryType:    "info",
		IsAutoscroll: true,
		Pages:        []PageRecord{},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID)
	assert.Equal(t, now, rec.CreatedAt)
	assert.Equal(t, now, rec.ModifiedAt)
	assert.Equal(t, []PageRecord{}, rec.Pages)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoryOps_Update(t *testing.T) {
	t.Run("overwrites the stored row and bumps modified_at", func(t *testing.T) {
		db, mock := newMockDB(t)
		ops := NewStoryOps(nil)

		created := time.Now().UTC().Add(-time.Hour)
		modified := time.Now().UTC()
		mock.ExpectQuery("UPDATE story").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "modified_at"}).
				AddRow(created, modified))
		mock.ExpectQuery("SELECT id, story_id, created_at, modified_at FROM page").
			WillReturnRows(pageRows())

		rec, err := ops.Update(context.Background(), db, StoryRecord{
			ID: 1, Name: "Welcome", StoryType: "info", IsDisabled: true,
		})

		require.NoError(t, err)
		assert.Equal(t, created, rec.CreatedAt)
		assert.Equal(t, modified, rec.ModifiedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for a missing identifier", func(t *testing.T) {
		db, mock := newMockDB(t)
		ops := NewStoryOps(nil)

		mock.ExpectQuery("UPDATE story").WillReturnError(sql.ErrNoRows)

		_, err := ops.Update(context.Background(), db, StoryRecord{ID: 999999})

		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStoryOps_Get(t *testing.T) {
	t.Run("loads the story with its pages in insertion order", func(t *testing.T) {
		db, mock := newMockDB(t)
		ops := NewStoryOps(nil)

		now := time.Now().UTC()
		mock.ExpectQuery("SELECT (.+) FROM story WHERE id").
			WithArgs(int64(1)).
			WillReturnRows(storyRows().AddRow(
				int64(1), "Welcome", "info", nil,
				false, false, false, false, true,
				nil, nil, now, now))
		mock.ExpectQuery("SELECT id, story_id, created_at, modified_at FROM page").
			WithArgs(int64(1)).
			WillReturnRows(pageRows().
				AddRow(int64(10), int64(1), now, now).
				AddRow(int64(11), int64(1), now, now))

		rec, err := ops.Get(context.Background(), db, 1)

		require.NoError(t, err)
		require.Len(t, rec.Pages, 2)
		assert.Equal(t, int64(10), rec.Pages[0].ID)
		assert.Equal(t, int64(11), rec.Pages[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for a missing identifier", func(t *testing.T) {
		db, mock := newMockDB(t)
		ops := NewStoryOps(nil)

		mock.ExpectQuery("SELECT (.+) FROM story WHERE id").
			WithArgs(int64(999999)).
			WillReturnError(sql.ErrNoRows)

		_, err := ops.Get(context.Background(), db, 999999)

		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestStoryOps_Delete(t *testing.T) {
	t.Run("deletes an existing story", func(t *testing.T) {
		db, mock := newMockDB(t)
		ops := NewStoryOps(nil)

		mock.ExpectExec("DELETE FROM story").
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, ops.Delete(context.Background(), db, 1))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found when no row was deleted", func(t *testing.T) {
		db, mock := newMockDB(t)
		ops := NewStoryOps(nil)

		mock.ExpectExec("DELETE FROM story").
			WithArgs(int64(999999)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := ops.Delete(context.Background(), db, 999999)

		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestStoryOps_List(t *testing.T) {
	db, mock := newMockDB(t)
	ops := NewStoryOps(nil)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM story ORDER BY id").
		WillReturnRows(storyRows().
			AddRow(int64(1), "First", "info", nil, false, false, false, false, false, nil, nil, now, now).
			AddRow(int64(2), "Second", "update", int64(30), true, false, false, false, false, nil, nil, now, now))
	mock.ExpectQuery("SELECT id, story_id, created_at, modified_at FROM page ORDER BY story_id, id").
		WillReturnRows(pageRows().
			AddRow(int64(5), int64(2), now, now))

	records, err := ops.List(context.Background(), db)

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "First", records[0].Name)
	assert.Empty(t, records[0].Pages)
	require.Len(t, records[1].Pages, 1)
	assert.Equal(t, int64(5), records[1].Pages[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoryRepository_GetAll(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStoryRepository(db, nil)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM story ORDER BY id").
		WillReturnRows(storyRows().
			AddRow(int64(1), "Welcome", "info", nil, false, false, false, false, true, nil, nil, now, now))
	mock.ExpectQuery("SELECT id, story_id, created_at, modified_at FROM page ORDER BY story_id, id").
		WillReturnRows(pageRows())

	stories, err := repo.GetAll(context.Background())

	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, "Welcome", stories[0].Name)
	assert.Equal(t, domain.StoryTypeInfo, stories[0].StoryType)
	assert.NotNil(t, stories[0].Pages)
	assert.Empty(t, stories[0].Pages)
}

func TestMapStoryRecord(t *testing.T) {
	t.Parallel()

	t.Run("maps optional fields to NULLs and back", func(t *testing.T) {
		entity := &domain.StoryEntity{
			Name:      "Welcome",
			StoryType: domain.StoryTypeInfo,
			Pages:     []domain.PageEntity{},
		}

		rec := MapEntityToStoryRecord(entity)
		assert.False(t, rec.Delay.Valid)
		assert.False(t, rec.PublicationStartTime.Valid)
		assert.NotNil(t, rec.Pages)

		back := MapStoryRecordToEntity(rec)
		assert.Nil(t, back.Delay)
		assert.Nil(t, back.PublicationStartTime)
		// Zero storage timestamps mean "not yet assigned".
		assert.Nil(t, back.CreatedAt)
		assert.Nil(t, back.ModifiedAt)
	})

	t.Run("keeps the nested page collection", func(t *testing.T) {
		now := time.Now().UTC()
		rec := StoryRecord{
			ID:        3,
			Name:      "Welcome",
			StoryType: "install",
			CreatedAt: now, ModifiedAt: now,
			Pages: []PageRecord{
				{ID: 7, StoryID: 3, CreatedAt: now, ModifiedAt: now},
			},
		}

		entity := MapStoryRecordToEntity(rec)

		require.Len(t, entity.Pages, 1)
		assert.Equal(t, int64(7), entity.Pages[0].ID)
		assert.Equal(t, int64(3), entity.Pages[0].StoryID)
		require.NotNil(t, entity.Pages[0].CreatedAt)
		assert.Equal(t, now, *entity.Pages[0].CreatedAt)
	})

	t.Run("distinguishes unloaded from empty pages", func(t *testing.T) {
		entity := MapStoryRecordToEntity(StoryRecord{ID: 1, Name: "x", StoryType: "info"})
		assert.Nil(t, entity.Pages)

		entity = MapStoryRecordToEntity(StoryRecord{ID: 1, Name: "x", StoryType: "info", Pages: []PageRecord{}})
		assert.NotNil(t, entity.Pages)
		assert.Empty(t, entity.Pages)
	})
}

func TestMapError(t *testing.T) {
	t.Parallel()

	t.Run("maps no rows to not found", func(t *testing.T) {
		assert.ErrorIs(t, MapError(sql.ErrNoRows), store.ErrNotFound)
	})

	t.Run("maps unique violations to duplicate", func(t *testing.T) {
		err := MapError(&pgconn.PgError{Code: uniqueViolationCode})
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})

	t.Run("maps foreign key violations to invalid entity", func(t *testing.T) {
		err := MapError(&pgconn.PgError{Code: foreignKeyViolationCode, ConstraintName: "fk_page_story_id_story"})
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
		assert.Contains(t, err.Error(), "fk_page_story_id_story")
	})

	t.Run("passes through unknown errors", func(t *testing.T) {
		err := MapError(assert.AnError)
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("returns nil for nil", func(t *testing.T) {
		assert.NoError(t, MapError(nil))
	})
}
