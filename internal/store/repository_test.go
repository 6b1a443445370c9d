package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEntity is a minimal domain-side type for repository tests.
type testEntity struct {
	ID   int64
	Name string
}

func (e testEntity) EntityID() int64 { return e.ID }

// testRecord is the matching storage-side type.
type testRecord struct {
	ID   int64
	Name string
}

// fakeOps implements RecordOps[testRecord] with function fields,
// so each test supplies only the behavior it needs.
type fakeOps struct {
	InsertFunc func(ctx context.Context, db DBTX, rec testRecord) (testRecord, error)
	UpdateFunc func(ctx context.Context, db DBTX, rec testRecord) (testRecord, error)
	UpsertFunc func(ctx context.Context, db DBTX, rec testRecord) (testRecord, error)
	GetFunc    func(ctx context.Context, db DBTX, id int64) (testRecord, error)
	DeleteFunc func(ctx context.Context, db DBTX, id int64) error
}

func (f *fakeOps) Insert(ctx context.Context, db DBTX, rec testRecord) (testRecord, error) {
	return f.InsertFunc(ctx, db, rec)
}

func (f *fakeOps) Update(ctx context.Context, db DBTX, rec testRecord) (testRecord, error) {
	return f.UpdateFunc(ctx, db, rec)
}

func (f *fakeOps) Upsert(ctx context.Context, db DBTX, rec testRecord) (testRecord, error) {
	return f.UpsertFunc(ctx, db, rec)
}

func (f *fakeOps) Get(ctx context.Context, db DBTX, id int64) (testRecord, error) {
	return f.GetFunc(ctx, db, id)
}

func (f *fakeOps) Delete(ctx context.Context, db DBTX, id int64) error {
	return f.DeleteFunc(ctx, db, id)
}

var testMapper = Mapper[testEntity, testRecord]{
	ToRecord: func(e testEntity) testRecord { return testRecord(e) },
	ToEntity: func(m testRecord) testEntity { return testEntity(m) },
}

func newTestRepository(t *testing.T, ops *fakeOps) *Repository[testEntity, testRecord] {
	t.Helper()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewRepository("Story", db, ops, testMapper, nil)
}

func TestRepository_Add(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, &fakeOps{
		InsertFunc: func(ctx context.Context, db DBTX, rec testRecord) (testRecord, error) {
			// Storage assigns the identifier.
			rec.ID = 17
			return rec, nil
		},
	})

	got, err := repo.Add(context.Background(), testEntity{Name: "Welcome"})

	require.NoError(t, err)
	assert.Equal(t, int64(17), got.ID)
	assert.Equal(t, "Welcome", got.Name)
}

func TestRepository_Update(t *testing.T) {
	t.Parallel()

	t.Run("returns the updated entity", func(t *testing.T) {
		repo := newTestRepository(t, &fakeOps{
			UpdateFunc: func(ctx context.Context, db DBTX, rec testRecord) (testRecord, error) {
				return rec, nil
			},
		})

		got, err := repo.Update(context.Background(), testEntity{ID: 3, Name: "Renamed"})

		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Name)
	})

	t.Run("is strict about missing identifiers", func(t *testing.T) {
		repo := newTestRepository(t, &fakeOps{
			UpdateFunc: func(ctx context.Context, db DBTX, rec testRecord) (testRecord, error) {
				return testRecord{}, fmt.Errorf("%w: story", ErrNotFound)
			},
		})

		_, err := repo.Update(context.Background(), testEntity{ID: 999999, Name: "Ghost"})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)

		var nfe *NotFoundError
		require.ErrorAs(t, err, &nfe)
		assert.Equal(t, "Story", nfe.Entity)
		assert.Equal(t, int64(999999), nfe.Key["id"])
	})

	t.Run("propagates other storage errors unchanged", func(t *testing.T) {
		storageErr := errors.New("connection reset")
		repo := newTestRepository(t, &fakeOps{
			UpdateFunc: func(ctx context.Context, db DBTX, rec testRecord) (testRecord, error) {
				return testRecord{}, storageErr
			},
		})

		_, err := repo.Update(context.Background(), testEntity{ID: 3})

		assert.ErrorIs(t, err, storageErr)
	})
}

func TestRepository_Upsert(t *testing.T) {
	t.Parallel()

	inserted := false
	repo := newTestRepository(t, &fakeOps{
		UpsertFunc: func(ctx context.Context, db DBTX, rec testRecord) (testRecord, error) {
			inserted = true
			if rec.ID == 0 {
				rec.ID = 8
			}
			return rec, nil
		},
	})

	got, err := repo.Upsert(context.Background(), testEntity{Name: "Fresh"})

	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(8), got.ID)
}

func TestRepository_Remove(t *testing.T) {
	t.Parallel()

	t.Run("deletes an existing record", func(t *testing.T) {
		var deletedID int64
		repo := newTestRepository(t, &fakeOps{
			DeleteFunc: func(ctx context.Context, db DBTX, id int64) error {
				deletedID = id
				return nil
			},
		})

		err := repo.Remove(context.Background(), testEntity{ID: 5})

		require.NoError(t, err)
		assert.Equal(t, int64(5), deletedID)
	})

	t.Run("silently skips a missing record", func(t *testing.T) {
		// Idempotent delete by value, asymmetric with RemoveByID.
		repo := newTestRepository(t, &fakeOps{
			DeleteFunc: func(ctx context.Context, db DBTX, id int64) error {
				return ErrNotFound
			},
		})

		err := repo.Remove(context.Background(), testEntity{ID: 5})

		assert.NoError(t, err)
	})
}

func TestRepository_RemoveByID(t *testing.T) {
	t.Parallel()

	t.Run("deletes an existing record", func(t *testing.T) {
		repo := newTestRepository(t, &fakeOps{
			DeleteFunc: func(ctx context.Context, db DBTX, id int64) error {
				return nil
			},
		})

		assert.NoError(t, repo.RemoveByID(context.Background(), 5))
	})

	t.Run("fails with a typed not-found error", func(t *testing.T) {
		repo := newTestRepository(t, &fakeOps{
			DeleteFunc: func(ctx context.Context, db DBTX, id int64) error {
				return ErrNotFound
			},
		})

		err := repo.RemoveByID(context.Background(), 999999)

		require.Error(t, err)
		assert.Equal(t, "Story with id=999999 not found", err.Error())
		assert.True(t, IsNotFoundError(err))
	})
}

func TestRepository_GetByID(t *testing.T) {
	t.Parallel()

	t.Run("returns the mapped entity", func(t *testing.T) {
		repo := newTestRepository(t, &fakeOps{
			GetFunc: func(ctx context.Context, db DBTX, id int64) (testRecord, error) {
				return testRecord{ID: id, Name: "Welcome"}, nil
			},
		})

		got, err := repo.GetByID(context.Background(), 17)

		require.NoError(t, err)
		assert.Equal(t, testEntity{ID: 17, Name: "Welcome"}, got)
	})

	t.Run("fails with a typed not-found error", func(t *testing.T) {
		repo := newTestRepository(t, &fakeOps{
			GetFunc: func(ctx context.Context, db DBTX, id int64) (testRecord, error) {
				return testRecord{}, ErrNotFound
			},
		})

		_, err := repo.GetByID(context.Background(), 999999)

		require.Error(t, err)

		var nfe *NotFoundError
		require.ErrorAs(t, err, &nfe)
		assert.Equal(t, "Story", nfe.Entity)
		assert.Equal(t, int64(999999), nfe.Key["id"])
	})
}

func TestNotFoundError_Message(t *testing.T) {
	t.Parallel()

	err := NewNotFoundError("Page", map[string]any{"story_id": 2, "id": 9})

	// Keys render in sorted order for deterministic messages.
	assert.Equal(t, "Page with id=9, story_id=2 not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
}
