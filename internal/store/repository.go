package store

import (
	"context"
	"errors"
	"log/slog"
)

// Entity is implemented by domain entities with an integer identifier.
// A zero identifier means storage has not assigned one yet.
type Entity interface {
	EntityID() int64
}

// Mapper is a pair of pure functions translating between a domain entity
// and its storage record. Both directions must be lossless for the
// fields storage persists.
type Mapper[E Entity, M any] struct {
	ToRecord func(E) M
	ToEntity func(M) E
}

// RecordOps is the storage backend of a Repository: raw record-level
// operations bound to one record type. Implementations return
// ErrNotFound (possibly wrapped) when no record matches; the Repository
// translates that into a typed NotFoundError naming the entity.
type RecordOps[M any] interface {
	// Insert stores a new record and returns it with the
	// storage-assigned fields (identifier, created_at) populated.
	Insert(ctx context.Context, db DBTX, rec M) (M, error)

	// Update overwrites the record with the same identifier.
	// Returns ErrNotFound when the identifier does not exist.
	Update(ctx context.Context, db DBTX, rec M) (M, error)

	// Upsert inserts the record or, when the identifier already
	// exists, overwrites it.
	Upsert(ctx context.Context, db DBTX, rec M) (M, error)

	// Get loads the record by identifier. Returns ErrNotFound when
	// absent.
	Get(ctx context.Context, db DBTX, id int64) (M, error)

	// Delete removes the record by identifier. Returns ErrNotFound
	// when absent.
	Delete(ctx context.Context, db DBTX, id int64) error
}

// Repository is a generic CRUD surface over one entity type bound to one
// storage-record type, parameterized by a Mapper pair. It executes
// against the DBTX it was constructed with and never manages its own
// transaction boundary; composing repository calls into a transaction is
// the SessionManager's job.
type Repository[E Entity, M any] struct {
	entity string
	db     DBTX
	ops    RecordOps[M]
	mapper Mapper[E, M]
	logger *slog.Logger
}

// NewRepository creates a Repository for the named entity type.
// The entity name appears in NotFoundError messages ("Story", "Page").
// If logger is nil, the default logger is used.
func NewRepository[E Entity, M any](
	entity string,
	db DBTX,
	ops RecordOps[M],
	mapper Mapper[E, M],
	logger *slog.Logger,
) *Repository[E, M] {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository[E, M]{
		entity: entity,
		db:     db,
		ops:    ops,
		mapper: mapper,
		logger: logger.With(slog.String("component", "repository"), slog.String("entity", entity)),
	}
}

// WithTx returns a Repository bound to the given transaction or
// connection, sharing the entity binding and mapper.
func (r *Repository[E, M]) WithTx(db DBTX) *Repository[E, M] {
	return &Repository[E, M]{
		entity: r.entity,
		db:     db,
		ops:    r.ops,
		mapper: r.mapper,
		logger: r.logger,
	}
}

// Add maps the entity to a record, inserts it, and returns the entity
// re-mapped from the stored record so storage-assigned fields
// (identifier, created_at, modified_at) are populated.
func (r *Repository[E, M]) Add(ctx context.Context, entity E) (E, error) {
	var zero E

	rec, err := r.ops.Insert(ctx, r.db, r.mapper.ToRecord(entity))
	if err != nil {
		return zero, err
	}
	return r.mapper.ToEntity(rec), nil
}

// Update overwrites the stored record with the entity's identifier.
// It is strict: updating an entity whose identifier does not exist
// fails with NotFoundError instead of silently creating a record.
// Callers that want insert-or-update semantics use Upsert.
func (r *Repository[E, M]) Update(ctx context.Context, entity E) (E, error) {
	var zero E

	rec, err := r.ops.Update(ctx, r.db, r.mapper.ToRecord(entity))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return zero, NewNotFoundError(r.entity, map[string]any{"id": entity.EntityID()})
		}
		return zero, err
	}
	return r.mapper.ToEntity(rec), nil
}

// Upsert inserts the record or overwrites the existing one with the same
// identifier, returning the merged, re-mapped entity.
func (r *Repository[E, M]) Upsert(ctx context.Context, entity E) (E, error) {
	var zero E

	rec, err := r.ops.Upsert(ctx, r.db, r.mapper.ToRecord(entity))
	if err != nil {
		return zero, err
	}
	return r.mapper.ToEntity(rec), nil
}

// Remove deletes the record matching the entity's identifier.
// This is an idempotent delete by value: a missing record is silently
// skipped. RemoveByID is the strict variant.
func (r *Repository[E, M]) Remove(ctx context.Context, entity E) error {
	err := r.ops.Delete(ctx, r.db, entity.EntityID())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.logger.Debug("remove skipped, record already absent",
				slog.Int64("id", entity.EntityID()))
			return nil
		}
		return err
	}
	return nil
}

// RemoveByID deletes the record with the given identifier, failing with
// NotFoundError naming the entity type and the identifier when absent.
func (r *Repository[E, M]) RemoveByID(ctx context.Context, id int64) error {
	err := r.ops.Delete(ctx, r.db, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewNotFoundError(r.entity, map[string]any{"id": id})
		}
		return err
	}
	return nil
}

// GetByID loads the entity with the given identifier, failing with
// NotFoundError naming the entity type and the identifier when absent.
func (r *Repository[E, M]) GetByID(ctx context.Context, id int64) (E, error) {
	var zero E

	rec, err := r.ops.Get(ctx, r.db, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return zero, NewNotFoundError(r.entity, map[string]any{"id": id})
		}
		return zero, err
	}
	return r.mapper.ToEntity(rec), nil
}
