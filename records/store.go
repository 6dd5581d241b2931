package records

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-expense-tracker/persistence"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PageSize is the number of records listed per page
const PageSize = 25

// Store reads and writes records on behalf of an owner. Records that belong
// to somebody else are reported as not found.
type Store[T Record] struct {
	repository.Repository[T]
}

// NewStore returns a store for the record type built by newRecord
func NewStore[T Record](db *bun.DB, newRecord func() T) *Store[T] {
	return &Store[T]{
		Repository: repository.NewRepository[T](db, repository.ModelHandlers[T]{
			NewRecord: newRecord,
			GetID: func(r T) uuid.UUID {
				return r.GetID()
			},
			SetID: func(r T, id uuid.UUID) {
				r.SetID(id)
			},
			GetIdentifier: func() string {
				return "id"
			},
		}),
	}
}

// NewExpenseStore returns the expenses store
func NewExpenseStore(db *bun.DB) *Store[*Expense] {
	return NewStore(db, func() *Expense { return &Expense{} })
}

// NewIncomeStore returns the incomes store
func NewIncomeStore(db *bun.DB) *Store[*Income] {
	return NewStore(db, func() *Income { return &Income{} })
}

// Page returns the criteria selecting the given 1 based page
func Page(page int) repository.SelectCriteria {
	if page < 1 {
		page = 1
	}
	return repository.Paginate(PageSize, (page-1)*PageSize)
}

// ListByOwner returns the owner's records, newest first. Without a Page
// criteria the first page is returned.
func (s *Store[T]) ListByOwner(ctx context.Context, ownerID uuid.UUID, criteria ...repository.SelectCriteria) ([]T, int, error) {
	criteria = append([]repository.SelectCriteria{
		repository.SelectBy("owner_id", "=", ownerID.String()),
		repository.OrderBy("date DESC", "created_at DESC", "id DESC"),
	}, criteria...)
	return s.List(ctx, criteria...)
}

// GetByOwner returns a single record if ownerID owns it
func (s *Store[T]) GetByOwner(ctx context.Context, ownerID, id uuid.UUID) (T, error) {
	record, err := s.GetByID(ctx, id.String(), repository.SelectBy("owner_id", "=", ownerID.String()))
	if err != nil && persistence.IsRecordNotFound(err) {
		return record, persistence.NewRecordNotFound().WithMetadata(map[string]any{
			"id": id.String(),
		})
	}
	return record, err
}

// CreateForOwner stores record as belonging to ownerID
func (s *Store[T]) CreateForOwner(ctx context.Context, ownerID uuid.UUID, record T) (T, error) {
	if ownerID == uuid.Nil {
		var zero T
		return zero, goerrors.New("record requires an owner", goerrors.CategoryBadInput)
	}
	record.SetOwnerID(ownerID)
	return s.Create(ctx, record)
}

// UpdateForOwner saves the editable columns of record only if ownerID owns
// it. Zero values are written, so a cleared description stays cleared.
func (s *Store[T]) UpdateForOwner(ctx context.Context, ownerID uuid.UUID, record T) (T, error) {
	record.SetOwnerID(ownerID)

	criteria := []repository.UpdateCriteria{
		repository.UpdateBy("owner_id", "=", ownerID.String()),
		repository.UpdateSetColumn("updated_at", time.Now().UTC()),
	}
	for col, val := range record.EditableColumns() {
		criteria = append(criteria, repository.UpdateSetColumn(col, val))
	}

	updated, err := s.Update(ctx, record, criteria...)
	if err != nil && persistence.IsRecordNotFound(err) {
		return updated, persistence.NewRecordNotFound().WithMetadata(map[string]any{
			"id": record.GetID().String(),
		})
	}
	return updated, err
}

// DeleteForOwner removes the record only if ownerID owns it
func (s *Store[T]) DeleteForOwner(ctx context.Context, ownerID, id uuid.UUID) error {
	record, err := s.GetByOwner(ctx, ownerID, id)
	if err != nil {
		return err
	}
	return s.Delete(ctx, record)
}

// Options lists category and source names for the record forms
type Options struct {
	db *bun.DB
}

func NewOptions(db *bun.DB) *Options {
	return &Options{db: db}
}

// Categories returns expense category names sorted by name
func (o *Options) Categories(ctx context.Context) ([]string, error) {
	var names []string
	err := o.db.NewSelect().Model((*Category)(nil)).Column("name").OrderExpr("name ASC").Scan(ctx, &names)
	return names, err
}

// Sources returns income source names sorted by name
func (o *Options) Sources(ctx context.Context) ([]string, error) {
	var names []string
	err := o.db.NewSelect().Model((*Source)(nil)).Column("name").OrderExpr("name ASC").Scan(ctx, &names)
	return names, err
}
