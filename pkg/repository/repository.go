package repository

import (
	"context"

	"delivery-marketplace/pkg/db/option"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is a generic gorm store. Query structs follow gorm semantics:
// zero-valued fields are not part of the filter, use option.ApplyOperator for those.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	// FindOne returns nil, nil when nothing matches.
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	// CreateIfNotExists inserts resource and does nothing on a conflict over columns.
	CreateIfNotExists(ctx context.Context, resource *T, columns ...string) error
	Update(ctx context.Context, resourceID string, resource any) error
	// UpdateWhere updates the row with resourceID that also satisfies opts and
	// returns the number of affected rows.
	UpdateWhere(ctx context.Context, resourceID string, resource any, opts ...option.QueryOption) (int64, error)
	Delete(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
	BatchCreate(ctx context.Context, resources []*T) error
	BatchUpdate(ctx context.Context, resources []*T) error
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
}

type store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (s *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	if tx == nil {
		return s
	}
	return &store[T]{db: tx}
}

func (s *store[T]) scoped(ctx context.Context, opts []option.QueryOption) *gorm.DB {
	db := s.db.WithContext(ctx).Model(new(T))
	for _, opt := range opts {
		db = opt(db)
	}
	return db
}

func (s *store[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	var out []*T
	if err := s.scoped(ctx, opts).Where(query).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *store[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	var out []*T
	if err := s.scoped(ctx, opts).Where(query).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (s *store[T]) Create(ctx context.Context, resource *T) error {
	return s.db.WithContext(ctx).Create(resource).Error
}

func (s *store[T]) CreateIfNotExists(ctx context.Context, resource *T, columns ...string) error {
	conflict := clause.OnConflict{DoNothing: true}
	for _, c := range columns {
		conflict.Columns = append(conflict.Columns, clause.Column{Name: c})
	}
	return s.db.WithContext(ctx).Clauses(conflict).Create(resource).Error
}

func (s *store[T]) Update(ctx context.Context, resourceID string, resource any) error {
	return s.db.WithContext(ctx).Model(new(T)).Where("id = ?", resourceID).Updates(resource).Error
}

func (s *store[T]) UpdateWhere(ctx context.Context, resourceID string, resource any, opts ...option.QueryOption) (int64, error) {
	res := s.scoped(ctx, opts).Where("id = ?", resourceID).Updates(resource)
	return res.RowsAffected, res.Error
}

func (s *store[T]) Delete(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error) {
	db := s.db.WithContext(ctx)
	for _, opt := range opts {
		db = opt(db)
	}
	res := db.Where(query).Delete(new(T))
	return res.RowsAffected, res.Error
}

func (s *store[T]) BatchCreate(ctx context.Context, resources []*T) error {
	if len(resources) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(resources, 100).Error
}

func (s *store[T]) BatchUpdate(ctx context.Context, resources []*T) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range resources {
			if err := tx.Save(r).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *store[T]) Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error) {
	var total int64
	if err := s.scoped(ctx, opts).Where(query).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
