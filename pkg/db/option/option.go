package option

import (
	"strings"

	"delivery-marketplace/pkg/db/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption mutates a gorm query before it is executed by a repository.
type QueryOption func(*gorm.DB) *gorm.DB

type Operator string

const (
	EQ   Operator = "="
	NEQ  Operator = "<>"
	GT   Operator = ">"
	GTE  Operator = ">="
	LT   Operator = "<"
	LTE  Operator = "<="
	IN   Operator = "IN"
	LIKE Operator = "LIKE"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
}

const defaultSortColumn = "created_at"

// WithSortBy orders by SortBy when it is allowed, created_at otherwise.
func WithSortBy(s QuerySortBy) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		column := s.SortBy
		if column == "" || (s.Allow != nil && !s.Allow[column]) {
			column = defaultSortColumn
		}

		desc := strings.EqualFold(s.OrderBy, "desc")
		return db.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc})
	}
}

func ApplyOperator(c Condition) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		column := clause.Column{Name: c.Field}

		var expr clause.Expression
		switch c.Operator {
		case NEQ:
			expr = clause.Neq{Column: column, Value: c.Value}
		case GT:
			expr = clause.Gt{Column: column, Value: c.Value}
		case GTE:
			expr = clause.Gte{Column: column, Value: c.Value}
		case LT:
			expr = clause.Lt{Column: column, Value: c.Value}
		case LTE:
			expr = clause.Lte{Column: column, Value: c.Value}
		case IN:
			values, _ := c.Value.([]any)
			if values == nil {
				if ss, ok := c.Value.([]string); ok {
					for _, v := range ss {
						values = append(values, v)
					}
				}
			}
			expr = clause.IN{Column: column, Values: values}
		case LIKE:
			expr = clause.Like{Column: column, Value: c.Value}
		default:
			expr = clause.Eq{Column: column, Value: c.Value}
		}

		return db.Where(expr)
	}
}

func ApplyPagination(p pagination.Pagination) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if p.Limit > 0 {
			db = db.Limit(p.Limit)
		}
		if offset := p.Offset(); offset > 0 {
			db = db.Offset(offset)
		}
		return db
	}
}

func WithLimit(limit int) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(limit)
	}
}

func WithPreload(association string) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Preload(association)
	}
}

func WithLockingUpdate() QueryOption {
	return LockingUpdate
}

// LockingUpdate is a gorm scope adding SELECT ... FOR UPDATE.
func LockingUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
