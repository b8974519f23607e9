package activity

import (
	"context"
	"encoding/json"

	"delivery-marketplace/pkg/db/option"
	"delivery-marketplace/pkg/db/pagination"
	"delivery-marketplace/pkg/errutil"
	"delivery-marketplace/pkg/logger"
	"delivery-marketplace/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	node *snowflake.Node
	logs repository.Repository[ActivityLog]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		node: p.Node,
		logs: repository.ProvideStore[ActivityLog](p.DB),
	}
}

func (s *Service) Record(ctx context.Context, e Entry) error {
	if e.EntityType == "" || e.EntityID == "" || e.Action == "" {
		return errutil.ValidationFailed("entity type, entity id and action are required", nil)
	}

	details, err := json.Marshal(e.Details)
	if err != nil {
		return errutil.BadRequest("activity details are not serialisable", err)
	}

	row := &ActivityLog{
		ID:         s.node.Generate(),
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     e.Action,
		Details:    datatypes.JSON(details),
		IPAddress:  e.IPAddress,
	}
	if e.UserID != "" {
		row.UserID = &e.UserID
	}

	if err := s.logs.Create(ctx, row); err != nil {
		logger.FromContext(ctx).Error("failed to record activity",
			zap.String("entity_type", e.EntityType),
			zap.String("entity_id", e.EntityID),
			zap.String("action", e.Action),
			zap.Error(err),
		)
		return errutil.DatabaseError("failed to record activity", err)
	}

	return nil
}

// List returns logs newest first.
func (s *Service) List(ctx context.Context, f Filter, p pagination.Pagination) (*pagination.Page[ActivityLog], error) {
	p = p.Normalize(pagination.MaxLimit)

	query := &ActivityLog{EntityType: f.EntityType, EntityID: f.EntityID}
	var filters []option.QueryOption
	if f.UserID != "" {
		filters = append(filters, option.ApplyOperator(option.Condition{Field: "user_id", Operator: option.EQ, Value: f.UserID}))
	}

	total, err := s.logs.Count(ctx, query, filters...)
	if err != nil {
		return nil, errutil.DatabaseError("failed to count activity logs", err)
	}

	opts := append(filters,
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc"}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "desc", Allow: map[string]bool{"id": true}}),
		option.ApplyPagination(p),
	)

	rows, err := s.logs.Find(ctx, query, opts...)
	if err != nil {
		return nil, errutil.DatabaseError("failed to list activity logs", err)
	}

	return pagination.NewPage(rows, p, total), nil
}
