package notification

import (
	"context"
	"encoding/json"

	"delivery-marketplace/pkg/db/option"
	"delivery-marketplace/pkg/db/pagination"
	"delivery-marketplace/pkg/errutil"
	"delivery-marketplace/pkg/repository"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db            *gorm.DB
	notifications repository.Repository[Notification]
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB, notifications: repository.ProvideStore[Notification](p.DB)}
}

func (s *Service) Notify(ctx context.Context, m Message) (*Notification, error) {
	if m.UserID == "" || m.Title == "" {
		return nil, errutil.ValidationFailed("recipient and title are required", nil)
	}

	data, err := json.Marshal(m.Data)
	if err != nil {
		return nil, errutil.BadRequest("notification data is not serialisable", err)
	}

	n := &Notification{
		ID:     uuid.NewString(),
		UserID: m.UserID,
		Type:   m.Type,
		Title:  m.Title,
		Body:   m.Body,
		Data:   datatypes.JSON(data),
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		zap.L().Error("failed to create notification", zap.String("user_id", m.UserID), zap.String("type", m.Type), zap.Error(err))
		return nil, errutil.DatabaseError("failed to create notification", err)
	}

	return n, nil
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, p pagination.Pagination) (*pagination.Page[Notification], error) {
	p = p.Normalize(pagination.MaxLimit)

	query := &Notification{UserID: userID}
	var filters []option.QueryOption
	if unreadOnly {
		// is_read=false is a zero value and would be dropped from the struct query.
		filters = append(filters, option.ApplyOperator(option.Condition{Field: "is_read", Operator: option.EQ, Value: false}))
	}

	total, err := s.notifications.Count(ctx, query, filters...)
	if err != nil {
		return nil, errutil.DatabaseError("failed to count notifications", err)
	}

	rows, err := s.notifications.Find(ctx, query, append(filters,
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc"}),
		option.ApplyPagination(p),
	)...)
	if err != nil {
		return nil, errutil.DatabaseError("failed to list notifications", err)
	}

	return pagination.NewPage(rows, p, total), nil
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	affected, err := s.notifications.UpdateWhere(ctx, id, map[string]any{"is_read": true},
		option.ApplyOperator(option.Condition{Field: "user_id", Operator: option.EQ, Value: userID}),
	)
	if err != nil {
		return errutil.DatabaseError("failed to mark notification read", err)
	}
	if affected == 0 {
		// Already read rows still match, so zero means missing or not owned.
		return errutil.NotFound("notification not found", nil)
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, errutil.DatabaseError("failed to mark notifications read", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	affected, err := s.notifications.Delete(ctx, &Notification{ID: id, UserID: userID})
	if err != nil {
		return errutil.DatabaseError("failed to delete notification", err)
	}
	if affected == 0 {
		return errutil.NotFound("notification not found", nil)
	}
	return nil
}
