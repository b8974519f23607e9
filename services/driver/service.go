package driver

import (
	"context"
	"fmt"
	"time"

	"delivery-marketplace/pkg/auth"
	"delivery-marketplace/pkg/db/option"
	"delivery-marketplace/pkg/db/pagination"
	"delivery-marketplace/pkg/errutil"
	"delivery-marketplace/pkg/logger"
	"delivery-marketplace/pkg/metrics"
	"delivery-marketplace/pkg/repository"
	"delivery-marketplace/services/activity"
	"delivery-marketplace/services/approval"
	"delivery-marketplace/services/notification"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ActivityRecorder interface {
	Record(ctx context.Context, e activity.Entry) error
}

type Notifier interface {
	Notify(ctx context.Context, m notification.Message) (*notification.Notification, error)
}

type Service struct {
	drivers  repository.Repository[Driver]
	activity ActivityRecorder
	notifier Notifier
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Activity *activity.Service
	Notifier *notification.Service
}

func NewService(p ServiceParams) *Service {
	return newService(p.DB, p.Activity, p.Notifier)
}

func newService(db *gorm.DB, a ActivityRecorder, n Notifier) *Service {
	return &Service{
		drivers:  repository.ProvideStore[Driver](db),
		activity: a,
		notifier: n,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*Driver, error) {
	d, err := s.drivers.FindOne(ctx, &Driver{ID: id})
	if err != nil {
		return nil, errutil.DatabaseError("failed to load driver", err)
	}
	if d == nil {
		return nil, errutil.NotFound("driver not found", nil)
	}
	return d, nil
}

// GetByUserID resolves the driver profile of an authenticated user.
func (s *Service) GetByUserID(ctx context.Context, userID string) (*Driver, error) {
	d, err := s.drivers.FindOne(ctx, &Driver{UserID: userID})
	if err != nil {
		return nil, errutil.DatabaseError("failed to load driver", err)
	}
	if d == nil {
		return nil, errutil.NotFound("driver profile not found", nil)
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, f Filter, p pagination.Pagination) (*pagination.Page[Driver], error) {
	p = p.Normalize(pagination.MaxLimit)
	query := &Driver{Status: f.Status}

	total, err := s.drivers.Count(ctx, query)
	if err != nil {
		return nil, errutil.DatabaseError("failed to count drivers", err)
	}

	rows, err := s.drivers.Find(ctx, query,
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc"}),
		option.ApplyPagination(p),
	)
	if err != nil {
		return nil, errutil.DatabaseError("failed to list drivers", err)
	}
	return pagination.NewPage(rows, p, total), nil
}

var actionTitles = map[approval.Action]string{
	approval.ActionApprove:    "Your driver account has been approved",
	approval.ActionDeactivate: "Your driver account has been deactivated",
	approval.ActionReactivate: "Your driver account has been reactivated",
	approval.ActionSuspend:    "Your driver account has been suspended",
}

func (s *Service) ApplyAction(ctx context.Context, actor *auth.Principal, id string, action approval.Action, ip string) (*Driver, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next, noop, err := approval.Resolve(d.Status, action)
	if err != nil {
		return nil, err
	}
	if noop {
		return d, nil
	}

	affected, err := s.drivers.UpdateWhere(ctx, id,
		map[string]any{"status": next, "updated_at": time.Now()},
		option.ApplyOperator(option.Condition{Field: "status", Operator: option.EQ, Value: d.Status}),
	)
	if err != nil {
		return nil, errutil.DatabaseError("failed to update driver status", err)
	}
	if affected == 0 {
		return nil, errutil.Conflict("driver status changed concurrently", nil)
	}

	previous := d.Status
	d.Status = next

	log := logger.FromContext(ctx).With(zap.String("driver_id", d.ID), zap.String("action", string(action)))
	if err := s.activity.Record(ctx, activity.Entry{
		UserID:     actor.UserID,
		EntityType: activity.EntityDriver,
		EntityID:   d.ID,
		Action:     "driver." + string(action),
		Details: map[string]any{
			"previous_status": previous,
			"new_status":      next,
			"full_name":       d.FullName,
		},
		IPAddress: ip,
	}); err != nil {
		metrics.SideEffectFailuresTotal.WithLabelValues("activity_log").Inc()
		log.Warn("failed to record driver activity", zap.Error(err))
	}

	if _, err := s.notifier.Notify(ctx, notification.Message{
		UserID: d.UserID,
		Type:   notification.TypeDriverStatus,
		Title:  actionTitles[action],
		Body:   fmt.Sprintf("Your account status is now %s.", next),
		Data:   map[string]any{"driverId": d.ID, "status": next},
	}); err != nil {
		metrics.SideEffectFailuresTotal.WithLabelValues("notification").Inc()
		log.Warn("failed to notify driver", zap.Error(err))
	}

	return s.Get(ctx, id)
}
