package restaurant

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

	"github.com/gosimple/slug"
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
	restaurants repository.Repository[Restaurant]
	menu        repository.Repository[MenuItem]

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
		restaurants: repository.ProvideStore[Restaurant](db),
		menu:        repository.ProvideStore[MenuItem](db),
		activity:    a,
		notifier:    n,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*Restaurant, error) {
	r, err := s.restaurants.FindOne(ctx, &Restaurant{ID: id})
	if err != nil {
		return nil, errutil.DatabaseError("failed to load restaurant", err)
	}
	if r == nil {
		return nil, errutil.NotFound("restaurant not found", nil)
	}
	return r, nil
}

func (s *Service) List(ctx context.Context, f Filter, p pagination.Pagination) (*pagination.Page[Restaurant], error) {
	p = p.Normalize(pagination.MaxLimit)
	query := &Restaurant{Status: f.Status}

	total, err := s.restaurants.Count(ctx, query)
	if err != nil {
		return nil, errutil.DatabaseError("failed to count restaurants", err)
	}

	rows, err := s.restaurants.Find(ctx, query,
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc"}),
		option.ApplyPagination(p),
	)
	if err != nil {
		return nil, errutil.DatabaseError("failed to list restaurants", err)
	}
	return pagination.NewPage(rows, p, total), nil
}

// MenuItems returns the requested items of one restaurant keyed by id.
// Items of other restaurants are never returned.
func (s *Service) MenuItems(ctx context.Context, restaurantID string, ids []string) (map[string]*MenuItem, error) {
	out := make(map[string]*MenuItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.menu.Find(ctx, &MenuItem{RestaurantID: restaurantID},
		option.ApplyOperator(option.Condition{Field: "id", Operator: option.IN, Value: ids}),
	)
	if err != nil {
		return nil, errutil.DatabaseError("failed to load menu items", err)
	}
	for _, m := range rows {
		out[m.ID] = m
	}
	return out, nil
}

var actionTitles = map[approval.Action]string{
	approval.ActionApprove:    "Your restaurant has been approved",
	approval.ActionDeactivate: "Your restaurant has been deactivated",
	approval.ActionReactivate: "Your restaurant has been reactivated",
	approval.ActionSuspend:    "Your restaurant has been suspended",
}

// ApplyAction moves a restaurant through the approval lifecycle on behalf of
// an admin. A request for the current status returns the restaurant unchanged.
func (s *Service) ApplyAction(ctx context.Context, actor *auth.Principal, id string, action approval.Action, ip string) (*Restaurant, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next, noop, err := approval.Resolve(r.Status, action)
	if err != nil {
		return nil, err
	}
	if noop {
		return r, nil
	}

	updates := map[string]any{
		"status":     next,
		"updated_at": time.Now(),
	}
	if next == approval.StatusActive && r.Slug == nil {
		sl, err := s.uniqueSlug(ctx, r)
		if err != nil {
			return nil, err
		}
		updates["slug"] = sl
	}

	affected, err := s.restaurants.UpdateWhere(ctx, id, updates,
		option.ApplyOperator(option.Condition{Field: "status", Operator: option.EQ, Value: r.Status}),
	)
	if err != nil {
		return nil, errutil.DatabaseError("failed to update restaurant status", err)
	}
	if affected == 0 {
		return nil, errutil.Conflict("restaurant status changed concurrently", nil)
	}

	previous := r.Status
	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.recordSideEffects(ctx, actor, updated, previous, action, ip)
	return updated, nil
}

func (s *Service) recordSideEffects(ctx context.Context, actor *auth.Principal, r *Restaurant, previous approval.Status, action approval.Action, ip string) {
	log := logger.FromContext(ctx).With(zap.String("restaurant_id", r.ID), zap.String("action", string(action)))

	if err := s.activity.Record(ctx, activity.Entry{
		UserID:     actor.UserID,
		EntityType: activity.EntityRestaurant,
		EntityID:   r.ID,
		Action:     "restaurant." + string(action),
		Details: map[string]any{
			"previous_status": previous,
			"new_status":      r.Status,
			"name":            r.Name,
		},
		IPAddress: ip,
	}); err != nil {
		metrics.SideEffectFailuresTotal.WithLabelValues("activity_log").Inc()
		log.Warn("failed to record restaurant activity", zap.Error(err))
	}

	if _, err := s.notifier.Notify(ctx, notification.Message{
		UserID: r.OwnerID,
		Type:   notification.TypeRestaurantStatus,
		Title:  actionTitles[action],
		Body:   fmt.Sprintf("%s is now %s.", r.Name, r.Status),
		Data:   map[string]any{"restaurantId": r.ID, "status": r.Status},
	}); err != nil {
		metrics.SideEffectFailuresTotal.WithLabelValues("notification").Inc()
		log.Warn("failed to notify restaurant owner", zap.Error(err))
	}
}

const maxSlugAttempts = 20

func (s *Service) uniqueSlug(ctx context.Context, r *Restaurant) (string, error) {
	base := slug.Make(r.Name)
	if base == "" {
		base = "restaurant"
	}

	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		n, err := s.restaurants.Count(ctx, &Restaurant{Slug: &candidate})
		if err != nil {
			return "", errutil.DatabaseError("failed to check restaurant slug", err)
		}
		if n == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}

	// Fall back to an id prefix.
	return fmt.Sprintf("%s-%s", base, r.ID[:min(8, len(r.ID))]), nil
}
