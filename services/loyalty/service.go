package loyalty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"delivery-marketplace/pkg/celengine"
	"delivery-marketplace/pkg/config"
	"delivery-marketplace/pkg/db/option"
	"delivery-marketplace/pkg/errutil"
	"delivery-marketplace/pkg/logger"
	"delivery-marketplace/pkg/metrics"
	"delivery-marketplace/pkg/repository"
	"delivery-marketplace/pkg/task"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultEarnExpression = "int(total)"
	maxTransactions       = 50
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	earnExpression string
	enqueuer       task.Enqueuer

	points repository.Repository[LoyaltyPoints]
	txns   repository.Repository[Transaction]
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Config   *config.Config
	Enqueuer task.Enqueuer `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	expr := defaultEarnExpression
	if p.Config != nil && p.Config.Loyalty.EarnExpression != "" {
		expr = p.Config.Loyalty.EarnExpression
	}

	return &Service{
		db:             p.DB,
		node:           p.Node,
		earnExpression: expr,
		enqueuer:       p.Enqueuer,
		points:         repository.ProvideStore[LoyaltyPoints](p.DB),
		txns:           repository.ProvideStore[Transaction](p.DB),
	}
}

// ReferralCode is "REF" plus the first eight hex characters of the customer id.
func ReferralCode(customerID string) string {
	hex := strings.ReplaceAll(customerID, "-", "")
	if len(hex) > 8 {
		hex = hex[:8]
	}
	return "REF" + strings.ToUpper(hex)
}

func (s *Service) GetOrCreate(ctx context.Context, customerID string) (*LoyaltyPoints, error) {
	if customerID == "" {
		return nil, errutil.ValidationFailed("customer id is required", nil)
	}

	existing, err := s.points.FindOne(ctx, &LoyaltyPoints{CustomerID: customerID})
	if err != nil {
		return nil, errutil.DatabaseError("failed to load loyalty points", err)
	}
	if existing != nil {
		return existing, nil
	}

	// Concurrent first reads race on the unique customer_id, the loser's
	// insert is dropped and both read the winner's row.
	if err := s.points.CreateIfNotExists(ctx, &LoyaltyPoints{
		ID:           uuid.NewString(),
		CustomerID:   customerID,
		ReferralCode: ReferralCode(customerID),
	}, "customer_id"); err != nil {
		return nil, errutil.DatabaseError("failed to create loyalty points", err)
	}

	created, err := s.points.FindOne(ctx, &LoyaltyPoints{CustomerID: customerID})
	if err != nil {
		return nil, errutil.DatabaseError("failed to load loyalty points", err)
	}
	if created == nil {
		return nil, errutil.Internal("loyalty points missing after create", nil)
	}
	return created, nil
}

// ListTransactions returns the newest transactions first. limit <= 0 or above
// 50 is treated as 50.
func (s *Service) ListTransactions(ctx context.Context, customerID string, limit int) ([]*Transaction, error) {
	if limit <= 0 || limit > maxTransactions {
		limit = maxTransactions
	}

	rows, err := s.txns.Find(ctx, &Transaction{CustomerID: customerID},
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc"}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "desc", Allow: map[string]bool{"id": true}}),
		option.WithLimit(limit),
	)
	if err != nil {
		return nil, errutil.DatabaseError("failed to list loyalty transactions", err)
	}
	if rows == nil {
		rows = []*Transaction{}
	}
	return rows, nil
}

func ComputeAvailableRewards(balance int64) []Reward {
	out := make([]Reward, len(rewardTiers))
	for i, r := range rewardTiers {
		r.Available = balance >= r.Points
		out[i] = r
	}
	return out
}

func (s *Service) Summary(ctx context.Context, customerID string) (*Summary, error) {
	var (
		acct *LoyaltyPoints
		txns []*Transaction
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		acct, err = s.GetOrCreate(gctx, customerID)
		return err
	})
	g.Go(func() (err error) {
		txns, err = s.ListTransactions(gctx, customerID, maxTransactions)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Summary{
		Balance:        acct.Balance,
		LifetimePoints: acct.LifetimeEarned,
		ReferralCode:   acct.ReferralCode,
		Rewards:        ComputeAvailableRewards(acct.Balance),
		Transactions:   txns,
	}, nil
}

type EarnInput struct {
	CustomerID  string
	OrderID     string
	Points      int64
	Description string
	Metadata    map[string]any
}

// Earn credits points for an order. Crediting an order twice returns the
// first transaction and changes nothing.
func (s *Service) Earn(ctx context.Context, in EarnInput) (*Transaction, error) {
	if in.Points <= 0 {
		return nil, errutil.ValidationFailed("points must be positive", nil)
	}
	if in.OrderID == "" {
		return nil, errutil.ValidationFailed("order id is required", nil)
	}

	meta, err := marshalMetadata(in.Metadata)
	if err != nil {
		return nil, err
	}

	entry, err := s.record(ctx, in.CustomerID, func(ctx context.Context, txns repository.Repository[Transaction], _ *LoyaltyPoints) (*Transaction, error) {
		existing, err := txns.FindOne(ctx, &Transaction{OrderID: &in.OrderID, Type: Earned})
		if err != nil || existing != nil {
			return existing, err
		}
		return &Transaction{
			Points:      in.Points,
			Type:        Earned,
			OrderID:     &in.OrderID,
			Description: in.Description,
			Metadata:    meta,
		}, nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost the race against a concurrent credit of the same order.
		return s.txns.FindOne(ctx, &Transaction{OrderID: &in.OrderID, Type: Earned})
	}
	return entry, err
}

// Redeem spends points on one of the reward tiers.
func (s *Service) Redeem(ctx context.Context, customerID string, points int64) (*Transaction, error) {
	tier, ok := rewardFor(points)
	if !ok {
		return nil, errutil.ValidationFailed("points must match a reward tier", nil,
			errutil.WithDetails(errutil.Detail{Field: "points", Message: "expected 100, 200 or 500"}))
	}

	return s.record(ctx, customerID, func(_ context.Context, _ repository.Repository[Transaction], acct *LoyaltyPoints) (*Transaction, error) {
		if acct.Balance < points {
			return nil, errutil.UnprocessableEntity("insufficient points", nil)
		}
		return &Transaction{
			Points:      -points,
			Type:        Redeemed,
			Description: fmt.Sprintf("Redeemed %d points for %d%% discount", points, tier.DiscountPercent),
		}, nil
	})
}

// ReverseForOrder takes back the points earned for a cancelled order, never
// more than the current balance. It returns nil when nothing was earned or the
// order was already reversed.
func (s *Service) ReverseForOrder(ctx context.Context, customerID, orderID string) (*Transaction, error) {
	earned, err := s.txns.FindOne(ctx, &Transaction{CustomerID: customerID, OrderID: &orderID, Type: Earned})
	if err != nil {
		return nil, errutil.DatabaseError("failed to load earned transaction", err)
	}
	if earned == nil {
		return nil, nil
	}

	entry, err := s.record(ctx, customerID, func(ctx context.Context, txns repository.Repository[Transaction], acct *LoyaltyPoints) (*Transaction, error) {
		existing, err := txns.FindOne(ctx, &Transaction{OrderID: &orderID, Type: Reversed})
		if err != nil || existing != nil {
			return existing, err
		}

		points := min(earned.Points, acct.Balance)
		if points <= 0 {
			return nil, nil
		}
		return &Transaction{
			Points:      -points,
			Type:        Reversed,
			OrderID:     &orderID,
			Description: "Points reversed for cancelled order",
		}, nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return s.txns.FindOne(ctx, &Transaction{OrderID: &orderID, Type: Reversed})
	}
	return entry, err
}

// VerifyBalance compares the stored balance with the sum of the transaction
// deltas. Drift is reported, not corrected.
func (s *Service) VerifyBalance(ctx context.Context, customerID string) (*BalanceReport, error) {
	acct, err := s.points.FindOne(ctx, &LoyaltyPoints{CustomerID: customerID})
	if err != nil {
		return nil, errutil.DatabaseError("failed to load loyalty account", err)
	}
	if acct == nil {
		return nil, errutil.NotFound("loyalty account not found", nil)
	}

	var sum int64
	if err := s.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("customer_id = ?", customerID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&sum).Error; err != nil {
		return nil, errutil.DatabaseError("failed to sum loyalty transactions", err)
	}

	report := &BalanceReport{
		CustomerID:    customerID,
		StoredBalance: acct.Balance,
		LedgerBalance: sum,
		Drift:         acct.Balance - sum,
	}
	report.Consistent = report.Drift == 0
	if !report.Consistent {
		zap.L().Warn("loyalty balance drift", zap.String("customer_id", customerID), zap.Int64("drift", report.Drift))
	}
	return report, nil
}

// PointsFor evaluates the earn expression over the order amounts.
func (s *Service) PointsFor(req AwardRequest) (int64, error) {
	points, err := celengine.EvaluateInt(s.earnExpression, map[string]interface{}{
		"total":        req.Total,
		"subtotal":     req.Subtotal,
		"delivery_fee": req.DeliveryFee,
		"currency":     req.Currency,
	})
	if err != nil {
		return 0, errutil.ConfigError("invalid loyalty earn expression", err)
	}
	return points, nil
}

// Award computes and credits the points for a paid order.
func (s *Service) Award(ctx context.Context, req AwardRequest) (*Transaction, error) {
	points, err := s.PointsFor(req)
	if err != nil {
		return nil, err
	}
	if points <= 0 {
		logger.FromContext(ctx).Info("order earns no loyalty points", zap.String("order_id", req.OrderID))
		return nil, nil
	}

	return s.Earn(ctx, EarnInput{
		CustomerID:  req.CustomerID,
		OrderID:     req.OrderID,
		Points:      points,
		Description: fmt.Sprintf("Earned %d points for order", points),
		Metadata: map[string]any{
			"total":    req.Total,
			"currency": req.Currency,
		},
	})
}

// ScheduleAward enqueues the award task. Without a task client, or when
// enqueueing fails, the award runs inline.
func (s *Service) ScheduleAward(ctx context.Context, req AwardRequest) error {
	log := logger.FromContext(ctx).With(zap.String("order_id", req.OrderID), zap.String("customer_id", req.CustomerID))

	if s.enqueuer != nil {
		t, err := NewAwardTask(req)
		if err == nil {
			_, err = s.enqueuer.Enqueue(ctx, t)
			if err == nil || errors.Is(err, asynq.ErrTaskIDConflict) {
				log.Info("loyalty award enqueued")
				return nil
			}
		}
		log.Warn("failed to enqueue loyalty award, awarding inline", zap.Error(err))
	}

	_, err := s.Award(ctx, req)
	return err
}

type buildFunc func(ctx context.Context, txns repository.Repository[Transaction], acct *LoyaltyPoints) (*Transaction, error)

// record runs build against the locked balance row and persists the
// transaction it returns together with the new balance. build returns nil
// for a no-op, or a row with a non-zero ID when it found an existing one.
func (s *Service) record(ctx context.Context, customerID string, build buildFunc) (*Transaction, error) {
	if _, err := s.GetOrCreate(ctx, customerID); err != nil {
		return nil, err
	}

	var (
		out     *Transaction
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		points := s.points.WithTrx(tx)
		txns := s.txns.WithTrx(tx)

		acct, err := points.FindOne(ctx, &LoyaltyPoints{CustomerID: customerID}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if acct == nil {
			return errutil.NotFound("loyalty account not found", nil)
		}

		entry, err := build(ctx, txns, acct)
		if err != nil {
			return err
		}
		if entry == nil || entry.ID != 0 {
			out = entry
			return nil
		}

		entry.ID = s.node.Generate()
		entry.CustomerID = customerID
		entry.BalanceAfter = acct.Balance + entry.Points
		if entry.BalanceAfter < 0 {
			return errutil.UnprocessableEntity("insufficient points", nil)
		}

		updates := map[string]any{
			"balance":    entry.BalanceAfter,
			"updated_at": time.Now(),
		}
		if entry.Type == Earned {
			updates["lifetime_earned"] = acct.LifetimeEarned + entry.Points
		}

		if err := txns.Create(ctx, entry); err != nil {
			return err
		}
		if err := points.Update(ctx, acct.ID, updates); err != nil {
			return err
		}

		out, created = entry, true
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		var be errutil.BaseError
		if errors.As(err, &be) {
			return nil, err
		}
		logger.FromContext(ctx).Error("loyalty transaction failed", zap.String("customer_id", customerID), zap.Error(err))
		return nil, errutil.DatabaseError("failed to record loyalty transaction", err)
	}

	if created {
		metrics.LoyaltyPointsTotal.WithLabelValues(out.Type.String()).Add(float64(abs(out.Points)))
	}
	return out, nil
}

func rewardFor(points int64) (Reward, bool) {
	for _, r := range rewardTiers {
		if r.Points == points {
			return r, true
		}
	}
	return Reward{}, false
}

func marshalMetadata(m map[string]any) (datatypes.JSON, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, errutil.BadRequest("metadata is not serialisable", err)
	}
	return datatypes.JSON(b), nil
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
