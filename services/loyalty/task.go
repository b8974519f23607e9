package loyalty

import (
	"context"
	"encoding/json"
	"fmt"

	"delivery-marketplace/pkg/errutil"
	"delivery-marketplace/pkg/task"
	"delivery-marketplace/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// OrderEligibility lets the task re-check an order before crediting it, since
// the order may have been cancelled while the task was queued.
type OrderEligibility interface {
	EligibleForAward(ctx context.Context, orderID string) (bool, error)
}

func NewAwardTask(req AwardRequest) (*asynq.Task, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.LoyaltyAward, payload,
		asynq.Queue(task.QueueDefault),
		asynq.MaxRetry(10),
		asynq.TaskID("loyalty-award-"+req.OrderID),
	), nil
}

type Task struct {
	svc    *Service
	orders OrderEligibility
}

type TaskParams struct {
	fx.In
	Service *Service
	Orders  OrderEligibility `optional:"true"`
}

func NewTask(p TaskParams) *Task {
	return &Task{svc: p.Service, orders: p.Orders}
}

func registerTaskHandlers(mux *asynq.ServeMux, t *Task) {
	mux.HandleFunc(taskname.LoyaltyAward, t.HandleAwardTask)
}

func (t *Task) HandleAwardTask(ctx context.Context, at *asynq.Task) error {
	var req AwardRequest
	if err := json.Unmarshal(at.Payload(), &req); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	log := zap.L().With(
		zap.String("task_type", at.Type()),
		zap.String("order_id", req.OrderID),
		zap.String("customer_id", req.CustomerID),
		zap.String("trace_id", req.TraceID),
	)
	log.Info("start loyalty award task")

	if t.orders != nil {
		ok, err := t.orders.EligibleForAward(ctx, req.OrderID)
		if err != nil {
			log.Error("failed to check order eligibility", zap.Error(err))
			return err
		}
		if !ok {
			log.Info("order no longer eligible for loyalty points")
			return nil
		}
	}

	entry, err := t.svc.Award(ctx, req)
	if err != nil {
		switch errutil.StatusOf(err) {
		case errutil.StatusValidationFailed, errutil.StatusConfigError:
			log.Error("loyalty award rejected", zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		log.Error("loyalty award failed", zap.Error(err))
		return err
	}

	if entry != nil {
		log.Info("loyalty award processed", zap.Int64("points", entry.Points), zap.Int64("balance_after", entry.BalanceAfter))
	}
	return nil
}
