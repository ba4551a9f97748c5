package application

import (
	"context"
	"errors"
	"time"

	"github.com/binodtmg/esewa-settlement-service/internal/domain"
	"github.com/binodtmg/esewa-settlement-service/internal/esewa"
	"github.com/binodtmg/esewa-settlement-service/internal/kafka"
	"github.com/binodtmg/esewa-settlement-service/internal/logger"
	"github.com/binodtmg/esewa-settlement-service/internal/repository"
)

var (
	// ErrReconcileInProgress: another process holds the per-transaction
	// lock. The caller retries and lands on the idempotency path.
	ErrReconcileInProgress = errors.New("reconciliation in progress")
	// ErrGatewayPending: the gateway has not reached a terminal verdict
	// (PENDING/AMBIGUOUS). The order stays PENDING for a later attempt.
	ErrGatewayPending = errors.New("gateway verdict pending")
)

// TxLocker is the cross-process per-transaction guard (redis). Best-effort:
// the repository claim remains the authority.
type TxLocker interface {
	Acquire(ctx context.Context, transactionUUID string) (token string, ok bool, err error)
	Release(ctx context.Context, transactionUUID, token string) error
}

// GatewayVerifier double-checks a confirmation against eSewa's transaction
// status API.
type GatewayVerifier interface {
	CheckStatus(ctx context.Context, transactionUUID, totalAmount string) (domain.GatewayStatus, error)
}

type SettlementPublisher interface {
	PublishSettlement(ctx context.Context, ev kafka.SettlementEvent) error
}

type SettlementService struct {
	repo     repository.OrderRepo
	lock     TxLocker            // optional
	pub      SettlementPublisher // optional
	verifier GatewayVerifier     // optional
	secret   string
	ttl      time.Duration
	now      func() time.Time
}

func NewSettlementService(repo repository.OrderRepo, secret string, ttl time.Duration) *SettlementService {
	return &SettlementService{
		repo:   repo,
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *SettlementService) WithLock(l TxLocker) *SettlementService {
	s.lock = l
	return s
}

func (s *SettlementService) WithPublisher(p SettlementPublisher) *SettlementService {
	s.pub = p
	return s
}

func (s *SettlementService) WithVerifier(v GatewayVerifier) *SettlementService {
	s.verifier = v
	return s
}

// Reconcile decides the fate of the order matching a validated payment
// confirmation and applies side effects at most once.
//
// The error return is reserved for cases where no terminal decision was
// reached (infrastructure failure, lock contention, non-terminal gateway
// verdict); the order stays PENDING and the next attempt is safe.
func (s *SettlementService) Reconcile(ctx context.Context, msg *domain.PaymentMessage) (domain.Outcome, error) {
	uid := msg.TransactionUUID

	if !esewa.Verify(msg, s.secret) {
		logger.Warn("signature verification failed", "transaction_uuid", uid)
		return domain.OutcomeRejected(domain.ReasonBadSignature, ""), nil
	}

	if s.lock != nil {
		token, ok, err := s.lock.Acquire(ctx, uid)
		if err != nil {
			// degrade to the repository claim alone
			logger.Warn("tx lock unavailable", "transaction_uuid", uid, "err", err)
		} else if !ok {
			o, ferr := s.repo.FindByTransactionUUID(ctx, uid)
			if ferr == nil && o.Status.Terminal() {
				return domain.Outcome{Code: domain.AlreadySettled, OrderStatus: o.Status}, nil
			}
			return domain.Outcome{}, ErrReconcileInProgress
		} else {
			defer func() {
				if rerr := s.lock.Release(ctx, uid, token); rerr != nil {
					logger.Warn("tx lock release failed", "transaction_uuid", uid, "err", rerr)
				}
			}()
		}
	}

	o, err := s.repo.FindByTransactionUUID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			logger.Warn("confirmation for unknown transaction", "transaction_uuid", uid)
			return domain.OutcomeRejected(domain.ReasonUnknownTransaction, ""), nil
		}
		return domain.Outcome{}, err
	}

	if o.Status.Terminal() {
		return domain.Outcome{Code: domain.AlreadySettled, OrderStatus: o.Status}, nil
	}

	if msg.AmountPaisa != o.TotalAmount {
		logger.Warn("amount mismatch, treating as tampering",
			"transaction_uuid", uid, "order_amount", o.TotalAmount, "gateway_amount", msg.AmountPaisa)
		return s.fail(ctx, o, domain.FailAmountMismatch,
			domain.OutcomeRejected(domain.ReasonAmountMismatch, domain.OrderFailed))
	}

	if s.now().Sub(o.CreatedAt) > s.ttl {
		logger.Warn("confirmation past settlement TTL",
			"transaction_uuid", uid, "created_at", o.CreatedAt)
		return s.fail(ctx, o, domain.FailExpired,
			domain.OutcomeRejected(domain.ReasonExpired, domain.OrderFailed))
	}

	status := msg.Status
	if status == domain.GatewayComplete && s.verifier != nil {
		status, err = s.verifier.CheckStatus(ctx, uid, msg.TotalAmount)
		if err != nil {
			logger.Warn("gateway status check failed", "transaction_uuid", uid, "err", err)
			return domain.Outcome{}, err
		}
	}

	switch status {
	case domain.GatewayComplete:
		return s.settle(ctx, o)
	case domain.GatewayPending, domain.GatewayAmbiguous:
		return domain.Outcome{}, ErrGatewayPending
	default:
		// FAILED, CANCELED, NOT_FOUND, FULL_REFUND, PARTIAL_REFUND
		return s.fail(ctx, o, domain.FailGatewayDeclined,
			domain.Outcome{Code: domain.SettledFailed, OrderStatus: domain.OrderFailed})
	}
}

func (s *SettlementService) settle(ctx context.Context, o *domain.Order) (domain.Outcome, error) {
	if !domain.CanTransition(o.Status, domain.OrderCompleted) {
		return domain.Outcome{Code: domain.AlreadySettled, OrderStatus: o.Status}, nil
	}
	settled, err := s.repo.SettleCompleted(ctx, o.TransactionUUID)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadySettled) {
			return domain.Outcome{Code: domain.AlreadySettled, OrderStatus: settled.Status}, nil
		}
		if errors.Is(err, repository.ErrInsufficientStock) {
			// payment is taken, goods are not available: distinct outcome
			// feeding the compensation workflow
			logger.Error("stock shortfall at settlement", "transaction_uuid", o.TransactionUUID)
			out := domain.Outcome{Code: domain.StockShortfall, OrderStatus: domain.OrderFailed}
			s.publish(ctx, settled, out)
			return out, nil
		}
		return domain.Outcome{}, err
	}

	out := domain.Outcome{Code: domain.SettledCompleted, OrderStatus: domain.OrderCompleted}
	s.publish(ctx, settled, out)
	logger.Info("order settled", "transaction_uuid", o.TransactionUUID, "order_id", settled.ID)
	return out, nil
}

func (s *SettlementService) fail(ctx context.Context, o *domain.Order, reason string, out domain.Outcome) (domain.Outcome, error) {
	if !domain.CanTransition(o.Status, domain.OrderFailed) {
		return domain.Outcome{Code: domain.AlreadySettled, OrderStatus: o.Status}, nil
	}
	failed, err := s.repo.MarkFailed(ctx, o.TransactionUUID, reason)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadySettled) {
			return domain.Outcome{Code: domain.AlreadySettled, OrderStatus: failed.Status}, nil
		}
		return domain.Outcome{}, err
	}
	s.publish(ctx, failed, out)
	return out, nil
}

// publish is best-effort; a lost event never blocks or reverses settlement.
func (s *SettlementService) publish(ctx context.Context, o *domain.Order, out domain.Outcome) {
	if s.pub == nil || o == nil {
		return
	}
	settledAt := s.now().UTC()
	if o.SettledAt != nil {
		settledAt = *o.SettledAt
	}
	ev := kafka.SettlementEvent{
		TransactionUUID: o.TransactionUUID,
		OrderID:         o.ID.String(),
		Status:          o.Status,
		Outcome:         out.Code,
		Reason:          string(out.Reason),
		TotalAmount:     o.TotalAmount,
		SettledAt:       settledAt,
	}
	if out.Code == domain.StockShortfall {
		ev.Reason = domain.FailInsufficientStock
	}
	if err := s.pub.PublishSettlement(ctx, ev); err != nil {
		logger.Warn("settlement event publish failed", "transaction_uuid", o.TransactionUUID, "err", err)
	}
}

// OrderStatus serves the success page's confirmatory second call. Pure
// read, never re-runs side effects.
func (s *SettlementService) OrderStatus(ctx context.Context, transactionUUID string) (*domain.Order, error) {
	return s.repo.FindByTransactionUUID(ctx, transactionUUID)
}

// CreateOrder registers a PENDING order on behalf of the checkout
// collaborator (dev/seed path).
func (s *SettlementService) CreateOrder(ctx context.Context, o *domain.Order) error {
	return s.repo.CreateOrder(ctx, o)
}
