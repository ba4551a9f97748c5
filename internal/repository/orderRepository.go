package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/binodtmg/esewa-settlement-service/internal/domain"
	"github.com/binodtmg/esewa-settlement-service/internal/logger"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAlreadyExists = errors.New("order already exists")
	// ErrAlreadySettled carries the idempotent-replay case: the order is
	// terminal and no side effect was re-applied.
	ErrAlreadySettled = errors.New("order already settled")
	// ErrInsufficientStock is the settlement-time inventory emergency: the
	// customer has paid but a line item cannot be fulfilled.
	ErrInsufficientStock = errors.New("insufficient stock at settlement")
)

type OrderRepo interface {
	CreateOrder(ctx context.Context, o *domain.Order) error
	FindByTransactionUUID(ctx context.Context, transactionUUID string) (*domain.Order, error)
	// MarkFailed claims PENDING -> FAILED. When the order is already
	// terminal it returns the current state with ErrAlreadySettled.
	MarkFailed(ctx context.Context, transactionUUID, reason string) (*domain.Order, error)
	// SettleCompleted claims PENDING -> COMPLETED and decrements stock for
	// every line item in one transaction. ErrAlreadySettled when terminal,
	// ErrInsufficientStock when a decrement cannot be honored (the order is
	// then marked FAILED with a distinct reason).
	SettleCompleted(ctx context.Context, transactionUUID string) (*domain.Order, error)
	UpsertProduct(ctx context.Context, id uuid.UUID, name string, stock int64) error
	ProductStock(ctx context.Context, id uuid.UUID) (int64, error)
}

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(p *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: p}
}

func (r *OrderRepository) CreateOrder(ctx context.Context, o *domain.Order) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.Status = domain.OrderPending

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, transaction_uuid, total_amount, status, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		o.ID, o.TransactionUUID, o.TotalAmount, o.Status, o.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrOrderAlreadyExists
		}
		return err
	}

	if len(o.Items) > 0 {
		batch := &pgx.Batch{}
		for _, it := range o.Items {
			batch.Queue(
				`INSERT INTO order_items (order_id, product_id, quantity, unit_price)
				 VALUES ($1, $2, $3, $4)`,
				o.ID, it.ProductID, it.Quantity, it.UnitPrice,
			)
		}
		br := tx.SendBatch(ctx, batch)
		if err = br.Close(); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	tx = nil
	return nil
}

func (r *OrderRepository) FindByTransactionUUID(ctx context.Context, transactionUUID string) (*domain.Order, error) {
	o, err := scanOrder(ctx, r.pool, transactionUUID)
	if err != nil {
		return nil, err
	}
	items, err := r.loadItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (r *OrderRepository) MarkFailed(ctx context.Context, transactionUUID, reason string) (*domain.Order, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders
		 SET status = $2, failure_reason = $3, settled_at = now()
		 WHERE transaction_uuid = $1 AND status = $4`,
		transactionUUID, domain.OrderFailed, reason, domain.OrderPending,
	)
	if err != nil {
		return nil, err
	}

	o, ferr := r.FindByTransactionUUID(ctx, transactionUUID)
	if ferr != nil {
		return nil, ferr
	}
	if tag.RowsAffected() == 0 {
		// someone else reached a terminal state first
		return o, ErrAlreadySettled
	}
	return o, nil
}

func (r *OrderRepository) SettleCompleted(ctx context.Context, transactionUUID string) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Row lock on the order linearizes concurrent attempts for the same
	// transaction_uuid across processes.
	o := &domain.Order{}
	var settledAt *time.Time
	var failureReason *string
	err = tx.QueryRow(ctx,
		`SELECT id, transaction_uuid, total_amount, status, failure_reason, created_at, settled_at
		 FROM orders WHERE transaction_uuid = $1 FOR UPDATE`,
		transactionUUID,
	).Scan(&o.ID, &o.TransactionUUID, &o.TotalAmount, &o.Status, &failureReason, &o.CreatedAt, &settledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if failureReason != nil {
		o.FailureReason = *failureReason
	}
	o.SettledAt = settledAt

	items, err := r.loadItemsTx(ctx, tx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items

	if o.Status.Terminal() {
		return o, ErrAlreadySettled
	}

	for _, it := range o.Items {
		tag, err := tx.Exec(ctx,
			`UPDATE products SET stock_quantity = stock_quantity - $2
			 WHERE id = $1 AND stock_quantity >= $2`,
			it.ProductID, it.Quantity,
		)
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 0 {
			// payment is already taken; abandon the decrements and record
			// the shortfall on the order outside this transaction
			_ = tx.Rollback(ctx)
			tx = nil
			failed, ferr := r.MarkFailed(ctx, transactionUUID, domain.FailInsufficientStock)
			if ferr != nil && !errors.Is(ferr, ErrAlreadySettled) {
				logger.Error("mark failed after stock shortfall", "transaction_uuid", transactionUUID, "err", ferr)
				return nil, ferr
			}
			return failed, ErrInsufficientStock
		}
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx,
		`UPDATE orders SET status = $2, settled_at = $3 WHERE id = $1`,
		o.ID, domain.OrderCompleted, now,
	)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	tx = nil

	o.Status = domain.OrderCompleted
	o.SettledAt = &now
	return o, nil
}

func (r *OrderRepository) UpsertProduct(ctx context.Context, id uuid.UUID, name string, stock int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO products (id, name, stock_quantity) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, stock_quantity = EXCLUDED.stock_quantity`,
		id, name, stock,
	)
	return err
}

func (r *OrderRepository) ProductStock(ctx context.Context, id uuid.UUID) (int64, error) {
	var stock int64
	err := r.pool.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id = $1`, id).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrOrderNotFound
		}
		return 0, err
	}
	return stock, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanOrder(ctx context.Context, q queryRower, transactionUUID string) (*domain.Order, error) {
	o := &domain.Order{}
	var failureReason *string
	err := q.QueryRow(ctx,
		`SELECT id, transaction_uuid, total_amount, status, failure_reason, created_at, settled_at
		 FROM orders WHERE transaction_uuid = $1`,
		transactionUUID,
	).Scan(&o.ID, &o.TransactionUUID, &o.TotalAmount, &o.Status, &failureReason, &o.CreatedAt, &o.SettledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if failureReason != nil {
		o.FailureReason = *failureReason
	}
	return o, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT product_id, quantity, unit_price FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func (r *OrderRepository) loadItemsTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := tx.Query(ctx,
		`SELECT product_id, quantity, unit_price FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func collectItems(rows pgx.Rows) ([]domain.OrderItem, error) {
	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
