package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Request order statuses. The workflow is linear and forward-only:
// PENDING_ACCEPTANCE -> BOOKED_FOR_SUPPLY -> SUPPLIED -> SUPPLIED_AND_PAID,
// with CANCELLED reachable from any non-terminal status.
const (
	OrderPendingAcceptance = "PENDING_ACCEPTANCE"
	OrderBookedForSupply   = "BOOKED_FOR_SUPPLY"
	OrderSupplied          = "SUPPLIED"
	OrderSuppliedAndPaid   = "SUPPLIED_AND_PAID"
	OrderCancelled         = "CANCELLED"
)

// CanTransition reports whether an order may move from one status to another.
// Stage skipping is rejected: payment cannot be confirmed before supply, and
// supply cannot be confirmed before acceptance.
func CanTransition(from, to string) bool {
	switch to {
	case OrderBookedForSupply:
		return from == OrderPendingAcceptance
	case OrderSupplied:
		return from == OrderBookedForSupply
	case OrderSuppliedAndPaid:
		return from == OrderSupplied
	case OrderCancelled:
		return from != OrderSuppliedAndPaid && from != OrderCancelled
	default:
		return false
	}
}

// orderStatuses lists every status an order row can hold.
var orderStatuses = []string{
	OrderPendingAcceptance,
	OrderBookedForSupply,
	OrderSupplied,
	OrderSuppliedAndPaid,
	OrderCancelled,
}

// StatusesAllowing returns the source statuses from which the target status
// is reachable. The UPDATE guards are built from this, so the transition
// table is the single authority on what moves are legal.
func StatusesAllowing(to string) []string {
	var from []string
	for _, s := range orderStatuses {
		if CanTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}

// RequestOrder is a farmer's fulfillment pledge against a produce request.
// Stage timestamps are set exactly once, in order.
type RequestOrder struct {
	ID           int64      `json:"id"`
	Ref          string     `json:"ref"`
	RequestID    int64      `json:"request_id"`
	FarmerID     int64      `json:"farmer_id"`
	Quantity     float64    `json:"quantity"`
	Status       string     `json:"status"`
	DateCreated  time.Time  `json:"date_created"`
	DateAccepted *time.Time `json:"date_accepted,omitempty"`
	DateSupplied *time.Time `json:"date_supplied,omitempty"`
	DatePaid     *time.Time `json:"date_paid,omitempty"`
}

type OrdersStore struct {
	db *pgxpool.Pool
}

const orderColumns = `id, ref, request_id, farmer_id, quantity, status, date_created, date_accepted, date_supplied, date_paid`

// Create inserts a new order, guarded so that only ACTIVE requests accept
// orders. The guard lives in the INSERT itself, so a concurrent cancel of the
// parent request cannot slip an order in behind it.
func (s *OrdersStore) Create(ctx context.Context, order *RequestOrder) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
	  INSERT INTO request_orders (ref, request_id, farmer_id, quantity, status, date_created)
	  SELECT $1, pr.id, $3, $4, 'PENDING_ACCEPTANCE', NOW()
	  FROM produce_requests pr
	  WHERE pr.id = $2 AND pr.status = 'ACTIVE'
	  RETURNING id, status, date_created
	`

	err := s.db.QueryRow(ctx, query, order.Ref, order.RequestID, order.FarmerID, order.Quantity).
		Scan(&order.ID, &order.Status, &order.DateCreated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing request from one no longer open.
			var status string
			row := s.db.QueryRow(ctx, `SELECT status FROM produce_requests WHERE id = $1`, order.RequestID)
			if scanErr := row.Scan(&status); scanErr != nil {
				if errors.Is(scanErr, pgx.ErrNoRows) {
					return ErrNotFound
				}
				return scanErr
			}
			return ErrRequestNotOpen
		}
		return err
	}
	return nil
}

func (s *OrdersStore) GetByID(ctx context.Context, orderID int64) (*RequestOrder, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	order := &RequestOrder{}
	err := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM request_orders WHERE id = $1`, orderID).Scan(
		&order.ID, &order.Ref, &order.RequestID, &order.FarmerID, &order.Quantity,
		&order.Status, &order.DateCreated, &order.DateAccepted, &order.DateSupplied, &order.DatePaid,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *OrdersStore) ListByRequest(ctx context.Context, requestID int64) ([]RequestOrder, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx,
		`SELECT `+orderColumns+` FROM request_orders WHERE request_id = $1 ORDER BY date_created`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RequestOrder
	for rows.Next() {
		var order RequestOrder
		if err := rows.Scan(
			&order.ID, &order.Ref, &order.RequestID, &order.FarmerID, &order.Quantity,
			&order.Status, &order.DateCreated, &order.DateAccepted, &order.DateSupplied, &order.DatePaid,
		); err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, rows.Err()
}

// Accept moves a pending order to BOOKED_FOR_SUPPLY and stamps date_accepted.
func (s *OrdersStore) Accept(ctx context.Context, orderID int64) (*RequestOrder, error) {
	query := `
	  UPDATE request_orders
	  SET status = 'BOOKED_FOR_SUPPLY', date_accepted = NOW()
	  WHERE id = $1 AND status = ANY($2)
	  RETURNING ` + orderColumns
	return s.transition(ctx, orderID, query, StatusesAllowing(OrderBookedForSupply))
}

// ConfirmSupply marks a booked order as SUPPLIED and stamps date_supplied.
func (s *OrdersStore) ConfirmSupply(ctx context.Context, orderID int64) (*RequestOrder, error) {
	query := `
	  UPDATE request_orders
	  SET status = 'SUPPLIED', date_supplied = NOW()
	  WHERE id = $1 AND status = ANY($2)
	  RETURNING ` + orderColumns
	return s.transition(ctx, orderID, query, StatusesAllowing(OrderSupplied))
}

// ConfirmPayment marks a supplied order as SUPPLIED_AND_PAID and stamps
// date_paid.
func (s *OrdersStore) ConfirmPayment(ctx context.Context, orderID int64) (*RequestOrder, error) {
	query := `
	  UPDATE request_orders
	  SET status = 'SUPPLIED_AND_PAID', date_paid = NOW()
	  WHERE id = $1 AND status = ANY($2)
	  RETURNING ` + orderColumns
	return s.transition(ctx, orderID, query, StatusesAllowing(OrderSuppliedAndPaid))
}

// Cancel is allowed from any state except the terminal ones.
func (s *OrdersStore) Cancel(ctx context.Context, orderID int64) (*RequestOrder, error) {
	query := `
	  UPDATE request_orders
	  SET status = 'CANCELLED'
	  WHERE id = $1 AND status = ANY($2)
	  RETURNING ` + orderColumns
	return s.transition(ctx, orderID, query, StatusesAllowing(OrderCancelled))
}

// transition runs a status-guarded UPDATE; the allowed set comes from the
// CanTransition table, so SQL and table cannot drift. The guard makes
// transitions on a single order linearizable: of two racing calls, at most
// one matches the WHERE clause. A zero-row result is re-checked to split "no
// such order" from "order not in the required status".
func (s *OrdersStore) transition(ctx context.Context, orderID int64, query string, allowed []string) (*RequestOrder, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	order := &RequestOrder{}
	err := s.db.QueryRow(ctx, query, orderID, allowed).Scan(
		&order.ID, &order.Ref, &order.RequestID, &order.FarmerID, &order.Quantity,
		&order.Status, &order.DateCreated, &order.DateAccepted, &order.DateSupplied, &order.DatePaid,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := s.GetByID(ctx, orderID); getErr != nil {
				return nil, getErr
			}
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	return order, nil
}
