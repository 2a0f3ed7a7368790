package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shamba/internal/params"
)

// Produce request statuses. Orders may only be created against an ACTIVE
// request.
const (
	RequestActive    = "ACTIVE"
	RequestInactive  = "INACTIVE"
	RequestCancelled = "CANCELLED"
	RequestClosed    = "CLOSED"
)

// ProduceRequest is a buyer's standing ask for a quantity of produce.
type ProduceRequest struct {
	ID           int64      `json:"id"`
	Ref          string     `json:"ref"`
	BuyerID      int64      `json:"buyer_id"`
	Produce      string     `json:"produce"`
	Quantity     float64    `json:"quantity"`
	Unit         string     `json:"unit"`
	PricePerUnit float64    `json:"price_per_unit"`
	Status       string     `json:"status"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type RequestsStore struct {
	db *pgxpool.Pool
}

func (s *RequestsStore) Create(ctx context.Context, req *ProduceRequest) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
	  INSERT INTO produce_requests (ref, buyer_id, produce, quantity, unit, price_per_unit, status, deadline)
	  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	  RETURNING id, created_at, updated_at
	`

	req.Status = RequestActive
	return s.db.QueryRow(
		ctx, query,
		req.Ref, req.BuyerID, req.Produce, req.Quantity, req.Unit, req.PricePerUnit, req.Status, req.Deadline,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
}

func (s *RequestsStore) GetByID(ctx context.Context, requestID int64) (*ProduceRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
	  SELECT id, ref, buyer_id, produce, quantity, unit, price_per_unit, status, deadline, created_at, updated_at
	  FROM produce_requests
	  WHERE id = $1
	`

	req := &ProduceRequest{}
	err := s.db.QueryRow(ctx, query, requestID).Scan(
		&req.ID, &req.Ref, &req.BuyerID, &req.Produce, &req.Quantity, &req.Unit,
		&req.PricePerUnit, &req.Status, &req.Deadline, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

func (s *RequestsStore) ListActive(ctx context.Context, p params.Pagination) ([]ProduceRequest, int, error) {
	query := `
	  SELECT id, ref, buyer_id, produce, quantity, unit, price_per_unit, status, deadline, created_at, updated_at, COUNT(*) OVER() AS total
	  FROM produce_requests
	  WHERE status = 'ACTIVE'
	  ORDER BY created_at ` + p.SortDirection() + `
	  LIMIT $1 OFFSET $2
	`
	return s.list(ctx, query, p.Limit, p.Offset)
}

func (s *RequestsStore) ListByBuyer(ctx context.Context, buyerID int64, p params.Pagination) ([]ProduceRequest, int, error) {
	query := `
	  SELECT id, ref, buyer_id, produce, quantity, unit, price_per_unit, status, deadline, created_at, updated_at, COUNT(*) OVER() AS total
	  FROM produce_requests
	  WHERE buyer_id = $3
	  ORDER BY created_at ` + p.SortDirection() + `
	  LIMIT $1 OFFSET $2
	`
	return s.list(ctx, query, p.Limit, p.Offset, buyerID)
}

func (s *RequestsStore) list(ctx context.Context, query string, args ...any) ([]ProduceRequest, int, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []ProduceRequest
	var total int
	for rows.Next() {
		var req ProduceRequest
		if err := rows.Scan(
			&req.ID, &req.Ref, &req.BuyerID, &req.Produce, &req.Quantity, &req.Unit,
			&req.PricePerUnit, &req.Status, &req.Deadline, &req.CreatedAt, &req.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, req)
	}
	return out, total, rows.Err()
}

func (s *RequestsStore) Cancel(ctx context.Context, requestID int64) error {
	return s.transition(ctx, requestID, RequestCancelled)
}

func (s *RequestsStore) Close(ctx context.Context, requestID int64) error {
	return s.transition(ctx, requestID, RequestClosed)
}

// transition moves an ACTIVE request to a terminal status. The status guard in
// the WHERE clause makes concurrent cancel/close attempts settle on exactly
// one winner.
func (s *RequestsStore) transition(ctx context.Context, requestID int64, status string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
	  UPDATE produce_requests
	  SET status = $1, updated_at = NOW()
	  WHERE id = $2 AND status = 'ACTIVE'
	`
	tag, err := s.db.Exec(ctx, query, status, requestID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetByID(ctx, requestID); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

// CloseExpired closes every ACTIVE request whose deadline has passed and
// returns the number of rows touched.
func (s *RequestsStore) CloseExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
	  UPDATE produce_requests
	  SET status = 'CLOSED', updated_at = NOW()
	  WHERE status = 'ACTIVE' AND deadline IS NOT NULL AND deadline < NOW()
	`
	tag, err := s.db.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
