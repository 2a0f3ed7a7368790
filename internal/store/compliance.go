package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ComplianceDocument references a due-diligence statement submitted for a
// supplied order, for example an EUDR declaration.
type ComplianceDocument struct {
	ID          int64     `json:"id"`
	OrderID     int64     `json:"order_id"`
	Kind        string    `json:"kind"`
	Reference   string    `json:"reference"`
	SubmittedAt time.Time `json:"submitted_at"`
	CreatedAt   time.Time `json:"created_at"`
}

type ComplianceStore struct {
	db *pgxpool.Pool
}

func (s *ComplianceStore) Create(ctx context.Context, doc *ComplianceDocument) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
	  INSERT INTO compliance_documents (order_id, kind, reference, submitted_at)
	  VALUES ($1, $2, $3, $4)
	  RETURNING id, created_at
	`
	return s.db.QueryRow(
		ctx, query, doc.OrderID, doc.Kind, doc.Reference, doc.SubmittedAt,
	).Scan(&doc.ID, &doc.CreatedAt)
}

func (s *ComplianceStore) ListByOrder(ctx context.Context, orderID int64) ([]ComplianceDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
	  SELECT id, order_id, kind, reference, submitted_at, created_at
	  FROM compliance_documents
	  WHERE order_id = $1
	  ORDER BY created_at
	`

	rows, err := s.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ComplianceDocument
	for rows.Next() {
		var doc ComplianceDocument
		if err := rows.Scan(&doc.ID, &doc.OrderID, &doc.Kind, &doc.Reference, &doc.SubmittedAt, &doc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}
