package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerRecord is a passive reference to a milestone anchored on the
// distributed ledger. No verification happens here; the record only keeps the
// transaction id and consensus timestamp the submitter reported.
type LedgerRecord struct {
	ID          int64     `json:"id"`
	OrderID     int64     `json:"order_id"`
	Milestone   string    `json:"milestone"`
	TxID        string    `json:"tx_id"`
	PayloadHash string    `json:"payload_hash"`
	ConsensusAt time.Time `json:"consensus_at"`
	CreatedAt   time.Time `json:"created_at"`
}

type LedgerStore struct {
	db *pgxpool.Pool
}

func (s *LedgerStore) Create(ctx context.Context, rec *LedgerRecord) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
	  INSERT INTO ledger_records (order_id, milestone, tx_id, payload_hash, consensus_at)
	  VALUES ($1, $2, $3, $4, $5)
	  RETURNING id, created_at
	`
	return s.db.QueryRow(
		ctx, query, rec.OrderID, rec.Milestone, rec.TxID, rec.PayloadHash, rec.ConsensusAt,
	).Scan(&rec.ID, &rec.CreatedAt)
}

func (s *LedgerStore) ListByOrder(ctx context.Context, orderID int64) ([]LedgerRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
	  SELECT id, order_id, milestone, tx_id, payload_hash, consensus_at, created_at
	  FROM ledger_records
	  WHERE order_id = $1
	  ORDER BY created_at
	`

	rows, err := s.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LedgerRecord
	for rows.Next() {
		var rec LedgerRecord
		if err := rows.Scan(
			&rec.ID, &rec.OrderID, &rec.Milestone, &rec.TxID, &rec.PayloadHash, &rec.ConsensusAt, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
