package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shamba/internal/params"
)

const (
	ListingOpen   = "OPEN"
	ListingClosed = "CLOSED"
)

// ProduceListing is a farmer's published offer of produce for sale.
type ProduceListing struct {
	ID            int64      `json:"id"`
	FarmerID      int64      `json:"farmer_id"`
	Produce       string     `json:"produce"`
	Quantity      float64    `json:"quantity"`
	Unit          string     `json:"unit"`
	PricePerUnit  float64    `json:"price_per_unit"`
	County        string     `json:"county"`
	AvailableFrom *time.Time `json:"available_from,omitempty"`
	Status        string     `json:"status"`
	PhotoURLs     []string   `json:"photo_urls"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type ListingFilter struct {
	Produce string
	County  string
}

type ListingsStore struct {
	db *pgxpool.Pool
}

func (s *ListingsStore) Create(ctx context.Context, listing *ProduceListing) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
	  INSERT INTO produce_listings (farmer_id, produce, quantity, unit, price_per_unit, county, available_from, status, photo_urls)
	  VALUES ($1, $2, $3, $4, $5, $6, $7, 'OPEN', $8)
	  RETURNING id, status, created_at, updated_at
	`

	if listing.PhotoURLs == nil {
		listing.PhotoURLs = []string{}
	}
	return s.db.QueryRow(
		ctx, query,
		listing.FarmerID, listing.Produce, listing.Quantity, listing.Unit,
		listing.PricePerUnit, listing.County, listing.AvailableFrom, listing.PhotoURLs,
	).Scan(&listing.ID, &listing.Status, &listing.CreatedAt, &listing.UpdatedAt)
}

func (s *ListingsStore) GetByID(ctx context.Context, listingID int64) (*ProduceListing, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
	  SELECT id, farmer_id, produce, quantity, unit, price_per_unit, county, available_from, status, photo_urls, created_at, updated_at
	  FROM produce_listings
	  WHERE id = $1
	`

	listing := &ProduceListing{}
	err := s.db.QueryRow(ctx, query, listingID).Scan(
		&listing.ID, &listing.FarmerID, &listing.Produce, &listing.Quantity, &listing.Unit,
		&listing.PricePerUnit, &listing.County, &listing.AvailableFrom, &listing.Status,
		&listing.PhotoURLs, &listing.CreatedAt, &listing.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return listing, nil
}

func (s *ListingsStore) List(ctx context.Context, filter ListingFilter, p params.Pagination) ([]ProduceListing, int, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
	  SELECT id, farmer_id, produce, quantity, unit, price_per_unit, county, available_from, status, photo_urls, created_at, updated_at, COUNT(*) OVER() AS total
	  FROM produce_listings
	  WHERE status = 'OPEN'
	    AND ($3 = '' OR produce ILIKE $3)
	    AND ($4 = '' OR county = $4)
	  ORDER BY created_at ` + p.SortDirection() + `
	  LIMIT $1 OFFSET $2
	`

	rows, err := s.db.Query(ctx, query, p.Limit, p.Offset, filter.Produce, filter.County)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []ProduceListing
	var total int
	for rows.Next() {
		var listing ProduceListing
		if err := rows.Scan(
			&listing.ID, &listing.FarmerID, &listing.Produce, &listing.Quantity, &listing.Unit,
			&listing.PricePerUnit, &listing.County, &listing.AvailableFrom, &listing.Status,
			&listing.PhotoURLs, &listing.CreatedAt, &listing.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, listing)
	}
	return out, total, rows.Err()
}

// Close is farmer-scoped: only the owning farmer can close a listing.
func (s *ListingsStore) Close(ctx context.Context, listingID, farmerID int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
	  UPDATE produce_listings
	  SET status = 'CLOSED', updated_at = NOW()
	  WHERE id = $1 AND farmer_id = $2 AND status = 'OPEN'
	`
	tag, err := s.db.Exec(ctx, query, listingID, farmerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetByID(ctx, listingID); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

func (s *ListingsStore) AddPhotoURL(ctx context.Context, listingID int64, url string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
	  UPDATE produce_listings
	  SET photo_urls = array_append(photo_urls, $1), updated_at = NOW()
	  WHERE id = $2
	`
	tag, err := s.db.Exec(ctx, query, url, listingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ListingsStore) RemovePhotoURL(ctx context.Context, listingID int64, url string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
	  UPDATE produce_listings
	  SET photo_urls = array_remove(photo_urls, $1), updated_at = NOW()
	  WHERE id = $2
	`
	tag, err := s.db.Exec(ctx, query, url, listingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
