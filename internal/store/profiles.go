package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Profile is a role-specific identity row. Its ID, not the user ID, is the
// principal once the holder authenticates under that role.
type Profile struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Role        string    `json:"role"`
	DisplayName string    `json:"display_name"`
	County      string    `json:"county,omitempty"`
	LicenseNo   string    `json:"license_no,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type ProfilesStore struct {
	db *pgxpool.Pool
}

func (s *ProfilesStore) CreateFarmer(ctx context.Context, userID int64, farmName, county string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	p := &Profile{UserID: userID, Role: RoleFarmer, DisplayName: farmName, County: county}
	query := `
	  INSERT INTO farmers (user_id, farm_name, county)
	  VALUES ($1, $2, $3)
	  RETURNING id, created_at
	`
	if err := s.db.QueryRow(ctx, query, userID, farmName, county).Scan(&p.ID, &p.CreatedAt); err != nil {
		return nil, mapProfileError(err)
	}
	return p, nil
}

func (s *ProfilesStore) CreateBuyer(ctx context.Context, userID int64, companyName string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	p := &Profile{UserID: userID, Role: RoleBuyer, DisplayName: companyName}
	query := `
	  INSERT INTO buyers (user_id, company_name)
	  VALUES ($1, $2)
	  RETURNING id, created_at
	`
	if err := s.db.QueryRow(ctx, query, userID, companyName).Scan(&p.ID, &p.CreatedAt); err != nil {
		return nil, mapProfileError(err)
	}
	return p, nil
}

func (s *ProfilesStore) CreateExporter(ctx context.Context, userID int64, companyName, licenseNo string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	p := &Profile{UserID: userID, Role: RoleExporter, DisplayName: companyName, LicenseNo: licenseNo}
	query := `
	  INSERT INTO exporters (user_id, company_name, license_no)
	  VALUES ($1, $2, $3)
	  RETURNING id, created_at
	`
	if err := s.db.QueryRow(ctx, query, userID, companyName, licenseNo).Scan(&p.ID, &p.CreatedAt); err != nil {
		return nil, mapProfileError(err)
	}
	return p, nil
}

func (s *ProfilesStore) FarmerByUserID(ctx context.Context, userID int64) (*Profile, error) {
	query := `
	  SELECT id, user_id, farm_name, COALESCE(county, ''), created_at
	  FROM farmers WHERE user_id = $1
	`
	return s.getOne(ctx, query, userID, RoleFarmer)
}

func (s *ProfilesStore) BuyerByUserID(ctx context.Context, userID int64) (*Profile, error) {
	query := `
	  SELECT id, user_id, company_name, '', created_at
	  FROM buyers WHERE user_id = $1
	`
	return s.getOne(ctx, query, userID, RoleBuyer)
}

func (s *ProfilesStore) ExporterByUserID(ctx context.Context, userID int64) (*Profile, error) {
	query := `
	  SELECT id, user_id, company_name, COALESCE(license_no, ''), created_at
	  FROM exporters WHERE user_id = $1
	`
	return s.getOne(ctx, query, userID, RoleExporter)
}

func (s *ProfilesStore) getOne(ctx context.Context, query string, userID int64, role string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	p := &Profile{Role: role}
	var extra string
	err := s.db.QueryRow(ctx, query, userID).Scan(&p.ID, &p.UserID, &p.DisplayName, &extra, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	switch role {
	case RoleFarmer:
		p.County = extra
	case RoleExporter:
		p.LicenseNo = extra
	}
	return p, nil
}

// UserIDByProfile maps a role-scoped profile id back to its account id.
// Order and request rows reference profile ids, so notification fan-out
// needs this to find the account's devices.
func (s *ProfilesStore) UserIDByProfile(ctx context.Context, role string, profileID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var table string
	switch role {
	case RoleFarmer:
		table = "farmers"
	case RoleBuyer:
		table = "buyers"
	case RoleExporter:
		table = "exporters"
	default:
		return 0, ErrNotFound
	}

	var userID int64
	err := s.db.QueryRow(ctx, `SELECT user_id FROM `+table+` WHERE id = $1`, profileID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return userID, nil
}

func mapProfileError(err error) error {
	// One profile per role per user, enforced by a unique index on user_id.
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "farmers_user_id_key") ||
		strings.Contains(msg, "buyers_user_id_key") ||
		strings.Contains(msg, "exporters_user_id_key") {
		return ErrConflict
	}
	return err
}
