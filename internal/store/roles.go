package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Role names known to the marketplace. Farmer, buyer and exporter own
// dedicated profile tables; the rest are capability buckets only.
const (
	RoleFarmer         = "FARMER"
	RoleBuyer          = "BUYER"
	RoleExporter       = "EXPORTER"
	RoleAggregator     = "AGGREGATOR"
	RoleProcessor      = "PROCESSOR"
	RoleImporter       = "IMPORTER"
	RoleSupplier       = "SUPPLIER"
	RoleAdmin          = "ADMIN"
	RoleSystemAdmin    = "SYSTEM_ADMIN"
	RoleZoneSupervisor = "ZONE_SUPERVISOR"
	RoleAuthorisedRep  = "AUTHORISED_REPRESENTATIVE"
	RoleUser           = "USER"
)

type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type RolesStore struct {
	db *pgxpool.Pool
}

func (s *RolesStore) GetByName(ctx context.Context, name string) (*Role, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	role := &Role{}
	query := `SELECT id, name, COALESCE(description, '') FROM roles WHERE name = $1`
	err := s.db.QueryRow(ctx, query, name).Scan(&role.ID, &role.Name, &role.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return role, nil
}

func (s *RolesStore) GetPermissions(ctx context.Context, roleName string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
	  SELECT p.name
	  FROM role_permissions rp
	  JOIN roles r ON r.id = rp.role_id
	  JOIN permissions p ON p.id = rp.permission_id
	  WHERE r.name = $1
	  ORDER BY p.name
	`

	rows, err := s.db.Query(ctx, query, roleName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		perms = append(perms, name)
	}
	return perms, rows.Err()
}

func (s *RolesStore) Grant(ctx context.Context, userID int64, roleName string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	role, err := s.GetByName(ctx, roleName)
	if err != nil {
		return err
	}

	query := `
	  INSERT INTO user_roles (user_id, role_id, granted_at)
	  VALUES ($1, $2, NOW())
	  ON CONFLICT (user_id, role_id) DO NOTHING
	`
	_, err = s.db.Exec(ctx, query, userID, role.ID)
	return err
}
