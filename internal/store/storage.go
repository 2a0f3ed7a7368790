package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"shamba/internal/params"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("resource already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrRequestNotOpen    = errors.New("produce request is not open for orders")
	QueryTimeoutDuration = time.Second * 5
)

type Storage struct {
	Users interface {
		CreateAndInvite(ctx context.Context, user *User, hashToken string, exp time.Duration, role string) error
		Activate(ctx context.Context, hashToken string) error
		GetByID(ctx context.Context, userID int64) (*User, error)
		GetByIdentifier(ctx context.Context, identifier string) (*User, error)
		Delete(ctx context.Context, userID int64) error
		Deactivate(ctx context.Context, userID int64) error
		SaveRefreshToken(ctx context.Context, userID int64, token string) error
		GetRefreshToken(ctx context.Context, userID int64) (string, error)
		DeleteRefreshToken(ctx context.Context, userID int64) error
	}
	Roles interface {
		GetByName(ctx context.Context, name string) (*Role, error)
		GetPermissions(ctx context.Context, roleName string) ([]string, error)
		Grant(ctx context.Context, userID int64, roleName string) error
	}
	Profiles interface {
		CreateFarmer(ctx context.Context, userID int64, farmName, county string) (*Profile, error)
		CreateBuyer(ctx context.Context, userID int64, companyName string) (*Profile, error)
		CreateExporter(ctx context.Context, userID int64, companyName, licenseNo string) (*Profile, error)
		FarmerByUserID(ctx context.Context, userID int64) (*Profile, error)
		BuyerByUserID(ctx context.Context, userID int64) (*Profile, error)
		ExporterByUserID(ctx context.Context, userID int64) (*Profile, error)
		UserIDByProfile(ctx context.Context, role string, profileID int64) (int64, error)
	}
	Requests interface {
		Create(ctx context.Context, req *ProduceRequest) error
		GetByID(ctx context.Context, requestID int64) (*ProduceRequest, error)
		ListActive(ctx context.Context, p params.Pagination) ([]ProduceRequest, int, error)
		ListByBuyer(ctx context.Context, buyerID int64, p params.Pagination) ([]ProduceRequest, int, error)
		Cancel(ctx context.Context, requestID int64) error
		Close(ctx context.Context, requestID int64) error
		CloseExpired(ctx context.Context) (int64, error)
	}
	Orders interface {
		Create(ctx context.Context, order *RequestOrder) error
		GetByID(ctx context.Context, orderID int64) (*RequestOrder, error)
		ListByRequest(ctx context.Context, requestID int64) ([]RequestOrder, error)
		Accept(ctx context.Context, orderID int64) (*RequestOrder, error)
		ConfirmSupply(ctx context.Context, orderID int64) (*RequestOrder, error)
		ConfirmPayment(ctx context.Context, orderID int64) (*RequestOrder, error)
		Cancel(ctx context.Context, orderID int64) (*RequestOrder, error)
	}
	Listings interface {
		Create(ctx context.Context, listing *ProduceListing) error
		GetByID(ctx context.Context, listingID int64) (*ProduceListing, error)
		List(ctx context.Context, filter ListingFilter, p params.Pagination) ([]ProduceListing, int, error)
		Close(ctx context.Context, listingID, farmerID int64) error
		AddPhotoURL(ctx context.Context, listingID int64, url string) error
		RemovePhotoURL(ctx context.Context, listingID int64, url string) error
	}
	Ledger interface {
		Create(ctx context.Context, rec *LedgerRecord) error
		ListByOrder(ctx context.Context, orderID int64) ([]LedgerRecord, error)
	}
	Compliance interface {
		Create(ctx context.Context, doc *ComplianceDocument) error
		ListByOrder(ctx context.Context, orderID int64) ([]ComplianceDocument, error)
	}
	PushTokens interface {
		Save(ctx context.Context, userID int64, token string) error
		Delete(ctx context.Context, userID int64, token string) error
		GetTokensByUserIDs(ctx context.Context, userIDs []int64) (map[int64][]string, error)
	}
}

func NewStorage(db *pgxpool.Pool) Storage {
	return Storage{
		Users:      &UsersStore{db},
		Roles:      &RolesStore{db},
		Profiles:   &ProfilesStore{db},
		Requests:   &RequestsStore{db},
		Orders:     &OrdersStore{db},
		Listings:   &ListingsStore{db},
		Ledger:     &LedgerStore{db},
		Compliance: &ComplianceStore{db},
		PushTokens: &PushTokensStore{db},
	}
}
