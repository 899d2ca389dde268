package repository

import (
	"context"
	"errors"
	"time"

	"xapobank-backend/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateTransactionID is returned when an insert loses the race on
	// the transaction_id unique index. Callers resolve it by looking up the
	// pre-existing row.
	ErrDuplicateTransactionID = errors.New("duplicate transaction id")
	// ErrDuplicateEmail is returned when signup races on the email index.
	ErrDuplicateEmail = errors.New("email already registered")
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int32) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	UpdateRole(ctx context.Context, id int32, role domain.Role) error

	// ListMembershipsExpiringBefore returns active members whose membership
	// expires before the cutoff. Used by reminder jobs only.
	ListMembershipsExpiringBefore(ctx context.Context, cutoff time.Time) ([]domain.User, error)
}

// TransactionFilter narrows List queries. Zero values mean "no constraint".
type TransactionFilter struct {
	UserID   *int32
	Statuses []string
	Types    []string
	Limit    int32
}

type TransactionRepository interface {
	// Create persists a new transaction and fills its internal id. A unique
	// violation on transaction_id maps to ErrDuplicateTransactionID.
	Create(ctx context.Context, tx *domain.Transaction) error
	GetByID(ctx context.Context, id int32) (*domain.Transaction, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*domain.Transaction, error)
	// GetByRef resolves either an internal id or an external transaction id.
	GetByRef(ctx context.Context, ref string) (*domain.Transaction, error)
	Update(ctx context.Context, tx *domain.Transaction) error
	List(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, error)

	// ListLoansDueBefore returns completed loans with an outstanding amount
	// whose due date falls before the cutoff. Used by reminder jobs only.
	ListLoansDueBefore(ctx context.Context, cutoff time.Time) ([]domain.Transaction, error)
}

type ChatRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) error
	ListByEmail(ctx context.Context, email string, limit, offset int32) ([]domain.ChatMessage, int32, error)
}
