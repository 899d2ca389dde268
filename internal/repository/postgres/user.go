package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"xapobank-backend/internal/domain"
	"xapobank-backend/internal/repository"

	"github.com/lib/pq"
)

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, email, password_hash, name, COALESCE(phone, ''), COALESCE(country, ''), role, id_verified,
	savings_balance_usd, btc_balance, collateral_balance_usd, collateral_balance_btc, promo_bonus_usd,
	is_member, COALESCE(membership_id, ''), membership_paid_amount, membership_paid_at, membership_expires_at,
	active_loan_id, active_loan_amount, active_loan_due_date,
	COALESCE(promo_code, ''), promo_applied_at, promo_first_deposit_used, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	u := &domain.User{}
	var membershipPaidAt, membershipExpiresAt, activeLoanDueDate, promoAppliedAt sql.NullTime
	var activeLoanID sql.NullInt32

	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Phone, &u.Country, &u.Role, &u.IDVerified,
		&u.SavingsBalanceUSD, &u.BTCBalance, &u.CollateralBalanceUSD, &u.CollateralBalanceBTC, &u.PromoBonusUSD,
		&u.IsMember, &u.MembershipID, &u.MembershipPaidAmount, &membershipPaidAt, &membershipExpiresAt,
		&activeLoanID, &u.ActiveLoanAmount, &activeLoanDueDate,
		&u.PromoCode, &promoAppliedAt, &u.PromoFirstDepositUsed, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if membershipPaidAt.Valid {
		u.MembershipPaidAt = &membershipPaidAt.Time
	}
	if membershipExpiresAt.Valid {
		u.MembershipExpiresAt = &membershipExpiresAt.Time
	}
	if activeLoanDueDate.Valid {
		u.ActiveLoanDueDate = &activeLoanDueDate.Time
	}
	if promoAppliedAt.Valid {
		u.PromoAppliedAt = &promoAppliedAt.Time
	}
	if activeLoanID.Valid {
		id := activeLoanID.Int32
		u.ActiveLoanID = &id
	}
	return u, nil
}

func (r *userRepository) Create(ctx context.Context, u *domain.User) error {
	query := `INSERT INTO users (email, password_hash, name, phone, country, role, promo_code, promo_applied_at, created_at)
	          VALUES (LOWER($1), $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9) RETURNING id`
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	u.CreatedAt = time.Now()
	err := r.db.QueryRowContext(ctx, query,
		u.Email, u.PasswordHash, u.Name, u.Phone, u.Country, u.Role, u.PromoCode, u.PromoAppliedAt, u.CreatedAt,
	).Scan(&u.ID)
	if isUniqueViolation(err) {
		return repository.ErrDuplicateEmail
	}
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return u, err
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return u, err
}

func (r *userRepository) Update(ctx context.Context, u *domain.User) error {
	query := `UPDATE users SET
		email=LOWER($1), name=$2, phone=$3, country=$4, role=$5, id_verified=$6,
		savings_balance_usd=$7, btc_balance=$8, collateral_balance_usd=$9, collateral_balance_btc=$10, promo_bonus_usd=$11,
		is_member=$12, membership_id=NULLIF($13, ''), membership_paid_amount=$14, membership_paid_at=$15, membership_expires_at=$16,
		active_loan_id=$17, active_loan_amount=$18, active_loan_due_date=$19,
		promo_code=NULLIF($20, ''), promo_applied_at=$21, promo_first_deposit_used=$22
		WHERE id=$23`
	_, err := r.db.ExecContext(ctx, query,
		u.Email, u.Name, u.Phone, u.Country, u.Role, u.IDVerified,
		u.SavingsBalanceUSD, u.BTCBalance, u.CollateralBalanceUSD, u.CollateralBalanceBTC, u.PromoBonusUSD,
		u.IsMember, u.MembershipID, u.MembershipPaidAmount, u.MembershipPaidAt, u.MembershipExpiresAt,
		u.ActiveLoanID, u.ActiveLoanAmount, u.ActiveLoanDueDate,
		u.PromoCode, u.PromoAppliedAt, u.PromoFirstDepositUsed,
		u.ID,
	)
	return err
}

func (r *userRepository) UpdateRole(ctx context.Context, id int32, role domain.Role) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET role=$1 WHERE id=$2`, role, id)
	return err
}

func (r *userRepository) ListMembershipsExpiringBefore(ctx context.Context, cutoff time.Time) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
	          WHERE is_member = TRUE AND membership_expires_at IS NOT NULL
	            AND membership_expires_at > NOW() AND membership_expires_at < $1`
	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
