package domain

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID           int32  `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	Country      string `json:"country,omitempty"`
	Role         Role   `json:"role"`
	IDVerified   bool   `json:"id_verified"`

	// Persisted balances
	SavingsBalanceUSD    float64 `json:"savings_balance_usd"`
	BTCBalance           float64 `json:"btc_balance"`
	CollateralBalanceUSD float64 `json:"collateral_balance_usd"`
	CollateralBalanceBTC float64 `json:"collateral_balance_btc"`
	PromoBonusUSD        float64 `json:"promo_bonus_usd"`

	// Membership
	IsMember             bool       `json:"is_member"`
	MembershipID         string     `json:"membership_id,omitempty"`
	MembershipPaidAmount float64    `json:"membership_paid_amount"`
	MembershipPaidAt     *time.Time `json:"membership_paid_at,omitempty"`
	MembershipExpiresAt  *time.Time `json:"membership_expires_at,omitempty"`

	// Active loan tracking. At most one outstanding loan per user.
	ActiveLoanID      *int32     `json:"active_loan_id,omitempty"`
	ActiveLoanAmount  float64    `json:"active_loan_amount"`
	ActiveLoanDueDate *time.Time `json:"active_loan_due_date,omitempty"`

	// Promo / referral
	PromoCode             string     `json:"promo_code,omitempty"`
	PromoAppliedAt        *time.Time `json:"promo_applied_at,omitempty"`
	PromoFirstDepositUsed bool       `json:"promo_first_deposit_used"`

	CreatedAt time.Time `json:"created_at"`
}

// IsAdmin reports whether the role column grants admin rights. The role
// column is the sole authority check; there is no parallel allowlist.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasActiveMembership evaluates membership lazily against the expiry stamp.
// There is no downgrade job; expired members simply stop passing this check.
func (u *User) HasActiveMembership(now time.Time) bool {
	return u.IsMember && u.MembershipExpiresAt != nil && u.MembershipExpiresAt.After(now)
}

func (u *User) HasActiveLoan() bool {
	return u.ActiveLoanID != nil
}

// BalanceSnapshot is the payload pushed to connected clients after a balance
// mutation. Display-only; never a source of truth.
type BalanceSnapshot struct {
	ID                   int32   `json:"id"`
	Name                 string  `json:"name,omitempty"`
	Email                string  `json:"email,omitempty"`
	SavingsBalanceUSD    float64 `json:"savings_balance_usd"`
	BTCBalance           float64 `json:"btc_balance"`
	CollateralBalanceUSD float64 `json:"collateral_balance_usd"`
	CollateralBalanceBTC float64 `json:"collateral_balance_btc"`
	PromoBonusUSD        float64 `json:"promo_bonus_usd"`
	IsMember             bool    `json:"is_member"`
}

func (u *User) Snapshot() BalanceSnapshot {
	return BalanceSnapshot{
		ID:                   u.ID,
		Name:                 u.Name,
		Email:                u.Email,
		SavingsBalanceUSD:    u.SavingsBalanceUSD,
		BTCBalance:           u.BTCBalance,
		CollateralBalanceUSD: u.CollateralBalanceUSD,
		CollateralBalanceBTC: u.CollateralBalanceBTC,
		PromoBonusUSD:        u.PromoBonusUSD,
		IsMember:             u.IsMember,
	}
}
