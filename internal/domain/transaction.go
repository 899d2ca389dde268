package domain

import (
	"strings"
	"time"
)

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeLoan       TransactionType = "loan"
	TransactionTypeMembership TransactionType = "membership"
	TransactionTypeInternal   TransactionType = "internal"
)

// ActionTransferToCollateral moves funds from the BTC wallet into loan
// collateral on an internal transaction.
const ActionTransferToCollateral = "transfer_to_collateral"

const (
	StatusPending   = "pending"
	StatusCompleted = "Completed"
	StatusFailed    = "failed"
)

// DepositMethodOnchain marks a deposit as an on-chain wallet credit. The
// explicit flag is authoritative; currency/description sniffing is a
// deprecated fallback only.
const DepositMethodOnchain = "onchain"

// InternalPaymentDetails records how an internal membership payment was
// deducted from the user's balances, for admin audit.
type InternalPaymentDetails struct {
	DeductedFromSavings float64 `json:"deducted_from_savings"`
	DeductedFromBTC     float64 `json:"deducted_from_btc"`
	BTCPriceUsed        float64 `json:"btc_price_used"`
}

type Transaction struct {
	ID     int32           `json:"id"`
	Type   TransactionType `json:"type"`
	Action string          `json:"action,omitempty"`
	Status string          `json:"status"`

	Amount        float64 `json:"amount"`
	BTCAmount     float64 `json:"btc_amount"`
	CollateralBTC float64 `json:"collateral_btc"`
	LoanAmount    float64 `json:"loan_amount"`
	Currency      string  `json:"currency,omitempty"`
	DepositMethod string  `json:"deposit_method,omitempty"`
	Description   string  `json:"description,omitempty"`

	// Owner snapshot taken at creation time.
	UserID    *int32 `json:"user_id,omitempty"`
	UserName  string `json:"user_name,omitempty"`
	UserEmail string `json:"user_email,omitempty"`

	// Loan linkage
	RelatedLoanID   string     `json:"related_loan_id,omitempty"`
	RepaymentPeriod int32      `json:"repayment_period"`
	RepaymentDate   *time.Time `json:"repayment_date,omitempty"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	InterestRate    float64    `json:"interest_rate"`

	WithdrawalAddress string `json:"withdrawal_address,omitempty"`
	AssignedAddress   string `json:"assigned_address,omitempty"`
	Network           string `json:"network,omitempty"`

	// TransactionID is the external idempotency key; unique across all rows.
	TransactionID string `json:"transaction_id"`

	// AppliedToBalances is the sole latch preventing double application of
	// balance side effects. It transitions false->true exactly once.
	AppliedToBalances bool `json:"applied_to_balances"`

	InternalPayment        bool                    `json:"internal_payment,omitempty"`
	InternalPaymentApplied bool                    `json:"internal_payment_applied,omitempty"`
	InternalPaymentFailed  bool                    `json:"internal_payment_failed,omitempty"`
	InternalPaymentDetails *InternalPaymentDetails `json:"internal_payment_details,omitempty"`

	PromoApplied     bool    `json:"promo_applied,omitempty"`
	PromoBonusAmount float64 `json:"promo_bonus_amount,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// IsCompletedStatus reports whether a status string belongs to the
// terminal-success set. Providers and admins use several spellings.
func IsCompletedStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "confirmed", "complete":
		return true
	}
	return false
}

func (t *Transaction) IsCompleted() bool {
	return IsCompletedStatus(t.Status)
}

// IsOnchainDeposit decides the on-chain vs collateral branch for deposits
// carrying BTC. The deposit_method flag wins; the currency/description
// heuristic is kept only for legacy records that predate the flag.
func (t *Transaction) IsOnchainDeposit() bool {
	if strings.EqualFold(t.DepositMethod, DepositMethodOnchain) {
		return true
	}
	if strings.EqualFold(t.Currency, "btc") {
		return true
	}
	desc := strings.ToLower(t.Description)
	return strings.Contains(desc, "on-chain") || strings.Contains(desc, "onchain") || strings.Contains(desc, "on chain")
}
