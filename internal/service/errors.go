package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
)

// LoanRestrictedError rejects a loan request while another loan is still
// outstanding.
type LoanRestrictedError struct {
	ActiveLoanID     int32
	ActiveLoanAmount float64
}

func (e *LoanRestrictedError) Error() string {
	return fmt.Sprintf("you already have an active loan; repay the outstanding $%.2f before borrowing again", e.ActiveLoanAmount)
}

// InsufficientCollateralError rejects a loan request above the collateral
// ceiling. MaxLoanAmount tells the client the largest loan it could retry.
type InsufficientCollateralError struct {
	Requested     float64
	MaxLoanAmount float64
}

func (e *InsufficientCollateralError) Error() string {
	return fmt.Sprintf("loan amount ($%.2f) exceeds your collateral balance ($%.2f)", e.Requested, e.MaxLoanAmount)
}

// InsufficientFundsError rejects an internal payment the user's combined
// balances cannot cover.
type InsufficientFundsError struct {
	Required  float64
	Available float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient internal funds: need $%.2f, have $%.2f", e.Required, e.Available)
}

// MembershipActiveError rejects a membership purchase while the current one
// has not expired.
type MembershipActiveError struct {
	ExpiresAt string
}

func (e *MembershipActiveError) Error() string {
	return "you already have an active membership; wait until it expires to renew"
}
