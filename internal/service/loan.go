package service

import (
	"context"
	"fmt"
	"strconv"

	"xapobank-backend/internal/domain"
	"xapobank-backend/internal/logger"
	"xapobank-backend/internal/repository"
)

type loanTracker struct {
	users        repository.UserRepository
	transactions repository.TransactionRepository
	realtime     RealtimeEmitter
}

func NewLoanTracker(users repository.UserRepository, transactions repository.TransactionRepository, realtime RealtimeEmitter) LoanTracker {
	return &loanTracker{users: users, transactions: transactions, realtime: realtime}
}

func (t *loanTracker) Open(ctx context.Context, user *domain.User, loan *domain.Transaction) error {
	amount := loan.LoanAmount
	if amount <= 0 {
		amount = loan.Amount
	}
	dueDate := loan.DueDate
	if dueDate == nil {
		dueDate = loan.RepaymentDate
	}

	loanID := loan.ID
	user.ActiveLoanID = &loanID
	user.ActiveLoanAmount = amount
	user.ActiveLoanDueDate = dueDate

	if err := t.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to record active loan: %w", err)
	}

	logger.Info("active loan opened", "user_id", user.ID, "loan_id", loanID, "amount", amount)
	t.realtime.EmitToUser(user.ID, "user:updated", map[string]any{
		"id":                   user.ID,
		"active_loan_id":       user.ActiveLoanID,
		"active_loan_amount":   user.ActiveLoanAmount,
		"active_loan_due_date": user.ActiveLoanDueDate,
	})
	return nil
}

// Reduce applies a completed repayment withdrawal to the referenced loan.
// The outstanding amount floors at zero; a fully repaid loan completes and
// releases the borrower for new loans.
func (t *loanTracker) Reduce(ctx context.Context, repayment *domain.Transaction) error {
	loan, err := t.transactions.GetByRef(ctx, repayment.RelatedLoanID)
	if err != nil {
		return fmt.Errorf("related loan %q not found: %w", repayment.RelatedLoanID, err)
	}

	outstanding := loan.LoanAmount
	if outstanding <= 0 {
		outstanding = loan.Amount
	}
	newOutstanding := domain.ClampNonNegative(domain.RoundUSD(outstanding - repayment.Amount))

	// amount mirrors loan_amount so activity views show the live balance
	loan.LoanAmount = newOutstanding
	loan.Amount = newOutstanding
	if newOutstanding <= 0 {
		loan.Status = domain.StatusCompleted
	}
	if err := t.transactions.Update(ctx, loan); err != nil {
		return fmt.Errorf("failed to update loan outstanding: %w", err)
	}

	logger.Info("loan repayment applied",
		"loan_id", loan.ID,
		"repayment", repayment.Amount,
		"outstanding", newOutstanding)

	if loan.UserID != nil {
		t.realtime.EmitToUser(*loan.UserID, "transaction:updated", loan)
	}
	t.realtime.EmitToAdmins("transaction:updated", loan)

	if newOutstanding > 0 || repayment.UserID == nil {
		return nil
	}

	user, err := t.users.GetByID(ctx, *repayment.UserID)
	if err != nil {
		return fmt.Errorf("failed to load borrower %d: %w", *repayment.UserID, err)
	}
	if user.ActiveLoanID == nil || *user.ActiveLoanID != loan.ID {
		return nil
	}

	user.ActiveLoanID = nil
	user.ActiveLoanAmount = 0
	user.ActiveLoanDueDate = nil
	if err := t.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to clear active loan: %w", err)
	}

	logger.Info("loan fully repaid", "loan_id", loan.ID, "user_id", user.ID)
	t.realtime.EmitToUser(user.ID, "user:updated", map[string]any{
		"id":                   user.ID,
		"active_loan_id":       nil,
		"active_loan_amount":   0,
		"active_loan_due_date": nil,
	})
	return nil
}

func loanRef(loan *domain.Transaction) string {
	if loan.TransactionID != "" {
		return loan.TransactionID
	}
	return strconv.Itoa(int(loan.ID))
}
