package jobs

import (
	"context"
	"errors"
	"time"

	"xapobank-backend/internal/logger"
	"xapobank-backend/internal/repository"
)

const (
	membershipExpiryWindow = 7 * 24 * time.Hour
	loanDueWindow          = 3 * 24 * time.Hour
)

// SendMembershipExpiryNotices emails members whose membership expires within
// the next seven days. Expired members are not downgraded here; membership
// is evaluated lazily against the expiry stamp.
func (jr *JobRunner) SendMembershipExpiryNotices() {
	jr.runWithRecovery("SendMembershipExpiryNotices", func() {
		ctx := context.Background()
		cutoff := time.Now().Add(membershipExpiryWindow)

		users, err := jr.store.ListMembershipsExpiringBefore(ctx, cutoff)
		if err != nil {
			logger.Error("Failed to query expiring memberships", "error", err)
			return
		}

		count := 0
		for i := range users {
			user := &users[i]
			if err := jr.email.SendMembershipExpiryReminder(ctx, user); err != nil {
				logger.Error("Failed to send membership expiry reminder",
					"user_id", user.ID,
					"error", err)
				continue
			}
			count++
		}
		logger.Info("Membership expiry notices sent", "count", count, "candidates", len(users))
	})
}

// SendLoanDueNotices emails borrowers whose loan repayment is due within the
// next three days.
func (jr *JobRunner) SendLoanDueNotices() {
	jr.runWithRecovery("SendLoanDueNotices", func() {
		ctx := context.Background()
		cutoff := time.Now().Add(loanDueWindow)

		loans, err := jr.store.ListLoansDueBefore(ctx, cutoff)
		if err != nil {
			logger.Error("Failed to query due loans", "error", err)
			return
		}

		count := 0
		for i := range loans {
			loan := &loans[i]
			if loan.UserID == nil {
				continue
			}
			user, err := jr.store.UserRepository.GetByID(ctx, *loan.UserID)
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					logger.Error("Failed to load borrower", "loan_id", loan.ID, "error", err)
				}
				continue
			}
			if err := jr.email.SendLoanDueReminder(ctx, user, loan); err != nil {
				logger.Error("Failed to send loan due reminder",
					"loan_id", loan.ID,
					"user_id", user.ID,
					"error", err)
				continue
			}
			count++
		}
		logger.Info("Loan due notices sent", "count", count, "candidates", len(loans))
	})
}
