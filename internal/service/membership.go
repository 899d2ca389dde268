package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"xapobank-backend/internal/config"
	"xapobank-backend/internal/domain"
	"xapobank-backend/internal/logger"
	"xapobank-backend/internal/repository"
)

type membershipService struct {
	users        repository.UserRepository
	realtime     RealtimeEmitter
	validity     time.Duration
	thresholdUSD float64
}

func NewMembershipService(users repository.UserRepository, realtime RealtimeEmitter, cfg config.MembershipConfig) MembershipService {
	return &membershipService{
		users:        users,
		realtime:     realtime,
		validity:     time.Duration(cfg.ValidityDays) * 24 * time.Hour,
		thresholdUSD: cfg.DepositThresholdUSD,
	}
}

func (s *membershipService) Qualifies(tx *domain.Transaction) bool {
	if tx.Type == domain.TransactionTypeMembership {
		return true
	}
	return tx.Type == domain.TransactionTypeDeposit &&
		tx.Amount >= s.thresholdUSD &&
		strings.Contains(strings.ToLower(tx.Description), "membership")
}

// Grant marks the user a member for one validity window starting at the
// payment timestamp. Renewing an unexpired membership is rejected; it would
// silently overwrite the remaining window instead of extending it.
func (s *membershipService) Grant(ctx context.Context, user *domain.User, tx *domain.Transaction) error {
	now := time.Now()
	if user.HasActiveMembership(now) {
		return &MembershipActiveError{ExpiresAt: user.MembershipExpiresAt.Format(time.RFC3339)}
	}

	paidAt := tx.Timestamp
	if paidAt.IsZero() {
		paidAt = now
	}
	expires := paidAt.Add(s.validity)

	user.IsMember = true
	if tx.Amount > 0 {
		user.MembershipPaidAmount = tx.Amount
	}
	user.MembershipPaidAt = &paidAt
	user.MembershipExpiresAt = &expires
	if user.MembershipID == "" {
		user.MembershipID = newMembershipID()
	}

	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to persist membership grant: %w", err)
	}

	logger.Info("membership granted",
		"user_id", user.ID,
		"paid_amount", user.MembershipPaidAmount,
		"expires_at", expires)

	s.realtime.EmitToUser(user.ID, "user:updated", map[string]any{
		"id":                     user.ID,
		"is_member":              user.IsMember,
		"membership_id":          user.MembershipID,
		"membership_paid_amount": user.MembershipPaidAmount,
		"membership_paid_at":     user.MembershipPaidAt,
		"membership_expires_at":  user.MembershipExpiresAt,
	})
	return nil
}

func newMembershipID() string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("MBR-%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("MBR-%s-%s", strconv.FormatInt(time.Now().Unix(), 36), hex.EncodeToString(buf))
}
