package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"xapobank-backend/internal/domain"
	"xapobank-backend/internal/logger"
	"xapobank-backend/internal/repository"
	"xapobank-backend/internal/security"
)

type adminService struct {
	users        repository.UserRepository
	transactions repository.TransactionRepository
}

func NewAdminService(users repository.UserRepository, transactions repository.TransactionRepository) AdminService {
	return &adminService{users: users, transactions: transactions}
}

func (s *adminService) ListPending(ctx context.Context, requester *security.Identity, status string) ([]domain.Transaction, error) {
	if !requester.IsAdmin() {
		return nil, fmt.Errorf("%w: admin only", ErrForbidden)
	}
	if status == "" {
		status = domain.StatusPending
	}
	return s.transactions.List(ctx, repository.TransactionFilter{Statuses: []string{status}})
}

func (s *adminService) ListUserTransactions(ctx context.Context, requester *security.Identity, userID int32) ([]domain.Transaction, error) {
	if !requester.IsAdmin() {
		return nil, fmt.Errorf("%w: admin only", ErrForbidden)
	}
	return s.transactions.List(ctx, repository.TransactionFilter{UserID: &userID})
}

func (s *adminService) PromoteToAdmin(ctx context.Context, requester *security.Identity, email string) (*domain.User, error) {
	if !requester.IsAdmin() {
		return nil, fmt.Errorf("%w: admin only", ErrForbidden)
	}
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user.Role == domain.RoleAdmin {
		return user, nil
	}
	if err := s.users.UpdateRole(ctx, user.ID, domain.RoleAdmin); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	user.Role = domain.RoleAdmin
	logger.Info("user promoted to admin", "admin", requester.Email, "user_id", user.ID)
	return user, nil
}
