package service

import (
	"context"
	"sync"
	"time"

	"xapobank-backend/internal/domain"
	"xapobank-backend/internal/repository"

	"github.com/stretchr/testify/mock"
)

// MockUserRepo
type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}
func (m *MockUserRepo) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}
func (m *MockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}
func (m *MockUserRepo) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}
func (m *MockUserRepo) UpdateRole(ctx context.Context, id int32, role domain.Role) error {
	args := m.Called(ctx, id, role)
	return args.Error(0)
}
func (m *MockUserRepo) ListMembershipsExpiringBefore(ctx context.Context, cutoff time.Time) ([]domain.User, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

// MockTransactionRepo
type MockTransactionRepo struct {
	mock.Mock
}

func (m *MockTransactionRepo) Create(ctx context.Context, tx *domain.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}
func (m *MockTransactionRepo) GetByID(ctx context.Context, id int32) (*domain.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}
func (m *MockTransactionRepo) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}
func (m *MockTransactionRepo) GetByRef(ctx context.Context, ref string) (*domain.Transaction, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}
func (m *MockTransactionRepo) Update(ctx context.Context, tx *domain.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}
func (m *MockTransactionRepo) List(ctx context.Context, filter repository.TransactionFilter) ([]domain.Transaction, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}
func (m *MockTransactionRepo) ListLoansDueBefore(ctx context.Context, cutoff time.Time) ([]domain.Transaction, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

// MockChatRepo
type MockChatRepo struct {
	mock.Mock
}

func (m *MockChatRepo) Create(ctx context.Context, msg *domain.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
func (m *MockChatRepo) ListByEmail(ctx context.Context, email string, limit, offset int32) ([]domain.ChatMessage, int32, error) {
	args := m.Called(ctx, email, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.ChatMessage), args.Get(1).(int32), args.Error(2)
}

// recordedEvent captures a realtime emit for assertions.
type recordedEvent struct {
	UserID  int32
	Event   string
	Payload any
	Admin   bool
}

// fakeEmitter records events instead of pushing them to sockets.
type fakeEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeEmitter) EmitToUser(userID int32, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{UserID: userID, Event: event, Payload: payload})
}

func (f *fakeEmitter) EmitToAdmins(event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{Event: event, Payload: payload, Admin: true})
}

func (f *fakeEmitter) eventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.events))
	for i, e := range f.events {
		names[i] = e.Event
	}
	return names
}

// fakeEmail drops everything; notification delivery is not under test here.
type fakeEmail struct{}

func (fakeEmail) SendTransactionNotification(context.Context, *domain.User, *domain.Transaction) error {
	return nil
}
func (fakeEmail) SendMembershipExpiryReminder(context.Context, *domain.User) error { return nil }
func (fakeEmail) SendLoanDueReminder(context.Context, *domain.User, *domain.Transaction) error {
	return nil
}
func (fakeEmail) SendWelcome(context.Context, *domain.User) error { return nil }

// fixedPricing returns a constant BTC/USD price.
type fixedPricing struct {
	price float64
}

func (p fixedPricing) BTCUSDPrice(context.Context) float64 { return p.price }

// allowAllPromos / denyAllPromos stub the promo allowlist.
type allowAllPromos struct{}

func (allowAllPromos) IsAllowed(string) bool           { return true }
func (allowAllPromos) AllowedCodes() []string          { return []string{"welcome"} }
func (allowAllPromos) Add(string) ([]string, error)    { return nil, nil }
func (allowAllPromos) Remove(string) ([]string, error) { return nil, nil }

type denyAllPromos struct{}

func (denyAllPromos) IsAllowed(string) bool           { return false }
func (denyAllPromos) AllowedCodes() []string          { return nil }
func (denyAllPromos) Add(string) ([]string, error)    { return nil, nil }
func (denyAllPromos) Remove(string) ([]string, error) { return nil, nil }
