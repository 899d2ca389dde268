package service

import (
	"context"
	"testing"
	"time"

	"xapobank-backend/internal/config"
	"xapobank-backend/internal/domain"
	"xapobank-backend/internal/repository"
	"xapobank-backend/internal/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestEngine(users *MockUserRepo, txs *MockTransactionRepo, promos PromoService, price float64) (*transactionService, *fakeEmitter) {
	emitter := &fakeEmitter{}
	membership := NewMembershipService(users, emitter, config.MembershipConfig{
		ValidityDays:        365,
		DepositThresholdUSD: 1000,
	})
	loans := NewLoanTracker(users, txs, emitter)
	svc := NewTransactionService(users, txs, membership, loans, promos, fixedPricing{price}, emitter, NewNotifier(fakeEmail{}))
	return svc.(*transactionService), emitter
}

func userIDPtr(id int32) *int32 {
	return &id
}

func activeMember(id int32) *domain.User {
	paidAt := time.Now().Add(-30 * 24 * time.Hour)
	expires := time.Now().Add(300 * 24 * time.Hour)
	return &domain.User{
		ID:                  id,
		Email:               "member@example.com",
		Name:                "Member",
		Role:                domain.RoleUser,
		IsMember:            true,
		MembershipID:        "MBR-test",
		MembershipPaidAt:    &paidAt,
		MembershipExpiresAt: &expires,
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, _ := newTestEngine(users, txs, denyAllPromos{}, 42000)
	ctx := context.Background()

	user := &domain.User{ID: 1, SavingsBalanceUSD: 100}
	tx := &domain.Transaction{
		ID:            10,
		Type:          domain.TransactionTypeDeposit,
		Status:        domain.StatusCompleted,
		Amount:        250,
		UserID:        userIDPtr(1),
		TransactionID: "TXN1",
	}

	users.On("GetByID", mock.Anything, int32(1)).Return(user, nil)
	users.On("Update", mock.Anything, mock.Anything).Return(nil)
	txs.On("Update", mock.Anything, mock.Anything).Return(nil)

	applied, err := svc.apply(ctx, tx)
	require.NoError(t, err)
	require.NotNil(t, applied)
	assert.Equal(t, 350.0, user.SavingsBalanceUSD)
	assert.True(t, tx.AppliedToBalances)

	// Second application is a no-op behind the latch.
	applied, err = svc.apply(ctx, tx)
	require.NoError(t, err)
	assert.Nil(t, applied)
	assert.Equal(t, 350.0, user.SavingsBalanceUSD)
	users.AssertNumberOfCalls(t, "Update", 1)
}

func TestApplyIgnoresNonBalanceTypes(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, _ := newTestEngine(users, txs, denyAllPromos{}, 42000)

	for _, txType := range []domain.TransactionType{
		domain.TransactionTypeWithdrawal,
		domain.TransactionTypeLoan,
		domain.TransactionTypeMembership,
	} {
		user := &domain.User{ID: 1, SavingsBalanceUSD: 100}
		users.ExpectedCalls = nil
		users.On("GetByID", mock.Anything, int32(1)).Return(user, nil)

		tx := &domain.Transaction{
			Type:   txType,
			Status: domain.StatusCompleted,
			Amount: 500,
			UserID: userIDPtr(1),
		}
		applied, err := svc.apply(context.Background(), tx)
		require.NoError(t, err)
		assert.Nil(t, applied)
		// The latch stays down; these types settle at their call sites.
		assert.False(t, tx.AppliedToBalances, "type %s must not latch", txType)
		assert.Equal(t, 100.0, user.SavingsBalanceUSD)
	}
}

func TestCreateResolvesDuplicateTransactionID(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, _ := newTestEngine(users, txs, denyAllPromos{}, 42000)

	existing := &domain.Transaction{
		ID:              7,
		Type:            domain.TransactionTypeDeposit,
		Status:          domain.StatusPending,
		Amount:          100,
		TransactionID:   "TXN-DUP",
		AssignedAddress: "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2",
	}
	txs.On("Create", mock.Anything, mock.Anything).Return(repository.ErrDuplicateTransactionID)
	txs.On("GetByTransactionID", mock.Anything, "TXN-DUP").Return(existing, nil)

	created, err := svc.Create(context.Background(), nil, &domain.Transaction{
		Type:          domain.TransactionTypeDeposit,
		Amount:        100,
		TransactionID: "TXN-DUP",
	})
	require.NoError(t, err)
	assert.Equal(t, int32(7), created.ID)
	assert.Equal(t, existing, created)
}

func TestCreateLoanRequiresMembership(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, _ := newTestEngine(users, txs, denyAllPromos{}, 42000)

	users.On("GetByID", mock.Anything, int32(1)).Return(&domain.User{ID: 1}, nil)

	_, err := svc.Create(context.Background(), &security.Identity{ID: 1}, &domain.Transaction{
		Type:       domain.TransactionTypeLoan,
		LoanAmount: 500,
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateLoanRejectsAnonymous(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, _ := newTestEngine(users, txs, denyAllPromos{}, 42000)

	_, err := svc.Create(context.Background(), nil, &domain.Transaction{
		Type:       domain.TransactionTypeLoan,
		LoanAmount: 500,
	})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCreateLoanRejectsSecondActiveLoan(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, _ := newTestEngine(users, txs, denyAllPromos{}, 42000)

	user := activeMember(1)
	user.ActiveLoanID = userIDPtr(42)
	user.ActiveLoanAmount = 300
	users.On("GetByID", mock.Anything, int32(1)).Return(user, nil)

	_, err := svc.Create(context.Background(), &security.Identity{ID: 1}, &domain.Transaction{
		Type:       domain.TransactionTypeLoan,
		LoanAmount: 500,
	})
	var restricted *LoanRestrictedError
	require.ErrorAs(t, err, &restricted)
	assert.Equal(t, int32(42), restricted.ActiveLoanID)
	assert.Equal(t, 300.0, restricted.ActiveLoanAmount)
}

func TestCreateLoanEnforcesCollateralCeiling(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, _ := newTestEngine(users, txs, denyAllPromos{}, 42000)

	user := activeMember(1)
	user.CollateralBalanceUSD = 400
	users.On("GetByID", mock.Anything, int32(1)).Return(user, nil)

	_, err := svc.Create(context.Background(), &security.Identity{ID: 1}, &domain.Transaction{
		Type:       domain.TransactionTypeLoan,
		LoanAmount: 500,
	})
	var insufficient *InsufficientCollateralError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 500.0, insufficient.Requested)
	assert.Equal(t, 400.0, insufficient.MaxLoanAmount)
}

func TestCreateLoanComputesDueDate(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, _ := newTestEngine(users, txs, denyAllPromos{}, 42000)

	user := activeMember(1)
	user.CollateralBalanceUSD = 1000
	users.On("GetByID", mock.Anything, int32(1)).Return(user, nil)
	txs.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Transaction).ID = 9
	}).Return(nil)
	txs.On("Update", mock.Anything, mock.Anything).Return(nil)

	created, err := svc.Create(context.Background(), &security.Identity{ID: 1, Email: "member@example.com", Name: "Member"}, &domain.Transaction{
		Type:            domain.TransactionTypeLoan,
		LoanAmount:      500,
		RepaymentPeriod: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, created.Status)
	assert.Equal(t, 500.0, created.Amount)
	assert.NotEmpty(t, created.TransactionID)
	assert.NotEmpty(t, created.AssignedAddress)
	require.NotNil(t, created.DueDate)
	wantDue := time.Now().Add(30 * 24 * time.Hour)
	assert.WithinDuration(t, wantDue, *created.DueDate, time.Minute)
}

func TestUpdateStatusAdminOnly(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, _ := newTestEngine(users, txs, denyAllPromos{}, 42000)

	_, err := svc.UpdateStatus(context.Background(), &security.Identity{ID: 1, Role: "user"}, "TXN1", domain.StatusCompleted)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdateStatus(context.Background(), nil, "TXN1", domain.StatusCompleted)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateStatusAppliesDepositOnce(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, emitter := newTestEngine(users, txs, denyAllPromos{}, 42000)

	user := &domain.User{ID: 1, Email: "u@example.com", Name: "U", SavingsBalanceUSD: 50}
	tx := &domain.Transaction{
		ID:            5,
		Type:          domain.TransactionTypeDeposit,
		Status:        domain.StatusPending,
		Amount:        200,
		UserID:        userIDPtr(1),
		TransactionID: "TXN5",
	}

	txs.On("GetByRef", mock.Anything, "TXN5").Return(tx, nil)
	txs.On("Update", mock.Anything, mock.Anything).Return(nil)
	users.On("GetByID", mock.Anything, int32(1)).Return(user, nil)
	users.On("Update", mock.Anything, mock.Anything).Return(nil)

	admin := &security.Identity{ID: 99, Email: "admin@example.com", Role: "admin"}
	updated, err := svc.UpdateStatus(context.Background(), admin, "TXN5", domain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 250.0, user.SavingsBalanceUSD)
	assert.True(t, updated.AppliedToBalances)
	assert.Contains(t, emitter.eventNames(), "transaction:updated")
	assert.Contains(t, emitter.eventNames(), "user:updated")

	// Approving the same transaction again must not credit twice.
	_, err = svc.UpdateStatus(context.Background(), admin, "TXN5", domain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 250.0, user.SavingsBalanceUSD)
}

func TestUpdateStatusFailsInternalPaymentWhenUnderfunded(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, _ := newTestEngine(users, txs, denyAllPromos{}, 42000)

	user := &domain.User{ID: 1, SavingsBalanceUSD: 100, BTCBalance: 0}
	tx := &domain.Transaction{
		ID:              6,
		Type:            domain.TransactionTypeMembership,
		Status:          domain.StatusPending,
		Amount:          1000,
		UserID:          userIDPtr(1),
		TransactionID:   "TXN6",
		InternalPayment: true,
	}

	txs.On("GetByRef", mock.Anything, "TXN6").Return(tx, nil)
	txs.On("Update", mock.Anything, mock.Anything).Return(nil)
	users.On("GetByID", mock.Anything, int32(1)).Return(user, nil)

	admin := &security.Identity{ID: 99, Role: "admin"}
	_, err := svc.UpdateStatus(context.Background(), admin, "TXN6", domain.StatusCompleted)
	var insufficient *InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, tx.InternalPaymentFailed)
	assert.Equal(t, domain.StatusFailed, tx.Status)
	assert.Equal(t, 100.0, user.SavingsBalanceUSD)
}

func TestInternalPaymentDeductsSavingsThenBTC(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, _ := newTestEngine(users, txs, denyAllPromos{}, 40000)

	user := &domain.User{ID: 1, SavingsBalanceUSD: 300, BTCBalance: 0.1}
	users.On("Update", mock.Anything, mock.Anything).Return(nil)

	details, err := svc.deductFromBalances(context.Background(), user, 500)
	require.NoError(t, err)
	assert.Equal(t, 300.0, details.DeductedFromSavings)
	assert.Equal(t, 0.005, details.DeductedFromBTC) // 200 / 40000
	assert.Equal(t, 40000.0, details.BTCPriceUsed)
	assert.Equal(t, 0.0, user.SavingsBalanceUSD)
	assert.InDelta(t, 0.095, user.BTCBalance, 1e-9)
}

func TestMembershipNoStacking(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, _ := newTestEngine(users, txs, denyAllPromos{}, 42000)

	users.On("GetByID", mock.Anything, int32(1)).Return(activeMember(1), nil)

	_, err := svc.Create(context.Background(), &security.Identity{ID: 1}, &domain.Transaction{
		Type:   domain.TransactionTypeMembership,
		Status: domain.StatusCompleted,
		Amount: 1000,
		UserID: userIDPtr(1),
	})
	var active *MembershipActiveError
	assert.ErrorAs(t, err, &active)
}

func TestPromoFirstDepositBonus(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, _ := newTestEngine(users, txs, allowAllPromos{}, 42000)

	user := &domain.User{ID: 1, PromoCode: "welcome"}
	users.On("GetByID", mock.Anything, int32(1)).Return(user, nil)
	users.On("Update", mock.Anything, mock.Anything).Return(nil)
	txs.On("Update", mock.Anything, mock.Anything).Return(nil)

	tx := &domain.Transaction{
		Type:          domain.TransactionTypeDeposit,
		Status:        domain.StatusCompleted,
		Amount:        150,
		UserID:        userIDPtr(1),
		TransactionID: "TXN-P1",
	}
	_, err := svc.apply(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, 150.0, user.SavingsBalanceUSD)
	assert.Equal(t, 150.0, user.PromoBonusUSD)
	assert.True(t, user.PromoFirstDepositUsed)
	assert.True(t, tx.PromoApplied)
	assert.Equal(t, 150.0, tx.PromoBonusAmount)

	// Second deposit gets no bonus.
	tx2 := &domain.Transaction{
		Type:          domain.TransactionTypeDeposit,
		Status:        domain.StatusCompleted,
		Amount:        500,
		UserID:        userIDPtr(1),
		TransactionID: "TXN-P2",
	}
	_, err = svc.apply(context.Background(), tx2)
	require.NoError(t, err)
	assert.Equal(t, 650.0, user.SavingsBalanceUSD)
	assert.Equal(t, 150.0, user.PromoBonusUSD)
	assert.False(t, tx2.PromoApplied)
}

func TestPromoSkippedForDisallowedCode(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, _ := newTestEngine(users, txs, denyAllPromos{}, 42000)

	user := &domain.User{ID: 1, PromoCode: "not-a-code"}
	users.On("GetByID", mock.Anything, int32(1)).Return(user, nil)
	users.On("Update", mock.Anything, mock.Anything).Return(nil)
	txs.On("Update", mock.Anything, mock.Anything).Return(nil)

	tx := &domain.Transaction{
		Type:          domain.TransactionTypeDeposit,
		Status:        domain.StatusCompleted,
		Amount:        150,
		UserID:        userIDPtr(1),
		TransactionID: "TXN-P3",
	}
	_, err := svc.apply(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, user.PromoBonusUSD)
	assert.False(t, user.PromoFirstDepositUsed)
	assert.False(t, tx.PromoApplied)
}

func TestOnchainDepositCreditsBTCWallet(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, _ := newTestEngine(users, txs, allowAllPromos{}, 40000)

	user := &domain.User{ID: 1, PromoCode: "welcome", BTCBalance: 0.1}
	users.On("GetByID", mock.Anything, int32(1)).Return(user, nil)
	users.On("Update", mock.Anything, mock.Anything).Return(nil)
	txs.On("Update", mock.Anything, mock.Anything).Return(nil)

	tx := &domain.Transaction{
		Type:          domain.TransactionTypeDeposit,
		Status:        domain.StatusCompleted,
		CollateralBTC: 0.5,
		DepositMethod: domain.DepositMethodOnchain,
		UserID:        userIDPtr(1),
		TransactionID: "TXN-OC",
	}
	_, err := svc.apply(context.Background(), tx)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, user.BTCBalance, 1e-9)
	assert.Equal(t, 0.0, user.SavingsBalanceUSD)
	// Promo bonus converts BTC at the reference price when no USD amount.
	assert.Equal(t, 20000.0, user.PromoBonusUSD)
}

func TestCollateralDepositCreditsCollateral(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, _ := newTestEngine(users, txs, allowAllPromos{}, 42000)

	user := &domain.User{ID: 1, PromoCode: "welcome"}
	users.On("GetByID", mock.Anything, int32(1)).Return(user, nil)
	users.On("Update", mock.Anything, mock.Anything).Return(nil)
	txs.On("Update", mock.Anything, mock.Anything).Return(nil)

	tx := &domain.Transaction{
		Type:          domain.TransactionTypeDeposit,
		Status:        domain.StatusCompleted,
		Amount:        20000,
		CollateralBTC: 0.5,
		Description:   "Collateral deposit",
		UserID:        userIDPtr(1),
		TransactionID: "TXN-COL",
	}
	_, err := svc.apply(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, 20000.0, user.CollateralBalanceUSD)
	assert.Equal(t, 0.5, user.CollateralBalanceBTC)
	assert.Equal(t, 0.0, user.BTCBalance)
	// Collateral deposits never trigger the first-deposit promo.
	assert.Equal(t, 0.0, user.PromoBonusUSD)
}

func TestTransferToCollateralFloorsAtZero(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, _ := newTestEngine(users, txs, denyAllPromos{}, 42000)

	user := &domain.User{ID: 1, BTCBalance: 0.2}
	users.On("GetByID", mock.Anything, int32(1)).Return(user, nil)
	users.On("Update", mock.Anything, mock.Anything).Return(nil)
	txs.On("Update", mock.Anything, mock.Anything).Return(nil)

	tx := &domain.Transaction{
		Type:          domain.TransactionTypeInternal,
		Action:        domain.ActionTransferToCollateral,
		Status:        domain.StatusCompleted,
		Amount:        12000,
		BTCAmount:     0.3,
		UserID:        userIDPtr(1),
		TransactionID: "TXN-TC",
	}
	_, err := svc.apply(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, user.BTCBalance)
	assert.Equal(t, 0.3, user.CollateralBalanceBTC)
	assert.Equal(t, 12000.0, user.CollateralBalanceUSD)
	assert.True(t, tx.AppliedToBalances)
}

func TestLoanRepaymentReducesToZero(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	emitter := &fakeEmitter{}
	tracker := NewLoanTracker(users, txs, emitter)

	loan := &domain.Transaction{
		ID:            42,
		Type:          domain.TransactionTypeLoan,
		Status:        domain.StatusCompleted,
		LoanAmount:    500,
		Amount:        500,
		UserID:        userIDPtr(1),
		TransactionID: "TXN-LOAN",
	}
	user := activeMember(1)
	user.ActiveLoanID = userIDPtr(42)
	user.ActiveLoanAmount = 500

	txs.On("GetByRef", mock.Anything, "TXN-LOAN").Return(loan, nil)
	txs.On("Update", mock.Anything, mock.Anything).Return(nil)
	users.On("GetByID", mock.Anything, int32(1)).Return(user, nil)
	users.On("Update", mock.Anything, mock.Anything).Return(nil)

	repay := func(amount float64) *domain.Transaction {
		return &domain.Transaction{
			Type:          domain.TransactionTypeWithdrawal,
			Status:        domain.StatusCompleted,
			Amount:        amount,
			UserID:        userIDPtr(1),
			RelatedLoanID: "TXN-LOAN",
		}
	}

	require.NoError(t, tracker.Reduce(context.Background(), repay(300)))
	assert.Equal(t, 200.0, loan.LoanAmount)
	assert.Equal(t, 200.0, loan.Amount)
	assert.NotNil(t, user.ActiveLoanID)

	require.NoError(t, tracker.Reduce(context.Background(), repay(200)))
	assert.Equal(t, 0.0, loan.LoanAmount)
	assert.Equal(t, domain.StatusCompleted, loan.Status)
	assert.Nil(t, user.ActiveLoanID)
	assert.Equal(t, 0.0, user.ActiveLoanAmount)
	assert.Nil(t, user.ActiveLoanDueDate)
}

func TestLoanRepaymentOverpaymentFloorsAtZero(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	tracker := NewLoanTracker(users, txs, &fakeEmitter{})

	loan := &domain.Transaction{
		ID:            42,
		Type:          domain.TransactionTypeLoan,
		LoanAmount:    100,
		Amount:        100,
		UserID:        userIDPtr(1),
		TransactionID: "TXN-LOAN2",
	}
	user := activeMember(1)
	user.ActiveLoanID = userIDPtr(42)

	txs.On("GetByRef", mock.Anything, "TXN-LOAN2").Return(loan, nil)
	txs.On("Update", mock.Anything, mock.Anything).Return(nil)
	users.On("GetByID", mock.Anything, int32(1)).Return(user, nil)
	users.On("Update", mock.Anything, mock.Anything).Return(nil)

	err := tracker.Reduce(context.Background(), &domain.Transaction{
		Type:          domain.TransactionTypeWithdrawal,
		Amount:        250,
		UserID:        userIDPtr(1),
		RelatedLoanID: "TXN-LOAN2",
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, loan.LoanAmount)
	assert.Nil(t, user.ActiveLoanID)
}

func TestWithdrawCollateral(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, _ := newTestEngine(users, txs, denyAllPromos{}, 42000)
	requester := &security.Identity{ID: 1, Email: "u@example.com"}

	t.Run("Success", func(t *testing.T) {
		user := &domain.User{
			ID:                   1,
			CollateralBalanceUSD: 20000,
			CollateralBalanceBTC: 0.5,
			BTCBalance:           0.1,
		}
		users.ExpectedCalls = nil
		txs.ExpectedCalls = nil
		users.On("GetByID", mock.Anything, int32(1)).Return(user, nil)
		users.On("Update", mock.Anything, mock.Anything).Return(nil)
		txs.On("Create", mock.Anything, mock.Anything).Return(nil)

		result, err := svc.WithdrawCollateral(context.Background(), requester, 8000, 0.2)
		require.NoError(t, err)
		assert.Equal(t, 12000.0, result.CollateralBalanceUSD)
		assert.InDelta(t, 0.3, result.CollateralBalanceBTC, 1e-9)
		assert.InDelta(t, 0.3, result.BTCBalance, 1e-9)
		assert.True(t, result.Transaction.AppliedToBalances)
		assert.Equal(t, domain.TransactionTypeWithdrawal, result.Transaction.Type)
	})

	t.Run("InsufficientCollateral", func(t *testing.T) {
		user := &domain.User{ID: 1, CollateralBalanceUSD: 100, CollateralBalanceBTC: 0.01}
		users.ExpectedCalls = nil
		users.On("GetByID", mock.Anything, int32(1)).Return(user, nil)

		_, err := svc.WithdrawCollateral(context.Background(), requester, 8000, 0.2)
		var insufficient *InsufficientFundsError
		assert.ErrorAs(t, err, &insufficient)
	})

	t.Run("InvalidAmounts", func(t *testing.T) {
		_, err := svc.WithdrawCollateral(context.Background(), requester, 0, 0.2)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("Anonymous", func(t *testing.T) {
		_, err := svc.WithdrawCollateral(context.Background(), nil, 100, 0.1)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestGetTransactionsScoping(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, _ := newTestEngine(users, txs, denyAllPromos{}, 42000)
	ctx := context.Background()

	t.Run("UserCannotReadOthers", func(t *testing.T) {
		_, err := svc.GetTransactions(ctx, &security.Identity{ID: 1, Role: "user"}, TransactionQuery{UserID: userIDPtr(2)})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("AnonymousRejected", func(t *testing.T) {
		_, err := svc.GetTransactions(ctx, nil, TransactionQuery{})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("UserScopedToSelf", func(t *testing.T) {
		txs.ExpectedCalls = nil
		txs.On("List", mock.Anything, mock.MatchedBy(func(f repository.TransactionFilter) bool {
			return f.UserID != nil && *f.UserID == 1
		})).Return([]domain.Transaction{}, nil)

		_, err := svc.GetTransactions(ctx, &security.Identity{ID: 1, Role: "user"}, TransactionQuery{})
		assert.NoError(t, err)
		txs.AssertExpectations(t)
	})

	t.Run("AdminSeesAll", func(t *testing.T) {
		txs.ExpectedCalls = nil
		txs.On("List", mock.Anything, mock.MatchedBy(func(f repository.TransactionFilter) bool {
			return f.UserID == nil
		})).Return([]domain.Transaction{}, nil)

		_, err := svc.GetTransactions(ctx, &security.Identity{ID: 9, Role: "admin"}, TransactionQuery{})
		assert.NoError(t, err)
		txs.AssertExpectations(t)
	})
}

func TestIngestCryptoDepositConfirmed(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, _ := newTestEngine(users, txs, denyAllPromos{}, 40000)

	user := &domain.User{ID: 1, Email: "u@example.com", Name: "U"}
	users.On("GetByEmail", mock.Anything, "u@example.com").Return(user, nil)
	users.On("GetByID", mock.Anything, int32(1)).Return(user, nil)
	users.On("Update", mock.Anything, mock.Anything).Return(nil)
	txs.On("GetByTransactionID", mock.Anything, "ONCHAIN-1").Return(nil, repository.ErrNotFound)
	txs.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Transaction).ID = 11
	}).Return(nil)
	txs.On("Update", mock.Anything, mock.Anything).Return(nil)

	tx, err := svc.IngestCryptoDeposit(context.Background(), CryptoDepositEvent{
		TransactionID: "ONCHAIN-1",
		UserEmail:     "u@example.com",
		BTCAmount:     0.25,
		Confirmations: 3,
	})
	require.NoError(t, err)
	assert.True(t, tx.IsCompleted())
	assert.True(t, tx.AppliedToBalances)
	assert.InDelta(t, 0.25, user.BTCBalance, 1e-9)
	assert.Equal(t, 10000.0, tx.Amount) // 0.25 * 40000
}

func TestIngestCryptoDepositPendingBelowThreshold(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	svc, _ := newTestEngine(users, txs, denyAllPromos{}, 40000)

	user := &domain.User{ID: 1, Email: "u@example.com"}
	users.On("GetByEmail", mock.Anything, "u@example.com").Return(user, nil)
	txs.On("GetByTransactionID", mock.Anything, "ONCHAIN-2").Return(nil, repository.ErrNotFound)
	txs.On("Create", mock.Anything, mock.Anything).Return(nil)

	tx, err := svc.IngestCryptoDeposit(context.Background(), CryptoDepositEvent{
		TransactionID: "ONCHAIN-2",
		UserEmail:     "u@example.com",
		BTCAmount:     0.25,
		Confirmations: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, tx.Status)
	assert.False(t, tx.AppliedToBalances)
	assert.Equal(t, 0.0, user.BTCBalance)
}

func TestAssignDepositAddressDeterministic(t *testing.T) {
	tx := &domain.Transaction{TransactionID: "TXN12345"}
	first := assignDepositAddress(tx)
	second := assignDepositAddress(tx)
	assert.Equal(t, first, second)
	assert.Contains(t, depositAddressPool, first)
}

func TestLoanApprovalDisbursesOnce(t *testing.T) {
	users := new(MockUserRepo)
	txs := new(MockTransactionRepo)
	// allowAllPromos plus an eligible promo code on the borrower: the
	// disbursement credit must still never trigger the first-deposit bonus.
	svc, _ := newTestEngine(users, txs, allowAllPromos{}, 42000)
	ctx := context.Background()

	user := activeMember(1)
	user.PromoCode = "welcome"
	loan := &domain.Transaction{
		ID:            42,
		TransactionID: "LOAN1",
		Type:          domain.TransactionTypeLoan,
		Status:        domain.StatusPending,
		LoanAmount:    500,
		Amount:        500,
		UserID:        userIDPtr(1),
		UserName:      user.Name,
		UserEmail:     user.Email,
	}

	users.On("GetByID", mock.Anything, int32(1)).Return(user, nil)
	users.On("Update", mock.Anything, mock.Anything).Return(nil)
	txs.On("GetByRef", mock.Anything, "LOAN1").Return(loan, nil)
	txs.On("Update", mock.Anything, mock.Anything).Return(nil)

	var disbursement *domain.Transaction
	txs.On("Create", mock.Anything, mock.AnythingOfType("*domain.Transaction")).Run(func(args mock.Arguments) {
		disbursement = args.Get(1).(*domain.Transaction)
	}).Return(nil).Once()

	_, err := svc.UpdateStatus(ctx, &security.Identity{ID: 9, Role: "admin", Email: "admin@example.com"}, "LOAN1", domain.StatusCompleted)
	require.NoError(t, err)

	require.NotNil(t, disbursement)
	assert.Equal(t, "LOAN1_DISB", disbursement.TransactionID)
	assert.Equal(t, domain.TransactionTypeDeposit, disbursement.Type)
	assert.Equal(t, domain.StatusCompleted, disbursement.Status)
	assert.Equal(t, 500.0, disbursement.Amount)
	// Credited to savings directly with the latch set on write, bypassing
	// the promo path.
	assert.True(t, disbursement.AppliedToBalances)
	assert.False(t, disbursement.PromoApplied)
	assert.Equal(t, 500.0, user.SavingsBalanceUSD)
	assert.Equal(t, 0.0, user.PromoBonusUSD)
	assert.False(t, user.PromoFirstDepositUsed)

	// A repeat approval of the same loan hits the duplicate transaction id
	// and must not credit savings again.
	loan.Status = domain.StatusPending
	txs.On("Create", mock.Anything, mock.AnythingOfType("*domain.Transaction")).Return(repository.ErrDuplicateTransactionID)

	_, err = svc.UpdateStatus(ctx, &security.Identity{ID: 9, Role: "admin", Email: "admin@example.com"}, "LOAN1", domain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 500.0, user.SavingsBalanceUSD)
}
