package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"xapobank-backend/internal/domain"
	"xapobank-backend/internal/logger"
	"xapobank-backend/internal/repository"
	"xapobank-backend/internal/security"
)

// depositAddressPool simulates per-transaction on-chain address assignment.
// The pick is deterministic in the transaction key so retries land on the
// same address.
var depositAddressPool = []string{
	"1A1z7agoat5qLBLmcaKjFLVMKN7kfTvqjz",
	"1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2",
	"3J98t1WpEZ73CNmYviecrnyiWrnqRhWNLy",
	"1dice8EMCQAqQAN1aLK8RjKv6PMNhSWALb",
	"1BoatSLRHtKNngkdXEeobR76b53LETtpyT",
	"13A1W4jLPP75pzvn2qJ5KOtiBbCsoxS3ve",
}

// minConfirmations is how many confirmations an on-chain deposit needs
// before the webhook marks it confirmed.
const minConfirmations = 3

type transactionService struct {
	users        repository.UserRepository
	transactions repository.TransactionRepository
	membership   MembershipService
	loans        LoanTracker
	promos       PromoService
	pricing      PricingService
	realtime     RealtimeEmitter
	notifier     *Notifier
}

func NewTransactionService(
	users repository.UserRepository,
	transactions repository.TransactionRepository,
	membership MembershipService,
	loans LoanTracker,
	promos PromoService,
	pricing PricingService,
	realtime RealtimeEmitter,
	notifier *Notifier,
) TransactionService {
	return &transactionService{
		users:        users,
		transactions: transactions,
		membership:   membership,
		loans:        loans,
		promos:       promos,
		pricing:      pricing,
		realtime:     realtime,
		notifier:     notifier,
	}
}

func (s *transactionService) Create(ctx context.Context, requester *security.Identity, tx *domain.Transaction) (*domain.Transaction, error) {
	if tx.Type == domain.TransactionTypeLoan {
		if tx.LoanAmount > 0 {
			tx.Amount = tx.LoanAmount
		} else {
			tx.LoanAmount = tx.Amount
		}
		if err := s.validateLoanRequest(ctx, requester, tx); err != nil {
			return nil, err
		}
	}

	if requester != nil {
		if tx.UserID == nil {
			id := requester.ID
			tx.UserID = &id
		}
		if tx.UserEmail == "" {
			tx.UserEmail = requester.Email
		}
		if tx.UserName == "" {
			tx.UserName = requester.Name
		}
	}

	if tx.TransactionID == "" {
		tx.TransactionID = fmt.Sprintf("TXN%d", time.Now().UnixMilli())
	}
	if tx.Status == "" {
		tx.Status = domain.StatusPending
	}

	if tx.Type == domain.TransactionTypeLoan && tx.RepaymentPeriod > 0 {
		base := tx.Timestamp
		if base.IsZero() {
			base = time.Now()
		}
		due := base.Add(time.Duration(tx.RepaymentPeriod) * 24 * time.Hour)
		if tx.RepaymentDate == nil {
			tx.RepaymentDate = &due
		}
		if tx.DueDate == nil {
			tx.DueDate = &due
		}
	}

	// Membership no-stacking is enforced up front so the caller gets a clean
	// rejection before any record exists.
	if tx.IsCompleted() && s.membership.Qualifies(tx) && tx.UserID != nil {
		user, err := s.users.GetByID(ctx, *tx.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load user: %w", err)
		}
		if user.HasActiveMembership(time.Now()) {
			return nil, &MembershipActiveError{ExpiresAt: user.MembershipExpiresAt.Format(time.RFC3339)}
		}
	}

	if tx.InternalPayment && tx.Type == domain.TransactionTypeMembership && tx.IsCompleted() {
		if requester == nil {
			return nil, ErrUnauthorized
		}
		if err := s.deductInternalPayment(ctx, requester.ID, tx); err != nil {
			return nil, err
		}
	}

	if err := s.transactions.Create(ctx, tx); err != nil {
		if !errors.Is(err, repository.ErrDuplicateTransactionID) {
			return nil, fmt.Errorf("failed to create transaction: %w", err)
		}
		// Client resubmitted the same payload; resolve to the existing record.
		// Downstream side effects are individually idempotent.
		existing, lookupErr := s.transactions.GetByTransactionID(ctx, tx.TransactionID)
		if lookupErr != nil {
			return nil, fmt.Errorf("failed to resolve duplicate transaction: %w", lookupErr)
		}
		tx = existing
	}

	if tx.AssignedAddress == "" {
		tx.AssignedAddress = assignDepositAddress(tx)
		if err := s.transactions.Update(ctx, tx); err != nil {
			logger.Warn("failed to attach assigned address", "tx", tx.TransactionID, "error", err)
		}
	}

	if tx.UserID != nil {
		s.realtime.EmitToUser(*tx.UserID, "transaction:created", tx)
	}
	s.realtime.EmitToAdmins("transaction:created", tx)

	if tx.IsCompleted() {
		s.runCompletionSideEffects(ctx, tx, false)
	}
	return tx, nil
}

func (s *transactionService) validateLoanRequest(ctx context.Context, requester *security.Identity, tx *domain.Transaction) error {
	if requester == nil {
		return ErrUnauthorized
	}
	user, err := s.users.GetByID(ctx, requester.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnauthorized
		}
		return fmt.Errorf("failed to load user: %w", err)
	}
	if !user.HasActiveMembership(time.Now()) {
		return fmt.Errorf("%w: loan access is restricted to members", ErrForbidden)
	}
	if user.HasActiveLoan() {
		return &LoanRestrictedError{
			ActiveLoanID:     *user.ActiveLoanID,
			ActiveLoanAmount: user.ActiveLoanAmount,
		}
	}
	if tx.LoanAmount > user.CollateralBalanceUSD {
		return &InsufficientCollateralError{
			Requested:     tx.LoanAmount,
			MaxLoanAmount: user.CollateralBalanceUSD,
		}
	}
	return nil
}

// deductInternalPayment takes a membership fee from the user's internal
// balances, savings first then BTC at the reference price. Runs before the
// transaction record exists so a failed deduction creates nothing.
func (s *transactionService) deductInternalPayment(ctx context.Context, userID int32, tx *domain.Transaction) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user.HasActiveMembership(time.Now()) {
		return &MembershipActiveError{ExpiresAt: user.MembershipExpiresAt.Format(time.RFC3339)}
	}

	details, err := s.deductFromBalances(ctx, user, tx.Amount)
	if err != nil {
		return err
	}
	tx.InternalPaymentDetails = details
	tx.InternalPaymentApplied = true
	return nil
}

func (s *transactionService) deductFromBalances(ctx context.Context, user *domain.User, amountUSD float64) (*domain.InternalPaymentDetails, error) {
	price := s.pricing.BTCUSDPrice(ctx)
	savingsUSD := user.SavingsBalanceUSD
	btcUSD := user.BTCBalance * price

	if savingsUSD+btcUSD < amountUSD {
		return nil, &InsufficientFundsError{Required: amountUSD, Available: savingsUSD + btcUSD}
	}

	details := &domain.InternalPaymentDetails{BTCPriceUsed: price}
	if savingsUSD >= amountUSD {
		details.DeductedFromSavings = amountUSD
		user.SavingsBalanceUSD = domain.RoundUSD(savingsUSD - amountUSD)
	} else {
		details.DeductedFromSavings = savingsUSD
		user.SavingsBalanceUSD = 0
		remaining := amountUSD - savingsUSD
		btcToDeduct := domain.RoundBTC(remaining / price)
		details.DeductedFromBTC = btcToDeduct
		user.BTCBalance = domain.ClampNonNegative(domain.RoundBTC(user.BTCBalance - btcToDeduct))
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to persist internal payment: %w", err)
	}
	return details, nil
}

func (s *transactionService) GetTransactions(ctx context.Context, requester *security.Identity, query TransactionQuery) ([]domain.Transaction, error) {
	filter := repository.TransactionFilter{
		Statuses: query.Statuses,
		Types:    query.Types,
		Limit:    query.Limit,
	}

	if query.UserID != nil {
		if !requester.IsAdmin() && (requester == nil || requester.ID != *query.UserID) {
			return nil, fmt.Errorf("%w: cannot access other users", ErrForbidden)
		}
		filter.UserID = query.UserID
	} else if !requester.IsAdmin() {
		if requester == nil {
			return nil, fmt.Errorf("%w: must be authenticated", ErrForbidden)
		}
		id := requester.ID
		filter.UserID = &id
	}

	return s.transactions.List(ctx, filter)
}

func (s *transactionService) UpdateStatus(ctx context.Context, requester *security.Identity, ref, status string) (*domain.Transaction, error) {
	if status == "" {
		return nil, fmt.Errorf("%w: missing status", ErrInvalidInput)
	}
	if !requester.IsAdmin() {
		return nil, fmt.Errorf("%w: admin only", ErrForbidden)
	}

	tx, err := s.transactions.GetByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}

	prevStatus := tx.Status
	wasCompleted := tx.IsCompleted()
	tx.Status = status
	if err := s.transactions.Update(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	nowCompleted := tx.IsCompleted()

	if nowCompleted && tx.InternalPayment && !tx.InternalPaymentApplied {
		if err := s.applyInternalPaymentOnApproval(ctx, tx); err != nil {
			return nil, err
		}
	}

	logger.Info("admin status change",
		"admin", requester.Email,
		"tx", tx.TransactionID,
		"from", prevStatus,
		"to", status)

	if tx.UserID != nil {
		s.realtime.EmitToUser(*tx.UserID, "transaction:updated", tx)
	}
	s.realtime.EmitToAdmins("transaction:updated", tx)

	if nowCompleted && !wasCompleted {
		s.runCompletionSideEffects(ctx, tx, true)
	}
	return tx, nil
}

// applyInternalPaymentOnApproval runs the deferred membership deduction when
// an admin approves a pending internal payment. An unfundable deduction
// fails the transaction instead of completing it.
func (s *transactionService) applyInternalPaymentOnApproval(ctx context.Context, tx *domain.Transaction) error {
	if tx.UserID == nil {
		return fmt.Errorf("%w: internal payment has no user", ErrInvalidInput)
	}
	user, err := s.users.GetByID(ctx, *tx.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			tx.InternalPaymentFailed = true
			if updateErr := s.transactions.Update(ctx, tx); updateErr != nil {
				logger.Error("failed to mark internal payment failed", "tx", tx.TransactionID, "error", updateErr)
			}
			return ErrNotFound
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	details, err := s.deductFromBalances(ctx, user, tx.Amount)
	if err != nil {
		var insufficient *InsufficientFundsError
		if errors.As(err, &insufficient) {
			tx.InternalPaymentFailed = true
			tx.Status = domain.StatusFailed
			if updateErr := s.transactions.Update(ctx, tx); updateErr != nil {
				logger.Error("failed to mark internal payment failed", "tx", tx.TransactionID, "error", updateErr)
			}
		}
		return err
	}

	tx.InternalPaymentDetails = details
	tx.InternalPaymentApplied = true
	if err := s.transactions.Update(ctx, tx); err != nil {
		return fmt.Errorf("failed to record internal payment: %w", err)
	}
	return nil
}

// runCompletionSideEffects handles everything a transaction triggers when it
// reaches a completed status: loan repayment reduction, membership grant,
// loan opening plus disbursement, the balance application itself, and the
// confirmation email. Each effect is idempotent or guarded so re-running on
// a duplicate submission is safe.
func (s *transactionService) runCompletionSideEffects(ctx context.Context, tx *domain.Transaction, adminApproval bool) {
	if tx.Type == domain.TransactionTypeWithdrawal && tx.RelatedLoanID != "" && tx.UserID != nil {
		if err := s.loans.Reduce(ctx, tx); err != nil {
			logger.Warn("loan repayment reduction failed", "tx", tx.TransactionID, "error", err)
		}
	}

	var user *domain.User
	if tx.UserID != nil {
		var err error
		user, err = s.users.GetByID(ctx, *tx.UserID)
		if err != nil {
			logger.Warn("failed to load user for completion effects", "tx", tx.TransactionID, "error", err)
		}
	}

	if user != nil && s.membership.Qualifies(tx) {
		if err := s.membership.Grant(ctx, user, tx); err != nil {
			logger.Warn("membership grant failed", "tx", tx.TransactionID, "error", err)
		}
	}

	if user != nil && tx.Type == domain.TransactionTypeLoan {
		if err := s.loans.Open(ctx, user, tx); err != nil {
			logger.Warn("active loan tracking failed", "tx", tx.TransactionID, "error", err)
		}
		if adminApproval && tx.LoanAmount > 0 {
			s.disburseLoan(ctx, user, tx)
		}
	}

	appliedUser, err := s.apply(ctx, tx)
	if err != nil {
		logger.Warn("balance application failed", "tx", tx.TransactionID, "error", err)
	}

	if tx.UserID != nil {
		snapshotUser := appliedUser
		if snapshotUser == nil {
			if fresh, err := s.users.GetByID(ctx, *tx.UserID); err == nil {
				snapshotUser = fresh
			}
		}
		if snapshotUser != nil {
			s.realtime.EmitToUser(*tx.UserID, "user:updated", snapshotUser.Snapshot())
			s.notifier.NotifyTransaction(snapshotUser, tx)
		}
	}
}

// disburseLoan credits the approved loan principal to the borrower's savings
// through a companion deposit. The deposit's derived transaction id makes a
// repeated approval a no-op.
func (s *transactionService) disburseLoan(ctx context.Context, user *domain.User, loan *domain.Transaction) {
	currency := loan.Currency
	if currency == "" {
		currency = "USD"
	}
	userID := user.ID
	disbursement := &domain.Transaction{
		Type:          domain.TransactionTypeDeposit,
		Status:        domain.StatusCompleted,
		Amount:        loan.LoanAmount,
		Currency:      currency,
		Description:   "Loan disbursement",
		UserID:        &userID,
		UserName:      loan.UserName,
		UserEmail:     loan.UserEmail,
		TransactionID: loanRef(loan) + "_DISB",
		Timestamp:     time.Now(),
	}

	if err := s.transactions.Create(ctx, disbursement); err != nil {
		if errors.Is(err, repository.ErrDuplicateTransactionID) {
			logger.Info("loan already disbursed", "loan", loan.TransactionID)
			return
		}
		logger.Error("failed to create loan disbursement", "loan", loan.TransactionID, "error", err)
		return
	}

	// Credit directly rather than through apply so the first-deposit promo
	// never matches a disbursement.
	user.SavingsBalanceUSD = domain.RoundUSD(user.SavingsBalanceUSD + disbursement.Amount)
	if err := s.users.Update(ctx, user); err != nil {
		logger.Error("failed to credit loan disbursement", "loan", loan.TransactionID, "error", err)
		return
	}
	disbursement.AppliedToBalances = true
	if err := s.transactions.Update(ctx, disbursement); err != nil {
		logger.Error("failed to latch loan disbursement", "loan", loan.TransactionID, "error", err)
	}

	s.realtime.EmitToUser(user.ID, "transaction:created", disbursement)
	s.realtime.EmitToUser(user.ID, "user:updated", user.Snapshot())
}

// apply performs the one-time balance application for a completed
// transaction. Only deposits and collateral transfers mutate balances here;
// other types settle at their call sites. The applied_to_balances latch
// flips only after the user row has been persisted.
func (s *transactionService) apply(ctx context.Context, tx *domain.Transaction) (*domain.User, error) {
	if tx.UserID == nil || tx.AppliedToBalances {
		return nil, nil
	}

	user, err := s.users.GetByID(ctx, *tx.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	switch tx.Type {
	case domain.TransactionTypeDeposit:
		s.applyDeposit(ctx, user, tx)
	case domain.TransactionTypeInternal:
		if !strings.EqualFold(tx.Action, domain.ActionTransferToCollateral) {
			return nil, nil
		}
		applyCollateralTransfer(user, tx)
	default:
		return nil, nil
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to persist balances: %w", err)
	}
	tx.AppliedToBalances = true
	if err := s.transactions.Update(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to latch transaction: %w", err)
	}

	s.realtime.EmitToUser(user.ID, "user:updated", user.Snapshot())
	return user, nil
}

func (s *transactionService) applyDeposit(ctx context.Context, user *domain.User, tx *domain.Transaction) {
	if tx.CollateralBTC > 0 {
		if tx.IsOnchainDeposit() {
			user.BTCBalance = domain.RoundBTC(user.BTCBalance + tx.CollateralBTC)
			depositUSD := tx.Amount
			if depositUSD <= 0 {
				depositUSD = tx.CollateralBTC * s.pricing.BTCUSDPrice(ctx)
			}
			s.applyFirstDepositPromo(user, tx, depositUSD)
		} else {
			user.CollateralBalanceUSD = domain.RoundUSD(user.CollateralBalanceUSD + tx.Amount)
			user.CollateralBalanceBTC = domain.RoundBTC(user.CollateralBalanceBTC + tx.CollateralBTC)
		}
		return
	}

	user.SavingsBalanceUSD = domain.RoundUSD(user.SavingsBalanceUSD + tx.Amount)
	s.applyFirstDepositPromo(user, tx, tx.Amount)
}

// applyFirstDepositPromo credits a 100% bonus on the user's first deposit
// when their promo code is on the allowlist. The bonus lands in a separate
// bucket, never in spendable balances.
func (s *transactionService) applyFirstDepositPromo(user *domain.User, tx *domain.Transaction, depositUSD float64) {
	if user.PromoCode == "" || user.PromoFirstDepositUsed {
		return
	}
	if !s.promos.IsAllowed(user.PromoCode) {
		logger.Info("skipping promo: code not allowed", "user_id", user.ID, "code", user.PromoCode)
		return
	}
	if depositUSD <= 0 {
		return
	}

	user.PromoBonusUSD = domain.RoundUSD(user.PromoBonusUSD + depositUSD)
	user.PromoFirstDepositUsed = true
	tx.PromoApplied = true
	tx.PromoBonusAmount = depositUSD
	logger.Info("first-deposit promo applied", "user_id", user.ID, "bonus", depositUSD)
}

func applyCollateralTransfer(user *domain.User, tx *domain.Transaction) {
	if tx.BTCAmount <= 0 {
		return
	}
	user.BTCBalance = domain.ClampNonNegative(domain.RoundBTC(user.BTCBalance - tx.BTCAmount))
	user.CollateralBalanceBTC = domain.RoundBTC(user.CollateralBalanceBTC + tx.BTCAmount)
	user.CollateralBalanceUSD = domain.RoundUSD(user.CollateralBalanceUSD + tx.Amount)
}

func (s *transactionService) WithdrawCollateral(ctx context.Context, requester *security.Identity, usdAmount, btcAmount float64) (*CollateralWithdrawalResult, error) {
	if requester == nil {
		return nil, ErrUnauthorized
	}
	if usdAmount <= 0 || btcAmount <= 0 {
		return nil, fmt.Errorf("%w: invalid withdrawal amount", ErrInvalidInput)
	}

	user, err := s.users.GetByID(ctx, requester.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if user.CollateralBalanceUSD < usdAmount || user.CollateralBalanceBTC < btcAmount {
		return nil, &InsufficientFundsError{Required: usdAmount, Available: user.CollateralBalanceUSD}
	}

	user.CollateralBalanceUSD = domain.RoundUSD(user.CollateralBalanceUSD - usdAmount)
	user.CollateralBalanceBTC = domain.RoundBTC(user.CollateralBalanceBTC - btcAmount)
	user.BTCBalance = domain.RoundBTC(user.BTCBalance + btcAmount)

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to persist withdrawal: %w", err)
	}

	// Audit record only; balances already settled above.
	userID := user.ID
	tx := &domain.Transaction{
		Type:              domain.TransactionTypeWithdrawal,
		Status:            domain.StatusCompleted,
		Amount:            usdAmount,
		CollateralBTC:     btcAmount,
		Currency:          "USD",
		Description:       "Collateral withdrawal to BTC balance",
		UserID:            &userID,
		UserName:          user.Name,
		UserEmail:         user.Email,
		TransactionID:     fmt.Sprintf("WITHDRAW%d", time.Now().UnixMilli()),
		AppliedToBalances: true,
		Timestamp:         time.Now(),
	}
	if err := s.transactions.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to record withdrawal: %w", err)
	}

	s.realtime.EmitToUser(user.ID, "user:updated", user.Snapshot())

	return &CollateralWithdrawalResult{
		Transaction:          tx,
		CollateralBalanceUSD: user.CollateralBalanceUSD,
		CollateralBalanceBTC: user.CollateralBalanceBTC,
		BTCBalance:           user.BTCBalance,
	}, nil
}

func (s *transactionService) IngestCryptoDeposit(ctx context.Context, event CryptoDepositEvent) (*domain.Transaction, error) {
	if event.TransactionID == "" || event.UserEmail == "" {
		return nil, fmt.Errorf("%w: missing transaction id or user email", ErrInvalidInput)
	}
	if event.BTCAmount <= 0 {
		return nil, fmt.Errorf("%w: missing btc amount", ErrInvalidInput)
	}

	user, err := s.users.GetByEmail(ctx, event.UserEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	status := domain.StatusPending
	if event.Confirmations >= minConfirmations {
		status = "Confirmed"
	}

	existing, err := s.transactions.GetByTransactionID(ctx, event.TransactionID)
	if err == nil {
		// Provider re-reported a known deposit; only a pending-to-confirmed
		// transition does anything.
		if !existing.IsCompleted() && domain.IsCompletedStatus(status) {
			existing.Status = status
			if err := s.transactions.Update(ctx, existing); err != nil {
				return nil, fmt.Errorf("failed to confirm deposit: %w", err)
			}
			if existing.UserID != nil {
				s.realtime.EmitToUser(*existing.UserID, "transaction:updated", existing)
			}
			s.realtime.EmitToAdmins("transaction:updated", existing)
			s.runCompletionSideEffects(ctx, existing, false)
		}
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up deposit: %w", err)
	}

	usdAmount := event.USDAmount
	if usdAmount <= 0 {
		usdAmount = domain.RoundUSD(event.BTCAmount * s.pricing.BTCUSDPrice(ctx))
	}

	userID := user.ID
	tx := &domain.Transaction{
		Type:            domain.TransactionTypeDeposit,
		Status:          status,
		Amount:          usdAmount,
		CollateralBTC:   event.BTCAmount,
		Currency:        "BTC",
		DepositMethod:   domain.DepositMethodOnchain,
		Description:     "On-chain BTC deposit",
		UserID:          &userID,
		UserName:        user.Name,
		UserEmail:       user.Email,
		AssignedAddress: event.Address,
		TransactionID:   event.TransactionID,
		Timestamp:       time.Now(),
	}
	if err := s.transactions.Create(ctx, tx); err != nil {
		if errors.Is(err, repository.ErrDuplicateTransactionID) {
			return s.transactions.GetByTransactionID(ctx, event.TransactionID)
		}
		return nil, fmt.Errorf("failed to record deposit: %w", err)
	}

	s.realtime.EmitToUser(user.ID, "transaction:created", tx)
	s.realtime.EmitToAdmins("transaction:created", tx)

	if tx.IsCompleted() {
		s.runCompletionSideEffects(ctx, tx, false)
	}
	return tx, nil
}

// assignDepositAddress hashes the transaction key over the address pool so a
// resubmitted transaction always lands on the same address.
func assignDepositAddress(tx *domain.Transaction) string {
	key := tx.TransactionID
	if key == "" {
		key = strconv.Itoa(int(tx.ID))
	}
	var hash int
	for _, ch := range key {
		hash += int(ch)
	}
	if hash < 0 {
		hash = -hash
	}
	return depositAddressPool[hash%len(depositAddressPool)]
}
