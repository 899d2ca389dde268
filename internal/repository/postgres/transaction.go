package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"xapobank-backend/internal/domain"
	"xapobank-backend/internal/repository"

	"github.com/lib/pq"
)

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

const transactionColumns = `id, type, COALESCE(action, ''), status,
	amount, btc_amount, collateral_btc, loan_amount, COALESCE(currency, ''), COALESCE(deposit_method, ''), COALESCE(description, ''),
	user_id, COALESCE(user_name, ''), COALESCE(user_email, ''),
	COALESCE(related_loan_id, ''), repayment_period, repayment_date, due_date, interest_rate,
	COALESCE(withdrawal_address, ''), COALESCE(assigned_address, ''), COALESCE(network, ''),
	transaction_id, applied_to_balances,
	internal_payment, internal_payment_applied, internal_payment_failed,
	deducted_from_savings, deducted_from_btc, btc_price_used,
	promo_applied, promo_bonus_amount, timestamp`

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var userID sql.NullInt32
	var repaymentDate, dueDate sql.NullTime
	var deductedSavings, deductedBTC, priceUsed sql.NullFloat64

	err := row.Scan(
		&t.ID, &t.Type, &t.Action, &t.Status,
		&t.Amount, &t.BTCAmount, &t.CollateralBTC, &t.LoanAmount, &t.Currency, &t.DepositMethod, &t.Description,
		&userID, &t.UserName, &t.UserEmail,
		&t.RelatedLoanID, &t.RepaymentPeriod, &repaymentDate, &dueDate, &t.InterestRate,
		&t.WithdrawalAddress, &t.AssignedAddress, &t.Network,
		&t.TransactionID, &t.AppliedToBalances,
		&t.InternalPayment, &t.InternalPaymentApplied, &t.InternalPaymentFailed,
		&deductedSavings, &deductedBTC, &priceUsed,
		&t.PromoApplied, &t.PromoBonusAmount, &t.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		id := userID.Int32
		t.UserID = &id
	}
	if repaymentDate.Valid {
		t.RepaymentDate = &repaymentDate.Time
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.Time
	}
	if deductedSavings.Valid || deductedBTC.Valid || priceUsed.Valid {
		t.InternalPaymentDetails = &domain.InternalPaymentDetails{
			DeductedFromSavings: deductedSavings.Float64,
			DeductedFromBTC:     deductedBTC.Float64,
			BTCPriceUsed:        priceUsed.Float64,
		}
	}
	return t, nil
}

func (r *transactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	query := `INSERT INTO transactions (type, action, status,
		amount, btc_amount, collateral_btc, loan_amount, currency, deposit_method, description,
		user_id, user_name, user_email,
		related_loan_id, repayment_period, repayment_date, due_date, interest_rate,
		withdrawal_address, assigned_address, network,
		transaction_id, applied_to_balances,
		internal_payment, internal_payment_applied, internal_payment_failed,
		deducted_from_savings, deducted_from_btc, btc_price_used,
		promo_applied, promo_bonus_amount, timestamp)
	VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''),
		$11, NULLIF($12, ''), NULLIF($13, ''), NULLIF($14, ''), $15, $16, $17, $18,
		NULLIF($19, ''), NULLIF($20, ''), NULLIF($21, ''), $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32)
	RETURNING id`

	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	var deductedSavings, deductedBTC, priceUsed any
	if d := t.InternalPaymentDetails; d != nil {
		deductedSavings, deductedBTC, priceUsed = d.DeductedFromSavings, d.DeductedFromBTC, d.BTCPriceUsed
	}

	err := r.db.QueryRowContext(ctx, query,
		t.Type, t.Action, t.Status,
		t.Amount, t.BTCAmount, t.CollateralBTC, t.LoanAmount, t.Currency, t.DepositMethod, t.Description,
		t.UserID, t.UserName, t.UserEmail,
		t.RelatedLoanID, t.RepaymentPeriod, t.RepaymentDate, t.DueDate, t.InterestRate,
		t.WithdrawalAddress, t.AssignedAddress, t.Network,
		t.TransactionID, t.AppliedToBalances,
		t.InternalPayment, t.InternalPaymentApplied, t.InternalPaymentFailed,
		deductedSavings, deductedBTC, priceUsed,
		t.PromoApplied, t.PromoBonusAmount, t.Timestamp,
	).Scan(&t.ID)
	if isUniqueViolation(err) {
		return repository.ErrDuplicateTransactionID
	}
	return err
}

func (r *transactionRepository) GetByID(ctx context.Context, id int32) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return t, err
}

func (r *transactionRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_id = $1`
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return t, err
}

func (r *transactionRepository) GetByRef(ctx context.Context, ref string) (*domain.Transaction, error) {
	if id, err := strconv.ParseInt(ref, 10, 32); err == nil {
		if t, err := r.GetByID(ctx, int32(id)); err == nil {
			return t, nil
		}
	}
	return r.GetByTransactionID(ctx, ref)
}

func (r *transactionRepository) Update(ctx context.Context, t *domain.Transaction) error {
	query := `UPDATE transactions SET status=$1, amount=$2, loan_amount=$3, assigned_address=NULLIF($4, ''),
		applied_to_balances=$5, internal_payment_applied=$6, internal_payment_failed=$7,
		deducted_from_savings=$8, deducted_from_btc=$9, btc_price_used=$10,
		promo_applied=$11, promo_bonus_amount=$12, repayment_date=$13, due_date=$14
		WHERE id=$15`

	var deductedSavings, deductedBTC, priceUsed any
	if d := t.InternalPaymentDetails; d != nil {
		deductedSavings, deductedBTC, priceUsed = d.DeductedFromSavings, d.DeductedFromBTC, d.BTCPriceUsed
	}

	_, err := r.db.ExecContext(ctx, query,
		t.Status, t.Amount, t.LoanAmount, t.AssignedAddress,
		t.AppliedToBalances, t.InternalPaymentApplied, t.InternalPaymentFailed,
		deductedSavings, deductedBTC, priceUsed,
		t.PromoApplied, t.PromoBonusAmount, t.RepaymentDate, t.DueDate,
		t.ID,
	)
	return err
}

func (r *transactionRepository) List(ctx context.Context, filter repository.TransactionFilter) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if len(filter.Statuses) > 0 {
		lowered := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			lowered[i] = strings.ToLower(s)
		}
		args = append(args, pq.Array(lowered))
		query += fmt.Sprintf(" AND LOWER(status) = ANY($%d)", len(args))
	}
	if len(filter.Types) > 0 {
		args = append(args, pq.Array(filter.Types))
		query += fmt.Sprintf(" AND type = ANY($%d)", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

func (r *transactionRepository) ListLoansDueBefore(ctx context.Context, cutoff time.Time) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
	          WHERE type = 'loan' AND loan_amount > 0 AND due_date IS NOT NULL
	            AND due_date > NOW() AND due_date < $1
	          ORDER BY due_date ASC`
	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}
