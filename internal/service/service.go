package service

import (
	"context"

	"xapobank-backend/internal/domain"
	"xapobank-backend/internal/security"
)

// TransactionQuery narrows GetTransactions. Authorization is enforced by the
// service, not the caller.
type TransactionQuery struct {
	UserID   *int32
	Statuses []string
	Types    []string
	Limit    int32
}

// CollateralWithdrawalResult reports the post-withdrawal balances along with
// the audit transaction that recorded the move.
type CollateralWithdrawalResult struct {
	Transaction          *domain.Transaction `json:"transaction"`
	CollateralBalanceUSD float64             `json:"collateral_balance_usd"`
	CollateralBalanceBTC float64             `json:"collateral_balance_btc"`
	BTCBalance           float64             `json:"btc_balance"`
}

// CryptoDepositEvent is a normalized payment-provider webhook payload.
type CryptoDepositEvent struct {
	TransactionID string  `json:"transaction_id"`
	UserEmail     string  `json:"user_email"`
	BTCAmount     float64 `json:"btc_amount"`
	USDAmount     float64 `json:"usd_amount"`
	Confirmations int     `json:"confirmations"`
	DepositMethod string  `json:"deposit_method"`
	Address       string  `json:"address"`
}

// TransactionService is the single entry point for every balance-affecting
// operation. Nothing else in the system mutates user balances.
type TransactionService interface {
	Create(ctx context.Context, requester *security.Identity, tx *domain.Transaction) (*domain.Transaction, error)
	GetTransactions(ctx context.Context, requester *security.Identity, query TransactionQuery) ([]domain.Transaction, error)
	// UpdateStatus transitions a transaction (looked up by internal id or
	// external transaction id) and runs the completion side effects. Admin only.
	UpdateStatus(ctx context.Context, requester *security.Identity, ref, status string) (*domain.Transaction, error)
	WithdrawCollateral(ctx context.Context, requester *security.Identity, usdAmount, btcAmount float64) (*CollateralWithdrawalResult, error)
	// IngestCryptoDeposit records an on-chain deposit reported by the payment
	// provider, completing it once it has enough confirmations.
	IngestCryptoDeposit(ctx context.Context, event CryptoDepositEvent) (*domain.Transaction, error)
}

// MembershipService grants and evaluates memberships.
type MembershipService interface {
	// Qualifies reports whether a transaction is a membership purchase: an
	// explicit membership type, or a deposit at or above the configured
	// threshold whose description mentions membership.
	Qualifies(tx *domain.Transaction) bool
	// Grant marks the user a member and stamps the validity window.
	Grant(ctx context.Context, user *domain.User, tx *domain.Transaction) error
}

// LoanTracker maintains the user's single active loan.
type LoanTracker interface {
	// Open records a freshly completed loan as the user's active loan.
	Open(ctx context.Context, user *domain.User, loan *domain.Transaction) error
	// Reduce applies a completed repayment withdrawal against the referenced
	// loan, clearing the user's active loan when it reaches zero.
	Reduce(ctx context.Context, repayment *domain.Transaction) error
}

// PromoService manages the first-deposit promo code allowlist.
type PromoService interface {
	IsAllowed(code string) bool
	AllowedCodes() []string
	Add(code string) ([]string, error)
	Remove(code string) ([]string, error)
}

// PricingService supplies the BTC/USD reference price.
type PricingService interface {
	BTCUSDPrice(ctx context.Context) float64
}

// EmailService sends transactional email.
type EmailService interface {
	SendTransactionNotification(ctx context.Context, user *domain.User, tx *domain.Transaction) error
	SendMembershipExpiryReminder(ctx context.Context, user *domain.User) error
	SendLoanDueReminder(ctx context.Context, user *domain.User, loan *domain.Transaction) error
	SendWelcome(ctx context.Context, user *domain.User) error
}

// WhatsAppService relays support chat messages to the operators' WhatsApp.
type WhatsAppService interface {
	SendSupportMessage(ctx context.Context, fromName, fromEmail, message string) error
}

// RealtimeEmitter pushes events to connected websocket clients. Emits are
// best-effort; a user with no open sockets is not an error.
type RealtimeEmitter interface {
	EmitToUser(userID int32, event string, payload any)
	EmitToAdmins(event string, payload any)
}

// AuthTokens is the credential pair returned on signup and login.
type AuthTokens struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *domain.User `json:"user"`
}

type SignupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Country   string `json:"country,omitempty"`
	PromoCode string `json:"promo_code,omitempty"`
}

type AuthService interface {
	Signup(ctx context.Context, req SignupRequest) (*AuthTokens, error)
	Login(ctx context.Context, email, password string) (*AuthTokens, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthTokens, error)
	GetUser(ctx context.Context, id int32) (*domain.User, error)
}

// ChatService handles support chat between users and admins.
type ChatService interface {
	Send(ctx context.Context, requester *security.Identity, toEmail, message string) (*domain.ChatMessage, error)
	History(ctx context.Context, requester *security.Identity, email string, limit, offset int32) ([]domain.ChatMessage, int32, error)
}

// AdminService covers the admin-only surfaces that are not status updates.
type AdminService interface {
	ListPending(ctx context.Context, requester *security.Identity, status string) ([]domain.Transaction, error)
	ListUserTransactions(ctx context.Context, requester *security.Identity, userID int32) ([]domain.Transaction, error)
	PromoteToAdmin(ctx context.Context, requester *security.Identity, email string) (*domain.User, error)
}
