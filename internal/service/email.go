package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"xapobank-backend/internal/config"
	"xapobank-backend/internal/domain"
	"xapobank-backend/internal/logger"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type emailService struct {
	apiKey    string
	fromEmail string
	fromName  string
}

// NewEmailService returns a SendGrid-backed mailer. With no API key every
// send becomes a logged no-op so development environments work offline.
func NewEmailService(cfg config.EmailConfig) EmailService {
	return &emailService{
		apiKey:    cfg.SendGridAPIKey,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

func (s *emailService) send(to, toName, subject, plainText, htmlContent string) error {
	if s.apiKey == "" {
		logger.Info("email disabled, skipping send", "to", to, "subject", subject)
		return nil
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	recipient := mail.NewEmail(toName, to)
	message := mail.NewSingleEmail(from, subject, recipient, plainText, htmlContent)

	logger.ExternalServiceCall("sendgrid", "send", "to", to, "subject", subject)
	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.Send(message)
	if err != nil {
		logger.ExternalServiceResult("sendgrid", "send", err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		err := fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
		logger.ExternalServiceResult("sendgrid", "send", err)
		return err
	}
	logger.ExternalServiceResult("sendgrid", "send", nil, "status", response.StatusCode)
	return nil
}

func (s *emailService) SendTransactionNotification(_ context.Context, user *domain.User, tx *domain.Transaction) error {
	var subject, body string
	amount := fmt.Sprintf("$%.2f", tx.Amount)
	reference := tx.TransactionID

	switch tx.Type {
	case domain.TransactionTypeMembership:
		subject = "Your membership is active"
		body = fmt.Sprintf("Your membership payment of %s has been confirmed. Welcome aboard!", amount)
	case domain.TransactionTypeDeposit:
		subject = "Deposit confirmed"
		body = fmt.Sprintf("Your deposit of %s has been credited to your account.", amount)
	case domain.TransactionTypeLoan:
		subject = "Loan approved"
		body = fmt.Sprintf("Your loan of %s has been approved and disbursed to your savings balance.", amount)
	case domain.TransactionTypeWithdrawal:
		subject = "Withdrawal processed"
		body = fmt.Sprintf("Your withdrawal of %s has been processed.", amount)
	default:
		subject = "Payment confirmed"
		body = fmt.Sprintf("Your payment of %s has been confirmed.", amount)
	}

	html := fmt.Sprintf("<p>Hi %s,</p><p>%s</p><p><strong>Reference:</strong> %s</p>",
		user.Name, body, reference)
	text := fmt.Sprintf("Hi %s,\n\n%s\nReference: %s", user.Name, body, reference)
	return s.send(user.Email, user.Name, subject, text, html)
}

func (s *emailService) SendMembershipExpiryReminder(_ context.Context, user *domain.User) error {
	expires := "soon"
	if user.MembershipExpiresAt != nil {
		expires = user.MembershipExpiresAt.Format("January 2, 2006")
	}
	subject := "Your membership expires soon"
	text := fmt.Sprintf("Hi %s,\n\nYour membership expires on %s. Renew now to keep access to loans and member benefits.", user.Name, expires)
	html := fmt.Sprintf("<p>Hi %s,</p><p>Your membership expires on <strong>%s</strong>. Renew now to keep access to loans and member benefits.</p>", user.Name, expires)
	return s.send(user.Email, user.Name, subject, text, html)
}

func (s *emailService) SendLoanDueReminder(_ context.Context, user *domain.User, loan *domain.Transaction) error {
	due := "soon"
	if loan.DueDate != nil {
		due = loan.DueDate.Format("January 2, 2006")
	}
	outstanding := fmt.Sprintf("$%.2f", loan.LoanAmount)
	subject := "Loan repayment due " + due
	text := fmt.Sprintf("Hi %s,\n\nYour loan repayment of %s is due on %s. Reference: %s", user.Name, outstanding, due, loan.TransactionID)
	html := fmt.Sprintf("<p>Hi %s,</p><p>Your loan repayment of <strong>%s</strong> is due on <strong>%s</strong>.</p><p>Reference: %s</p>", user.Name, outstanding, due, loan.TransactionID)
	return s.send(user.Email, user.Name, subject, text, html)
}

func (s *emailService) SendWelcome(_ context.Context, user *domain.User) error {
	first := user.Name
	if i := strings.IndexByte(first, ' '); i > 0 {
		first = first[:i]
	}
	subject := "Welcome to Xapo Bank"
	text := fmt.Sprintf("Hi %s,\n\nYour account is ready. Log in to make your first deposit.", first)
	html := fmt.Sprintf("<p>Hi %s,</p><p>Your account is ready. Log in to make your first deposit.</p>", first)
	return s.send(user.Email, user.Name, subject, text, html)
}

// Notifier runs a best-effort send in the background so request handling
// never waits on SendGrid.
type Notifier struct {
	email   EmailService
	timeout time.Duration
}

func NewNotifier(email EmailService) *Notifier {
	return &Notifier{email: email, timeout: 15 * time.Second}
}

func (n *Notifier) NotifyTransaction(user *domain.User, tx *domain.Transaction) {
	if user == nil || user.Email == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.email.SendTransactionNotification(ctx, user, tx); err != nil {
			logger.Warn("transaction notification email failed", "user_id", user.ID, "tx", tx.TransactionID, "error", err)
		}
	}()
}

func (n *Notifier) NotifyWelcome(user *domain.User) {
	if user == nil || user.Email == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.email.SendWelcome(ctx, user); err != nil {
			logger.Warn("welcome email failed", "user_id", user.ID, "error", err)
		}
	}()
}
