package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"xapobank-backend/internal/config"
	"xapobank-backend/internal/logger"
)

type whatsAppService struct {
	accountSID string
	authToken  string
	fromNumber string
	toNumber   string
	client     *http.Client
}

// NewWhatsAppService relays support messages through the Twilio WhatsApp API.
// With no credentials configured every send becomes a logged no-op.
func NewWhatsAppService(cfg config.WhatsAppConfig) WhatsAppService {
	return &whatsAppService{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		toNumber:   cfg.SupportNumber,
		client:     &http.Client{},
	}
}

func (s *whatsAppService) SendSupportMessage(ctx context.Context, fromName, fromEmail, message string) error {
	if s.accountSID == "" || s.authToken == "" || s.toNumber == "" {
		logger.Info("whatsapp disabled, skipping send", "from", fromEmail)
		return nil
	}

	body := fmt.Sprintf("Support message from %s <%s>:\n%s", fromName, fromEmail, message)
	form := url.Values{}
	form.Set("From", "whatsapp:"+s.fromNumber)
	form.Set("To", "whatsapp:"+s.toNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	logger.ExternalServiceCall("twilio", "send_whatsapp", "from", fromEmail)
	resp, err := s.client.Do(req)
	if err != nil {
		logger.ExternalServiceResult("twilio", "send_whatsapp", err)
		return fmt.Errorf("twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("twilio error: status %d", resp.StatusCode)
		logger.ExternalServiceResult("twilio", "send_whatsapp", err)
		return err
	}
	logger.ExternalServiceResult("twilio", "send_whatsapp", nil, "status", resp.StatusCode)
	return nil
}
