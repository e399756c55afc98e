package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const twilioBaseURL = "https://api.twilio.com/2010-04-01"

// SMSService sends customer text messages through the Twilio REST API.
type SMSService struct {
	accountSID          string
	authToken           string
	messagingServiceSID string
	fromNumber          string
	baseURL             string
	client              *http.Client
}

// NewSMSService creates a new SMSService. The service stays disabled until
// credentials and a sender (messaging service or phone number) are set.
func NewSMSService(accountSID, authToken, messagingServiceSID, fromNumber string) *SMSService {
	if accountSID == "" || authToken == "" {
		log.Println("[SMS] Twilio not configured: missing account SID and/or auth token")
	} else if messagingServiceSID == "" && fromNumber == "" {
		log.Println("[SMS] Twilio not configured: set a messaging service SID or phone number")
	}
	return &SMSService{
		accountSID:          accountSID,
		authToken:           authToken,
		messagingServiceSID: messagingServiceSID,
		fromNumber:          fromNumber,
		baseURL:             twilioBaseURL,
		client:              &http.Client{Timeout: 15 * time.Second},
	}
}

// WithBaseURL points the service at another API root.
func (s *SMSService) WithBaseURL(baseURL string) *SMSService {
	s.baseURL = strings.TrimRight(baseURL, "/")
	return s
}

// Enabled reports whether messages can be sent.
func (s *SMSService) Enabled() bool {
	return s.accountSID != "" && s.authToken != "" && (s.messagingServiceSID != "" || s.fromNumber != "")
}

// Send delivers body to the E.164 number to.
func (s *SMSService) Send(ctx context.Context, to, body string) error {
	if !s.Enabled() {
		return nil
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("Body", body)
	if s.messagingServiceSID != "" {
		form.Set("MessagingServiceSid", s.messagingServiceSID)
	} else {
		form.Set("From", s.fromNumber)
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.baseURL, url.PathEscape(s.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("[SMS] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Printf("[SMS] Unexpected status: %d %s", resp.StatusCode, strings.TrimSpace(string(payload)))
		return fmt.Errorf("twilio returned status %d", resp.StatusCode)
	}
	return nil
}

// NotifyOrderPlaced texts the order summary to the customer.
func (s *SMSService) NotifyOrderPlaced(ctx context.Context, msg OrderConfirmation) error {
	if msg.CustomerPhone == "" {
		log.Printf("[SMS] Customer of order %s has no phone number, skipping", msg.OrderID)
		return nil
	}
	return s.Send(ctx, msg.CustomerPhone, msg.Summary())
}

// NotifyStatusChanged is a no-op; customers are only texted on confirmation.
func (s *SMSService) NotifyStatusChanged(ctx context.Context, change StatusChange) error {
	return nil
}
