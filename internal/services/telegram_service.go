package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/pharmadrop/internal/models"
)

const telegramBaseURL = "https://api.telegram.org"

// TelegramService posts order summaries to the operations chat.
type TelegramService struct {
	botToken    string
	adminChatID string
	baseURL     string
	client      *http.Client
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		baseURL:     telegramBaseURL,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL points the service at another Bot API root.
func (s *TelegramService) WithBaseURL(baseURL string) *TelegramService {
	s.baseURL = strings.TrimRight(baseURL, "/")
	return s
}

// Enabled reports whether both the bot token and the admin chat are set.
func (s *TelegramService) Enabled() bool {
	return s.botToken != "" && s.adminChatID != ""
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] Bot token not configured")
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)

	msg := telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("[Telegram] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.adminChatID == "" {
		log.Println("[Telegram] Admin chat ID not configured")
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, text)
}

// FormatPrice formats a dollar amount with thousand separators.
func FormatPrice(amount float64) string {
	fixed := decimal.NewFromFloat(amount).StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, cents, _ := strings.Cut(fixed, ".")

	var result strings.Builder
	length := len(whole)
	for i, digit := range whole {
		if i > 0 && (length-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}

	return sign + "$" + result.String() + "." + cents
}

// NotifyOrderPlaced sends a new-order summary to the admin chat.
func (s *TelegramService) NotifyOrderPlaced(ctx context.Context, order OrderConfirmation) error {
	if s.adminChatID == "" {
		return nil
	}

	var itemsList strings.Builder
	for i, item := range order.Items {
		itemsList.WriteString(fmt.Sprintf("%d. <b>%s</b>\n   %d x %s = %s\n",
			i+1,
			html.EscapeString(item.Name),
			item.Quantity,
			FormatPrice(item.Price),
			FormatPrice(item.Price*float64(item.Quantity)),
		))
	}

	coupon := "-"
	if order.CouponCode != "" {
		coupon = fmt.Sprintf("%s (-%s)", html.EscapeString(order.CouponCode), FormatPrice(order.Discount))
	}

	message := fmt.Sprintf(`<b>🛒 NEW ORDER</b>
<b>📋 Order:</b> %s
<b>🏥 Pharmacy:</b> %s
<b>👤 Customer:</b> %s
<b>📞 Phone:</b> %s
<b>📦 Items:</b>
%s
<b>🏷 Coupon:</b> %s
<b>💰 Total:</b> %s
━━━━━━━━━━━━━━━━━━`,
		order.OrderID,
		html.EscapeString(order.PharmacyName),
		html.EscapeString(order.CustomerName),
		html.EscapeString(order.CustomerPhone),
		itemsList.String(),
		coupon,
		FormatPrice(order.TotalAmount),
	)

	return s.SendToAdmin(ctx, strings.TrimSpace(message))
}

// NotifyStatusChanged reports deliveries to the admin chat.
func (s *TelegramService) NotifyStatusChanged(ctx context.Context, change StatusChange) error {
	if s.adminChatID == "" || change.To != models.OrderStatusDelivered {
		return nil
	}

	message := fmt.Sprintf(`<b>✅ DELIVERED</b>
<b>📋 Order:</b> %s
<b>🚚 By:</b> %s (%s)`,
		change.OrderID,
		change.ActorID,
		change.ActorRole,
	)
	return s.SendToAdmin(ctx, message)
}
