package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pharmadrop/internal/events"
	"github.com/example/pharmadrop/internal/models"
)

func sampleConfirmation() OrderConfirmation {
	return OrderConfirmation{
		OrderID:       uuid.MustParse("3f1c2a9e-7b4d-4e61-9a0b-1c2d3e4f5a6b"),
		CustomerName:  "Cora",
		CustomerPhone: "+15550000001",
		PharmacyName:  "Green Cross",
		Items: []ConfirmationItem{
			{Name: "Ibuprofen 200mg", Quantity: 3, Price: 10},
			{Name: "Bandages", Quantity: 1, Price: 1250},
		},
		Subtotal:    1280,
		Discount:    5,
		TotalAmount: 1275,
		CouponCode:  "SAVE5",
		PlacedAt:    time.Now(),
	}
}

func TestSMSService_SendsConfirmation(t *testing.T) {
	var (
		gotPath string
		gotForm url.Values
		gotUser string
		gotPass string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"sid":"SM123"}`)
	}))
	defer srv.Close()

	sms := NewSMSService("AC123", "secret", "", "+15559999999").WithBaseURL(srv.URL)
	require.True(t, sms.Enabled())

	require.NoError(t, sms.NotifyOrderPlaced(context.Background(), sampleConfirmation()))
	assert.Equal(t, "/Accounts/AC123/Messages.json", gotPath)
	assert.Equal(t, "AC123", gotUser)
	assert.Equal(t, "secret", gotPass)
	assert.Equal(t, "+15550000001", gotForm.Get("To"))
	assert.Equal(t, "+15559999999", gotForm.Get("From"))
	assert.Empty(t, gotForm.Get("MessagingServiceSid"))
	assert.Equal(t, "Your order from Green Cross is confirmed: Ibuprofen 200mg x3, Bandages x1. Total: $1275.00", gotForm.Get("Body"))
}

func TestSMSService_PrefersMessagingService(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotForm = r.PostForm
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sms := NewSMSService("AC123", "secret", "MG456", "+15559999999").WithBaseURL(srv.URL)
	require.NoError(t, sms.Send(context.Background(), "+15550000001", "hi"))
	assert.Equal(t, "MG456", gotForm.Get("MessagingServiceSid"))
	assert.Empty(t, gotForm.Get("From"))
}

func TestSMSService_ReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"code":21211,"message":"Invalid 'To' Phone Number"}`)
	}))
	defer srv.Close()

	sms := NewSMSService("AC123", "secret", "", "+15559999999").WithBaseURL(srv.URL)
	assert.Error(t, sms.Send(context.Background(), "nope", "hi"))
}

func TestSMSService_DisabledOrNoPhoneIsSilent(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	disabled := NewSMSService("", "", "", "").WithBaseURL(srv.URL)
	assert.False(t, disabled.Enabled())
	assert.NoError(t, disabled.NotifyOrderPlaced(context.Background(), sampleConfirmation()))

	noPhone := sampleConfirmation()
	noPhone.CustomerPhone = ""
	enabled := NewSMSService("AC123", "secret", "", "+15559999999").WithBaseURL(srv.URL)
	assert.NoError(t, enabled.NotifyOrderPlaced(context.Background(), noPhone))
	assert.Zero(t, calls)
}

func TestTelegramService_NotifyOrderPlaced(t *testing.T) {
	var got telegramMessage
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegramService("TOKEN", "-100").WithBaseURL(srv.URL)
	require.NoError(t, tg.NotifyOrderPlaced(context.Background(), sampleConfirmation()))

	assert.Equal(t, "/botTOKEN/sendMessage", gotPath)
	assert.Equal(t, "-100", got.ChatID)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.Contains(t, got.Text, "Green Cross")
	assert.Contains(t, got.Text, "3 x $10.00 = $30.00")
	assert.Contains(t, got.Text, "SAVE5 (-$5.00)")
	assert.Contains(t, got.Text, "$1,275.00")
}

func TestTelegramService_OnlyReportsDeliveries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegramService("TOKEN", "-100").WithBaseURL(srv.URL)
	ctx := context.Background()
	require.NoError(t, tg.NotifyStatusChanged(ctx, StatusChange{To: models.OrderStatusOnTheWay}))
	assert.Zero(t, calls)
	require.NoError(t, tg.NotifyStatusChanged(ctx, StatusChange{To: models.OrderStatusDelivered}))
	assert.Equal(t, 1, calls)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "$0.00", FormatPrice(0))
	assert.Equal(t, "$25.00", FormatPrice(25))
	assert.Equal(t, "$1,234,567.89", FormatPrice(1234567.891))
	assert.Equal(t, "-$5.50", FormatPrice(-5.5))
}

type fakePublisher struct {
	mu      sync.Mutex
	enabled bool
	events  []events.Event
}

func (p *fakePublisher) Enabled() bool { return p.enabled }

func (p *fakePublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func TestEventNotifier(t *testing.T) {
	pub := &fakePublisher{enabled: true}
	n := NewEventNotifier(pub)
	ctx := context.Background()

	msg := sampleConfirmation()
	require.NoError(t, n.NotifyOrderPlaced(ctx, msg))
	require.NoError(t, n.NotifyStatusChanged(ctx, StatusChange{
		OrderID: msg.OrderID,
		From:    models.OrderStatusPacking,
		To:      models.OrderStatusOnTheWay,
	}))

	require.Len(t, pub.events, 2)
	assert.Equal(t, events.EventOrderCreated, pub.events[0].Type)
	assert.Equal(t, msg.OrderID.String(), pub.events[0].OrderID)
	assert.Equal(t, 1275.0, pub.events[0].Payload["total_amount"])
	assert.Equal(t, events.EventOrderStatusChanged, pub.events[1].Type)
	assert.Equal(t, "on_the_way", pub.events[1].Payload["to"])
}

type stubNotifier struct {
	recordingNotifier
	enabled bool
}

func (s *stubNotifier) Enabled() bool { return s.enabled }

func TestMultiNotifier(t *testing.T) {
	ok := &stubNotifier{enabled: true}
	failing := &stubNotifier{enabled: true}
	failing.err = errors.New("boom")
	off := &stubNotifier{enabled: false}
	plain := &recordingNotifier{}

	multi := NewMultiNotifier(ok, nil, failing, off, plain)
	assert.Equal(t, 3, multi.Len())

	err := multi.NotifyOrderPlaced(context.Background(), sampleConfirmation())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	assert.Len(t, ok.Placed(), 1)
	assert.Len(t, failing.Placed(), 1)
	assert.Empty(t, off.Placed())
	assert.Len(t, plain.Placed(), 1)

	assert.Error(t, multi.NotifyStatusChanged(context.Background(), StatusChange{}))
	assert.Len(t, plain.Changes(), 1)
}
