package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SMSSender delivers a text message. Provider failure never affects
// payment state; callers fire and forget.
type SMSSender interface {
	Send(ctx context.Context, to string, body string) error
	ProviderID() string
}

// WebhookSMSSender posts to an SMS relay endpoint.
type WebhookSMSSender struct {
	url   string
	token string
	http  *http.Client
}

func NewWebhookSMSSender(url string, token string) *WebhookSMSSender {
	return &WebhookSMSSender{
		url:   strings.TrimSpace(url),
		token: strings.TrimSpace(token),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (s *WebhookSMSSender) ProviderID() string {
	return "sms-webhook"
}

func (s *WebhookSMSSender) Send(ctx context.Context, to string, body string) error {
	if s.url == "" {
		return errors.New("sms webhook url not configured")
	}
	payload := map[string]string{
		"to":   NormalizePhone(to),
		"body": body,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New("sms webhook returned non-2xx")
	}
	return nil
}

// NoopSMSSender drops every message. Used in dev and tests.
type NoopSMSSender struct{}

func (NoopSMSSender) ProviderID() string { return "sms-noop" }

func (NoopSMSSender) Send(context.Context, string, string) error { return nil }

// NormalizePhone converts Kenyan numbers to E.164 (+254...). Inputs it
// cannot classify are passed through with a leading plus.
func NormalizePhone(phone string) string {
	var digits strings.Builder
	for _, c := range phone {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	d := digits.String()

	switch {
	case strings.HasPrefix(d, "254") && len(d) == 12:
		return "+" + d
	case strings.HasPrefix(d, "0") && len(d) == 10:
		return "+254" + d[1:]
	case len(d) == 9:
		return "+254" + d
	}

	if strings.HasPrefix(phone, "+") {
		return phone
	}
	return "+" + d
}

// PaymentConfirmationMessage renders the SMS sent after a successful
// payment.
func PaymentConfirmationMessage(name string, amount int, token string) string {
	return fmt.Sprintf(
		"Dear %s, your payment of KES %d has been received. Your referral code is %s. Present it at the receiving facility.",
		name, amount, token,
	)
}

// PaymentFailureMessage renders the SMS sent after a failed payment
// prompt.
func PaymentFailureMessage(name, reason string) string {
	return fmt.Sprintf(
		"Dear %s, your payment could not be completed (%s). Please ask the facility to resend the payment prompt.",
		name, reason,
	)
}
